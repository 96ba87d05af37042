package entities

// DirectiveKind classifies the structured instruction embedded in an
// assistant reply.
type DirectiveKind string

const (
	DirectivePlain DirectiveKind = "plain"
	DirectiveCall  DirectiveKind = "call"
	DirectiveAlert DirectiveKind = "alert"
)

// Directive is the resolved interpretation of one assistant reply line.
// Exactly one interpretation exists per reply. A call directive whose
// contact is not on file carries an empty Number; the UI must tolerate
// "recognized a call intent but no number to dial".
type Directive struct {
	Kind        DirectiveKind `json:"kind"`
	Display     string        `json:"display"`
	ContactName string        `json:"contact_name,omitempty"`
	Number      string        `json:"number,omitempty"`
}

// TelLink renders the dial side-effect as a tel: deep link for the host
// UI. Empty unless this is a call directive with a resolved number.
func (d Directive) TelLink() string {
	if d.Kind != DirectiveCall || d.Number == "" {
		return ""
	}
	return "tel:" + d.Number
}
