package intent

import (
	"strings"
	"testing"

	"github.com/kangban/companion/domain/entities"
)

func TestDispatch(t *testing.T) {
	contacts := map[string]string{"儿子": "13800000001"}

	tests := []struct {
		name        string
		reply       string
		contacts    map[string]string
		wantKind    entities.DirectiveKind
		wantNumber  string
		wantContact string
	}{
		{
			name:        "call known contact",
			reply:       "CALL:儿子",
			contacts:    contacts,
			wantKind:    entities.DirectiveCall,
			wantNumber:  "13800000001",
			wantContact: "儿子",
		},
		{
			name:        "call unknown contact",
			reply:       "CALL:陌生人",
			contacts:    contacts,
			wantKind:    entities.DirectiveCall,
			wantNumber:  "",
			wantContact: "陌生人",
		},
		{
			name:     "plain reply",
			reply:    "今天天气不错",
			contacts: map[string]string{},
			wantKind: entities.DirectivePlain,
		},
		{
			name:     "health alert",
			reply:    "ALERT:主诉胸闷气短",
			contacts: contacts,
			wantKind: entities.DirectiveAlert,
		},
		{
			name:     "unrecognized prefix stays plain",
			reply:    "DIAL:儿子",
			contacts: contacts,
			wantKind: entities.DirectivePlain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dispatch(tt.reply, tt.contacts)

			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if got.Number != tt.wantNumber {
				t.Errorf("Number = %q, want %q", got.Number, tt.wantNumber)
			}
			if got.ContactName != tt.wantContact {
				t.Errorf("ContactName = %q, want %q", got.ContactName, tt.wantContact)
			}
			if got.Display == "" {
				t.Error("Display must never be empty")
			}
		})
	}
}

func TestDirectiveTelLink(t *testing.T) {
	got := Dispatch("CALL:儿子", map[string]string{"儿子": "13800000001"})
	if got.TelLink() != "tel:13800000001" {
		t.Errorf("TelLink = %q, want tel:13800000001", got.TelLink())
	}

	unknown := Dispatch("CALL:陌生人", map[string]string{"儿子": "13800000001"})
	if unknown.TelLink() != "" {
		t.Errorf("TelLink = %q, want empty for unresolved contact", unknown.TelLink())
	}

	plain := Dispatch("今天天气不错", nil)
	if plain.TelLink() != "" {
		t.Errorf("TelLink = %q, want empty for plain reply", plain.TelLink())
	}
}

func TestDispatch_CallDisplayMentionsContact(t *testing.T) {
	got := Dispatch("CALL:儿子", map[string]string{"儿子": "13800000001"})
	if !strings.Contains(got.Display, "儿子") {
		t.Errorf("Display %q should mention the contact name", got.Display)
	}
}

func TestDispatch_PlainEqualsInput(t *testing.T) {
	got := Dispatch("今天天气不错", map[string]string{})
	if got.Display != "今天天气不错" {
		t.Errorf("Plain display = %q, want input text", got.Display)
	}
}

func TestDispatch_AlertIncludesDescription(t *testing.T) {
	got := Dispatch("ALERT:摔倒了", nil)
	if !strings.Contains(got.Display, "摔倒了") {
		t.Errorf("Alert display %q should include the description", got.Display)
	}
}
