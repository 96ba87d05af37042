package entities

import (
	"errors"
	"time"
)

// Interaction records one elder utterance and the assistant's response,
// kept so the caregiver can audit conversations and alert triggers.
type Interaction struct {
	ID         string        `json:"id" bson:"_id,omitempty"`
	Timestamp  time.Time     `json:"timestamp" bson:"timestamp"`
	Transcript string        `json:"transcript" bson:"transcript"`
	Reply      string        `json:"reply" bson:"reply"`
	Kind       DirectiveKind `json:"kind" bson:"kind"`
	Contact    string        `json:"contact,omitempty" bson:"contact,omitempty"`
	Number     string        `json:"number,omitempty" bson:"number,omitempty"`
	Alert      string        `json:"alert,omitempty" bson:"alert,omitempty"`
}

func (i *Interaction) Validate() error {
	if i.Reply == "" {
		return errors.New("reply is required")
	}
	if i.Kind == "" {
		return errors.New("directive kind is required")
	}
	return nil
}
