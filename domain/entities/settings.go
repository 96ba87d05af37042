package entities

import (
	"errors"
	"regexp"
)

// Credentials identifies the caller to the speech recognition vendor.
type Credentials struct {
	AppID     string `json:"app_id"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// Complete reports whether all three credential parts are present.
// Recognition must not be attempted while any of them is blank.
func (c Credentials) Complete() bool {
	return c.AppID != "" && c.APIKey != "" && c.APISecret != ""
}

// Reminder is a single time-of-day task shown on the elder screen.
type Reminder struct {
	Time string `json:"time"` // HH:MM, 24h
	Task string `json:"task"`
}

var reminderTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func (r Reminder) Validate() error {
	if !reminderTimePattern.MatchString(r.Time) {
		return errors.New("reminder time must be HH:MM in 24h format")
	}
	if r.Task == "" {
		return errors.New("reminder task is required")
	}
	return nil
}

// Settings is the caregiver-editable configuration document. The JSON keys
// match the on-disk settings file rewritten wholesale on every save.
type Settings struct {
	ASRAppID      string            `json:"xf_appid"`
	ASRAPIKey     string            `json:"xf_apikey"`
	ASRAPISecret  string            `json:"xf_secret"`
	LLMAPIKey     string            `json:"ds_key"`
	AdminPassword string            `json:"admin_password"`
	Contacts      map[string]string `json:"contacts"`
	Reminders     []Reminder        `json:"reminders"`
}

// ASRCredentials assembles the recognition credential triple.
func (s Settings) ASRCredentials() Credentials {
	return Credentials{
		AppID:     s.ASRAppID,
		APIKey:    s.ASRAPIKey,
		APISecret: s.ASRAPISecret,
	}
}

// CurrentReminder returns the authoritative reminder slot. The storage
// field is list-shaped but only slot 0 is ever shown or mutated.
func (s Settings) CurrentReminder() (Reminder, bool) {
	if len(s.Reminders) == 0 {
		return Reminder{}, false
	}
	return s.Reminders[0], true
}

// Clone returns a deep copy so that callers can hold a snapshot while the
// caregiver panel rewrites the live document.
func (s Settings) Clone() Settings {
	out := s
	out.Contacts = make(map[string]string, len(s.Contacts))
	for name, number := range s.Contacts {
		out.Contacts[name] = number
	}
	out.Reminders = append([]Reminder(nil), s.Reminders...)
	return out
}

// DefaultSettings is the fallback document used when the settings file is
// missing or malformed.
func DefaultSettings() Settings {
	return Settings{
		AdminPassword: "888",
		Contacts: map[string]string{
			"儿子": "13800000001",
			"女儿": "13900000002",
		},
		Reminders: []Reminder{
			{Time: "08:00", Task: "吃降压药"},
			{Time: "20:00", Task: "量血压"},
		},
	}
}
