package api

import (
	"time"

	"github.com/kangban/companion/domain/entities"
)

// DeviceAuthRequest represents the request payload for device authentication
type DeviceAuthRequest struct {
	DeviceID string `json:"device_id"`
}

// DeviceAuthResponse represents the response payload for device authentication
type DeviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

// CaregiverLoginRequest carries the admin password from the settings panel
type CaregiverLoginRequest struct {
	Password string `json:"password"`
}

// CaregiverLoginResponse carries the caregiver panel token
type CaregiverLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConverseResponse is the reply for one uploaded utterance
type ConverseResponse struct {
	Text       string `json:"text"`
	Transcript string `json:"transcript,omitempty"`
	AudioData  string `json:"audio_data,omitempty"` // base64 encoded
	AudioMIME  string `json:"audio_mime,omitempty"`
	CallNumber string `json:"call_number,omitempty"`
	TelLink    string `json:"tel_link,omitempty"`
	Alert      string `json:"alert,omitempty"`
}

// SettingsView is the caregiver panel's read model. Secret values never
// leave the server; only their presence is reported.
type SettingsView struct {
	ASRAppID     string              `json:"xf_appid"`
	ASRKeySet    bool                `json:"xf_apikey_set"`
	ASRSecretSet bool                `json:"xf_secret_set"`
	LLMKeySet    bool                `json:"ds_key_set"`
	Contacts     map[string]string   `json:"contacts"`
	Reminders    []entities.Reminder `json:"reminders"`
}

// SettingsUpdate is the caregiver panel's write model. Blank secret fields
// and nil collections leave the stored values untouched.
type SettingsUpdate struct {
	ASRAppID      *string             `json:"xf_appid"`
	ASRAPIKey     string              `json:"xf_apikey"`
	ASRAPISecret  string              `json:"xf_secret"`
	LLMAPIKey     string              `json:"ds_key"`
	AdminPassword string              `json:"admin_password"`
	Contacts      map[string]string   `json:"contacts"`
	Reminders     []entities.Reminder `json:"reminders"`
}

// ReminderResponse wraps the elder screen's single reminder slot
type ReminderResponse struct {
	Reminder *entities.Reminder `json:"reminder"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
