package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"
	MessageTypeReply          MessageType = "reply"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypeError          MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// ListeningStartMessage opens an utterance. Binary frames that follow are
// raw 16 kHz mono 16-bit PCM until the listening_end message arrives.
type ListeningStartMessage struct {
	BaseMessage
	SampleRate int `json:"sample_rate,omitempty"`
}

// ReplyMessage carries the assistant's answer back to the elder device.
type ReplyMessage struct {
	BaseMessage
	Text       string `json:"text"`
	Transcript string `json:"transcript,omitempty"`
	AudioData  string `json:"audio_data,omitempty"` // base64 encoded
	AudioMIME  string `json:"audio_mime,omitempty"`
	CallNumber string `json:"call_number,omitempty"`
	TelLink    string `json:"tel_link,omitempty"`
	Alert      string `json:"alert,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// ParseMessage extracts the message type from a raw JSON payload.
func ParseMessage(data []byte) (MessageType, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return "", fmt.Errorf("invalid message format: %w", err)
	}
	if base.Type == "" {
		return "", fmt.Errorf("message missing type field")
	}
	return base.Type, nil
}

// NewReplyMessage builds a timestamped reply message.
func NewReplyMessage() *ReplyMessage {
	return &ReplyMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeReply,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewErrorMessage builds a timestamped error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
	}
}
