package audio

import (
	"encoding/binary"
	"fmt"
)

// The recognizer accepts exactly one representation: raw linear PCM,
// 16-bit little-endian samples, single channel, 16000 Hz.
const (
	RequiredSampleRate = 16000
	RequiredChannels   = 1
	RequiredBitDepth   = 16
)

const pcmFormatTag = 1 // WAVE_FORMAT_PCM

// FormatError describes an upload that does not satisfy the recognizer's
// PCM contract. It is user-visible and halts the pipeline before any
// network call.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "unsupported audio: " + e.Reason
}

// ExtractPCM validates an uploaded blob and returns the raw PCM payload.
//
// WAV (RIFF/WAVE) containers are parsed and checked strictly: PCM format,
// 16000 Hz, mono, 16-bit, anything else is rejected with a descriptive
// error. Raw headerless bodies are accepted as-is when the uploader
// declared an L16 content type, since elder devices stream bare PCM.
func ExtractPCM(blob []byte, contentType string) ([]byte, error) {
	if len(blob) == 0 {
		return nil, &FormatError{Reason: "empty upload"}
	}

	if isRIFF(blob) {
		return extractWAV(blob)
	}

	if isRawPCMContentType(contentType) {
		if len(blob)%2 != 0 {
			return nil, &FormatError{Reason: "raw PCM length must be even (16-bit samples)"}
		}
		return blob, nil
	}

	return nil, &FormatError{Reason: fmt.Sprintf("unrecognized container (content type %q); upload 16 kHz mono 16-bit WAV", contentType)}
}

func isRIFF(blob []byte) bool {
	return len(blob) >= 12 && string(blob[0:4]) == "RIFF" && string(blob[8:12]) == "WAVE"
}

func isRawPCMContentType(contentType string) bool {
	switch contentType {
	case "audio/L16", "audio/L16;rate=16000", "audio/pcm", "application/octet-stream":
		return true
	}
	return false
}

// extractWAV walks RIFF chunks to the fmt and data chunks, enforcing the
// strict PCM contract along the way.
func extractWAV(blob []byte) ([]byte, error) {
	var (
		fmtSeen bool
		data    []byte
	)

	offset := 12
	for offset+8 <= len(blob) {
		chunkID := string(blob[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(blob[offset+4 : offset+8]))
		body := offset + 8

		if chunkSize < 0 || body+chunkSize > len(blob) {
			return nil, &FormatError{Reason: "truncated WAV chunk " + chunkID}
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, &FormatError{Reason: "fmt chunk too short"}
			}
			if err := validateFormat(blob[body : body+chunkSize]); err != nil {
				return nil, err
			}
			fmtSeen = true
		case "data":
			data = blob[body : body+chunkSize]
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		offset = body + chunkSize + chunkSize%2
	}

	if !fmtSeen {
		return nil, &FormatError{Reason: "missing fmt chunk"}
	}
	if data == nil {
		return nil, &FormatError{Reason: "missing data chunk"}
	}
	if len(data)%2 != 0 {
		return nil, &FormatError{Reason: "PCM payload length must be even (16-bit samples)"}
	}
	return data, nil
}

func validateFormat(fmtBody []byte) error {
	formatTag := binary.LittleEndian.Uint16(fmtBody[0:2])
	channels := int(binary.LittleEndian.Uint16(fmtBody[2:4]))
	sampleRate := int(binary.LittleEndian.Uint32(fmtBody[4:8]))
	bitDepth := int(binary.LittleEndian.Uint16(fmtBody[14:16]))

	if formatTag != pcmFormatTag {
		return &FormatError{Reason: fmt.Sprintf("compressed WAV (format tag %d); only uncompressed PCM is supported", formatTag)}
	}
	if sampleRate != RequiredSampleRate {
		return &FormatError{Reason: fmt.Sprintf("sample rate %d Hz; expected %d Hz", sampleRate, RequiredSampleRate)}
	}
	if channels != RequiredChannels {
		return &FormatError{Reason: fmt.Sprintf("%d channels; expected mono", channels)}
	}
	if bitDepth != RequiredBitDepth {
		return &FormatError{Reason: fmt.Sprintf("%d-bit samples; expected %d-bit", bitDepth, RequiredBitDepth)}
	}
	return nil
}

// Duration reports the playback length of a valid PCM payload, used to
// bound the recognizer's session deadline.
func Duration(pcm []byte) float64 {
	bytesPerSecond := RequiredSampleRate * RequiredChannels * RequiredBitDepth / 8
	return float64(len(pcm)) / float64(bytesPerSecond)
}
