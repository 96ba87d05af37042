package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/kangban/companion/domain/entities"
	"github.com/kangban/companion/domain/repositories"
)

var testCreds = entities.Credentials{
	AppID:     "test-app",
	APIKey:    "test-key",
	APISecret: "test-secret",
}

func testRecognizer(t *testing.T, endpoint string) *Recognizer {
	r := NewRecognizer(testCreds, zaptest.NewLogger(t))
	r.endpoint = endpoint
	r.frameInterval = time.Millisecond
	r.flushGrace = 20 * time.Millisecond
	return r
}

func wsEndpoint(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSignedURL_Deterministic(t *testing.T) {
	r := NewRecognizer(testCreds, zap.NewNop())
	date := time.Date(2026, time.March, 5, 12, 30, 0, 0, time.UTC)

	first := r.signedURL(date)
	second := r.signedURL(date)
	if first != second {
		t.Error("Signed URL must be deterministic for a fixed date and credential pair")
	}

	// Any input change must change the signature.
	if r.signedURL(date.Add(time.Second)) == first {
		t.Error("Signature must change with the date")
	}
	other := NewRecognizer(entities.Credentials{
		AppID: "test-app", APIKey: "test-key", APISecret: "other-secret",
	}, zap.NewNop())
	if other.signedURL(date) == first {
		t.Error("Signature must change with the secret")
	}
	other.creds.APISecret = testCreds.APISecret
	other.creds.APIKey = "other-key"
	if other.signedURL(date) == first {
		t.Error("Authorization must change with the API key")
	}
}

func TestSignedURL_Contents(t *testing.T) {
	r := NewRecognizer(testCreds, zap.NewNop())
	date := time.Date(2026, time.March, 5, 12, 30, 0, 0, time.UTC)

	parsed, err := url.Parse(r.signedURL(date))
	if err != nil {
		t.Fatalf("Failed to parse signed URL: %v", err)
	}

	query := parsed.Query()
	if got := query.Get("host"); got != "ws-api.xfyun.cn" {
		t.Errorf("host = %q, want ws-api.xfyun.cn", got)
	}
	if got := query.Get("date"); got != "Thu, 05 Mar 2026 12:30:00 GMT" {
		t.Errorf("date = %q, not RFC-1123 GMT", got)
	}

	raw, err := base64.StdEncoding.DecodeString(query.Get("authorization"))
	if err != nil {
		t.Fatalf("authorization is not base64: %v", err)
	}
	auth := string(raw)
	for _, part := range []string{
		`api_key="test-key"`,
		`algorithm="hmac-sha256"`,
		`headers="host date request-line"`,
		`signature="`,
	} {
		if !strings.Contains(auth, part) {
			t.Errorf("authorization %q missing %q", auth, part)
		}
	}
}

func TestSplitFrames(t *testing.T) {
	tests := []struct {
		name       string
		length     int
		wantFrames int
	}{
		{"empty buffer still has one terminal frame", 0, 1},
		{"single partial frame", 100, 1},
		{"exact frame boundary", frameSize, 1},
		{"one byte over", frameSize + 1, 2},
		{"several frames", frameSize*3 + 500, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := splitFrames(make([]byte, tt.length), frameSize)
			if len(frames) != tt.wantFrames {
				t.Fatalf("Expected %d frames for %d bytes, got %d", tt.wantFrames, tt.length, len(frames))
			}

			total := 0
			for _, f := range frames {
				total += len(f)
			}
			if total != tt.length {
				t.Errorf("Frames cover %d bytes, want %d", total, tt.length)
			}
		})
	}
}

func TestBuildFrame_Statuses(t *testing.T) {
	first := buildFrame("app", []byte("x"), true, false)
	if first.Data.Status != statusFirstFrame {
		t.Errorf("First frame status = %d, want %d", first.Data.Status, statusFirstFrame)
	}
	if first.Common == nil || first.Common.AppID != "app" {
		t.Error("First frame must carry the app id")
	}
	if first.Business == nil || first.Business.Domain != "iat" {
		t.Error("First frame must carry the business parameters")
	}

	middle := buildFrame("app", []byte("x"), false, false)
	if middle.Data.Status != statusContinueFrame {
		t.Errorf("Middle frame status = %d, want %d", middle.Data.Status, statusContinueFrame)
	}
	if middle.Common != nil || middle.Business != nil {
		t.Error("Continuation frames must not repeat session metadata")
	}

	last := buildFrame("app", []byte("x"), false, true)
	if last.Data.Status != statusLastFrame {
		t.Errorf("Last frame status = %d, want %d", last.Data.Status, statusLastFrame)
	}

	// A one-frame buffer is both first and last; terminal status wins.
	only := buildFrame("app", []byte("x"), true, true)
	if only.Data.Status != statusLastFrame {
		t.Errorf("Single frame status = %d, want %d", only.Data.Status, statusLastFrame)
	}
	if only.Common == nil {
		t.Error("Single frame must still carry session metadata")
	}
}

func TestServerMessage_TextAggregation(t *testing.T) {
	raw := `{"code":0,"data":{"status":1,"result":{"ws":[{"cw":[{"w":"你"}]},{"cw":[{"w":"好"},{"w":"吗"}]}]}}}`

	var msg serverMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("Failed to parse message: %v", err)
	}
	if got := msg.text(); got != "你好吗" {
		t.Errorf("text() = %q, want 你好吗", got)
	}
}

// protocolServer speaks just enough of the vendor protocol for one session:
// it validates the frame sequence and answers each audio frame with the
// configured inbound messages.
func protocolServer(t *testing.T, responses []string, gotFrames *[]clientFrame) *httptest.Server {
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("authorization") == "" {
			t.Error("Connect URL missing authorization parameter")
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		sent := 0
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var frame clientFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				t.Errorf("Client sent unparseable frame: %v", err)
				return
			}
			*gotFrames = append(*gotFrames, frame)

			if sent < len(responses) {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(responses[sent])); err != nil {
					return
				}
				sent++
			}

			if frame.Data.Status == statusLastFrame {
				// Flush the remaining responses, then let the client
				// close first, as the real server often does.
				for ; sent < len(responses); sent++ {
					if err := conn.WriteMessage(websocket.TextMessage, []byte(responses[sent])); err != nil {
						return
					}
				}
			}
		}
	}))
}

func TestTranscribe_AggregatesResults(t *testing.T) {
	var frames []clientFrame
	server := protocolServer(t, []string{
		`{"code":0,"data":{"status":0,"result":{"ws":[{"cw":[{"w":"你"}]}]}}}`,
		`{"code":0,"data":{"status":1,"result":{"ws":[{"cw":[{"w":"好"}]}]}}}`,
	}, &frames)
	defer server.Close()

	r := testRecognizer(t, wsEndpoint(server))
	pcm := make([]byte, frameSize*2+100) // three frames

	transcript, err := r.Transcribe(context.Background(), pcm)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript != "你好" {
		t.Errorf("Transcript = %q, want 你好", transcript)
	}

	if len(frames) != 3 {
		t.Fatalf("Expected 3 frames on the wire, got %d", len(frames))
	}
	if frames[0].Data.Status != statusFirstFrame || frames[0].Common == nil {
		t.Error("First wire frame must carry status 0 and session metadata")
	}
	if frames[1].Data.Status != statusContinueFrame {
		t.Error("Middle wire frame must carry status 1")
	}
	if frames[2].Data.Status != statusLastFrame {
		t.Error("Final wire frame must carry status 2")
	}
	for i, f := range frames {
		if f.Data.Encoding != "raw" || f.Data.Format != "audio/L16;rate=16000" {
			t.Errorf("Frame %d has wrong format fields: %+v", i, f.Data)
		}
	}
}

func TestTranscribe_ServerErrorCodeDoesNotAbort(t *testing.T) {
	var frames []clientFrame
	server := protocolServer(t, []string{
		`{"code":10165,"message":"invalid handle"}`,
		`{"code":0,"data":{"status":1,"result":{"ws":[{"cw":[{"w":"好"}]}]}}}`,
	}, &frames)
	defer server.Close()

	r := testRecognizer(t, wsEndpoint(server))
	transcript, err := r.Transcribe(context.Background(), make([]byte, frameSize*2))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript != "好" {
		t.Errorf("Transcript = %q, want 好 (error message must contribute nothing)", transcript)
	}
}

func TestTranscribe_EmptyBufferSendsTerminalFrame(t *testing.T) {
	var frames []clientFrame
	server := protocolServer(t, nil, &frames)
	defer server.Close()

	r := testRecognizer(t, wsEndpoint(server))
	transcript, err := r.Transcribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript != "" {
		t.Errorf("Expected empty transcript, got %q", transcript)
	}

	if len(frames) != 1 {
		t.Fatalf("Expected exactly one frame, got %d", len(frames))
	}
	if frames[0].Data.Status != statusLastFrame {
		t.Errorf("Zero-length session must send a terminal frame, got status %d", frames[0].Data.Status)
	}
	if frames[0].Data.Audio != "" {
		t.Errorf("Terminal-only frame must carry an empty payload, got %q", frames[0].Data.Audio)
	}
}

func TestTranscribe_AuthRejectedAtHandshake(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "HMAC signature does not match", http.StatusUnauthorized)
	}))
	defer server.Close()

	r := testRecognizer(t, wsEndpoint(server))
	_, err := r.Transcribe(context.Background(), make([]byte, 100))
	if !errors.Is(err, repositories.ErrAuthRejected) {
		t.Errorf("Expected ErrAuthRejected, got %v", err)
	}
}

func TestTranscribe_AuthErrorCode(t *testing.T) {
	var frames []clientFrame
	server := protocolServer(t, []string{
		`{"code":10313,"message":"invalid appid"}`,
	}, &frames)
	defer server.Close()

	r := testRecognizer(t, wsEndpoint(server))
	_, err := r.Transcribe(context.Background(), make([]byte, 100))
	if !errors.Is(err, repositories.ErrAuthRejected) {
		t.Errorf("Expected ErrAuthRejected for vendor auth code, got %v", err)
	}
}

func TestTranscribe_IncompleteCredentials(t *testing.T) {
	r := NewRecognizer(entities.Credentials{AppID: "only-app"}, zap.NewNop())
	_, err := r.Transcribe(context.Background(), make([]byte, 100))
	if !errors.Is(err, repositories.ErrAuthRejected) {
		t.Errorf("Expected ErrAuthRejected for blank credentials, got %v", err)
	}
}

func TestTranscribe_DialFailureIsTransportError(t *testing.T) {
	r := testRecognizer(t, "ws://127.0.0.1:1/v2/iat")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := r.Transcribe(ctx, make([]byte, 100))
	if err == nil {
		t.Fatal("Expected transport error")
	}
	if errors.Is(err, repositories.ErrAuthRejected) {
		t.Error("Dial failure must not be classified as auth rejection")
	}
}

func TestTranscribe_CallerCancellation(t *testing.T) {
	// A server that accepts the session and then never answers.
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	r := testRecognizer(t, wsEndpoint(server))
	r.flushGrace = 10 * time.Second // keep the sender parked

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	transcript, err := r.Transcribe(ctx, make([]byte, frameSize))
	if err != nil {
		t.Fatalf("Cancellation must degrade to no speech, got error: %v", err)
	}
	if transcript != "" {
		t.Errorf("Expected empty transcript, got %q", transcript)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Cancellation took %v, should abort promptly", elapsed)
	}
}
