package stt

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kangban/companion/domain/entities"
	"github.com/kangban/companion/domain/repositories"
	"github.com/kangban/companion/internal/audio"
)

const (
	defaultEndpoint = "wss://iat-api.xfyun.cn/v2/iat"
	signHost        = "ws-api.xfyun.cn"
	signPath        = "/v2/iat"

	// Vendor-negotiated chunk size for audio/L16;rate=16000.
	frameSize = 8000

	// Pacing between frames emulates live-microphone cadence; the vendor's
	// billing and quality model depends on not bursting all audio at once.
	defaultFrameInterval = 40 * time.Millisecond

	// After the terminal frame the server may still flush trailing partial
	// results; wait before closing the socket ourselves, the server does
	// not always close first.
	defaultFlushGrace = time.Second

	// Hard cap beyond the audio's own playback duration. A hung vendor
	// connection must not block the interactive flow indefinitely.
	deadlineSlack = 8 * time.Second

	writeWait = 10 * time.Second
)

// Frame statuses of the session protocol.
const (
	statusFirstFrame    = 0
	statusContinueFrame = 1
	statusLastFrame     = 2
)

// Recognizer transcribes a complete PCM buffer through iFlytek's signed
// WebSocket streaming protocol ("iat" domain, Mandarin).
//
// One session runs two units of execution: a sender pacing audio frames
// and the receiving loop aggregating partial results. They share no
// mutable state and are synchronized only by the socket's lifecycle.
type Recognizer struct {
	creds  entities.Credentials
	logger *zap.Logger
	dialer *websocket.Dialer

	endpoint      string
	frameInterval time.Duration
	flushGrace    time.Duration
}

var _ repositories.SpeechToText = (*Recognizer)(nil)

// NewRecognizer creates a recognizer bound to one credential triple.
// Construction is cheap; the pipeline builds one per request so caregiver
// credential edits take effect immediately.
func NewRecognizer(creds entities.Credentials, logger *zap.Logger) *Recognizer {
	return &Recognizer{
		creds:         creds,
		logger:        logger,
		dialer:        websocket.DefaultDialer,
		endpoint:      defaultEndpoint,
		frameInterval: defaultFrameInterval,
		flushGrace:    defaultFlushGrace,
	}
}

// Transcribe runs one recognition session over the whole buffer and
// returns the aggregated transcript. ("", nil) means no speech was
// recognized; transport failures and credential rejections come back as
// errors so callers can tell the cases apart.
func (r *Recognizer) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if !r.creds.Complete() {
		return "", fmt.Errorf("recognition credentials incomplete: %w", repositories.ErrAuthRejected)
	}

	budget := time.Duration(audio.Duration(pcm)*float64(time.Second)) + deadlineSlack
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	// The signature embeds the date and is checked server-side, so the URL
	// must be freshly computed per session.
	conn, resp, err := r.dialer.DialContext(ctx, r.signedURL(time.Now().UTC()), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return "", fmt.Errorf("handshake returned %d: %w", resp.StatusCode, repositories.ErrAuthRejected)
		}
		return "", fmt.Errorf("failed to dial recognition endpoint: %w", err)
	}
	defer conn.Close()

	// Closing the socket is the one lever that unblocks both the sender
	// and the read loop, so cancellation just closes it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go r.sendFrames(ctx, conn, pcm)

	return r.collectResults(ctx, conn)
}

// sendFrames partitions the buffer into fixed-size chunks and transmits
// one JSON message per chunk at the pacing interval. The first frame
// carries session metadata, the final frame carries terminal status; an
// empty buffer still produces a single zero-payload terminal frame so the
// server sees the session end.
func (r *Recognizer) sendFrames(ctx context.Context, conn *websocket.Conn, pcm []byte) {
	frames := splitFrames(pcm, frameSize)

	for i, frame := range frames {
		first := i == 0
		last := i == len(frames)-1

		payload, err := json.Marshal(buildFrame(r.creds.AppID, frame, first, last))
		if err != nil {
			r.logger.Error("Failed to encode audio frame", zap.Error(err))
			return
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			r.logger.Warn("Failed to send audio frame",
				zap.Int("frame", i),
				zap.Error(err))
			return
		}

		if last {
			break
		}

		select {
		case <-time.After(r.frameInterval):
		case <-ctx.Done():
			return
		}
	}

	select {
	case <-time.After(r.flushGrace):
	case <-ctx.Done():
		return
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	conn.Close()
}

// collectResults reads inbound messages until the socket closes and
// concatenates every recognized word in arrival order. A non-zero response
// code is a server-side error for this session: it is logged and skipped,
// later frames are still processed.
func (r *Recognizer) collectResults(ctx context.Context, conn *websocket.Conn) (string, error) {
	var transcript strings.Builder
	authRejected := false

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if authRejected && transcript.Len() == 0 {
				return "", fmt.Errorf("session error: %w", repositories.ErrAuthRejected)
			}
			if isExpectedClose(err) {
				return transcript.String(), nil
			}
			if ctx.Err() != nil {
				// Deadline or caller cancellation: yield whatever was
				// recognized so far, as "no speech" rather than a fault.
				r.logger.Warn("Recognition session timed out", zap.Error(ctx.Err()))
				return transcript.String(), nil
			}
			return transcript.String(), fmt.Errorf("recognition transport failed: %w", err)
		}

		var msg serverMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			r.logger.Warn("Failed to parse recognition message", zap.Error(err))
			continue
		}

		if msg.Code != 0 {
			r.logger.Warn("Recognition server reported error",
				zap.Int("code", msg.Code),
				zap.String("message", msg.Message))
			if isAuthCode(msg.Code) {
				authRejected = true
			}
			continue
		}

		transcript.WriteString(msg.text())
	}
}

// splitFrames slices the buffer into frameSize chunks. An empty buffer
// yields one empty frame, which becomes the zero-payload terminal frame.
func splitFrames(pcm []byte, size int) [][]byte {
	if len(pcm) == 0 {
		return [][]byte{nil}
	}

	frames := make([][]byte, 0, (len(pcm)+size-1)/size)
	for offset := 0; offset < len(pcm); offset += size {
		end := offset + size
		if end > len(pcm) {
			end = len(pcm)
		}
		frames = append(frames, pcm[offset:end])
	}
	return frames
}

type commonParams struct {
	AppID string `json:"app_id"`
}

type businessParams struct {
	Domain   string `json:"domain"`
	Language string `json:"language"`
	Accent   string `json:"accent"`
	Vcn      string `json:"vcn"`
}

type frameData struct {
	Status   int    `json:"status"`
	Format   string `json:"format"`
	Audio    string `json:"audio"`
	Encoding string `json:"encoding"`
}

type clientFrame struct {
	Common   *commonParams   `json:"common,omitempty"`
	Business *businessParams `json:"business,omitempty"`
	Data     frameData       `json:"data"`
}

func buildFrame(appID string, chunk []byte, first, last bool) clientFrame {
	status := statusContinueFrame
	if first {
		status = statusFirstFrame
	}
	if last {
		status = statusLastFrame
	}

	frame := clientFrame{
		Data: frameData{
			Status:   status,
			Format:   "audio/L16;rate=16000",
			Audio:    base64.StdEncoding.EncodeToString(chunk),
			Encoding: "raw",
		},
	}
	if first {
		frame.Common = &commonParams{AppID: appID}
		frame.Business = &businessParams{
			Domain:   "iat",
			Language: "zh_cn",
			Accent:   "mandarin",
			Vcn:      "xiaoyan",
		}
	}
	return frame
}

// serverMessage is one inbound result message.
type serverMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
		Result struct {
			Ws []struct {
				Cw []struct {
					W string `json:"w"`
				} `json:"cw"`
			} `json:"ws"`
		} `json:"result"`
	} `json:"data"`
}

// text concatenates the nested word list in order.
func (m *serverMessage) text() string {
	var sb strings.Builder
	for _, ws := range m.Data.Result.Ws {
		for _, cw := range ws.Cw {
			sb.WriteString(cw.W)
		}
	}
	return sb.String()
}

// Vendor error codes signalling credential problems rather than transient
// session faults.
func isAuthCode(code int) bool {
	switch code {
	case 10005, 10313, 11200, 11201:
		return true
	}
	return false
}

func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	// Our own post-grace close surfaces as a closed-connection read error.
	return errors.Is(err, net.ErrClosed)
}

// signedURL builds the per-session connect URL. The canonical signing
// string is exactly three lines joined by newlines with no trailing
// newline; the HMAC-SHA256 digest and the assembled authorization value
// are both base64-encoded.
func (r *Recognizer) signedURL(now time.Time) string {
	date := now.Format(http.TimeFormat)

	origin := "host: " + signHost + "\n" +
		"date: " + date + "\n" +
		"GET " + signPath + " HTTP/1.1"
	mac := hmac.New(sha256.New, []byte(r.creds.APISecret))
	mac.Write([]byte(origin))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authOrigin := fmt.Sprintf(`api_key="%s", algorithm="%s", headers="%s", signature="%s"`,
		r.creds.APIKey, "hmac-sha256", "host date request-line", signature)
	authorization := base64.StdEncoding.EncodeToString([]byte(authOrigin))

	query := url.Values{}
	query.Set("authorization", authorization)
	query.Set("date", date)
	query.Set("host", signHost)

	return r.endpoint + "?" + query.Encode()
}
