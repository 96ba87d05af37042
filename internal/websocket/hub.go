package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kangban/companion/internal/audio"
	"github.com/kangban/companion/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Maximum buffered audio per utterance. A minute of 16 kHz mono
	// 16-bit PCM is just under 2MB.
	maxUtteranceBytes = 2 * 1024 * 1024

	// Wall-clock bound on one utterance through the pipeline.
	pipelineTimeout = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// VoicePipeline is the slice of the pipeline service the hub needs.
type VoicePipeline interface {
	ProcessVoice(ctx context.Context, upload []byte, contentType string) (*usecase.Outcome, error)
}

// Hub maintains the set of active elder-device clients.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	pipeline VoicePipeline

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(pipeline VoicePipeline, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pipeline:   pipeline,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.deviceID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("deviceID", client.deviceID))

		case client := <-h.unregister:
			// A reconnect registers a new client under the same device ID
			// before the stale one unregisters, so only the exact pointer
			// may be removed. send is never closed: a pipeline goroutine
			// can still queue a reply after disconnect, and writePump
			// exits on its own connection error.
			h.mu.Lock()
			if stored, ok := h.clients[client.deviceID]; ok && stored == client {
				delete(h.clients, client.deviceID)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("deviceID", client.deviceID))
		}
	}
}

type WriteData struct {
	// Type is the websocket message type.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Device ID for this client
	deviceID string

	// Logger
	logger *zap.Logger

	// Utterance buffering between listening_start and listening_end.
	listening      bool
	pcm            []byte
	listeningStart time.Time

	mutex sync.Mutex
}

// HandleWebSocketWithAuth handles websocket requests with pre-authenticated device ID
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, deviceID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		deviceID: deviceID,
		logger:   logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage processes incoming control messages from the device
func (c *Client) processMessage(message []byte) {
	msgType, err := ParseMessage(message)
	if err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		return
	}

	switch msgType {
	case MessageTypeListeningStart:
		var start ListeningStartMessage
		if err := json.Unmarshal(message, &start); err != nil {
			c.logger.Error("Failed to parse listening_start", zap.Error(err))
			return
		}
		c.handleListeningStart(start)
	case MessageTypeListeningEnd:
		c.handleListeningEnd()
	case MessageTypePing:
		c.sendJSON(BaseMessage{Type: MessageTypePong, Timestamp: time.Now().UTC().Format(time.RFC3339)})
	default:
		c.logger.Warn("Unknown message type", zap.String("type", string(msgType)))
	}
}

// processBinaryAudioChunk appends raw PCM to the current utterance buffer
func (c *Client) processBinaryAudioChunk(data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.listening {
		c.logger.Warn("Received binary audio chunk outside an utterance",
			zap.String("deviceID", c.deviceID))
		return
	}

	if len(c.pcm)+len(data) > maxUtteranceBytes {
		c.logger.Warn("Utterance buffer overflow, dropping chunk",
			zap.String("deviceID", c.deviceID),
			zap.Int("buffered", len(c.pcm)))
		return
	}

	c.pcm = append(c.pcm, data...)

	c.logger.Debug("Buffered binary chunk",
		zap.String("deviceID", c.deviceID),
		zap.Int("chunkBytes", len(data)),
		zap.Int("totalBytes", len(c.pcm)))
}

// handleListeningStart opens an utterance buffer. A device declaring a
// sample rate other than the recognizer's 16 kHz contract is rejected up
// front; the binary frames that would follow are raw PCM with no header
// to catch the mismatch later.
func (c *Client) handleListeningStart(start ListeningStartMessage) {
	if start.SampleRate != 0 && start.SampleRate != audio.RequiredSampleRate {
		c.logger.Warn("Rejected utterance with unsupported sample rate",
			zap.String("deviceID", c.deviceID),
			zap.Int("sampleRate", start.SampleRate))
		c.sendJSON(NewErrorMessage("unsupported_rate", "audio must be 16 kHz mono 16-bit PCM"))
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.listening = true
	c.pcm = nil
	c.listeningStart = time.Now()

	c.logger.Info("Utterance started", zap.String("deviceID", c.deviceID))
}

// handleListeningEnd seals the buffer and runs the utterance through the
// pipeline. The client always receives a reply message, even when the
// buffer was empty or recognition produced nothing.
func (c *Client) handleListeningEnd() {
	c.mutex.Lock()
	if !c.listening {
		c.mutex.Unlock()
		c.logger.Warn("listening_end without listening_start",
			zap.String("deviceID", c.deviceID))
		c.sendJSON(NewErrorMessage("no_utterance", "no active utterance"))
		return
	}

	pcm := c.pcm
	started := c.listeningStart
	c.listening = false
	c.pcm = nil
	c.mutex.Unlock()

	c.logger.Info("Utterance ended",
		zap.String("deviceID", c.deviceID),
		zap.Int("bytes", len(pcm)),
		zap.Duration("captured", time.Since(started)))

	go c.respond(pcm)
}

// respond runs one utterance through the pipeline and pushes the reply.
func (c *Client) respond(pcm []byte) {
	if len(pcm) == 0 {
		// Released the button without speaking; no point in a session.
		reply := NewReplyMessage()
		reply.Text = usecase.NoSpeechReply
		c.sendJSON(reply)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
	defer cancel()

	outcome, err := c.hub.pipeline.ProcessVoice(ctx, pcm, "audio/pcm")
	if err != nil {
		var formatErr *audio.FormatError
		switch {
		case errors.As(err, &formatErr):
			c.sendJSON(NewErrorMessage("bad_audio", formatErr.Error()))
		case errors.Is(err, usecase.ErrNotConfigured):
			c.sendJSON(NewErrorMessage("not_configured", "请家属先配置 API Key"))
		default:
			c.logger.Error("Pipeline failed",
				zap.String("deviceID", c.deviceID),
				zap.Error(err))
			c.sendJSON(NewErrorMessage("internal", "internal error"))
		}
		return
	}

	reply := NewReplyMessage()
	reply.Text = outcome.ReplyText
	reply.Transcript = outcome.Transcript
	reply.CallNumber = outcome.CallNumber
	reply.TelLink = outcome.TelLink
	reply.Alert = outcome.Alert
	if len(outcome.Audio) > 0 {
		reply.AudioData = base64.StdEncoding.EncodeToString(outcome.Audio)
		reply.AudioMIME = outcome.AudioMIME
	}

	c.sendJSON(reply)
}

// sendJSON marshals and queues one outbound text message, dropping it if
// the send buffer is full.
func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal outbound message", zap.Error(err))
		return
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Send buffer full, dropping message",
			zap.String("deviceID", c.deviceID))
	}
}
