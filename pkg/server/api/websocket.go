package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/StrathCole/external-adapter-go/pkg/core/envelope"
	"github.com/StrathCole/external-adapter-go/pkg/logging"
)

const messageTypeJobResult = "job_result"

// jobResult is one finished job queued for broadcast.
type jobResult struct {
	adapter  string
	envelope *envelope.Envelope
}

// WebSocketServer streams finished job envelopes to connected clients.
type WebSocketServer struct {
	addr     string
	logger   *logging.Logger
	upgrader websocket.Upgrader

	// Client management
	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	updates chan jobResult

	// Server control
	ctx       context.Context
	cancel    context.CancelFunc
	broadcast sync.Once
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	conn               *websocket.Conn
	send               chan []byte
	server             *WebSocketServer
	subscribedAll      bool
	subscribedAdapters map[string]bool
	mu                 sync.RWMutex
}

// WebSocketMessage represents a client message.
type WebSocketMessage struct {
	Type     string   `json:"type"`     // "subscribe", "unsubscribe", "ping"
	Adapters []string `json:"adapters"` // Adapter names, "*" for all
}

// JobResultMessage is sent to clients for every finished job.
type JobResultMessage struct {
	Type      string             `json:"type"`      // "job_result"
	Timestamp string             `json:"timestamp"` // ISO 8601 timestamp
	Adapter   string             `json:"adapter"`
	Envelope  *envelope.Envelope `json:"envelope"`
}

// NewWebSocketServer creates a new WebSocket server.
func NewWebSocketServer(addr string, logger *logging.Logger) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketServer{
		addr:   addr,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Allow all origins (configure CORS as needed)
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		updates: make(chan jobResult, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the /ws router and starts broadcasting.
func (s *WebSocketServer) Handler() http.Handler {
	s.broadcast.Do(func() { go s.broadcastUpdates() })

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start starts the WebSocket server.
func (s *WebSocketServer) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting WebSocket server", "addr", s.addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server error", "error", err)
		}
	}()

	// Wait for context cancellation
	<-s.ctx.Done()

	// Graceful shutdown with timeout based on parent context
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Stop stops the WebSocket server.
func (s *WebSocketServer) Stop() {
	s.cancel()
}

// SendUpdate queues a finished job for all subscribed clients.
func (s *WebSocketServer) SendUpdate(adapter string, env *envelope.Envelope) {
	select {
	case s.updates <- jobResult{adapter: adapter, envelope: env}:
	case <-time.After(100 * time.Millisecond):
		s.logger.Warn("Update channel full, dropping job result", "adapter", adapter)
	}
}

// handleWebSocket handles new WebSocket connections.
func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &WebSocketClient{
		conn:               conn,
		send:               make(chan []byte, 256),
		server:             s,
		subscribedAll:      true, // Subscribe to all by default
		subscribedAdapters: make(map[string]bool),
	}

	s.registerClient(client)

	// Start client goroutines
	go client.writePump()
	go client.readPump()

	s.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr())
}

// registerClient adds a client to the server.
func (s *WebSocketServer) registerClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

// unregisterClient removes a client from the server.
func (s *WebSocketServer) unregisterClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
}

// broadcastUpdates broadcasts job results to all clients.
func (s *WebSocketServer) broadcastUpdates() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case result := <-s.updates:
			s.send(result)
		}
	}
}

// send delivers one job result to all subscribed clients.
func (s *WebSocketServer) send(result jobResult) {
	if result.envelope == nil {
		return
	}

	message := JobResultMessage{
		Type:      messageTypeJobResult,
		Timestamp: time.Now().Format(time.RFC3339),
		Adapter:   result.adapter,
		Envelope:  result.envelope,
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal job result", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		if client.shouldReceive(result.adapter) {
			select {
			case client.send <- data:
			default:
				s.logger.Warn("Client send buffer full, skipping update")
			}
		}
	}
}

// writePump sends messages to the WebSocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads messages from the WebSocket connection.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// handleMessage processes client messages.
func (c *WebSocketClient) handleMessage(data []byte) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Warn("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Adapters)
	case "unsubscribe":
		c.unsubscribe(msg.Adapters)
	case "ping":
		c.sendPong()
	default:
		c.server.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

// subscribe subscribes to specific adapters.
func (c *WebSocketClient) subscribe(adapters []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(adapters) == 0 || (len(adapters) == 1 && adapters[0] == "*") {
		c.subscribedAll = true
		c.subscribedAdapters = make(map[string]bool)
	} else {
		c.subscribedAll = false
		for _, adapter := range adapters {
			c.subscribedAdapters[strings.ToLower(adapter)] = true
		}
	}

	c.server.logger.Debug("Client subscribed", "adapters", adapters)
	c.sendAck("subscribed", adapters)
}

// unsubscribe unsubscribes from specific adapters.
func (c *WebSocketClient) unsubscribe(adapters []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(adapters) == 0 || (len(adapters) == 1 && adapters[0] == "*") {
		c.subscribedAll = false
		c.subscribedAdapters = make(map[string]bool)
	} else {
		for _, adapter := range adapters {
			delete(c.subscribedAdapters, strings.ToLower(adapter))
		}
	}

	c.server.logger.Debug("Client unsubscribed", "adapters", adapters)
	c.sendAck("unsubscribed", adapters)
}

// shouldReceive checks if client should receive results of this adapter.
func (c *WebSocketClient) shouldReceive(adapter string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.subscribedAll || c.subscribedAdapters[strings.ToLower(adapter)]
}

func (c *WebSocketClient) sendAck(kind string, adapters []string) {
	data, _ := json.Marshal(map[string]interface{}{"type": kind, "adapters": adapters})
	select {
	case c.send <- data:
	default:
	}
}

// sendPong sends a pong response.
func (c *WebSocketClient) sendPong() {
	pong := map[string]string{"type": "pong"}
	data, _ := json.Marshal(pong)
	select {
	case c.send <- data:
	default:
	}
}
