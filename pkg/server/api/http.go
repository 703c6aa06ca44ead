// Package api provides the HTTP and WebSocket endpoints of the adapter server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/StrathCole/external-adapter-go/pkg/core/envelope"
	"github.com/StrathCole/external-adapter-go/pkg/core/validator"
	"github.com/StrathCole/external-adapter-go/pkg/logging"
	"github.com/StrathCole/external-adapter-go/pkg/metrics"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
	"github.com/StrathCole/external-adapter-go/pkg/version"
)

const maxBodyBytes = 1 << 20

// Server represents the HTTP API server.
type Server struct {
	addr           string
	adapters       map[string]sources.Adapter
	defaultAdapter string
	timeout        time.Duration
	certFile       string
	keyFile        string
	server         *http.Server
	logger         *logging.Logger
	wsServer       *WebSocketServer // Optional WebSocket server for streaming
}

// NewServer creates a new HTTP API server. Adapter names are matched case-insensitively.
func NewServer(addr string, adapters []sources.Adapter, defaultAdapter string, timeout time.Duration, logger *logging.Logger) *Server {
	byName := make(map[string]sources.Adapter, len(adapters))
	for _, a := range adapters {
		byName[strings.ToLower(a.Name())] = a
	}
	return &Server{
		addr:           addr,
		adapters:       byName,
		defaultAdapter: strings.ToLower(defaultAdapter),
		timeout:        timeout,
		logger:         logger,
	}
}

// SetWebSocketServer sets the WebSocket server for streaming job results.
func (s *Server) SetWebSocketServer(ws *WebSocketServer) {
	s.wsServer = ws
}

// SetTLS serves HTTPS with the given certificate and key.
func (s *Server) SetTLS(certFile, keyFile string) {
	s.certFile = certFile
	s.keyFile = keyFile
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /{$}", s.handleJob)
	mux.HandleFunc("POST /{adapter}", s.handleJob)
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr, "tls", s.certFile != "")
	var err error
	if s.certFile != "" {
		err = s.server.ListenAndServeTLS(s.certFile, s.keyFile)
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

type adapterHealth struct {
	Type            string   `json:"type"`
	Healthy         bool     `json:"healthy"`
	LastUpdate      string   `json:"lastUpdate,omitempty"`
	Endpoints       []string `json:"endpoints"`
	DefaultEndpoint string   `json:"defaultEndpoint"`
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Version  string                   `json:"version"`
	Adapters map[string]adapterHealth `json:"adapters"`
}

// handleHealth reports every adapter. The server itself is healthy while it answers,
// so the status is always 200 and "degraded" flags unhealthy adapters.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	resp := healthResponse{Status: "ok", Version: version.Version, Adapters: make(map[string]adapterHealth, len(s.adapters))}
	for name, a := range s.adapters {
		h := adapterHealth{
			Type:            string(a.Type()),
			Healthy:         a.IsHealthy(),
			Endpoints:       a.Endpoints(),
			DefaultEndpoint: a.DefaultEndpoint(),
		}
		if t := a.LastUpdate(); !t.IsZero() {
			h.LastUpdate = t.UTC().Format(time.RFC3339)
		}
		if !h.Healthy {
			resp.Status = "degraded"
		}
		resp.Adapters[name] = h
	}

	s.sendJSON(w, http.StatusOK, resp)
}

// handleJob handles POST / and POST /{adapter}.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	route := "/"
	name := strings.ToLower(r.PathValue("adapter"))
	if name != "" {
		route = "/{adapter}"
	} else {
		name = s.defaultAdapter
	}

	var env *envelope.Envelope
	defer func() {
		metrics.RecordHTTPRequest(route, strconv.Itoa(env.StatusCode), time.Since(start))
	}()

	req, err := decodeRequest(w, r)
	if err != nil {
		env = envelope.Errored(validator.JobRunID(req.ID), err)
		s.sendJSON(w, env.StatusCode, env)
		return
	}

	adapter, ok := s.adapters[name]
	if !ok {
		env = envelope.Errored(validator.JobRunID(req.ID), &envelope.AdapterError{
			Kind:    "ValidationError",
			Status:  http.StatusNotFound,
			Message: fmt.Sprintf("adapter %q", name),
			Cause:   sources.ErrUnknownAdapter,
		})
		s.sendJSON(w, env.StatusCode, env)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	env = adapter.Execute(ctx, req)

	if s.wsServer != nil {
		s.wsServer.SendUpdate(adapter.Name(), env)
	}

	s.sendJSON(w, env.StatusCode, env)
}

// decodeRequest reads the job body. Numbers are kept as json.Number so large
// integers survive until extraction.
func decodeRequest(w http.ResponseWriter, r *http.Request) (validator.Request, error) {
	var req validator.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return validator.Request{}, &validator.ValidationError{Reason: fmt.Sprintf("malformed request body: %v", err), Err: validator.ErrInvalidRequest}
	}
	if req.Data == nil {
		req.Data = map[string]interface{}{}
	}
	return req, nil
}

// Adapters returns the served adapter names in sorted order.
func (s *Server) Adapters() []string {
	names := make([]string, 0, len(s.adapters))
	for name := range s.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
