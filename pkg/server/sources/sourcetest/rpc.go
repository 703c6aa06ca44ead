// Package sourcetest provides upstream fakes for adapter tests.
package sourcetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RPCError is a JSON-RPC error object returned by a handler.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCHandler answers one method. Returning a non-nil *RPCError sends an error object.
type RPCHandler func(params []json.RawMessage) (interface{}, *RPCError)

// RPCServer is a JSON-RPC 2.0 server over HTTP that dispatches by method name.
type RPCServer struct {
	*httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	headers  []http.Header
	handlers map[string]RPCHandler
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// NewRPCServer starts a server that is closed when the test ends.
func NewRPCServer(t *testing.T, handlers map[string]RPCHandler) *RPCServer {
	t.Helper()
	s := &RPCServer{calls: make(map[string]int), handlers: handlers}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Calls returns how often method was invoked.
func (s *RPCServer) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Headers returns the headers of every request received so far.
func (s *RPCServer) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

func (s *RPCServer) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	s.headers = append(s.headers, r.Header.Clone())
	handler, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &RPCError{Code: -32601, Message: "method not found: " + req.Method}
	} else {
		resp.Result, resp.Error = handler(req.Params)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
