package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCClient is a JSON-RPC 2.0 client over the shared HTTP transport.
type RPCClient struct {
	source string
	client *rpc.Client
}

// DialRPC connects to a JSON-RPC endpoint. apiKey, when set, is sent as a bearer token.
func DialRPC(ctx context.Context, source, endpoint, apiKey string, httpClient *HTTPClient) (*RPCClient, error) {
	if endpoint == "" {
		return nil, ErrRPCURLRequired
	}

	opts := []rpc.ClientOption{rpc.WithHTTPClient(httpClient.Client())}
	if apiKey != "" {
		opts = append(opts, rpc.WithHeader("Authorization", "Bearer "+apiKey))
	}

	client, err := rpc.DialOptions(ctx, endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", source, err)
	}
	return &RPCClient{source: source, client: client}, nil
}

// Call invokes method and decodes the result into result. Transport and protocol
// failures are returned as *UpstreamError.
func (c *RPCClient) Call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	err := c.client.CallContext(ctx, result, method, args...)
	if err == nil {
		return nil
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return &UpstreamError{Source: c.source, Status: httpErr.StatusCode, Err: fmt.Errorf("%s: %w", method, err)}
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &UpstreamError{Source: c.source, Err: fmt.Errorf("%w: %s: code %d: %s", ErrRPCError, method, rpcErr.ErrorCode(), rpcErr.Error())}
	}
	return &UpstreamError{Source: c.source, Err: fmt.Errorf("%s: %w", method, err)}
}

// Close shuts the client down.
func (c *RPCClient) Close() error {
	c.client.Close()
	return nil
}
