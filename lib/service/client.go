// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/tiercache/lib/codec"
)

// dialTimeout is the maximum time to wait for a connection to the
// service socket. It covers only the connect phase: once connected,
// a call blocks until the server responds or closes the connection.
const dialTimeout = 5 * time.Second

// DefaultMaxResponseSize bounds a response when the client is created
// with a zero limit.
const DefaultMaxResponseSize = 1024 * 1024

// ServiceError is returned by Call when the server responds with
// ok=false. It carries the server's error code (empty for protocol
// level failures such as an unknown action) and message.
type ServiceError struct {
	Action  string
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("service error on %q (%s): %s", e.Action, e.Code, e.Message)
	}
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// ServiceClient sends CBOR requests to a service socket. Each Call
// opens a new connection (matching the server's one-request-per-
// connection model), sends the request, reads the response, and closes
// the connection.
type ServiceClient struct {
	socketPath      string
	maxResponseSize int64
}

// NewServiceClient creates a client for the socket at socketPath.
// Responses larger than maxResponseSize bytes fail to decode; zero
// means [DefaultMaxResponseSize].
func NewServiceClient(socketPath string, maxResponseSize int64) *ServiceClient {
	if maxResponseSize <= 0 {
		maxResponseSize = DefaultMaxResponseSize
	}
	return &ServiceClient{
		socketPath:      socketPath,
		maxResponseSize: maxResponseSize,
	}
}

// SocketPath returns the socket the client connects to.
func (c *ServiceClient) SocketPath() string {
	return c.socketPath
}

// Call sends a CBOR request to the service and decodes the response.
//
// The fields parameter may contain any handler-specific request
// fields; the client adds "action" automatically. Pass nil for actions
// that take no additional parameters.
//
// On success (response ok=true), if result is non-nil and the
// response contains data, the data is CBOR-decoded into result.
//
// On failure (response ok=false), returns a *ServiceError. Connection
// and encoding errors are returned as plain errors (not
// *ServiceError), so callers can tell "the service said no" from "the
// service could not be reached" with errors.As.
func (c *ServiceClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		return &ServiceError{
			Action:  action,
			Code:    response.Code,
			Message: response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}

	return nil
}

// send connects to the socket, writes the request, and reads the
// response. Each call creates a new connection.
func (c *ServiceClient) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// Half-close the write side so the server's read sees EOF
	// cleanly after the request.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, c.maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &response, nil
}
