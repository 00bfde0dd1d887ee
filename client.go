// Package dkod is a Go client for the dekode agent protocol. A Client opens
// Sessions against a codebase, and the tool router turns LLM tool calls into
// Session operations so any tool-using model can drive the protocol.
package dkod

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/dkod-io/agent-sdk-go/src/protocol"
)

// Client holds the connection settings for one agent. It is cheap to create
// and safe to reuse; each Connect dials its own gRPC connection.
type Client struct {
	address   string
	authToken string
	agentID   string
	dialOpts  []grpc.DialOption
	codec     encoding.Codec
	logger    *slog.Logger
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithAgentID overrides the generated "sdk-<uuid>" agent id.
func WithAgentID(id string) ClientOption {
	return func(c *Client) {
		if id != "" {
			c.agentID = id
		}
	}
}

// WithDialOptions appends gRPC dial options. They are applied after the
// defaults, so transport credentials given here replace the insecure ones.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(c *Client) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// WithJSONCodec sends messages as JSON instead of the protobuf binary format.
// Only servers started with a JSON codec, such as mockserver.WithJSON,
// understand it.
func WithJSONCodec() ClientOption {
	return func(c *Client) { c.codec = protocol.JSONCodec }
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient returns a Client for the AgentService at address.
func NewClient(address, authToken string, opts ...ClientOption) *Client {
	c := &Client{
		address:   address,
		authToken: authToken,
		agentID:   "sdk-" + uuid.NewString(),
		codec:     protocol.Codec,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AgentID returns the id sent in every handshake.
func (c *Client) AgentID() string { return c.agentID }

// Connect dials the server, performs the CONNECT handshake and returns a
// Session owning the connection. Handshake failures are returned as the
// server's gRPC status error.
func (c *Client) Connect(ctx context.Context, codebase, intent string) (*Session, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	opts = append(opts, c.dialOpts...)

	conn, err := grpc.NewClient(c.address, opts...)
	if err != nil {
		return nil, fmt.Errorf("dkod: dial %s: %w", c.address, err)
	}

	s := &Session{
		conn:      conn,
		rpc:       protocol.NewAgentServiceClientWithCodec(conn, c.codec),
		agentID:   c.agentID,
		authToken: c.authToken,
		logger:    c.logger,
	}
	if _, err := s.Connect(ctx, codebase, intent); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}
