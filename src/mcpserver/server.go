// Package mcpserver publishes the dkod tools over the Model Context Protocol
// so MCP hosts can drive a session without the Go SDK.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	dkod "github.com/dkod-io/agent-sdk-go"
)

const (
	DefaultName    = "dkod"
	DefaultVersion = "0.1.0"
)

type options struct {
	name    string
	version string
	logger  *slog.Logger
}

type Option func(*options)

func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithVersion(version string) Option {
	return func(o *options) { o.version = version }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New returns an MCP server exposing the six dkod tools bound to session.
func New(session dkod.ToolSession, opts ...Option) *server.MCPServer {
	o := options{name: DefaultName, version: DefaultVersion, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	s := server.NewMCPServer(o.name, o.version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, d := range dkod.Tools() {
		schema, err := json.Marshal(d.InputSchema)
		if err != nil {
			// InputSchema holds only strings, slices and maps.
			panic(err)
		}
		s.AddTool(mcp.NewToolWithRawSchema(d.Name, d.Description, schema), Handler(session, d.Name, o.logger))
	}
	return s
}

// Handler dispatches calls for one tool. Validation and transport errors are
// returned as error results so the host can show them to the model.
func Handler(session dkod.ToolSession, tool string, logger *slog.Logger) server.ToolHandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := dkod.Dispatch(ctx, session, tool, req.GetArguments(), dkod.WithDispatchLogger(logger))
		if err != nil {
			logger.Debug("mcp tool failed", "tool", tool, "err", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

// ServeStdio serves the tools on stdin/stdout until the host disconnects.
func ServeStdio(session dkod.ToolSession, opts ...Option) error {
	return server.ServeStdio(New(session, opts...))
}
