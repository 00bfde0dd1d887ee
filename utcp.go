package dkod

import (
	"context"
	"fmt"
	"strings"

	utcp "github.com/universal-tool-calling-protocol/go-utcp"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/base"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/cli"
	"github.com/universal-tool-calling-protocol/go-utcp/src/repository"
	"github.com/universal-tool-calling-protocol/go-utcp/src/tools"
	"github.com/universal-tool-calling-protocol/go-utcp/src/transports"
)

// DefaultUTCPProvider is the provider name used when none is given.
const DefaultUTCPProvider = "dkod"

// UTCPContextKey is the handler context entry holding the caller's
// context.Context. UTCPResultKey holds the tool's JSON string result.
const (
	UTCPContextKey = "context"
	UTCPResultKey  = "result"
)

// sessionTransport serves dkod tools in-process and hands every other
// provider to the transport it replaced.
type sessionTransport struct {
	inner     repository.ClientTransport
	providers map[string][]tools.Tool
}

func (t *sessionTransport) owned(prov base.Provider) ([]tools.Tool, bool) {
	p, ok := prov.(*cli.CliProvider)
	if !ok {
		return nil, false
	}
	list, ok := t.providers[p.Name]
	return list, ok
}

func (t *sessionTransport) RegisterToolProvider(ctx context.Context, prov base.Provider) ([]tools.Tool, error) {
	if list, ok := t.owned(prov); ok {
		return list, nil
	}
	if t.inner != nil {
		return t.inner.RegisterToolProvider(ctx, prov)
	}
	return nil, fmt.Errorf("dkod: no tools registered for provider %T", prov)
}

func (t *sessionTransport) DeregisterToolProvider(ctx context.Context, prov base.Provider) error {
	if _, ok := t.owned(prov); ok {
		delete(t.providers, prov.(*cli.CliProvider).Name)
		return nil
	}
	if t.inner != nil {
		return t.inner.DeregisterToolProvider(ctx, prov)
	}
	return nil
}

func (t *sessionTransport) CallTool(ctx context.Context, toolName string, args map[string]any, prov base.Provider, l *string) (any, error) {
	list, ok := t.owned(prov)
	if !ok {
		if t.inner != nil {
			return t.inner.CallTool(ctx, toolName, args, prov, l)
		}
		return nil, fmt.Errorf("dkod: unsupported provider %T", prov)
	}
	for _, tool := range list {
		if tool.Name == toolName || strings.HasSuffix(tool.Name, "."+toolName) {
			out, err := tool.Handler(map[string]interface{}{UTCPContextKey: ctx}, args)
			if err != nil {
				return nil, err
			}
			return out[UTCPResultKey], nil
		}
	}
	return nil, &UnknownToolError{Name: toolName}
}

func (t *sessionTransport) CallToolStream(ctx context.Context, toolName string, args map[string]any, prov base.Provider) (transports.StreamResult, error) {
	if _, ok := t.owned(prov); ok {
		return nil, fmt.Errorf("dkod: tool %s does not stream", toolName)
	}
	if t.inner != nil {
		return t.inner.CallToolStream(ctx, toolName, args, prov)
	}
	return nil, fmt.Errorf("dkod: unsupported provider %T", prov)
}

// AsUTCPTools returns the six tools as UTCP tools named "<provider>.<tool>"
// whose handlers dispatch against session. A handler reads its
// context.Context from hctx[UTCPContextKey] and returns the result under
// UTCPResultKey.
func AsUTCPTools(session ToolSession, provider string) []tools.Tool {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		provider = DefaultUTCPProvider
	}
	out := make([]tools.Tool, 0, len(registry))
	for _, d := range Tools() {
		name := d.Name
		schema := d.InputSchema.Map()
		props, _ := schema["properties"].(map[string]any)
		out = append(out, tools.Tool{
			Name:        provider + "." + name,
			Description: d.Description,
			Provider: &base.BaseProvider{
				Name:         provider,
				ProviderType: base.ProviderCLI,
			},
			Inputs: tools.ToolInputOutputSchema{
				Type:       "object",
				Properties: props,
				Required:   d.InputSchema.Required,
			},
			Outputs: tools.ToolInputOutputSchema{
				Type: "string",
			},
			Handler: tools.ToolHandler(func(hctx map[string]interface{}, inputs map[string]interface{}) (map[string]interface{}, error) {
				ctx, _ := hctx[UTCPContextKey].(context.Context)
				if ctx == nil {
					ctx = context.Background()
				}
				out, err := Dispatch(ctx, session, name, inputs)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{UTCPResultKey: out}, nil
			}),
		})
	}
	return out
}

// RegisterAsUTCPProvider installs the dkod tools on client under provider.
// An in-process transport is placed in front of the client's CLI transport
// so calls reach session directly.
func RegisterAsUTCPProvider(ctx context.Context, client utcp.UtcpClientInterface, session ToolSession, provider string) error {
	if client == nil {
		return fmt.Errorf("dkod: utcp client is nil")
	}
	if session == nil {
		return fmt.Errorf("dkod: session is nil")
	}
	provider = strings.TrimSpace(provider)
	if provider == "" {
		provider = DefaultUTCPProvider
	}

	transportsMap := client.GetTransports()
	if transportsMap == nil {
		return fmt.Errorf("dkod: utcp client has no transports")
	}
	key := string(base.ProviderCLI)
	shim, ok := transportsMap[key].(*sessionTransport)
	if !ok {
		shim = &sessionTransport{inner: transportsMap[key]}
		transportsMap[key] = shim
	}
	if shim.providers == nil {
		shim.providers = make(map[string][]tools.Tool)
	}
	shim.providers[provider] = AsUTCPTools(session, provider)

	_, err := client.RegisterToolProvider(ctx, &cli.CliProvider{
		BaseProvider: base.BaseProvider{
			Name:         provider,
			ProviderType: base.ProviderCLI,
		},
	})
	return err
}
