package dkod

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	utcp "github.com/universal-tool-calling-protocol/go-utcp"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/base"
)

func TestAsUTCPTools(t *testing.T) {
	fake := newFakeSession()
	list := AsUTCPTools(fake, "")
	require.Len(t, list, 6)

	byName := map[string]int{}
	for i, tool := range list {
		byName[tool.Name] = i
		require.NotNil(t, tool.Provider)
		assert.Equal(t, base.ProviderCLI, tool.Provider.Type())
		assert.Equal(t, "object", tool.Inputs.Type)
	}
	idx, ok := byName["dkod.dkod_context"]
	require.True(t, ok)
	assert.Equal(t, []string{"query"}, list[idx].Inputs.Required)
	assert.Contains(t, list[idx].Inputs.Properties, "depth")

	hctx := map[string]interface{}{UTCPContextKey: context.Background()}
	out, err := list[idx].Handler(hctx, map[string]interface{}{"query": "parse_config"})
	require.NoError(t, err)
	text, ok := out[UTCPResultKey].(string)
	require.True(t, ok)
	assert.Equal(t, "parse_config", gjson.Get(text, "symbols.0.name").String())

	_, err = list[idx].Handler(hctx, map[string]interface{}{})
	var missing *MissingArgumentError
	require.ErrorAs(t, err, &missing)
}

func TestUTCPHandlerWithoutContext(t *testing.T) {
	fake := newFakeSession()
	for _, tool := range AsUTCPTools(fake, "repo") {
		if tool.Name != "repo.dkod_session_status" {
			continue
		}
		out, err := tool.Handler(nil, map[string]interface{}{})
		require.NoError(t, err)
		assert.Equal(t, "sess-1", gjson.Get(out[UTCPResultKey].(string), "session_id").String())
		return
	}
	t.Fatal("repo.dkod_session_status not found")
}

func TestRegisterAsUTCPProvider(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSession()

	client, err := utcp.NewUTCPClient(ctx, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, RegisterAsUTCPProvider(ctx, client, fake, "repo"))

	out, err := client.CallTool(ctx, "repo.dkod_session_status", map[string]any{})
	require.NoError(t, err)
	text, ok := out.(string)
	require.True(t, ok, "expected JSON string, got %#v", out)
	assert.Equal(t, "sess-1", gjson.Get(text, "session_id").String())
	assert.Equal(t, []string{"status"}, fake.callNames())
}

func TestRegisterAsUTCPProviderRejectsNil(t *testing.T) {
	assert.Error(t, RegisterAsUTCPProvider(context.Background(), nil, newFakeSession(), "repo"))
}
