package dkod

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestToolsRegistry(t *testing.T) {
	want := map[string][]string{
		ToolConnect:       {"codebase", "intent"},
		ToolContext:       {"query"},
		ToolReadFile:      {"path"},
		ToolWriteFile:     {"path", "content"},
		ToolSubmit:        {"intent", "changes"},
		ToolSessionStatus: {},
	}

	list := Tools()
	require.Len(t, list, 6)
	for _, d := range list {
		required, ok := want[d.Name]
		require.True(t, ok, "unexpected tool %s", d.Name)
		assert.Equal(t, "object", d.InputSchema.Type, d.Name)
		assert.Equal(t, required, d.InputSchema.Required, d.Name)
		assert.Equal(t, []string{CodeExecutionCaller}, d.AllowedCallers, d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
		for _, field := range d.InputSchema.Required {
			assert.Contains(t, d.InputSchema.Properties, field, "%s.%s", d.Name, field)
		}
	}
}

func TestToolsOrderIsStable(t *testing.T) {
	first := Tools()
	first[0].Name = "mutated"
	first[1].InputSchema.Required[0] = "mutated"
	first[1].InputSchema.Properties["depth"] = Property{Type: "mutated"}

	second := Tools()
	names := make([]string, len(second))
	for i, d := range second {
		names[i] = d.Name
	}
	assert.Equal(t, []string{ToolConnect, ToolContext, ToolReadFile, ToolWriteFile, ToolSubmit, ToolSessionStatus}, names)
	assert.Equal(t, []string{"query"}, second[1].InputSchema.Required)
	assert.Equal(t, "string", second[1].InputSchema.Properties["depth"].Type)
}

func TestContextSchemaAdvertisesDepthEnum(t *testing.T) {
	d, ok := LookupTool(ToolContext)
	require.True(t, ok)
	assert.Equal(t, []string{"SIGNATURES", "FULL", "CALL_GRAPH"}, d.InputSchema.Properties["depth"].Enum)
	assert.Equal(t, "integer", d.InputSchema.Properties["max_tokens"].Type)
}

func TestSubmitSchemaDescribesChangeItems(t *testing.T) {
	d, ok := LookupTool("submit_changes")
	require.True(t, ok)
	assert.Equal(t, ToolSubmit, d.Name)
	items := d.InputSchema.Properties["changes"].Items
	require.NotNil(t, items)
	assert.Equal(t, []string{"type", "symbol_name", "file_path", "new_source", "rationale"}, items.Required)
	assert.Len(t, items.Properties["type"].Enum, 6)
}

func TestLookupTool(t *testing.T) {
	for alias, canonical := range Aliases() {
		d, ok := LookupTool(alias)
		require.True(t, ok, alias)
		assert.Equal(t, canonical, d.Name)
	}
	_, ok := LookupTool("nope")
	assert.False(t, ok)
}

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest()
	require.NoError(t, err)
	require.True(t, json.Valid(data))

	parsed := gjson.ParseBytes(data)
	require.Equal(t, int64(6), parsed.Get("#").Int())
	assert.Equal(t, ToolConnect, parsed.Get("0.name").String())
	assert.Equal(t, CodeExecutionCaller, parsed.Get("3.allowed_callers.0").String())
	assert.Equal(t, "query", parsed.Get("1.input_schema.required.0").String())
	assert.True(t, parsed.Get("5.input_schema.required").IsArray())
}

func TestSessionToolsInvokeThroughDispatch(t *testing.T) {
	fake := newFakeSession()
	list := SessionTools(fake)
	require.Len(t, list, 6)

	var status Tool
	for _, tool := range list {
		spec := tool.Spec()
		assert.Equal(t, "object", spec.InputSchema["type"])
		if spec.Name == ToolSessionStatus {
			status = tool
		}
	}
	require.NotNil(t, status)

	resp, err := status.Invoke(context.Background(), ToolRequest{})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", gjson.Get(resp.Content, "session_id").String())
	assert.Equal(t, ToolSessionStatus, resp.Metadata["tool"])
	assert.Equal(t, []string{"status"}, fake.callNames())
}
