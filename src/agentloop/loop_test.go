package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	dkod "github.com/dkod-io/agent-sdk-go"
	"github.com/dkod-io/agent-sdk-go/src/mockserver"
)

// scriptedMessages replays canned assistant messages and records requests.
type scriptedMessages struct {
	replies  []string
	requests []anthropic.MessageNewParams
	err      error
}

func (s *scriptedMessages) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	s.requests = append(s.requests, params)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return nil, errors.New("script exhausted")
	}
	raw := s.replies[0]
	s.replies = s.replies[1:]
	var msg anthropic.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func assistant(stopReason string, content string) string {
	return `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5-20250929",` +
		`"stop_reason":"` + stopReason + `","stop_sequence":null,` +
		`"usage":{"input_tokens":1,"output_tokens":1},"content":` + content + `}`
}

func startSession(t *testing.T) *dkod.Session {
	t.Helper()
	srv := mockserver.New()
	srv.Start()
	t.Cleanup(srv.Stop)
	client := dkod.NewClient(mockserver.Target, mockserver.ValidToken, dkod.WithDialOptions(srv.DialOption()))
	session, err := client.Connect(context.Background(), "org/repo", "agent loop test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func marshalJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestRunDispatchesToolCalls(t *testing.T) {
	session := startSession(t)
	script := &scriptedMessages{replies: []string{
		assistant("tool_use", `[{"type":"text","text":"Looking up parse_config."},`+
			`{"type":"tool_use","id":"tu_1","name":"search_codebase","input":{"query":"parse_config","max_tokens":"2000"}}]`),
		assistant("end_turn", `[{"type":"text","text":"Found it in src/config.rs."}]`),
	}}

	var calls []string
	tr, err := Run(context.Background(), Config{
		Messages:   script,
		OnToolCall: func(name string, _ json.RawMessage) { calls = append(calls, name) },
	}, session, "Where is parse_config?")
	require.NoError(t, err)

	assert.Equal(t, 2, tr.Turns)
	assert.Equal(t, 1, tr.ToolCalls)
	assert.Zero(t, tr.ToolErrors)
	assert.Equal(t, "Found it in src/config.rs.", tr.FinalText)
	assert.Equal(t, []string{"search_codebase"}, calls)
	require.Len(t, script.requests, 2)

	first := marshalJSON(t, script.requests[0])
	assert.Equal(t, DefaultModel, gjson.Get(first, "model").String())
	assert.Equal(t, int64(DefaultMaxTokens), gjson.Get(first, "max_tokens").Int())
	assert.Equal(t, int64(6), gjson.Get(first, "tools.#").Int())

	second := marshalJSON(t, script.requests[1])
	result := gjson.Get(second, "messages.2.content.0")
	assert.Equal(t, "tool_result", result.Get("type").String())
	assert.Equal(t, "tu_1", result.Get("tool_use_id").String())
	assert.False(t, result.Get("is_error").Bool())
	payload := result.Get("content.0.text").String()
	assert.Equal(t, "parse_config", gjson.Get(payload, "symbols.0.name").String())
}

func TestRunReportsToolErrorsToModel(t *testing.T) {
	session := startSession(t)
	script := &scriptedMessages{replies: []string{
		assistant("tool_use", `[{"type":"tool_use","id":"tu_1","name":"dkod_context","input":{"query":"x","depth":"BOGUS"}},`+
			`{"type":"tool_use","id":"tu_2","name":"nope","input":{}}]`),
		assistant("end_turn", `[{"type":"text","text":"Sorry."}]`),
	}}

	var failures []string
	tr, err := Run(context.Background(), Config{
		Messages: script,
		OnToolResult: func(name, _ string, isError bool) {
			if isError {
				failures = append(failures, name)
			}
		},
	}, session, "task")
	require.NoError(t, err)
	assert.Equal(t, 2, tr.ToolErrors)
	assert.Equal(t, []string{"dkod_context", "nope"}, failures)

	second := marshalJSON(t, script.requests[1])
	results := gjson.Get(second, "messages.2.content")
	require.Equal(t, int64(2), results.Get("#").Int())
	assert.True(t, results.Get("0.is_error").Bool())
	assert.Contains(t, results.Get("0.content.0.text").String(), "depth")
	assert.Contains(t, results.Get("1.content.0.text").String(), `"nope"`)
}

func TestRunTurnLimit(t *testing.T) {
	session := startSession(t)
	toolTurn := assistant("tool_use", `[{"type":"tool_use","id":"tu_1","name":"dkod_session_status","input":{}}]`)
	script := &scriptedMessages{replies: []string{toolTurn, toolTurn, toolTurn}}

	tr, err := Run(context.Background(), Config{Messages: script, MaxTurns: 2}, session, "loop forever")
	require.ErrorIs(t, err, ErrTurnLimit)
	assert.Equal(t, 2, tr.Turns)
	assert.Equal(t, 2, tr.ToolCalls)
}

func TestRunAPIErrorAborts(t *testing.T) {
	session := startSession(t)
	boom := errors.New("overloaded")
	_, err := Run(context.Background(), Config{Messages: &scriptedMessages{err: boom}}, session, "task")
	require.ErrorIs(t, err, boom)
}

func TestRunRequiresMessages(t *testing.T) {
	_, err := Run(context.Background(), Config{}, startSession(t), "task")
	assert.Error(t, err)
}
