package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	genai "github.com/google/generative-ai-go/genai"
	ollama "github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dkod-io/agent-sdk-go/src/models"
)

// scriptedChat replays canned chat-completion replies and records requests.
type scriptedChat struct {
	replies  []openai.ChatCompletionMessage
	requests []openai.ChatCompletionRequest
	err      error
}

func (s *scriptedChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	req.Messages = append([]openai.ChatCompletionMessage(nil), req.Messages...)
	s.requests = append(s.requests, req)
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	if len(s.replies) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("script exhausted")
	}
	msg := s.replies[0]
	s.replies = s.replies[1:]
	reason := openai.FinishReasonStop
	if len(msg.ToolCalls) > 0 {
		reason = openai.FinishReasonToolCalls
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: msg, FinishReason: reason}}}, nil
}

func openAIToolCall(id, name, args string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       id,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func TestRunOpenAIDispatchesToolCalls(t *testing.T) {
	session := startSession(t)
	chat := &scriptedChat{replies: []openai.ChatCompletionMessage{
		openAIToolCall("call_1", "search_codebase", `{"query":"parse_config"}`),
		{Role: openai.ChatMessageRoleAssistant, Content: "Found it."},
	}}

	tr, err := RunOpenAI(context.Background(), Config{}, chat, session, "Where is parse_config?")
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Turns)
	assert.Equal(t, 1, tr.ToolCalls)
	assert.Equal(t, "Found it.", tr.FinalText)

	require.Len(t, chat.requests, 2)
	first := chat.requests[0]
	assert.Equal(t, models.DefaultModels[models.ProviderOpenAI], first.Model)
	assert.Len(t, first.Tools, 6)
	assert.Equal(t, openai.ChatMessageRoleSystem, first.Messages[0].Role)
	assert.Equal(t, DefaultSystemPrompt, first.Messages[0].Content)

	second := chat.requests[1].Messages
	require.Len(t, second, 4)
	result := second[3]
	assert.Equal(t, openai.ChatMessageRoleTool, result.Role)
	assert.Equal(t, "call_1", result.ToolCallID)
	assert.Equal(t, "parse_config", gjson.Get(result.Content, "symbols.0.name").String())
}

func TestRunOpenAIReportsBadArguments(t *testing.T) {
	session := startSession(t)
	chat := &scriptedChat{replies: []openai.ChatCompletionMessage{
		openAIToolCall("call_1", "dkod_context", `{"query":"x","depth":"full"}`),
		{Role: openai.ChatMessageRoleAssistant, Content: "Sorry."},
	}}

	tr, err := RunOpenAI(context.Background(), Config{Model: "gpt-4.1"}, chat, session, "task")
	require.NoError(t, err)
	assert.Equal(t, 1, tr.ToolErrors)
	assert.Equal(t, "gpt-4.1", chat.requests[0].Model)
	assert.Contains(t, chat.requests[1].Messages[3].Content, "Error: ")
	assert.Contains(t, chat.requests[1].Messages[3].Content, "CALL_GRAPH")
}

func TestRunOpenAIErrors(t *testing.T) {
	session := startSession(t)
	boom := errors.New("rate limited")
	_, err := RunOpenAI(context.Background(), Config{}, &scriptedChat{err: boom}, session, "task")
	require.ErrorIs(t, err, boom)

	_, err = RunOpenAI(context.Background(), Config{}, nil, session, "task")
	assert.Error(t, err)

	loop := openAIToolCall("call_1", "dkod_session_status", `{}`)
	tr, err := RunOpenAI(context.Background(), Config{MaxTurns: 2},
		&scriptedChat{replies: []openai.ChatCompletionMessage{loop, loop, loop}}, session, "task")
	require.ErrorIs(t, err, ErrTurnLimit)
	assert.Equal(t, 2, tr.ToolCalls)
}

// scriptedGemini replays canned Gemini candidates and records sent parts.
type scriptedGemini struct {
	replies [][]genai.Part
	sent    [][]genai.Part
}

func (s *scriptedGemini) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	s.sent = append(s.sent, parts)
	if len(s.replies) == 0 {
		return nil, errors.New("script exhausted")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: "model", Parts: reply},
	}}}, nil
}

func TestRunGeminiDispatchesFunctionCalls(t *testing.T) {
	session := startSession(t)
	chat := &scriptedGemini{replies: [][]genai.Part{
		{genai.FunctionCall{Name: "dkod_read_file", Args: map[string]any{"path": "src/config.rs"}}},
		{genai.FunctionCall{Name: "dkod_read_file", Args: map[string]any{"path": "missing.rs"}}},
		{genai.Text("Done.")},
	}}

	tr, err := RunGemini(context.Background(), Config{}, chat, session, "read the config")
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Turns)
	assert.Equal(t, 2, tr.ToolCalls)
	assert.Equal(t, 1, tr.ToolErrors)
	assert.Equal(t, "Done.", tr.FinalText)

	require.Len(t, chat.sent, 3)
	assert.Equal(t, []genai.Part{genai.Text("read the config")}, chat.sent[0])

	read, isResponse := chat.sent[1][0].(genai.FunctionResponse)
	require.True(t, isResponse)
	assert.Equal(t, "dkod_read_file", read.Name)
	assert.Contains(t, read.Response["result"], "fn parse_config")

	failed := chat.sent[2][0].(genai.FunctionResponse)
	assert.Contains(t, failed.Response["error"], "not found")
}

type blockedGemini struct{}

func (blockedGemini) SendMessage(context.Context, ...genai.Part) (*genai.GenerateContentResponse, error) {
	return &genai.GenerateContentResponse{}, nil
}

func TestRunGeminiEmptyResponse(t *testing.T) {
	_, err := RunGemini(context.Background(), Config{}, blockedGemini{}, startSession(t), "task")
	assert.ErrorContains(t, err, "empty response")
}

func TestNewGeminiChatAttachesTools(t *testing.T) {
	client, err := models.NewGeminiClient(context.Background(), "gm-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.NotNil(t, NewGeminiChat(client, Config{MaxTokens: 1024}))
}

// scriptedOllama answers each chat request with one canned message.
type scriptedOllama struct {
	replies  []ollama.Message
	requests []*ollama.ChatRequest
}

func (s *scriptedOllama) Chat(_ context.Context, req *ollama.ChatRequest, fn ollama.ChatResponseFunc) error {
	copied := *req
	copied.Messages = append([]ollama.Message(nil), req.Messages...)
	s.requests = append(s.requests, &copied)
	if len(s.replies) == 0 {
		return errors.New("script exhausted")
	}
	msg := s.replies[0]
	s.replies = s.replies[1:]
	return fn(ollama.ChatResponse{Message: msg, Done: true})
}

func TestRunOllamaDispatchesToolCalls(t *testing.T) {
	session := startSession(t)
	chat := &scriptedOllama{replies: []ollama.Message{
		{Role: "assistant", ToolCalls: []ollama.ToolCall{{Function: ollama.ToolCallFunction{
			Name:      "dkod_write_file",
			Arguments: ollama.ToolCallFunctionArguments{"path": "src/new.rs", "content": "fn fresh() {}\n"},
		}}}},
		{Role: "assistant", Content: "Wrote it."},
	}}

	var results []string
	tr, err := RunOllama(context.Background(), Config{
		MaxTokens:    512,
		OnToolResult: func(_, result string, _ bool) { results = append(results, result) },
	}, chat, session, "add fresh")
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Turns)
	assert.Equal(t, "Wrote it.", tr.FinalText)
	require.Len(t, results, 1)
	assert.Equal(t, "fresh", gjson.Get(results[0], "detected_changes.0.symbol_name").String())

	first := chat.requests[0]
	assert.Equal(t, models.DefaultModels[models.ProviderOllama], first.Model)
	require.NotNil(t, first.Stream)
	assert.False(t, *first.Stream)
	assert.Len(t, first.Tools, 6)
	assert.EqualValues(t, 512, first.Options["num_predict"])

	history := chat.requests[1].Messages
	require.Len(t, history, 4)
	assert.Equal(t, "tool", history[3].Role)
	assert.Equal(t, "dkod_write_file", history[3].ToolName)
}

func TestCallToolCountsCalls(t *testing.T) {
	session := startSession(t)
	tr := &Transcript{}
	cfg := Config{}.withDefaults()
	out, isError := callTool(context.Background(), cfg, session, tr, "dkod_session_status", json.RawMessage(`{}`))
	assert.False(t, isError)
	assert.Equal(t, 1, tr.ToolCalls)
	assert.NotEmpty(t, gjson.Get(out, "session_id").String())
}
