package dkod

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// CodeExecutionCaller is the caller tag that lets the tools be invoked from
// the model's code-execution sandbox.
const CodeExecutionCaller = "code_execution_20260120"

// Canonical tool names.
const (
	ToolConnect       = "dkod_connect"
	ToolContext       = "dkod_context"
	ToolReadFile      = "dkod_read_file"
	ToolWriteFile     = "dkod_write_file"
	ToolSubmit        = "dkod_submit"
	ToolSessionStatus = "dkod_session_status"
)

// Property is a JSON-Schema fragment describing one argument.
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

// InputSchema is the object schema of a tool's argument bag.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Map renders the schema as a generic JSON object, the shape most provider
// SDKs accept.
func (s InputSchema) Map() map[string]any {
	data, _ := json.Marshal(s)
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	return out
}

// ToolDescriptor is everything an LLM tool-calling API needs to offer a tool.
type ToolDescriptor struct {
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	InputSchema    InputSchema `json:"input_schema"`
	AllowedCallers []string    `json:"allowed_callers"`
}

func (p Property) clone() Property {
	out := p
	out.Enum = slices.Clone(p.Enum)
	out.Required = slices.Clone(p.Required)
	if p.Items != nil {
		items := p.Items.clone()
		out.Items = &items
	}
	out.Properties = cloneProperties(p.Properties)
	return out
}

func cloneProperties(in map[string]Property) map[string]Property {
	if in == nil {
		return nil
	}
	out := make(map[string]Property, len(in))
	for k, v := range in {
		out[k] = v.clone()
	}
	return out
}

func (d ToolDescriptor) clone() ToolDescriptor {
	out := d
	out.InputSchema.Properties = cloneProperties(d.InputSchema.Properties)
	out.InputSchema.Required = slices.Clone(d.InputSchema.Required)
	out.AllowedCallers = slices.Clone(d.AllowedCallers)
	return out
}

func enumValues[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

var changeItemSchema = Property{
	Type: "object",
	Properties: map[string]Property{
		"type":          {Type: "string", Enum: enumValues(ChangeTypes), Description: "Kind of change."},
		"symbol_name":   {Type: "string", Description: "Name of the symbol being changed."},
		"file_path":     {Type: "string", Description: "Repository-relative path of the file containing the symbol."},
		"old_symbol_id": {Type: "string", Description: "Id of the symbol being replaced, as returned by dkod_context."},
		"new_source":    {Type: "string", Description: "Complete new source of the symbol."},
		"rationale":     {Type: "string", Description: "Why the change is needed."},
	},
	Required: []string{"type", "symbol_name", "file_path", "new_source", "rationale"},
}

// registry is built once and never mutated; Tools hands out copies.
var registry = []ToolDescriptor{
	{
		Name: ToolConnect,
		Description: "Open an isolated session workspace on a dkod codebase. Changes made in the session stay " +
			"invisible to other sessions until merged. Response is JSON: {session_id, changeset_id, " +
			"codebase_version, summary: {languages, total_symbols, total_files}}.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"codebase": {Type: "string", Description: "Codebase identifier, for example 'org/repo'."},
				"intent":   {Type: "string", Description: "What this agent session intends to accomplish."},
			},
			Required: []string{"codebase", "intent"},
		},
		AllowedCallers: []string{CodeExecutionCaller},
	},
	{
		Name: ToolContext,
		Description: "Query semantic context from the codebase. Returns symbols matching the query with " +
			"signatures, file locations and call graph edges, reflecting this session's workspace. Response is " +
			"JSON: {symbols: [{id, name, qualified_name, kind, file_path, signature, source, caller_ids, " +
			"callee_ids}], call_graph, dependencies, estimated_tokens}.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"query": {Type: "string", Description: "Natural language or structured query, for example 'symbol:parse_config'."},
				"depth": {
					Type:        "string",
					Enum:        enumValues(ContextDepths),
					Description: "SIGNATURES: names and types only. FULL: complete source. CALL_GRAPH: signatures plus caller/callee edges. Defaults to FULL.",
				},
				"include_tests":        {Type: "boolean", Description: "Include test symbols. Defaults to false."},
				"include_dependencies": {Type: "boolean", Description: "Include external dependencies. Defaults to false."},
				"max_tokens":           {Type: "integer", Description: "Cap on response size in tokens. Defaults to 8000."},
			},
			Required: []string{"query"},
		},
		AllowedCallers: []string{CodeExecutionCaller},
	},
	{
		Name: ToolReadFile,
		Description: "Read a file from this session's workspace. Returns the modified version if the file " +
			"was changed in this session, otherwise the base version. Response is JSON: {content, hash, " +
			"modified_in_session}.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string", Description: "Repository-relative file path."},
			},
			Required: []string{"path"},
		},
		AllowedCallers: []string{CodeExecutionCaller},
	},
	{
		Name: ToolWriteFile,
		Description: "Write a file to this session's workspace overlay. The change is only visible to this " +
			"session until submitted. Response is JSON: {new_hash, detected_changes: [{symbol_name, change_type}]}.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path":    {Type: "string", Description: "Repository-relative file path."},
				"content": {Type: "string", Description: "Full new file content."},
			},
			Required: []string{"path", "content"},
		},
		AllowedCallers: []string{CodeExecutionCaller},
	},
	{
		Name: ToolSubmit,
		Description: "Submit code changes as one semantic changeset for verification and merge. Response is " +
			"JSON: {status: ACCEPTED|REJECTED|CONFLICT, changeset_id, new_version, errors: [{message, " +
			"symbol_id, file_path}]}.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"intent":  {Type: "string", Description: "What this changeset accomplishes."},
				"changes": {Type: "array", Items: &changeItemSchema, Description: "Changes to submit."},
			},
			Required: []string{"intent", "changes"},
		},
		AllowedCallers: []string{CodeExecutionCaller},
	},
	{
		Name: ToolSessionStatus,
		Description: "Get the current state of this session's workspace. Response is JSON: {session_id, " +
			"base_commit, files_modified, symbols_modified, overlay_size_bytes, active_other_sessions}.",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
			Required:   []string{},
		},
		AllowedCallers: []string{CodeExecutionCaller},
	},
}

// aliases maps legacy tool names to their canonical replacement.
var aliases = map[string]string{
	"connect_codebase": ToolConnect,
	"search_codebase":  ToolContext,
	"read_file":        ToolReadFile,
	"write_file":       ToolWriteFile,
	"submit_changes":   ToolSubmit,
	"session_status":   ToolSessionStatus,
}

var registryIndex = func() map[string]int {
	idx := make(map[string]int, len(registry))
	for i, d := range registry {
		idx[d.Name] = i
	}
	return idx
}()

// Tools returns the six tool descriptors in a fixed order.
func Tools() []ToolDescriptor {
	out := make([]ToolDescriptor, len(registry))
	for i, d := range registry {
		out[i] = d.clone()
	}
	return out
}

// Aliases returns a copy of the legacy-name table.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}

// resolveToolName applies the alias table first and the canonical names
// second. The boolean is false when neither matches.
func resolveToolName(name string) (string, bool) {
	if canonical, ok := aliases[name]; ok {
		return canonical, true
	}
	if _, ok := registryIndex[name]; ok {
		return name, true
	}
	return "", false
}

// LookupTool resolves name (canonical or legacy) to its descriptor.
func LookupTool(name string) (ToolDescriptor, bool) {
	canonical, ok := resolveToolName(name)
	if !ok {
		return ToolDescriptor{}, false
	}
	return registry[registryIndex[canonical]].clone(), true
}

// GenerateManifest renders Tools as the indented JSON written to dkod-tools.json.
func GenerateManifest() ([]byte, error) {
	data, err := json.MarshalIndent(Tools(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("dkod: encode tool manifest: %w", err)
	}
	return data, nil
}

// ToolSpec describes how a tool is presented to a model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolRequest is one invocation of a Tool.
type ToolRequest struct {
	SessionID string
	Arguments map[string]any
}

// ToolResponse carries the JSON text produced by a tool.
type ToolResponse struct {
	Content  string
	Metadata map[string]string
}

// Tool exposes structured metadata and an invocation handler.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

// sessionTool binds one descriptor to a session.
type sessionTool struct {
	descriptor ToolDescriptor
	session    ToolSession
}

// SessionTools returns the six tools bound to session, in registry order.
func SessionTools(session ToolSession) []Tool {
	out := make([]Tool, 0, len(registry))
	for _, d := range Tools() {
		out = append(out, &sessionTool{descriptor: d, session: session})
	}
	return out
}

func (t *sessionTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        t.descriptor.Name,
		Description: t.descriptor.Description,
		InputSchema: t.descriptor.InputSchema.Map(),
	}
}

func (t *sessionTool) Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	out, err := Dispatch(ctx, t.session, t.descriptor.Name, req.Arguments)
	if err != nil {
		return ToolResponse{}, err
	}
	return ToolResponse{
		Content:  out,
		Metadata: map[string]string{"tool": t.descriptor.Name},
	}, nil
}
