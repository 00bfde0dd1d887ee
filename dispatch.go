package dkod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// ToolSession is the part of a Session the tool router drives. *Session
// implements it; tests substitute fakes.
type ToolSession interface {
	Connect(ctx context.Context, codebase, intent string) (*ConnectResult, error)
	Context(ctx context.Context, q ContextQuery) (*ContextResult, error)
	FileRead(ctx context.Context, path string) (*FileReadResult, error)
	FileWrite(ctx context.Context, path, content string) (*FileWriteResult, error)
	Submit(ctx context.Context, changes []Change, intent string) (*SubmitResult, error)
	Status(ctx context.Context) (*SessionStatus, error)
}

var _ ToolSession = (*Session)(nil)

type dispatchOptions struct {
	logger *slog.Logger
}

// DispatchOption customises one Dispatch call.
type DispatchOption func(*dispatchOptions)

// WithDispatchLogger sends dispatch logs to logger instead of slog.Default().
func WithDispatchLogger(logger *slog.Logger) DispatchOption {
	return func(o *dispatchOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Dispatch executes one tool call against session and returns the operation
// result as JSON. name may be canonical or a legacy alias. Validation failures
// are *UnknownToolError, *MissingArgumentError or *InvalidArgumentError and
// happen before any session call; session errors are returned as is.
func Dispatch(ctx context.Context, session ToolSession, name string, args map[string]any, opts ...DispatchOption) (string, error) {
	o := dispatchOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	canonical, ok := resolveToolName(name)
	if !ok {
		o.logger.Debug("dkod unknown tool", "tool", name)
		return "", &UnknownToolError{Name: name}
	}
	if canonical != name {
		o.logger.Debug("dkod tool alias resolved", "alias", name, "tool", canonical)
	} else {
		o.logger.Debug("dkod tool dispatch", "tool", canonical)
	}
	a := argBag{tool: canonical, args: args}

	var (
		result any
		err    error
	)
	switch canonical {
	case ToolConnect:
		codebase, err := a.requiredString("codebase")
		if err != nil {
			return "", err
		}
		intent, err := a.requiredString("intent")
		if err != nil {
			return "", err
		}
		result, err = session.Connect(ctx, codebase, intent)
		if err != nil {
			return "", err
		}
	case ToolContext:
		q, err := a.contextQuery()
		if err != nil {
			return "", err
		}
		result, err = session.Context(ctx, q)
		if err != nil {
			return "", err
		}
	case ToolReadFile:
		path, err := a.requiredString("path")
		if err != nil {
			return "", err
		}
		result, err = session.FileRead(ctx, path)
		if err != nil {
			return "", err
		}
	case ToolWriteFile:
		path, err := a.requiredString("path")
		if err != nil {
			return "", err
		}
		content, err := a.requiredString("content")
		if err != nil {
			return "", err
		}
		result, err = session.FileWrite(ctx, path, content)
		if err != nil {
			return "", err
		}
	case ToolSubmit:
		intent, err := a.requiredString("intent")
		if err != nil {
			return "", err
		}
		changes, err := a.changes("changes")
		if err != nil {
			return "", err
		}
		result, err = session.Submit(ctx, changes, intent)
		if err != nil {
			return "", err
		}
	case ToolSessionStatus:
		result, err = session.Status(ctx)
		if err != nil {
			return "", err
		}
	}
	return encodeResult(result)
}

// DispatchJSON is Dispatch for a raw JSON argument object, the form most
// model SDKs deliver tool input in.
func DispatchJSON(ctx context.Context, session ToolSession, name string, input json.RawMessage, opts ...DispatchOption) (string, error) {
	args := map[string]any{}
	if trimmed := bytes.TrimSpace(input); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return "", &InvalidArgumentError{Field: "arguments", Value: string(input), Allowed: []string{"JSON object"}}
		}
	}
	return Dispatch(ctx, session, name, args, opts...)
}

// encodeResult keeps struct field order and leaves <, > and & unescaped so
// source code stays readable to the model.
func encodeResult(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("dkod: encode tool result: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// argBag decodes the loosely typed arguments of one tool call.
type argBag struct {
	tool string
	args map[string]any
}

func (a argBag) lookup(field string) (any, bool) {
	v, ok := a.args[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (a argBag) requiredString(field string) (string, error) {
	v, ok := a.lookup(field)
	if !ok {
		return "", &MissingArgumentError{Tool: a.tool, Field: field}
	}
	return asString(field, v)
}

func (a argBag) contextQuery() (ContextQuery, error) {
	q := ContextQuery{Depth: DepthFull, MaxTokens: DefaultMaxTokens}
	var err error
	if q.Query, err = a.requiredString("query"); err != nil {
		return q, err
	}
	if v, ok := a.lookup("depth"); ok {
		if q.Depth, err = asDepth("depth", v); err != nil {
			return q, err
		}
	}
	if v, ok := a.lookup("include_tests"); ok {
		if q.IncludeTests, err = asBool("include_tests", v); err != nil {
			return q, err
		}
	}
	if v, ok := a.lookup("include_dependencies"); ok {
		if q.IncludeDependencies, err = asBool("include_dependencies", v); err != nil {
			return q, err
		}
	}
	if v, ok := a.lookup("max_tokens"); ok {
		if q.MaxTokens, err = asPositiveInt("max_tokens", v); err != nil {
			return q, err
		}
	}
	return q, nil
}

func (a argBag) changes(field string) ([]Change, error) {
	v, ok := a.lookup(field)
	if !ok {
		return nil, &MissingArgumentError{Tool: a.tool, Field: field}
	}
	var items []map[string]any
	switch list := v.(type) {
	case []any:
		items = make([]map[string]any, 0, len(list))
		for i, raw := range list {
			m, ok := raw.(map[string]any)
			if !ok {
				return nil, &InvalidArgumentError{Field: fmt.Sprintf("%s[%d]", field, i), Value: raw, Allowed: []string{"object"}}
			}
			items = append(items, m)
		}
	case []map[string]any:
		items = list
	case []Change:
		return list, nil
	default:
		return nil, &InvalidArgumentError{Field: field, Value: v, Allowed: []string{"array"}}
	}

	out := make([]Change, 0, len(items))
	for i, item := range items {
		c, err := decodeChange(a.tool, fmt.Sprintf("%s[%d]", field, i), item)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeChange(tool, prefix string, item map[string]any) (Change, error) {
	inner := argBag{tool: tool, args: item}
	str := func(name string) (string, error) {
		v, ok := inner.lookup(name)
		if !ok {
			return "", &MissingArgumentError{Tool: tool, Field: prefix + "." + name}
		}
		return asString(prefix+"."+name, v)
	}

	var c Change
	rawType, ok := inner.lookup("type")
	if !ok {
		return c, &MissingArgumentError{Tool: tool, Field: prefix + ".type"}
	}
	ct, err := asChangeType(prefix+".type", rawType)
	if err != nil {
		return c, err
	}
	c.Type = ct
	if c.SymbolName, err = str("symbol_name"); err != nil {
		return c, err
	}
	if c.FilePath, err = str("file_path"); err != nil {
		return c, err
	}
	if c.NewSource, err = str("new_source"); err != nil {
		return c, err
	}
	if c.Rationale, err = str("rationale"); err != nil {
		return c, err
	}
	if v, ok := inner.lookup("old_symbol_id"); ok {
		id, err := asString(prefix+".old_symbol_id", v)
		if err != nil {
			return c, err
		}
		c.OldSymbolID = &id
	}
	return c, nil
}

func asString(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", &InvalidArgumentError{Field: field, Value: v, Allowed: []string{"string"}}
	}
	return s, nil
}

func asBool(field string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, &InvalidArgumentError{Field: field, Value: v, Allowed: []string{"boolean"}}
	}
	return b, nil
}

func asDepth(field string, v any) (ContextDepth, error) {
	allowed := enumValues(ContextDepths)
	s, ok := v.(string)
	if !ok {
		return "", &InvalidArgumentError{Field: field, Value: v, Allowed: allowed}
	}
	d, ok := ParseContextDepth(s)
	if !ok {
		return "", &InvalidArgumentError{Field: field, Value: s, Allowed: allowed}
	}
	return d, nil
}

func asChangeType(field string, v any) (ChangeType, error) {
	allowed := enumValues(ChangeTypes)
	s, ok := v.(string)
	if !ok {
		return "", &InvalidArgumentError{Field: field, Value: v, Allowed: allowed}
	}
	c, ok := ParseChangeType(s)
	if !ok {
		return "", &InvalidArgumentError{Field: field, Value: s, Allowed: allowed}
	}
	return c, nil
}

// asPositiveInt accepts JSON numbers with no fractional part and numeric
// strings such as "4000". Values are capped at MaxInt32 so they fit an int on
// every platform as well as the uint32 wire field.
func asPositiveInt(field string, v any) (int, error) {
	invalid := &InvalidArgumentError{Field: field, Value: v, Allowed: []string{"integer between 1 and 2147483647"}}
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		if uint64(x) > math.MaxInt32 {
			return 0, invalid
		}
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt32 {
			return 0, invalid
		}
		n = int64(x)
	case float32:
		f := float64(x)
		if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
			return 0, invalid
		}
		n = int64(f)
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x > math.MaxInt32 || x < math.MinInt32 {
			return 0, invalid
		}
		n = int64(x)
	case json.Number:
		parsed, err := strconv.ParseInt(x.String(), 10, 64)
		if err != nil {
			return 0, invalid
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, invalid
		}
		n = parsed
	default:
		return 0, invalid
	}
	if n <= 0 || n > math.MaxInt32 {
		return 0, invalid
	}
	return int(n), nil
}
