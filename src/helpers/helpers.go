package helpers

import (
	"fmt"
	"strings"

	dkod "github.com/dkod-io/agent-sdk-go"
)

// ParseFileFlags turns repeated path=content flags into a map. Entries
// without "=" or with an empty path are skipped.
func ParseFileFlags(raw []string) map[string]string {
	files := make(map[string]string)
	for _, pair := range raw {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		path := strings.TrimSpace(parts[0])
		if path == "" {
			continue
		}
		files[path] = parts[1]
	}
	if len(files) == 0 {
		return nil
	}
	return files
}

func ToolNames(tools []dkod.ToolDescriptor) string {
	if len(tools) == 0 {
		return "<none>"
	}
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	return strings.Join(names, ", ")
}

// FilterTools keeps the descriptors named in names, in registry order.
// Aliases are accepted. An empty names list keeps everything.
func FilterTools(tools []dkod.ToolDescriptor, names []string) ([]dkod.ToolDescriptor, error) {
	if len(names) == 0 {
		return tools, nil
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		d, ok := dkod.LookupTool(name)
		if !ok {
			return nil, &dkod.UnknownToolError{Name: name}
		}
		want[d.Name] = true
	}
	out := make([]dkod.ToolDescriptor, 0, len(want))
	for _, t := range tools {
		if want[t.Name] {
			out = append(out, t)
		}
	}
	return out, nil
}

func ParseCSVList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Truncate shortens s to at most n runes for terminal output.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d more chars)", string(r[:n]), len(r)-n)
}
