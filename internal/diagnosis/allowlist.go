package diagnosis

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// AllowlistSource supplies the disease names a diagnosis may choose from.
type AllowlistSource interface {
	Diseases() ([]string, error)
}

// StaticAllowlist is an in-memory allowlist.
type StaticAllowlist []string

// Diseases returns the list itself.
func (s StaticAllowlist) Diseases() ([]string, error) {
	return []string(s), nil
}

// FileAllowlist reads disease names from a file on every call. The file is
// either a JSON (or Python-style) list of strings or one name per line.
type FileAllowlist struct {
	Path string
}

// Diseases reads and parses the allowlist file.
func (f FileAllowlist) Diseases() ([]string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading disease list %s: %w", f.Path, err)
	}
	return ParseAllowlist(string(data)), nil
}

// ParseAllowlist parses a bracketed list or a newline-separated list.
// Blank entries are dropped.
func ParseAllowlist(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if strings.HasPrefix(content, "[") && strings.HasSuffix(content, "]") {
		var names []string
		if err := json.Unmarshal([]byte(content), &names); err == nil {
			return compact(names)
		}
		inner := content[1 : len(content)-1]
		var out []string
		for _, part := range strings.Split(inner, ",") {
			out = append(out, strings.Trim(strings.TrimSpace(part), `"'`))
		}
		return compact(out)
	}

	return compact(strings.Split(content, "\n"))
}

// renderAllowlist formats names for prompts; an empty list renders as "".
func renderAllowlist(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "可选疾病列表：" + strings.Join(names, ", ")
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
