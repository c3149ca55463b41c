// Package tagtext extracts <tag>...</tag> sections from free-form model output.
package tagtext

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// ErrNotFound is returned by Decode when the tag is absent.
var ErrNotFound = errors.New("tag not found")

var (
	patternMu sync.Mutex
	patterns  = map[string]*regexp.Regexp{}
)

func patternFor(tag string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patterns[tag]; ok {
		return re
	}
	q := regexp.QuoteMeta(tag)
	re := regexp.MustCompile(`(?s)<` + q + `>(.*?)</` + q + `>`)
	patterns[tag] = re
	return re
}

// Extract returns the trimmed content of the first <tag>...</tag> section.
// The second return value reports whether the section was present at all;
// a present but empty section returns ("", true).
func Extract(content, tag string) (string, bool) {
	m := patternFor(tag).FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Decode extracts the tagged section and unmarshals it as JSON into v.
func Decode(content, tag string, v any) error {
	body, ok := Extract(content, tag)
	if !ok {
		return fmt.Errorf("<%s>: %w", tag, ErrNotFound)
	}
	body = stripCodeFence(body)
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("decoding <%s> json: %w", tag, err)
	}
	return nil
}

// stripCodeFence removes a surrounding ```json fence some models add inside tags.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}
