package tagtext

import (
	"errors"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		content string
		tag     string
		want    string
		wantOK  bool
	}{
		{"simple", "<a>hello</a>", "a", "hello", true},
		{"trims", "prefix <a>\n  hello \n</a> suffix", "a", "hello", true},
		{"multiline", "<a>line1\nline2</a>", "a", "line1\nline2", true},
		{"first match wins", "<a>one</a><a>two</a>", "a", "one", true},
		{"empty section", "<a></a>", "a", "", true},
		{"missing", "no tags here", "a", "", false},
		{"unclosed", "<a>dangling", "a", "", false},
		{"other tag", "<b>x</b>", "a", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.content, tt.tag)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		NeedMoreInfo bool     `json:"need_more_info"`
		Diseases     []string `json:"diseases"`
	}
	content := "analysis...\n<diagnose>\n{\"need_more_info\": true, \"diseases\": [\"肺炎\"]}\n</diagnose>"
	if err := Decode(content, "diagnose", &v); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !v.NeedMoreInfo || len(v.Diseases) != 1 || v.Diseases[0] != "肺炎" {
		t.Errorf("unexpected decode result: %+v", v)
	}
}

func TestDecodeCodeFence(t *testing.T) {
	var v map[string]int
	content := "<x>```json\n{\"a\": 1}\n```</x>"
	if err := Decode(content, "x", &v); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v["a"] != 1 {
		t.Errorf("a = %d, want 1", v["a"])
	}
}

func TestDecodeErrors(t *testing.T) {
	var v map[string]any
	if err := Decode("nothing", "x", &v); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	err := Decode("<x>not json</x>", "x", &v)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected json error, got %v", err)
	}
}
