package progress

import (
	"bytes"
	"testing"
)

func TestCIReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{Task: "ingest", Out: &buf}
	r.Start(2)
	r.Update(1, "肺炎")
	r.Update(2, "感冒")
	r.Finish()

	want := "ingest: starting, 2 records\n[1/2] 肺炎\n[2/2] 感冒\ningest: complete\n"
	if buf.String() != want {
		t.Errorf("output =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestNewReporter(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")

	if _, ok := NewReporter("x", true).(NopReporter); !ok {
		t.Error("quiet should give NopReporter")
	}
	if _, ok := NewReporter("x", false).(*TerminalReporter); !ok {
		t.Error("interactive should give TerminalReporter")
	}

	t.Setenv("CI", "true")
	if _, ok := NewReporter("x", false).(*CIReporter); !ok {
		t.Error("CI should give CIReporter")
	}
}
