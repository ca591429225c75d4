package auditlog_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/obsidiangroup/gromox-sub002/internal/auditlog"
)

func TestEntryString(t *testing.T) {
	now := time.Now()
	e := auditlog.Entry{
		Where:    "here",
		What:     "it",
		When:     now,
		Duration: 57 * time.Millisecond,
	}
	data := make(map[string]interface{})
	if err := json.Unmarshal([]byte(e.String()), &data); err != nil {
		t.Fatal(err)
	}
	if got, want := data["where"], "here"; got != want {
		t.Errorf("where=%q, want %q", got, want)
	}
	if got, want := data["what"], "it"; got != want {
		t.Errorf("what=%q, want %q", got, want)
	}
	if got, want := data["when"], now.Format(time.RFC3339Nano); got != want {
		t.Errorf("when=%q, want %q", got, want)
	}
	if got, want := data["duration"], "57ms"; got != want {
		t.Errorf("duration=%q, want %q", got, want)
	}

	e.Err = errors.New("an error msg")
	data = make(map[string]interface{})
	if err := json.Unmarshal([]byte(e.String()), &data); err != nil {
		t.Fatal(err)
	}
	if got, want := data["err"], e.Err.Error(); got != want {
		t.Errorf("err=%q, want %q", got, want)
	}

	e.Data = map[string]interface{}{"handle": 42}
	data = make(map[string]interface{})
	if err := json.Unmarshal([]byte(e.String()), &data); err != nil {
		t.Fatal(err)
	}
	if got, want := data["data"].(map[string]interface{})["handle"], float64(42); got != want {
		t.Errorf("data=%v, want %v", got, want)
	}
}

func TestLoggerVerbWritesThroughLogf(t *testing.T) {
	var lines []string
	l := &auditlog.Logger{Logf: func(format string, v ...interface{}) {
		lines = append(lines, format)
		_ = v
	}}
	l.Verb("rop.OpenFolder", "Success", time.Now(), nil, map[string]interface{}{"fid": 7})
	if len(lines) != 1 {
		t.Fatalf("Verb logged %d lines, want 1", len(lines))
	}
}

func TestLoggerNilIsNoop(t *testing.T) {
	var l *auditlog.Logger
	l.Log(auditlog.Entry{Where: "x"}) // must not panic
}
