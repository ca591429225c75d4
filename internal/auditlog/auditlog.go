// Package auditlog implements exmdbsrv's structured log record.
//
// Grounded on spilldb/db.Log: a single JSON-line-rendering struct
// logged once per traced operation, rather than a logging library
// dependency — the teacher itself writes its own minimal record type
// and leaves ad hoc messages to the stdlib log package's Logf-style
// func fields (spilldb/spilldb.go's Logf: log.Printf, reused here by
// sqlitestore.Janitor).
package auditlog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Entry is one traced rop verb call or store operation.
type Entry struct {
	Where    string // session/verb, e.g. "rop.OpenFolder"
	What     string // short human summary
	When     time.Time
	Duration time.Duration
	Err      error
	Data     map[string]interface{}
}

// String renders Entry as a single JSON line.
func (e Entry) String() string {
	buf := new(strings.Builder)
	fmt.Fprintf(buf, `{"where": %q, "what": %q, `, e.Where, e.What)

	buf.WriteString(`"when": "`)
	buf.Write(e.When.AppendFormat(make([]byte, 0, 64), time.RFC3339Nano))
	buf.WriteString(`"`)

	fmt.Fprintf(buf, `, "duration": "%s"`, e.Duration)

	if e.Err != nil {
		fmt.Fprintf(buf, `, "err": %q`, e.Err.Error())
	}
	if len(e.Data) > 0 {
		b, err := json.Marshal(e.Data)
		if err != nil {
			fmt.Fprintf(buf, `, "data_marshal_err": %q`, err.Error())
		} else {
			fmt.Fprintf(buf, `, "data": %s`, b)
		}
	}
	buf.WriteByte('}')
	return buf.String()
}

// Logger writes Entry records through a Logf-style func field, the
// same convention spilldb.go and sqlitestore.Janitor use instead of a
// logging-library dependency.
type Logger struct {
	Logf func(format string, v ...interface{})
}

// Log renders and writes e, falling back to a no-op if Logf is unset.
func (l *Logger) Log(e Entry) {
	if l == nil || l.Logf == nil {
		return
	}
	l.Logf("%s", e.String())
}

// Verb records a single rop verb call: where is "rop.<Verb>", what is
// the resulting mapierr.Code's String(), data carries verb-specific
// fields (session id, folder id, handle, ...).
func (l *Logger) Verb(where, what string, start time.Time, err error, data map[string]interface{}) {
	l.Log(Entry{
		Where:    where,
		What:     what,
		When:     start,
		Duration: time.Since(start),
		Err:      err,
		Data:     data,
	})
}
