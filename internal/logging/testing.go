package logging

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records entries in memory at every level, after the same
// redaction a production logger applies.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
	redact   *redactor
}

// NewTestLogger creates a recording logger.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	r, err := newRedactor(NewDefaultConfig().Redaction)
	if err != nil {
		panic(err)
	}
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(r.wrap(core))},
		observed: observed,
		redact:   r,
	}
}

// Entries returns everything logged so far.
func (t *TestLogger) Entries() []observer.LoggedEntry {
	return t.observed.All()
}

// AssertLogged fails unless an entry at level contains msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if len(t.find(level, msg)) == 0 {
		tb.Errorf("no %v entry containing %q in %d entries", level, msg, t.observed.Len())
	}
}

// AssertNotLogged fails if any entry at level contains msg.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if n := len(t.find(level, msg)); n > 0 {
		tb.Errorf("found %d unexpected %v entries containing %q", n, level, msg)
	}
}

// AssertField fails unless an entry with message msg has key set to want.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && got == want {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v", msg, key, want)
}

// AssertNoSecrets fails if any message or field value still matches a
// redaction pattern, or a sensitive key holds anything but the mask.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	for _, e := range t.observed.All() {
		if _, leaked := t.redact.scrub(e.Message); leaked {
			tb.Errorf("secret in message %q", e.Message)
		}
		for k, v := range e.ContextMap() {
			s := fmt.Sprint(v)
			if t.redact.keys[strings.ToLower(k)] && s != redactedValue {
				tb.Errorf("sensitive field %q not redacted in %q", k, e.Message)
			}
			if _, leaked := t.redact.scrub(s); leaked {
				tb.Errorf("secret in field %q of %q", k, e.Message)
			}
		}
	}
}

func (t *TestLogger) find(level zapcore.Level, msg string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, msg) {
			out = append(out, e)
		}
	}
	return out
}
