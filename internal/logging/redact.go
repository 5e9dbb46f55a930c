package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redactedValue = "[REDACTED]"

// redactor masks credentials before entries reach the encoder.
type redactor struct {
	keys     map[string]bool
	patterns []*regexp.Regexp
}

func newRedactor(cfg RedactionConfig) (*redactor, error) {
	r := &redactor{keys: make(map[string]bool, len(cfg.Fields))}
	for _, f := range cfg.Fields {
		r.keys[strings.ToLower(f)] = true
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// wrap returns core with redaction applied to entry messages, per-call
// fields and fields added through With.
func (r *redactor) wrap(core zapcore.Core) zapcore.Core {
	if len(r.keys) == 0 && len(r.patterns) == 0 {
		return core
	}
	return &redactCore{Core: core, r: r}
}

// scrub replaces every pattern match in s and reports whether it did.
func (r *redactor) scrub(s string) (string, bool) {
	out := s
	for _, re := range r.patterns {
		out = re.ReplaceAllLiteralString(out, redactedValue)
	}
	return out, out != s
}

func (r *redactor) field(f zapcore.Field) zapcore.Field {
	if f.Type == zapcore.SkipType {
		return f
	}
	if r.keys[strings.ToLower(f.Key)] {
		return zap.String(f.Key, redactedValue)
	}

	var s string
	switch f.Type {
	case zapcore.StringType:
		s = f.String
	case zapcore.ErrorType:
		err, ok := f.Interface.(error)
		if !ok {
			return f
		}
		s = err.Error()
	default:
		return f
	}

	if masked, changed := r.scrub(s); changed {
		return zap.String(f.Key, masked)
	}
	return f
}

func (r *redactor) fields(in []zapcore.Field) []zapcore.Field {
	if len(in) == 0 {
		return in
	}
	out := make([]zapcore.Field, len(in))
	for i, f := range in {
		out[i] = r.field(f)
	}
	return out
}

type redactCore struct {
	zapcore.Core
	r *redactor
}

func (c *redactCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactCore{Core: c.Core.With(c.r.fields(fields)), r: c.r}
}

func (c *redactCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message, _ = c.r.scrub(ent.Message)
	return c.Core.Write(ent, c.r.fields(fields))
}
