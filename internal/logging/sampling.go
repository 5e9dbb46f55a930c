package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples entries below Info. Info and above pass
// untouched so every rename and failure of a run is kept.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	chatty := &levelRangeCore{Core: core, accept: func(l zapcore.Level) bool { return l < zapcore.InfoLevel }}
	kept := &levelRangeCore{Core: core, accept: func(l zapcore.Level) bool { return l >= zapcore.InfoLevel }}

	sampled := zapcore.NewSamplerWithOptions(chatty, cfg.Tick, cfg.Initial, cfg.Thereafter)
	return zapcore.NewTee(kept, sampled)
}

// levelRangeCore passes only the levels accept allows.
type levelRangeCore struct {
	zapcore.Core
	accept func(zapcore.Level) bool
}

func (c *levelRangeCore) Enabled(lvl zapcore.Level) bool {
	return c.accept(lvl) && c.Core.Enabled(lvl)
}

func (c *levelRangeCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.accept(ent.Level) {
		return ce
	}
	return c.Core.Check(ent, ce)
}

func (c *levelRangeCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelRangeCore{Core: c.Core.With(fields), accept: c.accept}
}
