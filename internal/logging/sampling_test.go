package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampledLogger(cfg SamplingConfig) (*Logger, *observer.ObservedLogs) {
	core, observed := observer.New(TraceLevel)
	return &Logger{zap: zap.New(newSampledCore(core, cfg))}, observed
}

func TestSampling_ThinsBelowInfo(t *testing.T) {
	logger, observed := sampledLogger(SamplingConfig{Enabled: true, Tick: time.Minute, Initial: 2})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		logger.Debug(ctx, "projects page fetched", zap.Int("page", i))
	}

	assert.Equal(t, 2, observed.FilterMessage("projects page fetched").Len())
}

func TestSampling_NeverDropsInfoAndAbove(t *testing.T) {
	logger, observed := sampledLogger(SamplingConfig{Enabled: true, Tick: time.Minute, Initial: 1})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		logger.Info(ctx, "project renamed")
		logger.Warn(ctx, "project listing truncated")
		logger.Error(ctx, "project rename failed")
	}

	assert.Equal(t, 5, observed.FilterMessage("project renamed").Len())
	assert.Equal(t, 5, observed.FilterMessage("project listing truncated").Len())
	assert.Equal(t, 5, observed.FilterMessage("project rename failed").Len())
}

func TestSampling_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.Same(t, core, newSampledCore(core, SamplingConfig{}))
}

func TestSampling_WithKeepsLevelRange(t *testing.T) {
	logger, observed := sampledLogger(SamplingConfig{Enabled: true, Tick: time.Minute, Initial: 1})
	child := logger.With(zap.String("component", "linear"))

	child.Info(context.Background(), "kept")
	child.Info(context.Background(), "kept")

	logs := observed.All()
	assert.Len(t, logs, 2)
	assert.Equal(t, "linear", logs[0].ContextMap()["component"])
}
