package automation

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zhou-shi/pentama-app/internal/config"
)

func TestNewScheduler_InvalidSpec(t *testing.T) {
	cfg := &config.AppConfig{Automation: config.AutomationConfig{Cron: "every minute", RunTimeout: time.Minute}}
	_, err := NewScheduler(newTestService(newMemStore(), nil), &memLock{}, cfg, zap.NewNop())
	assert.Error(t, err)

	cfg.Automation.Cron = "@every 1m"
	s, err := NewScheduler(newTestService(newMemStore(), nil), &memLock{}, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestZapCronLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zapCronLogger{zap.New(core).Sugar()}

	l.Info("skip", "job", "tick")
	l.Error(errors.New("boom"), "panic", "job", "tick")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "skip", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, "tick", entries[1].ContextMap()["job"])
}
