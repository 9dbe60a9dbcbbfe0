package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leandrodaf/midirecorder/sdk/contracts"
)

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLoggerWithCore(core)

	log.Info("event recorded",
		log.Field().Hex("data", []byte{0x90, 0x3C, 0x64}),
		log.Field().Int64("offset", 42),
		log.Field().Duration("wait", 5*time.Millisecond),
		log.Field().Error("error", errors.New("boom")),
	)

	entries := logs.FilterMessage("event recorded").All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	require.Equal(t, "903c64", fields["data"])
	require.Equal(t, int64(42), fields["offset"])
	require.Equal(t, 5*time.Millisecond, fields["wait"])
	require.Equal(t, "boom", fields["error"])
}

func TestZapLoggerSetLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLoggerWithCore(core)

	log.Debug("visible")
	log.SetLevel(contracts.WarnLevel)
	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("warned")
	log.Error("failed")

	var messages []string
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}
	require.Equal(t, []string{"visible", "warned", "failed"}, messages)
}

func TestZapLoggerNilErrorFieldIsDropped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLoggerWithCore(core)

	log.Info("no error", log.Field().Error("error", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Empty(t, entries[0].ContextMap())
}

func TestZapLoggerFileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "midirec.log")

	log := NewZapLogger()
	log.SetDestination(contracts.FileLog, path)
	log.Info("written to file", log.Field().String("device", "loopback"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "written to file")
	require.Contains(t, string(data), `"device":"loopback"`)
}

func TestNopLoggerDiscards(t *testing.T) {
	log := NewNopLogger()
	log.SetLevel(contracts.DebugLevel)
	log.Debug("nothing", log.Field().Bool("ok", true))
	log.SetDestination(contracts.ConsoleLog)
}
