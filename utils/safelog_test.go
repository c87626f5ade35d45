package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, production bool) *observer.ObservedLogs {
	t.Helper()
	previous, prod := Logger(), IsProduction
	t.Cleanup(func() {
		SetLogger(previous)
		IsProduction = prod
	})

	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	IsProduction = production
	return logs
}

func TestSafeDebug_MasksInProduction(t *testing.T) {
	logs := observe(t, true)

	SafeDebug("export de %s pour %s : %s", "dupont@defense.gouv.fr",
		"3f2504e0-4f89-11d3-9a0c-0305e82c3301", MaskAmount(12345.67))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.DebugLevel, entry.Level)
	assert.Equal(t, "export de ***@***.*** pour 3f2504e0... : ***", entry.Message)
}

func TestSafeDebug_ClearInDevelopment(t *testing.T) {
	logs := observe(t, false)

	SafeDebug("montant %s", MaskAmount(12345.678))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "montant 12345.68", logs.All()[0].Message)
}

func TestLogStatsFetch_WarnsOnError(t *testing.T) {
	logs := observe(t, false)

	LogStatsFetch("annee", 2024, assert.AnError)

	require.Equal(t, 1, logs.FilterMessage("[Stats] fetch failed").Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(2024), fields["year"])
}
