package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_KeepsCodeAndChain(t *testing.T) {
	base := NewAppError(ErrNotFound, "customer not found", nil)
	wrapped := Wrap(fmt.Errorf("fetch: %w", base), "list customer")

	assert.Equal(t, ErrNotFound, CodeOf(wrapped))
	assert.True(t, Is(wrapped, base))
	assert.Equal(t, "list customer: fetch: customer not found", wrapped.Error())
	assert.Equal(t, http.StatusNotFound, ToHTTPError(wrapped).Code)

	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Equal(t, ErrInternal, CodeOf(Wrap(New("boom"), "step")))
}

func TestLogErrorAndLogWarn(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	err := NewAppError(ErrDestinationWrite, "write page", New("400 validation_error"))

	LogError(log, err, "Entity sync failed", zap.String("entity_type", "charge"))
	LogWarn(log, err, "Child entity sync failed")
	LogError(log, nil, "ignored")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	for _, e := range entries {
		fields := e.ContextMap()
		assert.Equal(t, ErrDestinationWrite, fields["error_code"])
		assert.Equal(t, "write page: 400 validation_error", fields["error"])
	}
	assert.Equal(t, "charge", entries[0].ContextMap()["entity_type"])
}

func TestGetCodeMapping(t *testing.T) {
	status, grpcCode := GetCodeMapping(ErrTransient)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, 14, grpcCode)

	status, grpcCode = GetCodeMapping("UNKNOWN")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, 13, grpcCode)
}
