package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/serroba/formguard/internal/analytics"
	"github.com/serroba/formguard/internal/analytics/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewNoop(t *testing.T) {
	noop := store.NewNoop(zap.NewNop())

	assert.NotNil(t, noop)
}

func TestNoop_SaveLimitExceeded(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	noop := store.NewNoop(zap.New(core))

	event := &analytics.LimitExceededEvent{
		Action:       "contact_form",
		StorageKey:   "contact_form:v1",
		AttemptCount: 3,
		MaxAttempts:  3,
		ResetAt:      time.Now().Add(time.Minute),
		OccurredAt:   time.Now(),
	}

	err := noop.SaveLimitExceeded(context.Background(), event)

	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "contact_form:v1", logs.All()[0].ContextMap()["key"])
}

func TestNoop_SaveDiagnostic(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	noop := store.NewNoop(zap.New(core))

	event := &analytics.DiagnosticEvent{
		StorageKey: "contact_form:v1",
		Kind:       "corrupted_state",
		Message:    "bad json",
		OccurredAt: time.Now(),
	}

	err := noop.SaveDiagnostic(context.Background(), event)

	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "corrupted_state", logs.All()[0].ContextMap()["kind"])
}
