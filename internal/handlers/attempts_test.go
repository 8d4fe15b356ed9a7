package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/serroba/formguard/internal/handlers"
	"github.com/serroba/formguard/internal/ratelimit"
	"github.com/serroba/formguard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testVisitor = "visitor-1"

func newTestRegistry(t *testing.T, storage ratelimit.Storage) *ratelimit.Registry {
	t.Helper()

	registry, err := ratelimit.NewRegistry(storage, ratelimit.Config{MaxAttempts: 2, Window: time.Minute}, 0)
	require.NoError(t, err)

	return registry
}

func visitorContext(visitor string) context.Context {
	return handlers.ContextWithRequestMeta(context.Background(), handlers.RequestMeta{VisitorID: visitor})
}

// visitorHeader stands in for the cookie middleware in route tests.
func visitorHeader(ctx huma.Context, next func(huma.Context)) {
	meta := handlers.RequestMeta{VisitorID: ctx.Header("X-Visitor")}
	next(huma.WithContext(ctx, handlers.ContextWithRequestMeta(ctx.Context(), meta)))
}

func newTestAPI(t *testing.T, registry *ratelimit.Registry) humatest.TestAPI {
	t.Helper()

	_, api := humatest.New(t)
	api.UseMiddleware(visitorHeader)

	handlers.RegisterRoutes(api,
		handlers.NewAttemptsHandler(registry, zap.NewNop()),
		handlers.NewContactHandler(zap.NewNop()),
	)

	return api
}

func TestAttemptsHandler_RecordAttempt(t *testing.T) {
	t.Run("allows attempts within budget", func(t *testing.T) {
		h := handlers.NewAttemptsHandler(newTestRegistry(t, store.NewMemoryStorage()), zap.NewNop())
		ctx := visitorContext(testVisitor)

		resp, err := h.RecordAttempt(ctx, &handlers.ActionRequest{Action: "signup"})

		require.NoError(t, err)
		assert.True(t, resp.Body.Allowed)
		assert.Equal(t, 1, resp.Body.AttemptCount)
		assert.Equal(t, 1, resp.Body.Remaining)
		assert.Empty(t, resp.Body.RetryIn)
	})

	t.Run("denies past the budget with retry text", func(t *testing.T) {
		h := handlers.NewAttemptsHandler(newTestRegistry(t, store.NewMemoryStorage()), zap.NewNop())
		ctx := visitorContext(testVisitor)
		req := &handlers.ActionRequest{Action: "signup"}

		for range 2 {
			_, err := h.RecordAttempt(ctx, req)
			require.NoError(t, err)
		}

		resp, err := h.RecordAttempt(ctx, req)

		require.NoError(t, err)
		assert.False(t, resp.Body.Allowed)
		assert.Equal(t, 3, resp.Body.AttemptCount)
		assert.Equal(t, 0, resp.Body.Remaining)
		assert.NotEmpty(t, resp.Body.RetryIn)
	})

	t.Run("keeps visitors apart", func(t *testing.T) {
		h := handlers.NewAttemptsHandler(newTestRegistry(t, store.NewMemoryStorage()), zap.NewNop())
		req := &handlers.ActionRequest{Action: "signup"}

		_, err := h.RecordAttempt(visitorContext("a"), req)
		require.NoError(t, err)

		resp, err := h.RecordAttempt(visitorContext("b"), req)

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Body.AttemptCount)
	})

	t.Run("keeps actions apart", func(t *testing.T) {
		h := handlers.NewAttemptsHandler(newTestRegistry(t, store.NewMemoryStorage()), zap.NewNop())
		ctx := visitorContext(testVisitor)

		_, err := h.RecordAttempt(ctx, &handlers.ActionRequest{Action: "signup"})
		require.NoError(t, err)

		resp, err := h.RecordAttempt(ctx, &handlers.ActionRequest{Action: "login"})

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Body.AttemptCount)
	})

	t.Run("rejects requests without a visitor", func(t *testing.T) {
		h := handlers.NewAttemptsHandler(newTestRegistry(t, store.NewMemoryStorage()), zap.NewNop())

		_, err := h.RecordAttempt(context.Background(), &handlers.ActionRequest{Action: "signup"})

		var statusErr huma.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadRequest, statusErr.GetStatus())
	})
}

func TestAttemptsHandler_GetStatus(t *testing.T) {
	t.Run("fresh action has full budget", func(t *testing.T) {
		h := handlers.NewAttemptsHandler(newTestRegistry(t, store.NewMemoryStorage()), zap.NewNop())

		resp, err := h.GetStatus(visitorContext(testVisitor), &handlers.ActionRequest{Action: "signup"})

		require.NoError(t, err)
		assert.True(t, resp.Body.CanProceed)
		assert.Equal(t, 2, resp.Body.Remaining)
		assert.Nil(t, resp.Body.ResetAt)
		assert.Empty(t, resp.Body.RetryIn)
	})

	t.Run("reports counters without counting", func(t *testing.T) {
		h := handlers.NewAttemptsHandler(newTestRegistry(t, store.NewMemoryStorage()), zap.NewNop())
		ctx := visitorContext(testVisitor)
		req := &handlers.ActionRequest{Action: "signup"}

		for range 2 {
			_, err := h.RecordAttempt(ctx, req)
			require.NoError(t, err)
		}

		first, err := h.GetStatus(ctx, req)
		require.NoError(t, err)

		second, err := h.GetStatus(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, 2, first.Body.AttemptCount)
		assert.Equal(t, first.Body.AttemptCount, second.Body.AttemptCount)
		assert.False(t, first.Body.CanProceed)
		require.NotNil(t, first.Body.ResetAt)
		assert.NotEmpty(t, first.Body.RetryIn)
	})
}

func TestAttemptsHandler_Reset(t *testing.T) {
	storage := store.NewMemoryStorage()
	h := handlers.NewAttemptsHandler(newTestRegistry(t, storage), zap.NewNop())
	ctx := visitorContext(testVisitor)
	req := &handlers.ActionRequest{Action: "signup"}

	_, err := h.RecordAttempt(ctx, req)
	require.NoError(t, err)

	_, err = h.Reset(ctx, req)
	require.NoError(t, err)

	_, found, err := storage.Get(ctx, ratelimit.ActionKey("signup", testVisitor))
	require.NoError(t, err)
	assert.False(t, found)

	resp, err := h.GetStatus(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Body.AttemptCount)
	assert.True(t, resp.Body.CanProceed)
}

func TestAttemptRoutes(t *testing.T) {
	t.Run("record status reset round trip", func(t *testing.T) {
		api := newTestAPI(t, newTestRegistry(t, store.NewMemoryStorage()))
		visitor := "X-Visitor: " + testVisitor

		resp := api.Post("/actions/signup/attempts", visitor)
		require.Equal(t, http.StatusOK, resp.Code)

		var attempt struct {
			Allowed      bool `json:"allowed"`
			AttemptCount int  `json:"attemptCount"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &attempt))
		assert.True(t, attempt.Allowed)
		assert.Equal(t, 1, attempt.AttemptCount)

		resp = api.Get("/actions/signup", visitor)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"attemptCount":1`)

		resp = api.Delete("/actions/signup", visitor)
		assert.Equal(t, http.StatusNoContent, resp.Code)

		resp = api.Get("/actions/signup", visitor)
		assert.Contains(t, resp.Body.String(), `"attemptCount":0`)
	})

	t.Run("rejects invalid action names", func(t *testing.T) {
		api := newTestAPI(t, newTestRegistry(t, store.NewMemoryStorage()))

		resp := api.Post("/actions/Not:Valid/attempts", "X-Visitor: "+testVisitor)

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("rejects requests without a visitor", func(t *testing.T) {
		api := newTestAPI(t, newTestRegistry(t, store.NewMemoryStorage()))

		resp := api.Get("/actions/signup")

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}
