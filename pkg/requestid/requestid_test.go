package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetlabhq/vetnotify/pkg/requestid"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	serve := func(t *testing.T, inbound string) (*httptest.ResponseRecorder, string) {
		t.Helper()

		var seen string
		handler := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestid.FromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if inbound != "" {
			req.Header.Set(requestid.Header, inbound)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec, seen
	}

	t.Run("generates id when header missing", func(t *testing.T) {
		t.Parallel()

		rec, seen := serve(t, "")
		echoed := rec.Header().Get(requestid.Header)
		require.NotEmpty(t, echoed)
		assert.Equal(t, echoed, seen)
		_, err := uuid.Parse(echoed)
		assert.NoError(t, err)
	})

	t.Run("reuses valid inbound id", func(t *testing.T) {
		t.Parallel()

		rec, seen := serve(t, "trace-abc_123")
		assert.Equal(t, "trace-abc_123", rec.Header().Get(requestid.Header))
		assert.Equal(t, "trace-abc_123", seen)
	})

	t.Run("replaces malformed inbound id", func(t *testing.T) {
		t.Parallel()

		rec, seen := serve(t, "bad id\nwith newline")
		echoed := rec.Header().Get(requestid.Header)
		assert.NotEqual(t, "bad id\nwith newline", echoed)
		assert.Equal(t, echoed, seen)
	})

	t.Run("replaces oversized inbound id", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("a", 200)
		rec, _ := serve(t, long)
		assert.NotEqual(t, long, rec.Header().Get(requestid.Header))
	})
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, requestid.FromContext(context.Background()))
	assert.Empty(t, requestid.FromContext(nil)) //nolint:staticcheck

	ctx := requestid.WithContext(context.Background(), "req-9")
	assert.Equal(t, "req-9", requestid.FromContext(ctx))
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := requestid.LoggerExtractor()

	attr, ok := extract(requestid.WithContext(context.Background(), "req-7"))
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "req-7", attr.Value.String())

	_, ok = extract(context.Background())
	assert.False(t, ok)
}
