package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/config"
)

func TestRequireOperator(t *testing.T) {
	ops := config.ParseOperatorSet("100,200")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireOperator(ops)(next)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"allowed", "100", http.StatusNoContent},
		{"allowed second", "200", http.StatusNoContent},
		{"unknown id", "300", http.StatusForbidden},
		{"missing header", "", http.StatusForbidden},
		{"garbage header", "not-a-number", http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			if c.header != "" {
				req.Header.Set("X-Operator-Id", c.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, c.want, rec.Code)
		})
	}
}

func TestHealthz(t *testing.T) {
	r := NewRouter()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
