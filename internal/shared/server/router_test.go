package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"caption-backend/internal/ledger"
	"caption-backend/internal/services/health"
	"caption-backend/internal/shared/config"
	"caption-backend/internal/shared/server/middleware"
)

func newTestRouter(limits map[string]middleware.RateLimitRule) *gin.Engine {
	return NewRouter(RouterDeps{
		Config:        config.Config{CORSAllowOrigin: []string{"http://localhost:5173"}},
		LedgerHandler: ledger.NewHandler(ledger.NewMemoryStore(10)),
		Health:        health.NewService(nil, "placeholder", func() int { return 3 }),
		RateLimits:    limits,
	})
}

func TestHealthAndMetricsAreMounted(t *testing.T) {
	r := newTestRouter(nil)

	for _, path := range []string{"/health", "/api/v1/health", "/metrics"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if body := resp.Body.String(); body != `{"ok":true,"database":"memory","sessions":3,"provider":"placeholder"}` {
		t.Fatalf("unexpected health body %s", body)
	}
}

func TestAPIRoutesAreRateLimited(t *testing.T) {
	r := newTestRouter(map[string]middleware.RateLimitRule{
		GroupDefault: {Rate: 0.001, Burst: 1},
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1/runs", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1/runs", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRateLimitGroupByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		method, route, path, want string
	}{
		{http.MethodPost, "/sessions/:sessionId/videos", "/sessions/s/videos", GroupUpload},
		{http.MethodDelete, "/sessions/:sessionId/videos/:videoId", "/sessions/s/videos/v", GroupDefault},
		{http.MethodGet, "/sessions/:sessionId/export/pdf", "/sessions/s/export/pdf", GroupExport},
		{http.MethodGet, "/sessions/:sessionId", "/sessions/s", GroupDefault},
	}
	for _, tc := range cases {
		var got string
		r := gin.New()
		r.Handle(tc.method, tc.route, func(c *gin.Context) { got = rateLimitGroup(c) })
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tc.method, tc.path, nil))
		if got != tc.want {
			t.Fatalf("%s %s: expected %s, got %s", tc.method, tc.path, tc.want, got)
		}
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
