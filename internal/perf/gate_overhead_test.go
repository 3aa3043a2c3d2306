package perf

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropzone-hq/dropzone/internal/authz"
	"github.com/dropzone-hq/dropzone/internal/observability"
	"github.com/dropzone-hq/dropzone/internal/rbac"
	_ "github.com/dropzone-hq/dropzone/testing"
)

// Gate evaluation sits in front of every protected route, so its cost has
// to stay negligible next to the database work behind it. The subject is
// injected directly to measure the decision path without session I/O.
func TestGateDecisionOverhead(t *testing.T) {
	m := rbac.Middleware{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: observability.NewMetrics(),
	}
	handler := m.RequirePermission(authz.PermissionViewManifest)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	subject := &authz.Subject{ID: 7, Roles: []authz.Role{authz.RoleSportPaid}}

	const rounds = 2000
	samples := make([]time.Duration, 0, rounds)
	for i := 0; i < rounds; i++ {
		req := httptest.NewRequest(http.MethodGet, "/board", nil)
		req = req.WithContext(rbac.ContextWithSubject(req.Context(), subject))
		res := httptest.NewRecorder()
		start := time.Now()
		handler.ServeHTTP(res, req)
		samples = append(samples, time.Since(start))
		if res.Code != http.StatusNoContent {
			t.Fatalf("unexpected status %d", res.Code)
		}
	}

	if p95 := percentile95(samples); p95 > 5*time.Millisecond {
		t.Fatalf("gate decision p95=%s exceeds 5ms", p95)
	}
}
