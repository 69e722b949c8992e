package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/prometheus/client_golang/prometheus"

	"livesub/internal/batch"
	"livesub/internal/config"
	"livesub/internal/keywords"
	"livesub/internal/metrics"
	"livesub/internal/middleware"
	"livesub/internal/session"
	"livesub/internal/substitute"
)

type staticVerifier struct{}

func (staticVerifier) Verify(ctx context.Context, raw string) (*oidc.IDToken, error) {
	if raw != "admin-token" {
		return nil, errors.New("invalid")
	}
	return &oidc.IDToken{Subject: "admin"}, nil
}

func newTestServer(t *testing.T, rateLimit int, auth *middleware.AuthMiddleware) *Server {
	t.Helper()
	cfg := &config.Config{CORSOrigins: "*", RateLimit: rateLimit}

	store := keywords.NewStore(keywords.StaticSource{"foo": "bar"})
	manager := session.NewManager(store, batch.New(store), session.Options{})
	t.Cleanup(manager.CloseAll)

	metrics.Register(prometheus.DefaultRegisterer)

	s := New(cfg, nil)
	s.RegisterRoutes(Deps{
		Keywords:    store,
		Sessions:    manager,
		Auth:        auth,
		DefaultMode: substitute.ExactLine,
	})
	return s
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t, 0, middleware.NewAuthMiddlewareWithVerifier(staticVerifier{}))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		status int
		want   string
	}{
		{"health", "GET", "/healthz", "", "", 200, `"status":"ok"`},
		{"substitute", "POST", "/api/substitute", `{"text":"foo"}`, "", 200, `"text":"bar"`},
		{"rewrite", "POST", "/api/rewrite", `<p>I like foo</p>`, "", 200, "I like bar"},
		{"keywords without token", "GET", "/api/keywords", "", "", 401, ""},
		{"keywords with bad token", "GET", "/api/keywords", "", "nope", 401, ""},
		{"keywords with token", "GET", "/api/keywords", "", "admin-token", 200, `"foo":"bar"`},
		{"pairs absent without database", "GET", "/api/keywords/pairs", "", "admin-token", 404, ""},
		{"unknown session", "GET", "/api/sessions/00000000-0000-0000-0000-000000000000", "", "", 404, ""},
		{"metrics", "GET", "/metrics", "", "", 200, "livesub_substitutions_total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := s.App.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, body)
			}
			if tt.want != "" && !strings.Contains(string(body), tt.want) {
				t.Errorf("body %s does not contain %s", body, tt.want)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 2, nil)

	for i := range 3 {
		req, _ := http.NewRequest("POST", "/api/substitute", strings.NewReader(`{"text":"foo"}`))
		resp, err := s.App.Test(req)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		want := 200
		if i == 2 {
			want = http.StatusTooManyRequests
		}
		if resp.StatusCode != want {
			t.Errorf("request %d status = %d, want %d", i, resp.StatusCode, want)
		}
	}

	// Probes are exempt.
	req, _ := http.NewRequest("GET", "/healthz", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestBuildTLSConfig(t *testing.T) {
	tc, err := buildTLSConfig(&config.Config{})
	if err != nil {
		t.Fatalf("buildTLSConfig() error = %v", err)
	}
	if tc.ClientCAs != nil {
		t.Error("ClientCAs set without a CA file")
	}

	if _, err := buildTLSConfig(&config.Config{TLSCAFile: t.TempDir() + "/missing.pem"}); err == nil {
		t.Error("expected error for missing CA file")
	}
}
