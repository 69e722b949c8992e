package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v3"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{
			name:     "standard bearer header",
			header:   "Bearer abc.def.ghi",
			expected: "abc.def.ghi",
		},
		{
			name:     "lowercase scheme",
			header:   "bearer token",
			expected: "token",
		},
		{
			name:     "extra spaces",
			header:   "  Bearer   token  ",
			expected: "token",
		},
		{
			name:     "basic scheme",
			header:   "Basic dXNlcjpwYXNz",
			expected: "",
		},
		{
			name:     "scheme only",
			header:   "Bearer",
			expected: "",
		},
		{
			name:     "empty string",
			header:   "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := bearerToken(tt.header)
			if result != tt.expected {
				t.Errorf("bearerToken(%q) = %q, want %q", tt.header, result, tt.expected)
			}
		})
	}
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(ctx context.Context, raw string) (*oidc.IDToken, error) {
	if raw != "good" {
		return nil, errors.New("bad token")
	}
	return &oidc.IDToken{Subject: "admin"}, nil
}

func TestRequireToken(t *testing.T) {
	auth := NewAuthMiddlewareWithVerifier(fakeVerifier{})

	app := fiber.New()
	app.Get("/admin", auth.RequireToken, func(c fiber.Ctx) error {
		sub, _ := c.Locals("subject").(string)
		return c.SendString(sub)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", fiber.StatusUnauthorized},
		{"invalid token", "Bearer nope", fiber.StatusUnauthorized},
		{"valid token", "Bearer good", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestRequireTokenDisabled(t *testing.T) {
	auth, err := NewAuthMiddleware(context.Background(), "", "")
	if err != nil {
		t.Fatalf("NewAuthMiddleware() error = %v", err)
	}
	if auth.Enabled() {
		t.Fatal("Enabled() = true without issuer")
	}

	app := fiber.New()
	app.Get("/admin", auth.RequireToken, func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req, _ := http.NewRequest("GET", "/admin", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
}
