package middleware

import (
	"context"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v3"
)

// TokenVerifier checks a raw ID token. *oidc.IDTokenVerifier satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// AuthMiddleware protects admin endpoints with bearer ID tokens.
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware discovers the issuer and verifies tokens issued for
// clientID. An empty issuer disables verification.
func NewAuthMiddleware(ctx context.Context, issuer, clientID string) (*AuthMiddleware, error) {
	if issuer == "" {
		return &AuthMiddleware{}, nil
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}

	return &AuthMiddleware{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// NewAuthMiddlewareWithVerifier uses v directly.
func NewAuthMiddlewareWithVerifier(v TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: v}
}

// Enabled reports whether tokens are checked.
func (m *AuthMiddleware) Enabled() bool {
	return m.verifier != nil
}

// RequireToken rejects requests without a valid bearer token and stores the
// token subject in Locals("subject").
func (m *AuthMiddleware) RequireToken(c fiber.Ctx) error {
	if m.verifier == nil {
		return c.Next()
	}

	raw := bearerToken(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return unauthorized(c, "missing bearer token")
	}

	token, err := m.verifier.Verify(c.Context(), raw)
	if err != nil {
		return unauthorized(c, "invalid token")
	}

	c.Locals("subject", token.Subject)
	return c.Next()
}

func unauthorized(c fiber.Ctx, message string) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}

// bearerToken extracts the token from an Authorization header value.
// Returns empty string if the scheme is not Bearer.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
