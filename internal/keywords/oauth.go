package keywords

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials configures an OAuth2 client-credentials grant for
// protected mapping endpoints.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Enabled reports whether enough fields are set to request a token.
func (c ClientCredentials) Enabled() bool {
	return c.ClientID != "" && c.TokenURL != ""
}

// HTTPClient returns a client that attaches and refreshes bearer tokens.
func (c ClientCredentials) HTTPClient(ctx context.Context) *http.Client {
	cfg := clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
	}
	client := cfg.Client(ctx)
	client.Timeout = 10 * time.Second
	return client
}
