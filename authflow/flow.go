// Package authflow holds the stateless OAuth authorization-code glue
// between the gateway and the upstream identity provider. It carries no
// entitlement state of its own.
package authflow

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Flow wraps an oauth2.Config for the authorization-code exchange.
type Flow struct {
	cfg oauth2.Config
}

// New builds a Flow against Google's endpoints with openid+email scopes,
// which is all the gateway needs to learn a verified email.
func New(clientID, clientSecret, redirectURL string) *Flow {
	return &Flow{cfg: oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email"},
		Endpoint:     google.Endpoint,
	}}
}

// AuthorizeURL returns the provider URL the caller's browser is sent to.
// state is passed through opaquely.
func (f *Flow) AuthorizeURL(state string) string {
	return f.cfg.AuthCodeURL(state)
}

// ValidClient checks the client credentials presented on the token
// endpoint against the configured pair.
func (f *Flow) ValidClient(clientID, clientSecret string) bool {
	return clientID == f.cfg.ClientID && clientSecret == f.cfg.ClientSecret
}

// Exchange trades an authorization code for provider tokens.
func (f *Flow) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := f.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return tok, nil
}
