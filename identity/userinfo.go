package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// UserinfoResolver resolves a provider-issued access token by calling
// the provider's userinfo endpoint, the way the upstream identity
// provider documents token introspection for OAuth clients.
type UserinfoResolver struct {
	url    string
	client *http.Client
}

func NewUserinfoResolver(url string, client *http.Client) *UserinfoResolver {
	if url == "" {
		url = defaultUserinfoURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &UserinfoResolver{url: url, client: client}
}

func (r *UserinfoResolver) Resolve(ctx context.Context, credential string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: userinfo rejected token", ErrUnauthenticated)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("userinfo decode: %w", err)
	}
	if body.Email == "" {
		return "", fmt.Errorf("%w: userinfo has no email", ErrUnauthenticated)
	}
	return body.Email, nil
}
