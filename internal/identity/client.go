// Package identity resolves bearer tokens to user identities through the
// hosted identity provider.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// ErrInvalidToken is returned for missing, malformed, expired or rejected
// bearer tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// User is the subset of the provider's profile the billing flow needs.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Provider resolves a bearer token to the identity that owns it.
type Provider interface {
	GetUser(ctx context.Context, token string) (*User, error)
}

// Client talks to the identity provider's user endpoint.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(baseURL, serviceKey string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("service", "IdentityClient").Logger(),
	}
}

// GetUser resolves a bearer token to a user via the provider. The provider
// performs the authoritative validation; expired tokens are rejected locally
// first to save the round trip.
func (c *Client) GetUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if tokenExpired(token) {
		return nil, ErrInvalidToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call identity provider: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		c.logger.Error().Int("status", resp.StatusCode).Msg("Identity provider returned unexpected status")
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	if u.ID == "" {
		return nil, ErrInvalidToken
	}
	return &u, nil
}

// tokenExpired reads the exp claim without verifying the signature. A token
// that is not a parseable JWT is passed through for the provider to judge.
func tokenExpired(token string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now())
}
