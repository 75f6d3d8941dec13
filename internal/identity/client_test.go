package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestGetUserResolvesIdentity(t *testing.T) {
	var gotAuth, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"u1","email":"u1@example.com"}`))
	}))
	defer srv.Close()

	token := signedToken(t, time.Now().Add(time.Hour))
	c := NewClient(srv.URL, "service-key", zerolog.Nop())

	u, err := c.GetUser(context.Background(), token)
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if u.ID != "u1" || u.Email != "u1@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if gotAuth != "Bearer "+token {
		t.Fatalf("unexpected Authorization header: %q", gotAuth)
	}
	if gotAPIKey != "service-key" {
		t.Fatalf("unexpected apikey header: %q", gotAPIKey)
	}
}

func TestGetUserRejectedByProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "service-key", zerolog.Nop())
	_, err := c.GetUser(context.Background(), signedToken(t, time.Now().Add(time.Hour)))
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGetUserExpiredTokenSkipsRoundTrip(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "service-key", zerolog.Nop())
	_, err := c.GetUser(context.Background(), signedToken(t, time.Now().Add(-time.Minute)))
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if called {
		t.Fatal("expired token must be rejected without calling the provider")
	}
}

func TestGetUserEmptyToken(t *testing.T) {
	c := NewClient("http://identity.invalid", "service-key", zerolog.Nop())
	if _, err := c.GetUser(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGetUserMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"email":"u1@example.com"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "service-key", zerolog.Nop())
	_, err := c.GetUser(context.Background(), signedToken(t, time.Now().Add(time.Hour)))
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
