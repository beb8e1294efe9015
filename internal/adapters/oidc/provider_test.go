package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	apperrors "github.com/Sevewell/enty/internal/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "enty-web"

type fakeProvider struct {
	srv    *httptest.Server
	key    *rsa.PrivateKey
	claims jwt.MapClaims
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fp := &fakeProvider{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 fp.srv.URL,
			"authorization_endpoint": fp.srv.URL + "/authorize",
			"token_endpoint":         fp.srv.URL + "/token",
			"jwks_uri":               fp.srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" || r.Form.Get("code_verifier") == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, fp.claims)
		tok.Header["kid"] = "k1"
		signed, err := tok.SignedString(key)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     signed,
		})
	})
	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)

	now := time.Now()
	fp.claims = jwt.MapClaims{
		"iss":                fp.srv.URL,
		"aud":                testClientID,
		"sub":                "user-123",
		"email":              "alice@example.com",
		"preferred_username": "alice",
		"nonce":              "n-1",
		"iat":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
	}
	return fp
}

func (fp *fakeProvider) provider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{
		MetadataURL: fp.srv.URL + "/.well-known/openid-configuration",
		ClientID:    testClientID,
		RedirectURL: "http://localhost:8080/auth/callback",
	})
	require.NoError(t, err)
	return p
}

func TestAuthCodeURLCarriesStateNonceAndChallenge(t *testing.T) {
	fp := newFakeProvider(t)
	p := fp.provider(t)

	raw, err := p.AuthCodeURL(context.Background(), "st", "n-1", NewVerifier())
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, "st", q.Get("state"))
	assert.Equal(t, "n-1", q.Get("nonce"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, testClientID, q.Get("client_id"))
}

func TestExchangeReturnsVerifiedIdentity(t *testing.T) {
	fp := newFakeProvider(t)
	p := fp.provider(t)

	ident, err := p.Exchange(context.Background(), "good-code", NewVerifier(), "n-1")
	require.NoError(t, err)
	assert.Equal(t, "user-123", ident.Subject)
	assert.Equal(t, "alice@example.com", ident.Email)
	assert.Equal(t, "alice", ident.Name)
}

func TestExchangeRejectsNonceMismatch(t *testing.T) {
	fp := newFakeProvider(t)
	p := fp.provider(t)

	_, err := p.Exchange(context.Background(), "good-code", NewVerifier(), "other")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestExchangeRejectsForeignAudience(t *testing.T) {
	fp := newFakeProvider(t)
	fp.claims["aud"] = "someone-else"
	p := fp.provider(t)

	_, err := p.Exchange(context.Background(), "good-code", NewVerifier(), "n-1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestExchangeRejectsExpiredToken(t *testing.T) {
	fp := newFakeProvider(t)
	fp.claims["exp"] = time.Now().Add(-time.Hour).Unix()
	p := fp.provider(t)

	_, err := p.Exchange(context.Background(), "good-code", NewVerifier(), "n-1")
	require.Error(t, err)
}

func TestExchangeRejectsBadCode(t *testing.T) {
	fp := newFakeProvider(t)
	p := fp.provider(t)

	_, err := p.Exchange(context.Background(), "bad-code", NewVerifier(), "n-1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestNewRequiresClientID(t *testing.T) {
	_, err := New(Config{MetadataURL: "http://example.invalid"})
	require.Error(t, err)
}
