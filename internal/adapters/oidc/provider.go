// Package oidc signs users in through an OpenID Connect provider using the
// authorization-code flow with PKCE and verifies the returned ID token
// against the provider's published keys.
package oidc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Sevewell/enty/internal/domain"
	apperrors "github.com/Sevewell/enty/internal/errors"
	"golang.org/x/oauth2"
)

type Config struct {
	MetadataURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	HTTPClient   *http.Client
}

type discovery struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

type Provider struct {
	cfg        Config
	httpClient *http.Client
	jwks       *jwksCache

	mu     sync.Mutex
	meta   *discovery
	oauth2 *oauth2.Config
}

func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.MetadataURL) == "" {
		return nil, apperrors.New("oidc metadata url is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, apperrors.New("oidc client id is required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{cfg: cfg, httpClient: httpClient, jwks: newJWKSCache(httpClient)}, nil
}

// NewVerifier returns a fresh PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL is where the browser is sent to log in. state and nonce are
// echoed back and checked on callback.
func (p *Provider) AuthCodeURL(ctx context.Context, state, nonce, verifier string) (string, error) {
	conf, err := p.config(ctx)
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.S256ChallengeOption(verifier),
	), nil
}

// Exchange trades the authorization code for tokens and returns the
// identity vouched for by the verified ID token.
func (p *Provider) Exchange(ctx context.Context, code, verifier, nonce string) (domain.ExternalIdentity, error) {
	if strings.TrimSpace(code) == "" {
		return domain.ExternalIdentity{}, unauthorized("missing authorization code")
	}
	conf, err := p.config(ctx)
	if err != nil {
		return domain.ExternalIdentity{}, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return domain.ExternalIdentity{}, apperrors.Mark(apperrors.Wrap(err, "exchange authorization code"), apperrors.ErrUnauthorized)
	}
	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return domain.ExternalIdentity{}, unauthorized("token response carried no id_token")
	}

	claims, err := p.verify(ctx, rawIDToken)
	if err != nil {
		return domain.ExternalIdentity{}, err
	}
	got, _ := claims["nonce"].(string)
	if subtle.ConstantTimeCompare([]byte(got), []byte(nonce)) != 1 || nonce == "" {
		return domain.ExternalIdentity{}, unauthorized("nonce mismatch")
	}
	return identityFromClaims(claims), nil
}

func (p *Provider) config(ctx context.Context) (*oauth2.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.oauth2 != nil {
		return p.oauth2, nil
	}

	meta, err := p.discover(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "oidc discovery")
	}
	p.meta = meta
	p.jwks.setURL(meta.JWKSURI)
	p.oauth2 = &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  p.cfg.RedirectURL,
		Scopes:       p.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  meta.AuthorizationEndpoint,
			TokenURL: meta.TokenEndpoint,
		},
	}
	return p.oauth2, nil
}

func (p *Provider) discover(ctx context.Context) (*discovery, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.MetadataURL, nil)
	if err != nil {
		return nil, err
	}
	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, apperrors.Newf("discovery request failed: %s", res.Status)
	}

	var d discovery
	if err := json.NewDecoder(res.Body).Decode(&d); err != nil {
		return nil, err
	}
	if d.Issuer == "" || d.AuthorizationEndpoint == "" || d.TokenEndpoint == "" || d.JWKSURI == "" {
		return nil, apperrors.New("discovery document is incomplete")
	}
	return &d, nil
}

func identityFromClaims(c map[string]any) domain.ExternalIdentity {
	str := func(key string) string {
		v, _ := c[key].(string)
		return strings.TrimSpace(v)
	}
	out := domain.ExternalIdentity{
		Subject: str("sub"),
		Name:    str("name"),
		Email:   str("email"),
		Picture: str("picture"),
	}
	if out.Name == "" {
		out.Name = str("preferred_username")
	}
	if out.Name == "" {
		out.Name = out.Email
	}
	return out
}

func unauthorized(message string) error {
	return apperrors.Mark(apperrors.New(message), apperrors.ErrUnauthorized)
}
