package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bimcloud-demo/internal/config"
	"bimcloud-demo/internal/domain"
	"bimcloud-demo/internal/domain/ports/adapter"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var _ adapter.TokenProvider = (*Provider)(nil)

// Provider performs the OAuth2 client-credentials exchange.
type Provider struct {
	cfg        clientcredentials.Config
	httpClient *http.Client
	log        *zerolog.Logger
}

func NewProvider(cfg config.IdentityConfig, httpClient *http.Client, logger *zerolog.Logger) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	l := logger.With().Str("component", "IdentityProvider").Logger()
	return &Provider{
		cfg: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		},
		httpClient: httpClient,
		log:        &l,
	}
}

// Token returns a bearer token for this run. Missing client credentials fail before any
// request is sent.
func (p *Provider) Token(ctx context.Context) (adapter.Credentials, error) {
	if p.cfg.ClientID == "" || p.cfg.ClientSecret == "" {
		return adapter.Credentials{}, fmt.Errorf("%w: client id and client secret must be provided", domain.ErrAuthentication)
	}
	if p.cfg.TokenURL == "" {
		return adapter.Credentials{}, fmt.Errorf("%w: token url is not configured", domain.ErrAuthentication)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.cfg.Token(ctx)
	if err != nil {
		return adapter.Credentials{}, fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}
	if tok.AccessToken == "" {
		return adapter.Credentials{}, fmt.Errorf("%w: token response has no access_token", domain.ErrAuthentication)
	}

	expires := tok.Expiry
	if expires.IsZero() {
		expires = jwtExpiry(tok.AccessToken)
	}
	ev := p.log.Info()
	if !expires.IsZero() {
		ev = ev.Time("expires_at", expires)
	}
	ev.Msg("access token acquired")

	return adapter.Credentials{AccessToken: tok.AccessToken, ExpiresAt: expires}, nil
}

// jwtExpiry reads the exp claim without verifying the signature. The token is only inspected
// for logging; the API is the party that validates it.
func jwtExpiry(raw string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
