// Package auth manages the bearer credential used for campaign API calls:
// one cached token, refreshed on expiry or on rejection by the server.
package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/adops-io/campaign-sync/pkg/ratelimit"
)

// Prometheus metrics for token lifecycle.
var (
	authExchangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_sync_auth_exchanges_total",
		Help: "Total token exchanges performed against the auth endpoint",
	})

	authFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_sync_auth_failures_total",
		Help: "Total failed token exchanges",
	})
)

const (
	// DefaultLifetime is assumed when the server omits expires_in.
	DefaultLifetime = time.Hour

	// SafetyMargin is subtracted from the server lifetime so a token is
	// never presented right at its expiry boundary.
	SafetyMargin = 30 * time.Second

	tokenPath = "/auth/token"
)

// Config holds the token manager configuration.
type Config struct {
	// BaseURL of the campaign API, without trailing slash.
	BaseURL string

	// ClientID and ClientSecret are sent as HTTP Basic credentials.
	ClientID     string
	ClientSecret string

	// Timeout per token exchange.
	Timeout time.Duration
}

// Credential is a bearer token with its computed expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the credential can still be presented.
func (c Credential) Valid(now time.Time) bool {
	return c.Token != "" && now.Before(c.ExpiresAt)
}

// Manager acquires and caches the bearer credential. The token exchange
// is paced by the shared rate limiter but is deliberately not routed
// through the request executor: the executor depends on the manager for
// tokens, and a retry loop inside the exchange would recurse. A failed
// exchange surfaces immediately.
type Manager struct {
	cfg        Config
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger

	cached Credential

	// now is stubbed in tests.
	now func() time.Time
}

// NewManager creates a token manager.
func NewManager(cfg Config, limiter *ratelimit.Limiter, logger zerolog.Logger) (*Manager, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client credentials are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Manager{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger.With().Str("component", "auth").Logger(),
		now:        time.Now,
	}, nil
}

// Token returns a currently valid bearer token, performing a token
// exchange only when the cache is empty or expired.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if m.cached.Valid(m.now()) {
		return m.cached.Token, nil
	}

	cred, err := m.exchange(ctx)
	if err != nil {
		return "", err
	}

	m.cached = cred
	return cred.Token, nil
}

// Invalidate clears the cached credential. Called by the executor when
// the server rejects a token with 401.
func (m *Manager) Invalidate() {
	m.logger.Debug().Msg("Invalidating cached token")
	m.cached = Credential{}
}

// exchange performs one POST /auth/token call with Basic credentials.
func (m *Manager) exchange(ctx context.Context) (Credential, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return Credential{}, err
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.BaseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(m.cfg.ClientID, m.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	authExchangesTotal.Inc()

	resp, err := m.httpClient.Do(req)
	if err != nil {
		authFailuresTotal.Inc()
		return Credential{}, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		authFailuresTotal.Inc()
		return Credential{}, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		authFailuresTotal.Inc()
		m.logger.Error().
			Int("status", resp.StatusCode).
			Msg("Token exchange rejected")
		return Credential{}, fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}

	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		authFailuresTotal.Inc()
		return Credential{}, fmt.Errorf("token response missing access_token")
	}

	lifetime := DefaultLifetime
	if v := gjson.GetBytes(body, "expires_in"); v.Exists() {
		lifetime = time.Duration(v.Int()) * time.Second
	}
	if lifetime <= SafetyMargin {
		// Extremely short lifetimes would expire the token before first
		// use; keep at least one safety margin of usable time.
		lifetime = 2 * SafetyMargin
	}

	cred := Credential{
		Token:     token,
		ExpiresAt: m.now().Add(lifetime - SafetyMargin),
	}

	m.logger.Info().
		Time("expires_at", cred.ExpiresAt).
		Msg("Acquired access token")

	return cred, nil
}
