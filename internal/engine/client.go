package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "algopilot-panel/internal/errors"
	"algopilot-panel/internal/logging"
	"algopilot-panel/internal/models"
	"algopilot-panel/internal/resilience"
	"algopilot-panel/internal/session"
)

// Client implements API over HTTP/JSON with bearer-token authentication.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sess       *session.Session
	health     *resilience.LinkHealth
	logger     zerolog.Logger
}

// ClientConfig holds configuration for the engine client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Session *session.Session
	Health  *resilience.LinkHealth
	Logger  zerolog.Logger
}

// NewClient creates a new engine client. Every call applies the fixed
// request timeout and attaches the current token when one is present.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	health := cfg.Health
	if health == nil {
		health = resilience.NewLinkHealth()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		sess:       cfg.Session,
		health:     health,
		logger:     cfg.Logger,
	}
}

// Health returns the link-health tracker fed by this client.
func (c *Client) Health() *resilience.LinkHealth {
	return c.health
}

// errorBody is the engine's error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

// do issues one request. On 401 it invalidates the session and returns the
// session-expired sentinel; any other failure becomes a *RemoteError.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.baseURL == "" {
		return apperrors.ErrEngineUnconfigured
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, "encoding request")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return apperrors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.sess.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logger := logging.WithEndpoint(c.logger, path)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.health.Record(path, latency, err)
		logger.Debug().Dur("latency", latency).Err(err).Msg("Engine call failed")
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() || ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		return apperrors.NewRemoteError(path, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Expired or invalid token. Uniform across endpoints: drop the
		// session so no later call goes out with the old token.
		c.health.Record(path, latency, apperrors.ErrSessionExpired)
		c.sess.Invalidate()
		logger.Warn().Msg("Engine returned 401, session invalidated")
		return apperrors.ErrSessionExpired
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := decodeDetail(resp.Body)
		remoteErr := apperrors.NewRemoteError(path, resp.StatusCode, detail, nil)
		c.health.Record(path, latency, remoteErr)
		logger.Debug().Int("status", resp.StatusCode).Msg("Engine call rejected")
		return remoteErr
	}

	c.health.Record(path, latency, nil)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewRemoteError(path, resp.StatusCode, "", apperrors.Wrap(err, "decoding response"))
	}
	return nil
}

func decodeDetail(r io.Reader) string {
	var eb errorBody
	if err := json.NewDecoder(r).Decode(&eb); err != nil {
		return ""
	}
	return eb.Detail
}

// Login exchanges credentials for a bearer token and stores it in the
// session. A 401 here means bad credentials, not an expired session, so the
// existing session (if any) is left alone.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if c.baseURL == "" {
		return apperrors.ErrEngineUnconfigured
	}

	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return apperrors.Wrap(err, "encoding credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return apperrors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.health.Record("/auth/login", latency, err)
		return apperrors.NewRemoteError("/auth/login", 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.health.Record("/auth/login", latency, apperrors.ErrInvalidCredentials)
		return apperrors.ErrInvalidCredentials
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := decodeDetail(resp.Body)
		remoteErr := apperrors.NewRemoteError("/auth/login", resp.StatusCode, detail, nil)
		c.health.Record("/auth/login", latency, remoteErr)
		return remoteErr
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return apperrors.NewRemoteError("/auth/login", resp.StatusCode, "", apperrors.Wrap(err, "decoding response"))
	}
	if result.AccessToken == "" {
		return apperrors.NewRemoteError("/auth/login", resp.StatusCode, "engine returned empty access token", nil)
	}

	c.health.Record("/auth/login", latency, nil)
	return c.sess.SetToken(result.AccessToken)
}

// GetStatus fetches the engine's operational status.
func (c *Client) GetStatus(ctx context.Context) (models.OperationalStatus, error) {
	var status models.OperationalStatus
	err := c.do(ctx, http.MethodGet, "/control/status", nil, &status)
	return status, err
}

// Resume starts or resumes the algo.
func (c *Client) Resume(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/control/resume", nil, nil)
}

// Pause pauses the algo.
func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/control/pause", nil, nil)
}

// EmergencyStop halts all trading immediately.
func (c *Client) EmergencyStop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/control/emergency-stop", nil, nil)
}

// ResetEmergency acknowledges an emergency stop, moving the engine to
// STOPPED. Trading does not resume on its own.
func (c *Client) ResetEmergency(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/control/reset-emergency", nil, nil)
}

// CloseActiveTrade closes the currently open trade at market.
func (c *Client) CloseActiveTrade(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/control/trades/close", nil, nil)
}

// GetTrades fetches the engine's trade history.
func (c *Client) GetTrades(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	err := c.do(ctx, http.MethodGet, "/control/trades", nil, &trades)
	return trades, err
}

// GetPnL fetches the aggregate performance summary.
func (c *Client) GetPnL(ctx context.Context) (models.PnLSummary, error) {
	var pnl models.PnLSummary
	err := c.do(ctx, http.MethodGet, "/control/pnl", nil, &pnl)
	return pnl, err
}

// GetConfig fetches the engine-owned configuration.
func (c *Client) GetConfig(ctx context.Context) (models.EngineConfig, error) {
	var cfg models.EngineConfig
	err := c.do(ctx, http.MethodGet, "/config", nil, &cfg)
	return cfg, err
}

// GetConfigFields fetches display metadata for the configuration keys.
func (c *Client) GetConfigFields(ctx context.Context) (models.FieldSet, error) {
	var result struct {
		Fields models.FieldSet `json:"fields"`
	}
	err := c.do(ctx, http.MethodGet, "/config/fields", nil, &result)
	return result.Fields, err
}

// ValidateConfig asks the engine to validate the server-held configuration.
func (c *Client) ValidateConfig(ctx context.Context) (ValidationResult, error) {
	var result ValidationResult
	err := c.do(ctx, http.MethodGet, "/config/validate", nil, &result)
	return result, err
}

// SaveConfig submits the full working copy and returns the engine's
// authoritative echo of what was saved, which may differ from what was sent.
func (c *Client) SaveConfig(ctx context.Context, cfg models.EngineConfig) (models.EngineConfig, error) {
	var result struct {
		Config models.EngineConfig `json:"config"`
	}
	err := c.do(ctx, http.MethodPost, "/config", cfg, &result)
	return result.Config, err
}

// ResetConfig resets the engine configuration to its defaults.
func (c *Client) ResetConfig(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/config/reset", nil, nil)
}

// ToggleDryRun flips dry-run/live in a single round trip.
func (c *Client) ToggleDryRun(ctx context.Context) (ToggleResult, error) {
	var result ToggleResult
	err := c.do(ctx, http.MethodPost, "/config/toggle-dry-run", nil, &result)
	return result, err
}
