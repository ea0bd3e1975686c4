package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/courseloop/authgate/pkg/apperrors"
	"github.com/courseloop/authgate/pkg/token"
	"go.uber.org/zap"
)

// Config configures a Client
type Config struct {
	// BaseURL is the issuer's root, e.g. "https://api.example.com".
	// Login, refresh and logout endpoints are derived from it.
	BaseURL string

	// Store holds the current token. Defaults to a fresh InMemoryStore.
	Store TokenStore

	// HTTPClient performs all requests. Defaults to http.DefaultClient;
	// give it a timeout so a hung exchange cannot park waiters forever.
	HTTPClient *http.Client

	// Secret optionally enables cryptographic verification of refreshed
	// tokens. See CoordinatorConfig.Secret.
	Secret []byte

	Threshold  time.Duration
	Interval   time.Duration
	MaxWaiters int
	Logger     *zap.Logger
}

// Client wraps outbound authenticated calls: it attaches the current
// bearer token and performs exactly one coordinated refresh-and-retry cycle
// on an authorization failure. There is no unbounded retry loop.
type Client struct {
	store       TokenStore
	coordinator *Coordinator
	httpClient  *http.Client
	baseURL     string
	logger      *zap.Logger
}

// New creates a Client and its refresh coordinator
func New(cfg Config) *Client {
	if cfg.Store == nil {
		cfg.Store = NewInMemoryStore()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	coordinator := NewCoordinator(CoordinatorConfig{
		RefreshURL: baseURL + "/auth/refresh",
		Store:      cfg.Store,
		HTTPClient: cfg.HTTPClient,
		Secret:     cfg.Secret,
		Threshold:  cfg.Threshold,
		Interval:   cfg.Interval,
		MaxWaiters: cfg.MaxWaiters,
		Logger:     cfg.Logger,
	})

	return &Client{
		store:       cfg.Store,
		coordinator: coordinator,
		httpClient:  cfg.HTTPClient,
		baseURL:     baseURL,
		logger:      cfg.Logger,
	}
}

// Coordinator exposes the refresh coordinator, e.g. to run its background
// renewal loop or to wake it on visibility changes.
func (c *Client) Coordinator() *Coordinator {
	return c.coordinator
}

// Store exposes the session store
func (c *Client) Store() TokenStore {
	return c.store
}

// Do performs an authenticated request.
//
// The request must carry a GetBody so it can be replayed; requests built
// with http.NewRequest from a byte reader get one for free. On a 401 the
// client performs one coordinated refresh (reusing any in-flight one) and
// retries once; a second 401 is terminal and clears the session.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	tok := c.store.Token()
	if tok == "" {
		return nil, fmt.Errorf("authenticated call: no session: %w", apperrors.ErrUnauthenticated)
	}

	// Renew opportunistically before the call rather than waiting for the
	// 401. If a refresh is already in flight, wait for it: never proceed
	// with a token known to be stale.
	if c.coordinator.TokenStale() {
		if _, err := c.coordinator.Refresh(req.Context()); err != nil {
			return nil, err
		}
		tok = c.store.Token()
	}

	resp, err := c.send(req, tok)
	if err != nil {
		return nil, fmt.Errorf("authenticated call: %v: %w", err, apperrors.ErrRequestFailed)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	// One coordinated refresh, one retry. A refresh already in flight
	// from the pre-flight check is reused, not duplicated.
	retriesTotal.Inc()
	if _, err := c.coordinator.Refresh(req.Context()); err != nil {
		return nil, err
	}

	resp, err = c.send(req, c.store.Token())
	if err != nil {
		return nil, fmt.Errorf("authenticated call: retry: %v: %w", err, apperrors.ErrRequestFailed)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// A second consecutive 401 is terminal; the caller must
		// re-authenticate and no authenticated UI state may survive.
		drain(resp)
		c.store.Clear()
		return nil, fmt.Errorf("authenticated call: rejected after refresh: %w", apperrors.ErrUnauthenticated)
	}

	return resp, nil
}

func (c *Client) send(req *http.Request, tok string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.Body != nil {
		if req.GetBody == nil {
			return nil, fmt.Errorf("request body is not replayable")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		clone.Body = body
	}
	clone.Header.Set("Authorization", "Bearer "+tok)
	return c.httpClient.Do(clone)
}

// Login authenticates with email and password. On success the issued token
// replaces whatever the store held before.
func (c *Client) Login(ctx context.Context, email, password string) (*token.Claims, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login: %v: %w", err, apperrors.ErrRequestFailed)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("login: %w", apperrors.ErrInvalidCredentials)
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("login: %w", apperrors.ErrRateLimited)
	default:
		return nil, fmt.Errorf("login: status %d: %w", resp.StatusCode, apperrors.ErrRequestFailed)
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("login: decode response: %w", apperrors.ErrRequestFailed)
	}
	if !envelope.Success || envelope.Data.Token == "" {
		return nil, fmt.Errorf("login: empty token in response: %w", apperrors.ErrRequestFailed)
	}

	claims, err := c.coordinator.verify(envelope.Data.Token)
	if err != nil {
		return nil, fmt.Errorf("login: issued token rejected: %w", err)
	}

	c.store.Set(envelope.Data.Token)
	return claims, nil
}

// Logout tells the issuer to invalidate the session, then clears the store
// unconditionally: logout never leaves a stale token behind, even when the
// network call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.store.Clear()

	tok := c.store.Token()
	if tok == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("logout: %v: %w", err, apperrors.ErrRequestFailed)
	}
	drain(resp)

	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
