package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/courseloop/authgate/pkg/apperrors"
	"github.com/courseloop/authgate/pkg/token"
	"go.uber.org/zap"
)

// cookieName mirrors the server's session cookie contract.
const cookieName = "auth_token"

const (
	// DefaultRefreshThreshold is how close to expiry a token may get
	// before it must be renewed.
	DefaultRefreshThreshold = 5 * time.Minute

	// DefaultCheckInterval is how often the background loop re-evaluates
	// staleness while a session is active.
	DefaultCheckInterval = 30 * time.Second

	// DefaultMaxWaiters bounds the queue of callers parked on one
	// in-flight refresh. Callers over the cap are rejected immediately
	// rather than growing the queue without bound under sustained failure.
	DefaultMaxWaiters = 64
)

// CoordinatorConfig configures a refresh coordinator
type CoordinatorConfig struct {
	// RefreshURL is the token exchange endpoint.
	RefreshURL string

	// Store holds the current token. Required.
	Store TokenStore

	// HTTPClient performs the exchange. Timeouts are the transport's
	// responsibility; the coordinator adds no timeout layer of its own.
	HTTPClient *http.Client

	// Secret, when set, lets the coordinator verify refreshed tokens
	// cryptographically (trusted/backend-for-frontend deployments).
	// When nil the payload shape and expiry are still validated.
	Secret []byte

	Threshold  time.Duration
	Interval   time.Duration
	MaxWaiters int
	Logger     *zap.Logger
}

// refreshCall is the single in-flight refresh operation plus everything
// needed to fan its result out to waiters.
type refreshCall struct {
	done    chan struct{}
	claims  *token.Claims
	err     error
	waiters int
}

// Coordinator serializes concurrent refresh attempts into one in-flight
// network exchange. The zero value is not usable; construct with
// NewCoordinator.
type Coordinator struct {
	mu       sync.Mutex
	inflight *refreshCall

	store      TokenStore
	httpClient *http.Client
	refreshURL string
	secret     []byte
	threshold  time.Duration
	interval   time.Duration
	maxWaiters int
	logger     *zap.Logger
	wake       chan struct{}
}

// NewCoordinator creates a refresh coordinator
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultRefreshThreshold
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCheckInterval
	}
	if cfg.MaxWaiters <= 0 {
		cfg.MaxWaiters = DefaultMaxWaiters
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Coordinator{
		store:      cfg.Store,
		httpClient: cfg.HTTPClient,
		refreshURL: cfg.RefreshURL,
		secret:     cfg.Secret,
		threshold:  cfg.Threshold,
		interval:   cfg.Interval,
		maxWaiters: cfg.MaxWaiters,
		logger:     cfg.Logger,
		wake:       make(chan struct{}, 1),
	}
}

// ShouldRefresh reports whether the claims are within the refresh threshold
// of expiry. Unknown expiry counts as stale: when staleness cannot be
// determined the safe move is to refresh, not to trust the token.
func (c *Coordinator) ShouldRefresh(claims *token.Claims) bool {
	if claims == nil || claims.ExpiresAt == 0 {
		return true
	}
	return time.Until(time.Unix(claims.ExpiresAt, 0)) <= c.threshold
}

// TokenStale inspects the stored token without verifying it. No token at
// all is not stale — there is nothing to refresh, only to re-authenticate.
func (c *Coordinator) TokenStale() bool {
	tok := c.store.Token()
	if tok == "" {
		return false
	}
	claims, err := token.DecodeUnverified(tok)
	if err != nil {
		return true
	}
	return c.ShouldRefresh(claims)
}

// Refresh exchanges the current token for a fresh one, deduplicating
// concurrent callers onto a single network exchange.
//
// If a refresh is already in flight the caller enqueues and receives that
// call's outcome. A caller whose ctx is done before resolution abandons
// waiting, but the exchange itself runs to completion and still updates the
// store for future callers.
func (c *Coordinator) Refresh(ctx context.Context) (*token.Claims, error) {
	c.mu.Lock()
	if call := c.inflight; call != nil {
		if call.waiters >= c.maxWaiters {
			c.mu.Unlock()
			refreshCallsTotal.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("refresh: waiter queue full: %w", apperrors.ErrRefreshFailed)
		}
		call.waiters++
		c.mu.Unlock()
		return c.await(ctx, call)
	}

	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	// The exchange is intentionally detached from any one caller's ctx:
	// once started it is not cancellable and must resolve for everyone.
	go c.execute(call)

	return c.await(ctx, call)
}

func (c *Coordinator) await(ctx context.Context, call *refreshCall) (*token.Claims, error) {
	select {
	case <-call.done:
		if call.err != nil {
			refreshCallsTotal.WithLabelValues("failure").Inc()
		} else {
			refreshCallsTotal.WithLabelValues("success").Inc()
		}
		return call.claims, call.err
	case <-ctx.Done():
		refreshCallsTotal.WithLabelValues("abandoned").Inc()
		return nil, fmt.Errorf("refresh abandoned: %w", ctx.Err())
	}
}

func (c *Coordinator) execute(call *refreshCall) {
	claims, err := c.exchange()

	call.claims, call.err = claims, err

	c.mu.Lock()
	c.inflight = nil
	c.mu.Unlock()

	close(call.done)
}

// exchange performs the single network refresh. On any failure the store is
// cleared: the session is considered terminated, not merely stale.
func (c *Coordinator) exchange() (*token.Claims, error) {
	current := c.store.Token()
	if current == "" {
		return nil, fmt.Errorf("refresh: no session: %w", apperrors.ErrUnauthenticated)
	}

	refreshNetworkCallsTotal.Inc()

	req, err := http.NewRequest(http.MethodPost, c.refreshURL, nil)
	if err != nil {
		return nil, c.fail(fmt.Errorf("refresh: build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+current)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: current})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(fmt.Errorf("refresh: %v: %w", err, apperrors.ErrRefreshFailed))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(fmt.Errorf("refresh: status %d: %w", resp.StatusCode, apperrors.ErrRefreshFailed))
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, c.fail(fmt.Errorf("refresh: decode response: %w", apperrors.ErrRefreshFailed))
	}
	if !envelope.Success || envelope.Data.Token == "" {
		return nil, c.fail(fmt.Errorf("refresh: empty token in response: %w", apperrors.ErrRefreshFailed))
	}

	claims, err := c.verify(envelope.Data.Token)
	if err != nil {
		return nil, c.fail(fmt.Errorf("refresh: returned token rejected: %w", apperrors.ErrRefreshFailed))
	}

	// New token wins; the old one is discarded wholesale.
	c.store.Set(envelope.Data.Token)
	return claims, nil
}

func (c *Coordinator) verify(tok string) (*token.Claims, error) {
	if c.secret != nil {
		return token.Decode(tok, c.secret)
	}
	claims, err := token.DecodeUnverified(tok)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt < time.Now().Unix() {
		return nil, fmt.Errorf("already expired: %w", apperrors.ErrExpired)
	}
	return claims, nil
}

func (c *Coordinator) fail(err error) error {
	c.store.Clear()
	c.logger.Warn("session refresh failed, session terminated", zap.Error(err))
	return err
}

// Run drives opportunistic renewal: a periodic staleness check plus
// on-demand checks via WakeUp (e.g. when the host regains foreground
// visibility). It returns when ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-c.wake:
		}

		if c.store.Token() == "" || !c.TokenStale() {
			continue
		}
		if _, err := c.Refresh(ctx); err != nil && !isAbandoned(err) {
			c.logger.Warn("background refresh failed", zap.Error(err))
		}
	}
}

// WakeUp triggers an immediate staleness check on the Run loop. Safe to
// call from any goroutine; a pending wakeup coalesces with new ones.
func (c *Coordinator) WakeUp() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func isAbandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
