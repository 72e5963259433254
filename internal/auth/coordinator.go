package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
)

// RefreshFunc exchanges a refresh token for a new session.
type RefreshFunc func(ctx context.Context, refreshToken string) (*Token, error)

// State is the coordinator's refresh state.
type State int

const (
	// StateIdle means no refresh is in flight.
	StateIdle State = iota
	// StateRefreshing means one refresh is in flight and 401s are queued.
	StateRefreshing
)

func (s State) String() string {
	if s == StateRefreshing {
		return "refreshing"
	}

	return "idle"
}

type refreshResult struct {
	accessToken string
	err         error
}

// Coordinator runs at most one session refresh at a time. The first request
// to fail with 401 drives the refresh; requests failing while it runs wait
// for its outcome and replay with the new token, or all fail with its error.
type Coordinator struct {
	store  *PersistentTokenStore
	logger rentals.Logger

	mu      sync.Mutex
	state   State
	waiters []chan refreshResult
	refresh RefreshFunc

	refreshes atomic.Int64
}

// NewCoordinator creates a coordinator over store. The refresh function may
// be supplied later with SetRefreshFunc.
func NewCoordinator(store *PersistentTokenStore, refresh RefreshFunc, logger rentals.Logger) *Coordinator {
	if logger == nil {
		logger = rentals.NopLogger{}
	}

	return &Coordinator{
		store:   store,
		refresh: refresh,
		logger:  logger,
	}
}

// SetRefreshFunc installs the refresh call.
func (c *Coordinator) SetRefreshFunc(refresh RefreshFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refresh = refresh
}

// AccessToken returns the token to attach to the next request.
func (c *Coordinator) AccessToken() string {
	return c.store.AccessToken()
}

// State reports whether a refresh is in flight.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Pending returns how many requests wait for the refresh in flight.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.waiters)
}

// Refreshes returns how many refresh calls were issued.
func (c *Coordinator) Refreshes() int64 {
	return c.refreshes.Load()
}

// HandleUnauthorized is called after a request sent with staleToken got a 401.
// It returns the access token to replay the request with.
func (c *Coordinator) HandleUnauthorized(ctx context.Context, staleToken string) (string, error) {
	c.mu.Lock()

	if c.state == StateRefreshing {
		wait := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, wait)
		queued := len(c.waiters)
		c.mu.Unlock()

		c.logger.Debug("Request queued behind session refresh", map[string]interface{}{"queued": queued})

		select {
		case result := <-wait:
			return result.accessToken, result.err
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for session refresh: %w", ctx.Err())
		}
	}

	// A refresh finished after this request was sent.
	if current := c.store.AccessToken(); current != "" && current != staleToken {
		c.mu.Unlock()

		return current, nil
	}

	c.state = StateRefreshing
	refresh := c.refresh
	c.mu.Unlock()

	accessToken, err := c.runRefresh(ctx, refresh)

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.state = StateIdle
	c.mu.Unlock()

	for _, wait := range waiters {
		wait <- refreshResult{accessToken: accessToken, err: err}
	}

	return accessToken, err
}

// runRefresh performs the refresh and publishes its outcome to the store. It
// ignores the driver's cancellation so queued requests are not failed by it.
func (c *Coordinator) runRefresh(ctx context.Context, refresh RefreshFunc) (string, error) {
	ctx = context.WithoutCancel(ctx)

	token := c.store.Get()
	if token == nil || token.RefreshToken == "" || refresh == nil {
		c.store.Clear(ctx)
		c.logger.Info("Session expired without a refresh token", nil)

		return "", sessionExpired(constants.ErrNoRefreshToken)
	}

	c.refreshes.Add(1)
	c.logger.Debug("Refreshing session", nil)

	refreshed, err := refresh(ctx, token.RefreshToken)
	if err != nil {
		if rentals.IsNetwork(err) {
			c.logger.Warn("Session refresh unreachable", map[string]interface{}{"error": err.Error()})

			return "", fmt.Errorf("refreshing session: %w", err)
		}

		c.store.Clear(ctx)
		c.logger.Info("Session refresh rejected", map[string]interface{}{"error": err.Error()})

		return "", sessionExpired(err)
	}

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = token.RefreshToken
	}

	c.store.Set(ctx, refreshed)
	c.logger.Debug("Session refreshed", nil)

	return refreshed.AccessToken, nil
}

func sessionExpired(err error) error {
	message := "session expired, please log in again"

	var rentalsErr *rentals.Error
	if errors.As(err, &rentalsErr) && rentalsErr.Message != "" {
		message = rentalsErr.Message
	}

	return &rentals.Error{
		Kind:       rentals.KindUnauthorized,
		StatusCode: http.StatusUnauthorized,
		Message:    message,
		Err:        err,
	}
}
