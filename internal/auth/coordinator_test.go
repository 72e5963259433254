package auth_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/auth"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConnectionRefused = errors.New("connection refused")

func seededCoordinator(t *testing.T, persister rentals.CredentialPersister, refresh auth.RefreshFunc) (*auth.Coordinator, *auth.PersistentTokenStore) {
	t.Helper()

	store := auth.NewPersistentTokenStore(persister, nil)
	store.Set(context.Background(), &auth.Token{AccessToken: "old", RefreshToken: "refresh-1"})

	return auth.NewCoordinator(store, refresh, nil), store
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestCoordinator_SingleFlight(t *testing.T) {
	t.Parallel()

	t.Run("concurrent 401s share one refresh", func(t *testing.T) {
		t.Parallel()

		const callers = 8

		release := make(chan struct{})
		coordinator, store := seededCoordinator(t, nil, func(ctx context.Context, refreshToken string) (*auth.Token, error) {
			assert.Equal(t, "refresh-1", refreshToken)
			<-release

			return &auth.Token{AccessToken: "new", RefreshToken: "refresh-2"}, nil
		})

		var wg sync.WaitGroup

		tokens := make([]string, callers)
		errs := make([]error, callers)

		for i := range callers {
			wg.Add(1)

			go func() {
				defer wg.Done()

				tokens[i], errs[i] = coordinator.HandleUnauthorized(context.Background(), "old")
			}()
		}

		require.Eventually(t, func() bool {
			return coordinator.State() == auth.StateRefreshing && coordinator.Pending() == callers-1
		}, time.Second, time.Millisecond)

		close(release)
		wg.Wait()

		for i := range callers {
			require.NoError(t, errs[i])
			assert.Equal(t, "new", tokens[i])
		}

		assert.Equal(t, int64(1), coordinator.Refreshes())
		assert.Equal(t, auth.StateIdle, coordinator.State())
		assert.Equal(t, "refresh-2", store.Get().RefreshToken)
	})

	t.Run("failed refresh rejects every caller and clears the session", func(t *testing.T) {
		t.Parallel()

		const callers = 5

		release := make(chan struct{})
		persister := &memoryPersister{}
		coordinator, store := seededCoordinator(t, persister, func(ctx context.Context, refreshToken string) (*auth.Token, error) {
			<-release

			return nil, &rentals.Error{Kind: rentals.KindUnauthorized, StatusCode: http.StatusUnauthorized, Message: "refresh token revoked"}
		})

		var wg sync.WaitGroup

		errs := make([]error, callers)

		for i := range callers {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, errs[i] = coordinator.HandleUnauthorized(context.Background(), "old")
			}()
		}

		require.Eventually(t, func() bool {
			return coordinator.Pending() == callers-1
		}, time.Second, time.Millisecond)

		close(release)
		wg.Wait()

		for _, err := range errs {
			require.Error(t, err)
			assert.True(t, rentals.IsUnauthorized(err))
			assert.Equal(t, "refresh token revoked", rentals.MessageOf(err))
		}

		assert.Equal(t, int64(1), coordinator.Refreshes())
		assert.Empty(t, store.AccessToken())
		assert.Equal(t, 1, persister.deletes)
	})
}

func TestCoordinator_HandleUnauthorized(t *testing.T) {
	t.Parallel()

	t.Run("stale token replays without refreshing", func(t *testing.T) {
		t.Parallel()

		coordinator, store := seededCoordinator(t, nil, func(ctx context.Context, refreshToken string) (*auth.Token, error) {
			t.Fatal("refresh must not run")

			return nil, nil
		})
		store.Set(context.Background(), &auth.Token{AccessToken: "already-refreshed", RefreshToken: "refresh-2"})

		token, err := coordinator.HandleUnauthorized(context.Background(), "old")
		require.NoError(t, err)
		assert.Equal(t, "already-refreshed", token)
		assert.Equal(t, int64(0), coordinator.Refreshes())
	})

	t.Run("missing refresh token fails without a refresh call", func(t *testing.T) {
		t.Parallel()

		store := auth.NewPersistentTokenStore(nil, nil)
		store.Set(context.Background(), &auth.Token{AccessToken: "old"})
		coordinator := auth.NewCoordinator(store, func(ctx context.Context, refreshToken string) (*auth.Token, error) {
			t.Fatal("refresh must not run")

			return nil, nil
		}, nil)

		_, err := coordinator.HandleUnauthorized(context.Background(), "old")
		require.Error(t, err)
		assert.True(t, rentals.IsUnauthorized(err))
		assert.Equal(t, int64(0), coordinator.Refreshes())
		assert.Empty(t, store.AccessToken())
	})

	t.Run("unreachable auth service keeps the session", func(t *testing.T) {
		t.Parallel()

		coordinator, store := seededCoordinator(t, nil, func(ctx context.Context, refreshToken string) (*auth.Token, error) {
			return nil, rentals.NewNetworkError(errConnectionRefused)
		})

		_, err := coordinator.HandleUnauthorized(context.Background(), "old")
		require.Error(t, err)
		assert.True(t, rentals.IsNetwork(err))
		assert.Equal(t, "old", store.AccessToken())
	})

	t.Run("refresh token is kept when not rotated", func(t *testing.T) {
		t.Parallel()

		coordinator, store := seededCoordinator(t, nil, func(ctx context.Context, refreshToken string) (*auth.Token, error) {
			return &auth.Token{AccessToken: "new"}, nil
		})

		token, err := coordinator.HandleUnauthorized(context.Background(), "old")
		require.NoError(t, err)
		assert.Equal(t, "new", token)
		assert.Equal(t, "refresh-1", store.Get().RefreshToken)
	})

	t.Run("waiter honours its own context", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		coordinator, _ := seededCoordinator(t, nil, func(ctx context.Context, refreshToken string) (*auth.Token, error) {
			<-release

			return &auth.Token{AccessToken: "new"}, nil
		})

		driverDone := make(chan error, 1)

		go func() {
			_, err := coordinator.HandleUnauthorized(context.Background(), "old")
			driverDone <- err
		}()

		require.Eventually(t, func() bool {
			return coordinator.State() == auth.StateRefreshing
		}, time.Second, time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		waiterDone := make(chan error, 1)

		go func() {
			_, err := coordinator.HandleUnauthorized(ctx, "old")
			waiterDone <- err
		}()

		require.Eventually(t, func() bool { return coordinator.Pending() == 1 }, time.Second, time.Millisecond)
		cancel()
		require.ErrorIs(t, <-waiterDone, context.Canceled)

		close(release)
		require.NoError(t, <-driverDone)
	})

	t.Run("refresh function can be installed later", func(t *testing.T) {
		t.Parallel()

		coordinator, _ := seededCoordinator(t, nil, nil)
		coordinator.SetRefreshFunc(func(ctx context.Context, refreshToken string) (*auth.Token, error) {
			return &auth.Token{AccessToken: "late"}, nil
		})

		token, err := coordinator.HandleUnauthorized(context.Background(), "old")
		require.NoError(t, err)
		assert.Equal(t, "late", token)
		assert.Equal(t, "idle", coordinator.State().String())
	})
}
