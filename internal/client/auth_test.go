package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/fivetwenty-io/rentals-client/internal/client"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	mu         sync.Mutex
	credential *rentals.Credential
}

func (p *recordingPersister) Load(ctx context.Context) (*rentals.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.credential, nil
}

func (p *recordingPersister) Save(ctx context.Context, credential *rentals.Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.credential = credential

	return nil
}

func (p *recordingPersister) Delete(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.credential = nil

	return nil
}

func (p *recordingPersister) get() *rentals.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.credential
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestAuthClient_Session(t *testing.T) {
	t.Parallel()

	t.Run("login persists the credential and logout drops it", func(t *testing.T) {
		t.Parallel()

		var logoutBody rentals.RefreshRequest

		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
			var request rentals.LoginRequest

			assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			assert.Equal(t, "ada@example.com", request.Email)

			WriteData(w, http.StatusOK, rentals.Session{
				User:         rentals.User{Email: request.Email},
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
				ExpiresIn:    900,
			})
		})
		mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&logoutBody))

			WriteMessage(w, http.StatusOK, "Logged out")
		})

		server := httptest.NewServer(mux)
		defer server.Close()

		persister := &recordingPersister{}
		client := NewTestClient(t, server.URL, func(config *rentals.Config) {
			config.Persister = persister
		})

		session, err := client.Auth().Login(context.Background(), &rentals.LoginRequest{Email: "ada@example.com", Password: "secret"})
		require.NoError(t, err)
		assert.False(t, session.ExpiresAt.IsZero())
		assert.True(t, client.Auth().IsAuthenticated())
		require.NotNil(t, persister.get())
		assert.Equal(t, "refresh-1", persister.get().RefreshToken)

		require.NoError(t, client.Auth().Logout(context.Background()))
		assert.Equal(t, "refresh-1", logoutBody.RefreshToken)
		assert.False(t, client.Auth().IsAuthenticated())
		assert.Nil(t, persister.get())
	})

	t.Run("stored credential is picked up by a new client", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer stored", r.Header.Get("Authorization"))
			WriteData(w, http.StatusOK, rentals.User{ID: "user-1"})
		}))
		defer server.Close()

		persister := &recordingPersister{credential: &rentals.Credential{AccessToken: "stored", RefreshToken: "refresh"}}
		client := NewTestClient(t, server.URL, func(config *rentals.Config) {
			config.Persister = persister
		})

		user, err := client.Auth().Profile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
	})

	t.Run("logout tolerates an expired server session", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteMessage(w, http.StatusUnauthorized, "Token expired")
		}))
		defer server.Close()

		client := NewTestClient(t, server.URL, func(config *rentals.Config) {
			config.AccessToken = "expired"
		})

		require.NoError(t, client.Auth().Logout(context.Background()))
		assert.False(t, client.Auth().IsAuthenticated())
	})

	t.Run("session without access token is a server error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteData(w, http.StatusOK, rentals.Session{User: rentals.User{ID: "user-1"}})
		}))
		defer server.Close()

		client := NewTestClient(t, server.URL)

		_, err := client.Auth().Login(context.Background(), &rentals.LoginRequest{Email: "ada@example.com"})
		require.Error(t, err)
		assert.Equal(t, rentals.KindServer, rentals.KindOf(err))
		assert.False(t, client.Auth().IsAuthenticated())
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestAuthClient_Profile(t *testing.T) {
	t.Parallel()

	t.Run("update invalidates the cached profile", func(t *testing.T) {
		t.Parallel()

		name := "Ada"

		mux := http.NewServeMux()
		mux.HandleFunc("GET /api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
			WriteData(w, http.StatusOK, rentals.User{ID: "user-1", Name: name})
		})
		mux.HandleFunc("PATCH /api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
			var request rentals.ProfileUpdateRequest

			assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			assert.Nil(t, request.Phone)

			if assert.NotNil(t, request.Name) {
				name = *request.Name
			}

			WriteData(w, http.StatusOK, rentals.User{ID: "user-1", Name: name})
		})

		server := httptest.NewServer(mux)
		defer server.Close()

		client := NewTestClient(t, server.URL, func(config *rentals.Config) {
			config.AccessToken = "access"
		})
		ctx := context.Background()

		user, err := client.Auth().Profile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Ada", user.Name)
		assert.True(t, client.Cache().Has(ctx, rentals.ProfileKey()))

		_, err = client.Auth().UpdateProfile(ctx, &rentals.ProfileUpdateRequest{Name: StringPtr("Ada Lovelace")})
		require.NoError(t, err)
		assert.False(t, client.Cache().Has(ctx, rentals.ProfileKey()))

		user, err = client.Auth().Profile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", user.Name)
	})

	t.Run("update without a returned record refetches the profile", func(t *testing.T) {
		t.Parallel()

		var (
			name  atomic.Value
			reads atomic.Int32
		)

		name.Store("Ada")

		mux := http.NewServeMux()
		mux.HandleFunc("GET /api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
			reads.Add(1)
			WriteData(w, http.StatusOK, rentals.User{ID: "user-1", Name: name.Load().(string)})
		})
		mux.HandleFunc("PATCH /api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
			name.Store("Ada Lovelace")

			w.WriteHeader(http.StatusNoContent)
		})

		server := httptest.NewServer(mux)
		defer server.Close()

		client := NewTestClient(t, server.URL, func(config *rentals.Config) {
			config.AccessToken = "access"
		})
		ctx := context.Background()

		_, err := client.Auth().Profile(ctx)
		require.NoError(t, err)

		user, err := client.Auth().UpdateProfile(ctx, &rentals.ProfileUpdateRequest{Name: StringPtr("Ada Lovelace")})
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", user.Name)
		assert.Equal(t, int32(2), reads.Load())
	})

	t.Run("password flows return the server message", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
			WriteMessage(w, http.StatusOK, "Reset link sent")
		})
		mux.HandleFunc("POST /api/auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
			WriteMessage(w, http.StatusBadRequest, "Reset token expired")
		})
		mux.HandleFunc("POST /api/auth/change-password", func(w http.ResponseWriter, r *http.Request) {
			WriteMessage(w, http.StatusOK, "Password changed")
		})

		server := httptest.NewServer(mux)
		defer server.Close()

		client := NewTestClient(t, server.URL)
		ctx := context.Background()

		message, err := client.Auth().ForgotPassword(ctx, &rentals.ForgotPasswordRequest{Email: "ada@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "Reset link sent", message)

		_, err = client.Auth().ResetPassword(ctx, &rentals.ResetPasswordRequest{Token: "t", NewPassword: "n"})
		require.Error(t, err)
		assert.True(t, rentals.IsValidation(err))
		assert.Equal(t, "Reset token expired", rentals.MessageOf(err))

		require.NoError(t, client.Auth().ChangePassword(ctx, &rentals.ChangePasswordRequest{CurrentPassword: "a", NewPassword: "b"}))
	})
}
