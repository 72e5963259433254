package client

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/rentals-client/internal/auth"
	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/internal/http"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
)

// AuthClient implements rentals.AuthClient.
type AuthClient struct {
	httpClient *http.Client
	store      *auth.PersistentTokenStore
	cache      *rentals.QueryCache
	logger     rentals.Logger
}

// NewAuthClient creates a new auth client.
func NewAuthClient(httpClient *http.Client, store *auth.PersistentTokenStore, cache *rentals.QueryCache, logger rentals.Logger) *AuthClient {
	return &AuthClient{
		httpClient: httpClient,
		store:      store,
		cache:      cache,
		logger:     logger,
	}
}

// Register implements rentals.AuthClient.Register.
func (c *AuthClient) Register(ctx context.Context, request *rentals.RegisterRequest) (*rentals.Session, error) {
	resp, err := c.httpClient.Post(ctx, constants.AuthRegisterPath, request)
	if err != nil {
		return nil, fmt.Errorf("registering: %w", err)
	}

	return c.startSession(ctx, resp.Body, rentals.MutationRegister)
}

// Login implements rentals.AuthClient.Login.
func (c *AuthClient) Login(ctx context.Context, request *rentals.LoginRequest) (*rentals.Session, error) {
	resp, err := c.httpClient.Post(ctx, constants.AuthLoginPath, request)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	return c.startSession(ctx, resp.Body, rentals.MutationLogin)
}

func (c *AuthClient) startSession(ctx context.Context, body []byte, mutation rentals.Mutation) (*rentals.Session, error) {
	session, err := decodeData[rentals.Session](body, "session")
	if err != nil {
		return nil, err
	}

	if session.AccessToken == "" {
		return nil, &rentals.Error{Kind: rentals.KindServer, Message: "session response carries no access token", RawBody: body}
	}

	token := auth.NewToken(session.AccessToken, session.RefreshToken, session.ExpiresIn)
	session.ExpiresAt = token.ExpiresAt

	c.store.Set(ctx, token)
	invalidate(ctx, c.cache, c.logger, mutation, rentals.MutationTarget{})

	c.logger.Info("Session started", map[string]interface{}{"user": session.User.Email})

	return session, nil
}

// Refresh exchanges a refresh token for a new token pair. It backs the
// session coordinator and is not part of rentals.AuthClient.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (*auth.Token, error) {
	resp, err := c.httpClient.Post(ctx, constants.AuthRefreshPath, &rentals.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("refreshing session: %w", err)
	}

	session, err := decodeData[rentals.Session](resp.Body, "refresh")
	if err != nil {
		return nil, err
	}

	if session.AccessToken == "" {
		return nil, &rentals.Error{Kind: rentals.KindServer, Message: "refresh response carries no access token", RawBody: resp.Body}
	}

	return auth.NewToken(session.AccessToken, session.RefreshToken, session.ExpiresIn), nil
}

// Logout implements rentals.AuthClient.Logout. The local session is dropped
// even when the server call fails.
func (c *AuthClient) Logout(ctx context.Context) error {
	var logoutErr error

	if token := c.store.Get(); token != nil {
		_, err := c.httpClient.Post(ctx, constants.AuthLogoutPath, &rentals.RefreshRequest{RefreshToken: token.RefreshToken})
		if err != nil && !rentals.IsUnauthorized(err) {
			logoutErr = fmt.Errorf("logging out: %w", err)
		}
	}

	c.store.Clear(ctx)
	invalidate(ctx, c.cache, c.logger, rentals.MutationLogout, rentals.MutationTarget{})

	return logoutErr
}

// Profile implements rentals.AuthClient.Profile.
func (c *AuthClient) Profile(ctx context.Context) (*rentals.User, error) {
	body, err := cachedGet(ctx, c.cache, c.httpClient, rentals.ProfileKey(), constants.ProfileStaleTime, constants.AuthProfilePath, nil)
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	return decodeData[rentals.User](body, "profile")
}

// UpdateProfile implements rentals.AuthClient.UpdateProfile.
func (c *AuthClient) UpdateProfile(ctx context.Context, request *rentals.ProfileUpdateRequest) (*rentals.User, error) {
	resp, err := c.httpClient.Patch(ctx, constants.AuthProfilePath, request)
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	return settle(ctx, c.cache, c.logger, rentals.MutationProfileUpdate, rentals.MutationTarget{}, resp.Body, "profile", c.Profile)
}

// ChangePassword implements rentals.AuthClient.ChangePassword.
func (c *AuthClient) ChangePassword(ctx context.Context, request *rentals.ChangePasswordRequest) error {
	_, err := c.httpClient.Post(ctx, constants.AuthChangePasswordPath, request)
	if err != nil {
		return fmt.Errorf("changing password: %w", err)
	}

	return nil
}

// ForgotPassword implements rentals.AuthClient.ForgotPassword. It returns the
// service's confirmation message.
func (c *AuthClient) ForgotPassword(ctx context.Context, request *rentals.ForgotPasswordRequest) (string, error) {
	resp, err := c.httpClient.Post(ctx, constants.AuthForgotPasswordPath, request)
	if err != nil {
		return "", fmt.Errorf("requesting password reset: %w", err)
	}

	return decodeMessage(resp.Body), nil
}

// ResetPassword implements rentals.AuthClient.ResetPassword.
func (c *AuthClient) ResetPassword(ctx context.Context, request *rentals.ResetPasswordRequest) (string, error) {
	resp, err := c.httpClient.Post(ctx, constants.AuthResetPasswordPath, request)
	if err != nil {
		return "", fmt.Errorf("resetting password: %w", err)
	}

	return decodeMessage(resp.Body), nil
}

// IsAuthenticated reports whether a usable or refreshable session exists.
func (c *AuthClient) IsAuthenticated() bool {
	token := c.store.Get()

	return token.Valid() || (token != nil && token.RefreshToken != "")
}
