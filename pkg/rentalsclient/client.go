// Package rentalsclient provides the main entry point for creating rental marketplace clients
package rentalsclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/rentals-client/internal/client"
	"github.com/fivetwenty-io/rentals-client/internal/store"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
)

// New creates a new marketplace client.
func New(ctx context.Context, config *rentals.Config) (rentals.Client, error) {
	if config == nil {
		return nil, rentals.ErrConfigRequired
	}

	normalized := *config
	normalized.APIEndpoint = normalizeEndpoint(config.APIEndpoint)
	normalized.AuthEndpoint = normalizeEndpoint(config.AuthEndpoint)
	normalized.VehicleEndpoint = normalizeEndpoint(config.VehicleEndpoint)
	normalized.BookingEndpoint = normalizeEndpoint(config.BookingEndpoint)

	c, err := client.New(ctx, &normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return c, nil
}

// normalizeEndpoint trims the trailing slash and defaults the scheme to https.
func normalizeEndpoint(endpoint string) string {
	if endpoint == "" {
		return ""
	}

	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	return endpoint
}

// NewWithEndpoint creates a new client with just an API endpoint (no auth).
func NewWithEndpoint(ctx context.Context, endpoint string) (rentals.Client, error) {
	return New(ctx, &rentals.Config{
		APIEndpoint: endpoint,
	})
}

// NewWithToken creates a new client with an API endpoint and token pair.
func NewWithToken(ctx context.Context, endpoint, accessToken, refreshToken string) (rentals.Client, error) {
	return New(ctx, &rentals.Config{
		APIEndpoint:  endpoint,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// NewWithPassword creates a new client and logs in with email and password.
func NewWithPassword(ctx context.Context, endpoint, email, password string) (rentals.Client, error) {
	c, err := NewWithEndpoint(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	_, err = c.Auth().Login(ctx, &rentals.LoginRequest{Email: email, Password: password})
	if err != nil {
		_ = c.Close()

		return nil, fmt.Errorf("logging in: %w", err)
	}

	return c, nil
}

// NewWithCredentialFile creates a client whose session is kept in the SQLite
// database at path, so it survives restarts. The returned close function
// releases both the client and the database.
func NewWithCredentialFile(ctx context.Context, endpoint, path string) (rentals.Client, func() error, error) {
	credentials, err := store.Open(path, false)
	if err != nil {
		return nil, nil, fmt.Errorf("opening credential store: %w", err)
	}

	c, err := New(ctx, &rentals.Config{
		APIEndpoint: endpoint,
		Persister:   credentials,
	})
	if err != nil {
		_ = credentials.Close()

		return nil, nil, err
	}

	closeFn := func() error {
		clientErr := c.Close()
		storeErr := credentials.Close()

		if clientErr != nil {
			return clientErr
		}

		return storeErr
	}

	return c, closeFn, nil
}
