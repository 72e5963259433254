package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/internal/store"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/fivetwenty-io/rentals-client/pkg/rentalsclient"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// session is a client plus the credential store backing it.
type session struct {
	rentals.Client

	credentials *store.CredentialStore
}

// Close releases the client and the credential database.
func (s *session) Close() error {
	clientErr := s.Client.Close()
	storeErr := s.credentials.Close()

	if clientErr != nil {
		return clientErr
	}

	return storeErr
}

// newLogger writes human-readable logs to stderr when verbose, and nothing otherwise.
func newLogger() zerolog.Logger {
	if !viper.GetBool(keyVerbose) {
		return zerolog.Nop()
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()
}

func credentialsPath(config *Config) (string, error) {
	if config.Credentials != "" {
		return config.Credentials, nil
	}

	configDir, err := configDirectory()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, constants.DefaultCredentialDatabase), nil
}

func cacheConfig(config *Config) *rentals.CacheConfig {
	cache := rentals.DefaultCacheConfig()

	switch rentals.CacheType(config.Cache) {
	case rentals.CacheTypeRedis:
		cache.Type = rentals.CacheTypeRedis
		cache.Redis = &rentals.RedisCacheConfig{Addr: config.RedisAddr}
	case rentals.CacheTypeNATS:
		cache.Type = rentals.CacheTypeNATS
		cache.NATS = &rentals.NATSKVConfig{URL: config.NATSURL, Bucket: constants.DefaultNATSBucket}
	case rentals.CacheTypeNone:
		cache.Type = rentals.CacheTypeNone
	case rentals.CacheTypeMemory:
	}

	cache.Tiered = cache.Type == rentals.CacheTypeRedis || cache.Type == rentals.CacheTypeNATS

	return cache
}

// clientConfig translates the CLI configuration into a client configuration.
func clientConfig(config *Config) (*rentals.Config, error) {
	if config.API == "" && (config.AuthEndpoint == "" || config.VehicleEndpoint == "" || config.BookingEndpoint == "") {
		return nil, constants.ErrNoAPIEndpoint
	}

	logger := newLogger()

	return &rentals.Config{
		APIEndpoint:       config.API,
		AuthEndpoint:      config.AuthEndpoint,
		VehicleEndpoint:   config.VehicleEndpoint,
		BookingEndpoint:   config.BookingEndpoint,
		Cache:             cacheConfig(config),
		HTTPTimeout:       config.Timeout,
		RequestsPerSecond: config.RateLimit,
		Debug:             viper.GetBool(keyVerbose),
		Logger:            rentals.NewZerologLogger(logger),
		UserAgent:         "rentals-cli/" + constants.Version,
	}, nil
}

// newSession builds a client whose credential lives in the local credential
// database, so every command shares the session of the last login.
func newSession(ctx context.Context) (*session, error) {
	config := loadConfig()

	rentalsConfig, err := clientConfig(config)
	if err != nil {
		return nil, err
	}

	path, err := credentialsPath(config)
	if err != nil {
		return nil, err
	}

	credentials, err := store.Open(path, false)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}

	rentalsConfig.Persister = credentials

	client, err := rentalsclient.New(ctx, rentalsConfig)
	if err != nil {
		_ = credentials.Close()

		return nil, err
	}

	return &session{Client: client, credentials: credentials}, nil
}

// withSession runs fn with a fresh session and closes it afterwards.
func withSession(ctx context.Context, fn func(client rentals.Client) error) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = s.Close() }()

	return fn(s)
}
