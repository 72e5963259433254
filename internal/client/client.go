package client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fivetwenty-io/rentals-client/internal/auth"
	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/internal/http"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
)

// Client implements the rentals.Client interface.
type Client struct {
	store       *auth.PersistentTokenStore
	coordinator *auth.Coordinator
	backend     rentals.Cache
	cache       *rentals.QueryCache
	metrics     *rentals.MetricsCollector
	logger      rentals.Logger
	cancel      context.CancelFunc

	auth     *AuthClient
	vehicles *VehiclesClient
	bookings *BookingsClient
}

// Endpoints are the base URLs of the three services.
type Endpoints struct {
	Auth     string
	Vehicles string
	Bookings string
}

// ResolveEndpoints derives the service base URLs from config. Explicit
// per-service endpoints win over the gateway defaults.
func ResolveEndpoints(config *rentals.Config) (*Endpoints, error) {
	gateway := strings.TrimSuffix(config.APIEndpoint, "/")

	endpoints := &Endpoints{
		Auth:     endpointOr(config.AuthEndpoint, gateway, constants.AuthServicePath),
		Vehicles: endpointOr(config.VehicleEndpoint, gateway, constants.VehicleServicePath),
		Bookings: endpointOr(config.BookingEndpoint, gateway, constants.BookingServicePath),
	}

	if endpoints.Auth == "" || endpoints.Vehicles == "" || endpoints.Bookings == "" {
		return nil, rentals.ErrAPIEndpointRequired
	}

	return endpoints, nil
}

func endpointOr(explicit, gateway, path string) string {
	if explicit != "" {
		return explicit
	}

	if gateway == "" {
		return ""
	}

	return gateway + path
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *rentals.Config, logger rentals.Logger, chain *rentals.InterceptorChain) []http.Option {
	httpOpts := []http.Option{
		http.WithLogger(logger),
		http.WithInterceptors(chain),
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithHTTPTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

// createInterceptorChain stamps request IDs, records metrics and, when
// configured, logs and rate limits every attempt. The rate limiter stops
// when ctx is canceled.
func createInterceptorChain(ctx context.Context, config *rentals.Config, logger rentals.Logger, metrics *rentals.MetricsCollector) *rentals.InterceptorChain {
	chain := rentals.NewInterceptorChain()

	if config.RequestsPerSecond > 0 {
		chain.AddRequestInterceptor(rentals.RateLimitInterceptor(ctx, config.RequestsPerSecond))
	}

	chain.AddRequestInterceptor(rentals.RequestIDInterceptor())
	chain.AddRequestInterceptor(rentals.MetricsRequestInterceptor(metrics))
	chain.AddResponseInterceptor(rentals.MetricsResponseInterceptor(metrics))

	if config.Debug {
		chain.AddRequestInterceptor(rentals.LoggingInterceptor(logger))
		chain.AddResponseInterceptor(rentals.LoggingResponseInterceptor(logger))
	}

	return chain
}

// New creates a marketplace client. The persisted credential, if any, is
// loaded before the first request; explicit tokens in config replace it.
func New(ctx context.Context, config *rentals.Config) (*Client, error) {
	if config == nil {
		return nil, rentals.ErrConfigRequired
	}

	endpoints, err := ResolveEndpoints(config)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = rentals.NopLogger{}
	}

	store := auth.NewPersistentTokenStore(config.Persister, logger)

	err = store.Load(ctx)
	if err != nil {
		logger.Warn("Ignoring unreadable stored credential", map[string]interface{}{"error": err.Error()})
	}

	if config.AccessToken != "" || config.RefreshToken != "" {
		store.Set(ctx, auth.NewToken(config.AccessToken, config.RefreshToken, 0))
	}

	cacheConfig := config.Cache
	if cacheConfig == nil {
		cacheConfig = rentals.DefaultCacheConfig()
	}

	backend, err := rentals.NewCacheFromConfig(ctx, cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	cacheOptions := rentals.DefaultCacheOptions()
	if cacheConfig.Options != nil {
		copied := *cacheConfig.Options
		cacheOptions = &copied
	}

	if config.DefaultStaleTime > 0 {
		cacheOptions.DefaultStaleTime = config.DefaultStaleTime
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = rentals.NewMetricsCollector()
	}

	background, cancel := context.WithCancel(context.WithoutCancel(ctx))

	chain := createInterceptorChain(background, config, logger, metrics)
	httpOpts := createHTTPClientOptions(config, logger, chain)

	coordinator := auth.NewCoordinator(store, nil, logger)
	cache := rentals.NewQueryCache(backend, cacheOptions, logger)

	authHTTP := http.NewClient(endpoints.Auth, coordinator, append(httpOpts,
		http.WithoutRefresh(constants.AuthLoginPath, constants.AuthRegisterPath, constants.AuthRefreshPath))...)
	vehiclesHTTP := http.NewClient(endpoints.Vehicles, coordinator, httpOpts...)
	bookingsHTTP := http.NewClient(endpoints.Bookings, coordinator, httpOpts...)

	authClient := NewAuthClient(authHTTP, store, cache, logger)
	coordinator.SetRefreshFunc(authClient.Refresh)

	return &Client{
		store:       store,
		coordinator: coordinator,
		backend:     backend,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		cancel:      cancel,
		auth:        authClient,
		vehicles:    NewVehiclesClient(vehiclesHTTP, cache, logger),
		bookings:    NewBookingsClient(bookingsHTTP, cache, logger),
	}, nil
}

// Auth implements rentals.Client.Auth.
func (c *Client) Auth() rentals.AuthClient {
	return c.auth
}

// Vehicles implements rentals.Client.Vehicles.
func (c *Client) Vehicles() rentals.VehiclesClient {
	return c.vehicles
}

// Bookings implements rentals.Client.Bookings.
func (c *Client) Bookings() rentals.BookingsClient {
	return c.bookings
}

// Cache implements rentals.Client.Cache.
func (c *Client) Cache() *rentals.QueryCache {
	return c.cache
}

// Metrics implements rentals.Client.Metrics.
func (c *Client) Metrics() *rentals.MetricsCollector {
	return c.metrics
}

// Coordinator exposes the session refresh coordinator.
func (c *Client) Coordinator() *auth.Coordinator {
	return c.coordinator
}

// Token returns the current session token, or nil when signed out.
func (c *Client) Token() *auth.Token {
	return c.store.Get()
}

// Close implements rentals.Client.Close.
func (c *Client) Close() error {
	c.cancel()

	if closer, ok := c.backend.(io.Closer); ok {
		err := closer.Close()
		if err != nil {
			return fmt.Errorf("closing cache: %w", err)
		}
	}

	return nil
}
