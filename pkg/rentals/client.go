package rentals

import (
	"context"
	"errors"
	"io"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired      = errors.New("config is required")
	ErrAPIEndpointRequired = errors.New("API endpoint or per-service endpoints are required")
)

// AuthClient covers the auth service: account lifecycle and profile.
type AuthClient interface {
	Register(ctx context.Context, request *RegisterRequest) (*Session, error)
	Login(ctx context.Context, request *LoginRequest) (*Session, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*User, error)
	UpdateProfile(ctx context.Context, request *ProfileUpdateRequest) (*User, error)
	ChangePassword(ctx context.Context, request *ChangePasswordRequest) error
	ForgotPassword(ctx context.Context, request *ForgotPasswordRequest) (string, error)
	ResetPassword(ctx context.Context, request *ResetPasswordRequest) (string, error)
	IsAuthenticated() bool
}

// VehiclesClient covers listing search and listing management.
type VehiclesClient interface {
	List(ctx context.Context, query *VehicleQuery) (*Page[Vehicle], error)
	ListAll(ctx context.Context, query *VehicleQuery) ([]Vehicle, error)
	Get(ctx context.Context, id string) (*Vehicle, error)
	Mine(ctx context.Context) ([]Vehicle, error)
	Create(ctx context.Context, request *VehicleCreateRequest) (*Vehicle, error)
	Update(ctx context.Context, id string, request *VehicleUpdateRequest) (*Vehicle, error)
	UpdateStatus(ctx context.Context, id string, status VehicleStatus) (*Vehicle, error)
	Delete(ctx context.Context, id string) error
	UploadImages(ctx context.Context, id string, images []ImageUpload) (*Vehicle, error)
}

// BookingsClient covers the booking lifecycle.
type BookingsClient interface {
	Create(ctx context.Context, request *BookingCreateRequest) (*Booking, error)
	Get(ctx context.Context, id string) (*Booking, error)
	Approve(ctx context.Context, id string) (*Booking, error)
	Reject(ctx context.Context, id string, reason string) (*Booking, error)
	Cancel(ctx context.Context, id string, reason string) (*Booking, error)
	Start(ctx context.Context, id string) (*Booking, error)
	Complete(ctx context.Context, id string) (*Booking, error)
	Rentals(ctx context.Context) ([]Booking, error)
	Requests(ctx context.Context) ([]Booking, error)
	Availability(ctx context.Context, vehicleID string, start, end time.Time) (*Availability, error)
}

// Client is the marketplace client handed to the view layer.
type Client interface {
	Auth() AuthClient
	Vehicles() VehiclesClient
	Bookings() BookingsClient
	Cache() *QueryCache
	Metrics() *MetricsCollector
	// Close stops background work and releases cache connections.
	Close() error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// CredentialPersister stores the session credential outside the process so
// a later run can pick it up. Implementations keep it under a single key.
type CredentialPersister interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, credential *Credential) error
	Delete(ctx context.Context) error
}

// Credential is the persisted form of a session.
type Credential struct {
	AccessToken  string    `json:"access_token"            yaml:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"    yaml:"expires_at,omitempty"`
}

// Config represents client configuration for building a rentals.Client.
//
// # Endpoints
//
// APIEndpoint is the gateway base URL. Each service endpoint defaults to a path
// below it ("/api/auth", "/api/vehicles", "/api/bookings") unless set
// explicitly, which is how split deployments are configured.
//
// # Sessions
//
// The client authenticates with a bearer token. AccessToken and RefreshToken
// seed the credential store; Persister, when set, loads a previously stored
// credential and receives every change (login, refresh, logout). A 401 on any
// request other than login, register or refresh triggers exactly one refresh
// shared by every request that failed meanwhile.
//
// # Caching
//
// Reads go through a QueryCache built from Cache (memory by default).
// DefaultStaleTime bounds how long a cached read is served before refetching.
type Config struct {
	// APIEndpoint: gateway base URL (e.g., "https://rentals.example.com").
	APIEndpoint string
	// AuthEndpoint overrides the auth service base URL.
	AuthEndpoint string
	// VehicleEndpoint overrides the vehicle service base URL.
	VehicleEndpoint string
	// BookingEndpoint overrides the booking service base URL.
	BookingEndpoint string

	// AccessToken seeds the credential store.
	AccessToken string
	// RefreshToken seeds the credential store.
	RefreshToken string
	// Persister keeps the credential between runs.
	Persister CredentialPersister

	// Cache selects the cache backend. If nil, DefaultCacheConfig() is used.
	Cache *CacheConfig
	// DefaultStaleTime is how long a cached read stays fresh.
	DefaultStaleTime time.Duration

	// HTTPTimeout: optional per-attempt transport timeout. Zero keeps the
	// transport default.
	HTTPTimeout time.Duration
	// RetryMax: transport retries on 5xx, 429 and connection errors. Zero
	// disables transport retries.
	RetryMax int
	// RetryWaitMin: minimum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMax time.Duration
	// RequestsPerSecond enables a client-side rate limit when > 0.
	RequestsPerSecond int

	// Debug: enables verbose HTTP request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer and helpers.
	Logger Logger
	// UserAgent: overrides the default User-Agent header sent by the client.
	UserAgent string
	// Metrics collects per-endpoint counters when set.
	Metrics *MetricsCollector
}

// ImageUpload is one file sent to the vehicle image endpoint.
type ImageUpload struct {
	Name   string
	Reader io.Reader
	Size   int64
	// Progress, when set, receives every chunk written to the request body.
	Progress io.Writer
}
