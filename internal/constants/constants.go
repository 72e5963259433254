package constants

import "time"

// Version is the client release reported in the User-Agent and by the CLI.
const Version = "1.0.0"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultUserAgent is sent when the caller does not set one.
	DefaultUserAgent = "rentals-client/" + Version

	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// UploadHTTPTimeout is used for image uploads.
	UploadHTTPTimeout = 2 * time.Minute
)

// Retry limits. Transport retries are opt-in; zero disables them.
const (
	// DefaultRetryMax is the default maximum number of transport retries.
	DefaultRetryMax = 0

	// LowRetryMax is used by the CLI when retries are requested without a count.
	LowRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait between transport retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait between transport retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Service base paths below the gateway endpoint.
const (
	AuthServicePath    = "/api/auth"
	VehicleServicePath = "/api/vehicles"
	BookingServicePath = "/api/bookings"
)

// Auth service routes. Login, register and refresh are never refreshed on 401.
const (
	AuthRegisterPath       = "/register"
	AuthLoginPath          = "/login"
	AuthRefreshPath        = "/refresh"
	AuthLogoutPath         = "/logout"
	AuthProfilePath        = "/profile"
	AuthChangePasswordPath = "/change-password"
	AuthForgotPasswordPath = "/forgot-password"
	AuthResetPasswordPath  = "/reset-password"
)

// Vehicle and booking service routes.
const (
	VehicleMinePath         = "/mine"
	VehicleStatusPath       = "/status"
	VehicleImagesPath       = "/images"
	VehicleImagesField      = "images"
	BookingRentalsPath      = "/rentals"
	BookingRequestsPath     = "/requests"
	BookingAvailabilityPath = "/availability"
	BookingApprovePath      = "/approve"
	BookingRejectPath       = "/reject"
	BookingCancelPath       = "/cancel"
	BookingStartPath        = "/start"
	BookingCompletePath     = "/complete"
)

// Credential persistence.
const (
	// StorageKeyAuthToken is the key the session credential is stored under.
	StorageKeyAuthToken = "authToken"

	// DefaultCredentialDatabase is the credential file name in the config directory.
	DefaultCredentialDatabase = "credentials.db"

	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second
)

// Cache sizes and lifetimes.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultStaleTime is how long a cached read is served before refetching.
	DefaultStaleTime = 1 * time.Minute

	// ProfileStaleTime is used for the signed-in user's profile.
	ProfileStaleTime = 5 * time.Minute

	// AvailabilityStaleTime is used for availability queries.
	AvailabilityStaleTime = 15 * time.Second

	// DefaultCacheKeyPrefix namespaces keys in shared backends.
	DefaultCacheKeyPrefix = "rentals:"

	// DefaultNATSBucket is the KV bucket used when none is configured.
	DefaultNATSBucket = "rentals-cache"

	// RedisScanCount is the SCAN batch size used when clearing.
	RedisScanCount = 100
)

// Metrics.
const (
	// MetricsWindowSize is the number of latency samples kept per endpoint.
	MetricsWindowSize = 512

	// LatencyPercentile is the percentile reported as P95Latency.
	LatencyPercentile = 95
)

// Error normalization.
const (
	// MaxErrorMessageLength caps plain-text bodies used as error messages.
	MaxErrorMessageLength = 200
)

// Pagination.
const (
	// DefaultPageSize is the default number of items per page.
	DefaultPageSize = 12

	// MaxPageWalk bounds how many pages ListAll follows.
	MaxPageWalk = 100
)

// Format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)

// Display constants.
const (
	// DateLayout is the layout accepted for booking dates on the command line.
	DateLayout = "2006-01-02"

	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2

	// DescriptionDisplayLength is the default length for displaying titles.
	DescriptionDisplayLength = 40

	// PercentageMultiplier converts ratios to percentages.
	PercentageMultiplier = 100
)

// Map links.
const (
	// OpenStreetMapURL is the map page opened for a vehicle location.
	OpenStreetMapURL = "https://www.openstreetmap.org/"

	// DefaultMapZoom is the zoom level used for vehicle locations.
	DefaultMapZoom = 15
)

// Validation and limits.
const (
	// MinimumArgumentCount is the minimum number of command line arguments.
	MinimumArgumentCount = 2
)
