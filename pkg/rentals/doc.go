// Package rentals provides types, interfaces, and helpers for working with the
// vehicle rental marketplace services.
//
// # Overview
//
// The rentals package defines the domain types (User, Session, Vehicle,
// Booking, Availability) and the service client interfaces (AuthClient,
// VehiclesClient, BookingsClient). A concrete implementation is provided by
// the rentalsclient package, which wires configuration, transport, session
// refresh and caching.
//
// # Queries and pagination
//
// Use VehicleQuery to express listing searches. Listing responses are Page
// values; VehiclesClient.ListAll walks every page.
//
// # Errors
//
// Failures are normalized into *Error with an ErrorKind. Helpers such as
// IsUnauthorized, IsForbidden and IsValidation branch on common cases, and
// errors.Is(err, ErrForbidden) matches any forbidden error.
//
// # Caching
//
// QueryCache stores reads in a pluggable Cache (memory, redis, NATS KV or
// none) keyed by QueryKey. Identical in-flight reads share one request, and
// Invalidations maps every write to the keys it makes stale.
package rentals
