package rentals

import (
	"net/url"
	"strings"
	"time"
)

// QueryKey identifies a cached read: a resource name followed by ordered
// parameters. Invalidation matches keys part-wise, so QueryKey{"vehicles"}
// covers every vehicle read.
type QueryKey []string

// NewQueryKey builds a key from a resource and its parameters.
func NewQueryKey(resource string, params ...string) QueryKey {
	return append(QueryKey{resource}, params...)
}

// String renders the key for storage backends.
func (k QueryKey) String() string {
	parts := make([]string, len(k))
	for i, part := range k {
		parts[i] = url.PathEscape(part)
	}

	return strings.Join(parts, "/")
}

// HasPrefix reports whether every part of prefix matches the start of k.
// The empty key is a prefix of everything.
func (k QueryKey) HasPrefix(prefix QueryKey) bool {
	if len(prefix) > len(k) {
		return false
	}

	for i, part := range prefix {
		if k[i] != part {
			return false
		}
	}

	return true
}

// sessionScoped lists the reads whose answer depends on who is signed in.
var sessionScoped = []QueryKey{
	{ResourceAuth},
	MyListingsKey(),
	{ResourceBookings, "detail"},
	RentalsKey(),
	RequestsKey(),
}

// SessionScoped reports whether k answers for the signed-in user only, so
// it must not be shared with other sessions.
func (k QueryKey) SessionScoped() bool {
	return matchesAny(k, sessionScoped)
}

// Resource names used as the first key part.
const (
	ResourceAuth     = "auth"
	ResourceVehicles = "vehicles"
	ResourceBookings = "bookings"
)

// AllQueries matches every cached read.
func AllQueries() QueryKey { return QueryKey{} }

// ProfileKey is the signed-in user's profile.
func ProfileKey() QueryKey { return NewQueryKey(ResourceAuth, "profile") }

// VehicleListsKey covers every page of every listing search.
func VehicleListsKey() QueryKey { return NewQueryKey(ResourceVehicles, "list") }

// VehicleListKey is one page of one listing search.
func VehicleListKey(query *VehicleQuery) QueryKey {
	return append(VehicleListsKey(), query.Encode())
}

// VehicleKey is one listing's detail.
func VehicleKey(id string) QueryKey { return NewQueryKey(ResourceVehicles, "detail", id) }

// MyListingsKey is the signed-in owner's listings.
func MyListingsKey() QueryKey { return NewQueryKey(ResourceVehicles, "mine") }

// BookingKey is one booking's detail.
func BookingKey(id string) QueryKey { return NewQueryKey(ResourceBookings, "detail", id) }

// RentalsKey is the bookings the signed-in user made as renter.
func RentalsKey() QueryKey { return NewQueryKey(ResourceBookings, "rentals") }

// RequestsKey is the bookings received by the signed-in user as owner.
func RequestsKey() QueryKey { return NewQueryKey(ResourceBookings, "requests") }

// AvailabilitiesKey covers every availability query for a vehicle; an empty
// vehicleID covers all vehicles.
func AvailabilitiesKey(vehicleID string) QueryKey {
	key := NewQueryKey(ResourceBookings, "availability")
	if vehicleID != "" {
		key = append(key, vehicleID)
	}

	return key
}

// AvailabilityKey is one availability query.
func AvailabilityKey(vehicleID string, start, end time.Time) QueryKey {
	return append(AvailabilitiesKey(vehicleID), start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
}

// Mutation names a write operation in the invalidation table.
type Mutation string

// Mutations known to the invalidation table.
const (
	MutationLogin           Mutation = "auth.login"
	MutationRegister        Mutation = "auth.register"
	MutationLogout          Mutation = "auth.logout"
	MutationProfileUpdate   Mutation = "profile.update"
	MutationVehicleCreate   Mutation = "vehicle.create"
	MutationVehicleUpdate   Mutation = "vehicle.update"
	MutationVehicleStatus   Mutation = "vehicle.status"
	MutationVehicleDelete   Mutation = "vehicle.delete"
	MutationVehicleImages   Mutation = "vehicle.images"
	MutationBookingCreate   Mutation = "booking.create"
	MutationBookingApprove  Mutation = "booking.approve"
	MutationBookingReject   Mutation = "booking.reject"
	MutationBookingCancel   Mutation = "booking.cancel"
	MutationBookingStart    Mutation = "booking.start"
	MutationBookingComplete Mutation = "booking.complete"
)

// MutationTarget names the records a mutation touched.
type MutationTarget struct {
	VehicleID string
	BookingID string
}

func sessionChange(MutationTarget) []QueryKey {
	return []QueryKey{AllQueries()}
}

func vehicleChange(target MutationTarget) []QueryKey {
	return []QueryKey{VehicleKey(target.VehicleID), VehicleListsKey(), MyListingsKey()}
}

func bookingChange(target MutationTarget) []QueryKey {
	keys := []QueryKey{BookingKey(target.BookingID), RentalsKey(), RequestsKey(), AvailabilitiesKey("")}
	if target.VehicleID != "" {
		keys = append(keys, VehicleKey(target.VehicleID))
	}

	return keys
}

// invalidationTable maps each mutation to the reads it makes stale.
var invalidationTable = map[Mutation]func(MutationTarget) []QueryKey{
	MutationLogin:    sessionChange,
	MutationRegister: sessionChange,
	MutationLogout:   sessionChange,
	MutationProfileUpdate: func(MutationTarget) []QueryKey {
		return []QueryKey{ProfileKey()}
	},
	MutationVehicleCreate: func(MutationTarget) []QueryKey {
		return []QueryKey{VehicleListsKey(), MyListingsKey()}
	},
	MutationVehicleUpdate: vehicleChange,
	MutationVehicleStatus: vehicleChange,
	MutationVehicleDelete: vehicleChange,
	MutationVehicleImages: vehicleChange,
	MutationBookingCreate: func(target MutationTarget) []QueryKey {
		return []QueryKey{RentalsKey(), RequestsKey(), AvailabilitiesKey(target.VehicleID)}
	},
	MutationBookingApprove:  bookingChange,
	MutationBookingReject:   bookingChange,
	MutationBookingCancel:   bookingChange,
	MutationBookingStart:    bookingChange,
	MutationBookingComplete: bookingChange,
}

// Invalidations returns the keys a successful mutation invalidates.
func Invalidations(mutation Mutation, target MutationTarget) []QueryKey {
	keysFor, ok := invalidationTable[mutation]
	if !ok {
		return nil
	}

	return keysFor(target)
}
