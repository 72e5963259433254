package rentals

import "time"

// Envelope is the response shape shared by every service.
type Envelope[T any] struct {
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Data    T      `json:"data"              yaml:"data"`
}

// Page represents a paginated list response.
type Page[T any] struct {
	Items      []T `json:"items"      yaml:"items"`
	Page       int `json:"page"       yaml:"page"`
	Limit      int `json:"limit"      yaml:"limit"`
	Total      int `json:"total"      yaml:"total"`
	TotalPages int `json:"totalPages" yaml:"total_pages"`
}

// HasNext reports whether another page follows this one.
func (p *Page[T]) HasNext() bool {
	return p.Page < p.TotalPages
}

// User is an account on the marketplace.
type User struct {
	ID        string    `json:"id"                  yaml:"id"`
	Name      string    `json:"name"                yaml:"name"`
	Email     string    `json:"email"               yaml:"email"`
	Phone     string    `json:"phone,omitempty"     yaml:"phone,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty" yaml:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"createdAt"           yaml:"created_at"`
}

// Session is returned by login and registration.
type Session struct {
	User         User      `json:"user"                   yaml:"user"`
	AccessToken  string    `json:"accessToken"            yaml:"access_token"`
	RefreshToken string    `json:"refreshToken,omitempty" yaml:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expiresIn,omitempty"    yaml:"expires_in,omitempty"`
	ExpiresAt    time.Time `json:"-"                      yaml:"expires_at,omitempty"`
}

// VehicleStatus is the listing state of a vehicle.
type VehicleStatus string

// Vehicle statuses.
const (
	VehicleStatusAvailable   VehicleStatus = "available"
	VehicleStatusUnavailable VehicleStatus = "unavailable"
	VehicleStatusRented      VehicleStatus = "rented"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
)

// Valid reports whether s is a known status.
func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleStatusAvailable, VehicleStatusUnavailable, VehicleStatusRented, VehicleStatusMaintenance:
		return true
	}

	return false
}

// Location is where a vehicle can be picked up.
type Location struct {
	Latitude  float64 `json:"latitude"          yaml:"latitude"`
	Longitude float64 `json:"longitude"         yaml:"longitude"`
	Address   string  `json:"address,omitempty" yaml:"address,omitempty"`
	City      string  `json:"city,omitempty"    yaml:"city,omitempty"`
}

// Vehicle is a listing.
type Vehicle struct {
	ID           string        `json:"id"                     yaml:"id"`
	OwnerID      string        `json:"ownerId"                yaml:"owner_id"`
	Title        string        `json:"title"                  yaml:"title"`
	Description  string        `json:"description,omitempty"  yaml:"description,omitempty"`
	Make         string        `json:"make"                   yaml:"make"`
	Model        string        `json:"model"                  yaml:"model"`
	Year         int           `json:"year"                   yaml:"year"`
	Category     string        `json:"category,omitempty"     yaml:"category,omitempty"`
	PricePerDay  float64       `json:"pricePerDay"            yaml:"price_per_day"`
	Currency     string        `json:"currency,omitempty"     yaml:"currency,omitempty"`
	Status       VehicleStatus `json:"status"                 yaml:"status"`
	Location     Location      `json:"location"               yaml:"location"`
	Images       []string      `json:"images,omitempty"       yaml:"images,omitempty"`
	Features     []string      `json:"features,omitempty"     yaml:"features,omitempty"`
	Seats        int           `json:"seats,omitempty"        yaml:"seats,omitempty"`
	Transmission string        `json:"transmission,omitempty" yaml:"transmission,omitempty"`
	FuelType     string        `json:"fuelType,omitempty"     yaml:"fuel_type,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"              yaml:"created_at"`
	UpdatedAt    time.Time     `json:"updatedAt"              yaml:"updated_at"`
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

// Booking statuses.
const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusApproved  BookingStatus = "approved"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCompleted BookingStatus = "completed"
)

// Booking is a rental request between a renter and a vehicle owner.
type Booking struct {
	ID         string        `json:"id"                yaml:"id"`
	VehicleID  string        `json:"vehicleId"         yaml:"vehicle_id"`
	RenterID   string        `json:"renterId"          yaml:"renter_id"`
	OwnerID    string        `json:"ownerId"           yaml:"owner_id"`
	StartDate  time.Time     `json:"startDate"         yaml:"start_date"`
	EndDate    time.Time     `json:"endDate"           yaml:"end_date"`
	TotalPrice float64       `json:"totalPrice"        yaml:"total_price"`
	Status     BookingStatus `json:"status"            yaml:"status"`
	Message    string        `json:"message,omitempty" yaml:"message,omitempty"`
	Vehicle    *Vehicle      `json:"vehicle,omitempty" yaml:"vehicle,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"         yaml:"created_at"`
	UpdatedAt  time.Time     `json:"updatedAt"         yaml:"updated_at"`
}

// DateRange is a closed interval of booked days.
type DateRange struct {
	StartDate time.Time `json:"startDate" yaml:"start_date"`
	EndDate   time.Time `json:"endDate"   yaml:"end_date"`
}

// Availability answers whether a vehicle is free for a date range.
type Availability struct {
	VehicleID         string      `json:"vehicleId"                   yaml:"vehicle_id"`
	Available         bool        `json:"available"                   yaml:"available"`
	ConflictingRanges []DateRange `json:"conflictingRanges,omitempty" yaml:"conflicting_ranges,omitempty"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

// LoginRequest authenticates with email and password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest exchanges a refresh token for a new session.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ProfileUpdateRequest changes profile fields; nil fields are left untouched.
type ProfileUpdateRequest struct {
	Name      *string `json:"name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// ChangePasswordRequest changes the password of the signed-in user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ForgotPasswordRequest starts the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// VehicleCreateRequest creates a listing.
type VehicleCreateRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Make         string   `json:"make"`
	Model        string   `json:"model"`
	Year         int      `json:"year"`
	Category     string   `json:"category,omitempty"`
	PricePerDay  float64  `json:"pricePerDay"`
	Currency     string   `json:"currency,omitempty"`
	Location     Location `json:"location"`
	Features     []string `json:"features,omitempty"`
	Seats        int      `json:"seats,omitempty"`
	Transmission string   `json:"transmission,omitempty"`
	FuelType     string   `json:"fuelType,omitempty"`
}

// VehicleUpdateRequest changes listing fields; nil fields are left untouched.
type VehicleUpdateRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	PricePerDay *float64  `json:"pricePerDay,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Features    []string  `json:"features,omitempty"`
	Seats       *int      `json:"seats,omitempty"`
}

// VehicleStatusRequest transitions a listing.
type VehicleStatusRequest struct {
	Status VehicleStatus `json:"status"`
}

// BookingCreateRequest asks an owner to rent a vehicle.
type BookingCreateRequest struct {
	VehicleID string    `json:"vehicleId"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Message   string    `json:"message,omitempty"`
}

// BookingDecisionRequest carries an optional reason for reject/cancel.
type BookingDecisionRequest struct {
	Reason string `json:"reason,omitempty"`
}
