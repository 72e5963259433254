package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/internal/http"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
)

// BookingsClient implements rentals.BookingsClient.
type BookingsClient struct {
	httpClient *http.Client
	cache      *rentals.QueryCache
	logger     rentals.Logger
}

// NewBookingsClient creates a new bookings client.
func NewBookingsClient(httpClient *http.Client, cache *rentals.QueryCache, logger rentals.Logger) *BookingsClient {
	return &BookingsClient{
		httpClient: httpClient,
		cache:      cache,
		logger:     logger,
	}
}

// Create implements rentals.BookingsClient.Create.
func (c *BookingsClient) Create(ctx context.Context, request *rentals.BookingCreateRequest) (*rentals.Booking, error) {
	if request.VehicleID == "" {
		return nil, rentals.NewClientError("creating booking", rentals.ErrVehicleIDRequired)
	}

	if !request.EndDate.After(request.StartDate) {
		return nil, &rentals.Error{Kind: rentals.KindValidation, Message: rentals.ErrInvalidDateRange.Error(), Err: rentals.ErrInvalidDateRange}
	}

	resp, err := c.httpClient.Post(ctx, "", request)
	if err != nil {
		return nil, fmt.Errorf("creating booking: %w", err)
	}

	invalidate(ctx, c.cache, c.logger, rentals.MutationBookingCreate, rentals.MutationTarget{VehicleID: request.VehicleID})

	return decodeData[rentals.Booking](resp.Body, "booking")
}

// Get implements rentals.BookingsClient.Get.
func (c *BookingsClient) Get(ctx context.Context, id string) (*rentals.Booking, error) {
	if id == "" {
		return nil, rentals.NewClientError("getting booking", rentals.ErrBookingIDRequired)
	}

	body, err := cachedGet(ctx, c.cache, c.httpClient, rentals.BookingKey(id), 0, idPath(id), nil)
	if err != nil {
		return nil, fmt.Errorf("getting booking: %w", err)
	}

	return decodeData[rentals.Booking](body, "booking")
}

// Approve implements rentals.BookingsClient.Approve.
func (c *BookingsClient) Approve(ctx context.Context, id string) (*rentals.Booking, error) {
	return c.transition(ctx, id, constants.BookingApprovePath, nil, rentals.MutationBookingApprove)
}

// Reject implements rentals.BookingsClient.Reject.
func (c *BookingsClient) Reject(ctx context.Context, id string, reason string) (*rentals.Booking, error) {
	return c.transition(ctx, id, constants.BookingRejectPath, &rentals.BookingDecisionRequest{Reason: reason}, rentals.MutationBookingReject)
}

// Cancel implements rentals.BookingsClient.Cancel.
func (c *BookingsClient) Cancel(ctx context.Context, id string, reason string) (*rentals.Booking, error) {
	return c.transition(ctx, id, constants.BookingCancelPath, &rentals.BookingDecisionRequest{Reason: reason}, rentals.MutationBookingCancel)
}

// Start implements rentals.BookingsClient.Start.
func (c *BookingsClient) Start(ctx context.Context, id string) (*rentals.Booking, error) {
	return c.transition(ctx, id, constants.BookingStartPath, nil, rentals.MutationBookingStart)
}

// Complete implements rentals.BookingsClient.Complete.
func (c *BookingsClient) Complete(ctx context.Context, id string) (*rentals.Booking, error) {
	return c.transition(ctx, id, constants.BookingCompletePath, nil, rentals.MutationBookingComplete)
}

// transition posts a lifecycle action for booking id.
func (c *BookingsClient) transition(ctx context.Context, id, action string, body interface{}, mutation rentals.Mutation) (*rentals.Booking, error) {
	if id == "" {
		return nil, rentals.NewClientError(string(mutation), rentals.ErrBookingIDRequired)
	}

	resp, err := c.httpClient.Post(ctx, idPath(id, action), body)
	if err != nil {
		return nil, fmt.Errorf("%s booking %s: %w", action[1:], id, err)
	}

	booking, err := settle(ctx, c.cache, c.logger, mutation, rentals.MutationTarget{BookingID: id}, resp.Body, "booking", func(ctx context.Context) (*rentals.Booking, error) {
		return c.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	// The vehicle is only known once the booking is in hand.
	if booking.VehicleID != "" {
		invalidateKeys(ctx, c.cache, c.logger, mutation, rentals.VehicleKey(booking.VehicleID))
	}

	return booking, nil
}

// Rentals implements rentals.BookingsClient.Rentals.
func (c *BookingsClient) Rentals(ctx context.Context) ([]rentals.Booking, error) {
	return c.list(ctx, rentals.RentalsKey(), constants.BookingRentalsPath, "listing rentals")
}

// Requests implements rentals.BookingsClient.Requests.
func (c *BookingsClient) Requests(ctx context.Context) ([]rentals.Booking, error) {
	return c.list(ctx, rentals.RequestsKey(), constants.BookingRequestsPath, "listing booking requests")
}

func (c *BookingsClient) list(ctx context.Context, key rentals.QueryKey, path, operation string) ([]rentals.Booking, error) {
	body, err := cachedGet(ctx, c.cache, c.httpClient, key, 0, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	bookings, err := decodeData[[]rentals.Booking](body, "booking list")
	if err != nil {
		return nil, err
	}

	return *bookings, nil
}

// Availability implements rentals.BookingsClient.Availability.
func (c *BookingsClient) Availability(ctx context.Context, vehicleID string, start, end time.Time) (*rentals.Availability, error) {
	if vehicleID == "" {
		return nil, rentals.NewClientError("checking availability", rentals.ErrVehicleIDRequired)
	}

	if !end.After(start) {
		return nil, &rentals.Error{Kind: rentals.KindValidation, Message: rentals.ErrInvalidDateRange.Error(), Err: rentals.ErrInvalidDateRange}
	}

	query := url.Values{}
	query.Set("vehicleId", vehicleID)
	query.Set("startDate", start.UTC().Format(time.RFC3339))
	query.Set("endDate", end.UTC().Format(time.RFC3339))

	key := rentals.AvailabilityKey(vehicleID, start, end)

	body, err := cachedGet(ctx, c.cache, c.httpClient, key, constants.AvailabilityStaleTime, constants.BookingAvailabilityPath, query)
	if err != nil {
		return nil, fmt.Errorf("checking availability: %w", err)
	}

	return decodeData[rentals.Availability](body, "availability")
}
