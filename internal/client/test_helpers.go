package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test static errors.
var (
	ErrTestSomeError = errors.New("some error")
)

// NewTestClient creates a client whose three services live under baseURL.
// The client is closed when the test ends.
func NewTestClient(t *testing.T, baseURL string, configure ...func(*rentals.Config)) *Client {
	t.Helper()

	config := &rentals.Config{
		APIEndpoint: baseURL,
		Cache:       rentals.DefaultCacheConfig(),
	}

	for _, fn := range configure {
		fn(config)
	}

	client, err := New(context.Background(), config)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return client
}

// WriteData writes data wrapped in the service envelope.
func WriteData(writer http.ResponseWriter, status int, data interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)

	_ = json.NewEncoder(writer).Encode(map[string]interface{}{"data": data})
}

// WriteMessage writes a data-less envelope carrying message.
func WriteMessage(writer http.ResponseWriter, status int, message string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)

	_ = json.NewEncoder(writer).Encode(map[string]interface{}{"message": message})
}

// TestGetOperation represents a generic get operation test case.
type TestGetOperation[TResponse any] struct {
	Name         string
	ID           string
	ExpectedPath string
	StatusCode   int
	Response     *TResponse
	ErrMessage   string
	WantErr      bool
	WantKind     rentals.ErrorKind
}

// RunGetTests runs a series of get operation tests.
func RunGetTests[TResponse any](
	t *testing.T,
	tests []TestGetOperation[TResponse],
	getFunc func(*Client) func(context.Context, string) (*TResponse, error),
) {
	t.Helper()

	for _, testCase := range tests {
		t.Run(testCase.Name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				assert.Equal(t, testCase.ExpectedPath, request.URL.Path)
				assert.Equal(t, http.MethodGet, request.Method)

				if testCase.StatusCode >= http.StatusBadRequest {
					WriteMessage(writer, testCase.StatusCode, testCase.ErrMessage)

					return
				}

				WriteData(writer, testCase.StatusCode, testCase.Response)
			}))
			defer server.Close()

			client := NewTestClient(t, server.URL)

			getFn := getFunc(client)
			result, err := getFn(context.Background(), testCase.ID)

			if testCase.WantErr {
				require.Error(t, err)

				if testCase.ErrMessage != "" {
					assert.Equal(t, testCase.ErrMessage, rentals.MessageOf(err))
				}

				if testCase.WantKind != "" {
					assert.Equal(t, testCase.WantKind, rentals.KindOf(err))
				}

				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				require.NotNil(t, result)
				assert.Equal(t, testCase.Response, result)
			}
		})
	}
}

// TestBookingActionOperation represents a test case for a booking lifecycle action.
type TestBookingActionOperation struct {
	Name           string
	Action         string
	ExpectedStatus rentals.BookingStatus
	ExpectedReason string
	ActionFunc     func(*Client) func(context.Context, string) (*rentals.Booking, error)
}

// RunBookingActionTests runs a series of booking action tests.
func RunBookingActionTests(t *testing.T, tests []TestBookingActionOperation) {
	t.Helper()

	for _, testCase := range tests {
		t.Run(testCase.Name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				assert.Equal(t, "/api/bookings/booking-1/"+testCase.Action, request.URL.Path)
				assert.Equal(t, http.MethodPost, request.Method)

				if testCase.ExpectedReason != "" {
					var decision rentals.BookingDecisionRequest

					assert.NoError(t, json.NewDecoder(request.Body).Decode(&decision))
					assert.Equal(t, testCase.ExpectedReason, decision.Reason)
				}

				WriteData(writer, http.StatusOK, rentals.Booking{
					ID:        "booking-1",
					VehicleID: "vehicle-1",
					Status:    testCase.ExpectedStatus,
				})
			}))
			defer server.Close()

			client := NewTestClient(t, server.URL)

			actionFunc := testCase.ActionFunc(client)
			booking, err := actionFunc(context.Background(), "booking-1")
			require.NoError(t, err)
			assert.Equal(t, testCase.ExpectedStatus, booking.Status)
		})
	}
}

// RunErrorKindTests runs a series of error kind checks with a common pattern.
func RunErrorKindTests(t *testing.T, testName string, kind rentals.ErrorKind, checkFunction func(error) bool) {
	t.Helper()
	t.Run(testName, func(t *testing.T) {
		tests := []struct {
			name     string
			err      error
			expected bool
		}{
			{
				name:     "Error with target kind",
				err:      &rentals.Error{Kind: kind},
				expected: true,
			},
			{
				name:     "Error with other kind",
				err:      &rentals.Error{Kind: rentals.KindClient},
				expected: kind == rentals.KindClient,
			},
			{
				name:     "wrapped Error with target kind",
				err:      errors.Join(ErrTestSomeError, &rentals.Error{Kind: kind}),
				expected: true,
			},
			{
				name:     "other error type",
				err:      ErrTestSomeError,
				expected: false,
			},
		}

		for _, testCase := range tests {
			t.Run(testCase.name, func(t *testing.T) {
				assert.Equal(t, testCase.expected, checkFunction(testCase.err))
			})
		}
	})
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
