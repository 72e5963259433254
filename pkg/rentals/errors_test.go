package rentals_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   int
		expected rentals.ErrorKind
	}{
		{http.StatusUnauthorized, rentals.KindUnauthorized},
		{http.StatusForbidden, rentals.KindForbidden},
		{http.StatusNotFound, rentals.KindNotFound},
		{http.StatusBadRequest, rentals.KindValidation},
		{http.StatusConflict, rentals.KindValidation},
		{http.StatusUnprocessableEntity, rentals.KindValidation},
		{http.StatusInternalServerError, rentals.KindServer},
		{http.StatusBadGateway, rentals.KindServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, rentals.KindForStatus(tt.status))
		})
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestParseErrorResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{
			name:     "message field",
			status:   http.StatusBadRequest,
			body:     `{"message":"Price must be positive","error":"Bad Request"}`,
			expected: "Price must be positive",
		},
		{
			name:     "error field",
			status:   http.StatusConflict,
			body:     `{"error":"Vehicle already booked"}`,
			expected: "Vehicle already booked",
		},
		{
			name:     "title field",
			status:   http.StatusUnprocessableEntity,
			body:     `{"title":"Validation failed"}`,
			expected: "Validation failed",
		},
		{
			name:     "blank fields fall back to status text",
			status:   http.StatusForbidden,
			body:     `{"message":"  "}`,
			expected: "Forbidden",
		},
		{
			name:     "plain text body",
			status:   http.StatusServiceUnavailable,
			body:     "upstream connect error",
			expected: "upstream connect error",
		},
		{
			name:     "html body is not shown",
			status:   http.StatusBadGateway,
			body:     "<html><body>Bad Gateway</body></html>",
			expected: "Bad Gateway",
		},
		{
			name:     "empty body",
			status:   http.StatusInternalServerError,
			body:     "",
			expected: "Internal Server Error",
		},
		{
			name:     "unknown status",
			status:   599,
			body:     "",
			expected: "request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := rentals.ParseErrorResponse(tt.status, []byte(tt.body))
			assert.Equal(t, tt.expected, err.Message)
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Equal(t, []byte(tt.body), err.RawBody)
		})
	}
}

func TestError_Is(t *testing.T) {
	t.Parallel()

	forbidden := rentals.ParseErrorResponse(http.StatusForbidden, []byte(`{"message":"Not your vehicle"}`))
	wrapped := fmt.Errorf("approve booking b1: %w", forbidden)

	require.ErrorIs(t, wrapped, rentals.ErrForbidden)
	assert.NotErrorIs(t, wrapped, rentals.ErrUnauthorized)
	assert.Equal(t, rentals.KindForbidden, rentals.KindOf(wrapped))
	assert.Equal(t, "Not your vehicle", rentals.MessageOf(wrapped))
	assert.Equal(t, "Not your vehicle (status: 403)", forbidden.Error())

	validation := &rentals.Error{Kind: rentals.KindValidation, Message: rentals.ErrInvalidDateRange.Error(), Err: rentals.ErrInvalidDateRange}
	require.ErrorIs(t, validation, rentals.ErrValidation)
	require.ErrorIs(t, validation, rentals.ErrInvalidDateRange)
}

func TestNetworkAndClientErrors(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: connection refused")

	network := rentals.NewNetworkError(cause)
	assert.True(t, rentals.IsNetwork(network))
	require.ErrorIs(t, network, cause)
	assert.Equal(t, "service unreachable: dial tcp: connection refused", network.Error())

	client := rentals.NewClientError("encoding request", cause)
	assert.Equal(t, rentals.KindClient, rentals.KindOf(client))

	assert.Equal(t, rentals.ErrorKind(""), rentals.KindOf(cause))
	assert.Equal(t, cause.Error(), rentals.MessageOf(cause))
	assert.Empty(t, rentals.MessageOf(nil))
}
