package rentals_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage_HasNext(t *testing.T) {
	t.Parallel()

	assert.True(t, (&rentals.Page[rentals.Vehicle]{Page: 1, TotalPages: 2}).HasNext())
	assert.False(t, (&rentals.Page[rentals.Vehicle]{Page: 2, TotalPages: 2}).HasNext())
	assert.False(t, (&rentals.Page[rentals.Vehicle]{}).HasNext())
}

func TestVehicleStatus_Valid(t *testing.T) {
	t.Parallel()

	for _, status := range []rentals.VehicleStatus{
		rentals.VehicleStatusAvailable,
		rentals.VehicleStatusUnavailable,
		rentals.VehicleStatusRented,
		rentals.VehicleStatusMaintenance,
	} {
		assert.True(t, status.Valid(), status)
	}

	assert.False(t, rentals.VehicleStatus("sold").Valid())
	assert.False(t, rentals.VehicleStatus("").Valid())
}

func TestEnvelope_Decode(t *testing.T) {
	t.Parallel()

	body := `{"message":"ok","data":{"items":[{"id":"v1","pricePerDay":42}],"page":1,"totalPages":1}}`

	var envelope rentals.Envelope[rentals.Page[rentals.Vehicle]]

	require.NoError(t, json.Unmarshal([]byte(body), &envelope))
	assert.Equal(t, "ok", envelope.Message)
	require.Len(t, envelope.Data.Items, 1)
	assert.InDelta(t, 42.0, envelope.Data.Items[0].PricePerDay, 0.001)
}

func TestZerologLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := rentals.NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	logger.Debug("hidden", nil)
	logger.Warn("Token refresh failed", map[string]interface{}{"attempt": 1})

	var line map[string]interface{}

	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "Token refresh failed", line["message"])
	assert.InDelta(t, 1.0, line["attempt"], 0.001)
}
