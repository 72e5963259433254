package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with a clean viper state. Tests using it
// share global state and must not run in parallel.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := NewRootCommand("test", "abc123", "today")

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]interface{}{"message": message})
}

// newMarketplace fakes the three services behind one gateway.
//
//nolint:funlen // Test functions can be longer for comprehensive testing
func newMarketplace(t *testing.T) *httptest.Server {
	t.Helper()

	authorized := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer access-1"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var request rentals.LoginRequest

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))

		if request.Password != "secret" {
			writeMessage(w, http.StatusUnauthorized, "Invalid credentials")

			return
		}

		writeData(w, http.StatusOK, rentals.Session{
			User:         rentals.User{ID: "user-1", Name: "Ada", Email: request.Email},
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    900,
		})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusOK, "Logged out")
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
	})
	mux.HandleFunc("GET /api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			writeMessage(w, http.StatusUnauthorized, "Authentication required")

			return
		}

		writeData(w, http.StatusOK, rentals.User{ID: "user-1", Name: "Ada", Email: "ada@example.com"})
	})
	mux.HandleFunc("GET /api/vehicles/{id}", func(w http.ResponseWriter, r *http.Request) {
		vehicle := rentals.Vehicle{ID: r.PathValue("id"), Title: "Tesla Model 3", PricePerDay: 89.5, Currency: "EUR"}
		if vehicle.ID == "vehicle-1" {
			vehicle.Location = rentals.Location{Latitude: 52.52, Longitude: 13.405, City: "Berlin"}
		}

		writeData(w, http.StatusOK, vehicle)
	})
	mux.HandleFunc("GET /api/vehicles", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Berlin", r.URL.Query().Get("city"))

		writeData(w, http.StatusOK, rentals.Page[rentals.Vehicle]{
			Items:      []rentals.Vehicle{{ID: "vehicle-1", Title: "Tesla Model 3", Location: rentals.Location{City: "Berlin"}}},
			Page:       1,
			TotalPages: 1,
			Total:      1,
		})
	})
	mux.HandleFunc("POST /api/vehicles/{id}/images", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			writeMessage(w, http.StatusUnauthorized, "Authentication required")

			return
		}

		assert.NoError(t, r.ParseMultipartForm(1<<20))

		images := make([]string, 0, len(r.MultipartForm.File["images"]))
		for _, file := range r.MultipartForm.File["images"] {
			images = append(images, file.Filename)
		}

		writeData(w, http.StatusOK, rentals.Vehicle{ID: r.PathValue("id"), Images: images})
	})
	mux.HandleFunc("GET /api/bookings/availability", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, rentals.Availability{VehicleID: r.URL.Query().Get("vehicleId"), Available: true})
	})
	mux.HandleFunc("POST /api/bookings/{id}/reject", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			writeMessage(w, http.StatusUnauthorized, "Authentication required")

			return
		}

		var decision rentals.BookingDecisionRequest

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&decision))
		assert.Equal(t, "maintenance", decision.Reason)

		writeData(w, http.StatusOK, rentals.Booking{ID: r.PathValue("id"), Status: rentals.BookingStatusRejected})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestCLI_Session(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	server := newMarketplace(t)
	api := "--api=" + server.URL

	_, err := runCLI(t, "", api, "profile", "show")
	require.ErrorIs(t, err, constants.ErrNotLoggedIn)

	_, err = runCLI(t, "", api, "login", "--email", "ada@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.True(t, rentals.IsUnauthorized(err))

	out, err := runCLI(t, "ada@example.com\nsecret\n", api, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Ada (ada@example.com)")

	out, err = runCLI(t, "", api, "profile", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "ada@example.com")

	out, err = runCLI(t, "", api, "-o", "json", "profile", "show")
	require.NoError(t, err)

	var user rentals.User

	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.Equal(t, "user-1", user.ID)

	out, err = runCLI(t, "", api, "-o", "json", "bookings", "reject", "booking-1", "--reason", "maintenance")
	require.NoError(t, err)

	var booking rentals.Booking

	require.NoError(t, json.Unmarshal([]byte(out), &booking))
	assert.Equal(t, rentals.BookingStatusRejected, booking.Status)

	out, err = runCLI(t, "", api, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, err = runCLI(t, "", api, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestCLI_Vehicles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	server := newMarketplace(t)
	api := "--api=" + server.URL

	t.Run("list renders a table", func(t *testing.T) {
		out, err := runCLI(t, "", api, "vehicles", "list", "--city", "Berlin")
		require.NoError(t, err)
		assert.Contains(t, out, "Tesla Model 3")
		assert.Contains(t, out, "Berlin")
	})

	t.Run("get renders yaml", func(t *testing.T) {
		out, err := runCLI(t, "", api, "-o", "yaml", "vehicles", "get", "vehicle-1")
		require.NoError(t, err)
		assert.Contains(t, out, "title: Tesla Model 3")
		assert.Contains(t, out, "price_per_day: 89.5")
	})

	t.Run("map opens the pickup location", func(t *testing.T) {
		var opened string

		original := browserOpenURL
		browserOpenURL = func(url string) error {
			opened = url

			return nil
		}

		t.Cleanup(func() { browserOpenURL = original })

		_, err := runCLI(t, "", api, "vehicles", "map", "vehicle-1")
		require.NoError(t, err)
		assert.Equal(t, "https://www.openstreetmap.org/?mlat=52.52&mlon=13.405#map=15/52.52/13.405", opened)

		_, err = runCLI(t, "", api, "vehicles", "map", "vehicle-2")
		require.ErrorIs(t, err, constants.ErrNoLocation)
	})

	t.Run("availability is public", func(t *testing.T) {
		out, err := runCLI(t, "", api, "bookings", "availability", "vehicle-1", "--start", "2026-07-01", "--end", "2026-07-04")
		require.NoError(t, err)
		assert.Contains(t, out, "Vehicle vehicle-1 is available")

		_, err = runCLI(t, "", api, "bookings", "availability", "vehicle-1", "--start", "July", "--end", "2026-07-04")
		require.ErrorIs(t, err, constants.ErrInvalidDate)
	})

	t.Run("upload sends the files after login", func(t *testing.T) {
		dir := t.TempDir()
		image := filepath.Join(dir, "front.jpg")
		require.NoError(t, os.WriteFile(image, []byte("jpeg-bytes"), 0o600))

		_, err := runCLI(t, "", api, "vehicles", "upload", "vehicle-1", dir)
		require.ErrorIs(t, err, constants.ErrNotRegularFile)

		_, err = runCLI(t, "", api, "login", "-e", "ada@example.com", "-p", "secret")
		require.NoError(t, err)

		out, err := runCLI(t, "", api, "vehicles", "upload", "vehicle-1", image, "--quiet")
		require.NoError(t, err)
		assert.Contains(t, out, "Vehicle vehicle-1 now has 1 image(s)")
	})
}

func TestCLI_Config(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, err := runCLI(t, "", "vehicles", "list")
	require.ErrorIs(t, err, constants.ErrNoAPIEndpoint)

	out, err := runCLI(t, "", "config", "set", "api", "https://rentals.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Set api to https://rentals.example.com")

	_, err = runCLI(t, "", "config", "set", "cache", "memcached")
	require.Error(t, err)

	_, err = runCLI(t, "", "config", "set", "colour", "blue")
	require.ErrorIs(t, err, constants.ErrUnknownConfigKey)

	out, err = runCLI(t, "", "-o", "json", "config", "show")
	require.NoError(t, err)

	var config Config

	require.NoError(t, json.Unmarshal([]byte(out), &config))
	assert.Equal(t, "https://rentals.example.com", config.API)

	_, err = runCLI(t, "", "-o", "xml", "config", "show")
	require.ErrorIs(t, err, constants.ErrInvalidOutputFormat)

	_, err = os.Stat(filepath.Join(home, ".rentals", "config.yml"))
	require.NoError(t, err)
}
