package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findSubcommand finds a subcommand by name within a cobra command.
func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

func subcommandNames(cmd *cobra.Command) []string {
	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	return names
}

func TestNewRootCommand(t *testing.T) {
	t.Parallel()

	cmd := NewRootCommand("1.2.3", "abc", "today")
	assert.Equal(t, "rentals", cmd.Use)
	assert.True(t, cmd.SilenceUsage)

	for _, name := range []string{"version", "login", "register", "logout", "profile", "password", "vehicles", "bookings", "config"} {
		assert.NotNil(t, findSubcommand(cmd, name), "command %s should exist", name)
	}

	for _, flagName := range []string{"config", "api", "auth-endpoint", "vehicle-endpoint", "booking-endpoint", "output", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flagName), "flag %s should exist", flagName)
	}

	output := cmd.PersistentFlags().Lookup("output")
	assert.Equal(t, "o", output.Shorthand)
	assert.Equal(t, "table", output.DefValue)
}

func TestNewVehiclesCommand(t *testing.T) {
	t.Parallel()

	cmd := NewVehiclesCommand()
	assert.Equal(t, "vehicles", cmd.Use)
	assert.Equal(t, []string{"vehicle", "v"}, cmd.Aliases)
	assert.ElementsMatch(t,
		[]string{"list", "get", "mine", "create", "update", "status", "delete", "upload", "map"},
		subcommandNames(cmd))

	list := findSubcommand(cmd, "list")
	require.NotNil(t, list)

	for _, flagName := range []string{"page", "limit", "search", "city", "category", "min-price", "max-price", "sort", "order", "all"} {
		assert.NotNil(t, list.Flags().Lookup(flagName), "flag %s should exist", flagName)
	}

	assert.Equal(t, "12", list.Flags().Lookup("limit").DefValue)

	deleteCmd := findSubcommand(cmd, "delete")
	require.NotNil(t, deleteCmd)

	force := deleteCmd.Flags().Lookup("force")
	require.NotNil(t, force)
	assert.Equal(t, "f", force.Shorthand)
	assert.Equal(t, "false", force.DefValue)

	upload := findSubcommand(cmd, "upload")
	require.NotNil(t, upload)
	assert.Equal(t, "upload VEHICLE_ID FILE...", upload.Use)
	assert.NotNil(t, upload.Flags().Lookup("quiet"))
}

func TestNewBookingsCommand(t *testing.T) {
	t.Parallel()

	cmd := NewBookingsCommand()
	assert.Equal(t, "bookings", cmd.Use)
	assert.ElementsMatch(t,
		[]string{"create", "get", "rentals", "requests", "approve", "start", "complete", "reject", "cancel", "availability"},
		subcommandNames(cmd))

	for _, name := range []string{"reject", "cancel"} {
		sub := findSubcommand(cmd, name)
		require.NotNil(t, sub)
		assert.Equal(t, name+" BOOKING_ID", sub.Use)
		assert.NotNil(t, sub.Flags().Lookup("reason"))
	}

	create := findSubcommand(cmd, "create")
	require.NotNil(t, create)

	for _, flagName := range []string{"vehicle", "start", "end", "message"} {
		assert.NotNil(t, create.Flags().Lookup(flagName), "flag %s should exist", flagName)
	}
}

func TestNewPasswordCommand(t *testing.T) {
	t.Parallel()

	cmd := NewPasswordCommand()
	assert.ElementsMatch(t, []string{"change", "forgot", "reset"}, subcommandNames(cmd))
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	t.Run("truncate", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "short", truncate("short", 10))
		assert.Equal(t, "a long...", truncate("a long title", 9))
	})

	t.Run("formatPrice", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "89.50", formatPrice(89.5, ""))
		assert.Equal(t, "89.50 EUR", formatPrice(89.5, "EUR"))
	})

	t.Run("parseDate", func(t *testing.T) {
		t.Parallel()

		date, err := parseDate("2026-07-01")
		require.NoError(t, err)
		assert.Equal(t, "2026-07-01", formatDate(date))

		_, err = parseDate("07/01/2026")
		require.Error(t, err)
	})
}
