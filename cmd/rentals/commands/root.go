package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand builds the rentals command tree.
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rentals",
		Short: "Vehicle rental marketplace CLI",
		Long: `A command-line interface for the vehicle rental marketplace.

Browse and manage vehicle listings, request and handle bookings, and manage
your account. Sessions are stored locally and refreshed automatically.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.rentals/config.yml)")
	flags.StringP("api", "a", "", "API gateway URL")
	flags.String("auth-endpoint", "", "auth service URL (overrides the gateway)")
	flags.String("vehicle-endpoint", "", "vehicle service URL (overrides the gateway)")
	flags.String("booking-endpoint", "", "booking service URL (overrides the gateway)")
	flags.StringP("output", "o", constants.FormatTable, "output format (table, json, yaml)")
	flags.BoolP("verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag(keyAPI, flags.Lookup("api"))
	_ = viper.BindPFlag(keyAuthEndpoint, flags.Lookup("auth-endpoint"))
	_ = viper.BindPFlag(keyVehicleEndpoint, flags.Lookup("vehicle-endpoint"))
	_ = viper.BindPFlag(keyBookingEndpoint, flags.Lookup("booking-endpoint"))
	_ = viper.BindPFlag(keyOutput, flags.Lookup("output"))
	_ = viper.BindPFlag(keyVerbose, flags.Lookup("verbose"))

	rootCmd.AddCommand(
		NewVersionCommand(version, commit, date),
		NewLoginCommand(),
		NewRegisterCommand(),
		NewLogoutCommand(),
		NewProfileCommand(),
		NewPasswordCommand(),
		NewVehiclesCommand(),
		NewBookingsCommand(),
		NewConfigCommand(),
	)

	return rootCmd
}

func initConfig() error {
	// A missing .env is not an error.
	_ = godotenv.Load()

	cfgFile := viper.GetString("config")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirectory()
		if err != nil {
			return err
		}

		viper.AddConfigPath(configDir)
		viper.SetConfigType("yml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("RENTALS")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err == nil && viper.GetBool(keyVerbose) {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	output := viper.GetString(keyOutput)
	switch output {
	case constants.FormatTable, constants.FormatJSON, constants.FormatYAML, "":
		return nil
	default:
		return fmt.Errorf("%w: %s", constants.ErrInvalidOutputFormat, output)
	}
}

// configDirectory returns ~/.rentals, creating it when missing.
func configDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".rentals")

	err = os.MkdirAll(configDir, constants.ConfigDirPerm)
	if err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}
