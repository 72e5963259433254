package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Configuration keys, shared by the config file, flags and RENTALS_* variables.
const (
	keyAPI             = "api"
	keyAuthEndpoint    = "auth_endpoint"
	keyVehicleEndpoint = "vehicle_endpoint"
	keyBookingEndpoint = "booking_endpoint"
	keyOutput          = "output"
	keyVerbose         = "verbose"
	keyCache           = "cache"
	keyRedisAddr       = "redis_addr"
	keyNATSURL         = "nats_url"
	keyRateLimit       = "rate_limit"
	keyTimeout         = "timeout"
	keyCredentials     = "credentials"
)

// Config represents the CLI configuration.
type Config struct {
	API             string `json:"api,omitempty"              yaml:"api,omitempty"`
	AuthEndpoint    string `json:"auth_endpoint,omitempty"    yaml:"auth_endpoint,omitempty"`
	VehicleEndpoint string `json:"vehicle_endpoint,omitempty" yaml:"vehicle_endpoint,omitempty"`
	BookingEndpoint string `json:"booking_endpoint,omitempty" yaml:"booking_endpoint,omitempty"`

	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Cache is memory, redis, nats or none. Only shared backends outlive a
	// single command.
	Cache     string `json:"cache,omitempty"      yaml:"cache,omitempty"`
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	NATSURL   string `json:"nats_url,omitempty"   yaml:"nats_url,omitempty"`

	RateLimit   int           `json:"rate_limit,omitempty"  yaml:"rate_limit,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"     yaml:"timeout,omitempty"`
	Credentials string        `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// configSetters validates and applies `config set` values.
var configSetters = map[string]func(*Config, string) error{
	keyAPI:             func(c *Config, v string) error { c.API = v; return nil },
	keyAuthEndpoint:    func(c *Config, v string) error { c.AuthEndpoint = v; return nil },
	keyVehicleEndpoint: func(c *Config, v string) error { c.VehicleEndpoint = v; return nil },
	keyBookingEndpoint: func(c *Config, v string) error { c.BookingEndpoint = v; return nil },
	keyRedisAddr:       func(c *Config, v string) error { c.RedisAddr = v; return nil },
	keyNATSURL:         func(c *Config, v string) error { c.NATSURL = v; return nil },
	keyCredentials:     func(c *Config, v string) error { c.Credentials = v; return nil },
	keyOutput: func(c *Config, v string) error {
		switch v {
		case constants.FormatTable, constants.FormatJSON, constants.FormatYAML:
			c.Output = v

			return nil
		default:
			return fmt.Errorf("%w: %s", constants.ErrInvalidOutputFormat, v)
		}
	},
	keyCache: func(c *Config, v string) error {
		switch v {
		case "memory", "redis", "nats", "none":
			c.Cache = v

			return nil
		default:
			return fmt.Errorf("%w: cache must be memory, redis, nats or none", constants.ErrUnknownConfigKey)
		}
	},
	keyRateLimit: func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid rate limit %q: %w", v, err)
		}

		c.RateLimit = n

		return nil
	},
	keyTimeout: func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", v, err)
		}

		c.Timeout = d

		return nil
	},
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Show and change the rentals CLI configuration stored in ~/.rentals/config.yml",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the effective CLI configuration, including values from flags and RENTALS_* variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			renderer := &OutputRenderer[*Config]{
				RenderJSON:  StandardJSONRenderer[*Config](cmd.OutOrStdout()),
				RenderYAML:  StandardYAMLRenderer[*Config](cmd.OutOrStdout()),
				RenderTable: func(c *Config) error { return displayConfigTable(cmd.OutOrStdout(), c) },
			}

			return renderer.Render(config, viper.GetString(keyOutput))
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	keys := make([]string, 0, len(configSetters))
	for key := range configSetters {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  fmt.Sprintf("Set a configuration value. Known keys: %v", keys),
		Args:  cobra.ExactArgs(constants.MinimumArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			setter, ok := configSetters[key]
			if !ok {
				return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
			}

			config := loadConfig()

			err := setter(config, value)
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s\n", key, value)

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if _, ok := configSetters[key]; !ok {
				return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
			}

			config := loadConfig()
			unsetConfigValue(config, key)

			err := saveConfigStruct(config)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", key)

			return nil
		},
	}
}

func unsetConfigValue(config *Config, key string) {
	switch key {
	case keyAPI:
		config.API = ""
	case keyAuthEndpoint:
		config.AuthEndpoint = ""
	case keyVehicleEndpoint:
		config.VehicleEndpoint = ""
	case keyBookingEndpoint:
		config.BookingEndpoint = ""
	case keyOutput:
		config.Output = ""
	case keyCache:
		config.Cache = ""
	case keyRedisAddr:
		config.RedisAddr = ""
	case keyNATSURL:
		config.NATSURL = ""
	case keyRateLimit:
		config.RateLimit = 0
	case keyTimeout:
		config.Timeout = 0
	case keyCredentials:
		config.Credentials = ""
	}
}

// loadConfig reads the effective configuration from viper.
func loadConfig() *Config {
	return &Config{
		API:             viper.GetString(keyAPI),
		AuthEndpoint:    viper.GetString(keyAuthEndpoint),
		VehicleEndpoint: viper.GetString(keyVehicleEndpoint),
		BookingEndpoint: viper.GetString(keyBookingEndpoint),
		Output:          viper.GetString(keyOutput),
		Cache:           viper.GetString(keyCache),
		RedisAddr:       viper.GetString(keyRedisAddr),
		NATSURL:         viper.GetString(keyNATSURL),
		RateLimit:       viper.GetInt(keyRateLimit),
		Timeout:         viper.GetDuration(keyTimeout),
		Credentials:     viper.GetString(keyCredentials),
	}
}

// configFilePath returns the file config is read from, or the default location.
func configFilePath() (string, error) {
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		return configFile, nil
	}

	configDir, err := configDirectory()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.yml"), nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func displayConfigTable(w io.Writer, config *Config) error {
	table := newTable(w, "Property", "Value")

	rows := [][]string{
		{keyAPI, formatConfigValue(config.API)},
		{keyAuthEndpoint, formatConfigValue(config.AuthEndpoint)},
		{keyVehicleEndpoint, formatConfigValue(config.VehicleEndpoint)},
		{keyBookingEndpoint, formatConfigValue(config.BookingEndpoint)},
		{keyOutput, formatConfigValue(config.Output)},
		{keyCache, formatConfigValue(config.Cache)},
		{keyRedisAddr, formatConfigValue(config.RedisAddr)},
		{keyNATSURL, formatConfigValue(config.NATSURL)},
		{keyRateLimit, strconv.Itoa(config.RateLimit)},
		{keyTimeout, config.Timeout.String()},
		{keyCredentials, formatConfigValue(config.Credentials)},
	}

	for _, row := range rows {
		_ = table.Append(row)
	}

	return renderTable(table)
}

func formatConfigValue(value string) string {
	if value == "" {
		return constants.NotAvailable
	}

	return value
}
