package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OutputRenderer handles different output formats.
type OutputRenderer[T any] struct {
	RenderJSON  func(data T) error
	RenderYAML  func(data T) error
	RenderTable func(data T) error
}

// Render outputs data in the specified format.
func (o *OutputRenderer[T]) Render(data T, format string) error {
	switch format {
	case constants.FormatJSON:
		return o.RenderJSON(data)
	case constants.FormatYAML:
		return o.RenderYAML(data)
	default:
		return o.RenderTable(data)
	}
}

// StandardJSONRenderer returns an indented JSON encoder writing to w.
func StandardJSONRenderer[T any](w io.Writer) func(T) error {
	return func(data T) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(data)
		if err != nil {
			return fmt.Errorf("encoding data to JSON: %w", err)
		}

		return nil
	}
}

// StandardYAMLRenderer returns a YAML encoder writing to w.
func StandardYAMLRenderer[T any](w io.Writer) func(T) error {
	return func(data T) error {
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(constants.JSONIndentSize)

		err := encoder.Encode(data)
		if err != nil {
			return fmt.Errorf("encoding data to YAML: %w", err)
		}

		return encoder.Close()
	}
}

// render writes data in the configured output format, using table for the
// table format.
func render[T any](cmd *cobra.Command, data T, table func(io.Writer, T) error) error {
	out := cmd.OutOrStdout()

	renderer := &OutputRenderer[T]{
		RenderJSON:  StandardJSONRenderer[T](out),
		RenderYAML:  StandardYAMLRenderer[T](out),
		RenderTable: func(data T) error { return table(out, data) },
	}

	return renderer.Render(data, viper.GetString(keyOutput))
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}

	table.Header(header...)

	return table
}

func renderTable(table *tablewriter.Table) error {
	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// requireAuth marks a command as needing a session. Unauthorized failures that
// survive the refresh gain a hint to sign in again.
func requireAuth(run func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if err != nil && rentals.IsUnauthorized(err) {
			return fmt.Errorf("%w (%s)", constants.ErrNotLoggedIn, rentals.MessageOf(err))
		}

		return err
	}
}

// parseDate parses a YYYY-MM-DD flag value as midnight UTC.
func parseDate(value string) (time.Time, error) {
	date, err := time.Parse(constants.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", constants.ErrInvalidDate, value)
	}

	return date, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return constants.NotAvailable
	}

	return t.Format(constants.DateLayout)
}

func formatPrice(price float64, currency string) string {
	formatted := strconv.FormatFloat(price, 'f', 2, 64)
	if currency == "" {
		return formatted
	}

	return formatted + " " + currency
}

func truncate(value string, length int) string {
	if len(value) <= length {
		return value
	}

	return strings.TrimSpace(value[:length-3]) + "..."
}

func valueOrNA(value string) string {
	if value == "" {
		return constants.NotAvailable
	}

	return value
}

func printMessage(cmd *cobra.Command, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}
