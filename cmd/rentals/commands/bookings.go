package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewBookingsCommand creates the bookings command group.
func NewBookingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookings",
		Aliases: []string{"booking", "b"},
		Short:   "Request and manage bookings",
		Long:    "Request vehicles, follow your rentals, and handle requests for the vehicles you own",
	}

	cmd.AddCommand(newBookingsCreateCommand())
	cmd.AddCommand(newBookingsGetCommand())
	cmd.AddCommand(newBookingsListCommand("rentals", "List bookings you made as a renter",
		func(ctx context.Context, bookings rentals.BookingsClient) ([]rentals.Booking, error) {
			return bookings.Rentals(ctx)
		}))
	cmd.AddCommand(newBookingsListCommand("requests", "List booking requests for your vehicles",
		func(ctx context.Context, bookings rentals.BookingsClient) ([]rentals.Booking, error) {
			return bookings.Requests(ctx)
		}))
	cmd.AddCommand(newBookingActionCommand("approve", "Approve a booking request", rentals.BookingsClient.Approve))
	cmd.AddCommand(newBookingActionCommand("start", "Mark a booking as picked up", rentals.BookingsClient.Start))
	cmd.AddCommand(newBookingActionCommand("complete", "Mark a booking as returned", rentals.BookingsClient.Complete))
	cmd.AddCommand(newBookingDecisionCommand("reject", "Reject a booking request", rentals.BookingsClient.Reject))
	cmd.AddCommand(newBookingDecisionCommand("cancel", "Cancel a booking", rentals.BookingsClient.Cancel))
	cmd.AddCommand(newBookingsAvailabilityCommand())

	return cmd
}

func displayBookings(w io.Writer, bookings []rentals.Booking) error {
	if len(bookings) == 0 {
		_, _ = fmt.Fprintln(w, "No bookings found")

		return nil
	}

	table := newTable(w, "ID", "Vehicle", "Start", "End", "Total", "Status")

	for _, booking := range bookings {
		vehicle := booking.VehicleID
		currency := ""

		if booking.Vehicle != nil {
			vehicle = truncate(booking.Vehicle.Title, constants.DescriptionDisplayLength)
			currency = booking.Vehicle.Currency
		}

		_ = table.Append(
			booking.ID,
			vehicle,
			formatDate(booking.StartDate),
			formatDate(booking.EndDate),
			formatPrice(booking.TotalPrice, currency),
			string(booking.Status),
		)
	}

	return renderTable(table)
}

func displayBooking(w io.Writer, booking *rentals.Booking) error {
	table := newTable(w, "Property", "Value")
	_ = table.Append("ID", booking.ID)
	_ = table.Append("Vehicle", booking.VehicleID)

	if booking.Vehicle != nil {
		_ = table.Append("Title", booking.Vehicle.Title)
	}

	_ = table.Append("Renter", valueOrNA(booking.RenterID))
	_ = table.Append("Owner", valueOrNA(booking.OwnerID))
	_ = table.Append("Start", formatDate(booking.StartDate))
	_ = table.Append("End", formatDate(booking.EndDate))
	_ = table.Append("Total", formatPrice(booking.TotalPrice, ""))
	_ = table.Append("Status", string(booking.Status))
	_ = table.Append("Message", valueOrNA(booking.Message))

	return renderTable(table)
}

func displayAvailability(w io.Writer, availability *rentals.Availability) error {
	if availability.Available {
		_, _ = fmt.Fprintf(w, "Vehicle %s is available\n", availability.VehicleID)

		return nil
	}

	_, _ = fmt.Fprintf(w, "Vehicle %s is not available\n", availability.VehicleID)

	if len(availability.ConflictingRanges) == 0 {
		return nil
	}

	table := newTable(w, "Booked From", "Booked Until")
	for _, booked := range availability.ConflictingRanges {
		_ = table.Append(formatDate(booked.StartDate), formatDate(booked.EndDate))
	}

	return renderTable(table)
}

func newBookingsCreateCommand() *cobra.Command {
	var vehicleID, start, end, message string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Request a booking",
		Example: `  rentals bookings create --vehicle v-123 --start 2026-07-01 --end 2026-07-04`,
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDate(start)
			if err != nil {
				return err
			}

			endDate, err := parseDate(end)
			if err != nil {
				return err
			}

			request := &rentals.BookingCreateRequest{
				VehicleID: vehicleID,
				StartDate: startDate,
				EndDate:   endDate,
				Message:   message,
			}

			return withSession(cmd.Context(), func(client rentals.Client) error {
				booking, err := client.Bookings().Create(cmd.Context(), request)
				if err != nil {
					return fmt.Errorf("failed to create booking: %w", err)
				}

				return render(cmd, booking, displayBooking)
			})
		}),
	}

	cmd.Flags().StringVar(&vehicleID, "vehicle", "", "vehicle ID")
	cmd.Flags().StringVar(&start, "start", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message to the owner")

	_ = cmd.MarkFlagRequired("vehicle")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func newBookingsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get BOOKING_ID",
		Short: "Get booking details",
		Args:  cobra.ExactArgs(1),
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				booking, err := client.Bookings().Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to get booking: %w", err)
				}

				return render(cmd, booking, displayBooking)
			})
		}),
	}
}

func newBookingsListCommand(
	use, short string,
	list func(context.Context, rentals.BookingsClient) ([]rentals.Booking, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				bookings, err := list(cmd.Context(), client.Bookings())
				if err != nil {
					return fmt.Errorf("failed to list %s: %w", use, err)
				}

				return render(cmd, bookings, displayBookings)
			})
		}),
	}
}

type bookingAction func(rentals.BookingsClient, context.Context, string) (*rentals.Booking, error)

type bookingDecision func(rentals.BookingsClient, context.Context, string, string) (*rentals.Booking, error)

func reportBooking(cmd *cobra.Command, booking *rentals.Booking) error {
	if output := viper.GetString(keyOutput); output != "" && output != constants.FormatTable {
		return render(cmd, booking, displayBooking)
	}

	printMessage(cmd, "Booking %s is now %s", booking.ID, booking.Status)

	return nil
}

func newBookingActionCommand(use, short string, action bookingAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " BOOKING_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				booking, err := action(client.Bookings(), cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to %s booking: %w", use, err)
				}

				return reportBooking(cmd, booking)
			})
		}),
	}
}

func newBookingDecisionCommand(use, short string, decide bookingDecision) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   use + " BOOKING_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				booking, err := decide(client.Bookings(), cmd.Context(), args[0], strings.TrimSpace(reason))
				if err != nil {
					return fmt.Errorf("failed to %s booking: %w", use, err)
				}

				return reportBooking(cmd, booking)
			})
		}),
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "reason shown to the other party")

	return cmd
}

func newBookingsAvailabilityCommand() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "availability VEHICLE_ID",
		Short: "Check whether a vehicle is free for a date range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDate(start)
			if err != nil {
				return err
			}

			endDate, err := parseDate(end)
			if err != nil {
				return err
			}

			return withSession(cmd.Context(), func(client rentals.Client) error {
				availability, err := client.Bookings().Availability(cmd.Context(), args[0], startDate, endDate)
				if err != nil {
					return fmt.Errorf("failed to check availability: %w", err)
				}

				return render(cmd, availability, displayAvailability)
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day (YYYY-MM-DD)")

	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}
