package commands

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/pkg/browser"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// browserOpenURL is swapped out in tests.
var browserOpenURL = browser.OpenURL

// NewVehiclesCommand creates the vehicles command group.
func NewVehiclesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vehicles",
		Aliases: []string{"vehicle", "v"},
		Short:   "Browse and manage vehicle listings",
		Long:    "Search listings, view details, and manage the vehicles you rent out",
	}

	cmd.AddCommand(newVehiclesListCommand())
	cmd.AddCommand(newVehiclesGetCommand())
	cmd.AddCommand(newVehiclesMineCommand())
	cmd.AddCommand(newVehiclesCreateCommand())
	cmd.AddCommand(newVehiclesUpdateCommand())
	cmd.AddCommand(newVehiclesStatusCommand())
	cmd.AddCommand(newVehiclesDeleteCommand())
	cmd.AddCommand(newVehiclesUploadCommand())
	cmd.AddCommand(newVehiclesMapCommand())

	return cmd
}

func displayVehicles(w io.Writer, vehicles []rentals.Vehicle) error {
	if len(vehicles) == 0 {
		_, _ = fmt.Fprintln(w, "No vehicles found")

		return nil
	}

	table := newTable(w, "ID", "Title", "Make/Model", "Year", "Price/Day", "City", "Status")

	for _, vehicle := range vehicles {
		_ = table.Append(
			vehicle.ID,
			truncate(vehicle.Title, constants.DescriptionDisplayLength),
			strings.TrimSpace(vehicle.Make+" "+vehicle.Model),
			strconv.Itoa(vehicle.Year),
			formatPrice(vehicle.PricePerDay, vehicle.Currency),
			valueOrNA(vehicle.Location.City),
			string(vehicle.Status),
		)
	}

	return renderTable(table)
}

func displayVehiclePage(w io.Writer, page *rentals.Page[rentals.Vehicle]) error {
	err := displayVehicles(w, page.Items)
	if err != nil {
		return err
	}

	if page.TotalPages > 1 {
		_, _ = fmt.Fprintf(w, "Page %d of %d (%d vehicles)\n", page.Page, page.TotalPages, page.Total)
	}

	return nil
}

func displayVehicle(w io.Writer, vehicle *rentals.Vehicle) error {
	table := newTable(w, "Property", "Value")
	_ = table.Append("ID", vehicle.ID)
	_ = table.Append("Title", vehicle.Title)
	_ = table.Append("Make", vehicle.Make)
	_ = table.Append("Model", vehicle.Model)
	_ = table.Append("Year", strconv.Itoa(vehicle.Year))
	_ = table.Append("Category", valueOrNA(vehicle.Category))
	_ = table.Append("Price/Day", formatPrice(vehicle.PricePerDay, vehicle.Currency))
	_ = table.Append("Status", string(vehicle.Status))
	_ = table.Append("Location", valueOrNA(strings.Trim(vehicle.Location.Address+", "+vehicle.Location.City, ", ")))
	_ = table.Append("Seats", strconv.Itoa(vehicle.Seats))
	_ = table.Append("Transmission", valueOrNA(vehicle.Transmission))
	_ = table.Append("Fuel", valueOrNA(vehicle.FuelType))
	_ = table.Append("Features", valueOrNA(strings.Join(vehicle.Features, ", ")))
	_ = table.Append("Images", strconv.Itoa(len(vehicle.Images)))

	return renderTable(table)
}

func newVehiclesListCommand() *cobra.Command {
	var (
		query    = rentals.NewVehicleQuery()
		allPages bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Search vehicle listings",
		Long:  "List available vehicles, optionally filtered by city, category, price and free text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				if allPages {
					vehicles, err := client.Vehicles().ListAll(cmd.Context(), query)
					if err != nil {
						return fmt.Errorf("failed to list vehicles: %w", err)
					}

					return render(cmd, vehicles, displayVehicles)
				}

				page, err := client.Vehicles().List(cmd.Context(), query)
				if err != nil {
					return fmt.Errorf("failed to list vehicles: %w", err)
				}

				return render(cmd, page, displayVehiclePage)
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&query.Page, "page", 1, "page number")
	flags.IntVar(&query.Limit, "limit", constants.DefaultPageSize, "vehicles per page")
	flags.StringVarP(&query.Search, "search", "s", "", "free-text search")
	flags.StringVar(&query.City, "city", "", "filter by city")
	flags.StringVar(&query.Category, "category", "", "filter by category")
	flags.Float64Var(&query.MinPrice, "min-price", 0, "minimum price per day")
	flags.Float64Var(&query.MaxPrice, "max-price", 0, "maximum price per day")
	flags.StringVar(&query.SortBy, "sort", "", "sort field")
	flags.StringVar(&query.Order, "order", "", "sort order (asc, desc)")
	flags.BoolVar(&allPages, "all", false, "fetch all pages")

	return cmd
}

func newVehiclesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get VEHICLE_ID",
		Short: "Get vehicle details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				vehicle, err := client.Vehicles().Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to get vehicle: %w", err)
				}

				return render(cmd, vehicle, displayVehicle)
			})
		},
	}
}

func newVehiclesMineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your own listings",
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				vehicles, err := client.Vehicles().Mine(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list your vehicles: %w", err)
				}

				return render(cmd, vehicles, displayVehicles)
			})
		}),
	}
}

func newVehiclesCreateCommand() *cobra.Command {
	var request rentals.VehicleCreateRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a vehicle listing",
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				vehicle, err := client.Vehicles().Create(cmd.Context(), &request)
				if err != nil {
					return fmt.Errorf("failed to create vehicle: %w", err)
				}

				return render(cmd, vehicle, displayVehicle)
			})
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&request.Title, "title", "", "listing title")
	flags.StringVar(&request.Description, "description", "", "listing description")
	flags.StringVar(&request.Make, "make", "", "vehicle make")
	flags.StringVar(&request.Model, "model", "", "vehicle model")
	flags.IntVar(&request.Year, "year", 0, "model year")
	flags.StringVar(&request.Category, "category", "", "category")
	flags.Float64Var(&request.PricePerDay, "price", 0, "price per day")
	flags.StringVar(&request.Currency, "currency", "", "price currency")
	flags.Float64Var(&request.Location.Latitude, "lat", 0, "pickup latitude")
	flags.Float64Var(&request.Location.Longitude, "lng", 0, "pickup longitude")
	flags.StringVar(&request.Location.Address, "address", "", "pickup address")
	flags.StringVar(&request.Location.City, "city", "", "pickup city")
	flags.IntVar(&request.Seats, "seats", 0, "number of seats")
	flags.StringVar(&request.Transmission, "transmission", "", "transmission")
	flags.StringVar(&request.FuelType, "fuel", "", "fuel type")
	flags.StringSliceVar(&request.Features, "feature", nil, "feature (repeatable)")

	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func newVehiclesUpdateCommand() *cobra.Command {
	var (
		title, description string
		price              float64
		seats              int
		features           []string
	)

	cmd := &cobra.Command{
		Use:   "update VEHICLE_ID",
		Short: "Update a vehicle listing",
		Args:  cobra.ExactArgs(1),
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			request := &rentals.VehicleUpdateRequest{}
			changed := false

			if cmd.Flags().Changed("title") {
				request.Title, changed = &title, true
			}

			if cmd.Flags().Changed("description") {
				request.Description, changed = &description, true
			}

			if cmd.Flags().Changed("price") {
				request.PricePerDay, changed = &price, true
			}

			if cmd.Flags().Changed("seats") {
				request.Seats, changed = &seats, true
			}

			if cmd.Flags().Changed("feature") {
				request.Features, changed = features, true
			}

			if !changed {
				return constants.ErrNothingToUpdate
			}

			return withSession(cmd.Context(), func(client rentals.Client) error {
				vehicle, err := client.Vehicles().Update(cmd.Context(), args[0], request)
				if err != nil {
					return fmt.Errorf("failed to update vehicle: %w", err)
				}

				return render(cmd, vehicle, displayVehicle)
			})
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&title, "title", "", "listing title")
	flags.StringVar(&description, "description", "", "listing description")
	flags.Float64Var(&price, "price", 0, "price per day")
	flags.IntVar(&seats, "seats", 0, "number of seats")
	flags.StringSliceVar(&features, "feature", nil, "feature (repeatable, replaces the list)")

	return cmd
}

func newVehiclesStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status VEHICLE_ID STATUS",
		Short: "Change a listing's status",
		Long:  "Set a listing to available, unavailable, rented or maintenance",
		Args:  cobra.ExactArgs(constants.MinimumArgumentCount),
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				vehicle, err := client.Vehicles().UpdateStatus(cmd.Context(), args[0], rentals.VehicleStatus(args[1]))
				if err != nil {
					return fmt.Errorf("failed to update vehicle status: %w", err)
				}

				printMessage(cmd, "Vehicle %s is now %s", vehicle.ID, vehicle.Status)

				return nil
			})
		}),
	}
}

func newVehiclesDeleteCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete VEHICLE_ID",
		Short: "Delete a vehicle listing",
		Args:  cobra.ExactArgs(1),
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			if !force {
				answer, err := newPrompter(cmd).ask(fmt.Sprintf("Really delete vehicle %s? [y/N]", args[0]))
				if err != nil {
					return err
				}

				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					printMessage(cmd, "Cancelled")

					return nil
				}
			}

			return withSession(cmd.Context(), func(client rentals.Client) error {
				err := client.Vehicles().Delete(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to delete vehicle: %w", err)
				}

				printMessage(cmd, "Deleted vehicle %s", args[0])

				return nil
			})
		}),
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "delete without confirmation")

	return cmd
}

// openImages opens every path as an upload; the returned function closes them.
func openImages(paths []string, progress io.Writer) ([]rentals.ImageUpload, func(), error) {
	var files []*os.File

	closeAll := func() {
		for _, file := range files {
			_ = file.Close()
		}
	}

	images := make([]rentals.ImageUpload, 0, len(paths))

	for _, path := range paths {
		// #nosec G304 -- the user names the files to upload.
		file, err := os.Open(path)
		if err != nil {
			closeAll()

			return nil, nil, fmt.Errorf("opening %s: %w", path, err)
		}

		files = append(files, file)

		info, err := file.Stat()
		if err != nil {
			closeAll()

			return nil, nil, fmt.Errorf("reading %s: %w", path, err)
		}

		if !info.Mode().IsRegular() {
			closeAll()

			return nil, nil, fmt.Errorf("%w: %s", constants.ErrNotRegularFile, path)
		}

		images = append(images, rentals.ImageUpload{
			Name:     filepath.Base(path),
			Reader:   file,
			Size:     info.Size(),
			Progress: progress,
		})
	}

	return images, closeAll, nil
}

func newVehiclesUploadCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "upload VEHICLE_ID FILE...",
		Short: "Upload images for a listing",
		Args:  cobra.MinimumNArgs(constants.MinimumArgumentCount),
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			var progress io.Writer

			if !quiet {
				// The request body size includes multipart framing, so the bar
				// counts bytes without a total.
				bar := progressbar.NewOptions64(-1,
					progressbar.OptionSetDescription(fmt.Sprintf("Uploading %d image(s)", len(args)-1)),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionShowBytes(true),
					progressbar.OptionThrottle(100*time.Millisecond),
					progressbar.OptionClearOnFinish(),
					progressbar.OptionSpinnerType(14),
				)
				defer func() { _ = bar.Finish() }()

				progress = bar
			}

			images, closeImages, err := openImages(args[1:], progress)
			if err != nil {
				return err
			}
			defer closeImages()

			return withSession(cmd.Context(), func(client rentals.Client) error {
				vehicle, err := client.Vehicles().UploadImages(cmd.Context(), args[0], images)
				if err != nil {
					return fmt.Errorf("failed to upload images: %w", err)
				}

				printMessage(cmd, "Vehicle %s now has %d image(s)", vehicle.ID, len(vehicle.Images))

				return nil
			})
		}),
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")

	return cmd
}

// MapURL links to the vehicle's pickup location on OpenStreetMap.
func MapURL(location rentals.Location) string {
	lat := strconv.FormatFloat(location.Latitude, 'f', -1, 64)
	lng := strconv.FormatFloat(location.Longitude, 'f', -1, 64)

	values := url.Values{}
	values.Set("mlat", lat)
	values.Set("mlon", lng)

	return fmt.Sprintf("%s?%s#map=%d/%s/%s", constants.OpenStreetMapURL, values.Encode(), constants.DefaultMapZoom, lat, lng)
}

func newVehiclesMapCommand() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "map VEHICLE_ID",
		Short: "Open a vehicle's pickup location on a map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				vehicle, err := client.Vehicles().Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to get vehicle: %w", err)
				}

				if vehicle.Location.Latitude == 0 && vehicle.Location.Longitude == 0 {
					return fmt.Errorf("%w: %s", constants.ErrNoLocation, vehicle.ID)
				}

				link := MapURL(vehicle.Location)

				if printOnly {
					printMessage(cmd, "%s", link)

					return nil
				}

				err = browserOpenURL(link)
				if err != nil {
					return fmt.Errorf("opening browser: %w", err)
				}

				printMessage(cmd, "Opened %s", link)

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "print the link instead of opening a browser")

	return cmd
}
