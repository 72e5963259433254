package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	internalhttp "github.com/fivetwenty-io/rentals-client/internal/http"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
)

// VehiclesClient implements rentals.VehiclesClient.
type VehiclesClient struct {
	httpClient *internalhttp.Client
	cache      *rentals.QueryCache
	logger     rentals.Logger
}

// NewVehiclesClient creates a new vehicles client.
func NewVehiclesClient(httpClient *internalhttp.Client, cache *rentals.QueryCache, logger rentals.Logger) *VehiclesClient {
	return &VehiclesClient{
		httpClient: httpClient,
		cache:      cache,
		logger:     logger,
	}
}

// List implements rentals.VehiclesClient.List.
func (c *VehiclesClient) List(ctx context.Context, query *rentals.VehicleQuery) (*rentals.Page[rentals.Vehicle], error) {
	body, err := cachedGet(ctx, c.cache, c.httpClient, rentals.VehicleListKey(query), 0, "", query.ToValues())
	if err != nil {
		return nil, fmt.Errorf("listing vehicles: %w", err)
	}

	return decodeData[rentals.Page[rentals.Vehicle]](body, "vehicle list")
}

// ListAll walks every page of query.
func (c *VehiclesClient) ListAll(ctx context.Context, query *rentals.VehicleQuery) ([]rentals.Vehicle, error) {
	pageQuery := rentals.NewVehicleQuery()
	if query != nil {
		copied := *query
		pageQuery = &copied
	}

	if pageQuery.Page < 1 {
		pageQuery.Page = 1
	}

	var all []rentals.Vehicle

	for range constants.MaxPageWalk {
		page, err := c.List(ctx, pageQuery)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Items...)

		if !page.HasNext() || len(page.Items) == 0 {
			break
		}

		pageQuery.Page++
	}

	return all, nil
}

// Get implements rentals.VehiclesClient.Get.
func (c *VehiclesClient) Get(ctx context.Context, id string) (*rentals.Vehicle, error) {
	if id == "" {
		return nil, rentals.NewClientError("getting vehicle", rentals.ErrVehicleIDRequired)
	}

	body, err := cachedGet(ctx, c.cache, c.httpClient, rentals.VehicleKey(id), 0, idPath(id), nil)
	if err != nil {
		return nil, fmt.Errorf("getting vehicle: %w", err)
	}

	return decodeData[rentals.Vehicle](body, "vehicle")
}

// Mine implements rentals.VehiclesClient.Mine.
func (c *VehiclesClient) Mine(ctx context.Context) ([]rentals.Vehicle, error) {
	body, err := cachedGet(ctx, c.cache, c.httpClient, rentals.MyListingsKey(), 0, constants.VehicleMinePath, nil)
	if err != nil {
		return nil, fmt.Errorf("listing my vehicles: %w", err)
	}

	vehicles, err := decodeData[[]rentals.Vehicle](body, "vehicle list")
	if err != nil {
		return nil, err
	}

	return *vehicles, nil
}

// Create implements rentals.VehiclesClient.Create.
func (c *VehiclesClient) Create(ctx context.Context, request *rentals.VehicleCreateRequest) (*rentals.Vehicle, error) {
	resp, err := c.httpClient.Post(ctx, "", request)
	if err != nil {
		return nil, fmt.Errorf("creating vehicle: %w", err)
	}

	invalidate(ctx, c.cache, c.logger, rentals.MutationVehicleCreate, rentals.MutationTarget{})

	return decodeData[rentals.Vehicle](resp.Body, "vehicle")
}

// Update implements rentals.VehiclesClient.Update.
func (c *VehiclesClient) Update(ctx context.Context, id string, request *rentals.VehicleUpdateRequest) (*rentals.Vehicle, error) {
	if id == "" {
		return nil, rentals.NewClientError("updating vehicle", rentals.ErrVehicleIDRequired)
	}

	resp, err := c.httpClient.Patch(ctx, idPath(id), request)
	if err != nil {
		return nil, fmt.Errorf("updating vehicle: %w", err)
	}

	return c.changed(ctx, resp.Body, id, rentals.MutationVehicleUpdate)
}

// UpdateStatus implements rentals.VehiclesClient.UpdateStatus.
func (c *VehiclesClient) UpdateStatus(ctx context.Context, id string, status rentals.VehicleStatus) (*rentals.Vehicle, error) {
	if id == "" {
		return nil, rentals.NewClientError("updating vehicle status", rentals.ErrVehicleIDRequired)
	}

	if !status.Valid() {
		return nil, rentals.NewClientError("updating vehicle status", fmt.Errorf("%w: %s", rentals.ErrInvalidVehicleStatus, status))
	}

	resp, err := c.httpClient.Patch(ctx, idPath(id, constants.VehicleStatusPath), &rentals.VehicleStatusRequest{Status: status})
	if err != nil {
		return nil, fmt.Errorf("updating vehicle status: %w", err)
	}

	return c.changed(ctx, resp.Body, id, rentals.MutationVehicleStatus)
}

// Delete implements rentals.VehiclesClient.Delete.
func (c *VehiclesClient) Delete(ctx context.Context, id string) error {
	if id == "" {
		return rentals.NewClientError("deleting vehicle", rentals.ErrVehicleIDRequired)
	}

	_, err := c.httpClient.Delete(ctx, idPath(id))
	if err != nil {
		return fmt.Errorf("deleting vehicle: %w", err)
	}

	invalidate(ctx, c.cache, c.logger, rentals.MutationVehicleDelete, rentals.MutationTarget{VehicleID: id})

	return nil
}

// UploadImages implements rentals.VehiclesClient.UploadImages. Every image is
// sent in one multipart request under the "images" field.
func (c *VehiclesClient) UploadImages(ctx context.Context, id string, images []rentals.ImageUpload) (*rentals.Vehicle, error) {
	if id == "" {
		return nil, rentals.NewClientError("uploading images", rentals.ErrVehicleIDRequired)
	}

	if len(images) == 0 {
		return nil, rentals.NewClientError("uploading images", rentals.ErrNoImages)
	}

	body, contentType, err := multipartImages(images)
	if err != nil {
		return nil, rentals.NewClientError("building image upload", err)
	}

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method:      http.MethodPost,
		Path:        idPath(id, constants.VehicleImagesPath),
		RawBody:     body,
		ContentType: contentType,
		Progress:    uploadProgress(images),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading images: %w", err)
	}

	return c.changed(ctx, resp.Body, id, rentals.MutationVehicleImages)
}

func (c *VehiclesClient) changed(ctx context.Context, body []byte, id string, mutation rentals.Mutation) (*rentals.Vehicle, error) {
	return settle(ctx, c.cache, c.logger, mutation, rentals.MutationTarget{VehicleID: id}, body, "vehicle",
		func(ctx context.Context) (*rentals.Vehicle, error) { return c.Get(ctx, id) })
}

func multipartImages(images []rentals.ImageUpload) ([]byte, string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	for _, image := range images {
		part, err := writer.CreateFormFile(constants.VehicleImagesField, image.Name)
		if err != nil {
			return nil, "", fmt.Errorf("creating form file: %w", err)
		}

		_, err = io.Copy(part, image.Reader)
		if err != nil {
			return nil, "", fmt.Errorf("writing %s to form: %w", image.Name, err)
		}
	}

	err := writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

// uploadProgress fans request body progress out to every distinct writer.
func uploadProgress(images []rentals.ImageUpload) io.Writer {
	var writers []io.Writer

	seen := make(map[io.Writer]bool)

	for _, image := range images {
		if image.Progress == nil || seen[image.Progress] {
			continue
		}

		seen[image.Progress] = true
		writers = append(writers, image.Progress)
	}

	switch len(writers) {
	case 0:
		return nil
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}
