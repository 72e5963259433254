package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/http"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
)

// decodeData unmarshals the data field of a response envelope. A body that
// does not decode is a server error.
func decodeData[T any](body []byte, what string) (*T, error) {
	if len(body) == 0 {
		return nil, &rentals.Error{Kind: rentals.KindServer, Message: "empty " + what + " response", Err: rentals.ErrEmptyResponse}
	}

	var envelope rentals.Envelope[T]

	err := json.Unmarshal(body, &envelope)
	if err != nil {
		return nil, &rentals.Error{
			Kind:    rentals.KindServer,
			Message: "malformed " + what + " response",
			RawBody: body,
			Err:     err,
		}
	}

	return &envelope.Data, nil
}

// hasRecord reports whether body carries a data field. Bodies that do not
// parse count as having one, so decodeData reports them.
func hasRecord(body []byte) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return false
	}

	var envelope rentals.Envelope[json.RawMessage]

	if json.Unmarshal(body, &envelope) != nil {
		return true
	}

	return len(envelope.Data) > 0 && string(envelope.Data) != "null"
}

// settle finishes a mutation the server accepted. The dependent reads are
// invalidated before the response is decoded; a response without a record
// is answered by refetching it.
func settle[T any](
	ctx context.Context,
	cache *rentals.QueryCache,
	logger rentals.Logger,
	mutation rentals.Mutation,
	target rentals.MutationTarget,
	body []byte,
	what string,
	refetch func(context.Context) (*T, error),
) (*T, error) {
	invalidate(ctx, cache, logger, mutation, target)

	if !hasRecord(body) {
		return refetch(ctx)
	}

	return decodeData[T](body, what)
}

// decodeMessage returns the message field of a response envelope.
func decodeMessage(body []byte) string {
	var envelope rentals.Envelope[json.RawMessage]

	if json.Unmarshal(body, &envelope) != nil {
		return ""
	}

	return envelope.Message
}

// cachedGet serves a GET through the query cache.
func cachedGet(ctx context.Context, cache *rentals.QueryCache, httpClient *http.Client, key rentals.QueryKey, staleTime time.Duration, path string, query url.Values) ([]byte, error) {
	return cache.Fetch(ctx, key, staleTime, func(ctx context.Context) ([]byte, error) {
		resp, err := httpClient.Get(ctx, path, query)
		if err != nil {
			return nil, err
		}

		return resp.Body, nil
	})
}

// invalidate drops the reads made stale by a successful mutation. The
// mutation already happened, so failures are only logged.
func invalidate(ctx context.Context, cache *rentals.QueryCache, logger rentals.Logger, mutation rentals.Mutation, target rentals.MutationTarget) {
	invalidateKeys(ctx, cache, logger, mutation, rentals.Invalidations(mutation, target)...)
}

// invalidateKeys drops keys made stale by mutation.
func invalidateKeys(ctx context.Context, cache *rentals.QueryCache, logger rentals.Logger, mutation rentals.Mutation, keys ...rentals.QueryKey) {
	if len(keys) == 0 {
		return
	}

	err := cache.Invalidate(ctx, keys...)
	if err != nil {
		logger.Warn("Cache invalidation failed", map[string]interface{}{
			"mutation": string(mutation),
			"error":    err.Error(),
		})
	}
}

func idPath(id string, suffix ...string) string {
	path := "/" + url.PathEscape(id)
	for _, part := range suffix {
		path += part
	}

	return path
}
