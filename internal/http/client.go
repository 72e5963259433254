package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/hashicorp/go-retryablehttp"
)

// SessionHandler supplies the bearer token and recovers from 401 responses.
type SessionHandler interface {
	AccessToken() string
	HandleUnauthorized(ctx context.Context, staleToken string) (string, error)
}

// Client is an HTTP client for one backend service.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	session      SessionHandler
	noRefresh    map[string]bool
	userAgent    string
	logger       rentals.Logger
	debug        bool
	interceptors *rentals.InterceptorChain
}

// Request represents an HTTP request.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string

	// RawBody is sent as-is with ContentType instead of JSON-encoding Body.
	RawBody     []byte
	ContentType string
	// Progress receives the request body as it is written.
	Progress io.Writer

	// Retried marks a replay after a session refresh. A retried request is
	// never refreshed again.
	Retried bool
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger rentals.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the user agent.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig enables transport retries on connection errors, 429 and
// 5xx. 4xx responses are never retried.
func WithRetryConfig(retryMax int, retryWaitMin, retryWaitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = retryWaitMin
		c.httpClient.RetryWaitMax = retryWaitMax
	}
}

// WithHTTPTimeout sets the per-attempt timeout.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.HTTPClient.Timeout = timeout
		}
	}
}

// WithInterceptors runs chain around every attempt.
func WithInterceptors(chain *rentals.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// WithoutRefresh lists paths whose 401 is final, such as login.
func WithoutRefresh(paths ...string) Option {
	return func(c *Client) {
		for _, path := range paths {
			c.noRefresh[path] = true
		}
	}
}

// NewClient creates a client for baseURL. A nil session sends unauthenticated
// requests and surfaces every 401.
func NewClient(baseURL string, session SessionHandler, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	client := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: retryClient,
		session:    session,
		noRefresh:  make(map[string]bool),
		userAgent:  constants.DefaultUserAgent,
		logger:     rentals.NopLogger{},
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.debug {
		retryClient.Logger = retryLogger{logger: client.logger}
	}

	return client
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends req. On a 401 it asks the session handler for a fresh token and
// replays the request once. Every failure is returned as a *rentals.Error;
// for error statuses the response is returned alongside it.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, rentals.NewClientError("encoding request body", err)
	}

	token := c.accessToken()

	resp, err := c.send(ctx, req, body, contentType, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.canRefresh(req) {
		freshToken, refreshErr := c.session.HandleUnauthorized(ctx, token)
		if refreshErr != nil {
			return resp, refreshErr
		}

		replay := *req
		replay.Retried = true

		resp, err = c.send(ctx, &replay, body, contentType, freshToken)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return resp, rentals.ParseErrorResponse(resp.StatusCode, resp.Body)
	}

	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPut,
		Path:   path,
		Body:   body,
	})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPatch,
		Path:   path,
		Body:   body,
	})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   path,
	})
}

func (c *Client) accessToken() string {
	if c.session == nil {
		return ""
	}

	return c.session.AccessToken()
}

func (c *Client) canRefresh(req *Request) bool {
	return c.session != nil && !req.Retried && !c.noRefresh[req.Path]
}

func encodeBody(req *Request) ([]byte, string, error) {
	if req.RawBody != nil {
		return req.RawBody, req.ContentType, nil
	}

	if req.Body == nil {
		return nil, "", nil
	}

	body, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling request body: %w", err)
	}

	return body, "application/json", nil
}

// send performs one attempt with token attached.
func (c *Client) send(ctx context.Context, req *Request, body []byte, contentType, token string) (*Response, error) {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var bodySource interface{}
	if body != nil {
		bodySource = bodyReader(body, req.Progress)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, bodySource)
	if err != nil {
		return nil, rentals.NewClientError("creating request", err)
	}

	if body != nil {
		httpReq.ContentLength = int64(len(body))
		httpReq.Header.Set("Content-Type", contentType)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	intercepted := &rentals.Request{
		Method:   req.Method,
		Path:     req.Path,
		Headers:  httpReq.Header,
		Body:     body,
		Metadata: map[string]interface{}{rentals.MetadataRetried: req.Retried},
	}

	if c.interceptors != nil {
		err = c.interceptors.ExecuteRequestInterceptors(ctx, intercepted)
		if err != nil {
			return nil, rentals.NewClientError("preparing request", err)
		}
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":  req.Method,
			"url":     fullURL,
			"retried": req.Retried,
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.afterResponse(ctx, intercepted, &rentals.Response{Error: err})

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, rentals.NewNetworkError(ctxErr)
		}

		return nil, rentals.NewNetworkError(err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.afterResponse(ctx, intercepted, &rentals.Response{StatusCode: httpResp.StatusCode, Error: err})

		return nil, rentals.NewNetworkError(fmt.Errorf("reading response body: %w", err))
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status": httpResp.StatusCode,
			"url":    fullURL,
			"bytes":  len(respBody),
		})
	}

	c.afterResponse(ctx, intercepted, &rentals.Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	})

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}, nil
}

func (c *Client) afterResponse(ctx context.Context, req *rentals.Request, resp *rentals.Response) {
	if c.interceptors == nil {
		return
	}

	err := c.interceptors.ExecuteResponseInterceptors(ctx, req, resp)
	if err != nil {
		c.logger.Warn("Response interceptor failed", map[string]interface{}{"error": err.Error()})
	}
}

// bodyReader rebuilds the body for every transport attempt.
func bodyReader(body []byte, progress io.Writer) retryablehttp.ReaderFunc {
	return func() (io.Reader, error) {
		var reader io.Reader = bytes.NewReader(body)
		if progress != nil {
			reader = io.TeeReader(reader, progress)
		}

		return reader, nil
	}
}

// retryLogger routes retryablehttp's leveled logging to rentals.Logger.
type retryLogger struct {
	logger rentals.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, fields(keysAndValues))
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, fields(keysAndValues))
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues))
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, fields(keysAndValues))
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}

		out[key] = keysAndValues[i+1]
	}

	return out
}
