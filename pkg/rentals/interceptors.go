package rentals

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
)

// RequestIDHeader carries a per-attempt identifier for server-side correlation.
const RequestIDHeader = "X-Request-ID"

// MetadataRetried is set on the replay of a request after a session refresh.
const MetadataRetried = "retried"

const metadataStartTime = "start_time"

// Request represents an HTTP request that can be intercepted.
type Request struct {
	Method   string
	Path     string
	Headers  http.Header
	Body     []byte
	Metadata map[string]interface{}
}

// Response represents an HTTP response that can be intercepted.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Error      error
}

// RequestInterceptor runs once per request sent by the client, and once more
// for the replay after a session refresh. Transport retries made under
// Config.RetryMax happen below it and are not seen. Returning an error aborts
// the request.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor runs after each request RequestInterceptor saw, also
// when the transport failed.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// InterceptorChain runs interceptors in registration order.
type InterceptorChain struct {
	before []RequestInterceptor
	after  []ResponseInterceptor
}

// NewInterceptorChain creates an empty chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// AddRequestInterceptor appends a request interceptor.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.before = append(c.before, interceptor)
}

// AddResponseInterceptor appends a response interceptor.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.after = append(c.after, interceptor)
}

// ExecuteRequestInterceptors stops at the first failing interceptor.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) error {
	for i, interceptor := range c.before {
		if err := interceptor(ctx, req); err != nil {
			return fmt.Errorf("request interceptor %d failed: %w", i, err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors stops at the first failing interceptor.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	for i, interceptor := range c.after {
		if err := interceptor(ctx, req, resp); err != nil {
			return fmt.Errorf("response interceptor %d failed: %w", i, err)
		}
	}

	return nil
}

func requestFields(req *Request) map[string]interface{} {
	fields := map[string]interface{}{
		"method": req.Method,
		"path":   req.Path,
	}

	if id := req.Headers.Get(RequestIDHeader); id != "" {
		fields["request_id"] = id
	}

	if retried, ok := req.Metadata[MetadataRetried].(bool); ok && retried {
		fields["retried"] = true
	}

	return fields
}

// LoggingInterceptor logs each outgoing attempt. Register it after
// RequestIDInterceptor to get the request ID in the log line.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		logger.Debug("Sending request", requestFields(req))

		return nil
	}
}

// LoggingResponseInterceptor logs each completed attempt. Transport failures
// and server errors are logged as errors; a 401 is left at debug level since
// the session refresh handles it.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		fields := requestFields(req)
		fields["status_code"] = resp.StatusCode

		switch {
		case resp.Error != nil:
			fields["error"] = resp.Error.Error()
			logger.Error("Request failed", fields)
		case resp.StatusCode >= http.StatusInternalServerError:
			logger.Error("Service error", fields)
		case resp.StatusCode == http.StatusUnauthorized:
			logger.Debug("Session rejected", fields)
		case resp.StatusCode >= http.StatusBadRequest:
			logger.Warn("Request rejected", fields)
		default:
			logger.Debug("Received response", fields)
		}

		return nil
	}
}

// RateLimitInterceptor implements client-side rate limiting. The refill
// goroutine stops when ctx is done.
func RateLimitInterceptor(ctx context.Context, requestsPerSecond int) RequestInterceptor {
	bucket := make(chan struct{}, requestsPerSecond)

	for range requestsPerSecond {
		bucket <- struct{}{}
	}

	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(requestsPerSecond))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case bucket <- struct{}{}:
				default:
				}
			}
		}
	}()

	return func(ctx context.Context, req *Request) error {
		select {
		case <-bucket:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HeaderInterceptor adds custom headers to requests.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		for key, value := range headers {
			req.Headers.Set(key, value)
		}

		return nil
	}
}

// RequestIDInterceptor stamps every attempt with a fresh X-Request-ID.
func RequestIDInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		req.Headers.Set(RequestIDHeader, uuid.NewString())

		return nil
	}
}

// Metrics is a snapshot of one endpoint's counters.
type Metrics struct {
	TotalRequests   int64
	TotalErrors     int64
	TotalLatency    time.Duration
	AverageLatency  time.Duration
	P95Latency      time.Duration
	LastRequestTime time.Time
}

type endpointMetrics struct {
	Metrics

	samples []float64
}

// MetricsCollector collects API metrics.
type MetricsCollector struct {
	mu       sync.Mutex
	metrics  map[string]*endpointMetrics
	onChange func(endpoint string, metrics Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*endpointMetrics),
	}
}

// SetOnChange sets a callback for when metrics change.
func (m *MetricsCollector) SetOnChange(fn func(endpoint string, metrics Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onChange = fn
}

// GetMetrics returns metrics for an endpoint ("METHOD path").
func (m *MetricsCollector) GetMetrics(endpoint string) *Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if metrics, ok := m.metrics[endpoint]; ok {
		snapshot := metrics.Metrics

		return &snapshot
	}

	return nil
}

// Endpoints lists every endpoint seen so far.
func (m *MetricsCollector) Endpoints() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	endpoints := make([]string, 0, len(m.metrics))
	for endpoint := range m.metrics {
		endpoints = append(endpoints, endpoint)
	}

	return endpoints
}

func (m *MetricsCollector) record(endpoint string, latency time.Duration, failed bool) {
	m.mu.Lock()

	metrics, ok := m.metrics[endpoint]
	if !ok {
		metrics = &endpointMetrics{}
		m.metrics[endpoint] = metrics
	}

	metrics.TotalRequests++
	metrics.LastRequestTime = time.Now()

	if failed {
		metrics.TotalErrors++
	}

	if latency > 0 {
		metrics.TotalLatency += latency
		metrics.AverageLatency = metrics.TotalLatency / time.Duration(metrics.TotalRequests)

		metrics.samples = append(metrics.samples, float64(latency))
		if len(metrics.samples) > constants.MetricsWindowSize {
			metrics.samples = metrics.samples[len(metrics.samples)-constants.MetricsWindowSize:]
		}

		p95, err := stats.Percentile(metrics.samples, constants.LatencyPercentile)
		if err == nil {
			metrics.P95Latency = time.Duration(p95)
		}
	}

	snapshot := metrics.Metrics
	onChange := m.onChange

	m.mu.Unlock()

	if onChange != nil {
		onChange(endpoint, snapshot)
	}
}

// MetricsRequestInterceptor stamps the attempt's start time.
func MetricsRequestInterceptor(collector *MetricsCollector) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[metadataStartTime] = time.Now()

		return nil
	}
}

// MetricsResponseInterceptor records the attempt under "METHOD path". A
// transport failure or any 4xx/5xx counts as an error.
func MetricsResponseInterceptor(collector *MetricsCollector) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		endpoint := fmt.Sprintf("%s %s", req.Method, req.Path)

		var latency time.Duration

		if req.Metadata != nil {
			if startTime, ok := req.Metadata[metadataStartTime].(time.Time); ok {
				latency = time.Since(startTime)
			}
		}

		collector.record(endpoint, latency, resp.Error != nil || resp.StatusCode >= 400)

		return nil
	}
}
