package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultRequestIDHeader is the header used to correlate every attempt of one call.
const DefaultRequestIDHeader = "X-Request-ID"

type Option func(*Options)

type Options struct {
	fetcher           Fetcher
	recovery          RecoveryStrategy
	metrics           *Metrics
	timeout           time.Duration
	retryCount        int
	retryWaitTime     time.Duration
	retryMaxWaitTime  time.Duration
	requestLogger     RequestLogger
	retryPolicy       func(*resty.Response, error) bool
	requestHeaders    map[string]string
	requestIDHeader   string
	basicAuthUsername string
	basicAuthPassword string
	authScheme        string
	authToken         string
}

func newClientOptions() *Options {
	return &Options{
		timeout:          30 * time.Second,
		retryCount:       0,
		retryWaitTime:    500 * time.Millisecond,
		retryMaxWaitTime: 3 * time.Second,
		requestLogger:    &NoopLogger{},
		retryPolicy:      DefaultRetryPolicy,
		requestIDHeader:  DefaultRequestIDHeader,
		requestHeaders: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
	}
}

// Validate reports the first invalid setting.
func (o *Options) Validate() error {
	if o.timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	if o.retryCount < 0 {
		return errors.New("retryCount must be non-negative")
	}

	if o.retryCount > 100 {
		return errors.New("retryCount must not exceed 100")
	}

	if o.retryWaitTime < 100*time.Millisecond {
		return errors.New("retryWaitTime must be at least 100ms")
	}

	if o.retryWaitTime > time.Minute {
		return fmt.Errorf("retryWaitTime must not exceed %v", time.Minute)
	}

	if o.retryMaxWaitTime < 100*time.Millisecond {
		return errors.New("retryMaxWaitTime must be at least 100ms")
	}

	if o.retryMaxWaitTime > 5*time.Minute {
		return fmt.Errorf("retryMaxWaitTime must not exceed %v", 5*time.Minute)
	}

	if o.retryMaxWaitTime < o.retryWaitTime {
		return fmt.Errorf("retryMaxWaitTime (%v) must be greater than or equal to retryWaitTime (%v)", o.retryMaxWaitTime, o.retryWaitTime)
	}

	if o.requestLogger == nil {
		return errors.New("requestLogger must not be nil")
	}

	if o.retryPolicy == nil {
		return errors.New("retryPolicy must not be nil")
	}

	if o.basicAuthUsername != "" && o.authToken != "" {
		return errors.New("cannot use both basic auth and token auth - choose one")
	}

	return nil
}

// WithFetcher replaces the resty-backed transport. Transport options such as
// timeouts, headers and credentials only apply to the default fetcher.
func WithFetcher(fetcher Fetcher) Option {
	return func(o *Options) {
		if fetcher != nil {
			o.fetcher = fetcher
		}
	}
}

// WithRecovery sets the strategy consulted when a call fails. Use [NoRecovery]
// to propagate failures unchanged.
func WithRecovery(strategy RecoveryStrategy) Option {
	return func(o *Options) {
		if strategy != nil {
			o.recovery = strategy
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(o *Options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithRetryCount enables transport-level retries inside the default fetcher.
// The default of zero keeps every invocation to exactly one network call.
func WithRetryCount(count int) Option {
	return func(o *Options) {
		if count >= 0 {
			o.retryCount = count
		}
	}
}

func WithRetryWaitTime(waitTime time.Duration) Option {
	return func(o *Options) {
		if waitTime >= 100*time.Millisecond {
			o.retryWaitTime = waitTime
		}
	}
}

func WithRetryMaxWaitTime(maxWaitTime time.Duration) Option {
	return func(o *Options) {
		if maxWaitTime >= 100*time.Millisecond {
			o.retryMaxWaitTime = maxWaitTime
		}
	}
}

func WithRequestLogger(logger RequestLogger) Option {
	return func(o *Options) {
		if logger != nil {
			o.requestLogger = logger
		}
	}
}

func WithRetryPolicy(policy func(*resty.Response, error) bool) Option {
	return func(o *Options) {
		if policy != nil {
			o.retryPolicy = policy
		}
	}
}

func WithRequestHeader(header, value string) Option {
	return func(o *Options) {
		header = strings.TrimSpace(header)

		if header == "" || strings.EqualFold(header, "Content-Type") || strings.EqualFold(header, "Accept") {
			return
		}

		o.requestHeaders[header] = value
	}
}

func WithRequestIDHeader(header string) Option {
	return func(o *Options) {
		header = strings.TrimSpace(header)
		if header != "" {
			o.requestIDHeader = header
		}
	}
}

// WithoutRequestID stops the client from stamping a request ID header on calls.
func WithoutRequestID() Option {
	return func(o *Options) {
		o.requestIDHeader = ""
	}
}

func WithBasicAuth(username, password string) Option {
	return func(o *Options) {
		o.basicAuthUsername = username
		o.basicAuthPassword = password
	}
}

func WithAuthScheme(scheme string) Option {
	return func(o *Options) {
		o.authScheme = scheme
	}
}

func WithAuthToken(token string) Option {
	return func(o *Options) {
		o.authToken = token
	}
}
