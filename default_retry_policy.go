package client

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// DefaultRetryPolicy is the retry condition the default fetcher uses once
// transport-level retries are enabled with [WithRetryCount]. It retries HTTP
// 408, 429 and 5xx responses and transient connection errors, but only for
// idempotent methods: an upload POST is never replayed by the transport.
// Context cancellation, deadline exceeded and DNS failures are not retried.
//
// Supply a custom function via [WithRetryPolicy] to override this behaviour.
// Retries at this layer are independent of the [RecoveryStrategy], which
// runs after the transport has given up.
func DefaultRetryPolicy(r *resty.Response, err error) bool {
	if r != nil && r.Request != nil && !idempotent(r.Request.Method) {
		return false
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}

		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return false
		}

		return true
	}

	if r == nil {
		return false
	}

	switch code := r.StatusCode(); {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	default:
		return code >= 500
	}
}

func idempotent(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}
