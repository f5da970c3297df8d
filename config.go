package client

import (
	"context"
	"maps"
	"strings"
)

// RequestConfig carries the transport options and extension hooks of a single
// call through every layer. T is the type the layer resolves with.
type RequestConfig[T any] struct {
	Method  string
	Headers map[string]string
	Body    []byte

	// OnHeadersReceived runs once status and headers are known, before the
	// body is parsed. An error is handled like a transport failure.
	OnHeadersReceived func(ctx context.Context, resp *Response) error

	// OnError is offered every failure of the call. A nil error return
	// recovers the call with the returned value; returning ErrRetry from the
	// envelope client re-issues the request.
	OnError func(ctx context.Context, err error) (T, error)
}

// MergeConfig combines configs from left to right. Non-zero fields of later
// configs replace earlier ones and headers are merged per key, so the
// rightmost value wins. None of the inputs are modified.
func MergeConfig[T any](configs ...*RequestConfig[T]) *RequestConfig[T] {
	merged := &RequestConfig[T]{}

	for _, cfg := range configs {
		if cfg == nil {
			continue
		}
		if cfg.Method != "" {
			merged.Method = strings.ToUpper(cfg.Method)
		}
		if len(cfg.Headers) > 0 {
			if merged.Headers == nil {
				merged.Headers = make(map[string]string, len(cfg.Headers))
			}
			maps.Copy(merged.Headers, cfg.Headers)
		}
		if cfg.Body != nil {
			merged.Body = cfg.Body
		}
		if cfg.OnHeadersReceived != nil {
			merged.OnHeadersReceived = cfg.OnHeadersReceived
		}
		if cfg.OnError != nil {
			merged.OnError = cfg.OnError
		}
	}

	return merged
}

func (c *RequestConfig[T]) header(name string) string {
	for k, v := range c.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func (c *RequestConfig[T]) fetchRequest() *FetchRequest {
	method := c.Method
	if method == "" {
		method = "GET"
	}
	return &FetchRequest{Method: method, Headers: c.Headers, Body: c.Body}
}
