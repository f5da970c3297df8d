package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Fetcher issues exactly one HTTP request and reports the raw response. A
// non-2xx status is not an error at this level.
type Fetcher interface {
	Fetch(ctx context.Context, url string, req *FetchRequest) (*Response, error)
}

// FetcherFunc adapts a function to [Fetcher].
type FetcherFunc func(ctx context.Context, url string, req *FetchRequest) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string, req *FetchRequest) (*Response, error) {
	return f(ctx, url, req)
}

type FetchRequest struct {
	Method  string
	Headers map[string]string
	Body    []byte
}

type Response struct {
	StatusCode int
	// Status is the status line, e.g. "404 Not Found".
	Status string
	Header http.Header
	Body   []byte
}

// StatusText returns the reason phrase of the status line, falling back to
// the standard text for the code.
func (r *Response) StatusText() string {
	text := strings.TrimSpace(strings.TrimPrefix(r.Status, strconv.Itoa(r.StatusCode)))
	if text == "" {
		return http.StatusText(r.StatusCode)
	}
	return text
}

func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// Invoke sends one request to url and decodes the JSON body into T.
//
// cfg.OnHeadersReceived runs before the body is parsed; its error skips
// parsing. Any failure (transport, hook or decode) is handed to cfg.OnError
// when set, whose result becomes the result of Invoke. Without OnError the
// original error is returned. Invoke never retries.
func Invoke[T any](ctx context.Context, fetcher Fetcher, url string, cfg *RequestConfig[T]) (T, error) {
	if cfg == nil {
		cfg = &RequestConfig[T]{}
	}

	v, err := invoke(ctx, fetcher, url, cfg)
	if err != nil && cfg.OnError != nil {
		return cfg.OnError(ctx, err)
	}

	return v, err
}

func invoke[T any](ctx context.Context, fetcher Fetcher, url string, cfg *RequestConfig[T]) (T, error) {
	var v T

	resp, err := fetcher.Fetch(ctx, url, cfg.fetchRequest())
	if err != nil {
		return v, err
	}

	if cfg.OnHeadersReceived != nil {
		if err := cfg.OnHeadersReceived(ctx, resp); err != nil {
			return v, err
		}
	}

	if err := resp.JSON(&v); err != nil {
		return v, err
	}

	return v, nil
}

type restyFetcher struct {
	client *resty.Client
}

func newRestyFetcher(o *Options) *restyFetcher {
	c := resty.New().
		SetTimeout(o.timeout).
		SetRetryCount(o.retryCount).
		SetRetryWaitTime(o.retryWaitTime).
		SetRetryMaxWaitTime(o.retryMaxWaitTime).
		SetLogger(o.requestLogger).
		SetHeaders(o.requestHeaders)

	if o.retryCount > 0 {
		c.AddRetryCondition(o.retryPolicy)
	}

	if o.basicAuthUsername != "" {
		c.SetBasicAuth(o.basicAuthUsername, o.basicAuthPassword)
	} else if o.authToken != "" {
		c.SetAuthToken(o.authToken)
		if o.authScheme != "" {
			c.SetAuthScheme(o.authScheme)
		}
	}

	return &restyFetcher{client: c}
}

func (f *restyFetcher) Fetch(ctx context.Context, url string, req *FetchRequest) (*Response, error) {
	r := f.client.R().SetContext(ctx).SetHeaders(req.Headers)
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, url)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, url, err)
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}
