package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// DefaultPageSize is used by [Resource.Page] when size is not positive and
// no [WithDefaultPageSize] is given.
const DefaultPageSize = 10

var (
	ErrBaseURLRequired = errors.New("base URL must be set")
	errNilResource     = errors.New("resource is nil")
)

// Getter performs one envelope call and returns its data undecoded. *Client
// implements it; substitute one to route a resource through another
// transport.
type Getter interface {
	Get(ctx context.Context, url string, cfg *RequestConfig[json.RawMessage]) (json.RawMessage, error)
}

// GetterFunc adapts a function to [Getter].
type GetterFunc func(ctx context.Context, url string, cfg *RequestConfig[json.RawMessage]) (json.RawMessage, error)

func (f GetterFunc) Get(ctx context.Context, url string, cfg *RequestConfig[json.RawMessage]) (json.RawMessage, error) {
	return f(ctx, url, cfg)
}

// Keywords are the search filters sent as the query string.
type Keywords map[string]string

// Query encodes keywords as "?k=v&k=v" with keys sorted. No keywords yield
// an empty string.
func Query(keywords Keywords) string {
	if len(keywords) == 0 {
		return ""
	}

	values := make(url.Values, len(keywords))
	for k, v := range keywords {
		values.Set(k, v)
	}

	return "?" + values.Encode()
}

// Resource exposes the CRUD operations of the collection at a base URL:
//
//	All    GET    {base}/all?{keywords}
//	Page   GET    {base}/{n}/{size}?{keywords}
//	One    GET    {base}?id={id}
//	Count  GET    {base}/count?{keywords}
//	Save   PUT    {base}
//	Delete DELETE {base}?id={id}
type Resource[T any] struct {
	baseURL         string
	getter          Getter
	defaultPageSize int
}

type ResourceOption func(*resourceOptions)

type resourceOptions struct {
	defaultPageSize int
}

// WithDefaultPageSize sets the page size used when [Resource.Page] is given a
// non-positive size. Sizes below 1 are ignored.
func WithDefaultPageSize(size int) ResourceOption {
	return func(o *resourceOptions) {
		if size >= 1 {
			o.defaultPageSize = size
		}
	}
}

// NewResource binds a resource to baseURL. A nil getter falls back to a
// client with default options.
func NewResource[T any](baseURL string, getter Getter, opts ...ResourceOption) *Resource[T] {
	o := &resourceOptions{defaultPageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(o)
	}

	if getter == nil {
		getter = newClient(newClientOptions())
	}
	return &Resource[T]{baseURL: baseURL, getter: getter, defaultPageSize: o.defaultPageSize}
}

func (r *Resource[T]) BaseURL() string {
	return r.baseURL
}

func (r *Resource[T]) All(ctx context.Context, keywords Keywords) ([]T, error) {
	return call[[]T](ctx, r, "/all"+Query(keywords), nil)
}

// Page returns page n (1-based) of the given size. n below 1 reads the first
// page and a non-positive size uses the resource's default page size.
func (r *Resource[T]) Page(ctx context.Context, n, size int, keywords Keywords) ([]T, error) {
	if n < 1 {
		n = 1
	}
	if r != nil && size < 1 {
		size = r.defaultPageSize
	}
	return call[[]T](ctx, r, fmt.Sprintf("/%d/%d%s", n, size, Query(keywords)), nil)
}

func (r *Resource[T]) One(ctx context.Context, id any) (T, error) {
	return call[T](ctx, r, idQuery(id), nil)
}

func (r *Resource[T]) Count(ctx context.Context, keywords Keywords) (int64, error) {
	return call[int64](ctx, r, "/count"+Query(keywords), nil)
}

// Save sends the partial resource as JSON and returns the stored resource.
func (r *Resource[T]) Save(ctx context.Context, partial any) (T, error) {
	var zero T

	body, err := json.Marshal(partial)
	if err != nil {
		return zero, fmt.Errorf("encode resource: %w", err)
	}

	return call[T](ctx, r, "", &RequestConfig[json.RawMessage]{
		Method: http.MethodPut,
		Body:   body,
	})
}

func (r *Resource[T]) Delete(ctx context.Context, id any) (bool, error) {
	return call[bool](ctx, r, idQuery(id), &RequestConfig[json.RawMessage]{
		Method: http.MethodDelete,
	})
}

func idQuery(id any) string {
	return "?id=" + url.QueryEscape(fmt.Sprint(id))
}

func call[V any, T any](ctx context.Context, r *Resource[T], suffix string, cfg *RequestConfig[json.RawMessage]) (V, error) {
	var v V

	if r == nil {
		return v, errNilResource
	}
	if r.baseURL == "" {
		return v, ErrBaseURLRequired
	}

	data, err := r.getter.Get(ctx, r.baseURL+suffix, cfg)
	if err != nil {
		return v, err
	}

	if err := decodeData(data, &v); err != nil {
		return v, err
	}

	return v, nil
}
