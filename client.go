package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// HeaderFileDigest carries the hex sha256 of an uploaded body so the backend
// can verify it.
const HeaderFileDigest = "X-File-Digest"

var errNilClient = errors.New("crudy client is nil")

// Client sends requests whose responses are wrapped in an [Envelope] and
// unwraps them. It holds no per-call state and is safe for concurrent use.
type Client struct {
	fetcher         Fetcher
	recovery        RecoveryStrategy
	logger          RequestLogger
	metrics         *Metrics
	requestIDHeader string
}

// New creates a client, or reports invalid options. Without [WithRecovery]
// failures are answered by asking "Retry?" on the terminal.
func New(opts ...Option) (*Client, error) {
	o := newClientOptions()
	for _, opt := range opts {
		opt(o)
	}

	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	return newClient(o), nil
}

func newClient(o *Options) *Client {
	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = newRestyFetcher(o)
	}

	recovery := o.recovery
	if recovery == nil {
		recovery = &PromptRecovery{Prompter: NewTerminalPrompter(os.Stdin, os.Stderr)}
	}

	return &Client{
		fetcher:         fetcher,
		recovery:        recovery,
		logger:          o.requestLogger,
		metrics:         o.metrics,
		requestIDHeader: o.requestIDHeader,
	}
}

// Get sends a request to url and returns the data of a successful envelope.
//
// The client defaults (GET, [CheckStatus], recovery through the client's
// [RecoveryStrategy]) are merged under cfg, so any field set in cfg wins.
// Every failure is offered to the merged OnError: its value recovers the
// call, its error fails it, and ErrRetry re-issues the identical request.
// A failed envelope is returned as *EnvelopeError.
func Get[T any](ctx context.Context, c *Client, url string, cfg *RequestConfig[T]) (T, error) {
	var zero T
	if c == nil {
		return zero, errNilClient
	}

	merged := MergeConfig(defaultConfig[T](c, url), cfg)
	stampRequestID(c, merged)

	for attempt := 1; ; attempt++ {
		c.logger.Debugf("%s %s (attempt %d)", merged.Method, url, attempt)

		v, err := fetchEnvelope(ctx, c, url, merged)
		if err == nil {
			return v, nil
		}

		c.logger.Warnf("%s %s failed: %v", merged.Method, url, err)

		if merged.OnError == nil {
			return zero, err
		}

		recovered, recoverErr := merged.OnError(ctx, err)
		if errors.Is(recoverErr, ErrRetry) {
			if ctx.Err() != nil {
				return zero, err
			}
			c.logger.Debugf("retrying %s %s", merged.Method, url)
			c.metrics.retried(merged.Method)
			continue
		}

		return recovered, recoverErr
	}
}

// Get is the untyped form of [Get]; it returns the envelope data undecoded
// and makes *Client a [Getter].
func (c *Client) Get(ctx context.Context, url string, cfg *RequestConfig[json.RawMessage]) (json.RawMessage, error) {
	return Get(ctx, c, url, cfg)
}

// Upload posts content as the raw request body and returns the identifier
// the backend stored it under.
func (c *Client) Upload(ctx context.Context, url string, content []byte) (string, error) {
	if c == nil {
		return "", errNilClient
	}

	sum := sha256.Sum256(content)

	return Get(ctx, c, url, &RequestConfig[string]{
		Method: http.MethodPost,
		Headers: map[string]string{
			"Content-Type":   "application/octet-stream",
			HeaderFileDigest: hex.EncodeToString(sum[:]),
		},
		Body: content,
	})
}

func defaultConfig[T any](c *Client, url string) *RequestConfig[T] {
	return &RequestConfig[T]{
		Method:            http.MethodGet,
		OnHeadersReceived: CheckStatus,
		OnError: func(ctx context.Context, err error) (T, error) {
			var zero T
			return zero, c.recovery.Recover(ctx, url, err)
		},
	}
}

// stampRequestID gives the call one request ID shared by all of its attempts.
func stampRequestID[T any](c *Client, cfg *RequestConfig[T]) {
	if c.requestIDHeader == "" || cfg.header(c.requestIDHeader) != "" {
		return
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string, 1)
	}
	cfg.Headers[c.requestIDHeader] = uuid.NewString()
}

func fetchEnvelope[T any](ctx context.Context, c *Client, url string, cfg *RequestConfig[T]) (T, error) {
	var v T
	start := time.Now()

	env, err := Invoke(ctx, c.fetcher, url, &RequestConfig[Envelope[json.RawMessage]]{
		Method:            cfg.Method,
		Headers:           cfg.Headers,
		Body:              cfg.Body,
		OnHeadersReceived: cfg.OnHeadersReceived,
	})
	if err == nil {
		err = env.Err()
	}
	if err == nil {
		err = decodeData(env.Data, &v)
	}

	c.metrics.observe(cfg.Method, err, time.Since(start))

	return v, err
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode envelope data: %w", err)
	}
	return nil
}
