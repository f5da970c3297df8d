package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// CodeOK is the envelope code the backend uses for success.
const CodeOK = "0"

// Envelope is the {c, m, d} shape every backend response is wrapped in.
type Envelope[T any] struct {
	Code    string `json:"c"`
	Message string `json:"m"`
	Data    T      `json:"d"`
}

func (e Envelope[T]) OK() bool {
	return e.Code == CodeOK
}

// EnvelopeError is a failed envelope returned as an error value. It carries
// the envelope unchanged so callers can inspect Code and Message with
// errors.As.
type EnvelopeError struct {
	Code    string          `json:"c"`
	Message string          `json:"m"`
	Data    json.RawMessage `json:"d,omitempty"`
}

func (e *EnvelopeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("envelope code %s", e.Code)
}

func (e Envelope[T]) envelopeMessage() string {
	return e.Message
}

// Err returns the envelope as an *EnvelopeError when its code is not CodeOK.
func (e Envelope[T]) Err() error {
	if e.OK() {
		return nil
	}

	envErr := &EnvelopeError{Code: e.Code, Message: e.Message}
	if raw, err := json.Marshal(e.Data); err == nil && string(raw) != "null" {
		envErr.Data = raw
	}

	return envErr
}

// StatusError reports an HTTP status outside [200, 300).
type StatusError struct {
	StatusCode int
	StatusText string
}

func (e *StatusError) Error() string {
	if e.StatusText == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.StatusText)
}

// CheckStatus is the default OnHeadersReceived hook of the envelope client.
func CheckStatus(_ context.Context, resp *Response) error {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode, StatusText: resp.StatusText()}
	}
	return nil
}
