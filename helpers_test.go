package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// scriptedPrompter answers questions from a fixed script and declines once
// the script runs out.
type scriptedPrompter struct {
	mu        sync.Mutex
	answers   []bool
	questions []string
}

func (p *scriptedPrompter) Confirm(_ context.Context, question string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.questions = append(p.questions, question)
	if len(p.answers) == 0 {
		return false, nil
	}

	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func (p *scriptedPrompter) asked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.questions...)
}

// countingRecovery records how often it was consulted and propagates.
type countingRecovery struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRecovery) Recover(_ context.Context, _ string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return err
}

func (r *countingRecovery) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()

	c, err := New(append([]Option{WithRecovery(NoRecovery{})}, opts...)...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func envelopeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}
