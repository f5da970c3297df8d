package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/peteraglen/crudy-go-client/crudytest"
)

type widget struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestNew(t *testing.T) {
	t.Parallel()

	client, err := New(WithRetryCount(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client == nil {
		t.Fatal("expected client to be created")
	}

	if _, ok := client.recovery.(*PromptRecovery); !ok {
		t.Errorf("expected default recovery to be *PromptRecovery, got %T", client.recovery)
	}

	if _, ok := client.fetcher.(*restyFetcher); !ok {
		t.Errorf("expected default fetcher to be *restyFetcher, got %T", client.fetcher)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	client, err := New(WithBasicAuth("user", "pass"), WithAuthToken("token"))

	if err == nil {
		t.Fatal("expected error for invalid options")
	}

	if client != nil {
		t.Error("expected no client for invalid options")
	}

	if !strings.Contains(err.Error(), "invalid options") {
		t.Errorf("expected error to contain 'invalid options', got: %v", err)
	}
}

func TestGet_NilClient(t *testing.T) {
	t.Parallel()

	var client *Client

	_, err := Get[widget](context.Background(), client, "http://example.com", nil)

	if err == nil {
		t.Fatal("expected error for nil client")
	}

	if err.Error() != "crudy client is nil" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGet_Success(t *testing.T) {
	t.Parallel()

	server := envelopeServer(t, http.StatusOK, `{"c":"0","m":"","d":{"id":7,"name":"gear"}}`)
	client := newTestClient(t)

	got, err := Get[widget](context.Background(), client, server.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != (widget{ID: 7, Name: "gear"}) {
		t.Errorf("expected {7 gear}, got %+v", got)
	}
}

func TestGet_EnvelopeFailure(t *testing.T) {
	t.Parallel()

	server := envelopeServer(t, http.StatusOK, `{"c":"404","m":"record not found","d":"missing"}`)
	client := newTestClient(t)

	_, err := Get[[]widget](context.Background(), client, server.URL, nil)

	var envErr *EnvelopeError
	if !errors.As(err, &envErr) {
		t.Fatalf("expected *EnvelopeError, got %T: %v", err, err)
	}

	if envErr.Code != "404" {
		t.Errorf("expected code=404, got %s", envErr.Code)
	}

	if envErr.Message != "record not found" {
		t.Errorf("expected message='record not found', got %s", envErr.Message)
	}

	if string(envErr.Data) != `"missing"` {
		t.Errorf("expected data=\"missing\", got %s", envErr.Data)
	}
}

func TestGet_StatusFailure(t *testing.T) {
	t.Parallel()

	// The body is a valid success envelope; the status alone must fail the call.
	server := envelopeServer(t, http.StatusServiceUnavailable, `{"c":"0","m":"","d":{"id":1}}`)
	client := newTestClient(t)

	got, err := Get[widget](context.Background(), client, server.URL, nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}

	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status=503, got %d", statusErr.StatusCode)
	}

	if statusErr.StatusText != "Service Unavailable" {
		t.Errorf("expected status text 'Service Unavailable', got %q", statusErr.StatusText)
	}

	if got != (widget{}) {
		t.Errorf("expected zero value, got %+v", got)
	}
}

func TestGet_ParseFailure(t *testing.T) {
	t.Parallel()

	server := envelopeServer(t, http.StatusOK, `not json`)
	client := newTestClient(t)

	_, err := Get[widget](context.Background(), client, server.URL, nil)

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected *json.SyntaxError, got %T: %v", err, err)
	}
}

func TestGet_DataTypeMismatch(t *testing.T) {
	t.Parallel()

	server := envelopeServer(t, http.StatusOK, `{"c":"0","m":"","d":"not a widget"}`)
	client := newTestClient(t)

	_, err := Get[widget](context.Background(), client, server.URL, nil)

	if Outcome(err) != OutcomeParse {
		t.Errorf("expected parse failure, got %v", err)
	}
}

func TestGet_TransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	url := server.URL
	server.Close()

	client := newTestClient(t)

	_, err := Get[widget](context.Background(), client, url, nil)

	if err == nil {
		t.Fatal("expected error for request failure")
	}

	if !strings.Contains(err.Error(), "GET") {
		t.Errorf("expected error to mention GET, got: %v", err)
	}

	if Outcome(err) != OutcomeTransport {
		t.Errorf("expected transport outcome, got %s", Outcome(err))
	}
}

func TestGet_OnErrorRecovers(t *testing.T) {
	t.Parallel()

	server := envelopeServer(t, http.StatusOK, `{"c":"500","m":"boom","d":null}`)
	recovery := &countingRecovery{}
	client := newTestClient(t, WithRecovery(recovery))

	var seen error
	got, err := Get(context.Background(), client, server.URL, &RequestConfig[widget]{
		OnError: func(_ context.Context, err error) (widget, error) {
			seen = err
			return widget{Name: "fallback"}, nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Name != "fallback" {
		t.Errorf("expected fallback value, got %+v", got)
	}

	if Stringify(seen) != "boom" {
		t.Errorf("expected hook to see the envelope failure, got %v", seen)
	}

	if recovery.count() != 0 {
		t.Errorf("expected client recovery to be overridden, got %d calls", recovery.count())
	}
}

func TestGet_HeadersHookOverride(t *testing.T) {
	t.Parallel()

	server := envelopeServer(t, http.StatusInternalServerError, `{"c":"0","m":"","d":{"id":3}}`)
	client := newTestClient(t)

	got, err := Get(context.Background(), client, server.URL, &RequestConfig[widget]{
		OnHeadersReceived: func(_ context.Context, _ *Response) error { return nil },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ID != 3 {
		t.Errorf("expected id=3, got %d", got.ID)
	}
}

func TestGet_AcceptedRetry(t *testing.T) {
	t.Parallel()

	server := crudytest.NewServer()
	defer server.Close()
	server.Seed("widgets", crudytest.Item{"id": 1, "name": "gear"})
	server.FailNext(http.StatusBadGateway)

	prompter := &scriptedPrompter{answers: []bool{true}}
	client := newTestClient(t, WithRecovery(&PromptRecovery{Prompter: prompter}))

	got, err := Get[widget](context.Background(), client, server.ResourceURL("widgets")+"?id=1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Name != "gear" {
		t.Errorf("expected the second attempt's data, got %+v", got)
	}

	requests := server.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}

	first, second := requests[0], requests[1]
	if first.Method != second.Method || first.Path != second.Path || first.RawQuery != second.RawQuery {
		t.Errorf("expected identical requests, got %+v and %+v", first, second)
	}

	firstID := first.Header.Get(DefaultRequestIDHeader)
	if firstID == "" || firstID != second.Header.Get(DefaultRequestIDHeader) {
		t.Errorf("expected both attempts to share a request ID, got %q and %q",
			firstID, second.Header.Get(DefaultRequestIDHeader))
	}

	asked := prompter.asked()
	if len(asked) != 1 || asked[0] != "502 Bad Gateway | Retry?" {
		t.Errorf("unexpected prompts: %v", asked)
	}
}

func TestGet_AcceptedDialogRetry(t *testing.T) {
	t.Parallel()

	server := crudytest.NewServer()
	defer server.Close()
	server.Seed("widgets", crudytest.Item{"id": 1, "name": "gear"})
	server.FailNextEnvelope("500", "database offline")

	dialog := &fakeDialog{ok: true, delay: 5 * time.Millisecond, shown: make(chan DialogOptions, 1)}
	client := newTestClient(t, WithRecovery(&DialogRecovery{Dialog: dialog}))

	url := server.ResourceURL("widgets") + "?id=1"
	got, err := Get[widget](context.Background(), client, url, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Name != "gear" {
		t.Errorf("expected the second attempt's data, got %+v", got)
	}

	if n := len(server.Requests()); n != 2 {
		t.Errorf("expected 2 requests, got %d", n)
	}

	opts := <-dialog.shown
	if opts.Content != url+": database offline" {
		t.Errorf("unexpected dialog content: %q", opts.Content)
	}
}

func TestGet_DeclinedRetry(t *testing.T) {
	t.Parallel()

	server := crudytest.NewServer()
	defer server.Close()
	server.FailNext(http.StatusInternalServerError)

	prompter := &scriptedPrompter{answers: []bool{false}}
	client := newTestClient(t, WithRecovery(&PromptRecovery{Prompter: prompter}))

	_, err := Get[widget](context.Background(), client, server.ResourceURL("widgets")+"?id=1", nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected the original *StatusError, got %T: %v", err, err)
	}

	if len(server.Requests()) != 1 {
		t.Errorf("expected 1 request, got %d", len(server.Requests()))
	}
}

func TestGet_RetriesUntilDeclined(t *testing.T) {
	t.Parallel()

	server := crudytest.NewServer()
	defer server.Close()
	for i := 0; i < 4; i++ {
		server.FailNextEnvelope("500", "database offline")
	}

	prompter := &scriptedPrompter{answers: []bool{true, true, true, false}}
	client := newTestClient(t, WithRecovery(&PromptRecovery{Prompter: prompter}))

	_, err := Get[[]widget](context.Background(), client, server.ResourceURL("widgets")+"/all", nil)

	var envErr *EnvelopeError
	if !errors.As(err, &envErr) || envErr.Message != "database offline" {
		t.Fatalf("expected the envelope failure, got %v", err)
	}

	if len(server.Requests()) != 4 {
		t.Errorf("expected 4 requests, got %d", len(server.Requests()))
	}

	if len(prompter.asked()) != 4 {
		t.Errorf("expected 4 prompts, got %d", len(prompter.asked()))
	}
}

func TestGet_RetryStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	server := envelopeServer(t, http.StatusOK, `{"c":"500","m":"boom"}`)
	client := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := Get(ctx, client, server.URL, &RequestConfig[widget]{
		OnError: func(_ context.Context, _ error) (widget, error) {
			cancel()
			return widget{}, ErrRetry
		},
	})

	if err == nil || Stringify(err) != "boom" {
		t.Errorf("expected the original failure after cancellation, got %v", err)
	}
}

func TestGet_SendsRequestConfig(t *testing.T) {
	t.Parallel()

	var method, contentType, custom, auth, body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		custom = r.Header.Get("X-Custom")
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		_, _ = w.Write([]byte(`{"c":"0","m":"","d":true}`))
	}))
	defer server.Close()

	client := newTestClient(t,
		WithRequestHeader("X-Custom", "custom-value"),
		WithAuthScheme("Bearer"),
		WithAuthToken("my-token"),
	)

	ok, err := Get(context.Background(), client, server.URL, &RequestConfig[bool]{
		Method: "patch",
		Body:   []byte(`{"name":"gear"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ok {
		t.Error("expected true")
	}

	if method != http.MethodPatch {
		t.Errorf("expected method=PATCH, got %s", method)
	}

	if contentType != "application/json" {
		t.Errorf("expected Content-Type=application/json, got %s", contentType)
	}

	if custom != "custom-value" {
		t.Errorf("expected X-Custom=custom-value, got %s", custom)
	}

	if auth != "Bearer my-token" {
		t.Errorf("expected 'Bearer my-token', got %s", auth)
	}

	if body != `{"name":"gear"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestGet_WithoutRequestID(t *testing.T) {
	t.Parallel()

	var requestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get(DefaultRequestIDHeader)
		_, _ = w.Write([]byte(`{"c":"0","m":"","d":1}`))
	}))
	defer server.Close()

	client := newTestClient(t, WithoutRequestID())

	if _, err := Get[int](context.Background(), client, server.URL, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if requestID != "" {
		t.Errorf("expected no request ID, got %s", requestID)
	}
}

func TestGet_CallerRequestIDKept(t *testing.T) {
	t.Parallel()

	var requestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get(DefaultRequestIDHeader)
		_, _ = w.Write([]byte(`{"c":"0","m":"","d":1}`))
	}))
	defer server.Close()

	client := newTestClient(t)

	_, err := Get(context.Background(), client, server.URL, &RequestConfig[int]{
		Headers: map[string]string{"x-request-id": "abc-123"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if requestID != "abc-123" {
		t.Errorf("expected caller request ID, got %s", requestID)
	}
}

func TestClient_ConcurrentCalls(t *testing.T) {
	t.Parallel()

	server := crudytest.NewServer()
	defer server.Close()
	server.Seed("widgets", crudytest.Item{"id": 1, "name": "gear"})

	client := newTestClient(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Get[widget](context.Background(), client, server.ResourceURL("widgets")+"?id=1", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
}

func TestUpload(t *testing.T) {
	t.Parallel()

	server := crudytest.NewServer()
	defer server.Close()

	client := newTestClient(t)
	content := []byte("hello, world")

	id, err := client.Upload(context.Background(), server.URL+"/files/greeting.txt", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	if !strings.HasSuffix(id, digest+".txt") {
		t.Errorf("expected id to end with the digest, got %s", id)
	}

	stored, ok := server.File(id)
	if !ok || string(stored) != string(content) {
		t.Errorf("expected stored content %q, got %q", content, stored)
	}

	requests := server.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}

	if requests[0].Method != http.MethodPost {
		t.Errorf("expected POST, got %s", requests[0].Method)
	}

	if requests[0].Header.Get(HeaderFileDigest) != digest {
		t.Errorf("expected digest header %s, got %s", digest, requests[0].Header.Get(HeaderFileDigest))
	}

	if requests[0].Header.Get("Content-Type") != "application/octet-stream" {
		t.Errorf("expected octet-stream content type, got %s", requests[0].Header.Get("Content-Type"))
	}
}

func TestUpload_NilClient(t *testing.T) {
	t.Parallel()

	var client *Client

	if _, err := client.Upload(context.Background(), "http://example.com", nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
