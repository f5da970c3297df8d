// Package client provides an HTTP client for backends that wrap every
// response in a {c, m, d} envelope, and a CRUD accessor built on top of it.
//
// The client wraps [github.com/go-resty/resty/v2] as its default transport,
// unwraps envelopes into typed payloads and hands every failure to a
// pluggable recovery strategy.
//
// # Basic Usage
//
//	c, err := client.New(
//	    client.WithAuthToken("my-token"),
//	    client.WithRecovery(client.NoRecovery{}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	users := client.NewResource[User]("https://api.example.com/users", c)
//
//	page, err := users.Page(ctx, 1, 20, client.Keywords{"name": "ann"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Ad hoc calls use the generic [Get]:
//
//	stats, err := client.Get[Stats](ctx, c, "https://api.example.com/stats", nil)
//
// # Envelopes
//
// A response with code "0" resolves with its data. Any other code fails the
// call with an [*EnvelopeError] holding the envelope itself. HTTP statuses
// outside [200, 300) fail with [*StatusError] before the body is read;
// transport and decode failures keep their native error types.
//
// # Configuration
//
// Client configuration is supplied as [Option] functions passed to [New].
// Invalid values are silently ignored and the default is retained. Per-call
// behaviour is set with a [RequestConfig], which is merged over the client
// defaults with [MergeConfig]: fields set by the caller win.
//
// # Recovery
//
// Every failure is offered to the call's OnError hook. By default that hook
// asks the client's [RecoveryStrategy]: [PromptRecovery] asks "Retry?" on a
// terminal, [DialogRecovery] drives a non-blocking dialog and [NoRecovery]
// propagates the error. A retry re-issues the identical request, including
// its request ID, for as long as the user keeps confirming.
//
// Transport-level retries inside resty are disabled unless enabled with
// [WithRetryCount]; [DefaultRetryPolicy] then governs them.
//
// # Logging
//
// Implement [RequestLogger] and supply it via [WithRequestLogger] to
// integrate with your logging library, or wrap a zerolog logger with
// [NewZerologLogger]. The default [NoopLogger] discards all log output.
package client
