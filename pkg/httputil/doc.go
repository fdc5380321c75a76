// Package httputil provides the transport-level plumbing shared by registry
// clients: retry with exponential backoff and a request rate limiter.
//
// The two primitives compose: a client asks the [Limiter] for permission
// before every outbound call, and wraps transient failures in
// [RetryableError] so that [Retry] attempts them again. Non-retryable
// failures (a 404, a malformed URL) pass through immediately.
package httputil
