// Package pypi implements a resilient client for Python package indexes.
//
// The client speaks three protocols, attempted in order until one yields
// data: the JSON metadata API (canonical index host only), the PEP 691 JSON
// simple index, and the HTML simple index parsed for anchor links. Whatever
// the source format, responses are normalized into one canonical
// [Package]/[Release]/[File] record shape, so consumers never see
// format-specific structures.
//
// Every outbound request passes through a shared rate limiter (sliding
// one-minute budget plus minimum spacing) and a retry loop with exponential
// backoff. A 404 is reported as [ErrNotFound] immediately; absence is an
// expected outcome, not a failure. Exhausting the retry budget yields
// [ErrUnavailable], which callers treat as a soft miss.
package pypi
