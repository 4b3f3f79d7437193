// Package shared holds the request and response plumbing used by both the
// api handlers and the middleware: context keys, JSON decoding and
// validation, and the error envelope.
package shared
