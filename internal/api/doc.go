// Package api contains the outbound interface to the inspection backend.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) covering the
//     engine's remote needs: project listing, project detail, download URL
//     resolution, upload task creation and task status polling.
//  2. A concrete JSON-over-HTTP implementation (see HTTPClient) that owns a
//     base URL, injects the bearer token on every call, pre-checks token
//     expiry locally, and maps transport and status failures to sentinel
//     errors.
//
// # Error Handling
//
// Common conditions are exposed through internal/common sentinels that
// callers match with errors.Is: ErrUnavailable (network error or 5xx),
// ErrUnauthorized (missing/expired token, 401, 403) and ErrNotFound (404).
// Everything else surfaces as a wrapped descriptive error.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation and timeouts.
package api
