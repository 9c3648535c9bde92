// Package upload moves locally recorded events to remote storage through
// the ticket-based direct upload protocol.
//
// # Overview
//
// The pipeline has three stages, each behind its own small interface:
//  1. A Packager that archives one event directory into the scratch area
//     and computes the SHA-256 digest correlating the archive with its
//     ticket. Legacy audio names carrying the historical unresolved
//     extension placeholder are normalized before archiving.
//  2. An Uploader that matches packages to the tickets returned by task
//     creation (strictly by digest value, never by response position) and
//     performs the direct multipart form POST to each ticket's host.
//  3. An Orchestrator driving the batch state machine
//     CREATED → PACKAGING → TICKETING → UPLOADING → POLLING and folding
//     the per-event outcomes into one (success, message) verdict.
//
// # Error Handling
//
// Per-event failures never abort siblings: an event that fails to package
// or upload is reported in its ItemResult while the rest of the batch
// continues. Poll round-trip failures count as "not confirmed yet". The
// poll budget running out terminates the batch as TIMED_OUT, reported
// distinctly from failure, and leaves even the uploaded events unsynced so
// the next pass retries them. An outer bounded retry re-runs a failed or
// timed-out batch with a fresh task uid, resetting progress between
// attempts; the first success short-circuits it.
//
// # Concurrency
//
// Batches run sequentially on the caller's goroutine. Live state is
// published through the shared progress.Tracker. All operations accept
// context.Context and honor cancellation.
package upload
