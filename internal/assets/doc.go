// Package assets reconciles remote asset trees with the shared local
// content-addressed cache.
//
// # Overview
//
// The package provides:
//  1. Parsing of the raw tree payload carried by a project detail response
//     (see ParseTree). Historical backends wrap the tree differently, so a
//     fixed-order set of named strategies is tried and the first one that
//     recognizes the shape and yields nodes wins.
//  2. A Service that merges the parsed nodes into the node table, records
//     per-project ownership, downloads missing payloads, and prunes nodes
//     no project references anymore (see Service.Resolve).
//  3. A Downloader that exchanges content-addressed remote ids for
//     short-lived download locations, caches those locations for their
//     validity window, and streams payloads to disk behind a rate limiter.
//
// # Deduplication
//
// File nodes are keyed by their content-addressed remote id across all
// projects: the first project referencing a payload downloads it, later
// projects only add themselves to the owner set. A payload is deleted
// from disk exactly when its last owner drops it.
//
// # Error Handling
//
// Download and resolution failures are per-node: each failed node is
// marked models.DownloadFailed and counted in the returned Summary while
// the rest of the pass continues. Resolve returns an error only when the
// pass itself cannot run (unparseable tree, storage failure).
//
// Concurrency & Contexts
//
// Ownership mutations run in per-node transactions, so overlapping syncs
// of different projects cannot lose an owner addition or removal. All
// operations accept context.Context and honor cancellation.
package assets
