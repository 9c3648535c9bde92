// Package assets provides the local persistence layer for the
// content-addressed asset cache.
//
// # Overview
//
// The package defines a Repository interface over AssetNode models (see
// internal/models) plus the ownership set that reference-counts cached
// payloads across projects. A SQLite-backed implementation
// (SQLiteRepository) persists data using a dbx.DBTX (either *sql.DB or
// *sql.Tx).
//
// # Data Model
//
// asset_nodes holds one row per tree node, keyed by a stable local node id.
// File payloads carry a remote id that is unique across the whole table
// (partial unique index), so the same remote asset referenced from several
// projects maps to a single cached row. asset_owners is a flat
// (node_id, project_uid) set: a project syncing the asset adds a row, a
// project whose tree no longer references it removes one, and a node whose
// owner set drains empty is eligible for pruning together with its cached
// file.
//
// # Concurrency
//
// Read-modify-write sequences over the owner set (remove last owner, then
// delete the node) must run inside dbx.WithTx; single methods are safe on a
// properly configured *sql.DB.
package assets
