// Package projects provides the local persistence layer for project sync
// records.
//
// # Overview
//
// The package defines a Repository interface over Project models (see
// internal/models). A SQLite-backed implementation (SQLiteRepository)
// persists data using a dbx.DBTX (either *sql.DB or *sql.Tx).
//
// # Data Model
//
// Each row stores the remote project uid, its display name, the volatile
// remote counters, and the incremental-sync pivot: the last fully synced
// content hash plus its revision timestamp. The hash is written only by
// SetContentHash, after assets and images for the project landed, so an
// interrupted sync is retried on the next pass.
//
// Key Types
//
//   - type Repository        — interface used by the sync coordinator
//   - type SQLiteRepository  — SQLite implementation over dbx.DBTX
//
// Typical Usage
//
//	repo := projects.NewSQLiteRepository(db)
//	_ = repo.CreateOrUpdate(ctx, project)
//	p, _ := repo.GetByUID(ctx, uid)
//	_ = repo.SetContentHash(ctx, uid, remoteHash, time.Now().Unix())
package projects
