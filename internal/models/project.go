// Package models defines the client-side data models persisted by the
// fieldsync engine and the remote payload shapes shared between services.
package models

// Project is the local sync record for one remote project. The content
// hash is the incremental-sync pivot: it is only advanced after a detail
// sync completes, so a failed pass is retried on the next run.
type Project struct {
	// ProjectUID is the remote identifier, used as the natural key.
	ProjectUID string

	// Name is the human-readable project title.
	Name string

	// ContentHash is the last fully synced remote content hash.
	ContentHash string

	// DefectCount is the remote defect counter (volatile, refreshed on
	// every list pass even when the hash is unchanged).
	DefectCount int

	// EventCount is the remote event counter (volatile, see DefectCount).
	EventCount int

	// SyncedAt is the local revision timestamp in unix seconds, bumped
	// on every successful detail sync.
	SyncedAt int64
}
