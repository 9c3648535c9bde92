package api

import (
	"context"
)

// Client is the transport-agnostic contract for talking to the inspection
// backend. Implementations map transport failures to common.ErrUnavailable
// and auth failures to common.ErrUnauthorized so callers can branch with
// errors.Is.
type Client interface {
	// ListProjects returns the remote project listing with current
	// content hashes and counters.
	ListProjects(ctx context.Context) ([]ProjectSummary, error)

	// GetProjectDetail fetches the full payload for one project: the raw
	// asset tree and the defect list.
	GetProjectDetail(ctx context.Context, projectUID string) (*ProjectDetail, error)

	// ResolveDownloadURLs exchanges content-addressed remote ids for
	// short-lived download locations.
	ResolveDownloadURLs(ctx context.Context, remoteIDs []string) ([]ResolvedURL, error)

	// CreateUploadTask registers an upload batch and returns one storage
	// ticket per accepted package descriptor. Grants are matched to
	// packages by digest, never by position.
	CreateUploadTask(ctx context.Context, taskUID, targetProjectUID string, packages []PackageDescriptor) ([]UploadTicket, error)

	// PollTaskStatus reports whether the server finished ingesting the
	// task's packages.
	PollTaskStatus(ctx context.Context, taskUID string) (bool, error)

	// Close releases idle transport resources.
	Close() error
}
