package assets

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/models"
)

// Repository describes persistence operations for asset cache nodes and
// their project ownership set. Implementations are typically backed by a
// local SQLite database.
type Repository interface {
	// CreateOrUpdate upserts a node by NodeID. On conflict only the
	// descriptive columns (parent, name, size) are refreshed; kind,
	// remote id and the download state keep their stored values so a
	// merge never resets an already cached payload.
	CreateOrUpdate(ctx context.Context, n *models.AssetNode) error

	// GetByID returns a node by its local identifier, or common.ErrNotFound.
	GetByID(ctx context.Context, nodeID string) (*models.AssetNode, error)

	// GetByRemoteID returns the node holding the given content-addressed
	// remote id, or common.ErrNotFound. Remote ids are unique across the
	// whole cache, which is what makes cross-project dedup work.
	GetByRemoteID(ctx context.Context, remoteID string) (*models.AssetNode, error)

	// AddOwner records that a project references the node. Idempotent.
	AddOwner(ctx context.Context, nodeID, projectUID string) error

	// RemoveOwner drops a project's reference to the node. Removing an
	// absent reference is a no-op.
	RemoveOwner(ctx context.Context, nodeID, projectUID string) error

	// OwnersOf lists the project uids still referencing the node.
	OwnersOf(ctx context.Context, nodeID string) ([]string, error)

	// NodesOwnedBy lists all nodes referenced by a project.
	NodesOwnedBy(ctx context.Context, projectUID string) ([]*models.AssetNode, error)

	// ListOwnedByStatus lists a project's nodes in one download state.
	ListOwnedByStatus(ctx context.Context, projectUID string, status models.DownloadStatus) ([]*models.AssetNode, error)

	// SetDownloadState moves a node through the download state machine.
	// localPath must be non-nil exactly when status is DownloadCompleted.
	SetDownloadState(ctx context.Context, nodeID string, status models.DownloadStatus, localPath *string) error

	// DeleteByID removes a node and whatever is left of its owner set.
	// Callers needing the delete to be atomic with an ownership check run
	// it inside dbx.WithTx.
	DeleteByID(ctx context.Context, nodeID string) error
}
