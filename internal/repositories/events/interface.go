package events

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/models"
)

// Repository describes persistence operations for locally recorded
// inspection events.
type Repository interface {
	CreateOrUpdate(ctx context.Context, e *models.Event) error
	GetByUID(ctx context.Context, uid string) (*models.Event, error)

	// ListUnsynced returns the project's events still awaiting upload,
	// oldest first.
	ListUnsynced(ctx context.Context, projectUID string) ([]*models.Event, error)

	// MarkSynced flips the synced flag once remote ingestion is confirmed.
	MarkSynced(ctx context.Context, uid string) error

	// SetAudioName writes back a normalized audio file name.
	SetAudioName(ctx context.Context, uid, name string) error

	// CountByProject counts a project's locally recorded events.
	CountByProject(ctx context.Context, projectUID string) (int, error)
}
