package projects

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/models"
)

// Repository describes persistence operations for project sync records.
// Implementations are typically backed by a local SQLite database.
type Repository interface {
	// CreateOrUpdate inserts a project record or refreshes the descriptive
	// fields of an existing one by ProjectUID. The content hash and the
	// revision timestamp are deliberately not written here: they only move
	// via SetContentHash once a detail sync has fully succeeded.
	CreateOrUpdate(ctx context.Context, p *models.Project) error

	// UpdateCounters refreshes only the volatile counters of a project
	// whose content is otherwise unchanged.
	UpdateCounters(ctx context.Context, uid string, defectCount, eventCount int) error

	// SetContentHash advances the local content hash and revision
	// timestamp after a successful detail sync.
	SetContentHash(ctx context.Context, uid, hash string, syncedAt int64) error

	// GetByUID returns a project by its remote identifier, or
	// common.ErrNotFound when the project is not known locally.
	GetByUID(ctx context.Context, uid string) (*models.Project, error)

	// GetAll lists all locally known projects.
	GetAll(ctx context.Context) ([]models.Project, error)

	// DeleteByUID removes a project record.
	DeleteByUID(ctx context.Context, uid string) error
}
