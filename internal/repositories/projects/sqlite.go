package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateOrUpdate upserts a project by uid. On conflict only the descriptive
// columns are updated; content_hash and synced_at keep their stored values.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, p *models.Project) error {
	query := ` INSERT INTO projects (project_uid, name, defect_count, event_count)
			values (?, ?, ?, ?)
			ON CONFLICT(project_uid) DO UPDATE SET name = excluded.name,
				defect_count = excluded.defect_count,
				event_count = excluded.event_count
	`
	_, err := r.db.ExecContext(ctx, query, p.ProjectUID, p.Name, p.DefectCount, p.EventCount)
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	return nil
}

// UpdateCounters writes the volatile counters for an already known project.
// It expects exactly one row to be affected.
func (r *SQLiteRepository) UpdateCounters(ctx context.Context, uid string, defectCount, eventCount int) error {
	query := `update projects set defect_count=?, event_count=? where project_uid=?`
	res, err := r.db.ExecContext(ctx, query, defectCount, eventCount, uid)
	if err != nil {
		return fmt.Errorf("failed to update project counters: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

// SetContentHash records the remote hash as fully synced and bumps the
// local revision timestamp.
func (r *SQLiteRepository) SetContentHash(ctx context.Context, uid, hash string, syncedAt int64) error {
	query := `update projects set content_hash=?, synced_at=? where project_uid=?`
	res, err := r.db.ExecContext(ctx, query, hash, syncedAt, uid)
	if err != nil {
		return fmt.Errorf("failed to set project content hash: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

// GetByUID returns a single project or common.ErrNotFound.
func (r *SQLiteRepository) GetByUID(ctx context.Context, uid string) (*models.Project, error) {
	query := `select project_uid, name, content_hash, defect_count, event_count, synced_at
			from projects where project_uid=?`
	row := r.db.QueryRowContext(ctx, query, uid)

	p := &models.Project{}
	err := row.Scan(&p.ProjectUID, &p.Name, &p.ContentHash, &p.DefectCount, &p.EventCount, &p.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return p, nil
}

// GetAll lists all projects ordered by name.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Project, error) {
	query := `select project_uid, name, content_hash, defect_count, event_count, synced_at
			from projects order by name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select projects: %w", err)
	}
	defer rows.Close()

	var result []models.Project
	for rows.Next() {
		var item models.Project
		if err := rows.Scan(&item.ProjectUID, &item.Name, &item.ContentHash,
			&item.DefectCount, &item.EventCount, &item.SyncedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteByUID removes a project row. It expects exactly one row to be affected.
func (r *SQLiteRepository) DeleteByUID(ctx context.Context, uid string) error {
	query := `delete from projects where project_uid=?`
	res, err := r.db.ExecContext(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}
