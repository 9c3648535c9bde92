package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, e *models.Event) error {
	query := ` INSERT INTO events (event_uid, project_uid, title, audio_name, synced, created_at)
			values (?, ?, ?, ?, ?, ?)
			ON CONFLICT(event_uid) DO UPDATE SET title = excluded.title,
				audio_name = excluded.audio_name,
				synced = excluded.synced
	`
	_, err := r.db.ExecContext(ctx, query,
		e.EventUID, e.ProjectUID, e.Title, e.AudioName, e.Synced, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByUID(ctx context.Context, uid string) (*models.Event, error) {
	query := `select event_uid, project_uid, title, audio_name, synced, created_at
			from events where event_uid=?`
	row := r.db.QueryRowContext(ctx, query, uid)

	e := &models.Event{}
	err := row.Scan(&e.EventUID, &e.ProjectUID, &e.Title, &e.AudioName, &e.Synced, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListUnsynced(ctx context.Context, projectUID string) ([]*models.Event, error) {
	query := `select event_uid, project_uid, title, audio_name, synced, created_at
			from events where project_uid=? and synced=0 order by created_at`
	rows, err := r.db.QueryContext(ctx, query, projectUID)
	if err != nil {
		return nil, fmt.Errorf("failed to select events: %w", err)
	}
	defer rows.Close()

	var result []*models.Event
	for rows.Next() {
		item := &models.Event{}
		if err := rows.Scan(&item.EventUID, &item.ProjectUID, &item.Title,
			&item.AudioName, &item.Synced, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, uid string) error {
	query := `update events set synced=1 where event_uid=?`
	res, err := r.db.ExecContext(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("failed to mark event synced: %w", err)
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

func (r *SQLiteRepository) SetAudioName(ctx context.Context, uid, name string) error {
	query := `update events set audio_name=? where event_uid=?`
	res, err := r.db.ExecContext(ctx, query, name, uid)
	if err != nil {
		return fmt.Errorf("failed to set event audio name: %w", err)
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

func (r *SQLiteRepository) CountByProject(ctx context.Context, projectUID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`select count(*) from events where project_uid=?`, projectUID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
