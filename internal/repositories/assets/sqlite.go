package assets

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

const nodeColumns = `node_id, parent_id, name, kind, remote_id, size_bytes, download_status, local_path`

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*models.AssetNode, error) {
	n := &models.AssetNode{}
	err := s.Scan(&n.NodeID, &n.ParentID, &n.Name, &n.Kind, &n.RemoteID,
		&n.SizeBytes, &n.DownloadStatus, &n.LocalPath)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// CreateOrUpdate upserts a node by node_id. Download state and remote id
// never change through this path.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, n *models.AssetNode) error {
	status := n.DownloadStatus
	if status == "" {
		status = models.DownloadPending
	}
	query := ` INSERT INTO asset_nodes (node_id, parent_id, name, kind, remote_id, size_bytes, download_status, local_path)
			values (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(node_id) DO UPDATE SET parent_id = excluded.parent_id,
				name = excluded.name,
				size_bytes = excluded.size_bytes
	`
	_, err := r.db.ExecContext(ctx, query,
		n.NodeID, n.ParentID, n.Name, n.Kind, n.RemoteID, n.SizeBytes, status, n.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to upsert asset node: %w", err)
	}
	return nil
}

// GetByID returns a single node or common.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, nodeID string) (*models.AssetNode, error) {
	query := `select ` + nodeColumns + ` from asset_nodes where node_id=?`
	n, err := scanNode(r.db.QueryRowContext(ctx, query, nodeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return n, nil
}

// GetByRemoteID returns the node caching the given remote id or common.ErrNotFound.
func (r *SQLiteRepository) GetByRemoteID(ctx context.Context, remoteID string) (*models.AssetNode, error) {
	query := `select ` + nodeColumns + ` from asset_nodes where remote_id=?`
	n, err := scanNode(r.db.QueryRowContext(ctx, query, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return n, nil
}

// AddOwner inserts an ownership row, ignoring duplicates.
func (r *SQLiteRepository) AddOwner(ctx context.Context, nodeID, projectUID string) error {
	query := ` INSERT INTO asset_owners (node_id, project_uid)
			values (?, ?)
			ON CONFLICT(node_id, project_uid) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, nodeID, projectUID)
	if err != nil {
		return fmt.Errorf("failed to add asset owner: %w", err)
	}
	return nil
}

// RemoveOwner deletes an ownership row. Zero affected rows is not an error.
func (r *SQLiteRepository) RemoveOwner(ctx context.Context, nodeID, projectUID string) error {
	query := `delete from asset_owners where node_id=? and project_uid=?`
	_, err := r.db.ExecContext(ctx, query, nodeID, projectUID)
	if err != nil {
		return fmt.Errorf("failed to remove asset owner: %w", err)
	}
	return nil
}

// OwnersOf lists project uids holding a reference to the node.
func (r *SQLiteRepository) OwnersOf(ctx context.Context, nodeID string) ([]string, error) {
	query := `select project_uid from asset_owners where node_id=? order by project_uid`
	rows, err := r.db.QueryContext(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to select asset owners: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		result = append(result, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// NodesOwnedBy lists all nodes a project references.
func (r *SQLiteRepository) NodesOwnedBy(ctx context.Context, projectUID string) ([]*models.AssetNode, error) {
	query := `select n.node_id, n.parent_id, n.name, n.kind, n.remote_id, n.size_bytes, n.download_status, n.local_path
			from asset_nodes n
			join asset_owners o on o.node_id = n.node_id
			where o.project_uid=?
			order by n.name`
	return r.selectNodes(ctx, query, projectUID)
}

// ListOwnedByStatus lists a project's nodes in the given download state.
func (r *SQLiteRepository) ListOwnedByStatus(ctx context.Context, projectUID string, status models.DownloadStatus) ([]*models.AssetNode, error) {
	query := `select n.node_id, n.parent_id, n.name, n.kind, n.remote_id, n.size_bytes, n.download_status, n.local_path
			from asset_nodes n
			join asset_owners o on o.node_id = n.node_id
			where o.project_uid=? and n.download_status=?
			order by n.name`
	return r.selectNodes(ctx, query, projectUID, status)
}

func (r *SQLiteRepository) selectNodes(ctx context.Context, query string, args ...any) ([]*models.AssetNode, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select asset nodes: %w", err)
	}
	defer rows.Close()

	var result []*models.AssetNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetDownloadState writes the node's download status and cached path in one
// statement. It expects exactly one row to be affected.
func (r *SQLiteRepository) SetDownloadState(ctx context.Context, nodeID string, status models.DownloadStatus, localPath *string) error {
	query := `update asset_nodes set download_status=?, local_path=? where node_id=?`
	res, err := r.db.ExecContext(ctx, query, status, localPath, nodeID)
	if err != nil {
		return fmt.Errorf("failed to set download state: %w", err)
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

// DeleteByID removes the node and its remaining owner rows.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, nodeID string) error {
	if _, err := r.db.ExecContext(ctx, `delete from asset_owners where node_id=?`, nodeID); err != nil {
		return fmt.Errorf("failed to delete asset owners: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `delete from asset_nodes where node_id=?`, nodeID); err != nil {
		return fmt.Errorf("failed to delete asset node: %w", err)
	}
	return nil
}
