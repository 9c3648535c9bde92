package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/models"
	"github.com/dmitrijs2005/fieldsync/internal/progress"
	assetrepo "github.com/dmitrijs2005/fieldsync/internal/repositories/assets"
)

// Fetcher downloads content-addressed payloads into the local cache.
// *Downloader is the production implementation.
type Fetcher interface {
	// ResolveURLs warms download locations for a batch of remote ids.
	ResolveURLs(ctx context.Context, remoteIDs []string) error
	// Fetch downloads one payload and returns its local path.
	Fetch(ctx context.Context, remoteID string) (string, error)
	// Close releases resolver resources.
	Close()
}

// Summary reports one resolve or retry pass over a project's assets.
// Total covers the file nodes the pass considered; folder placeholders
// are structural and never counted. Pruned counts nodes deleted together
// with their cached files because no project references them anymore.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Pruned    int
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d/%d assets cached (%d failed, %d pruned)",
		s.Succeeded, s.Total, s.Failed, s.Pruned)
}

// Service reconciles a project's remote asset tree with the shared local
// cache: merge nodes, download missing payloads, prune orphans.
type Service interface {
	// Resolve processes one project's raw tree payload end to end.
	// Node-level download failures are reported in the summary, not as an
	// error; an error means the pass itself could not run.
	Resolve(ctx context.Context, projectUID string, rawTree []byte) (*Summary, error)

	// RetryFailed re-drives the download for every failed node the
	// project owns.
	RetryFailed(ctx context.Context, projectUID string) (*Summary, error)
}

type service struct {
	db      *sql.DB
	fetcher Fetcher
	fs      afero.Fs
	tracker *progress.Tracker
	logger  logging.Logger
}

// NewService wires a Service over the local database and a Fetcher.
func NewService(db *sql.DB, fetcher Fetcher, fs afero.Fs, tracker *progress.Tracker, logger logging.Logger) Service {
	if tracker == nil {
		tracker = progress.NewTracker()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &service{db: db, fetcher: fetcher, fs: fs, tracker: tracker, logger: logger}
}

func (s *service) Resolve(ctx context.Context, projectUID string, rawTree []byte) (*Summary, error) {
	parsed, err := ParseTree(rawTree)
	if err != nil {
		return nil, fmt.Errorf("parsing asset tree: %w", err)
	}

	repo := assetrepo.NewSQLiteRepository(s.db)

	// Snapshot ownership before the merge records the new tree: pruning
	// diffs the previous owner set against the current one, and merging
	// first would make every previously owned node look current.
	prev, err := repo.NodesOwnedBy(ctx, projectUID)
	if err != nil {
		return nil, fmt.Errorf("loading owned nodes: %w", err)
	}
	prevFiles := make(map[string]string, len(prev)) // remote id -> node id
	for _, n := range prev {
		if n.IsFile() {
			prevFiles[*n.RemoteID] = n.NodeID
		}
	}

	current := make(map[string]struct{}, len(parsed))
	seen := make(map[string]struct{}, len(parsed))
	fileIDs := make([]string, 0, len(parsed))
	for _, tn := range parsed {
		nodeID, err := s.mergeNode(ctx, projectUID, tn)
		if err != nil {
			return nil, fmt.Errorf("merging %q: %w", tn.Path, err)
		}
		if !tn.IsFile() {
			continue
		}
		current[*tn.RemoteID] = struct{}{}
		// the same payload may appear in several folders of one tree
		if _, dup := seen[nodeID]; !dup {
			seen[nodeID] = struct{}{}
			fileIDs = append(fileIDs, nodeID)
		}
	}

	sum := &Summary{}
	if err := s.downloadPass(ctx, fileIDs, sum); err != nil {
		return nil, err
	}

	for remoteID, nodeID := range prevFiles {
		if _, ok := current[remoteID]; ok {
			continue
		}
		pruned, err := s.pruneNode(ctx, projectUID, nodeID, remoteID)
		if err != nil {
			s.logger.Warn(ctx, "prune failed", "node_id", nodeID, "error", err)
			continue
		}
		if pruned {
			sum.Pruned++
		}
	}

	s.logger.Info(ctx, "asset tree resolved", "project_uid", projectUID,
		"total", sum.Total, "succeeded", sum.Succeeded, "failed", sum.Failed, "pruned", sum.Pruned)
	return sum, nil
}

func (s *service) RetryFailed(ctx context.Context, projectUID string) (*Summary, error) {
	repo := assetrepo.NewSQLiteRepository(s.db)

	failed, err := repo.ListOwnedByStatus(ctx, projectUID, models.DownloadFailed)
	if err != nil {
		return nil, fmt.Errorf("listing failed nodes: %w", err)
	}

	sum := &Summary{Total: len(failed)}
	s.fetchAll(ctx, failed, sum)
	return sum, nil
}

// mergeNode upserts one tree node and records the project's ownership,
// atomically per node. It returns the id of the merged node, which for
// file content already cached under another project differs from the
// parsed one.
func (s *service) mergeNode(ctx context.Context, projectUID string, tn TreeNode) (string, error) {
	nodeID := tn.NodeID

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := assetrepo.NewSQLiteRepository(tx)

		if !tn.IsFile() {
			if err := repo.CreateOrUpdate(ctx, &models.AssetNode{
				NodeID:   nodeID,
				ParentID: tn.ParentID,
				Name:     tn.Name,
				Kind:     models.NodeKindFolder,
			}); err != nil {
				return err
			}
			return repo.AddOwner(ctx, nodeID, projectUID)
		}

		existing, err := repo.GetByRemoteID(ctx, *tn.RemoteID)
		switch {
		case err == nil:
			// Shared content, possibly seeded by a different project:
			// refresh the descriptive fields and leave the cached payload
			// alone. A foreign node keeps its stored parent, the owning
			// tree decides where it lives.
			nodeID = existing.NodeID
			parent := existing.ParentID
			if existing.NodeID == tn.NodeID {
				parent = tn.ParentID
			}
			if err := repo.CreateOrUpdate(ctx, &models.AssetNode{
				NodeID:    nodeID,
				ParentID:  parent,
				Name:      tn.Name,
				Kind:      models.NodeKindFile,
				RemoteID:  tn.RemoteID,
				SizeBytes: tn.Size,
			}); err != nil {
				return err
			}
		case errors.Is(err, common.ErrNotFound):
			if err := s.dropStaleNode(ctx, repo, tn); err != nil {
				return err
			}
			if err := repo.CreateOrUpdate(ctx, &models.AssetNode{
				NodeID:         nodeID,
				ParentID:       tn.ParentID,
				Name:           tn.Name,
				Kind:           models.NodeKindFile,
				RemoteID:       tn.RemoteID,
				SizeBytes:      tn.Size,
				DownloadStatus: models.DownloadPending,
			}); err != nil {
				return err
			}
		default:
			return err
		}

		return repo.AddOwner(ctx, nodeID, projectUID)
	})
	if err != nil {
		return "", err
	}
	return nodeID, nil
}

// dropStaleNode clears a row that kept its explicit node id while the
// remote content behind it moved to a new remote id. The upsert never
// rewrites remote_id, so without this the stale row would shadow the new
// content forever. The cached file stays on disk: payload names are
// content addressed and any project still referencing the old remote id
// re-adopts the bytes on its next sync.
func (s *service) dropStaleNode(ctx context.Context, repo assetrepo.Repository, tn TreeNode) error {
	existing, err := repo.GetByID(ctx, tn.NodeID)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Warn(ctx, "node id reused for new content, dropping stale row",
		"node_id", tn.NodeID, "remote_id", *tn.RemoteID)
	return repo.DeleteByID(ctx, existing.NodeID)
}

// downloadPass classifies the merged file nodes and downloads everything
// not already cached with an existing file. A completed node whose file
// vanished from disk regresses to failed and is fetched again.
func (s *service) downloadPass(ctx context.Context, nodeIDs []string, sum *Summary) error {
	repo := assetrepo.NewSQLiteRepository(s.db)

	var toFetch []*models.AssetNode
	for _, id := range nodeIDs {
		n, err := repo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("loading node %s: %w", id, err)
		}
		sum.Total++

		if n.DownloadStatus == models.DownloadCompleted {
			if n.LocalPath != nil && filex.Exists(s.fs, *n.LocalPath) {
				sum.Succeeded++
				continue
			}
			s.logger.Warn(ctx, "cached file missing, scheduling re-download", "node_id", n.NodeID)
			if err := repo.SetDownloadState(ctx, n.NodeID, models.DownloadFailed, nil); err != nil {
				return err
			}
		}
		toFetch = append(toFetch, n)
	}

	s.fetchAll(ctx, toFetch, sum)
	return nil
}

// fetchAll drives the download state machine for each node. Failures are
// isolated per node and tallied, never aborting the remaining ones.
func (s *service) fetchAll(ctx context.Context, nodes []*models.AssetNode, sum *Summary) {
	if len(nodes) == 0 {
		return
	}

	repo := assetrepo.NewSQLiteRepository(s.db)
	s.tracker.AddTotal(len(nodes))

	remoteIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		remoteIDs = append(remoteIDs, *n.RemoteID)
	}
	if err := s.fetcher.ResolveURLs(ctx, remoteIDs); err != nil {
		// no download locations at all: the whole batch fails as one
		s.logger.Error(ctx, "url resolution failed", "error", err)
		for _, n := range nodes {
			s.markFailed(ctx, repo, n.NodeID)
			sum.Failed++
			s.tracker.Step()
		}
		return
	}

	for _, n := range nodes {
		s.tracker.SetLabel(n.Name)
		if err := s.fetchNode(ctx, repo, n); err != nil {
			s.logger.Warn(ctx, "asset download failed",
				"node_id", n.NodeID, "name", n.Name, "reason", err.Error())
			s.markFailed(ctx, repo, n.NodeID)
			sum.Failed++
		} else {
			sum.Succeeded++
		}
		s.tracker.Step()
	}
}

func (s *service) fetchNode(ctx context.Context, repo assetrepo.Repository, n *models.AssetNode) error {
	if err := repo.SetDownloadState(ctx, n.NodeID, models.DownloadInProgress, nil); err != nil {
		return err
	}
	path, err := s.fetcher.Fetch(ctx, *n.RemoteID)
	if err != nil {
		return err
	}
	return repo.SetDownloadState(ctx, n.NodeID, models.DownloadCompleted, &path)
}

func (s *service) markFailed(ctx context.Context, repo assetrepo.Repository, nodeID string) {
	if err := repo.SetDownloadState(ctx, nodeID, models.DownloadFailed, nil); err != nil {
		s.logger.Error(ctx, "failed to mark node failed", "node_id", nodeID, "error", err)
	}
}

// pruneNode drops the project's ownership of a node whose remote id left
// the tree and deletes the node once no project references it. The owner
// check and the delete run in one transaction; the cached file is removed
// only after the row delete committed.
//
// remoteID is the vanished id from the pre-merge snapshot: the merge may
// have recycled the node id for new content, and that fresh node must not
// be touched here.
func (s *service) pruneNode(ctx context.Context, projectUID, nodeID, remoteID string) (bool, error) {
	var localPath *string
	pruned := false

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := assetrepo.NewSQLiteRepository(tx)

		node, err := repo.GetByID(ctx, nodeID)
		if errors.Is(err, common.ErrNotFound) {
			// already dropped as a stale row during the merge
			return nil
		}
		if err != nil {
			return err
		}
		if node.RemoteID == nil || *node.RemoteID != remoteID {
			return nil
		}

		if err := repo.RemoveOwner(ctx, nodeID, projectUID); err != nil {
			return err
		}
		owners, err := repo.OwnersOf(ctx, nodeID)
		if err != nil {
			return err
		}
		if len(owners) > 0 {
			return nil
		}

		localPath = node.LocalPath
		if err := repo.DeleteByID(ctx, nodeID); err != nil {
			return err
		}
		pruned = true
		return nil
	})
	if err != nil || !pruned {
		return false, err
	}

	if localPath != nil {
		if err := filex.RemoveIfExists(s.fs, *localPath); err != nil {
			s.logger.Warn(ctx, "failed to remove cached file", "path", *localPath, "error", err)
		}
	}
	s.logger.Info(ctx, "orphaned node pruned", "node_id", nodeID)
	return true, nil
}
