// Package syncer decides which projects need a detail re-fetch by diffing
// remote content hashes against the local sync records, and drives asset
// and defect-image caching for exactly those projects.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/api"
	"github.com/dmitrijs2005/fieldsync/internal/assets"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/models"
	"github.com/dmitrijs2005/fieldsync/internal/progress"
	projectrepo "github.com/dmitrijs2005/fieldsync/internal/repositories/projects"
)

// AssetResolver reconciles one project's raw asset tree with the local
// cache. assets.Service is the production implementation.
type AssetResolver interface {
	Resolve(ctx context.Context, projectUID string, rawTree []byte) (*assets.Summary, error)
}

// ImageCacher maintains the per-defect image cache for one project.
type ImageCacher interface {
	CacheProject(ctx context.Context, projectUID string, defects []models.Defect) error
}

// Report aggregates the outcome of one sync pass.
type Report struct {
	Projects     int // remote projects seen
	Fetched      int // full detail fetches
	CountersOnly int // unchanged hash, only volatile counters written
	Removed      int // local records released because remote dropped them
	Failed       int // projects skipped after an error, retried next pass

	AssetsCached int
	AssetsFailed int
	AssetsPruned int
}

func (r *Report) String() string {
	return fmt.Sprintf("%d projects: %d fetched, %d counters-only, %d removed, %d failed; assets: %d cached, %d failed, %d pruned",
		r.Projects, r.Fetched, r.CountersOnly, r.Removed, r.Failed,
		r.AssetsCached, r.AssetsFailed, r.AssetsPruned)
}

// Coordinator runs hash-diff project synchronization.
type Coordinator interface {
	// SyncAll processes every project in the remote listing and releases
	// local records the listing no longer contains. Per-project failures
	// are counted in the report, never aborting the batch.
	SyncAll(ctx context.Context) (*Report, error)

	// SyncProject processes a single project from the remote listing.
	SyncProject(ctx context.Context, projectUID string) (*Report, error)
}

type coordinator struct {
	db      *sql.DB
	client  api.Client
	assets  AssetResolver
	images  ImageCacher
	tracker *progress.Tracker
	logger  logging.Logger
}

func NewCoordinator(db *sql.DB, client api.Client, assets AssetResolver, images ImageCacher, tracker *progress.Tracker, logger logging.Logger) Coordinator {
	if tracker == nil {
		tracker = progress.NewTracker()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &coordinator{db: db, client: client, assets: assets, images: images, tracker: tracker, logger: logger}
}

func (c *coordinator) SyncAll(ctx context.Context) (*Report, error) {
	c.tracker.Begin("sync", 0)
	defer c.tracker.End()

	remote, err := c.client.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	rep := &Report{Projects: len(remote)}
	for _, p := range remote {
		c.syncOne(ctx, p, rep)
	}
	c.removeStale(ctx, remote, rep)

	c.logger.Info(ctx, "sync pass finished", "report", rep.String())
	return rep, nil
}

func (c *coordinator) SyncProject(ctx context.Context, projectUID string) (*Report, error) {
	c.tracker.Begin("sync", 0)
	defer c.tracker.End()

	remote, err := c.client.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	for _, p := range remote {
		if p.ProjectUID != projectUID {
			continue
		}
		rep := &Report{Projects: 1}
		c.syncOne(ctx, p, rep)
		return rep, nil
	}
	return nil, fmt.Errorf("project %s not in remote listing: %w", projectUID, common.ErrNotFound)
}

// syncOne processes a single remote project. Errors are logged and counted;
// the project keeps its previous content hash so the next pass retries it.
func (c *coordinator) syncOne(ctx context.Context, remote api.ProjectSummary, rep *Report) {
	c.tracker.SetLabel(remote.Name)
	repo := projectrepo.NewSQLiteRepository(c.db)

	local, err := repo.GetByUID(ctx, remote.ProjectUID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		c.logger.Error(ctx, "loading local project failed", "project_uid", remote.ProjectUID, "error", err)
		rep.Failed++
		return
	}

	if err == nil && local.ContentHash == remote.ContentHash {
		// unchanged content: only the volatile counters move, no detail
		// fetch, no asset or image work
		if err := repo.UpdateCounters(ctx, remote.ProjectUID, remote.DefectCount, remote.EventCount); err != nil {
			c.logger.Error(ctx, "counter update failed", "project_uid", remote.ProjectUID, "error", err)
			rep.Failed++
			return
		}
		rep.CountersOnly++
		return
	}

	sum, err := c.fetchDetail(ctx, remote)
	if err != nil {
		c.logger.Error(ctx, "project sync failed, keeping previous hash",
			"project_uid", remote.ProjectUID, "error", err)
		rep.Failed++
		return
	}

	rep.Fetched++
	rep.AssetsCached += sum.Succeeded
	rep.AssetsFailed += sum.Failed
	rep.AssetsPruned += sum.Pruned
}

// fetchDetail runs the full path: write basic fields, fetch the detail
// payload, resolve the asset tree, cache defect images, and only then
// advance the content hash. Failing anywhere leaves the hash untouched.
func (c *coordinator) fetchDetail(ctx context.Context, remote api.ProjectSummary) (*assets.Summary, error) {
	repo := projectrepo.NewSQLiteRepository(c.db)

	if err := repo.CreateOrUpdate(ctx, &models.Project{
		ProjectUID:  remote.ProjectUID,
		Name:        remote.Name,
		DefectCount: remote.DefectCount,
		EventCount:  remote.EventCount,
	}); err != nil {
		return nil, fmt.Errorf("writing project record: %w", err)
	}

	detail, err := c.client.GetProjectDetail(ctx, remote.ProjectUID)
	if err != nil {
		return nil, fmt.Errorf("fetching detail: %w", err)
	}

	sum, err := c.assets.Resolve(ctx, remote.ProjectUID, detail.AssetTree)
	if err != nil {
		return nil, fmt.Errorf("resolving asset tree: %w", err)
	}

	defects := make([]models.Defect, 0, len(detail.Defects))
	for _, d := range detail.Defects {
		defects = append(defects, models.Defect{
			DefectUID:      d.DefectUID,
			ProjectUID:     remote.ProjectUID,
			Title:          d.Title,
			ImageRemoteIDs: d.ImageRemoteIDs,
		})
	}
	if err := c.images.CacheProject(ctx, remote.ProjectUID, defects); err != nil {
		return nil, fmt.Errorf("caching defect images: %w", err)
	}

	if err := repo.SetContentHash(ctx, remote.ProjectUID, remote.ContentHash, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("advancing content hash: %w", err)
	}
	return sum, nil
}

// removeStale releases local records of projects the remote listing no
// longer contains. Resolving an empty tree drains the project's asset
// ownership, so shared payloads survive while exclusively owned ones are
// pruned along with their files.
func (c *coordinator) removeStale(ctx context.Context, remote []api.ProjectSummary, rep *Report) {
	repo := projectrepo.NewSQLiteRepository(c.db)

	locals, err := repo.GetAll(ctx)
	if err != nil {
		c.logger.Error(ctx, "listing local projects failed", "error", err)
		return
	}
	current := make(map[string]struct{}, len(remote))
	for _, p := range remote {
		current[p.ProjectUID] = struct{}{}
	}

	for _, local := range locals {
		if _, ok := current[local.ProjectUID]; ok {
			continue
		}

		if _, err := c.assets.Resolve(ctx, local.ProjectUID, nil); err != nil {
			c.logger.Error(ctx, "releasing assets of removed project failed",
				"project_uid", local.ProjectUID, "error", err)
			continue
		}
		if err := c.images.CacheProject(ctx, local.ProjectUID, nil); err != nil {
			c.logger.Warn(ctx, "pruning images of removed project failed",
				"project_uid", local.ProjectUID, "error", err)
		}
		if err := repo.DeleteByUID(ctx, local.ProjectUID); err != nil {
			c.logger.Error(ctx, "deleting removed project failed",
				"project_uid", local.ProjectUID, "error", err)
			continue
		}

		rep.Removed++
		c.logger.Info(ctx, "removed project no longer on remote", "project_uid", local.ProjectUID)
	}
}
