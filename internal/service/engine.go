// Package service assembles the synchronization engine: one constructor
// opens the local database, builds the backend client, the asset and image
// caches, the sync coordinator and the upload pipeline, and exposes them
// behind the small facade the UI layer calls.
package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/fieldsync/internal/api"
	"github.com/dmitrijs2005/fieldsync/internal/assets"
	"github.com/dmitrijs2005/fieldsync/internal/config"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/images"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/models"
	"github.com/dmitrijs2005/fieldsync/internal/progress"
	"github.com/dmitrijs2005/fieldsync/internal/storage"
	"github.com/dmitrijs2005/fieldsync/internal/syncer"
	"github.com/dmitrijs2005/fieldsync/internal/upload"
)

// Engine is the inbound surface of the sync engine. Sync and upload
// operations return a success flag plus a human-readable report; callers
// that want live progress subscribe through Progress before invoking them.
type Engine interface {
	// SyncAllProjects runs one hash-diff pass over the whole remote
	// listing, including the release of projects the listing dropped.
	SyncAllProjects(ctx context.Context) (bool, string)

	// SyncProject runs the same pass for a single project.
	SyncProject(ctx context.Context, projectUID string) (bool, string)

	// UploadEvents packages and uploads the given events as one batch
	// against the target project.
	UploadEvents(ctx context.Context, eventUIDs []string, targetProjectUID string) (bool, string)

	// UploadEvent uploads a single event with the tighter poll cadence.
	UploadEvent(ctx context.Context, eventUID, targetProjectUID string) (bool, string)

	// RetryFailedAssets re-drives the download of the project's failed
	// asset nodes without a full sync pass.
	RetryFailedAssets(ctx context.Context, projectUID string) (bool, string)

	// UnsyncedEvents lists the project's events still waiting for upload.
	UnsyncedEvents(ctx context.Context, projectUID string) ([]*models.Event, error)

	// LocalEventCount counts the events recorded locally for the project.
	LocalEventCount(ctx context.Context, projectUID string) (int, error)

	// Projects lists the local project records.
	Projects(ctx context.Context) ([]models.Project, error)

	// Progress exposes the tracker publishing the state of the current
	// operation.
	Progress() *progress.Tracker

	// Close releases the database, the transport and the URL cache.
	Close() error
}

type engine struct {
	db         *sql.DB
	client     api.Client
	downloader *assets.Downloader
	repos      *storage.Repositories
	assets     assets.Service
	coord      syncer.Coordinator
	orch       upload.Orchestrator
	tracker    *progress.Tracker
	logger     logging.Logger
}

// NewEngine wires the engine from cfg. The data directory layout is created
// on first use; the database schema is migrated to the current version.
func NewEngine(ctx context.Context, cfg *config.Config, logger logging.Logger) (Engine, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	fs := afero.NewOsFs()

	for _, dir := range []string{cfg.DataDir, cfg.EventsDir(), cfg.AssetCacheDir(), cfg.ImageCacheDir(), cfg.ScratchDir()} {
		if err := filex.EnsureDir(fs, dir); err != nil {
			return nil, fmt.Errorf("preparing data directory: %w", err)
		}
	}

	db, err := storage.InitDatabase(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	client, err := api.NewHTTPClient(&api.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building api client: %w", err)
	}

	downloader, err := assets.NewDownloader(client, fs, assets.DownloaderConfig{
		Dir:       cfg.AssetCacheDir(),
		URLTTL:    cfg.ResolvedURLTTL,
		RateLimit: rate.Limit(cfg.DownloadRateLimit),
		Logger:    logger,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building downloader: %w", err)
	}

	tracker := progress.NewTracker()
	repos := storage.NewRepositories(db)

	assetSvc := assets.NewService(db, downloader, fs, tracker, logger)
	imageCache := images.NewCache(downloader, fs, cfg.ImageCacheDir(), logger)

	packager := upload.NewPackager(repos.Events, fs, cfg.EventsDir(), cfg.ScratchDir(), logger)
	uploader := upload.NewUploader(nil, fs, tracker, logger)

	return &engine{
		db:         db,
		client:     client,
		downloader: downloader,
		repos:      repos,
		assets:     assetSvc,
		coord:      syncer.NewCoordinator(db, client, assetSvc, imageCache, tracker, logger),
		orch: upload.NewOrchestrator(client, packager, uploader, repos.Events, fs, upload.OrchestratorConfig{
			BatchPollInterval:  cfg.BatchPollInterval,
			BatchPollAttempts:  cfg.BatchPollAttempts,
			SinglePollInterval: cfg.SinglePollInterval,
			SinglePollAttempts: cfg.SinglePollAttempts,
			RetryAttempts:      cfg.RetryAttempts,
			RetryDelay:         cfg.RetryDelay,
			Tracker:            tracker,
			Logger:             logger,
		}),
		tracker: tracker,
		logger:  logger,
	}, nil
}

func (e *engine) SyncAllProjects(ctx context.Context) (bool, string) {
	rep, err := e.coord.SyncAll(ctx)
	if err != nil {
		return false, fmt.Sprintf("sync failed: %v", err)
	}
	// partial failures keep their previous hash and retry next pass
	return rep.Failed == 0, rep.String()
}

func (e *engine) SyncProject(ctx context.Context, projectUID string) (bool, string) {
	rep, err := e.coord.SyncProject(ctx, projectUID)
	if err != nil {
		return false, fmt.Sprintf("sync failed: %v", err)
	}
	return rep.Failed == 0, rep.String()
}

func (e *engine) UploadEvents(ctx context.Context, eventUIDs []string, targetProjectUID string) (bool, string) {
	return e.orch.UploadEvents(ctx, eventUIDs, targetProjectUID)
}

func (e *engine) UploadEvent(ctx context.Context, eventUID, targetProjectUID string) (bool, string) {
	return e.orch.UploadEvent(ctx, eventUID, targetProjectUID)
}

func (e *engine) RetryFailedAssets(ctx context.Context, projectUID string) (bool, string) {
	e.tracker.Begin("retry", 0)
	defer e.tracker.End()

	sum, err := e.assets.RetryFailed(ctx, projectUID)
	if err != nil {
		return false, fmt.Sprintf("retry failed: %v", err)
	}
	return sum.Failed == 0, sum.String()
}

func (e *engine) UnsyncedEvents(ctx context.Context, projectUID string) ([]*models.Event, error) {
	return e.repos.Events.ListUnsynced(ctx, projectUID)
}

func (e *engine) LocalEventCount(ctx context.Context, projectUID string) (int, error) {
	return e.repos.Events.CountByProject(ctx, projectUID)
}

func (e *engine) Projects(ctx context.Context) ([]models.Project, error) {
	return e.repos.Projects.GetAll(ctx)
}

func (e *engine) Progress() *progress.Tracker {
	return e.tracker
}

func (e *engine) Close() error {
	e.downloader.Close()
	if err := e.client.Close(); err != nil {
		e.logger.Warn(context.Background(), "closing api client", "error", err)
	}
	return e.db.Close()
}
