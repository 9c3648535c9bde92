package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/dmitrijs2005/fieldsync/internal/api"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/progress"
	eventrepo "github.com/dmitrijs2005/fieldsync/internal/repositories/events"
	"github.com/dmitrijs2005/fieldsync/internal/retryx"
)

// BatchState tracks one upload batch through its lifecycle.
type BatchState string

const (
	StateCreated   BatchState = "created"
	StatePackaging BatchState = "packaging"
	StateTicketing BatchState = "ticketing"
	StateUploading BatchState = "uploading"
	StatePolling   BatchState = "polling"
	StateSucceeded BatchState = "succeeded"
	StateTimedOut  BatchState = "timed_out"
	StateFailed    BatchState = "failed"
)

// TaskClient is the slice of the remote API the orchestrator needs: task
// registration (which issues the tickets) and completion polling.
type TaskClient interface {
	CreateUploadTask(ctx context.Context, taskUID, targetProjectUID string, packages []api.PackageDescriptor) ([]api.UploadTicket, error)
	PollTaskStatus(ctx context.Context, taskUID string) (bool, error)
}

// Report aggregates one batch attempt: the state it terminated in and the
// per-event outcomes. Item order is packaging failures first, then the
// uploader results for the surviving packages.
type Report struct {
	State    BatchState
	TaskUID  string
	Items    []ItemResult
	Uploaded int
}

// message renders the user-facing multi-line report: the headline, then one
// line per failed event.
func (r *Report) message(headline string) string {
	lines := []string{headline}
	for _, it := range r.Items {
		if it.OK {
			continue
		}
		lines = append(lines, fmt.Sprintf("event %s: %s", it.EventUID, it.Reason))
	}
	return strings.Join(lines, "\n")
}

// Orchestrator sequences packaging, ticketing, direct upload and completion
// polling for event uploads, with a bounded outer retry around the whole
// batch.
type Orchestrator interface {
	// UploadEvents runs the given events as one batch against the target
	// project. The returned message is a multi-line report; the bool is
	// true when the server confirmed ingestion of at least one event.
	UploadEvents(ctx context.Context, eventUIDs []string, targetProjectUID string) (bool, string)

	// UploadEvent uploads a single event with the tighter single-event
	// poll cadence.
	UploadEvent(ctx context.Context, eventUID, targetProjectUID string) (bool, string)
}

// OrchestratorConfig carries the polling cadences, the outer retry budget
// and the shared observability hooks.
type OrchestratorConfig struct {
	BatchPollInterval  time.Duration
	BatchPollAttempts  int
	SinglePollInterval time.Duration
	SinglePollAttempts int
	RetryAttempts      int
	RetryDelay         time.Duration

	Tracker *progress.Tracker
	Logger  logging.Logger
}

func (c *OrchestratorConfig) withDefaults() {
	if c.BatchPollInterval <= 0 {
		c.BatchPollInterval = 3 * time.Second
	}
	if c.BatchPollAttempts <= 0 {
		c.BatchPollAttempts = 15
	}
	if c.SinglePollInterval <= 0 {
		c.SinglePollInterval = 2 * time.Second
	}
	if c.SinglePollAttempts <= 0 {
		c.SinglePollAttempts = 30
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 1
	}
	if c.Tracker == nil {
		c.Tracker = progress.NewTracker()
	}
	if c.Logger == nil {
		c.Logger = logging.Nop{}
	}
}

type orchestrator struct {
	client   TaskClient
	packager Packager
	uploader Uploader
	events   eventrepo.Repository
	fs       afero.Fs
	tracker  *progress.Tracker
	logger   logging.Logger
	cfg      OrchestratorConfig
}

// NewOrchestrator wires the upload pipeline.
func NewOrchestrator(client TaskClient, packager Packager, uploader Uploader, events eventrepo.Repository, fs afero.Fs, cfg OrchestratorConfig) Orchestrator {
	cfg.withDefaults()
	return &orchestrator{
		client:   client,
		packager: packager,
		uploader: uploader,
		events:   events,
		fs:       fs,
		tracker:  cfg.Tracker,
		logger:   cfg.Logger,
		cfg:      cfg,
	}
}

func (o *orchestrator) UploadEvents(ctx context.Context, eventUIDs []string, targetProjectUID string) (bool, string) {
	return o.run(ctx, eventUIDs, targetProjectUID, o.cfg.BatchPollInterval, o.cfg.BatchPollAttempts)
}

func (o *orchestrator) UploadEvent(ctx context.Context, eventUID, targetProjectUID string) (bool, string) {
	return o.run(ctx, []string{eventUID}, targetProjectUID, o.cfg.SinglePollInterval, o.cfg.SinglePollAttempts)
}

// run drives the outer retry loop. The retry decorator owns the progress
// reset; each attempt is a fresh pass with a fresh task uid. The report of
// the last attempt is kept for the final message even when the attempt
// errored.
func (o *orchestrator) run(ctx context.Context, eventUIDs []string, target string, pollInterval time.Duration, pollAttempts int) (bool, string) {
	if len(eventUIDs) == 0 {
		return false, "nothing to upload: no events given"
	}
	defer o.tracker.End()

	var last *Report
	_, err := retryx.Do(ctx, o.cfg.RetryAttempts, o.cfg.RetryDelay, func(attempt int) {
		o.tracker.Begin("upload", len(eventUIDs))
		if attempt > 1 {
			o.logger.Info(ctx, "retrying upload batch",
				"attempt", attempt, "of", o.cfg.RetryAttempts)
		}
	}, func(ctx context.Context) (*Report, error) {
		rep, err := o.attempt(ctx, eventUIDs, target, pollInterval, pollAttempts)
		last = rep
		return rep, err
	})

	return o.verdict(last, err)
}

// verdict folds the terminal state and the per-item results into the
// (success, message) pair the callers surface to the user. A poll timeout
// is reported distinctly from failure: the work may still finish remotely.
func (o *orchestrator) verdict(rep *Report, err error) (bool, string) {
	switch {
	case err == nil:
		return true, rep.message(fmt.Sprintf("uploaded %d/%d events", rep.Uploaded, len(rep.Items)))
	case rep == nil:
		return false, fmt.Sprintf("upload failed: %v", err)
	case errors.Is(err, common.ErrPollTimeout):
		headline := fmt.Sprintf(
			"timeout: %d package(s) uploaded but completion was not confirmed; events stay queued for the next attempt",
			rep.Uploaded)
		return false, rep.message(headline)
	default:
		return false, rep.message(fmt.Sprintf("upload failed: %v", err))
	}
}

// attempt is one full pass of the batch state machine.
func (o *orchestrator) attempt(ctx context.Context, eventUIDs []string, target string, pollInterval time.Duration, pollAttempts int) (*Report, error) {
	rep := &Report{State: StateCreated, TaskUID: uuid.NewString()}
	log := o.logger.With("task_uid", rep.TaskUID)

	rep.State = StatePackaging
	var pkgs []*Package
	for _, uid := range eventUIDs {
		o.tracker.SetLabel(uid)
		pkg, err := o.packager.Package(ctx, uid)
		if err != nil {
			rep.Items = append(rep.Items, ItemResult{EventUID: uid, Reason: err.Error()})
			log.Warn(ctx, "event packaging failed", "event_uid", uid, "reason", err.Error())
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	// archives never survive the attempt, whatever its outcome
	defer func() { o.cleanupArchives(ctx, pkgs) }()

	if len(pkgs) == 0 {
		rep.State = StateFailed
		return rep, retryx.Permanent(fmt.Errorf("no event could be packaged: %w", common.ErrEventNotFound))
	}

	rep.State = StateTicketing
	descriptors := make([]api.PackageDescriptor, 0, len(pkgs))
	for _, p := range pkgs {
		descriptors = append(descriptors, api.PackageDescriptor{
			Name:      p.ArchiveName,
			Digest:    p.Digest,
			SizeBytes: p.SizeBytes,
		})
	}
	tickets, err := o.client.CreateUploadTask(ctx, rep.TaskUID, target, descriptors)
	if err != nil {
		rep.State = StateFailed
		return rep, fmt.Errorf("creating upload task: %w", err)
	}

	rep.State = StateUploading
	results := o.uploader.UploadAll(ctx, pkgs, tickets)
	rep.Items = append(rep.Items, results...)
	for _, r := range results {
		if r.OK {
			rep.Uploaded++
		}
	}
	if rep.Uploaded == 0 {
		rep.State = StateFailed
		return rep, errors.New("no package reached storage")
	}

	// polling is only entered once at least one package is on storage
	rep.State = StatePolling
	if err := o.pollCompletion(ctx, log, rep.TaskUID, pollInterval, pollAttempts); err != nil {
		if errors.Is(err, common.ErrPollTimeout) {
			// uploaded events stay unsynced: ingestion was never confirmed
			rep.State = StateTimedOut
		} else {
			rep.State = StateFailed
		}
		return rep, err
	}

	for _, r := range rep.Items {
		if !r.OK {
			continue
		}
		if err := o.events.MarkSynced(ctx, r.EventUID); err != nil {
			log.Error(ctx, "failed to mark event synced", "event_uid", r.EventUID, "error", err)
		}
	}

	rep.State = StateSucceeded
	log.Info(ctx, "upload batch confirmed", "uploaded", rep.Uploaded, "of", len(rep.Items))
	return rep, nil
}

// pollCompletion asks the server about the task at a fixed interval until it
// reports completion or the attempt budget runs out. A failed poll round
// trip only means "not confirmed yet" and consumes the attempt.
func (o *orchestrator) pollCompletion(ctx context.Context, log logging.Logger, taskUID string, interval time.Duration, budget int) error {
	for attempt := 1; attempt <= budget; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		complete, err := o.client.PollTaskStatus(ctx, taskUID)
		if err != nil {
			log.Warn(ctx, "poll request failed, treating as incomplete",
				"attempt", attempt, "error", err)
			continue
		}
		if complete {
			return nil
		}
		log.Debug(ctx, "task not complete yet", "attempt", attempt, "of", budget)
	}
	return common.ErrPollTimeout
}

func (o *orchestrator) cleanupArchives(ctx context.Context, pkgs []*Package) {
	for _, p := range pkgs {
		if err := filex.RemoveIfExists(o.fs, p.ArchivePath); err != nil {
			o.logger.Warn(ctx, "failed to remove archive", "path", p.ArchivePath, "error", err)
		}
	}
}
