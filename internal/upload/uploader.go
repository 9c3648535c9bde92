package upload

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/spf13/afero"

	"github.com/dmitrijs2005/fieldsync/internal/api"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/netx"
	"github.com/dmitrijs2005/fieldsync/internal/progress"
)

// ItemResult is the per-package outcome of one upload step. Failed items
// carry a human-readable reason instead of an error value so the
// orchestrator can aggregate them into a single report.
type ItemResult struct {
	EventUID string
	Digest   string
	OK       bool
	Reason   string
}

// Uploader transfers packaged archives to the storage hosts named in their
// tickets.
type Uploader interface {
	// UploadAll matches each package to its ticket strictly by digest and
	// uploads the matched ones. Failures are isolated per package; the
	// progress tracker is stepped once per successful transfer.
	UploadAll(ctx context.Context, pkgs []*Package, tickets []api.UploadTicket) []ItemResult
}

type uploader struct {
	client  *http.Client
	fs      afero.Fs
	tracker *progress.Tracker
	logger  logging.Logger
}

// NewUploader builds an Uploader. httpClient may be nil, in which case a
// client with a generous transfer timeout is used.
func NewUploader(httpClient *http.Client, fs afero.Fs, tracker *progress.Tracker, logger logging.Logger) Uploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if tracker == nil {
		tracker = progress.NewTracker()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &uploader{client: httpClient, fs: fs, tracker: tracker, logger: logger}
}

func (u *uploader) UploadAll(ctx context.Context, pkgs []*Package, tickets []api.UploadTicket) []ItemResult {
	// Tickets are matched by digest value, never by position: the server
	// is free to reorder the response or omit entries it short-circuited.
	byDigest := make(map[string]api.UploadTicket, len(tickets))
	for _, tk := range tickets {
		byDigest[tk.Digest] = tk
	}

	known := make(map[string]struct{}, len(pkgs))
	for _, p := range pkgs {
		known[p.Digest] = struct{}{}
	}
	for _, tk := range tickets {
		if _, ok := known[tk.Digest]; !ok {
			u.logger.Warn(ctx, "ticket matches no package, ignoring", "digest", tk.Digest)
		}
	}

	results := make([]ItemResult, 0, len(pkgs))
	for _, p := range pkgs {
		res := ItemResult{EventUID: p.EventUID, Digest: p.Digest}

		ticket, ok := byDigest[p.Digest]
		if !ok {
			res.Reason = "no ticket matched the package digest"
			u.logger.Warn(ctx, "package left without ticket",
				"event_uid", p.EventUID, "digest", p.Digest)
			results = append(results, res)
			continue
		}

		if err := u.uploadOne(ctx, p, ticket); err != nil {
			res.Reason = err.Error()
			u.logger.Warn(ctx, "package upload failed",
				"event_uid", p.EventUID, "reason", err.Error())
		} else {
			res.OK = true
			u.tracker.Step()
			u.logger.Info(ctx, "package uploaded",
				"event_uid", p.EventUID, "host", ticket.Host)
		}
		results = append(results, res)
	}
	return results
}

// uploadOne performs the direct form POST described by the ticket: the
// object key is directory+objectId and the policy, signature and access id
// are forwarded verbatim.
func (u *uploader) uploadOne(ctx context.Context, p *Package, ticket api.UploadTicket) error {
	f, err := u.fs.Open(p.ArchivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	u.tracker.SetLabel(p.ArchiveName)

	fields := map[string]string{
		"key":       path.Join(ticket.Directory, ticket.ObjectID),
		"policy":    ticket.Policy,
		"signature": ticket.Signature,
		"accessId":  ticket.AccessID,
	}
	return netx.PostFileMultipart(ctx, u.client, ticket.Host, fields, p.ArchiveName, f)
}
