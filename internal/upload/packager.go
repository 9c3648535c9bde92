package upload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	eventrepo "github.com/dmitrijs2005/fieldsync/internal/repositories/events"
	"github.com/dmitrijs2005/fieldsync/internal/zipx"
)

// Package is one event archived and ready for upload. The digest doubles as
// the ticket correlation key, so it is recomputed on every attempt: the
// directory contents may have changed since the last one.
type Package struct {
	EventUID    string
	ArchiveName string
	ArchivePath string
	Digest      string
	SizeBytes   int64
}

// Packager turns a locally recorded event into an uploadable archive.
type Packager interface {
	// Package archives the event's directory into the scratch area and
	// returns the package descriptor. A missing event (no local record or
	// no directory) fails with common.ErrEventNotFound, which is never
	// retried automatically.
	Package(ctx context.Context, eventUID string) (*Package, error)
}

type packager struct {
	events    eventrepo.Repository
	fs        afero.Fs
	eventsDir string
	scratch   string
	logger    logging.Logger
}

// NewPackager wires a Packager over the events repository and the local
// filesystem layout.
func NewPackager(events eventrepo.Repository, fs afero.Fs, eventsDir, scratchDir string, logger logging.Logger) Packager {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &packager{events: events, fs: fs, eventsDir: eventsDir, scratch: scratchDir, logger: logger}
}

func (p *packager) Package(ctx context.Context, eventUID string) (*Package, error) {
	event, err := p.events.GetByUID(ctx, eventUID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("event %s: %w", eventUID, common.ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading event %s: %w", eventUID, err)
	}

	dir := filepath.Join(p.eventsDir, eventUID)
	if !filex.Exists(p.fs, dir) {
		return nil, fmt.Errorf("event %s has no directory at %s: %w", eventUID, dir, common.ErrEventNotFound)
	}

	// the legacy placeholder has to go before archiving so both the entry
	// name inside the zip and the metadata agree on the final name
	if err := p.normalizeLegacyAudio(ctx, event.EventUID, event.AudioName, dir); err != nil {
		return nil, err
	}

	if err := filex.EnsureDir(p.fs, p.scratch); err != nil {
		return nil, err
	}

	archiveName := eventUID + ".zip"
	archivePath := filepath.Join(p.scratch, archiveName)
	digest, err := zipx.ArchiveDir(p.fs, dir, archivePath)
	if err != nil {
		return nil, fmt.Errorf("archiving event %s: %w", eventUID, err)
	}

	info, err := p.fs.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("stat archive %s: %w", archivePath, err)
	}

	p.logger.Debug(ctx, "event packaged", "event_uid", eventUID,
		"archive", archiveName, "digest", digest, "size", info.Size())

	return &Package{
		EventUID:    eventUID,
		ArchiveName: archiveName,
		ArchivePath: archivePath,
		Digest:      digest,
		SizeBytes:   info.Size(),
	}, nil
}

// normalizeLegacyAudio fixes audio names still carrying the unresolved
// extension placeholder old client builds wrote. The on-disk file is renamed
// to the real container extension (with a numeric suffix when the corrected
// name is taken) and the metadata is updated to match.
func (p *packager) normalizeLegacyAudio(ctx context.Context, eventUID, audioName, dir string) error {
	if !strings.HasSuffix(audioName, common.LegacyAudioPlaceholder) {
		return nil
	}

	corrected := strings.TrimSuffix(audioName, common.LegacyAudioPlaceholder) + common.AudioExtension
	src := filepath.Join(dir, audioName)
	correctedPath := filepath.Join(dir, corrected)

	var fixed string
	switch {
	case filex.Exists(p.fs, src):
		dst := filex.UniqueName(p.fs, correctedPath)
		if err := p.fs.Rename(src, dst); err != nil {
			return fmt.Errorf("renaming legacy audio %s: %w", audioName, err)
		}
		fixed = filepath.Base(dst)
	case filex.Exists(p.fs, correctedPath):
		// the file was already renamed, only the metadata is stale
		fixed = corrected
	default:
		// neither the placeholder nor a corrected file exists: leave the
		// metadata alone, there is nothing to point it at
		p.logger.Warn(ctx, "legacy audio file missing on disk",
			"event_uid", eventUID, "audio_name", audioName)
		return nil
	}

	if err := p.events.SetAudioName(ctx, eventUID, fixed); err != nil {
		return fmt.Errorf("writing back audio name for %s: %w", eventUID, err)
	}

	p.logger.Info(ctx, "normalized legacy audio name",
		"event_uid", eventUID, "from", audioName, "to", fixed)
	return nil
}
