// Package images maintains the per-project defect image cache. Unlike the
// shared asset cache, images are laid out by owner so the app can show a
// defect's photos without touching the database:
// <root>/<projectUID>/<defectUID>/<remoteID>.<ext>.
package images

import (
	"context"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/models"
)

// Fetcher is the slice of the asset downloader the image cache needs:
// batch URL warming plus fetching into an arbitrary directory.
type Fetcher interface {
	ResolveURLs(ctx context.Context, remoteIDs []string) error
	FetchInto(ctx context.Context, remoteID, dir string) (string, error)
}

// Cache downloads and prunes defect images under its root directory.
type Cache struct {
	fetcher Fetcher
	fs      afero.Fs
	root    string
	logger  logging.Logger
}

func NewCache(fetcher Fetcher, fs afero.Fs, root string, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Cache{fetcher: fetcher, fs: fs, root: root, logger: logger}
}

// CacheProject downloads the images of every listed defect and removes the
// directories of defects that vanished from the project. Per-image
// failures are logged and skipped; they never fail the sync pass. An error
// is returned only when the cache layout itself cannot be maintained.
func (c *Cache) CacheProject(ctx context.Context, projectUID string, defects []models.Defect) error {
	projectDir, err := filex.EnsureSubDir(c.fs, c.root, projectUID)
	if err != nil {
		return err
	}

	// warm download locations only for images not already on disk
	var missing []string
	for _, d := range defects {
		for _, remoteID := range d.ImageRemoteIDs {
			if !hasCached(c.fs, filepath.Join(projectDir, d.DefectUID), remoteID) {
				missing = append(missing, remoteID)
			}
		}
	}
	resolveFailed := false
	if len(missing) > 0 {
		if err := c.fetcher.ResolveURLs(ctx, missing); err != nil {
			c.logger.Error(ctx, "image url resolution failed",
				"project_uid", projectUID, "error", err)
			resolveFailed = true
		}
	}

	keep := make(map[string]struct{}, len(defects))
	for _, d := range defects {
		keep[d.DefectUID] = struct{}{}

		defectDir, err := filex.EnsureSubDir(c.fs, projectDir, d.DefectUID)
		if err != nil {
			return err
		}
		if resolveFailed {
			continue
		}
		for _, remoteID := range d.ImageRemoteIDs {
			if hasCached(c.fs, defectDir, remoteID) {
				continue
			}
			if _, err := c.fetcher.FetchInto(ctx, remoteID, defectDir); err != nil {
				c.logger.Warn(ctx, "defect image download failed", "project_uid", projectUID,
					"defect_uid", d.DefectUID, "remote_id", remoteID, "reason", err.Error())
			}
		}
	}

	return c.prune(ctx, projectUID, projectDir, keep)
}

// prune removes image directories of defects no longer listed.
func (c *Cache) prune(ctx context.Context, projectUID, projectDir string, keep map[string]struct{}) error {
	entries, err := afero.ReadDir(c.fs, projectDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := keep[e.Name()]; ok {
			continue
		}
		dir := filepath.Join(projectDir, e.Name())
		if err := c.fs.RemoveAll(dir); err != nil {
			c.logger.Warn(ctx, "failed to remove defect image dir", "path", dir, "error", err)
			continue
		}
		c.logger.Info(ctx, "pruned images of removed defect",
			"project_uid", projectUID, "defect_uid", e.Name())
	}
	return nil
}

// hasCached reports whether a payload for remoteID is already present.
// The extension is unknown until the URL is resolved, so both the bare
// name and any dotted variant count.
func hasCached(fs afero.Fs, dir, remoteID string) bool {
	if filex.Exists(fs, filepath.Join(dir, remoteID)) {
		return true
	}
	matches, err := afero.Glob(fs, filepath.Join(dir, remoteID+".*"))
	return err == nil && len(matches) > 0
}
