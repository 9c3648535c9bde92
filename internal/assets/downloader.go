package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/fieldsync/internal/api"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

const (
	defaultURLTTL    = 10 * time.Minute
	defaultRateLimit = rate.Limit(8)
	defaultBurst     = 1
)

// URLResolver is the slice of the remote API the downloader needs.
type URLResolver interface {
	ResolveDownloadURLs(ctx context.Context, remoteIDs []string) ([]api.ResolvedURL, error)
}

// DownloaderConfig carries the tunables for a Downloader.
type DownloaderConfig struct {
	// Dir is the directory cached payloads are written into.
	Dir string
	// URLTTL is how long a resolved download location stays usable.
	// Locations are presigned with an absolute expiry, so cache hits
	// must not extend their lifetime.
	URLTTL time.Duration
	// RateLimit and Burst throttle requests against the storage host.
	RateLimit rate.Limit
	Burst     int
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	Logger     logging.Logger
}

// Downloader resolves content-addressed remote ids to short-lived URLs and
// streams the payloads into the local cache directory. Resolved locations
// are kept in a TTL cache so a batch resolve pays for the whole download
// pass; single misses are re-resolved on demand.
type Downloader struct {
	resolver URLResolver
	client   *http.Client
	fs       afero.Fs
	dir      string
	urls     *ttlcache.Cache[string, api.ResolvedURL]
	limiter  *rate.Limiter
	logger   logging.Logger
}

var _ Fetcher = &Downloader{}

// NewDownloader builds a Downloader writing into cfg.Dir.
func NewDownloader(resolver URLResolver, fs afero.Fs, cfg DownloaderConfig) (*Downloader, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("cache dir is required")
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = defaultURLTTL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Burst < 1 {
		cfg.Burst = defaultBurst
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop{}
	}

	urls := ttlcache.New[string, api.ResolvedURL](
		ttlcache.WithDisableTouchOnHit[string, api.ResolvedURL](),
		ttlcache.WithTTL[string, api.ResolvedURL](cfg.URLTTL),
	)
	go urls.Start()

	return &Downloader{
		resolver: resolver,
		client:   cfg.HTTPClient,
		fs:       fs,
		dir:      cfg.Dir,
		urls:     urls,
		limiter:  rate.NewLimiter(cfg.RateLimit, cfg.Burst),
		logger:   cfg.Logger,
	}, nil
}

// ResolveURLs warms the URL cache for the given remote ids in one batch
// call. Ids with a still-fresh cached location are skipped.
func (d *Downloader) ResolveURLs(ctx context.Context, remoteIDs []string) error {
	missing := make([]string, 0, len(remoteIDs))
	for _, id := range remoteIDs {
		if d.urls.Get(id) == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	resolved, err := d.resolver.ResolveDownloadURLs(ctx, missing)
	if err != nil {
		return fmt.Errorf("resolving download urls: %w", err)
	}
	for _, r := range resolved {
		d.urls.Set(r.RemoteID, r, ttlcache.DefaultTTL)
	}
	return nil
}

// Fetch downloads the payload for remoteID into the cache directory and
// returns the local path.
func (d *Downloader) Fetch(ctx context.Context, remoteID string) (string, error) {
	return d.FetchInto(ctx, remoteID, d.dir)
}

// FetchInto downloads the payload for remoteID into dir and returns the
// local path. A payload already present there is reused: remote ids are
// content addressed, so the name alone identifies the bytes.
func (d *Downloader) FetchInto(ctx context.Context, remoteID, dir string) (string, error) {
	loc, err := d.location(ctx, remoteID)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(dir, cacheFileName(loc))
	if filex.Exists(d.fs, dst) {
		d.logger.Debug(ctx, "payload already cached", "remote_id", remoteID, "path", dst)
		return dst, nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if err := d.download(ctx, loc.URL, dst); err != nil {
		return "", err
	}

	d.logger.Debug(ctx, "payload downloaded", "remote_id", remoteID, "path", dst)
	return dst, nil
}

// Close stops the URL cache janitor.
func (d *Downloader) Close() {
	d.urls.Stop()
}

func (d *Downloader) location(ctx context.Context, remoteID string) (api.ResolvedURL, error) {
	if item := d.urls.Get(remoteID); item != nil {
		return item.Value(), nil
	}
	// cache miss: the batch resolve may have expired or omitted this id
	if err := d.ResolveURLs(ctx, []string{remoteID}); err != nil {
		return api.ResolvedURL{}, err
	}
	item := d.urls.Get(remoteID)
	if item == nil {
		return api.ResolvedURL{}, fmt.Errorf("no download location for %s", remoteID)
	}
	return item.Value(), nil
}

func (d *Downloader) download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching payload: unexpected status %d", resp.StatusCode)
	}

	if err := filex.EnsureDir(d.fs, filepath.Dir(dst)); err != nil {
		return err
	}

	// stream to a scratch name first so an interrupted download never
	// leaves a plausible-looking payload behind
	tmp := dst + ".part"
	f, err := d.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		_ = d.fs.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = d.fs.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := d.fs.Rename(tmp, dst); err != nil {
		_ = d.fs.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

// cacheFileName names the cached payload after its content-addressed
// remote id, keeping the original extension so previews can sniff types.
func cacheFileName(loc api.ResolvedURL) string {
	ext := filepath.Ext(loc.FileName)
	if ext == "" && loc.FileType != "" {
		ext = "." + loc.FileType
	}
	return loc.RemoteID + ext
}
