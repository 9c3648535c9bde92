package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fieldsync/internal/api"
	"github.com/dmitrijs2005/fieldsync/internal/progress"
)

// storageRecorder collects the multipart uploads a fake storage host receives,
// keyed by the uploaded file name.
type storageRecorder struct {
	mu     sync.Mutex
	keys   map[string]string
	bodies map[string]string
	reject func(key string) bool
}

func newStorageRecorder() *storageRecorder {
	return &storageRecorder{keys: map[string]string{}, bodies: map[string]string{}}
}

func (s *storageRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	key := r.FormValue("key")
	if s.reject != nil && s.reject(key) {
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.keys[hdr.Filename] = key
	s.bodies[hdr.Filename] = string(b)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *storageRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func writeArchive(t *testing.T, fs afero.Fs, eventUID, content string) *Package {
	t.Helper()
	path := filepath.Join(testScratch, eventUID+".zip")
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	return &Package{
		EventUID:    eventUID,
		ArchiveName: eventUID + ".zip",
		ArchivePath: path,
		Digest:      "digest-" + eventUID,
		SizeBytes:   int64(len(content)),
	}
}

func ticketFor(p *Package, host, objectID string) api.UploadTicket {
	return api.UploadTicket{
		Digest:    p.Digest,
		ObjectID:  objectID,
		Host:      host,
		Directory: "incoming/events",
		Policy:    "cG9saWN5",
		Signature: "c2ln",
		AccessID:  "acc-1",
	}
}

func TestUploadAll_MatchesTicketsByDigest(t *testing.T) {
	rec := newStorageRecorder()
	srv := httptest.NewServer(rec)
	defer srv.Close()

	fs := afero.NewMemMapFs()
	p1 := writeArchive(t, fs, "e1", "archive one")
	p2 := writeArchive(t, fs, "e2", "archive two")

	// tickets arrive in the opposite order of the packages
	tickets := []api.UploadTicket{
		ticketFor(p2, srv.URL, "obj-2"),
		ticketFor(p1, srv.URL, "obj-1"),
	}

	u := NewUploader(srv.Client(), fs, nil, nil)
	results := u.UploadAll(context.Background(), []*Package{p1, p2}, tickets)

	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.OK, "event %s: %s", res.EventUID, res.Reason)
	}

	// each archive went to the object named by its own ticket
	assert.Equal(t, "incoming/events/obj-1", rec.keys["e1.zip"])
	assert.Equal(t, "incoming/events/obj-2", rec.keys["e2.zip"])
	assert.Equal(t, "archive one", rec.bodies["e1.zip"])
	assert.Equal(t, "archive two", rec.bodies["e2.zip"])
}

func TestUploadAll_PackageWithoutTicket(t *testing.T) {
	rec := newStorageRecorder()
	srv := httptest.NewServer(rec)
	defer srv.Close()

	fs := afero.NewMemMapFs()
	p1 := writeArchive(t, fs, "e1", "archive one")
	p2 := writeArchive(t, fs, "e2", "archive two")

	u := NewUploader(srv.Client(), fs, nil, nil)
	results := u.UploadAll(context.Background(), []*Package{p1, p2},
		[]api.UploadTicket{ticketFor(p1, srv.URL, "obj-1")})

	require.Len(t, results, 2)
	byUID := map[string]ItemResult{}
	for _, res := range results {
		byUID[res.EventUID] = res
	}
	assert.True(t, byUID["e1"].OK)
	assert.False(t, byUID["e2"].OK)
	assert.Equal(t, "no ticket matched the package digest", byUID["e2"].Reason)
	assert.Equal(t, 1, rec.count())
}

func TestUploadAll_ExtraTicketIgnored(t *testing.T) {
	rec := newStorageRecorder()
	srv := httptest.NewServer(rec)
	defer srv.Close()

	fs := afero.NewMemMapFs()
	p1 := writeArchive(t, fs, "e1", "archive one")

	stray := api.UploadTicket{Digest: "no-such-digest", ObjectID: "obj-x", Host: srv.URL}
	u := NewUploader(srv.Client(), fs, nil, nil)
	results := u.UploadAll(context.Background(), []*Package{p1},
		[]api.UploadTicket{stray, ticketFor(p1, srv.URL, "obj-1")})

	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
	assert.Equal(t, 1, rec.count())
}

func TestUploadAll_RejectionDoesNotStopOthers(t *testing.T) {
	rec := newStorageRecorder()
	rec.reject = func(key string) bool { return key == "incoming/events/obj-1" }
	srv := httptest.NewServer(rec)
	defer srv.Close()

	fs := afero.NewMemMapFs()
	p1 := writeArchive(t, fs, "e1", "archive one")
	p2 := writeArchive(t, fs, "e2", "archive two")

	u := NewUploader(srv.Client(), fs, nil, nil)
	results := u.UploadAll(context.Background(), []*Package{p1, p2}, []api.UploadTicket{
		ticketFor(p1, srv.URL, "obj-1"),
		ticketFor(p2, srv.URL, "obj-2"),
	})

	require.Len(t, results, 2)
	byUID := map[string]ItemResult{}
	for _, res := range results {
		byUID[res.EventUID] = res
	}
	assert.False(t, byUID["e1"].OK)
	assert.Contains(t, byUID["e1"].Reason, "403")
	assert.True(t, byUID["e2"].OK)
	assert.Equal(t, "archive two", rec.bodies["e2.zip"])
}

func TestUploadAll_ArchiveMissingOnDisk(t *testing.T) {
	rec := newStorageRecorder()
	srv := httptest.NewServer(rec)
	defer srv.Close()

	fs := afero.NewMemMapFs()
	p1 := &Package{
		EventUID:    "e1",
		ArchiveName: "e1.zip",
		ArchivePath: filepath.Join(testScratch, "e1.zip"),
		Digest:      "digest-e1",
	}

	u := NewUploader(srv.Client(), fs, nil, nil)
	results := u.UploadAll(context.Background(), []*Package{p1},
		[]api.UploadTicket{ticketFor(p1, srv.URL, "obj-1")})

	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.NotEmpty(t, results[0].Reason)
	assert.Equal(t, 0, rec.count())
}

func TestUploadAll_StepsTracker(t *testing.T) {
	rec := newStorageRecorder()
	srv := httptest.NewServer(rec)
	defer srv.Close()

	fs := afero.NewMemMapFs()
	p1 := writeArchive(t, fs, "e1", "one")
	p2 := writeArchive(t, fs, "e2", "two")

	tracker := progress.NewTracker()
	tracker.Begin("upload", 2)

	u := NewUploader(srv.Client(), fs, tracker, nil)
	u.UploadAll(context.Background(), []*Package{p1, p2}, []api.UploadTicket{
		ticketFor(p1, srv.URL, "obj-1"),
		ticketFor(p2, srv.URL, "obj-2"),
	})

	snap := tracker.Snapshot()
	assert.Equal(t, 2, snap.Completed)
}
