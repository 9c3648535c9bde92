package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fieldsync/internal/api"
	"github.com/dmitrijs2005/fieldsync/internal/config"
	"github.com/dmitrijs2005/fieldsync/internal/models"
	eventrepo "github.com/dmitrijs2005/fieldsync/internal/repositories/events"
	"github.com/dmitrijs2005/fieldsync/internal/storage"
)

func testToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

// fakeBackend serves the slice of the inspection API the engine touches,
// plus a direct-to-storage upload endpoint issuing tickets against itself.
type fakeBackend struct {
	mux *http.ServeMux
	url string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{mux: http.NewServeMux()}
	srv := httptest.NewServer(b.mux)
	t.Cleanup(srv.Close)
	b.url = srv.URL

	b.mux.HandleFunc("GET /api/v1/projects", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": []api.ProjectSummary{
			{ProjectUID: "p1", Name: "Depot", ContentHash: "hash-a", DefectCount: 1, EventCount: 1},
		}})
	})
	b.mux.HandleFunc("GET /api/v1/projects/p1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"project":   api.ProjectSummary{ProjectUID: "p1", Name: "Depot", ContentHash: "hash-a"},
			"assetTree": []any{},
			"defects":   []any{},
		})
	})
	b.mux.HandleFunc("POST /api/v1/upload/tasks", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Packages []api.PackageDescriptor `json:"packages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tickets := make([]api.UploadTicket, 0, len(req.Packages))
		for _, p := range req.Packages {
			tickets = append(tickets, api.UploadTicket{
				Digest:    p.Digest,
				ObjectID:  "obj-1",
				Host:      b.url + "/storage",
				Directory: "incoming",
				Policy:    "cG9saWN5",
				Signature: "c2ln",
				AccessID:  "acc",
			})
		}
		writeJSON(w, map[string]any{"data": tickets})
	})
	b.mux.HandleFunc("GET /api/v1/upload/tasks/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"complete": true})
	})
	b.mux.HandleFunc("POST /storage", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return b
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig(t *testing.T, backendURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.APIBaseURL = backendURL
	cfg.APIToken = testToken(t)
	cfg.BatchPollInterval = time.Millisecond
	cfg.SinglePollInterval = time.Millisecond
	cfg.RetryAttempts = 1
	cfg.RetryDelay = time.Millisecond
	return cfg
}

// seedEvent creates the event row and its directory before the engine opens
// the database, the way the recording UI would have.
func seedEvent(t *testing.T, cfg *config.Config, eventUID string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))
	db, err := storage.InitDatabase(ctx, cfg.DatabasePath())
	require.NoError(t, err)
	err = eventrepo.NewSQLiteRepository(db).CreateOrUpdate(ctx, &models.Event{
		EventUID:   eventUID,
		ProjectUID: "p1",
		Title:      "pier inspection",
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	dir := filepath.Join(cfg.EventsDir(), eventUID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("crack in pier 3"), 0o644))
}

func TestEngine_SyncAndUpload(t *testing.T) {
	backend := newFakeBackend(t)
	cfg := testConfig(t, backend.url)
	seedEvent(t, cfg, "e1")

	ctx := context.Background()
	eng, err := NewEngine(ctx, cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	// first pass fetches the project detail
	ok, msg := eng.SyncAllProjects(ctx)
	assert.True(t, ok, msg)
	assert.Contains(t, msg, "1 fetched")

	// unchanged hash: the second pass only refreshes counters
	ok, msg = eng.SyncAllProjects(ctx)
	assert.True(t, ok, msg)
	assert.Contains(t, msg, "1 counters-only")

	projects, err := eng.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "hash-a", projects[0].ContentHash)

	pending, err := eng.UnsyncedEvents(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e1", pending[0].EventUID)

	ok, msg = eng.UploadEvent(ctx, "e1", "p1")
	assert.True(t, ok, msg)
	assert.True(t, strings.HasPrefix(msg, "uploaded 1/1"), msg)

	pending, err = eng.UnsyncedEvents(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// synced events still count as local
	local, err := eng.LocalEventCount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, local)

	ok, msg = eng.RetryFailedAssets(ctx, "p1")
	assert.True(t, ok, msg)
	assert.Contains(t, msg, "assets cached")
}

func TestNewEngine_CreatesDataLayout(t *testing.T) {
	backend := newFakeBackend(t)
	cfg := testConfig(t, backend.url)

	eng, err := NewEngine(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	for _, dir := range []string{cfg.EventsDir(), cfg.AssetCacheDir(), cfg.ImageCacheDir(), cfg.ScratchDir()} {
		fi, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, fi.IsDir())
	}
	_, err = os.Stat(cfg.DatabasePath())
	assert.NoError(t, err)
}

func TestNewEngine_RejectsBadBaseURL(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.APIBaseURL = ""

	_, err := NewEngine(context.Background(), cfg, nil)
	assert.Error(t, err)
}
