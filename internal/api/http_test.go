package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func newTestClient(t *testing.T, baseURL, token string) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(&Config{BaseURL: baseURL, Token: token})
	require.NoError(t, err)
	return c
}

func TestListProjects(t *testing.T) {
	token := testToken(t, time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/projects", r.URL.Path)
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []ProjectSummary{
				{ProjectUID: "p1", Name: "Harbour Bridge", ContentHash: "h1", DefectCount: 2, EventCount: 5},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, token)
	got, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ProjectUID)
	assert.Equal(t, "h1", got[0].ContentHash)
}

func TestGetProjectDetail_RawTreePassesThrough(t *testing.T) {
	token := testToken(t, time.Now().Add(time.Hour))

	rawTree := `{"id":"root","children":[{"id":"c1","fileId":"r1"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/projects/p1", r.URL.Path)
		_, _ = w.Write([]byte(`{"project":{"projectUid":"p1","contentHash":"h2"},"assetTree":` + rawTree + `,"defects":[{"defectUid":"d1","imageRemoteIds":["img1"]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, token)
	got, err := c.GetProjectDetail(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.Project.ContentHash)
	assert.JSONEq(t, rawTree, string(got.AssetTree))
	require.Len(t, got.Defects, 1)
	assert.Equal(t, []string{"img1"}, got.Defects[0].ImageRemoteIDs)
}

func TestResolveDownloadURLs(t *testing.T) {
	token := testToken(t, time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/assets/resolve", r.URL.Path)

		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"r1", "r2"}, body["remoteIds"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []ResolvedURL{
				{RemoteID: "r1", URL: "http://storage/r1", FileName: "a.jpg"},
				{RemoteID: "r2", URL: "http://storage/r2", FileName: "b.pdf"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, token)
	got, err := c.ResolveDownloadURLs(context.Background(), []string{"r1", "r2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "http://storage/r1", got[0].URL)
}

func TestResolveDownloadURLs_EmptyInputSkipsCall(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", testToken(t, time.Now().Add(time.Hour)))

	got, err := c.ResolveDownloadURLs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateUploadTask(t *testing.T) {
	token := testToken(t, time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/upload/tasks", r.URL.Path)

		var body struct {
			TaskUID          string              `json:"taskUid"`
			TargetProjectUID string              `json:"targetProjectUid"`
			Packages         []PackageDescriptor `json:"packages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "task1", body.TaskUID)
		assert.Equal(t, "p1", body.TargetProjectUID)
		require.Len(t, body.Packages, 1)
		assert.Equal(t, "digest1", body.Packages[0].Digest)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []UploadTicket{
				{Digest: "digest1", ObjectID: "obj1", Host: "http://storage", Directory: "uploads", Policy: "pol", Signature: "sig", AccessID: "acc"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, token)
	got, err := c.CreateUploadTask(context.Background(), "task1", "p1",
		[]PackageDescriptor{{Name: "e1.zip", Digest: "digest1", SizeBytes: 10}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "obj1", got[0].ObjectID)
	assert.Equal(t, "sig", got[0].Signature)
}

func TestPollTaskStatus(t *testing.T) {
	token := testToken(t, time.Now().Add(time.Hour))

	complete := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/upload/tasks/task1/status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]bool{"complete": complete})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, token)

	got, err := c.PollTaskStatus(context.Background(), "task1")
	require.NoError(t, err)
	assert.False(t, got)

	complete = true
	got, err = c.PollTaskStatus(context.Background(), "task1")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestExpiredTokenFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected with an expired token")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testToken(t, time.Now().Add(-time.Minute)))
	_, err := c.ListProjects(context.Background())
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestMissingToken(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", "")
	_, err := c.ListProjects(context.Background())
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestTransportFailureMapsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from now on

	c := newTestClient(t, srv.URL, testToken(t, time.Now().Add(time.Hour)))
	_, err := c.ListProjects(context.Background())
	require.ErrorIs(t, err, common.ErrUnavailable)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, common.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `{}`, common.ErrUnauthorized},
		{"not found", http.StatusNotFound, `{}`, common.ErrNotFound},
		{"server error", http.StatusInternalServerError, `{}`, common.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, testToken(t, time.Now().Add(time.Hour)))
			_, err := c.ListProjects(context.Background())
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBadRequestSurfacesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorType":"VALIDATION","message":"digest is malformed"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testToken(t, time.Now().Add(time.Hour)))
	_, err := c.CreateUploadTask(context.Background(), "t1", "p1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest is malformed")
}
