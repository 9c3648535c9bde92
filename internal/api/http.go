package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

const defaultTimeout = 10 * time.Second

// Config carries everything needed to construct an HTTPClient.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  logging.Logger
}

// ErrorResponse is the backend's JSON error body.
type ErrorResponse struct {
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
}

// HTTPClient implements Client over the backend's JSON API.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
	logger     logging.Logger
}

// NewHTTPClient validates the config and returns a ready client.
func NewHTTPClient(cfg *Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL %q: %w", cfg.BaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop{}
	}

	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		token:      cfg.Token,
		logger:     logger,
	}, nil
}

// checkToken pre-checks the bearer token expiry locally so an expired
// session fails fast instead of costing a round trip. Signature
// verification stays on the server.
func (c *HTTPClient) checkToken() error {
	if c.token == "" {
		return common.ErrUnauthorized
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		return fmt.Errorf("failed to parse access token: %w", common.ErrUnauthorized)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return fmt.Errorf("access token expired: %w", common.ErrUnauthorized)
	}
	return nil
}

// doRequest sends one JSON request and decodes the response into target
// when it is non-nil.
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, queryParams map[string]string, body, target any) error {
	if err := c.checkToken(); err != nil {
		return err
	}

	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(queryParams) > 0 {
		q := reqURL.Query()
		for k, v := range queryParams {
			q.Set(k, v)
		}
		reqURL.RawQuery = q.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body for %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(common.AuthHeaderName, "Bearer "+c.token)

	c.logger.Debug(ctx, "sending request", "method", method, "url", reqURL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error(ctx, "http request failed", "method", method, "url", reqURL.String(), "error", err)
		return fmt.Errorf("http request %s %s: %w", method, path, common.ErrUnavailable)
	}
	defer resp.Body.Close()

	if err := c.mapStatus(ctx, resp, method, path); err != nil {
		return err
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response body for %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *HTTPClient) mapStatus(ctx context.Context, resp *http.Response, method, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	c.logger.Warn(ctx, "received non-2xx status code", "method", method, "path", path, "status_code", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return common.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("server status %d for %s %s: %w", resp.StatusCode, method, path, common.ErrUnavailable)
	}

	var errResp ErrorResponse
	if b, err := io.ReadAll(resp.Body); err == nil {
		if jsonErr := json.Unmarshal(b, &errResp); jsonErr == nil && errResp.Message != "" {
			return fmt.Errorf("server error (status %d): %s", resp.StatusCode, errResp.Message)
		}
	}
	return fmt.Errorf("server returned status %d for %s %s", resp.StatusCode, method, path)
}

func (c *HTTPClient) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	var response struct {
		Data []ProjectSummary `json:"data"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "api/v1/projects", nil, nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func (c *HTTPClient) GetProjectDetail(ctx context.Context, projectUID string) (*ProjectDetail, error) {
	if projectUID == "" {
		return nil, fmt.Errorf("project uid cannot be empty")
	}
	detail := &ProjectDetail{}
	if err := c.doRequest(ctx, http.MethodGet, "api/v1/projects/"+projectUID, nil, nil, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

func (c *HTTPClient) ResolveDownloadURLs(ctx context.Context, remoteIDs []string) ([]ResolvedURL, error) {
	if len(remoteIDs) == 0 {
		return nil, nil
	}
	payload := map[string]any{"remoteIds": remoteIDs}
	var response struct {
		Data []ResolvedURL `json:"data"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "api/v1/assets/resolve", nil, payload, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func (c *HTTPClient) CreateUploadTask(ctx context.Context, taskUID, targetProjectUID string, packages []PackageDescriptor) ([]UploadTicket, error) {
	if taskUID == "" {
		return nil, fmt.Errorf("task uid cannot be empty")
	}
	if targetProjectUID == "" {
		return nil, fmt.Errorf("target project uid cannot be empty")
	}
	payload := map[string]any{
		"taskUid":          taskUID,
		"targetProjectUid": targetProjectUID,
		"packages":         packages,
	}
	var response struct {
		Data []UploadTicket `json:"data"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "api/v1/upload/tasks", nil, payload, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func (c *HTTPClient) PollTaskStatus(ctx context.Context, taskUID string) (bool, error) {
	if taskUID == "" {
		return false, fmt.Errorf("task uid cannot be empty")
	}
	var response struct {
		Complete bool `json:"complete"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "api/v1/upload/tasks/"+taskUID+"/status", nil, nil, &response); err != nil {
		return false, err
	}
	return response.Complete, nil
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
