package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "DUBLETT_HTTP_TIMEOUT"
	tenantEnvKey       = "DUBLETT_TENANT"
	adminTokenEnvKey   = "DUBLETT_ADMIN_TOKEN"

	tenantHeader     = "X-Tenant-ID"
	adminTokenHeader = "X-Admin-Token"
)

// Client is a simple HTTP client for the dublett API.
type Client struct {
	baseURL    string
	http       *http.Client
	tenantID   string
	adminToken string
}

// NewClient creates a new API client. The tenant defaults from the
// environment and can be overridden per invocation with SetTenant.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: httpTimeoutFromEnv()},
		tenantID:   strings.TrimSpace(os.Getenv(tenantEnvKey)),
		adminToken: strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
	}
}

// SetTenant overrides the tenant the client acts for.
func (c *Client) SetTenant(tenantID string) {
	c.tenantID = strings.TrimSpace(tenantID)
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

// Upload sends one document through multipart ingestion. Name is the
// document's display name; uploader identifies the member who uploaded it.
func (c *Client) Upload(ctx context.Context, name, uploader string, r io.Reader) (UploadResponse, error) {
	var resp UploadResponse

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if name != "" {
		if err := writer.WriteField("name", name); err != nil {
			return resp, err
		}
	}
	if uploader != "" {
		if err := writer.WriteField("uploader", uploader); err != nil {
			return resp, err
		}
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return resp, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return resp, err
	}
	if err := writer.Close(); err != nil {
		return resp, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", &body)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setTenantHeader(req)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func (c *Client) ListGroups(ctx context.Context, query url.Values) (ListGroupsResponse, error) {
	var resp ListGroupsResponse
	err := c.do(ctx, http.MethodGet, "/v1/groups", query, nil, &resp)
	return resp, err
}

func (c *Client) GetGroup(ctx context.Context, id string) (GroupResponse, error) {
	var resp GroupResponse
	err := c.do(ctx, http.MethodGet, "/v1/groups/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) ListActions(ctx context.Context, id string) ([]map[string]any, error) {
	var resp []map[string]any
	err := c.do(ctx, http.MethodGet, "/v1/groups/"+url.PathEscape(id)+"/actions", nil, nil, &resp)
	return resp, err
}

func (c *Client) Resolve(ctx context.Context, id string, req ResolveRequest) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodPost, "/v1/groups/"+url.PathEscape(id)+"/resolve", nil, req, &resp)
	return resp, err
}

func (c *Client) ToggleAutoResolve(ctx context.Context, id string, enabled bool) (GroupResponse, error) {
	var resp GroupResponse
	err := c.do(ctx, http.MethodPost, "/v1/groups/"+url.PathEscape(id)+"/auto-resolve", nil, ToggleAutoResolveRequest{Enabled: enabled}, &resp)
	return resp, err
}

// Download streams a stored document's bytes to a writer.
func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/files/"+url.PathEscape(fileID)+"/content", nil)
	if err != nil {
		return err
	}
	c.setTenantHeader(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// AdminReap asks the server to revert stale in-progress claims.
func (c *Client) AdminReap(ctx context.Context) (ReapResponse, error) {
	var resp ReapResponse
	err := c.doAdmin(ctx, http.MethodPost, "/v1/admin/reap", nil, &resp)
	return resp, err
}

// AdminAutoResolve runs one automatic-resolution sweep for the client's
// tenant.
func (c *Client) AdminAutoResolve(ctx context.Context, limit int) (AutoResolveRunResponse, error) {
	var resp AutoResolveRunResponse
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	err := c.doAdmin(ctx, http.MethodPost, "/v1/admin/auto-resolve", query, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setTenantHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) doAdmin(ctx context.Context, method, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	c.setTenantHeader(req)
	c.setAdminHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{Status: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
	}
	return fmt.Errorf("api error: %s", resp.Status)
}

func (c *Client) setTenantHeader(req *http.Request) {
	if c.tenantID == "" || req == nil {
		return
	}
	req.Header.Set(tenantHeader, c.tenantID)
}

func (c *Client) setAdminHeader(req *http.Request) {
	if c.adminToken == "" || req == nil {
		return
	}
	req.Header.Set(adminTokenHeader, c.adminToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
