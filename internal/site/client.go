// Package site implements the admin API collaborators: job-based page
// discovery, markdown content retrieval, and the raw JSON endpoints the
// user-index builder and the delivery engine submit to.
package site

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloudadoption/media-log-ingestor/internal/mediaref"
)

// Config holds client construction knobs.
type Config struct {
	// AdminURL is the base URL of the admin API.
	AdminURL string
	// ContentURL overrides the preview host the markdown fetcher reads
	// from. Empty derives it from the site context.
	ContentURL string
	// Token is sent as a bearer credential on every request.
	Token string
	// Timeout bounds each individual HTTP request.
	Timeout time.Duration
	// PollInterval is the pause between job state checks.
	PollInterval time.Duration
}

// Client talks to the admin API and the preview content host.
type Client struct {
	http         *http.Client
	adminURL     string
	contentURL   string
	token        string
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewClient constructs a Client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Client{
		http:         &http.Client{Timeout: timeout},
		adminURL:     strings.TrimSuffix(cfg.AdminURL, "/"),
		contentURL:   strings.TrimSuffix(cfg.ContentURL, "/"),
		token:        cfg.Token,
		pollInterval: interval,
		logger:       logger,
	}
}

// Job is the handle returned by the bulk status API.
type Job struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Links struct {
		Self    string `json:"self"`
		Details string `json:"details"`
	} `json:"links"`
}

// Terminal reports whether the job has reached a terminal state.
func (j Job) Terminal() bool {
	switch j.State {
	case "completed", "stopped", "failed":
		return true
	}
	return false
}

// Resource is one discovered site resource.
type Resource struct {
	Path string `json:"path"`
}

// LogURL builds the event-log read URL for the site, scoped by a since
// timestamp and page size.
func (c *Client) LogURL(sc mediaref.SiteContext, since time.Time, limit int) string {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("limit", fmt.Sprint(limit))
	return fmt.Sprintf("%s/log/%s/%s/%s?%s", c.adminURL, sc.Org, sc.Site, sc.Ref, q.Encode())
}

// MediaURL builds the media-log resource URL for the site.
func (c *Client) MediaURL(sc mediaref.SiteContext) string {
	return fmt.Sprintf("%s/media/%s/%s/%s", c.adminURL, sc.Org, sc.Site, sc.Ref)
}

// StartBulkStatus submits a bulk status job covering the given paths and
// returns its handle.
func (c *Client) StartBulkStatus(ctx context.Context, sc mediaref.SiteContext, paths []string) (Job, error) {
	if len(paths) == 0 {
		paths = []string{"/*"}
	}
	target := fmt.Sprintf("%s/status/%s/%s/%s/*", c.adminURL, sc.Org, sc.Site, sc.Ref)
	body := map[string]any{"paths": paths, "select": []string{"preview"}}

	var created struct {
		Job   Job `json:"job"`
		Links struct {
			Self    string `json:"self"`
			Details string `json:"details"`
		} `json:"links"`
	}
	status, err := c.doJSON(ctx, http.MethodPost, target, body, &created)
	if err != nil {
		return Job{}, fmt.Errorf("create status job: %w", err)
	}
	if status < 200 || status >= 300 {
		return Job{}, fmt.Errorf("create status job: unexpected status %d", status)
	}
	job := created.Job
	if job.Links.Self == "" {
		job.Links.Self = created.Links.Self
	}
	if job.Links.Details == "" {
		job.Links.Details = created.Links.Details
	}
	if job.Links.Self == "" {
		return Job{}, fmt.Errorf("create status job: response carries no self link")
	}
	return job, nil
}

// PollJob blocks until the job reaches a terminal state, checking at the
// configured interval. No cap is imposed on polling duration beyond the
// caller's context.
func (c *Client) PollJob(ctx context.Context, job Job) (Job, error) {
	for !job.Terminal() {
		select {
		case <-ctx.Done():
			return job, fmt.Errorf("poll job %s: %w", job.Name, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		var current Job
		status, err := c.doJSON(ctx, http.MethodGet, job.Links.Self, nil, &current)
		if err != nil {
			return job, fmt.Errorf("poll job %s: %w", job.Name, err)
		}
		if status < 200 || status >= 300 {
			return job, fmt.Errorf("poll job %s: unexpected status %d", job.Name, status)
		}
		current.Links = job.Links
		job = current
	}
	return job, nil
}

// JobResults fetches the resource list produced by a terminal job.
func (c *Client) JobResults(ctx context.Context, job Job) ([]Resource, error) {
	target := job.Links.Details
	if target == "" {
		target = job.Links.Self + "/details"
	}
	var details struct {
		Data struct {
			Resources []Resource `json:"resources"`
		} `json:"data"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, target, nil, &details)
	if err != nil {
		return nil, fmt.Errorf("fetch job results: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("fetch job results: unexpected status %d", status)
	}
	return details.Data.Resources, nil
}

// FetchMarkdown retrieves the markdown source for a site-relative page path.
func (c *Client) FetchMarkdown(ctx context.Context, sc mediaref.SiteContext, pagePath string) (string, error) {
	base := c.contentURL
	if base == "" {
		base = "https://" + sc.PreviewHost()
	}
	target := base + markdownPath(pagePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build content request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: unexpected status %d", target, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", target, err)
	}
	return string(data), nil
}

// GetJSON issues a GET and decodes a 2xx response body into out. The
// status code is returned in all cases so callers can apply their own
// non-success policies.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) (int, error) {
	return c.doJSON(ctx, http.MethodGet, rawURL, nil, out)
}

// PostJSON issues a POST with a JSON body and returns the status code plus
// a snippet of the response body for error reporting.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any) (int, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, "", fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("post %s: %w", rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return resp.StatusCode, string(snippet), nil
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", strings.ToLower(method), rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", rawURL, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
}

// markdownPath maps a site-relative page path to its markdown source path.
// Folder paths resolve to index.md; paths that already carry an extension
// are requested as-is.
func markdownPath(pagePath string) string {
	if !strings.HasPrefix(pagePath, "/") {
		pagePath = "/" + pagePath
	}
	if strings.HasSuffix(pagePath, "/") {
		return pagePath + "index.md"
	}
	if path.Ext(pagePath) != "" {
		return pagePath
	}
	return pagePath + ".md"
}
