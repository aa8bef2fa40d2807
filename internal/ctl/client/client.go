// Package client is a thin HTTP client for the gateway's job API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/reelworks/reelworks/internal/ctl/version"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "reelctl/"+version.Short())

	return c.httpClient.Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody interface{}) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if respBody != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(respBody)
	}
	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Code != "" {
		return fmt.Errorf("%s: %s", errResp.Code, errResp.Message)
	}
	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
}

func (c *Client) SubmitJob(ctx context.Context, jobType, sourceKey string) (*Job, error) {
	reqBody := map[string]string{
		"job_type":   jobType,
		"source_key": sourceKey,
	}
	var result Job
	if err := c.doJSON(ctx, http.MethodPost, "/v1/jobs", reqBody, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var result Job
	if err := c.doJSON(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListJobs(ctx context.Context, limit, offset int, status string) (*JobList, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if status != "" {
		params.Set("status", status)
	}

	path := "/v1/jobs"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var result JobList
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/jobs/"+url.PathEscape(jobID), nil, nil)
}

func (c *Client) PresignOutput(ctx context.Context, jobID, key string, expirySeconds int) (*PresignedURL, error) {
	params := url.Values{}
	params.Set("key", key)
	if expirySeconds > 0 {
		params.Set("expiry", strconv.Itoa(expirySeconds))
	}

	path := "/v1/jobs/" + url.PathEscape(jobID) + "/outputs/url?" + params.Encode()

	var result PresignedURL
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchURL streams the body of a presigned URL. The caller closes the reader.
func (c *Client) FetchURL(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		return nil, 0, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return resp.Body, resp.ContentLength, nil
}

// WaitForJob polls until the job reaches a terminal status.
func (c *Client) WaitForJob(ctx context.Context, jobID string, pollInterval, timeout time.Duration) (*Job, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			job, err := c.GetJob(ctx, jobID)
			if err != nil {
				return nil, err
			}
			switch job.Status {
			case "completed", "failed", "canceled":
				return job, nil
			}
		}
	}
}
