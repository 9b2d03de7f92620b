// pattern: Imperative Shell
package instance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"wtsync/internal/cache"
	"wtsync/internal/folders"
)

// Client is a thin HTTP client for communicating with a running daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given base URL.
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, 10*time.Second)
}

// NewClientWithTimeout creates a Client with a custom timeout.
// Used for refreshes, which wait for a full rebuild.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RefreshResult is the daemon's answer to a refresh.
type RefreshResult struct {
	Scope string `json:"scope"`
	Count int    `json:"count"`
}

// Worktrees fetches the cached snapshot of scope.
func (c *Client) Worktrees(scope cache.Scope) ([]cache.Item, error) {
	var items []cache.Item
	err := c.do(http.MethodGet, "/api/worktrees?scope="+url.QueryEscape(string(scope)), nil, &items)
	return items, err
}

// Folders fetches the registered folders.
func (c *Client) Folders() ([]folders.GitFolder, error) {
	var list []folders.GitFolder
	err := c.do(http.MethodGet, "/api/folders", nil, &list)
	return list, err
}

// Refresh asks the daemon to rebuild scope and waits for it.
func (c *Client) Refresh(scope cache.Scope) (RefreshResult, error) {
	var res RefreshResult
	err := c.do(http.MethodPost, "/api/refresh?scope="+url.QueryEscape(string(scope)), nil, &res)
	return res, err
}

// SetWorkspace tells the daemon which folders are open in the workspace and
// returns the main folders it resolved.
func (c *Client) SetWorkspace(dirs []string) ([]string, error) {
	var res struct {
		MainFolders []string `json:"mainFolders"`
	}
	err := c.do(http.MethodPut, "/api/workspace", map[string][]string{"folders": dirs}, &res)
	return res.MainFolders, err
}

// do performs a request with an optional JSON body and decodes the JSON
// response into out.
func (c *Client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to wtsync daemon: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(respBody)
		return fmt.Errorf("wtsync daemon returned status %d: %s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// extractErrorMessage attempts to extract the error message from a JSON response body.
// If the body is not valid JSON or doesn't have an "error" field, returns the raw body string.
func extractErrorMessage(body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return string(body)
}
