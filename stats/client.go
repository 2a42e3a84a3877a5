package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Client talks to the statistics collaborator over HTTP. All calls are
// best-effort from the engine's point of view: a failed fetch disables
// auto-continue, a failed record write is logged, never fatal.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the collaborator at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// get issues one GET and fails on non-2xx status.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch "+path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.Errorf("fetch %s: status %d", path, resp.StatusCode)
	}
	return resp, nil
}

// Get fetches the summary for a (filename, tempo, profile) triple.
func (c *Client) Get(ctx context.Context, filename string, qpm int, profile string) (*Summary, error) {
	path := fmt.Sprintf("/score/get/%s/%d/%s",
		url.PathEscape(filename), qpm, url.PathEscape(profile))
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var summary Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, errors.Wrap(err, "decode summary")
	}
	return &summary, nil
}

// Record writes one outcome. The server computes aggregates; the engine
// fires and forgets.
func (c *Client) Record(ctx context.Context, filename string, scorePercent, qpm int, profile string) error {
	path := fmt.Sprintf("/score/set/%s/%d/%d/%s",
		url.PathEscape(filename), scorePercent, qpm, url.PathEscape(profile))
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// SaveProfile persists a new profile name.
func (c *Client) SaveProfile(ctx context.Context, name string) error {
	resp, err := c.get(ctx, "/profile/save/"+url.PathEscape(name))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
