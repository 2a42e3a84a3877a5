// Package content resolves score and playlist filenames to their raw
// bytes, either from a local directory or from the collaborator server.
package content

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Store resolves a filename to raw content.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// Dir serves content from a local directory. Name resolution refuses to
// escape the root.
type Dir struct {
	root string
}

// NewDir creates a directory-backed store.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Load reads the named file from the directory.
func (d *Dir) Load(_ context.Context, name string) ([]byte, error) {
	clean := filepath.Clean("/" + name)
	data, err := os.ReadFile(filepath.Join(d.root, clean))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	return data, nil
}

// Client fetches content from the collaborator server: scores from
// /abc/single/{name}, playlists from /playlist/{name}.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a remote content store for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Load fetches the named resource.
func (c *Client) Load(ctx context.Context, name string) ([]byte, error) {
	path := "/abc/single/"
	if strings.HasSuffix(name, ".pls") {
		path = "/playlist/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+url.PathEscape(name), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", name)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch %s: status %d", name, resp.StatusCode)
	}

	const limit = 4 << 20 // scores and playlists are small text files
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return data, nil
}
