package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirLoad(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "tune.abc"), []byte("X:1\n"), 0o644))

	d := NewDir(root)
	data, err := d.Load(context.Background(), "tune.abc")
	require.NoError(t, err)
	assert.Equal(t, "X:1\n", string(data))

	_, err = d.Load(context.Background(), "missing.abc")
	assert.Error(t, err)
}

func TestDirLoadStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("nope"), 0o644))

	d := NewDir(root)
	_, err := d.Load(context.Background(), "../secret.txt")
	assert.Error(t, err)
}

func TestClientRoutesByExtension(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)

	_, err := c.Load(context.Background(), "tune.abc")
	require.NoError(t, err)
	_, err = c.Load(context.Background(), "set.pls")
	require.NoError(t, err)

	assert.Equal(t, []string{"/abc/single/tune.abc", "/playlist/set.pls"}, paths)
}

func TestClientErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	c := NewClient(ts.URL)
	_, err := c.Load(context.Background(), "gone.abc")
	assert.Error(t, err)
}
