package transfer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getterFunc adapts a function to the Getter interface.
type getterFunc func(ctx context.Context, url string) (*http.Response, error)

func (f getterFunc) FetchResource(ctx context.Context, url string) (*http.Response, error) {
	return f(ctx, url)
}

// serverGetter fetches through srv's client without auth plumbing.
func serverGetter(srv *httptest.Server) Getter {
	return getterFunc(func(ctx context.Context, url string) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		return srv.Client().Do(req)
	})
}

// staticResponse builds a response by hand so ContentLength and body can
// disagree.
func staticResponse(status int, contentLength int64, body string) *http.Response {
	return &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		ContentLength: contentLength,
		Header:        http.Header{},
		Body:          io.NopCloser(strings.NewReader(body)),
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestTransfer_ContentDispositionFilename(t *testing.T) {
	const content = "scene bytes, definitely a tarball"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="LC08_L2SP_042034.tar.gz"`)
		_, _ = io.WriteString(w, content)
	}))
	defer srv.Close()

	dest := t.TempDir()
	var lastWritten, lastTotal int64
	res, err := Transfer(context.Background(), serverGetter(srv), srv.URL+"/download/12345", dest,
		func(written, total int64) { lastWritten, lastTotal = written, total })
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, "LC08_L2SP_042034.tar.gz"), res.Path)
	assert.Equal(t, int64(len(content)), res.Bytes)
	assert.Equal(t, int64(len(content)), res.Declared)
	assert.Equal(t, int64(len(content)), lastWritten)
	assert.Equal(t, int64(len(content)), lastTotal)

	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))

	// No temp file left behind.
	assert.Equal(t, []string{"LC08_L2SP_042034.tar.gz"}, dirEntries(t, dest))
}

func TestTransfer_FilenameFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "tif bytes")
	}))
	defer srv.Close()

	dest := t.TempDir()
	res, err := Transfer(context.Background(), serverGetter(srv), srv.URL+"/files/granule.tif?token=abc", dest, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "granule.tif"), res.Path)
}

func TestTransfer_HostileFilenameStaysInDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="../../evil.sh"`)
		_, _ = io.WriteString(w, "#!/bin/sh")
	}))
	defer srv.Close()

	dest := t.TempDir()
	res, err := Transfer(context.Background(), serverGetter(srv), srv.URL+"/x", dest, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "evil.sh"), res.Path)
	assert.Equal(t, []string{"evil.sh"}, dirEntries(t, dest))
}

func TestTransfer_SizeMismatchRemovesPartial(t *testing.T) {
	g := getterFunc(func(_ context.Context, _ string) (*http.Response, error) {
		return staticResponse(http.StatusOK, 100, strings.Repeat("x", 50)), nil
	})

	dest := t.TempDir()
	_, err := Transfer(context.Background(), g, "https://example.com/short.bin", dest, nil)
	require.ErrorIs(t, err, ErrSizeMismatch)
	assert.Contains(t, err.Error(), "got 50 bytes, expected 100")
	assert.Empty(t, dirEntries(t, dest))
}

func TestTransfer_UnexpectedStatus(t *testing.T) {
	g := getterFunc(func(_ context.Context, _ string) (*http.Response, error) {
		return staticResponse(http.StatusInternalServerError, 0, ""), nil
	})

	dest := t.TempDir()
	_, err := Transfer(context.Background(), g, "https://example.com/x", dest, nil)
	require.Error(t, err)
	assert.Empty(t, dirEntries(t, dest))
}

func TestTransfer_CancellationRemovesPartial(t *testing.T) {
	g := getterFunc(func(_ context.Context, _ string) (*http.Response, error) {
		return staticResponse(http.StatusOK, 10, "0123456789"), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := t.TempDir()
	_, err := Transfer(ctx, g, "https://example.com/x.bin", dest, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dirEntries(t, dest))
}

func TestTransfer_NoContentLength(t *testing.T) {
	g := getterFunc(func(_ context.Context, _ string) (*http.Response, error) {
		return staticResponse(http.StatusOK, -1, "streamed body"), nil
	})

	dest := t.TempDir()
	var totals []int64
	res, err := Transfer(context.Background(), g, "https://example.com/stream.bin", dest,
		func(_, total int64) { totals = append(totals, total) })
	require.NoError(t, err)
	assert.Equal(t, int64(13), res.Bytes)
	assert.Equal(t, int64(-1), res.Declared)
	require.NotEmpty(t, totals)
	assert.Equal(t, int64(-1), totals[0])
}

func TestFilenameFor(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		url         string
		want        string
	}{
		{"disposition wins", `attachment; filename="a.tar.gz"`, "https://h/path/b.zip", "a.tar.gz"},
		{"url fallback", "", "https://h/path/b.zip", "b.zip"},
		{"url with query", "", "https://h/path/b.zip?sig=xyz", "b.zip"},
		{"escaped name", `attachment; filename="my%20scene.tif"`, "https://h/x", "my scene.tif"},
		{"bare host", "", "https://h/", "download"},
		{"traversal stripped", `attachment; filename="../../../etc/passwd"`, "https://h/x", "passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := staticResponse(http.StatusOK, 0, "")
			if tt.disposition != "" {
				resp.Header.Set("Content-Disposition", tt.disposition)
			}
			assert.Equal(t, tt.want, filenameFor(resp, tt.url))
		})
	}
}
