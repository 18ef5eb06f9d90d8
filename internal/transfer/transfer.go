// Package transfer streams one remote resource to disk: filename from the
// Content-Disposition header, fixed-size chunked writes into a temp file,
// byte-count verification against Content-Length, then rename into place.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// chunkSize is the write granularity; progress is reported per chunk.
const chunkSize = 32 * 1024

// ErrSizeMismatch is returned when the body ends before (or after) the
// size the server declared. The partial file is removed.
var ErrSizeMismatch = errors.New("transfer: size mismatch")

// Getter issues an authenticated streaming GET.
type Getter interface {
	FetchResource(ctx context.Context, url string) (*http.Response, error)
}

// ProgressFunc receives cumulative written bytes and the declared total
// (-1 when the server sent no Content-Length) as the transfer proceeds.
type ProgressFunc func(written, total int64)

// Result describes a finished transfer.
type Result struct {
	Path     string // final file path
	Bytes    int64  // bytes written
	Declared int64  // Content-Length, -1 if absent
}

// Transfer fetches rawURL through g and writes it into destDir under the
// server-designated filename. The file appears under its final name only
// after the full body arrived and was synced; interrupted or short
// transfers leave nothing behind.
func Transfer(ctx context.Context, g Getter, rawURL, destDir string, report ProgressFunc) (Result, error) {
	resp, err := g.FetchResource(ctx, rawURL)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("transfer: unexpected status %s", resp.Status)
	}

	name := filenameFor(resp, rawURL)
	declared := resp.ContentLength

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create destination dir: %w", err)
	}

	partPath := filepath.Join(destDir, name+".part")
	f, err := os.Create(partPath)
	if err != nil {
		return Result{}, fmt.Errorf("create temp file: %w", err)
	}

	written, err := copyChunks(ctx, f, resp.Body, declared, report)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(partPath)
		return Result{}, err
	}
	if declared >= 0 && written != declared {
		_ = f.Close()
		_ = os.Remove(partPath)
		return Result{}, fmt.Errorf("%w: got %d bytes, expected %d", ErrSizeMismatch, written, declared)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(partPath)
		return Result{}, fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(partPath)
		return Result{}, fmt.Errorf("close temp file: %w", err)
	}

	finalPath := filepath.Join(destDir, name)
	if err := os.Rename(partPath, finalPath); err != nil {
		_ = os.Remove(partPath)
		return Result{}, fmt.Errorf("finalize %s: %w", name, err)
	}

	return Result{Path: finalPath, Bytes: written, Declared: declared}, nil
}

func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, total int64, report ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, fmt.Errorf("write chunk: %w", werr)
			}
			written += int64(n)
			if report != nil {
				report(written, total)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("read body: %w", rerr)
		}
	}
}

// filenameFor derives the destination filename from Content-Disposition,
// falling back to the URL's last path segment. The result is always a bare
// base name, so a hostile header cannot escape destDir.
func filenameFor(resp *http.Response, rawURL string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := sanitizeName(params["filename"]); name != "" {
				return name
			}
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if name := sanitizeName(filepath.Base(u.Path)); name != "" {
			return name
		}
	}
	return "download"
}

func sanitizeName(name string) string {
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	name = strings.Trim(name, `"`)
	name = filepath.Base(name)
	if name == "." || name == "/" || name == string(filepath.Separator) {
		return ""
	}
	return name
}
