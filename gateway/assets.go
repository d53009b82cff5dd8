package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxAssetSize caps uploaded overlay assets (sounds, animations).
const MaxAssetSize = 20 * 1024 * 1024

// ErrAssetTooLarge is returned when an upload exceeds MaxAssetSize.
var ErrAssetTooLarge = errors.New("gateway: asset exceeds size limit")

// DiskAssets stores uploaded overlay assets on the local filesystem under a
// publicly served static prefix. Object paths are deterministic per
// user/slot, so re-uploading overwrites the previous asset.
type DiskAssets struct {
	dir     string
	baseURL string
}

// NewDiskAssets creates an asset store rooted at dir, serving URLs under baseURL.
func NewDiskAssets(dir, baseURL string) *DiskAssets {
	return &DiskAssets{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload writes the object and returns its public URL. The write goes through
// a temporary file and a rename, so a concurrent reader never sees a partial
// asset and overwrite-on-conflict is atomic.
func (d *DiskAssets) Upload(ctx context.Context, objectPath string, r io.Reader) (string, error) {
	rel, err := d.safePath(objectPath)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(d.dir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create asset directory: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(dst), "."+uuid.NewString()+".tmp")
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create asset file: %w", err)
	}

	lr := &io.LimitedReader{R: r, N: MaxAssetSize + 1}
	written, err := io.Copy(out, lr)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write asset: %w", err)
	}
	if written > MaxAssetSize {
		_ = os.Remove(tmp)
		return "", ErrAssetTooLarge
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("store asset: %w", err)
	}

	return d.PublicURL(objectPath), nil
}

// PublicURL derives the URL an overlay client uses to load an object.
func (d *DiskAssets) PublicURL(objectPath string) string {
	return d.baseURL + "/" + path.Clean(strings.TrimLeft(objectPath, "/"))
}

// Remove deletes objects, ignoring ones that are already gone.
func (d *DiskAssets) Remove(ctx context.Context, objectPaths ...string) error {
	var firstErr error
	for _, p := range objectPaths {
		rel, err := d.safePath(p)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, rel)); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// safePath normalizes an object path and rejects traversal outside the root.
func (d *DiskAssets) safePath(objectPath string) (string, error) {
	rel := path.Clean(strings.TrimLeft(objectPath, "/"))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("invalid asset path %q", objectPath)
	}
	return filepath.FromSlash(rel), nil
}
