// Package imagecache caches downloaded images on disk, keyed by URL.
package imagecache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/tincture/internal/util/hash"
	httputil "github.com/jmylchreest/tincture/internal/util/http"
)

// CacheOptions configures image caching behavior.
type CacheOptions struct {
	// CacheDir is the directory where images will be cached.
	// If empty, defaults to DefaultCacheDir.
	CacheDir string

	// AllowOverwrite forces a fresh download even when a cached copy exists.
	AllowOverwrite bool

	// Fetch carries timeout and size limits for the download.
	Fetch httputil.FetchOptions
}

// DefaultCacheDir returns the default cache directory path.
func DefaultCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine cache directory: %w", err)
		}
		return filepath.Join(home, ".cache", "tincture", "images"), nil
	}
	return filepath.Join(cacheDir, "tincture", "images"), nil
}

// Filename returns the deterministic cache filename for a URL:
// the xxHash of the URL plus the original extension.
func Filename(url string) string {
	ext := filepath.Ext(url)
	if idx := strings.IndexAny(ext, "?#"); idx != -1 {
		ext = ext[:idx]
	}
	if ext == "" || len(ext) > 5 {
		ext = ".img"
	}
	return hash.StringHash(url, hash.DefaultHexLen) + strings.ToLower(ext)
}

// Load returns the image bytes for url, reading the cached copy when present
// and downloading and storing it otherwise.
func Load(ctx context.Context, url string, opts CacheOptions) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("invalid URL: must start with http:// or https://")
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		defaultDir, err := DefaultCacheDir()
		if err != nil {
			return nil, err
		}
		cacheDir = defaultDir
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil { // #nosec G301 - Cache directory needs standard permissions
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cachedPath := filepath.Join(cacheDir, Filename(url))

	if !opts.AllowOverwrite {
		if data, err := os.ReadFile(cachedPath); err == nil { // #nosec G304 - path derived from hash
			return data, nil
		}
	}

	data, err := httputil.Fetch(ctx, url, opts.Fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}

	if err := os.WriteFile(cachedPath, data, 0o644); err != nil { // #nosec G306 - Cache files need standard read permissions
		return nil, fmt.Errorf("failed to write cached image: %w", err)
	}

	return data, nil
}
