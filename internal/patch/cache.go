package patch

import (
	"path/filepath"
	"strings"

	"github.com/hollowgate/launcherd/internal/infra"
)

// cacheDirName lives inside the installation so the cache follows the
// install if the user moves it, and is cleaned up with an uninstall.
const cacheDirName = ".patch-cache"

// Cache stores downloaded patch files under a per-installation directory,
// keyed by a sanitized form of each file's relative location. Entries are
// valid iff their on-disk content hash equals the instruction's expected
// hash; valid entries are reused across sessions with no expiry.
type Cache struct {
	dir string
}

// NewCache creates the cache view for an installation path.
func NewCache(installPath string) *Cache {
	return &Cache{dir: filepath.Join(installPath, cacheDirName)}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the cache entry path for a relative file location.
func (c *Cache) Path(location string) string {
	return filepath.Join(c.dir, sanitizeLocation(location))
}

// Valid reports whether a cache entry exists and its content hash matches
// the expected hash (case-insensitive).
func (c *Cache) Valid(location, expectedMD5 string) bool {
	path := c.Path(location)
	if !infra.Exists(path) {
		return false
	}
	sum, err := infra.MD5File(path)
	if err != nil {
		return false
	}
	return strings.EqualFold(sum, expectedMD5)
}

// sanitizeLocation flattens a relative path into a single file name so
// every cache entry sits directly in the cache directory.
func sanitizeLocation(location string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(location)
}
