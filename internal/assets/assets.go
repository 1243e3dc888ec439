// Package assets resolves texture files referenced by Spring models.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/spring-s3o/internal/config"
	"github.com/Faultbox/spring-s3o/internal/logger"
	"github.com/Faultbox/spring-s3o/pkg/encoding"
	"github.com/Faultbox/spring-s3o/pkg/formats"
)

// ErrNotFound is returned when no directory holds the requested file.
var ErrNotFound = errors.New("asset not found")

// FindInFolder returns the path of the entry in dir whose name equals name,
// ignoring case.
func FindInFolder(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", dir, err)
	}
	want := encoding.NormalizeName(name)
	for _, e := range entries {
		if strings.ToLower(e.Name()) == want {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrNotFound, name, dir)
}

// TexturesDir walks up from modelPath to the nearest directory named
// objectsDir and returns its sibling named texturesDir. Both names are
// matched ignoring case.
func TexturesDir(modelPath, objectsDir, texturesDir string) (string, error) {
	abs, err := filepath.Abs(modelPath)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(abs)
	for !strings.EqualFold(filepath.Base(dir), objectsDir) {
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no %s directory above %s", ErrNotFound, objectsDir, modelPath)
		}
		dir = parent
	}

	return FindInFolder(filepath.Dir(dir), texturesDir)
}

// Texture is one texture slot of a model with its resolved location.
type Texture struct {
	Slot string // "texture1" or "texture2"
	Name string // Name as stored in the model
	Path string // Resolved path, empty if not found
	Err  error  // Lookup failure, nil when Path is set
}

// Resolver finds texture files for a model. Directories are searched in
// order: the one derived from the model location, then configured extras.
type Resolver struct {
	dirs  []string
	cache *Cache
	log   *zap.Logger
}

// NewResolver creates a resolver for the model at modelPath.
func NewResolver(modelPath string, cfg config.TexturesConfig) *Resolver {
	log := logger.Named("assets")
	r := &Resolver{
		cache: NewCache(),
		log:   log,
	}

	if dir, err := TexturesDir(modelPath, cfg.ObjectsDir, cfg.TexturesDir); err == nil {
		r.dirs = append(r.dirs, dir)
	} else {
		log.Debug("no texture directory next to model", zap.String("model", modelPath), zap.Error(err))
	}
	r.dirs = append(r.dirs, cfg.SearchPaths...)

	return r
}

// Dirs returns the directories searched, in order.
func (r *Resolver) Dirs() []string {
	return r.dirs
}

// Resolve returns the on-disk path of a texture name.
func (r *Resolver) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty texture name", ErrNotFound)
	}

	key := encoding.NormalizeName(name)
	if path, ok := r.cache.Get(key); ok {
		return path, nil
	}

	for _, dir := range r.dirs {
		path, err := FindInFolder(dir, filepath.Base(name))
		if err == nil {
			r.cache.Set(key, path)
			r.log.Debug("resolved texture", zap.String("name", name), zap.String("path", path))
			return path, nil
		}
	}

	r.log.Warn("texture not found", zap.String("name", name), zap.Strings("dirs", r.dirs))
	return "", fmt.Errorf("%w: texture %s", ErrNotFound, name)
}

// ResolveModel resolves both texture slots of a model header. Absent slots
// are skipped; missing files are reported per slot, not as an error.
func (r *Resolver) ResolveModel(h formats.S3OHeader) []Texture {
	var out []Texture
	for _, slot := range []struct{ slot, name string }{
		{"texture1", h.Texture1},
		{"texture2", h.Texture2},
	} {
		if slot.name == "" {
			continue
		}
		path, err := r.Resolve(slot.name)
		out = append(out, Texture{Slot: slot.slot, Name: slot.name, Path: path, Err: err})
	}
	return out
}

// Cache is a simple in-memory cache for resolved paths.
type Cache struct {
	data map[string]string
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]string),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return path, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = path
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]string)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
