package texture

import (
	"sync"
)

// Prober returns header information for an image file.
type Prober interface {
	Probe(path string) (Info, error)
}

// Cache is a concurrency-safe probe cache.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheEntry
}

type cacheEntry struct {
	info Info
	err  error // failed probes are cached too
}

var _ Prober = (*Cache)(nil)

// NewCache creates an empty probe cache.
func NewCache() *Cache {
	return &Cache{items: make(map[string]*cacheEntry)}
}

// Probe returns the cached header of path, reading it on first use.
func (c *Cache) Probe(path string) (Info, error) {
	// Fast path: read lock
	c.mu.RLock()
	if entry, exists := c.items[path]; exists {
		c.mu.RUnlock()
		return entry.info, entry.err
	}
	c.mu.RUnlock()

	// Slow path: read from disk
	info, err := Probe(path)

	// Write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, exists := c.items[path]; exists {
		return entry.info, entry.err
	}
	c.items[path] = &cacheEntry{info: info, err: err}
	return info, err
}

// Len returns the number of cached probes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Describe builds a Source for path, filling format and size when the
// header can be read.
func Describe(p Prober, path string) (Source, error) {
	src := Source{Path: path}
	info, err := p.Probe(path)
	if err != nil {
		return src, err
	}
	src.Format = info.Format
	src.Width = info.Width
	src.Height = info.Height
	return src, nil
}

// Scan indexes dir and describes every texture found. Files whose header
// cannot be read are still returned, without format and size, alongside
// the probe errors.
func Scan(p Prober, dir string) ([]Source, []error) {
	var (
		out  []Source
		errs []error
	)
	for _, path := range BuildIndex(dir).Paths() {
		src, err := Describe(p, path)
		if err != nil {
			errs = append(errs, err)
		}
		out = append(out, src)
	}
	return out, errs
}
