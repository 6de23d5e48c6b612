package texture

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// extPriority orders formats for the same stem. Lossless formats with alpha
// win over lossy ones.
var extPriority = map[string]int{
	".exr":  9,
	".png":  8,
	".tga":  7,
	".tif":  6,
	".tiff": 6,
	".bmp":  5,
	".webp": 4,
	".jpg":  3,
	".jpeg": 3,
	".gif":  1,
}

// Index maps lowercase texture stems to filesystem paths.
type Index struct {
	entries map[string]string // stem.lower() → full path
}

// BuildIndex scans dir and its subdirectories for image files. Unreadable
// entries are skipped.
func BuildIndex(dir string) *Index {
	idx := &Index{entries: make(map[string]string)}

	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		rank, ok := extPriority[ext]
		if !ok {
			return nil
		}
		stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

		existing, exists := idx.entries[stem]
		if !exists || rank > extPriority[strings.ToLower(filepath.Ext(existing))] {
			idx.entries[stem] = path
		}
		return nil
	})

	return idx
}

// ResolvePath returns the filesystem path for a texture name, or ("", false).
// Directory prefixes and extensions in name are ignored.
func (idx *Index) ResolvePath(texName string) (string, bool) {
	texName = strings.ReplaceAll(texName, "\\", "/")
	base := filepath.Base(texName)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	path, ok := idx.entries[stem]
	return path, ok
}

// Paths returns every indexed path, sorted.
func (idx *Index) Paths() []string {
	out := make([]string, 0, len(idx.entries))
	for _, p := range idx.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of indexed textures.
func (idx *Index) Len() int {
	return len(idx.entries)
}
