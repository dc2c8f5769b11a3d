package asset

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// Cache resolves references to files under the game data directory.
type Cache struct {
	root string
}

// NewCache returns a resolver rooted at the game data directory.
func NewCache(root string) *Cache {
	return &Cache{root: root}
}

// Root returns the game data directory.
func (c *Cache) Root() string { return c.root }

// Abs converts a cache-relative path into a file-system path.
func (c *Cache) Abs(rel string) string {
	return filepath.Join(c.root, filepath.FromSlash(rel))
}

// Normalize recodes a URL the way the game names its cache files: every
// character that is not a letter or digit is dropped.
func Normalize(url string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return -1
	}, url)
}

// Pending reports whether a resolved path still lacks an extension, meaning
// the extension is decided by the first successful fetch.
func Pending(rel string) bool {
	return path.Ext(rel) == ""
}

// Resolve maps a reference to a slash-separated cache-relative path. For
// audio and image references the result may lack an extension (see Pending).
// Ambiguous kinds report ok=false when no cached file matches the URL.
func (c *Cache) Resolve(kind Kind, url string) (string, bool) {
	stem := Normalize(url)
	switch kind {
	case Script, CustomUI:
		return c.probeAll(stem)
	case Mesh, Bundle, PDF:
		return path.Join(kind.Subdir(), stem+kind.DefaultExtension()), true
	default:
		return c.identify(kind, url, stem), true
	}
}

// identify picks the first candidate extension that either appears in the URL
// or already exists in the cache.
func (c *Cache) identify(kind Kind, url, stem string) string {
	lowered := strings.ToLower(url)
	subdir := kind.Subdir()
	for _, ext := range kindSpecs[kind].exts {
		candidate := path.Join(subdir, stem+ext)
		if strings.Index(lowered, strings.ToLower(ext)) > 0 {
			return candidate
		}
		if c.exists(candidate) {
			return candidate
		}
	}
	return path.Join(subdir, stem)
}

func (c *Cache) probeAll(stem string) (string, bool) {
	for _, k := range probeOrder {
		spec := kindSpecs[k]
		for _, ext := range spec.exts {
			candidate := path.Join(spec.subdir, stem+ext)
			if c.exists(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

// PathForExtension returns the cache path for a fetched reference of ambiguous
// kind, choosing the directory whose extension set contains ext.
func (c *Cache) PathForExtension(url, ext string) (string, bool) {
	ext = FixExtCase(ext)
	for _, k := range probeOrder {
		spec := kindSpecs[k]
		for _, candidate := range spec.exts {
			if candidate == ext {
				return path.Join(spec.subdir, Normalize(url)+ext), true
			}
		}
	}
	return "", false
}

// Exists reports whether the cache-relative path names an existing file.
func (c *Cache) Exists(rel string) bool {
	return c.exists(rel)
}

func (c *Cache) exists(rel string) bool {
	info, err := os.Stat(c.Abs(rel))
	return err == nil && info.Mode().IsRegular()
}

// Subdirs lists the cache directories in probe order.
func Subdirs() []string {
	dirs := make([]string, 0, len(probeOrder))
	for _, k := range probeOrder {
		dirs = append(dirs, kindSpecs[k].subdir)
	}
	return dirs
}
