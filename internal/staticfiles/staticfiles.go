// Package staticfiles serves client files through a read-through,
// path-keyed byte cache. Cached entries never expire within a process
// lifetime; edits to a cached file require a restart.
package staticfiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maypok86/otter/v2"
)

const cacheMaxEntries = 1024

// ErrUnknownExtension reports a file whose extension has no content type.
var ErrUnknownExtension = errors.New("unknown file extension")

// contentTypes maps file extensions to response content types.
var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css",
	".js":   "text/javascript",
	".ico":  "image/ico",
	".png":  "image/png",
	".jpg":  "image/jpg",
}

// hitCounter matches prometheus.Counter without importing it here.
type hitCounter interface{ Inc() }

// Service loads static files from a directory, optionally caching bytes.
type Service struct {
	dir     string
	caching bool
	cache   *otter.Cache[string, []byte]
	hits    hitCounter // nil = uncounted
}

// CountHits wires a counter that increments on every cache hit.
func (s *Service) CountHits(c hitCounter) { s.hits = c }

// New returns a Service rooted at dir. With caching enabled, file bytes are
// kept in an otter cache with no expiry (frozen-after-first-read).
func New(dir string, caching bool) (*Service, error) {
	c, err := otter.New[string, []byte](&otter.Options[string, []byte]{
		MaximumSize: cacheMaxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("create file cache: %w", err)
	}
	return &Service{dir: dir, caching: caching, cache: c}, nil
}

// sanitize strips any leading "../" runs so a request cannot climb out of
// the static directory.
func sanitize(name string) string {
	for strings.HasPrefix(name, "../") {
		name = name[3:]
	}
	return filepath.Clean("/" + name)[1:]
}

// ContentType returns the response content type for name's extension.
func ContentType(name string) (string, error) {
	ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return "", fmt.Errorf("%q: %w", name, ErrUnknownExtension)
	}
	return ct, nil
}

// Get returns the file's bytes and content type. Misses read from disk;
// hits come from the cache when caching is enabled.
func (s *Service) Get(name string) ([]byte, string, error) {
	if name == "" {
		return nil, "", os.ErrNotExist
	}
	name = sanitize(name)

	ct, err := ContentType(name)
	if err != nil {
		return nil, "", err
	}

	if s.caching {
		if data, ok := s.cache.GetIfPresent(name); ok {
			if s.hits != nil {
				s.hits.Inc()
			}
			return data, ct, nil
		}
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, "", err
	}
	if s.caching {
		s.cache.Set(name, data)
	}
	return data, ct, nil
}

// Page returns the named error page, falling back to a plain body when the
// file is missing so error responses always carry something.
func (s *Service) Page(name, fallback string) []byte {
	data, _, err := s.Get(name)
	if err != nil {
		return []byte(fallback)
	}
	return data
}

// NotFoundPage is the body served with 404 responses.
func (s *Service) NotFoundPage() []byte {
	return s.Page("404.html", "<h1>404: not found</h1>")
}

// BadRequestPage is the body served with plain 400 responses.
func (s *Service) BadRequestPage() []byte {
	return s.Page("400.html", "<h1>400: bad request</h1>")
}
