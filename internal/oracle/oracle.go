// Package oracle decides whether a declared output already exists with
// non-trivial content. It is the single gate that makes re-running a whole
// pipeline cheap: anything it reports complete is never scheduled again.
package oracle

import (
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vk/callgrid/internal/output"
)

// DefaultCacheSize bounds the number of remembered complete paths.
const DefaultCacheSize = 4096

// MarkerSuffix is appended to a committed output's path to name its commit
// marker.
const MarkerSuffix = ".commit.yaml"

// Target is the completion contract every declared output satisfies.
type Target interface {
	Exists() bool
	NonEmpty() bool
}

// FileTarget is a Target backed by the local filesystem.
type FileTarget struct {
	Path    string
	MinSize int64
}

// Exists reports whether the path is present.
func (t FileTarget) Exists() bool {
	_, err := os.Stat(t.Path)
	return err == nil
}

// NonEmpty reports whether a file is larger than MinSize bytes or a
// directory has at least one entry.
func (t FileTarget) NonEmpty() bool {
	info, err := os.Stat(t.Path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		entries, err := os.ReadDir(t.Path)
		return err == nil && len(entries) > 0
	}
	return info.Size() > t.MinSize
}

// Oracle is safe for concurrent use. Positive results are cached; callers
// that delete or replace a path must Forget it.
type Oracle struct {
	minSize int64
	cache   *lru.Cache[string, struct{}]
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithMinSize sets the size a file must exceed to count as non-empty.
func WithMinSize(n int64) Option {
	return func(o *Oracle) { o.minSize = n }
}

// WithCacheSize sets the positive-result cache size. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(o *Oracle) {
		if n <= 0 {
			o.cache = nil
			return
		}
		c, err := lru.New[string, struct{}](n)
		if err == nil {
			o.cache = c
		}
	}
}

// New creates an Oracle with a zero-byte threshold and the default cache.
func New(opts ...Option) *Oracle {
	o := &Oracle{}
	WithCacheSize(DefaultCacheSize)(o)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Target returns the completion target for path.
func (o *Oracle) Target(path string) Target {
	return FileTarget{Path: path, MinSize: o.minSize}
}

// IsComplete reports whether every path of out exists and is non-empty.
// Committed outputs, including committed members of a union, additionally
// need their commit marker. An output with no paths is vacuously complete.
func (o *Oracle) IsComplete(out output.Output) bool {
	for _, part := range out.Parts() {
		if len(o.missing(part)) > 0 {
			return false
		}
	}
	return true
}

// Missing returns the paths of out that are not complete, in order. A
// committed output whose paths are all present reports its marker.
func (o *Oracle) Missing(out output.Output) []string {
	var missing []string
	for _, part := range out.Parts() {
		missing = append(missing, o.missing(part)...)
	}
	return missing
}

func (o *Oracle) missing(out output.Output) []string {
	var missing []string
	for _, p := range out.Paths() {
		if !o.pathComplete(p) {
			missing = append(missing, p)
		}
	}
	switch out.Kind() {
	case output.Committed:
		if len(missing) == 0 && !o.pathComplete(out.Primary()+MarkerSuffix) {
			missing = append(missing, out.Primary()+MarkerSuffix)
		}
	case output.Single, output.Paired, output.Multi:
	}
	return missing
}

// Forget drops cached results for paths.
func (o *Oracle) Forget(paths ...string) {
	if o.cache == nil {
		return
	}
	for _, p := range paths {
		o.cache.Remove(p)
		o.cache.Remove(p + MarkerSuffix)
	}
}

func (o *Oracle) pathComplete(p string) bool {
	if o.cache != nil && o.cache.Contains(p) {
		return true
	}
	t := o.Target(p)
	if !t.Exists() || !t.NonEmpty() {
		return false
	}
	if o.cache != nil {
		o.cache.Add(p, struct{}{})
	}
	return true
}
