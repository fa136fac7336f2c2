package config

import "context"

// Loader is the interface for a format-specific pipeline loader.
type Loader interface {
	// Load reads pipeline definitions from the given files or directories
	// and merges them into one validated Pipeline.
	Load(ctx context.Context, paths ...string) (*Pipeline, error)
}
