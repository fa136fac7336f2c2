// Package provenance carries the pipeline version and name that namespace
// every output path, so outputs from an earlier revision of a pipeline are
// never mistaken for current ones.
package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Provenance identifies the pipeline definition that produced an output.
type Provenance struct {
	// Version is the pipeline version, the first path namespace segment.
	Version string
	// Pipeline is the pipeline name, the second path namespace segment.
	Pipeline string
	// DefinitionHash is the sha256 of the pipeline definition sources. It is
	// recorded in commit markers but does not affect paths.
	DefinitionHash string
}

// New validates and returns a Provenance.
func New(version, pipeline, definitionHash string) (Provenance, error) {
	p := Provenance{Version: version, Pipeline: pipeline, DefinitionHash: definitionHash}
	if err := p.Validate(); err != nil {
		return Provenance{}, err
	}
	return p, nil
}

// Validate checks that both namespace segments are usable path components.
func (p Provenance) Validate() error {
	for name, v := range map[string]string{"version": p.Version, "pipeline": p.Pipeline} {
		if v == "" {
			return fmt.Errorf("provenance %s cannot be empty", name)
		}
		if strings.ContainsRune(v, filepath.Separator) || v == "." || v == ".." {
			return fmt.Errorf("provenance %s %q is not a single path segment", name, v)
		}
	}
	return nil
}

// Dir returns root/version/pipeline/prefix.
func (p Provenance) Dir(root, prefix string) string {
	return filepath.Join(root, p.Version, p.Pipeline, prefix)
}

// Path namespaces rel under root/version/pipeline/prefix. rel must stay
// inside that directory.
func (p Provenance) Path(root, prefix, rel string) (string, error) {
	if rel == "" {
		return "", errors.New("output path cannot be empty")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("output path %q must be relative", rel)
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output path %q escapes the run directory", rel)
	}
	return filepath.Join(p.Dir(root, prefix), clean), nil
}

// String renders the namespace as version/pipeline.
func (p Provenance) String() string {
	return p.Version + "/" + p.Pipeline
}

// HashSources returns the hex sha256 over the given sources, each
// length-prefixed so that concatenation boundaries matter.
func HashSources(sources ...[]byte) string {
	h := sha256.New()
	for _, src := range sources {
		fmt.Fprintf(h, "%d:", len(src))
		h.Write(src)
	}
	return hex.EncodeToString(h.Sum(nil))
}
