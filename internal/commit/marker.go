package commit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vk/callgrid/internal/oracle"
	"github.com/vk/callgrid/internal/output"
	"gopkg.in/yaml.v3"
)

// Marker is the record written beside a committed output.
type Marker struct {
	Path           string    `yaml:"path"`
	Node           string    `yaml:"node"`
	RunID          string    `yaml:"run_id"`
	Pipeline       string    `yaml:"pipeline"`
	Version        string    `yaml:"version"`
	DefinitionHash string    `yaml:"definition_hash,omitempty"`
	Size           int64     `yaml:"size"`
	SHA256         string    `yaml:"sha256"`
	CommittedAt    time.Time `yaml:"committed_at"`
	PublishedTo    string    `yaml:"published_to,omitempty"`
}

// MarkerPath returns the marker location for final.
func MarkerPath(final string) string {
	return final + oracle.MarkerSuffix
}

// ReadMarker loads the marker of final.
func ReadMarker(final string) (*Marker, error) {
	data, err := os.ReadFile(MarkerPath(final))
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid commit marker for %s: %w", final, err)
	}
	return &m, nil
}

func writeMarker(m *Marker, token string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	path := MarkerPath(m.Path)
	tmp := output.TempPath(path, token)
	if err := writeSynced(tmp, data); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func checksum(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
