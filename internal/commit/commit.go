package commit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/oracle"
	"github.com/vk/callgrid/internal/output"
	"github.com/vk/callgrid/internal/provenance"
)

var (
	// ErrIncomplete is returned when a temp path is missing or empty after
	// the work unit reported success.
	ErrIncomplete = errors.New("temporary output is missing or empty")
	// ErrAlreadyCommitted is returned when a committed output would be
	// replaced without recommit enabled.
	ErrAlreadyCommitted = errors.New("output is already committed")
)

// Publisher copies a committed output somewhere downstream consumers trust.
// It returns the location it published to.
type Publisher interface {
	Publish(ctx context.Context, m *Marker) (string, error)
}

// Protocol performs commits for one run.
type Protocol struct {
	oracle    *oracle.Oracle
	prov      provenance.Provenance
	runID     string
	publisher Publisher
	recommit  bool
	rename    func(oldpath, newpath string) error
	now       func() time.Time
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithPublisher publishes committed outputs before their marker is written.
func WithPublisher(p Publisher) Option {
	return func(c *Protocol) { c.publisher = p }
}

// WithRecommit allows replacing outputs that already carry a marker.
func WithRecommit(enabled bool) Option {
	return func(c *Protocol) { c.recommit = enabled }
}

// New creates a Protocol. The oracle is used to verify temp outputs and is
// told to forget every path the protocol replaces.
func New(o *oracle.Oracle, prov provenance.Provenance, runID string, opts ...Option) *Protocol {
	p := &Protocol{
		oracle: o,
		prov:   prov,
		runID:  runID,
		rename: os.Rename,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Commit renames temp to final. When the rename crosses volumes the content
// is copied to a staging file next to final, verified, and renamed from
// there. final is never written in place.
func (p *Protocol) Commit(ctx context.Context, temp, final string) error {
	logger := ctxlog.FromContext(ctx)

	t := p.oracle.Target(temp)
	if !t.Exists() || !t.NonEmpty() {
		return fmt.Errorf("%w: %s", ErrIncomplete, temp)
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	err := p.rename(temp, final)
	if err != nil && !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to commit %s: %w", final, err)
	}
	if err != nil {
		logger.Debug("Rename crosses volumes, staging a copy beside the final path.", "temp", temp, "final", final)
		if err := p.copyAcross(temp, final); err != nil {
			return fmt.Errorf("failed to commit %s across volumes: %w", final, err)
		}
	}
	syncDir(filepath.Dir(final))
	p.oracle.Forget(final)
	logger.Debug("Committed output.", "path", final)
	return nil
}

// CommitOutput commits every temp path of a node onto the paths of out, in
// order. For committed outputs it also publishes and writes the marker.
func (p *Protocol) CommitOutput(ctx context.Context, nodeID string, out output.Output, temps []string) error {
	finals := out.Paths()
	if len(temps) != len(finals) {
		return fmt.Errorf("%w: node %s produced %d temp path(s) for %d output(s)", output.ErrArity, nodeID, len(temps), len(finals))
	}

	if out.IsCommitted() {
		if err := p.checkReplace(ctx, out.Primary()); err != nil {
			return err
		}
	}
	for i := range finals {
		if err := p.Commit(ctx, temps[i], finals[i]); err != nil {
			return err
		}
	}
	if out.IsCommitted() {
		return p.mark(ctx, nodeID, out.Primary())
	}
	return nil
}

func (p *Protocol) checkReplace(ctx context.Context, final string) error {
	if _, err := os.Stat(MarkerPath(final)); err != nil {
		return nil
	}
	if p.recommit {
		ctxlog.FromContext(ctx).Warn("Recommitting an output that already carries a marker.", "path", final)
		return nil
	}
	if t := p.oracle.Target(final); t.Exists() && t.NonEmpty() {
		return fmt.Errorf("%w: %s", ErrAlreadyCommitted, final)
	}
	ctxlog.FromContext(ctx).Warn("Removing stale commit marker for a missing output.", "path", final)
	if err := os.Remove(MarkerPath(final)); err != nil && !os.IsNotExist(err) {
		return err
	}
	p.oracle.Forget(final)
	return nil
}

func (p *Protocol) mark(ctx context.Context, nodeID, final string) error {
	size, sum, err := checksum(final)
	if err != nil {
		return fmt.Errorf("failed to checksum %s: %w", final, err)
	}
	m := &Marker{
		Path:           final,
		Node:           nodeID,
		RunID:          p.runID,
		Pipeline:       p.prov.Pipeline,
		Version:        p.prov.Version,
		DefinitionHash: p.prov.DefinitionHash,
		Size:           size,
		SHA256:         sum,
		CommittedAt:    p.now().UTC(),
	}
	if p.publisher != nil {
		loc, err := p.publisher.Publish(ctx, m)
		if err != nil {
			return fmt.Errorf("failed to publish %s: %w", final, err)
		}
		m.PublishedTo = loc
	}
	if err := writeMarker(m, uuid.NewString()); err != nil {
		return fmt.Errorf("failed to write commit marker for %s: %w", final, err)
	}
	p.oracle.Forget(final)
	ctxlog.FromContext(ctx).Info("📦 Committed deliverable.", "path", final, "sha256", sum, "published_to", m.PublishedTo)
	return nil
}

func (p *Protocol) copyAcross(temp, final string) error {
	staging := output.TempPath(final, "xdev-"+uuid.NewString())
	want, err := copyFile(temp, staging)
	if err != nil {
		os.Remove(staging)
		return err
	}
	info, err := os.Stat(staging)
	if err != nil || info.Size() != want {
		os.Remove(staging)
		return fmt.Errorf("staged copy of %s failed verification", temp)
	}
	if err := p.rename(staging, final); err != nil {
		os.Remove(staging)
		return err
	}
	os.Remove(temp)
	return nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
}
