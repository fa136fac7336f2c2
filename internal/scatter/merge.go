package scatter

import (
	"context"
	"fmt"
	"sort"
)

// Merger concatenates shard outputs, in the given order, into dst.
type Merger interface {
	Merge(ctx context.Context, dst string, parts []string) error
}

// MergerFunc adapts a function to Merger.
type MergerFunc func(ctx context.Context, dst string, parts []string) error

// Merge calls f.
func (f MergerFunc) Merge(ctx context.Context, dst string, parts []string) error {
	return f(ctx, dst, parts)
}

var mergers = map[string]Merger{
	"vcf":      MergerFunc(MergeVCF),
	"lines":    MergerFunc(MergeLines),
	"manifest": MergerFunc(MergeManifest),
}

// MergerFor returns the merger registered under kind.
func MergerFor(kind string) (Merger, error) {
	m, ok := mergers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown gather kind %q (known: %v)", kind, GatherKinds())
	}
	return m, nil
}

// GatherKinds lists the registered merge kinds.
func GatherKinds() []string {
	kinds := make([]string, 0, len(mergers))
	for k := range mergers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// MergeVCF keeps the header of the first part and the records of all parts.
func MergeVCF(ctx context.Context, dst string, parts []string) error {
	return concat(ctx, dst, parts, true)
}

// MergeLines concatenates parts verbatim.
func MergeLines(ctx context.Context, dst string, parts []string) error {
	return concat(ctx, dst, parts, false)
}

// MergeManifest writes the part paths, one per line, for formats that
// cannot be concatenated.
func MergeManifest(ctx context.Context, dst string, parts []string) error {
	if len(parts) == 0 {
		return fmt.Errorf("%w: nothing to gather", ErrInvalidShards)
	}
	w, err := createText(dst)
	if err != nil {
		return err
	}
	for _, p := range parts {
		if _, err := w.WriteString(p + "\n"); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func concat(ctx context.Context, dst string, parts []string, vcfHeaders bool) error {
	if len(parts) == 0 {
		return fmt.Errorf("%w: nothing to gather", ErrInvalidShards)
	}
	w, err := createText(dst)
	if err != nil {
		return err
	}
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			w.Close()
			return err
		}
		if err := appendPart(w, part, vcfHeaders && i > 0); err != nil {
			w.Close()
			return fmt.Errorf("failed to append shard %d (%s): %w", i, part, err)
		}
	}
	return w.Close()
}

func appendPart(w *writeCloser, part string, skipHeader bool) error {
	r, err := openText(part)
	if err != nil {
		return err
	}
	defer r.Close()
	return forEachLine(r.Reader, func(line []byte) error {
		if skipHeader && line[0] == '#' {
			return nil
		}
		_, err := w.Write(line)
		return err
	})
}
