package scatter

import (
	"context"
	"fmt"
	"io"
)

// SplitVCF partitions the records of src across dsts by contig, using the
// interval groups to decide which shard owns each contig. Every dst gets
// the full header. Records of a contig missing from the interval list stay
// with the shard of the preceding record, so concatenating the shards in
// index order reproduces src's record order whenever src is sorted in the
// same contig order as the interval list.
func SplitVCF(ctx context.Context, src string, groups [][]Interval, dsts []string) error {
	if len(groups) != len(dsts) {
		return fmt.Errorf("%w: %d interval groups for %d outputs", ErrInvalidShards, len(groups), len(dsts))
	}
	if len(dsts) == 0 {
		return fmt.Errorf("%w: no outputs", ErrInvalidShards)
	}

	in, err := openText(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	writers := make([]*writeCloser, len(dsts))
	closeAll := func() error {
		var first error
		for _, w := range writers {
			if w == nil {
				continue
			}
			if err := w.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	for i, dst := range dsts {
		w, err := createText(dst)
		if err != nil {
			closeAll()
			return fmt.Errorf("failed to create shard %d: %w", i, err)
		}
		writers[i] = w
	}

	owner := contigIndex(groups)
	current := 0
	inHeader := true
	n := 0
	err = forEachLine(in.Reader, func(line []byte) error {
		if inHeader && len(line) > 0 && line[0] == '#' {
			for _, w := range writers {
				if _, err := w.Write(line); err != nil {
					return err
				}
			}
			return nil
		}
		inHeader = false
		if n++; n%100000 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		if i, ok := owner[recordContig(line)]; ok {
			current = i
		}
		_, err := writers[current].Write(line)
		return err
	})
	if cerr := closeAll(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to split %s: %w", src, err)
	}
	return nil
}

var _ io.Writer = (*writeCloser)(nil)
