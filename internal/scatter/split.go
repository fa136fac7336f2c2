package scatter

import (
	"errors"
	"fmt"
)

// ErrInvalidShards is returned for a shard count below one or an index
// outside [0, N).
var ErrInvalidShards = errors.New("invalid shard specification")

// Range is a half-open [Start, End) range over a logical input.
type Range struct {
	Start int
	End   int
}

// Len returns the number of items covered.
func (r Range) Len() int { return r.End - r.Start }

// ShardSpec identifies shard Index of Count and the sub-range it covers.
type ShardSpec struct {
	Count int
	Index int
	Range Range
}

// Bounds returns the range of shard index for an input of length items
// split into shards groups.
func Bounds(length, shards, index int) (Range, error) {
	if shards < 1 {
		return Range{}, fmt.Errorf("%w: shard count %d", ErrInvalidShards, shards)
	}
	if index < 0 || index >= shards {
		return Range{}, fmt.Errorf("%w: index %d of %d", ErrInvalidShards, index, shards)
	}
	if length < 0 {
		return Range{}, fmt.Errorf("%w: negative input length %d", ErrInvalidShards, length)
	}
	size := length / shards
	start := size * index
	end := size * (index + 1)
	if index == shards-1 {
		end = length
	}
	return Range{Start: start, End: end}, nil
}

// Plan returns the ShardSpec of every shard, in index order.
func Plan(length, shards int) ([]ShardSpec, error) {
	if shards < 1 {
		return nil, fmt.Errorf("%w: shard count %d", ErrInvalidShards, shards)
	}
	specs := make([]ShardSpec, shards)
	for i := range specs {
		r, err := Bounds(length, shards, i)
		if err != nil {
			return nil, err
		}
		specs[i] = ShardSpec{Count: shards, Index: i, Range: r}
	}
	return specs, nil
}

// SplitItems cuts items into shards contiguous groups. Groups share the
// backing array of items.
func SplitItems[T any](items []T, shards int) ([][]T, error) {
	specs, err := Plan(len(items), shards)
	if err != nil {
		return nil, err
	}
	groups := make([][]T, len(specs))
	for i, s := range specs {
		groups[i] = items[s.Range.Start:s.Range.End:s.Range.End]
	}
	return groups, nil
}

// Effective clamps a requested shard count so that no shard is empty when
// the input has at least one item.
func Effective(length, requested int) int {
	if requested < 1 {
		requested = 1
	}
	if length > 0 && requested > length {
		return length
	}
	return requested
}
