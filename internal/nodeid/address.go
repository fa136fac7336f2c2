// internal/nodeid/address.go
package nodeid

import (
	"fmt"
	"slices"
	"strings"
)

// String serializes the Address into its canonical path string representation.
func (a Address) String() string {
	var sb strings.Builder
	for i, segment := range a.Path {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(segment.Name)
		if segment.HasIndex() {
			fmt.Fprintf(&sb, "[%d]", segment.Index)
		}
	}
	return sb.String()
}

// Equal reports whether both addresses have identical paths.
func (a Address) Equal(other Address) bool {
	return slices.Equal(a.Path, other.Path)
}

// IsZero reports whether the address has no segments.
func (a Address) IsZero() bool {
	return len(a.Path) == 0
}

// Child returns a new address with one more segment appended. The receiver
// is not modified.
func (a Address) Child(name string) Address {
	return a.append(NewPathSegment(name))
}

// Shard returns the address of shard i beneath a, e.g. `stage.x.shard[i]`.
func (a Address) Shard(i int) Address {
	return a.append(NewPathSegmentWithIndex("shard", i))
}

func (a Address) append(seg PathSegment) Address {
	path := make([]PathSegment, 0, len(a.Path)+1)
	path = append(path, a.Path...)
	return Address{Path: append(path, seg)}
}

// Kind returns the first segment name ("stage", "source", ...).
func (a Address) Kind() string {
	if len(a.Path) == 0 {
		return ""
	}
	return a.Path[0].Name
}

// Name returns the block name, the second segment.
func (a Address) Name() string {
	if len(a.Path) < 2 {
		return ""
	}
	return a.Path[1].Name
}

// ShardIndex returns the index of the last indexed segment, or -1.
func (a Address) ShardIndex() int {
	for i := len(a.Path) - 1; i >= 0; i-- {
		if a.Path[i].HasIndex() {
			return a.Path[i].Index
		}
	}
	return -1
}
