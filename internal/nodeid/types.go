// internal/nodeid/types.go
package nodeid

// PathSegment represents a single component of an address path, e.g., `name[index]`.
type PathSegment struct {
	Name  string
	Index int // -1 indicates no index is present.
}

// NewPathSegment creates a new path segment without an index.
func NewPathSegment(name string) PathSegment {
	return PathSegment{Name: name, Index: -1}
}

// NewPathSegmentWithIndex creates a new path segment that includes an index.
func NewPathSegmentWithIndex(name string, index int) PathSegment {
	return PathSegment{Name: name, Index: index}
}

// HasIndex returns true if the path segment has an explicit index.
func (ps PathSegment) HasIndex() bool {
	return ps.Index != -1
}

// Address is the structured representation of a unique node identifier.
type Address struct {
	Path []PathSegment
}

// New builds the address of a top-level block, e.g. `stage.filter`.
func New(kind, name string) Address {
	return Address{Path: []PathSegment{NewPathSegment(kind), NewPathSegment(name)}}
}

// NewIndexed builds the address of one instance of a repeated block,
// e.g. `source.gvcf[3]`.
func NewIndexed(kind, name string, index int) Address {
	return Address{Path: []PathSegment{NewPathSegment(kind), NewPathSegmentWithIndex(name, index)}}
}
