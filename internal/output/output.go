// Package output defines the declared output of a task node: a tagged
// variant over single, paired, committed and multi-path targets, plus the
// naming conventions for shard and temporary files derived from it.
package output

import (
	"errors"
	"fmt"
	"slices"
)

// ErrArity is returned when a descriptor does not carry the number of
// paths its kind requires, or when a Paired output holds a non-read file.
var ErrArity = errors.New("output arity mismatch")

// Kind tags the variant held by an Output.
type Kind int

const (
	// Single is one plain target, locally atomic but not a deliverable.
	Single Kind = iota
	// Paired is an ordered forward/reverse pair of targets.
	Paired
	// Committed is one target that is an authoritative deliverable.
	Committed
	// Multi is an ordered list of targets, such as the shard files of an
	// ungathered scatter or the union of a group's upstream outputs.
	Multi
)

func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Paired:
		return "paired"
	case Committed:
		return "committed"
	case Multi:
		return "multi"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Output is an immutable output descriptor. Construct it with one of the
// New* functions; the zero value is an empty Multi.
type Output struct {
	kind  Kind
	paths []string
	parts []Output
}

// NewSingle describes one intermediate target.
func NewSingle(path string) Output {
	return Output{kind: Single, paths: []string{path}}
}

// NewPaired describes an ordered pair of targets.
func NewPaired(forward, reverse string) Output {
	return Output{kind: Paired, paths: []string{forward, reverse}}
}

// NewCommitted describes one deliverable target.
func NewCommitted(path string) Output {
	return Output{kind: Committed, paths: []string{path}}
}

// NewMulti describes an ordered list of targets.
func NewMulti(paths ...string) Output {
	return Output{kind: Multi, paths: slices.Clone(paths)}
}

// Kind returns the variant tag.
func (o Output) Kind() Kind { return o.kind }

// Paths returns a copy of the ordered target paths.
func (o Output) Paths() []string { return slices.Clone(o.paths) }

// Arity returns the number of target paths.
func (o Output) Arity() int { return len(o.paths) }

// Primary returns the first path, or "" for an empty descriptor.
func (o Output) Primary() string {
	if len(o.paths) == 0 {
		return ""
	}
	return o.paths[0]
}

// IsCommitted reports whether the output is a deliverable.
func (o Output) IsCommitted() bool { return o.kind == Committed }

// Validate enforces the arity contract of the variant. Paired outputs
// only hold read files; single-end reads may be Single or Committed.
func (o Output) Validate() error {
	want := -1
	switch o.kind {
	case Single, Committed:
		want = 1
	case Paired:
		want = 2
	case Multi:
	default:
		return fmt.Errorf("%w: unknown kind %v", ErrArity, o.kind)
	}
	if want >= 0 && len(o.paths) != want {
		return fmt.Errorf("%w: %v output needs %d path(s), got %d", ErrArity, o.kind, want, len(o.paths))
	}
	for _, p := range o.paths {
		if p == "" {
			return fmt.Errorf("%w: %v output has an empty path", ErrArity, o.kind)
		}
		if o.kind == Paired && !IsReadFile(p) {
			return fmt.Errorf("%w: paired output %q is not a read file", ErrArity, p)
		}
	}
	return nil
}

// Union concatenates the paths of several outputs, in order, into a Multi.
// The member descriptors are kept and returned by Parts, so a committed
// member still needs its marker for the union to be complete.
func Union(outs ...Output) Output {
	u := Output{kind: Multi}
	for _, o := range outs {
		u.paths = append(u.paths, o.paths...)
		u.parts = append(u.parts, o.Parts()...)
	}
	return u
}

// Parts returns the member descriptors of a union, flattened. Any other
// output is its own single part.
func (o Output) Parts() []Output {
	if o.parts == nil {
		return []Output{o}
	}
	return slices.Clone(o.parts)
}
