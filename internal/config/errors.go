package config

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

var (
	// ErrInvalidPipeline is the root of every definition error.
	ErrInvalidPipeline = errors.New("invalid pipeline definition")
	// ErrUnknownReference is returned for references to undeclared blocks.
	ErrUnknownReference = errors.New("unknown block reference")
	// ErrCycle is returned when block references form a cycle.
	ErrCycle = errors.New("dependency cycle")
)

// Error is a definition error tied to a block.
type Error struct {
	Kind  error
	Block string
	Msg   string
	Range hcl.Range
}

func (e *Error) Error() string {
	loc := ""
	if e.Range.Filename != "" {
		loc = e.Range.String() + ": "
	}
	return fmt.Sprintf("%s%s: %s", loc, e.Block, e.Msg)
}

// Is matches ErrInvalidPipeline and the specific kind.
func (e *Error) Is(target error) bool {
	return target == ErrInvalidPipeline || target == e.Kind
}

func newError(kind error, block string, rng hcl.Range, format string, args ...any) *Error {
	return &Error{Kind: kind, Block: block, Msg: fmt.Sprintf(format, args...), Range: rng}
}
