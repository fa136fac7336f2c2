package node

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/vk/callgrid/internal/nodeid"
	"github.com/vk/callgrid/internal/output"
	"github.com/vk/callgrid/internal/provenance"
	"github.com/vk/callgrid/internal/scatter"
	"github.com/vk/callgrid/internal/workunit"
)

// Role says what a node does inside its declaring block.
type Role int

const (
	// RoleStage runs one work unit for an unsharded stage.
	RoleStage Role = iota
	// RoleSource is an externally produced input. It has no work.
	RoleSource
	// RoleScatter writes the per-shard input partitions of a stage.
	RoleScatter
	// RoleShard runs the stage's work unit on one partition.
	RoleShard
	// RoleGather merges shard outputs into the stage's final output.
	RoleGather
	// RoleGroup aggregates the outputs of other nodes. It has no work.
	RoleGroup
	// RoleCleanup removes intermediate artifacts of a finished graph.
	RoleCleanup
)

var roleNames = [...]string{"stage", "source", "scatter", "shard", "gather", "group", "cleanup"}

func (r Role) String() string {
	if int(r) >= 0 && int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Params is the parameter tuple of a node. Together with the provenance it
// fully determines the node's identity.
type Params struct {
	Kind   string
	Name   string
	Role   Role
	Prefix string
	// Shard is the zero value for unsharded nodes.
	Shard  scatter.ShardSpec
	Inputs []string
	Values map[string]string
}

func (p Params) clone() Params {
	p.Inputs = slices.Clone(p.Inputs)
	p.Values = maps.Clone(p.Values)
	return p
}

// WorkFactory builds the work unit for one execution attempt. token is
// unique per attempt and must be used to derive temp paths.
type WorkFactory func(ctx context.Context, token string) (*workunit.WorkUnit, error)

// Spec is everything needed to build a Node.
type Spec struct {
	Address    nodeid.Address
	Params     Params
	Provenance provenance.Provenance
	Upstream   []*Node
	Output     output.Output
	Work       WorkFactory
	// Complete, when set, replaces the output-based completion test.
	Complete func() bool
}

// Node is an immutable graph vertex.
type Node struct {
	id       nodeid.Address
	identity string
	params   Params
	prov     provenance.Provenance
	upstream []*Node
	output   output.Output
	work     WorkFactory
	complete func() bool
}

// New validates spec and returns the node it describes.
func New(spec Spec) (*Node, error) {
	if spec.Address.IsZero() {
		return nil, errors.New("node address cannot be empty")
	}
	if err := spec.Output.Validate(); err != nil {
		return nil, fmt.Errorf("node %s: %w", spec.Address, err)
	}
	for i, up := range spec.Upstream {
		if up == nil {
			return nil, fmt.Errorf("node %s: upstream %d is nil", spec.Address, i)
		}
	}
	switch spec.Params.Role {
	case RoleSource, RoleGroup:
		if spec.Work != nil {
			return nil, fmt.Errorf("node %s: %v nodes cannot carry work", spec.Address, spec.Params.Role)
		}
	case RoleStage, RoleScatter, RoleShard, RoleGather, RoleCleanup:
		if spec.Work == nil {
			return nil, fmt.Errorf("node %s: %v nodes need a work factory", spec.Address, spec.Params.Role)
		}
	default:
		return nil, fmt.Errorf("node %s: unknown role %v", spec.Address, spec.Params.Role)
	}

	params := spec.Params.clone()
	return &Node{
		id:       spec.Address,
		identity: Identity(params, spec.Provenance),
		params:   params,
		prov:     spec.Provenance,
		upstream: slices.Clone(spec.Upstream),
		output:   spec.Output,
		work:     spec.Work,
		complete: spec.Complete,
	}, nil
}

// ID returns the canonical string form of the node's address.
func (n *Node) ID() string { return n.id.String() }

// Address returns the structured address.
func (n *Node) Address() nodeid.Address { return n.id }

// Identity returns the parameter hash used for memoization.
func (n *Node) Identity() string { return n.identity }

// Params returns a copy of the parameter tuple.
func (n *Node) Params() Params { return n.params.clone() }

// Role is shorthand for Params().Role.
func (n *Node) Role() Role { return n.params.Role }

// Provenance returns the provenance the node was built under.
func (n *Node) Provenance() provenance.Provenance { return n.prov }

// Upstream returns the ordered upstream nodes.
func (n *Node) Upstream() []*Node { return slices.Clone(n.upstream) }

// Output returns the declared output descriptor.
func (n *Node) Output() output.Output { return n.output }

// HasWork reports whether executing the node runs anything.
func (n *Node) HasWork() bool { return n.work != nil }

// BuildWork constructs the work unit of one execution attempt.
func (n *Node) BuildWork(ctx context.Context, token string) (*workunit.WorkUnit, error) {
	if n.work == nil {
		return nil, fmt.Errorf("node %s has no work", n.id)
	}
	u, err := n.work(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to build work unit for %s: %w", n.id, err)
	}
	if u.ID == "" {
		u.ID = n.ID()
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// CompletionOverride returns the custom completion test, if any.
func (n *Node) CompletionOverride() (func() bool, bool) {
	return n.complete, n.complete != nil
}

func (n *Node) String() string { return n.ID() }
