package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/callgrid/internal/config"
	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/oracle"
)

var (
	// ErrMissingSource is returned when an external input the plan needs
	// does not exist. Nothing in the engine can produce it.
	ErrMissingSource = errors.New("missing source input")
	// ErrIdentityConflict is returned when two distinct addresses carry the
	// same identity and would race on the same outputs.
	ErrIdentityConflict = errors.New("nodes share an identity")
)

// Plan is the result of resolving a set of targets.
type Plan struct {
	// Nodes are the incomplete nodes to execute, dependencies first.
	Nodes []*node.Node
	// Elided are the complete nodes the walk stopped at.
	Elided []*node.Node
}

// IsEmpty reports whether there is nothing left to run.
func (p *Plan) IsEmpty() bool { return len(p.Nodes) == 0 }

// Resolver plans runs against a completion oracle.
type Resolver struct {
	oracle *oracle.Oracle
}

// New creates a Resolver.
func New(o *oracle.Oracle) *Resolver {
	return &Resolver{oracle: o}
}

// IsComplete applies the node's completion override when it has one and
// the oracle otherwise.
func (r *Resolver) IsComplete(n *node.Node) bool {
	if check, ok := n.CompletionOverride(); ok {
		return check()
	}
	return r.oracle.IsComplete(n.Output())
}

// walk holds the state of one Plan call. visiting marks the nodes on the
// current DFS path.
type walk struct {
	r        *Resolver
	seen     map[string]*node.Node
	visiting map[string]bool
	upstream func(*node.Node) []*node.Node
	plan     *Plan
	missing  []string
}

func newWalk(r *Resolver) *walk {
	return &walk{
		r:        r,
		seen:     make(map[string]*node.Node),
		visiting: make(map[string]bool),
		upstream: (*node.Node).Upstream,
		plan:     &Plan{},
	}
}

// Plan resolves targets, in order, into a single plan. Nodes shared between
// targets or branches appear once.
func (r *Resolver) Plan(ctx context.Context, targets ...*node.Node) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	w := newWalk(r)
	for _, t := range targets {
		if err := w.visit(t); err != nil {
			return nil, err
		}
	}
	if len(w.missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingSource, strings.Join(w.missing, ", "))
	}
	logger.Debug("Resolved plan.", "targets", len(targets), "scheduled", len(w.plan.Nodes), "elided", len(w.plan.Elided))
	return w.plan, nil
}

// visit expands n depth first. Nodes built by node.New cannot form a
// cycle, but a node met again while still on the path fails with
// config.ErrCycle instead of being treated as resolved.
func (w *walk) visit(n *node.Node) error {
	if w.visiting[n.Identity()] {
		return fmt.Errorf("%w: %s depends on itself", config.ErrCycle, n)
	}
	if prev, ok := w.seen[n.Identity()]; ok {
		if !prev.Address().Equal(n.Address()) {
			return fmt.Errorf("%w: %s and %s", ErrIdentityConflict, prev, n)
		}
		return nil
	}
	w.seen[n.Identity()] = n

	if w.r.IsComplete(n) {
		w.plan.Elided = append(w.plan.Elided, n)
		return nil
	}
	if n.Role() == node.RoleSource {
		for _, p := range w.r.oracle.Missing(n.Output()) {
			w.missing = append(w.missing, fmt.Sprintf("%s (%s)", n, p))
		}
		return nil
	}
	w.visiting[n.Identity()] = true
	for _, up := range w.upstream(n) {
		if err := w.visit(up); err != nil {
			return err
		}
	}
	delete(w.visiting, n.Identity())
	w.plan.Nodes = append(w.plan.Nodes, n)
	return nil
}
