// Package resolver turns a set of target nodes into an execution plan.
//
// Resolution is a depth-first walk of upstream references, memoized by node
// identity. A node whose output already passes the completion oracle is
// elided together with everything behind it; only incomplete work enters
// the plan, in an order where every node follows the in-plan nodes it
// depends on. Re-resolving after a partial run therefore schedules exactly
// the unmet work, down to individual shards of a scatter stage.
//
// Nodes are immutable and can only reference nodes that already exist, so
// a node graph cannot contain a cycle. Cycles in a pipeline definition are
// rejected by the builder while it expands stage declarations.
package resolver
