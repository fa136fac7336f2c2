/*
Package builder turns a pipeline definition and a run request into the graph
of immutable task nodes the resolver walks.

Every block reference expands, depth first and at most once, into the nodes
that produce its outputs:

  - a source becomes one verify-only node, or one per sample;
  - an unscattered stage becomes a single stage node;
  - a scattered stage becomes an optional scatter node writing per-shard
    input partitions, one shard node per partition, and a gather node at the
    stage's own address merging the shard outputs. A stage gathered with
    "none" gets a group node instead, whose outputs are the shard outputs;
  - a group becomes a group node over its members;
  - a cleanup becomes a cleanup node behind its target.

Output paths are namespaced by provenance and fixed at build time. Commands
are HCL templates evaluated once during the build, to surface errors before
anything runs, and again for every execution attempt with the attempt's temp
paths bound to `output` and `outputs`.
*/
package builder
