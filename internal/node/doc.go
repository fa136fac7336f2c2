// Package node defines the task node: one vertex of the pipeline graph,
// identified by its kind, its parameters and the provenance of the pipeline
// that declared it.
//
// Nodes are immutable once built. Two nodes built from equal parameters
// have the same Identity and declare the same output paths, which is what
// lets the resolver memoize shared upstream branches and lets re-runs find
// earlier results.
package node
