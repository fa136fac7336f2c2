// Package commit moves finished work from attempt-private temp paths to
// their final names. A final path is only ever produced by a rename on its
// own volume, so readers observe it either absent or complete.
//
// Committed outputs (deliverables) additionally get a YAML marker beside
// them recording provenance, run and checksum. An output with a marker is
// never replaced unless the protocol was built with recommit enabled.
package commit
