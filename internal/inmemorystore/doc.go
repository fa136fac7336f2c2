// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the nodestore.Store interface.
//
// State is rebuilt on every invocation: whether a node needs to run is
// decided by the completion oracle against the filesystem, so nothing here
// has to survive a crash.
package inmemorystore
