// Package inmemorytopology provides a thread-safe, in-memory implementation
// of the topologystore.Store interface. Plans are small (hundreds of nodes
// for a full callset) and live only for one session, so maps behind an
// RWMutex are sufficient.
package inmemorytopology
