// Package events publishes node lifecycle notifications for a run.
//
// A Sink receives every transition the executor makes. LogSink writes them
// to the context logger; SocketIOSink forwards them to a socket.io server so
// dashboards can follow a long run. Multi fans one event out to several
// sinks.
package events
