// Package scheduler decides which plan nodes may run next.
//
// # How It Works
//
// The scheduler is stateless: every call re-reads node status from the
// graph. A node is ready when it is Pending and every in-plan dependency
// is Completed; it is blocked when it is Pending and some dependency
// Failed or was Skipped. Dependencies that were already complete before
// the run never entered the plan, so they never hold anything back.
//
// The executor drives the cycle: ask for ready nodes, dispatch them, wait
// for one to finish, skip blocked nodes, repeat until nothing is pending
// or running.
package scheduler
