// Package graph provides a unified facade for managing an execution plan,
// combining static topology (plan structure) and dynamic state (run status).
//
// # Why Graph Package Exists
//
// The facade spares the scheduler and executor from coordinating two
// stores. They query and update one Graph; the split between topology and
// state stays an implementation detail.
//
// # Architecture: The Facade Pattern
//
//	┌─────────────────────────────────────┐
//	│           Graph Facade              │
//	│  (Unified API for executor/         │
//	│   scheduler to query & update)      │
//	└──────────┬────────────┬─────────────┘
//	           │            │
//	           ▼            ▼
//	  ┌────────────┐  ┌────────────┐
//	  │  Topology  │  │ Node State │
//	  │   Store    │  │   Store    │
//	  │ (Structure)│  │  (Status)  │
//	  └────────────┘  └────────────┘
//
// # Lifecycle
//
//  1. **Creation:** the session factory injects both stores
//  2. **Population:** Load registers the resolver's plan; edges to upstream
//     nodes outside the plan (already complete) are dropped
//  3. **Execution:** scheduler reads, executor marks transitions
//  4. **Disposal:** discarded with the session
//
// # State Transitions
//
// Mark* methods enforce the legal transitions and return ErrInvalidTransition
// otherwise:
//
//	Pending → Running → Completed | Failed
//	Pending → Skipped
//
// # Thread-Safety
//
// All Graph methods are thread-safe. Transitions are serialized by the
// Manager so a check-then-set is never interleaved.
package graph
