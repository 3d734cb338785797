// Package collect extracts a bounded, serializable snapshot of a paused
// program's runtime state from a live, asynchronous debugger backend.
//
// The collected context is intended for consumption by an assistant feature:
// a compact tree of local variables, a budget-limited call stack, and the
// active exception when one can be detected.
//
// # Architecture
//
// Collection is driven entirely by backend callbacks. The engine never
// spawns worker goroutines of its own and never blocks waiting for the
// backend; every asynchronous request is issued from within a callback and
// completion is coordinated through a fan-out/join barrier:
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                        Collector                             │
//	│  CollectStack / CollectSnapshot / CollectException           │
//	│  LatestStack / LatestSnapshot / LatestException / Clear      │
//	└──────────────────────────────────────────────────────────────┘
//	                             │
//	        ┌────────────────────┼────────────────────┐
//	        ▼                    ▼                    ▼
//	  stack collector      tree walker       exception assembler
//	        │                    │                    │
//	        └────────── Join (fan-out/join) ──────────┘
//	                             │
//	                             ▼
//	                    latest-result store
//
// # Budgets
//
// All collection is bounded: maximum nesting depth, maximum backend calls,
// maximum item counts, and maximum serialized byte sizes. Exceeding a budget
// is a soft stop, never an error - remaining work is simply not issued, and
// work already in flight is drained through the join barrier so the final
// continuation always fires.
//
// # Failure model
//
// Backend failures are absorbed at the callback boundary and converted into
// placeholder values so sibling processing is never aborted. A failed
// collection still delivers a well-formed (possibly empty) ContextItem;
// callers distinguish failure only through its Success flag.
package collect
