// Package engine implements the adjustment engine and the commit pipeline.
//
// A Session holds the live value, bounds and dirty flag of every capability
// of one (codec, domain) graph. Set validates a request, applies it and
// propagates the change to everything reachable through children edges.
// Commit turns dirty capabilities into firmware property writes.
//
// ARCHITECTURE:
//
// Transactional Set:
// A Set works on a copy of the session state. Validation, propagation and
// the journal record all happen against the copy; the copy replaces the
// session state only when every step succeeded. A failed Set leaves no
// trace.
//
// Propagation Order:
// The closure reachable from the changed capability is adjusted with Kahn's
// algorithm restricted to that closure, so every capability is adjusted once
// and only after all of its in-closure parents. Ties break by breadth-first
// discovery order over declaration-ordered child lists.
//
// Commit:
// Dirty capabilities are committed in the graph's commit order (topological,
// ties by ascending id). Writes cannot be undone: a rejection stops the
// pipeline and reports what was and was not committed.
//
// Concurrency:
// One mutex per session serializes Set, Commit, Start and Close. Sessions
// share the read-only Graph and run in parallel; Manager.CommitAll commits
// many sessions at once.
//
// Strategies:
// Adjust and set strategies are closed sets keyed by caps.AdjustRule and
// caps.SetRule. Each reads other capabilities through a ValueReader.
package engine
