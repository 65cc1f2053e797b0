// Package store provides the SQLite commit journal for resolver sessions.
//
// The journal is append-only:
//   - Sessions: one row per opened session, closed_seq set on close
//   - Events: every open, set, start, write, reject and close, keyed by seq
//   - Property writes: the firmware payload of every accepted write
//
// # Ordering
//
// All ordering uses the seq column, the engine's logical clock, never wall
// time. Every query orders by seq so reads and replays are deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events must belong to a recorded session
package store
