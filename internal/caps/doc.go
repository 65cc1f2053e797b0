// Package caps defines the capability model shared by every other package:
// capability ids, codec/domain masks, flags, descriptors, live bounds,
// encoded firmware properties and the resolver error taxonomy.
//
// caps imports nothing internal. Key constraints:
//   - no floating point anywhere; all values are int64 (Q16 where fixed point)
//   - descriptors and platforms are immutable once loaded
//   - JSON tags use snake_case; ids encode by name
package caps
