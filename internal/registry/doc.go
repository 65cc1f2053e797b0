// Package registry specializes a capability table for one session.
//
// A Graph holds exactly one descriptor per capability present for a
// (codec, domain) pair, with parent and child edges made mutually
// consistent and a fixed topological commit order.
package registry
