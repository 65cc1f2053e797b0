// Package firmware is the boundary between the commit pipeline and the
// video firmware.
//
// PropertyEncoder is the only thing the engine depends on. PacketWriter is a
// reference implementation that serializes each property into a
// little-endian command packet on a bounded queue; Decode reads a queue back
// for tests and traces. No real transport is provided.
package firmware
