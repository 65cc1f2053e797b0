package engine

import (
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// adjustFunc recomputes one capability from the values it depends on. It
// returns the new instance; the caller compares it with cur to decide what
// changed. Dirty is managed by the caller.
type adjustFunc func(r ValueReader, codec caps.Codec, d *caps.Descriptor, cur Instance) Instance

// adjusters holds exactly one implementation per caps.AdjustRule.
var adjusters = map[caps.AdjustRule]adjustFunc{
	caps.AdjustBitrateMode:  adjustBitrateMode,
	caps.AdjustLTRCount:     adjustLTRCount,
	caps.AdjustUseLTR:       adjustUseLTR,
	caps.AdjustMarkLTR:      adjustMarkLTR,
	caps.AdjustIRRandom:     disabledUnderCQ,
	caps.AdjustDeltaBasedRC: disabledUnderCQ,
	caps.AdjustHEVCMinQP:    adjustQPRange,
	caps.AdjustHEVCMaxQP:    adjustQPRange,
	caps.AdjustHEVCFrameQP:  adjustQPRange,
	caps.AdjustProfile:      adjustProfile,
	caps.AdjustEntropyMode:  adjustEntropyMode,
	caps.AdjustTransform8X8: adjustTransform8X8,
}

// restrict sets the live bounds to b intersected with the descriptor's
// static range and moves the value into them. An empty intersection pins
// the value to the descriptor's lowest legal value.
func restrict(d *caps.Descriptor, cur Instance, b caps.Bounds) Instance {
	b.Min = max(b.Min, d.Min)
	b.Max = min(b.Max, d.Max)
	if b.Min > b.Max {
		low := lowestMember(d)
		b = caps.Bounds{Min: low, Max: low}
	}
	cur.Bounds = b
	cur.Value = nearestMember(d, b, cur.Value)
	return cur
}

// unrestricted restores the descriptor's static range.
func unrestricted(d *caps.Descriptor, cur Instance) Instance {
	return restrict(d, cur, d.Bounds())
}

// lowestMember returns the smallest member of d within its static range,
// or d.Min when the capability is not enumerated or has no such member.
func lowestMember(d *caps.Descriptor) int64 {
	if !d.Enumerated() {
		return d.Min
	}
	for bit := range 63 {
		v := int64(bit)
		if d.Flags&caps.FlagBitmask != 0 {
			v = int64(1) << bit
		}
		if v >= d.Min && v <= d.Max && d.Member(v) {
			return v
		}
	}
	return d.Min
}

// nearestMember clamps v into b and, for enumerated capabilities, walks
// down (then up) to the closest legal member.
func nearestMember(d *caps.Descriptor, b caps.Bounds, v int64) int64 {
	v = b.Clamp(v)
	if !d.Enumerated() || d.Member(v) {
		return v
	}
	for c := v - 1; c >= b.Min; c-- {
		if d.Member(c) {
			return c
		}
	}
	for c := v + 1; c <= b.Max; c++ {
		if d.Member(c) {
			return c
		}
	}
	return v
}

func adjustBitrateMode(_ ValueReader, _ caps.Codec, d *caps.Descriptor, cur Instance) Instance {
	cur = unrestricted(d, cur)
	if !d.Member(cur.Value) {
		cur.Value = d.Default
	}
	return cur
}

// Long-term reference frames are unavailable under constant bitrate.
func adjustLTRCount(r ValueReader, _ caps.Codec, d *caps.Descriptor, cur Instance) Instance {
	if valueOr(r, caps.BitrateMode, caps.BitrateModeVBR) == caps.BitrateModeCBR {
		return restrict(d, cur, caps.Bounds{Min: 0, Max: 0})
	}
	return unrestricted(d, cur)
}

// USE_LTR is a bitmask over the configured LTR frames.
func adjustUseLTR(r ValueReader, _ caps.Codec, d *caps.Descriptor, cur Instance) Instance {
	n := valueOr(r, caps.LTRCount, 0)
	if n <= 0 {
		return restrict(d, cur, caps.Bounds{Min: 0, Max: 0})
	}
	return restrict(d, cur, caps.Bounds{Min: 0, Max: int64(1)<<uint(n) - 1})
}

// MARK_LTR is an index into the configured LTR frames.
func adjustMarkLTR(r ValueReader, _ caps.Codec, d *caps.Descriptor, cur Instance) Instance {
	n := valueOr(r, caps.LTRCount, 0)
	if n <= 0 {
		return restrict(d, cur, caps.Bounds{Min: 0, Max: 0})
	}
	return restrict(d, cur, caps.Bounds{Min: 0, Max: n - 1})
}

func disabledUnderCQ(r ValueReader, _ caps.Codec, d *caps.Descriptor, cur Instance) Instance {
	if valueOr(r, caps.BitrateMode, caps.BitrateModeVBR) == caps.BitrateModeCQ {
		return restrict(d, cur, caps.Bounds{Min: 0, Max: 0})
	}
	return unrestricted(d, cur)
}

// 10-bit input extends the QP range below zero.
func adjustQPRange(r ValueReader, _ caps.Codec, d *caps.Descriptor, cur Instance) Instance {
	if caps.Is10Bit(valueOr(r, caps.PixFmts, caps.PixFmtNV12)) {
		return restrict(d, cur, caps.Bounds{Min: caps.MinQP10Bit, Max: caps.MaxQP})
	}
	return restrict(d, cur, caps.Bounds{Min: caps.MinQP8Bit, Max: caps.MaxQP})
}

// HEVC 10-bit input requires the Main10 profile; 8-bit input excludes it.
func adjustProfile(r ValueReader, codec caps.Codec, d *caps.Descriptor, cur Instance) Instance {
	if codec != caps.HEVC {
		return unrestricted(d, cur)
	}
	if caps.Is10Bit(valueOr(r, caps.PixFmts, caps.PixFmtNV12)) {
		return restrict(d, cur, caps.Bounds{Min: caps.HEVCProfileMain10, Max: caps.HEVCProfileMain10})
	}
	return restrict(d, cur, caps.Bounds{Min: caps.HEVCProfileMain, Max: caps.HEVCProfileMainStill})
}

// Baseline profiles have no CABAC.
func adjustEntropyMode(r ValueReader, _ caps.Codec, d *caps.Descriptor, cur Instance) Instance {
	switch valueOr(r, caps.Profile, caps.H264ProfileHigh) {
	case caps.H264ProfileBaseline, caps.H264ProfileConstrainedBaseline:
		return restrict(d, cur, caps.Bounds{Min: caps.EntropyCAVLC, Max: caps.EntropyCAVLC})
	}
	return unrestricted(d, cur)
}

// The 8x8 transform exists only in the High profiles.
func adjustTransform8X8(r ValueReader, _ caps.Codec, d *caps.Descriptor, cur Instance) Instance {
	switch valueOr(r, caps.Profile, caps.H264ProfileHigh) {
	case caps.H264ProfileHigh, caps.H264ProfileConstrainedHigh:
		return unrestricted(d, cur)
	}
	return restrict(d, cur, caps.Bounds{Min: 0, Max: 0})
}
