package caps

// Control values the adjust and set strategies interpret. They match the
// menu entries of the platform tables.

// BITRATE_MODE
const (
	BitrateModeVBR int64 = 0
	BitrateModeCBR int64 = 1
	BitrateModeCQ  int64 = 2
)

// PROFILE for H264 sessions.
const (
	H264ProfileBaseline            int64 = 0
	H264ProfileConstrainedBaseline int64 = 1
	H264ProfileMain                int64 = 2
	H264ProfileHigh                int64 = 4
	H264ProfileConstrainedHigh     int64 = 17
)

// PROFILE for HEVC sessions.
const (
	HEVCProfileMain      int64 = 0
	HEVCProfileMainStill int64 = 1
	HEVCProfileMain10    int64 = 2
)

// ENTROPY_MODE
const (
	EntropyCAVLC int64 = 0
	EntropyCABAC int64 = 1
)

// HEADER_MODE
const (
	HeaderModeSeparate int64 = 0
	HeaderModeJoined   int64 = 1
)

// LF_MODE values differ per codec.
const (
	H264LoopFilterEnabled       int64 = 0
	H264LoopFilterDisabled      int64 = 1
	H264LoopFilterSliceBoundary int64 = 2
	HEVCLoopFilterDisabled      int64 = 0
	HEVCLoopFilterEnabled       int64 = 1
	HEVCLoopFilterSliceBoundary int64 = 2
)

// PIX_FMTS bits.
const (
	PixFmtNV12  int64 = 1 << 0
	PixFmtNV21  int64 = 1 << 1
	PixFmtNV12C int64 = 1 << 2
	PixFmtP010  int64 = 1 << 3
	PixFmtTP10C int64 = 1 << 4
)

// Is10Bit reports whether a PIX_FMTS value carries 10-bit samples.
func Is10Bit(pixfmt int64) bool {
	return pixfmt == PixFmtP010 || pixfmt == PixFmtTP10C
}

// Frame rate limits in Q16.
const (
	MinimumFPS = 1
	MaximumFPS = 960
	DefaultFPS = 30

	MinimumFPSQ16 int64 = MinimumFPS << 16
	MaximumFPSQ16 int64 = MaximumFPS << 16
	DefaultFPSQ16 int64 = DefaultFPS << 16
)

// QP limits.
const (
	MinQP8Bit  int64 = 0
	MinQP10Bit int64 = -12
	MaxQP      int64 = 51
)
