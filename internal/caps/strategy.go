package caps

// AdjustRule names an adjust strategy. The set is closed; the engine holds
// exactly one implementation per rule.
type AdjustRule string

const (
	AdjustNone         AdjustRule = ""
	AdjustBitrateMode  AdjustRule = "bitrate_mode"
	AdjustLTRCount     AdjustRule = "ltr_count"
	AdjustUseLTR       AdjustRule = "use_ltr"
	AdjustMarkLTR      AdjustRule = "mark_ltr"
	AdjustIRRandom     AdjustRule = "ir_random"
	AdjustDeltaBasedRC AdjustRule = "delta_based_rc"
	AdjustHEVCMinQP    AdjustRule = "hevc_min_qp"
	AdjustHEVCMaxQP    AdjustRule = "hevc_max_qp"
	AdjustHEVCFrameQP  AdjustRule = "hevc_frame_qp"
	AdjustProfile      AdjustRule = "profile"
	AdjustEntropyMode  AdjustRule = "entropy_mode"
	AdjustTransform8X8 AdjustRule = "transform_8x8"
)

// AdjustRules lists every adjust strategy.
var AdjustRules = []AdjustRule{
	AdjustBitrateMode,
	AdjustLTRCount,
	AdjustUseLTR,
	AdjustMarkLTR,
	AdjustIRRandom,
	AdjustDeltaBasedRC,
	AdjustHEVCMinQP,
	AdjustHEVCMaxQP,
	AdjustHEVCFrameQP,
	AdjustProfile,
	AdjustEntropyMode,
	AdjustTransform8X8,
}

// Known reports whether r is AdjustNone or a listed rule.
func (r AdjustRule) Known() bool {
	if r == AdjustNone {
		return true
	}
	for _, k := range AdjustRules {
		if k == r {
			return true
		}
	}
	return false
}

// SetRule names a set strategy that turns a value into a firmware payload.
type SetRule string

const (
	SetNone            SetRule = ""
	SetU32             SetRule = "u32"
	SetU32Enum         SetRule = "u32_enum"
	SetQ16             SetRule = "q16"
	SetHeaderMode      SetRule = "header_mode"
	SetConstantQuality SetRule = "constant_quality"
	SetUseAndMarkLTR   SetRule = "use_and_mark_ltr"
	SetMinQP           SetRule = "min_qp"
	SetMaxQP           SetRule = "max_qp"
	SetFrameQP         SetRule = "frame_qp"
	SetDeblockMode     SetRule = "deblock_mode"
	SetRateControl     SetRule = "rate_control"
)

// SetRules lists every set strategy.
var SetRules = []SetRule{
	SetU32,
	SetU32Enum,
	SetQ16,
	SetHeaderMode,
	SetConstantQuality,
	SetUseAndMarkLTR,
	SetMinQP,
	SetMaxQP,
	SetFrameQP,
	SetDeblockMode,
	SetRateControl,
}

// Known reports whether r is SetNone or a listed rule.
func (r SetRule) Known() bool {
	if r == SetNone {
		return true
	}
	for _, k := range SetRules {
		if k == r {
			return true
		}
	}
	return false
}
