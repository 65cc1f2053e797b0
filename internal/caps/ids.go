package caps

import (
	"fmt"
	"strings"
)

// ID identifies one semantic capability (a tunable encoder or decoder control).
//
// IDs are ordered; the commit pipeline breaks topological ties by ascending ID.
type ID int

// Capability identifiers, in platform table order.
const (
	InvalidID ID = iota
	FrameWidth
	LosslessFrameWidth
	SecureFrameWidth
	HEVCImageFrameWidth
	HEICImageFrameWidth
	FrameHeight
	LosslessFrameHeight
	SecureFrameHeight
	HEVCImageFrameHeight
	HEICImageFrameHeight
	PixFmts
	MinBuffersInput
	MinBuffersOutput
	MBPF
	LosslessMBPF
	BatchMBPF
	SecureMBPF
	MBPS
	PowerSaveMBPS
	FrameRate
	OperatingRate
	ScaleX
	ScaleY
	BFrame
	MBCyclesVSP
	MBCyclesVPP
	MBCyclesLP
	MBCyclesFW
	MBCyclesFWVPP
	SecureMode
	HFlip
	VFlip
	Rotation
	SliceInterface
	HeaderMode
	PrependSPSPPSToIDR
	MetaSeqHDRNAL
	RequestIFrame
	BitRate
	BitrateMode
	Lossless
	FrameSkipMode
	FrameRCEnable
	ConstantQuality
	GOPSize
	GOPClosure
	BlurTypes
	BlurResolution
	HEIC
	LowLatencyMode
	LTRCount
	UseLTR
	MarkLTR
	BaseLayerPriority
	IRRandom
	AUDelimiter
	TimeDeltaBasedRC
	ContentAdaptiveCoding
	BitrateBoost
	VBVDelay
	MinFrameQP
	IFrameMinQP
	PFrameMinQP
	BFrameMinQP
	MaxFrameQP
	IFrameMaxQP
	PFrameMaxQP
	BFrameMaxQP
	HEVCHierQP
	IFrameQP
	PFrameQP
	BFrameQP
	L0QP
	L1QP
	L2QP
	L3QP
	L4QP
	L5QP
	HierLayerQP
	HierCodingType
	HierCoding
	HierCodingLayer
	L0BR
	L1BR
	L2BR
	L3BR
	L4BR
	L5BR
	EntropyMode
	Profile
	Level
	HEVCTier
	LFMode
	LFAlpha
	LFBeta
	SliceMaxBytes
	SliceMaxMB
	SliceMode
	MBRC
	Transform8X8
	ChromaQPIndexOffset
	DisplayDelayEnable
	DisplayDelay
	ConcealColor8Bit
	ConcealColor10Bit
	Stage
	Pipe
	POC
	QualityMode
	CodedFrames
	BitDepth
	CodecConfig
	BitstreamSizeOverwrite
	ThumbnailMode
	DefaultHeader
	RapFrame
	MetaLTRMarkUse
	MetaDPBMISR
	MetaOPBMISR
	MetaInterlace
	MetaTimestamp
	MetaConcealedMBCnt
	MetaHistInfo
	MetaSEIMasteringDisp
	MetaSEICLL
	MetaHDR10Plus
	MetaEVAStats
	MetaBufTag
	MetaSubframeOutput
	MetaEncQPMetadata
	MetaROIInfo

	numIDs
)

// idNames is indexed by ID.
var idNames = [...]string{
	"INVALID",
	"FRAME_WIDTH",
	"LOSSLESS_FRAME_WIDTH",
	"SECURE_FRAME_WIDTH",
	"HEVC_IMAGE_FRAME_WIDTH",
	"HEIC_IMAGE_FRAME_WIDTH",
	"FRAME_HEIGHT",
	"LOSSLESS_FRAME_HEIGHT",
	"SECURE_FRAME_HEIGHT",
	"HEVC_IMAGE_FRAME_HEIGHT",
	"HEIC_IMAGE_FRAME_HEIGHT",
	"PIX_FMTS",
	"MIN_BUFFERS_INPUT",
	"MIN_BUFFERS_OUTPUT",
	"MBPF",
	"LOSSLESS_MBPF",
	"BATCH_MBPF",
	"SECURE_MBPF",
	"MBPS",
	"POWER_SAVE_MBPS",
	"FRAME_RATE",
	"OPERATING_RATE",
	"SCALE_X",
	"SCALE_Y",
	"B_FRAME",
	"MB_CYCLES_VSP",
	"MB_CYCLES_VPP",
	"MB_CYCLES_LP",
	"MB_CYCLES_FW",
	"MB_CYCLES_FW_VPP",
	"SECURE_MODE",
	"HFLIP",
	"VFLIP",
	"ROTATION",
	"SLICE_INTERFACE",
	"HEADER_MODE",
	"PREPEND_SPSPPS_TO_IDR",
	"META_SEQ_HDR_NAL",
	"REQUEST_I_FRAME",
	"BIT_RATE",
	"BITRATE_MODE",
	"LOSSLESS",
	"FRAME_SKIP_MODE",
	"FRAME_RC_ENABLE",
	"CONSTANT_QUALITY",
	"GOP_SIZE",
	"GOP_CLOSURE",
	"BLUR_TYPES",
	"BLUR_RESOLUTION",
	"HEIC",
	"LOWLATENCY_MODE",
	"LTR_COUNT",
	"USE_LTR",
	"MARK_LTR",
	"BASELAYER_PRIORITY",
	"IR_RANDOM",
	"AU_DELIMITER",
	"TIME_DELTA_BASED_RC",
	"CONTENT_ADAPTIVE_CODING",
	"BITRATE_BOOST",
	"VBV_DELAY",
	"MIN_FRAME_QP",
	"I_FRAME_MIN_QP",
	"P_FRAME_MIN_QP",
	"B_FRAME_MIN_QP",
	"MAX_FRAME_QP",
	"I_FRAME_MAX_QP",
	"P_FRAME_MAX_QP",
	"B_FRAME_MAX_QP",
	"HEVC_HIER_QP",
	"I_FRAME_QP",
	"P_FRAME_QP",
	"B_FRAME_QP",
	"L0_QP",
	"L1_QP",
	"L2_QP",
	"L3_QP",
	"L4_QP",
	"L5_QP",
	"HIER_LAYER_QP",
	"HIER_CODING_TYPE",
	"HIER_CODING",
	"HIER_CODING_LAYER",
	"L0_BR",
	"L1_BR",
	"L2_BR",
	"L3_BR",
	"L4_BR",
	"L5_BR",
	"ENTROPY_MODE",
	"PROFILE",
	"LEVEL",
	"HEVC_TIER",
	"LF_MODE",
	"LF_ALPHA",
	"LF_BETA",
	"SLICE_MAX_BYTES",
	"SLICE_MAX_MB",
	"SLICE_MODE",
	"MB_RC",
	"TRANSFORM_8X8",
	"CHROMA_QP_INDEX_OFFSET",
	"DISPLAY_DELAY_ENABLE",
	"DISPLAY_DELAY",
	"CONCEAL_COLOR_8BIT",
	"CONCEAL_COLOR_10BIT",
	"STAGE",
	"PIPE",
	"POC",
	"QUALITY_MODE",
	"CODED_FRAMES",
	"BIT_DEPTH",
	"CODEC_CONFIG",
	"BITSTREAM_SIZE_OVERWRITE",
	"THUMBNAIL_MODE",
	"DEFAULT_HEADER",
	"RAP_FRAME",
	"META_LTR_MARK_USE",
	"META_DPB_MISR",
	"META_OPB_MISR",
	"META_INTERLACE",
	"META_TIMESTAMP",
	"META_CONCEALED_MB_CNT",
	"META_HIST_INFO",
	"META_SEI_MASTERING_DISP",
	"META_SEI_CLL",
	"META_HDR10PLUS",
	"META_EVA_STATS",
	"META_BUF_TAG",
	"META_SUBFRAME_OUTPUT",
	"META_ENC_QP_METADATA",
	"META_ROI_INFO",
}

// Compile-time check that idNames covers every constant.
var _ = [1]struct{}{}[len(idNames)-int(numIDs)]

var idByName = func() map[string]ID {
	m := make(map[string]ID, len(idNames))
	for i, name := range idNames {
		if ID(i) == InvalidID {
			continue
		}
		m[name] = ID(i)
	}
	return m
}()

// String returns the table name of the capability (e.g. "BITRATE_MODE").
func (id ID) String() string {
	if id > InvalidID && id < numIDs {
		return idNames[id]
	}
	return fmt.Sprintf("CAP(%d)", int(id))
}

// Valid reports whether id names a known capability.
func (id ID) Valid() bool {
	return id > InvalidID && id < numIDs
}

// ParseID resolves a capability name. Matching is case-insensitive.
func ParseID(name string) (ID, error) {
	if id, ok := idByName[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return id, nil
	}
	return InvalidID, fmt.Errorf("unknown capability name %q", name)
}

// AllIDs returns every known capability in ascending order.
func AllIDs() []ID {
	ids := make([]ID, 0, int(numIDs)-1)
	for id := InvalidID + 1; id < numIDs; id++ {
		ids = append(ids, id)
	}
	return ids
}

// MarshalText encodes the capability by name.
func (id ID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("cannot encode invalid capability id %d", int(id))
	}
	return []byte(idNames[id]), nil
}

// UnmarshalText decodes a capability name.
func (id *ID) UnmarshalText(b []byte) error {
	v, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
