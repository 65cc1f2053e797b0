package engine

import (
	"fmt"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// setFunc turns a committed value into a firmware payload. It returns nil
// when the value needs no write in the current configuration. The commit
// pipeline fills in the capability, property id and port.
type setFunc func(r ValueReader, codec caps.Codec, v int64) (*caps.EncodedProperty, error)

// setters holds exactly one implementation per caps.SetRule.
var setters = map[caps.SetRule]setFunc{
	caps.SetU32:             setU32,
	caps.SetU32Enum:         setU32Enum,
	caps.SetQ16:             setQ16,
	caps.SetHeaderMode:      setHeaderMode,
	caps.SetConstantQuality: setConstantQuality,
	caps.SetUseAndMarkLTR:   setUseAndMarkLTR,
	caps.SetMinQP:           setMinQP,
	caps.SetMaxQP:           setMaxQP,
	caps.SetFrameQP:         setFrameQP,
	caps.SetDeblockMode:     setDeblockMode,
	caps.SetRateControl:     setRateControl,
}

// Firmware rate control types.
const (
	hfiRateControlVBRCFR   uint32 = 0x0
	hfiRateControlCBRCFR   uint32 = 0x1
	hfiRateControlCQ       uint32 = 0x2
	hfiRateControlOff      uint32 = 0x3
	hfiRateControlCBRVFR   uint32 = 0x4
	hfiRateControlLossless uint32 = 0x5
)

// Firmware sequence header modes.
const (
	hfiSeqHeaderSeparate   uint32 = 0x1
	hfiSeqHeaderJoined     uint32 = 0x2
	hfiSeqHeaderPrefixSync uint32 = 0x4
	hfiSeqHeaderMetadata   uint32 = 0x8
)

// Firmware deblocking modes.
const (
	hfiDeblockAllBoundary     uint32 = 0x0
	hfiDeblockDisable         uint32 = 0x1
	hfiDeblockDisableAtSlices uint32 = 0x2
)

// Packed QP payloads carry I, P and B in the low three bytes and the
// per-frame-type enable mask in the top byte.
const (
	qpEnableAll   uint32 = 0x7
	qpOffset10Bit int64  = -caps.MinQP10Bit
	lfOffset      int64  = 6
)

func property(t caps.PayloadType, v uint32) *caps.EncodedProperty {
	return &caps.EncodedProperty{PayloadType: t, Payload: caps.U32Payload(v)}
}

func setU32(_ ValueReader, _ caps.Codec, v int64) (*caps.EncodedProperty, error) {
	return property(caps.PayloadU32, uint32(v)), nil
}

func setU32Enum(_ ValueReader, _ caps.Codec, v int64) (*caps.EncodedProperty, error) {
	return property(caps.PayloadU32Enum, uint32(v)), nil
}

func setQ16(_ ValueReader, _ caps.Codec, v int64) (*caps.EncodedProperty, error) {
	return property(caps.PayloadQ16, uint32(v)), nil
}

func setHeaderMode(r ValueReader, _ caps.Codec, v int64) (*caps.EncodedProperty, error) {
	var mode uint32
	switch v {
	case caps.HeaderModeSeparate:
		mode = hfiSeqHeaderSeparate
	case caps.HeaderModeJoined:
		mode = hfiSeqHeaderJoined
	default:
		return nil, fmt.Errorf("header mode %d has no firmware equivalent", v)
	}
	if valueOr(r, caps.PrependSPSPPSToIDR, 0) != 0 {
		mode |= hfiSeqHeaderPrefixSync
	}
	if valueOr(r, caps.MetaSeqHDRNAL, 0) != 0 {
		mode |= hfiSeqHeaderMetadata
	}
	return property(caps.PayloadU32Enum, mode), nil
}

// Constant quality only matters in CQ mode.
func setConstantQuality(r ValueReader, _ caps.Codec, v int64) (*caps.EncodedProperty, error) {
	if valueOr(r, caps.BitrateMode, caps.BitrateModeVBR) != caps.BitrateModeCQ {
		return nil, nil
	}
	return property(caps.PayloadU32, uint32(v)), nil
}

func setUseAndMarkLTR(r ValueReader, _ caps.Codec, v int64) (*caps.EncodedProperty, error) {
	if valueOr(r, caps.LTRCount, 0) == 0 {
		return nil, nil
	}
	return property(caps.PayloadU32, uint32(v)), nil
}

func qpOffset(r ValueReader) int64 {
	if caps.Is10Bit(valueOr(r, caps.PixFmts, caps.PixFmtNV12)) {
		return qpOffset10Bit
	}
	return 0
}

func packQP(i, p, b, offset int64, enable uint32) uint32 {
	pack := func(qp int64) uint32 { return uint32(qp+offset) & 0xff }
	return pack(i) | pack(p)<<8 | pack(b)<<16 | enable<<24
}

// The session-wide minimum raises each per-frame-type minimum.
func setMinQP(r ValueReader, _ caps.Codec, v int64) (*caps.EncodedProperty, error) {
	i := max(v, valueOr(r, caps.IFrameMinQP, v))
	p := max(v, valueOr(r, caps.PFrameMinQP, v))
	b := max(v, valueOr(r, caps.BFrameMinQP, v))
	return property(caps.Payload32Packed, packQP(i, p, b, qpOffset(r), qpEnableAll)), nil
}

// The session-wide maximum lowers each per-frame-type maximum.
func setMaxQP(r ValueReader, _ caps.Codec, v int64) (*caps.EncodedProperty, error) {
	i := min(v, valueOr(r, caps.IFrameMaxQP, v))
	p := min(v, valueOr(r, caps.PFrameMaxQP, v))
	b := min(v, valueOr(r, caps.BFrameMaxQP, v))
	return property(caps.Payload32Packed, packQP(i, p, b, qpOffset(r), qpEnableAll)), nil
}

// Fixed frame QPs are only enabled when rate control is off or in CQ
// mode; otherwise the write carries an empty enable mask.
func setFrameQP(r ValueReader, _ caps.Codec, v int64) (*caps.EncodedProperty, error) {
	var enable uint32
	if valueOr(r, caps.FrameRCEnable, 1) == 0 || valueOr(r, caps.BitrateMode, caps.BitrateModeVBR) == caps.BitrateModeCQ {
		enable = qpEnableAll
	}
	p := valueOr(r, caps.PFrameQP, v)
	b := valueOr(r, caps.BFrameQP, v)
	return property(caps.Payload32Packed, packQP(v, p, b, qpOffset(r), enable)), nil
}

func setDeblockMode(r ValueReader, codec caps.Codec, v int64) (*caps.EncodedProperty, error) {
	mode, err := deblockMode(codec, v)
	if err != nil {
		return nil, err
	}
	alpha := uint32(valueOr(r, caps.LFAlpha, 0)+lfOffset) & 0xff
	beta := uint32(valueOr(r, caps.LFBeta, 0)+lfOffset) & 0xff
	return property(caps.Payload32Packed, alpha<<16|beta<<8|mode), nil
}

func deblockMode(codec caps.Codec, v int64) (uint32, error) {
	switch {
	case codec == caps.H264 && v == caps.H264LoopFilterEnabled,
		codec == caps.HEVC && v == caps.HEVCLoopFilterEnabled:
		return hfiDeblockAllBoundary, nil
	case codec == caps.H264 && v == caps.H264LoopFilterDisabled,
		codec == caps.HEVC && v == caps.HEVCLoopFilterDisabled:
		return hfiDeblockDisable, nil
	case v == caps.H264LoopFilterSliceBoundary:
		return hfiDeblockDisableAtSlices, nil
	}
	return 0, fmt.Errorf("loop filter mode %d has no firmware equivalent for %s", v, codec)
}

// The firmware rate control type folds in lossless coding, frame-level
// rate control and frame skipping.
func setRateControl(r ValueReader, _ caps.Codec, v int64) (*caps.EncodedProperty, error) {
	return property(caps.PayloadU32Enum, rateControl(r, v)), nil
}

func rateControl(r ValueReader, mode int64) uint32 {
	switch {
	case valueOr(r, caps.Lossless, 0) != 0:
		return hfiRateControlLossless
	case valueOr(r, caps.FrameRCEnable, 1) == 0:
		return hfiRateControlOff
	case mode == caps.BitrateModeCBR && valueOr(r, caps.FrameSkipMode, 0) != 0:
		return hfiRateControlCBRVFR
	case mode == caps.BitrateModeCBR:
		return hfiRateControlCBRCFR
	case mode == caps.BitrateModeCQ:
		return hfiRateControlCQ
	}
	return hfiRateControlVBRCFR
}
