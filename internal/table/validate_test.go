package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

func testPlatform(rows ...caps.Descriptor) *caps.Platform {
	return &caps.Platform{
		Name:         "test",
		Core:         caps.CoreCaps{EncCodecs: caps.H264 | caps.HEVC, DecCodecs: caps.H264, MaxSessionCount: 2},
		Capabilities: rows,
	}
}

func ranged(id caps.ID, min, max, def int64) caps.Descriptor {
	return caps.Descriptor{
		ID: id, Domain: caps.Encoder, Codecs: caps.H264,
		Min: min, Max: max, StepOrMask: 1, Default: def, Line: 10,
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateWaipioClean(t *testing.T) {
	p, err := CompileBytes("waipio.cue", waipioSource)
	require.NoError(t, err)
	assert.Empty(t, Validate(p))
}

func TestValidateRows(t *testing.T) {
	menu := func(def int64) caps.Descriptor {
		d := ranged(caps.BitrateMode, 0, 2, def)
		d.Flags = caps.FlagMenu
		d.StepOrMask = 0b101
		d.Menu = []caps.MenuEntry{{Name: "VBR", Value: 0}, {Name: "CQ", Value: 2}}
		return d
	}

	tests := []struct {
		name string
		row  caps.Descriptor
		want []string
	}{
		{"valid", ranged(caps.BitRate, 1, 100, 10), nil},
		{"bounds inverted", ranged(caps.BitRate, 100, 1, 10), []string{ErrBoundsInverted}},
		{"default out of range", ranged(caps.BitRate, 1, 100, 101), []string{ErrDefaultOutOfRange}},
		{"default off step", func() caps.Descriptor {
			d := ranged(caps.Rotation, 0, 270, 45)
			d.StepOrMask = 90
			return d
		}(), []string{ErrDefaultOutOfRange}},
		{"negative step", func() caps.Descriptor {
			d := ranged(caps.Rotation, 0, 270, 0)
			d.StepOrMask = -1
			return d
		}(), []string{ErrNegativeStep}},
		{"valid menu", menu(2), nil},
		{"default not in menu", menu(1), []string{ErrDefaultNotMember}},
		{"empty menu", func() caps.Descriptor {
			d := menu(0)
			d.Menu = nil
			d.StepOrMask = 0
			return d
		}(), []string{ErrEmptyMenu, ErrDefaultNotMember}},
		{"duplicate menu value", func() caps.Descriptor {
			d := menu(0)
			d.Menu = append(d.Menu, caps.MenuEntry{Name: "AGAIN", Value: 2})
			return d
		}(), []string{ErrMenuConflict}},
		{"menu value outside bounds", func() caps.Descriptor {
			d := menu(0)
			d.Menu = append(d.Menu, caps.MenuEntry{Name: "FAR", Value: 9})
			return d
		}(), []string{ErrMenuConflict}},
		{"unknown adjust", func() caps.Descriptor {
			d := ranged(caps.BitRate, 1, 100, 10)
			d.Adjust = "bogus"
			return d
		}(), []string{ErrUnknownAdjust}},
		{"unknown set", func() caps.Descriptor {
			d := ranged(caps.BitRate, 1, 100, 10)
			d.Set = "bogus"
			return d
		}(), []string{ErrUnknownSet}},
		{"writable without firmware property", func() caps.Descriptor {
			d := ranged(caps.BitRate, 1, 100, 10)
			d.Set = caps.SetU32
			return d
		}(), nil},
		{"port conflict", func() caps.Descriptor {
			d := ranged(caps.BitRate, 1, 100, 10)
			d.Flags = caps.FlagInputPort | caps.FlagOutputPort
			return d
		}(), []string{ErrPortConflict}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(testPlatform(tt.row))
			if tt.want == nil {
				assert.Empty(t, errs)
				return
			}
			assert.ElementsMatch(t, tt.want, codes(errs))
			for _, e := range errs {
				assert.Equal(t, 10, e.Line)
			}
		})
	}
}

func TestValidateRootWithParents(t *testing.T) {
	parent := ranged(caps.BitrateMode, 0, 1, 0)
	child := ranged(caps.LTRCount, 0, 2, 0)
	child.Flags = caps.FlagRoot
	child.Parents = []caps.ID{caps.BitrateMode}

	errs := Validate(testPlatform(parent, child))
	assert.Equal(t, []string{ErrRootWithParents}, codes(errs))
}

func TestValidateDuplicateEdges(t *testing.T) {
	parent := ranged(caps.BitrateMode, 0, 1, 0)
	parent.Children = []caps.ID{caps.LTRCount, caps.LTRCount}
	child := ranged(caps.LTRCount, 0, 2, 0)
	child.Parents = []caps.ID{caps.BitrateMode}

	errs := Validate(testPlatform(parent, child))
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateEdge, errs[0].Code)
	assert.Equal(t, "BITRATE_MODE.children", errs[0].Field)
	assert.Contains(t, errs[0].Message, "LTR_COUNT listed twice")

	child.Parents = []caps.ID{caps.BitrateMode, caps.BitrateMode}
	errs = Validate(testPlatform(parent, child))
	assert.Equal(t, []string{ErrDuplicateEdge, ErrDuplicateEdge}, codes(errs))
}

func TestValidateOverlaps(t *testing.T) {
	all := ranged(caps.MBCyclesVSP, 25, 25, 25)
	all.Codecs = caps.CodecsAll
	all.Domain = caps.Decoder

	narrow := all
	narrow.Codecs = caps.VP9
	narrow.Min, narrow.Max, narrow.Default = 60, 60, 60
	assert.Empty(t, Validate(testPlatform(all, narrow)))

	// Same codec mask, domain subset wins.
	both := ranged(caps.SecureMode, 0, 1, 0)
	both.Domain = caps.DomainAll
	enc := ranged(caps.SecureMode, 0, 1, 1)
	assert.Empty(t, Validate(testPlatform(both, enc)))

	// Crossing masks: neither is narrower.
	a := ranged(caps.Profile, 0, 1, 0)
	a.Codecs = caps.H264 | caps.HEVC
	b := ranged(caps.Profile, 0, 1, 0)
	b.Codecs = caps.HEVC | caps.VP9
	b.Line = 20
	errs := Validate(testPlatform(a, b))
	require.Len(t, errs, 1)
	assert.Equal(t, ErrAmbiguousRows, errs[0].Code)
	assert.Equal(t, 20, errs[0].Line)
	assert.Contains(t, errs[0].Message, "hevc")

	// Identical masks.
	errs = Validate(testPlatform(ranged(caps.BitRate, 1, 2, 1), ranged(caps.BitRate, 1, 3, 1)))
	assert.Equal(t, []string{ErrAmbiguousRows}, codes(errs))
}

func TestValidateDanglingEdges(t *testing.T) {
	mode := ranged(caps.BitrateMode, 0, 1, 0)
	mode.Children = []caps.ID{caps.LTRCount}

	errs := Validate(testPlatform(mode))
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDanglingEdge, errs[0].Code)
	assert.Equal(t, "BITRATE_MODE.children", errs[0].Field)

	// A target that exists only for another domain is still dangling.
	ltr := ranged(caps.LTRCount, 0, 2, 0)
	ltr.Domain = caps.Decoder
	errs = Validate(testPlatform(mode, ltr))
	assert.Equal(t, []string{ErrDanglingEdge}, codes(errs))

	ltr.Domain = caps.Encoder
	assert.Empty(t, Validate(testPlatform(mode, ltr)))
}

func TestValidateCore(t *testing.T) {
	p := testPlatform()
	p.Core.MaxSessionCount = 0
	assert.Contains(t, codes(Validate(p)), ErrCoreSessionCount)

	p = testPlatform()
	p.Core.MaxSecureSessionCount = 5
	assert.Equal(t, []string{ErrCoreSessionCount}, codes(Validate(p)))

	p = testPlatform()
	p.Core.EncCodecs, p.Core.DecCodecs = 0, 0
	assert.Equal(t, []string{ErrCoreCodecs}, codes(Validate(p)))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "BIT_RATE.min", Message: "min 2 exceeds max 1", Code: ErrBoundsInverted, Line: 7}
	assert.Equal(t, "[E210] line 7: BIT_RATE.min: min 2 exceeds max 1", e.Error())

	e.Line = 0
	assert.Equal(t, "[E210] BIT_RATE.min: min 2 exceeds max 1", e.Error())

	errs := ValidationErrors{e, e}
	assert.Contains(t, errs.Error(), "2 validation errors")
}
