package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

func TestAnalyzeCyclesWaipio(t *testing.T) {
	p, err := Waipio()
	require.NoError(t, err)
	assert.Empty(t, AnalyzeCycles(p))
}

func TestAnalyzeCyclesEmpty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(testPlatform()))
}

func TestAnalyzeCyclesDAG(t *testing.T) {
	mode := ranged(caps.BitrateMode, 0, 1, 0)
	mode.Children = []caps.ID{caps.LTRCount}
	ltr := ranged(caps.LTRCount, 0, 2, 0)
	ltr.Parents = []caps.ID{caps.BitrateMode}
	ltr.Children = []caps.ID{caps.UseLTR}
	use := ranged(caps.UseLTR, 0, 3, 0)

	assert.Empty(t, AnalyzeCycles(testPlatform(mode, ltr, use)))
}

func TestAnalyzeCyclesTwoNodes(t *testing.T) {
	mode := ranged(caps.BitrateMode, 0, 1, 0)
	mode.Children = []caps.ID{caps.LTRCount}
	ltr := ranged(caps.LTRCount, 0, 2, 0)
	ltr.Children = []caps.ID{caps.BitrateMode}

	warnings := AnalyzeCycles(testPlatform(mode, ltr))
	require.Len(t, warnings, 1)
	w := warnings[0]
	assert.Equal(t, caps.H264, w.Codec)
	assert.Equal(t, caps.Encoder, w.Domain)
	assert.Equal(t, []caps.ID{caps.BitrateMode, caps.LTRCount, caps.BitrateMode}, w.Path)
	assert.Contains(t, w.Message, "BITRATE_MODE -> LTR_COUNT -> BITRATE_MODE")
	assert.Equal(t, "error", w.Level)
}

func TestAnalyzeCyclesFromParentDeclaration(t *testing.T) {
	// The back edge exists only as a parent entry.
	mode := ranged(caps.BitrateMode, 0, 1, 0)
	mode.Children = []caps.ID{caps.LTRCount}
	mode.Parents = []caps.ID{caps.UseLTR}
	ltr := ranged(caps.LTRCount, 0, 2, 0)
	ltr.Children = []caps.ID{caps.UseLTR}
	use := ranged(caps.UseLTR, 0, 3, 0)

	warnings := AnalyzeCycles(testPlatform(mode, ltr, use))
	require.Len(t, warnings, 1)
	assert.Equal(t, []caps.ID{caps.BitrateMode, caps.LTRCount, caps.UseLTR, caps.BitrateMode}, warnings[0].Path)
}

func TestAnalyzeCyclesSelfLoop(t *testing.T) {
	mode := ranged(caps.BitrateMode, 0, 1, 0)
	mode.Children = []caps.ID{caps.BitrateMode}

	warnings := AnalyzeCycles(testPlatform(mode))
	require.Len(t, warnings, 1)
	assert.Equal(t, []caps.ID{caps.BitrateMode, caps.BitrateMode}, warnings[0].Path)
}

func TestAnalyzeCyclesPerSession(t *testing.T) {
	// The cycle only closes for HEVC encoders.
	mode := ranged(caps.BitrateMode, 0, 1, 0)
	mode.Codecs = caps.H264 | caps.HEVC
	mode.Children = []caps.ID{caps.LTRCount}
	ltr := ranged(caps.LTRCount, 0, 2, 0)
	ltr.Codecs = caps.HEVC
	ltr.Children = []caps.ID{caps.BitrateMode}

	warnings := AnalyzeCycles(testPlatform(mode, ltr))
	require.Len(t, warnings, 1)
	assert.Equal(t, caps.HEVC, warnings[0].Codec)
}
