package caps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int", int64(-12), "-12"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"bool", true, "true"},
		{"empty array", []int{}, "[]"},
		{"capability id", BitrateMode, `"BITRATE_MODE"`},
		{"bounds", Bounds{Min: -12, Max: 51}, `{"max":51,"min":-12}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  map[string]any{"y": 1, "x": 2},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"x":2,"y":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair (0xD800...) and sorts before U+E000.
	obj := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(result))
}

func TestMarshalCanonicalLineSeparatorsLiteral(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b\\u2029")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\\\\u2029\"", string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	result, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(1.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-integer")

	_, err = MarshalCanonical(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")

	_, err = MarshalCanonical(map[string]any{"k": nil})
	require.Error(t, err)
}

func TestTableHashDeterministic(t *testing.T) {
	p := &Platform{
		Name: "test",
		Core: CoreCaps{EncCodecs: H264, DecCodecs: H264 | HEVC, MaxSessionCount: 2},
		Capabilities: []Descriptor{
			{ID: BitRate, Domain: Encoder, Codecs: H264, Min: 1, Max: 100, StepOrMask: 1, Default: 10, Set: "u32", HWPropertyID: 0x0300012a},
		},
	}

	h1, err := TableHash(p)
	require.NoError(t, err)
	h2, err := TableHash(p)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	p.Hash = h1
	h3, err := TableHash(p)
	require.NoError(t, err)
	assert.Equal(t, h1, h3, "stored hash must not feed back into the digest")

	p.Capabilities[0].Default = 11
	h4, err := TableHash(p)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h4)
}

func TestHashDomainSeparation(t *testing.T) {
	v := map[string]any{"a": 1}
	assert.NotEqual(t, MustHash(HashDomainTable, v), MustHash(HashDomainState, v))
}
