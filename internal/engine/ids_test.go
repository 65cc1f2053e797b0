package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("s-1", "s-2")
	assert.Equal(t, "s-1", g.Generate())
	assert.Equal(t, "s-2", g.Generate())
	assert.PanicsWithValue(t, "FixedGenerator: all ids exhausted", func() { g.Generate() })
}
