package simdef

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalHash_Deterministic(t *testing.T) {
	def := minimalDefinition()

	h1, err := CanonicalHash(def)
	require.NoError(t, err)
	h2, err := CanonicalHash(def)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "sha256 hex digest")
}

func TestCanonicalHash_SensitiveToFields(t *testing.T) {
	base := minimalDefinition()
	baseHash, err := CanonicalHash(base)
	require.NoError(t, err)

	changed := minimalDefinition()
	changed.Durations.End = 4.0
	changedHash, err := CanonicalHash(changed)
	require.NoError(t, err)

	assert.NotEqual(t, baseHash, changedHash)
}

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"zeta":  1,
		"alpha": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"zeta":1}`, string(out))
}

func TestMarshalCanonical_FloatFormatting(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"int":   3,
		"float": 0.5,
		"tiny":  1e-10,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"float":0.5,"int":3,"tiny":1e-10}`, string(out))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"s": "a<b&c>d"})
	require.NoError(t, err)
	assert.Equal(t, `{"s":"a<b&c>d"}`, string(out))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "é" as combining sequence (e + U+0301) must hash identically to the
	// precomposed form.
	composed, err := MarshalCanonical(map[string]any{"s": "é"})
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(map[string]any{"s": "é"})
	require.NoError(t, err)
	assert.Equal(t, string(composed), string(decomposed))
}
