package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardiolab/systole/internal/parallel"
	"github.com/cardiolab/systole/internal/simdef"
)

func TestNewSlab_1D(t *testing.T) {
	m, err := NewSlab(parallel.Serial(), 1, []float64{1.0}, 0.25)
	require.NoError(t, err)

	assert.Equal(t, 1, m.Dim())
	assert.Equal(t, 5, m.Nodes())
	assert.Equal(t, 0.25, m.Spacing())
	assert.Equal(t, 0, m.Lo())
	assert.Equal(t, 5, m.Hi())

	assert.Equal(t, []float64{0}, m.NodeCoords(0))
	assert.Equal(t, []float64{0.5}, m.NodeCoords(2))
	assert.Equal(t, []float64{1.0}, m.NodeCoords(4))

	assert.True(t, m.IsBoundary(0))
	assert.False(t, m.IsBoundary(2))
	assert.True(t, m.IsBoundary(4))
	assert.Equal(t, []int{0, 4}, m.BoundaryNodes())
}

func TestNewSlab_2D(t *testing.T) {
	m, err := NewSlab(parallel.Serial(), 2, []float64{0.2, 0.1}, 0.1)
	require.NoError(t, err)

	// 3 x 2 lattice, x fastest.
	assert.Equal(t, 6, m.Nodes())
	assert.Equal(t, 3, m.AxisNodes(0))
	assert.Equal(t, 2, m.AxisNodes(1))

	assert.InDeltaSlice(t, []float64{0.1, 0.0}, m.NodeCoords(1), 1e-12)
	assert.InDeltaSlice(t, []float64{0.1, 0.1}, m.NodeCoords(4), 1e-12)

	// Every node of a 3x2 lattice is on the surface.
	assert.Len(t, m.BoundaryNodes(), 6)
}

func TestNewSlab_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		dim    int
		extent []float64
		h      float64
	}{
		{"dimension zero", 0, []float64{1}, 0.1},
		{"dimension four", 4, []float64{1, 1, 1, 1}, 0.1},
		{"zero spacing", 1, []float64{1}, 0},
		{"extent mismatch", 2, []float64{1}, 0.1},
		{"negative extent", 1, []float64{-1}, 0.1},
		{"single node axis", 1, []float64{0.01}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSlab(parallel.Serial(), tt.dim, tt.extent, tt.h)
			require.Error(t, err)
			code, ok := simdef.ConfigCodeOf(err)
			require.True(t, ok)
			assert.Equal(t, simdef.CfgBadGeometry, code)
		})
	}
}

func TestFromDefinition(t *testing.T) {
	def := &simdef.Definition{
		Geometry: simdef.Geometry{Dim: 1, Extent: []float64{1.0}, Spacing: 0.5},
	}
	m, err := FromDefinition(parallel.Serial(), def)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Nodes())
}

func TestApplyPermutation(t *testing.T) {
	m, err := NewSlab(parallel.Serial(), 1, []float64{1.0}, 0.5)
	require.NoError(t, err)
	require.Equal(t, 3, m.Nodes())

	assert.Nil(t, m.Permutation())

	require.NoError(t, m.ApplyPermutation([]int{2, 0, 1}))
	assert.Equal(t, []int{2, 0, 1}, m.Permutation())

	assert.Error(t, m.ApplyPermutation([]int{0, 1}), "wrong length")
	assert.Error(t, m.ApplyPermutation([]int{0, 0, 1}), "not a bijection")
	assert.Error(t, m.ApplyPermutation([]int{0, 1, 3}), "index out of range")

	// A failed apply leaves the previous permutation in place.
	assert.Equal(t, []int{2, 0, 1}, m.Permutation())
}
