package field

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardiolab/systole/internal/parallel"
)

func TestPartition_CoversAllNodes(t *testing.T) {
	tests := []struct {
		name  string
		nodes int
		size  int
	}{
		{"even split", 12, 3},
		{"uneven split", 10, 3},
		{"more ranks than nodes", 2, 4},
		{"single rank", 7, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			covered := 0
			prevHi := 0
			for r := 0; r < tt.size; r++ {
				lo, hi := Partition(tt.nodes, tt.size, r)
				assert.Equal(t, prevHi, lo, "blocks must be contiguous")
				assert.LessOrEqual(t, lo, hi)
				covered += hi - lo
				prevHi = hi
			}
			assert.Equal(t, tt.nodes, covered)
			assert.Equal(t, tt.nodes, prevHi)
		})
	}
}

func TestVector_AccessorsAndStride(t *testing.T) {
	f := NewFactory(parallel.Serial(), 4)
	v := f.NewVector(2)

	assert.Equal(t, 2, v.Stride())
	assert.Equal(t, 4, v.GlobalNodes())
	assert.Equal(t, 0, v.Lo())
	assert.Equal(t, 4, v.Hi())

	v.Set(2, 0, -85.0)
	v.Set(2, 1, 0.5)
	assert.Equal(t, -85.0, v.At(2, 0))
	assert.Equal(t, 0.5, v.At(2, 1))
	assert.Equal(t, []float64{0, 0, 0, 0, -85.0, 0.5, 0, 0}, v.Local())
	assert.Equal(t, []float64{0, 0, -85.0, 0}, v.LocalStripe(0))
}

func TestVector_CopyInto(t *testing.T) {
	f := NewFactory(parallel.Serial(), 3)
	src := f.NewVector(1)
	dst := f.NewVector(1)
	src.Set(0, 0, 1)
	src.Set(1, 0, 2)
	src.Set(2, 0, 3)

	require.NoError(t, src.CopyInto(dst))
	assert.Equal(t, []float64{1, 2, 3}, dst.Local())

	other := f.NewVector(2)
	assert.Error(t, src.CopyInto(other), "stride mismatch must be rejected")
}

func TestFactory_Ledger(t *testing.T) {
	f := NewFactory(parallel.Serial(), 5)
	assert.Equal(t, 0, f.Live())

	a := f.NewVector(1)
	b := f.NewVector(2)
	assert.Equal(t, 2, f.Live())

	require.NoError(t, f.Release(a))
	assert.Equal(t, 1, f.Live())

	err := f.Release(a)
	assert.Error(t, err, "double release must surface")
	assert.Equal(t, 1, f.Live())

	require.NoError(t, f.Release(b))
	assert.Equal(t, 0, f.Live())
}

func TestFactory_ReleaseForeignVector(t *testing.T) {
	f1 := NewFactory(parallel.Serial(), 3)
	f2 := NewFactory(parallel.Serial(), 3)
	v := f1.NewVector(1)

	assert.Error(t, f2.Release(v))
	assert.Error(t, f1.Release(nil))
	assert.NoError(t, f1.Release(v))
}

func TestGather_Serial(t *testing.T) {
	f := NewFactory(parallel.Serial(), 3)
	v := f.NewVector(2)
	for n := 0; n < 3; n++ {
		v.Set(n, 0, float64(n))
		v.Set(n, 1, float64(10*n))
	}

	s0, err := Gather(parallel.Serial(), v, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, s0)

	s1, err := Gather(parallel.Serial(), v, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 20}, s1)

	_, err = Gather(parallel.Serial(), v, 2)
	assert.Error(t, err, "stripe out of range")
}

func TestGather_LocalGroup(t *testing.T) {
	const nodes = 10
	groups := parallel.NewLocal(3)

	results := make([][]float64, 3)
	var wg sync.WaitGroup
	for r, g := range groups {
		wg.Add(1)
		go func(r int, g parallel.Group) {
			defer wg.Done()
			f := NewFactory(g, nodes)
			v := f.NewVector(1)
			for n := f.Lo(); n < f.Hi(); n++ {
				v.Set(n, 0, float64(n*n))
			}
			out, err := Gather(g, v, 0)
			assert.NoError(t, err)
			results[r] = out
		}(r, g)
	}
	wg.Wait()

	want := make([]float64, nodes)
	for n := range want {
		want[n] = float64(n * n)
	}
	assert.Equal(t, want, results[0], "root receives the full stripe in node order")
	assert.Nil(t, results[1])
	assert.Nil(t, results[2])
}
