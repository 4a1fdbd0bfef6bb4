package checkpoint

import (
	"math"
	"testing"
)

// createTestWriter opens a fresh writer with two columns already defined
// and define mode closed, ready for WriteRow.
func createTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := Create(dir, "run")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	if err := w.DefineColumn("V", "mV"); err != nil {
		t.Fatalf("DefineColumn(V) failed: %v", err)
	}
	if err := w.DefineColumn("W", "dimensionless"); err != nil {
		t.Fatalf("DefineColumn(W) failed: %v", err)
	}
	if err := w.DefineUnlimitedDimension("Time", "msecs", 10); err != nil {
		t.Fatalf("DefineUnlimitedDimension() failed: %v", err)
	}
	if err := w.EndDefineMode(); err != nil {
		t.Fatalf("EndDefineMode() failed: %v", err)
	}
	return w, dir
}

// writeTestRows appends n frames at times 0, 1, ... n-1 with recognizable
// sample values.
func writeTestRows(t *testing.T, w *Writer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := w.WriteRow(float64(i), map[string][]float64{
			"V": {float64(i), float64(i) + 0.5, float64(i) + 0.75},
			"W": {0, 0.1, 0.2},
		})
		if err != nil {
			t.Fatalf("WriteRow(%d) failed: %v", i, err)
		}
	}
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-15 {
			return false
		}
	}
	return true
}
