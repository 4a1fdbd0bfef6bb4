package checkpoint

import (
	"testing"
)

func TestReader_ColumnsInDefinitionOrder(t *testing.T) {
	w, dir := createTestWriter(t)
	writeTestRows(t, w, 1)
	w.Close()

	r, err := OpenReader(dir, "run")
	if err != nil {
		t.Fatalf("OpenReader() failed: %v", err)
	}
	defer r.Close()

	cols, err := r.Columns()
	if err != nil {
		t.Fatalf("Columns() failed: %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("Columns() returned %d columns, want 2", len(cols))
	}
	if cols[0].Name != "V" || cols[0].Unit != "mV" || cols[0].Pos != 0 {
		t.Errorf("first column = %+v, want V/mV/0", cols[0])
	}
	if cols[1].Name != "W" || cols[1].Pos != 1 {
		t.Errorf("second column = %+v, want W at pos 1", cols[1])
	}
}

func TestReader_FrameRoundTrip(t *testing.T) {
	w, dir := createTestWriter(t)
	writeTestRows(t, w, 3)
	w.Close()

	r, err := OpenReader(dir, "run")
	if err != nil {
		t.Fatalf("OpenReader() failed: %v", err)
	}
	defer r.Close()

	n, err := r.FrameCount()
	if err != nil {
		t.Fatalf("FrameCount() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("FrameCount() = %d, want 3", n)
	}

	tm, data, err := r.Frame(1)
	if err != nil {
		t.Fatalf("Frame(1) failed: %v", err)
	}
	if tm != 1 {
		t.Errorf("Frame(1) time = %v, want 1", tm)
	}
	if !floatsEqual(data["V"], []float64{1, 1.5, 1.75}) {
		t.Errorf("Frame(1) V = %v, want [1 1.5 1.75]", data["V"])
	}
	if !floatsEqual(data["W"], []float64{0, 0.1, 0.2}) {
		t.Errorf("Frame(1) W = %v, want [0 0.1 0.2]", data["W"])
	}
}

func TestReader_ColumnSeries(t *testing.T) {
	w, dir := createTestWriter(t)
	writeTestRows(t, w, 4)
	w.Close()

	r, err := OpenReader(dir, "run")
	if err != nil {
		t.Fatalf("OpenReader() failed: %v", err)
	}
	defer r.Close()

	series, err := r.ColumnSeries("V", 1)
	if err != nil {
		t.Fatalf("ColumnSeries() failed: %v", err)
	}
	if !floatsEqual(series, []float64{0.5, 1.5, 2.5, 3.5}) {
		t.Errorf("ColumnSeries(V, 1) = %v, want [0.5 1.5 2.5 3.5]", series)
	}

	if _, err := r.ColumnSeries("nope", 0); err == nil {
		t.Error("ColumnSeries() on unknown column succeeded, want error")
	}
	if _, err := r.ColumnSeries("V", 99); err == nil {
		t.Error("ColumnSeries() past node range succeeded, want error")
	}
}

func TestReader_MetaMissingKey(t *testing.T) {
	w, dir := createTestWriter(t)
	writeTestRows(t, w, 1)
	w.Close()

	r, err := OpenReader(dir, "run")
	if err != nil {
		t.Fatalf("OpenReader() failed: %v", err)
	}
	defer r.Close()

	_, ok, err := r.Meta("absent")
	if err != nil {
		t.Fatalf("Meta() failed: %v", err)
	}
	if ok {
		t.Error("Meta(absent) reported a value")
	}

	// The unlimited-dimension declaration is stored as meta.
	name, ok, err := r.Meta("time_name")
	if err != nil || !ok || name != "Time" {
		t.Errorf("Meta(time_name) = %q ok=%v err=%v, want Time", name, ok, err)
	}
}
