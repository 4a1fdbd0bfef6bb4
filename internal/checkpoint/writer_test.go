package checkpoint

import (
	"errors"
	"math"
	"os"
	"testing"
)

func TestCreate_RefusesExistingFile(t *testing.T) {
	_, dir := createTestWriter(t)

	_, err := Create(dir, "run")
	if !errors.Is(err, ErrExists) {
		t.Fatalf("Create() on existing file: got %v, want ErrExists", err)
	}
}

func TestCreate_OverwriteReplacesFile(t *testing.T) {
	w, dir := createTestWriter(t)
	writeTestRows(t, w, 3)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	w2, err := Create(dir, "run", WithOverwrite())
	if err != nil {
		t.Fatalf("Create(WithOverwrite) failed: %v", err)
	}
	defer w2.Close()

	if _, ok, err := w2.LastTime(); err != nil || ok {
		t.Fatalf("LastTime() on fresh overwrite: got ok=%v err=%v, want empty", ok, err)
	}
}

func TestDefineColumn_AfterEndDefineMode(t *testing.T) {
	w, _ := createTestWriter(t)

	if err := w.DefineColumn("late", "mV"); !errors.Is(err, ErrDefineOver) {
		t.Fatalf("DefineColumn() after EndDefineMode: got %v, want ErrDefineOver", err)
	}
	if err := w.DefineUnlimitedDimension("Time", "msecs", 1); !errors.Is(err, ErrDefineOver) {
		t.Fatalf("DefineUnlimitedDimension() after EndDefineMode: got %v, want ErrDefineOver", err)
	}
}

func TestWriteRow_RowAtomicAndOrdered(t *testing.T) {
	w, dir := createTestWriter(t)
	writeTestRows(t, w, 4)

	last, ok, err := w.LastTime()
	if err != nil || !ok {
		t.Fatalf("LastTime() failed: ok=%v err=%v", ok, err)
	}
	if last != 3 {
		t.Errorf("LastTime() = %v, want 3", last)
	}
	w.Close()

	r, err := OpenReader(dir, "run")
	if err != nil {
		t.Fatalf("OpenReader() failed: %v", err)
	}
	defer r.Close()

	times, err := r.Times()
	if err != nil {
		t.Fatalf("Times() failed: %v", err)
	}
	if !floatsEqual(times, []float64{0, 1, 2, 3}) {
		t.Errorf("Times() = %v, want [0 1 2 3]", times)
	}
}

func TestWriteRow_RejectsNonMonotonicTime(t *testing.T) {
	w, _ := createTestWriter(t)
	writeTestRows(t, w, 2)

	for _, tm := range []float64{1.0, 0.5, 1.0 + 1e-12} {
		err := w.WriteRow(tm, map[string][]float64{
			"V": {0, 0, 0},
			"W": {0, 0, 0},
		})
		if !errors.Is(err, ErrNonMonotonicTime) {
			t.Errorf("WriteRow(%v): got %v, want ErrNonMonotonicTime", tm, err)
		}
	}
}

func TestWriteRow_RejectsBadColumns(t *testing.T) {
	w, _ := createTestWriter(t)
	writeTestRows(t, w, 1)

	tests := []struct {
		name string
		cols map[string][]float64
	}{
		{"missing column", map[string][]float64{"V": {1, 2, 3}}},
		{"unknown column", map[string][]float64{"V": {1, 2, 3}, "W": {0, 0, 0}, "X": {1}}},
		{"short slice", map[string][]float64{"V": {1, 2, 3}, "W": {0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.WriteRow(5, tt.cols); err == nil {
				t.Fatal("WriteRow() succeeded, want error")
			}
			// The frame must not have been committed.
			last, _, err := w.LastTime()
			if err != nil {
				t.Fatalf("LastTime() failed: %v", err)
			}
			if last != 0 {
				t.Errorf("LastTime() = %v after rejected row, want 0", last)
			}
		})
	}
}

func TestWriter_CloseIsIdempotent(t *testing.T) {
	w, _ := createTestWriter(t)
	if err := w.Close(); err != nil {
		t.Fatalf("first Close() failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
}

func TestExtend_AppendsAfterStoredTime(t *testing.T) {
	w, dir := createTestWriter(t)
	writeTestRows(t, w, 3)
	w.Close()

	w2, err := Extend(dir, "run", 2.0)
	if err != nil {
		t.Fatalf("Extend() failed: %v", err)
	}
	defer w2.Close()

	if err := w2.DefineColumn("V", "mV"); err != nil {
		t.Fatalf("DefineColumn(V) lookup failed: %v", err)
	}
	if err := w2.DefineColumn("W", "dimensionless"); err != nil {
		t.Fatalf("DefineColumn(W) lookup failed: %v", err)
	}
	if err := w2.DefineUnlimitedDimension("Time", "msecs", 10); err != nil {
		t.Fatalf("DefineUnlimitedDimension() lookup failed: %v", err)
	}
	if err := w2.EndDefineMode(); err != nil {
		t.Fatalf("EndDefineMode() failed: %v", err)
	}

	err = w2.WriteRow(3.0, map[string][]float64{
		"V": {9, 9, 9},
		"W": {0, 0, 0},
	})
	if err != nil {
		t.Fatalf("WriteRow() after extend failed: %v", err)
	}
	w2.Close()

	r, err := OpenReader(dir, "run")
	if err != nil {
		t.Fatalf("OpenReader() failed: %v", err)
	}
	defer r.Close()
	times, err := r.Times()
	if err != nil {
		t.Fatalf("Times() failed: %v", err)
	}
	if !floatsEqual(times, []float64{0, 1, 2, 3}) {
		t.Errorf("Times() = %v, want [0 1 2 3]", times)
	}
}

func TestExtend_StoredTimePastResumeTime(t *testing.T) {
	w, dir := createTestWriter(t)
	writeTestRows(t, w, 3) // last stored time 2
	w.Close()

	before, err := os.ReadFile(Path(dir, "run"))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}

	_, err = Extend(dir, "run", 1.0)
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("Extend() past stored time: got %v, want ConflictError", err)
	}
	if ce.StoredTime != 2 || ce.ResumeTime != 1 {
		t.Errorf("ConflictError = %+v, want StoredTime 2 ResumeTime 1", ce)
	}

	after, err := os.ReadFile(Path(dir, "run"))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(before) != string(after) {
		t.Error("database file was modified by the failed Extend")
	}
}

func TestExtend_EmptyFileIsNotExtendable(t *testing.T) {
	w, dir := createTestWriter(t)
	w.Close() // defined but no frames

	_, err := Extend(dir, "run", 0)
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("Extend() on frameless file: got %v, want ConflictError", err)
	}
	if !math.IsNaN(ce.StoredTime) {
		t.Errorf("StoredTime = %v, want NaN", ce.StoredTime)
	}
}

func TestExtend_EqualTimeWithinToleranceProceeds(t *testing.T) {
	w, dir := createTestWriter(t)
	writeTestRows(t, w, 3) // last stored time 2
	w.Close()

	w2, err := Extend(dir, "run", 2.0)
	if err != nil {
		t.Fatalf("Extend() at stored time: %v", err)
	}
	w2.Close()
}

func TestExtend_ColumnMismatch(t *testing.T) {
	w, dir := createTestWriter(t)
	writeTestRows(t, w, 2)
	w.Close()

	tests := []struct {
		name   string
		define func(w *Writer) error
		column string
	}{
		{
			"unknown column", func(w *Writer) error {
				return w.DefineColumn("Phi_e", "mV")
			},
			"Phi_e",
		},
		{
			"unit mismatch", func(w *Writer) error {
				return w.DefineColumn("V", "volts")
			},
			"V",
		},
		{
			"stored column not redefined", func(w *Writer) error {
				if err := w.DefineColumn("V", "mV"); err != nil {
					return err
				}
				return w.EndDefineMode()
			},
			"W",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w2, err := Extend(dir, "run", 1.0)
			if err != nil {
				t.Fatalf("Extend() failed: %v", err)
			}
			defer w2.Close()

			err = tt.define(w2)
			var ce *ConflictError
			if !errors.As(err, &ce) {
				t.Fatalf("got %v, want ConflictError", err)
			}
			if ce.Column != tt.column {
				t.Errorf("ConflictError.Column = %q, want %q", ce.Column, tt.column)
			}
		})
	}
}

func TestSetMeta_Replaces(t *testing.T) {
	w, dir := createTestWriter(t)
	if err := w.SetMeta("run_id", "first"); err != nil {
		t.Fatalf("SetMeta() failed: %v", err)
	}
	if err := w.SetMeta("run_id", "second"); err != nil {
		t.Fatalf("SetMeta() replace failed: %v", err)
	}
	writeTestRows(t, w, 1)
	w.Close()

	r, err := OpenReader(dir, "run")
	if err != nil {
		t.Fatalf("OpenReader() failed: %v", err)
	}
	defer r.Close()

	v, ok, err := r.Meta("run_id")
	if err != nil || !ok {
		t.Fatalf("Meta() failed: ok=%v err=%v", ok, err)
	}
	if v != "second" {
		t.Errorf("Meta(run_id) = %q, want %q", v, "second")
	}
}
