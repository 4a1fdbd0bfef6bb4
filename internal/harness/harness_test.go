package harness

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return sc
}

func TestLoadScenario_Minimal(t *testing.T) {
	sc := loadTestScenario(t, "monodomain_minimal.yaml")

	assert.Equal(t, "monodomain_minimal", sc.Name)
	assert.Equal(t, 1, sc.Definition.Geometry.Dim)
	assert.Equal(t, 3, sc.Expected.Rows)
	assert.Equal(t, []float64{0, 0.25, 0.5}, sc.Expected.StopTimes)
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"name: bad\nexpected:\n  rows: 1\nsurprise: true\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "surprise")
}

func TestLoadScenario_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing name", "expected:\n  rows: 3\n"},
		{"zero rows", "name: x\nexpected:\n  rows: 0\n"},
		{"probe without variable", "name: x\nexpected:\n  rows: 1\nprobes:\n  - node: 0\n    golden: g\n"},
		{"probe without golden", "name: x\nexpected:\n  rows: 1\nprobes:\n  - node: 0\n    variable: V\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o644))
			_, err := LoadScenario(path)
			assert.Error(t, err)
		})
	}
}

func TestRun_MonodomainMinimal(t *testing.T) {
	sc := loadTestScenario(t, "monodomain_minimal.yaml")

	res, err := Run(context.Background(), sc, t.TempDir(), discardLogger())
	require.NoError(t, err)
	require.NoError(t, res.Verify(sc))

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 0.5, res.FinalTime)
}

func TestRun_BidomainElectrodeStops(t *testing.T) {
	sc := loadTestScenario(t, "bidomain_electrodes.yaml")

	res, err := Run(context.Background(), sc, t.TempDir(), discardLogger())
	require.NoError(t, err)
	require.NoError(t, res.Verify(sc))
}

func TestVerify_Mismatches(t *testing.T) {
	sc := loadTestScenario(t, "monodomain_minimal.yaml")

	res := &Result{FinalTime: 0.5, Times: []float64{0, 0.25, 0.5}}
	require.NoError(t, res.Verify(sc))

	short := &Result{FinalTime: 0.5, Times: []float64{0, 0.5}}
	err := short.Verify(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows")

	skewed := &Result{FinalTime: 0.5, Times: []float64{0, 0.3, 0.5}}
	err = skewed.Verify(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop")

	early := &Result{FinalTime: 0.25, Times: []float64{0, 0.25, 0.5}}
	assert.Error(t, early.Verify(sc))
}

func TestTrace_Format(t *testing.T) {
	sc := loadTestScenario(t, "monodomain_minimal.yaml")

	res, err := Run(context.Background(), sc, t.TempDir(), discardLogger())
	require.NoError(t, err)

	trace, err := res.Trace(Probe{Node: 2, Variable: "V"})
	require.NoError(t, err)

	// One "time value" line per frame, both fields parseable.
	var lines int
	scanner := bufio.NewScanner(bytes.NewReader(trace))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		require.Len(t, fields, 2)
		tm, err := strconv.ParseFloat(fields[0], 64)
		require.NoError(t, err)
		assert.Equal(t, res.Times[lines], tm)
		_, err = strconv.ParseFloat(fields[1], 64)
		require.NoError(t, err)
		lines++
	}
	assert.Equal(t, len(res.Times), lines)

	_, err = res.Trace(Probe{Node: 99, Variable: "V"})
	assert.Error(t, err)
}
