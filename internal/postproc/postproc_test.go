package postproc

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardiolab/systole/internal/checkpoint"
)

// buildTestDatabase writes a small synthetic run: 3 nodes, frames at
// t = 0, 1, 2, columns V and W. Values are chosen to be exact in binary so
// every emitted artifact is reproducible byte for byte.
func buildTestDatabase(t *testing.T, subset string) string {
	t.Helper()
	dir := t.TempDir()
	w, err := checkpoint.Create(dir, "run")
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.DefineColumn("V", "mV"))
	require.NoError(t, w.DefineColumn("W", "a.u."))
	require.NoError(t, w.DefineUnlimitedDimension("Time", "msecs", 3))
	require.NoError(t, w.EndDefineMode())

	meta := map[string]string{
		"run_id":          "test-run",
		"definition_hash": "deadbeef",
		"problem_dim":     "1",
		"num_nodes":       "3",
		"prefix":          "run",
		"node_subset":     subset,
	}
	for _, k := range []string{"run_id", "definition_hash", "problem_dim", "num_nodes", "prefix", "node_subset"} {
		require.NoError(t, w.SetMeta(k, meta[k]))
	}

	rows := []struct {
		t float64
		v []float64
		w []float64
	}{
		{0, []float64{-85, -85, -85}, []float64{0, 0, 0}},
		{1, []float64{-1, 0, 85}, []float64{0.5, 0.25, 1}},
		{2, []float64{1, 40, -85}, []float64{1, 1, 1}},
	}
	for _, row := range rows {
		require.NoError(t, w.WriteRow(row.t, map[string][]float64{"V": row.v, "W": row.w}))
	}
	require.NoError(t, w.Close())
	return dir
}

func openTestReader(t *testing.T, dir string) *checkpoint.Reader {
	t.Helper()
	r, err := checkpoint.OpenReader(dir, "run")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func goldenAssert(t *testing.T, name, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "artifact %s", path)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func TestWriteMeshalyzer_Golden(t *testing.T) {
	dir := buildTestDatabase(t, "")
	r := openTestReader(t, dir)

	require.NoError(t, writeMeshalyzer(r, dir, "run"))

	goldenAssert(t, "meshalyzer_V", filepath.Join(dir, "viz_meshalyzer", "run_V.dat"))
	goldenAssert(t, "meshalyzer_W", filepath.Join(dir, "viz_meshalyzer", "run_W.dat"))
}

func TestWriteCSV_Golden(t *testing.T) {
	dir := buildTestDatabase(t, "")
	r := openTestReader(t, dir)

	require.NoError(t, writeCSV(r, dir, "run"))

	goldenAssert(t, "csv", filepath.Join(dir, "csv", "run.csv"))
}

func TestWriteActivationMaps_Golden(t *testing.T) {
	dir := buildTestDatabase(t, "")
	r := openTestReader(t, dir)

	require.NoError(t, writeActivationMaps(r, dir, []float64{0}))

	goldenAssert(t, "activation_0", filepath.Join(dir, "postproc", "activation_0.dat"))
}

func TestWriteSummary_Golden(t *testing.T) {
	dir := buildTestDatabase(t, "")
	r := openTestReader(t, dir)

	require.NoError(t, writeSummary(r, dir, "run"))

	goldenAssert(t, "summary", filepath.Join(dir, "postproc", "summary.txt"))
}

func TestActivationTime_Interpolation(t *testing.T) {
	times := []float64{0, 1, 2}
	frames := [][]float64{
		{-85, 10},
		{-1, 10},
		{1, 10},
	}

	// Crossing halfway between the last two frames.
	assert.Equal(t, 1.5, activationTime(times, frames, 0, 0))
	// Already at or above the threshold in the first frame.
	assert.Equal(t, 0.0, activationTime(times, frames, 1, 0))
	// Never crosses.
	assert.Equal(t, -1.0, activationTime(times, frames, 0, 500))
}

func TestWritePlots_IdempotentPNG(t *testing.T) {
	dir := buildTestDatabase(t, "")
	r := openTestReader(t, dir)

	require.NoError(t, writePlots(r, dir, "run", "", []int{1}))
	path := filepath.Join(dir, "plots", "run_V_node1.png")
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	require.NoError(t, writePlots(r, dir, "run", "", []int{1}))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "rendering twice must be byte-identical")
}

func TestDispatch_RunsRequestedConverters(t *testing.T) {
	dir := buildTestDatabase(t, "")
	r := openTestReader(t, dir)

	req := Requests{
		Meshalyzer:           true,
		CSV:                  true,
		ActivationThresholds: []float64{0},
		PlotNodes:            []int{0},
	}
	require.NoError(t, Dispatch(r, req, dir, discardLogger()))

	for _, p := range []string{
		filepath.Join(dir, "viz_meshalyzer", "run_V.dat"),
		filepath.Join(dir, "csv", "run.csv"),
		filepath.Join(dir, "postproc", "activation_0.dat"),
		filepath.Join(dir, "plots", "run_V_node0.png"),
		filepath.Join(dir, "postproc", "summary.txt"),
	} {
		_, err := os.Stat(p)
		assert.NoError(t, err, "expected artifact %s", p)
	}
}

func TestDispatch_NodeSubsetSkipsMeshShaped(t *testing.T) {
	dir := buildTestDatabase(t, "0,2")
	r := openTestReader(t, dir)

	req := Requests{
		Meshalyzer:           true,
		CSV:                  true,
		ActivationThresholds: []float64{0},
	}
	require.NoError(t, Dispatch(r, req, dir, discardLogger()))

	_, err := os.Stat(filepath.Join(dir, "viz_meshalyzer"))
	assert.True(t, os.IsNotExist(err), "meshalyzer must be skipped for node subsets")
	_, err = os.Stat(filepath.Join(dir, "postproc", "activation_0.dat"))
	assert.True(t, os.IsNotExist(err), "activation maps must be skipped for node subsets")

	_, err = os.Stat(filepath.Join(dir, "csv", "run.csv"))
	assert.NoError(t, err, "csv still runs for node subsets")
	_, err = os.Stat(filepath.Join(dir, "postproc", "summary.txt"))
	assert.NoError(t, err, "summary always runs")
}

func TestDispatch_ContinuesPastConverterFailure(t *testing.T) {
	dir := buildTestDatabase(t, "")
	r := openTestReader(t, dir)

	// Take the csv target's place with a file so MkdirAll fails.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "csv"), []byte("x"), 0o644))

	req := Requests{CSV: true, Meshalyzer: true}
	err := Dispatch(r, req, dir, discardLogger())
	require.Error(t, err)
	assert.True(t, IsIOError(err))

	// The failure did not stop the other converters.
	_, serr := os.Stat(filepath.Join(dir, "viz_meshalyzer", "run_V.dat"))
	assert.NoError(t, serr)
	_, serr = os.Stat(filepath.Join(dir, "postproc", "summary.txt"))
	assert.NoError(t, serr)
}

func TestDispatch_SecondRunByteIdentical(t *testing.T) {
	dir := buildTestDatabase(t, "")
	r := openTestReader(t, dir)

	req := Requests{
		Meshalyzer:           true,
		CSV:                  true,
		ActivationThresholds: []float64{0},
		PlotNodes:            []int{1},
	}
	require.NoError(t, Dispatch(r, req, dir, discardLogger()))

	paths := []string{
		filepath.Join(dir, "viz_meshalyzer", "run_V.dat"),
		filepath.Join(dir, "viz_meshalyzer", "run_W.dat"),
		filepath.Join(dir, "csv", "run.csv"),
		filepath.Join(dir, "postproc", "activation_0.dat"),
		filepath.Join(dir, "plots", "run_V_node1.png"),
		filepath.Join(dir, "postproc", "summary.txt"),
	}
	first := make(map[string][]byte, len(paths))
	for _, p := range paths {
		body, err := os.ReadFile(p)
		require.NoError(t, err)
		first[p] = body
	}

	require.NoError(t, Dispatch(r, req, dir, discardLogger()))
	for _, p := range paths {
		body, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, first[p], body, "second dispatch changed %s", p)
	}
}
