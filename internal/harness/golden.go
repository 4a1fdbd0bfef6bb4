package harness

import (
	"context"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario, verifies its expectations, and
// compares every probe trace against its golden file. Golden files live
// in testdata/golden and are regenerated with `go test -update`.
func RunWithGolden(t *testing.T, sc *Scenario) *Result {
	t.Helper()

	res, err := Run(context.Background(), sc, t.TempDir(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("running scenario: %v", err)
	}
	if err := res.Verify(sc); err != nil {
		t.Error(err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, p := range sc.Probes {
		trace, err := res.Trace(p)
		if err != nil {
			t.Errorf("probe trace: %v", err)
			continue
		}
		g.Assert(t, p.Golden, trace)
	}
	return res
}
