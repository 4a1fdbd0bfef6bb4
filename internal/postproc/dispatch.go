package postproc

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cardiolab/systole/internal/checkpoint"
)

// Dispatch runs every requested converter over the database. Converters
// needing the full mesh shape (meshalyzer, activation maps) are skipped
// when the file holds a node subset; traces, tables and the summary always
// run. Per-converter failures are logged and joined; the remaining
// converters still run.
func Dispatch(r *checkpoint.Reader, req Requests, outDir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := outputPrefix(r)

	restricted, err := nodeRestricted(r)
	if err != nil {
		return err
	}

	var errs []error
	run := func(name string, fn func() error) {
		if err := fn(); err != nil {
			logger.Error("converter failed", "converter", name, "error", err)
			errs = append(errs, err)
			return
		}
		logger.Info("converter finished", "converter", name)
	}

	if req.Meshalyzer {
		if restricted {
			logger.Info("meshalyzer conversion skipped, output is node-restricted")
		} else {
			run("meshalyzer", func() error { return writeMeshalyzer(r, outDir, prefix) })
		}
	}
	if len(req.ActivationThresholds) > 0 {
		if restricted {
			logger.Info("activation maps skipped, output is node-restricted")
		} else {
			run("activation", func() error {
				return writeActivationMaps(r, outDir, req.ActivationThresholds)
			})
		}
	}
	if req.CSV {
		run("csv", func() error { return writeCSV(r, outDir, prefix) })
	}
	if len(req.PlotNodes) > 0 {
		run("plot", func() error {
			return writePlots(r, outDir, prefix, req.PlotVariable, req.PlotNodes)
		})
	}
	run("summary", func() error { return writeSummary(r, outDir, prefix) })

	return errors.Join(errs...)
}

// outputPrefix recovers the run prefix, falling back to the database file
// name for files written before the meta key existed.
func outputPrefix(r *checkpoint.Reader) string {
	if p, ok, err := r.Meta("prefix"); err == nil && ok && p != "" {
		return p
	}
	return strings.TrimSuffix(filepath.Base(r.Path()), ".db")
}

// nodeRestricted reports whether the file holds a node subset rather than
// the full mesh.
func nodeRestricted(r *checkpoint.Reader) (bool, error) {
	subset, ok, err := r.Meta("node_subset")
	if err != nil {
		return false, err
	}
	return ok && subset != "", nil
}
