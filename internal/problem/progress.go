package problem

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// progressFileName is the status file written next to the checkpoint
// database. Its content is deterministic: percent milestones, then a done
// marker, with no wall times.
const progressFileName = "progress_status.txt"

// progressReporter logs percent milestones of a run and, on rank 0 of an
// output-enabled run, appends them to the status file.
type progressReporter struct {
	logger *slog.Logger
	path   string // empty disables the file
	start  float64
	end    float64
	// next is the next milestone percentage to report.
	next int
}

func newProgressReporter(logger *slog.Logger, dir string, start, end float64) *progressReporter {
	p := &progressReporter{logger: logger, start: start, end: end, next: 10}
	if dir != "" {
		p.path = filepath.Join(dir, progressFileName)
		// A fresh run restarts the file.
		_ = os.Remove(p.path)
	}
	return p
}

// Update reports every 10% milestone the current time has passed.
func (p *progressReporter) Update(t float64) {
	if p.end <= p.start {
		return
	}
	percent := int(100 * (t - p.start) / (p.end - p.start))
	for p.next <= percent && p.next <= 100 {
		p.logger.Info("progress", "percent", p.next, "time", t)
		p.appendLine(fmt.Sprintf("%d%%\n", p.next))
		p.next += 10
	}
}

// Finalise appends the done marker.
func (p *progressReporter) Finalise() {
	p.appendLine("done\n")
}

func (p *progressReporter) appendLine(line string) {
	if p.path == "" {
		return
	}
	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		p.logger.Warn("progress file unavailable", "path", p.path, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		p.logger.Warn("progress file write failed", "path", p.path, "error", err)
	}
}
