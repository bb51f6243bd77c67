// Package batch drives sequential per-file processing: input
// enumeration, extension filtering, and scan/strip dispatch.
package batch

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/forfaxx/metaclean/core"
	"github.com/forfaxx/metaclean/core/scan"
	"github.com/forfaxx/metaclean/core/strip"
)

// ErrInterrupted is returned when the run is aborted by a signal. The
// in-flight file keeps whatever the atomic writer already guaranteed.
var ErrInterrupted = errors.New("interrupted by user")

// Modes selects what happens to each qualifying file.
type Modes struct {
	Scan     bool
	Strip    bool
	ScanOpts scan.Options
}

// Summary aggregates per-file outcomes across the batch. Err collects
// every per-file error; no single failure stops the run.
type Summary struct {
	Scanned   int
	Positives int
	Cleaned   int
	Skipped   int
	Failed    int
	Err       error
}

// Inputs merges newline-delimited stdin paths (when piped) with the
// positional arguments, stdin first.
func Inputs(stdin io.Reader, piped bool, args []string) []string {
	var paths []string
	if piped && stdin != nil {
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line != "" {
				paths = append(paths, line)
			}
		}
	}
	return append(paths, args...)
}

// Run processes every path strictly sequentially: one file is fully
// scanned/stripped before the next begins. Context cancellation aborts
// the batch between files with ErrInterrupted.
func Run(ctx context.Context, p *core.Printer, reg *core.TagRegistry, policy core.Policy, modes Modes, paths []string) (Summary, error) {
	var sum Summary

	if len(paths) == 0 {
		p.Line(core.StatusInfo, "No files provided on CLI or stdin.")
		return sum, nil
	}

	var merr *multierror.Error
	for _, path := range paths {
		if ctx.Err() != nil {
			sum.Err = merr.ErrorOrNil()
			return sum, ErrInterrupted
		}

		if info, err := os.Stat(path); err == nil && info.IsDir() {
			p.Line(core.StatusSkip, "Directory: %s", path)
			sum.Skipped++
			continue
		}
		if !core.IsSupportedExt(path) {
			p.Line(core.StatusSkip, "Not a supported image type: %s", path)
			sum.Skipped++
			continue
		}

		if modes.Scan {
			sum.Scanned++
			if scan.Run(p, reg, path, modes.ScanOpts) {
				sum.Positives++
			}
		}
		if modes.Strip {
			// The scan above may have run long; re-check so an interrupt
			// never starts a new write.
			if ctx.Err() != nil {
				sum.Err = merr.ErrorOrNil()
				return sum, ErrInterrupted
			}
			res := strip.Run(p, policy, path)
			p.Result(res)
			switch res.Status {
			case core.StatusOK, core.StatusWarn:
				sum.Cleaned++
			case core.StatusSkip:
				sum.Skipped++
			case core.StatusError:
				sum.Failed++
				merr = multierror.Append(merr, res.Err)
			}
		}
	}

	sum.Err = merr.ErrorOrNil()
	return sum, nil
}
