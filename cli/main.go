package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/forfaxx/metaclean/core"
	"github.com/forfaxx/metaclean/core/batch"
	"github.com/forfaxx/metaclean/core/scan"
)

const version = "1.3.0"

func main() {
	printer := core.NewPrinter()
	cmd := newRootCmd(printer)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "metaclean:", err)
		os.Exit(1)
	}
}

func newRootCmd(printer *core.Printer) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "metaclean [flags] [files...]",
		Short:   "Scan, strip, and sanitize image metadata (EXIF, GPS, copyright tags)",
		Example: "  find ./photos -name '*.jpg' | metaclean --strip --outdir cleaned",
		Version: version,
		Args:    cobra.ArbitraryArgs,

		SilenceUsage:  true,
		SilenceErrors: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, printer, args)
		},
	}

	flags := cmd.Flags()

	// Main modes
	flags.Bool("scan", false, "Scan and report metadata")
	flags.Bool("strip", false, "Strip metadata from files")

	// Scan tweaks
	flags.Bool("positives", false, "Only show files that contain metadata (scan mode)")
	flags.Bool("show-gps", false, "If present, expand GPS sub-IFD (scan mode)")

	// Strip tweaks
	flags.String("copyright", "", "Add copyright tag (only when stripping)")
	flags.Bool("keep-date", false, "Preserve DateTimeOriginal tag")
	flags.Bool("keep-orientation", false, "Preserve Orientation tag (pixels still corrected if not kept)")
	flags.Bool("keep-icc", false, "Preserve ICC profile (color)")
	flags.Bool("keep-dpi", false, "Preserve DPI")
	flags.Bool("force", false, "Process first frame of animated images (otherwise they are skipped)")

	// Output control
	flags.Bool("inplace", false, "Strip metadata and overwrite the original image (safe atomic replace)")
	flags.String("outdir", core.DefaultOutDir(), "Directory for cleaned images")

	// Encoding knobs
	flags.Int("quality", 95, "JPEG quality")
	flags.Int("progressive", -1, "Force progressive=1 or disable with 0 (JPEG)")

	viper.BindPFlags(flags)
	viper.SetEnvPrefix("METACLEAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	return cmd
}

func run(cmd *cobra.Command, printer *core.Printer, args []string) error {
	scanMode := viper.GetBool("scan")
	stripMode := viper.GetBool("strip")

	// At least one mode is required; otherwise print usage and exit 0.
	if !scanMode && !stripMode {
		return cmd.Help()
	}

	policy := core.Policy{
		KeepDate:        viper.GetBool("keep-date"),
		KeepOrientation: viper.GetBool("keep-orientation"),
		KeepICC:         viper.GetBool("keep-icc"),
		KeepDPI:         viper.GetBool("keep-dpi"),
		Force:           viper.GetBool("force"),
		InPlace:         viper.GetBool("inplace"),
		Copyright:       viper.GetString("copyright"),
		Quality:         viper.GetInt("quality"),
		OutDir:          viper.GetString("outdir"),
	}
	if prog := viper.GetInt("progressive"); prog == 0 || prog == 1 {
		b := prog == 1
		policy.Progressive = &b
	}

	if stripMode && !policy.InPlace {
		if err := os.MkdirAll(policy.OutDir, 0o755); err != nil {
			return fmt.Errorf("cannot create output directory %s: %w", policy.OutDir, err)
		}
	}

	modes := batch.Modes{
		Scan:  scanMode,
		Strip: stripMode,
		ScanOpts: scan.Options{
			Positives: viper.GetBool("positives"),
			ShowGPS:   viper.GetBool("show-gps"),
		},
	}
	if modes.ScanOpts.Positives && !stripMode {
		// Positives output is meant to be piped; keep it free of
		// status-line noise.
		printer.Quiet = true
	}

	piped := !term.IsTerminal(int(os.Stdin.Fd()))
	paths := batch.Inputs(os.Stdin, piped, args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// After the first signal the handler is unregistered, so a
		// second interrupt kills the process outright instead of
		// waiting for the in-flight file.
		<-ctx.Done()
		stop()
	}()

	sum, err := batch.Run(ctx, printer, core.Registry(), policy, modes, paths)
	if errors.Is(err, batch.ErrInterrupted) {
		printer.Line(core.StatusAbort, "Metaclean interrupted by user")
		os.Exit(130)
	}
	if err != nil {
		return err
	}

	if stripMode && len(paths) > 0 {
		reportSummary(printer, os.Stderr, sum)
	}
	return nil
}

// reportSummary prints the end-of-run totals and, when any file failed,
// the collected per-file errors on the error stream.
func reportSummary(p *core.Printer, errw io.Writer, sum batch.Summary) {
	p.Line(core.StatusInfo, "Done: %d cleaned, %d skipped, %d failed",
		sum.Cleaned, sum.Skipped, sum.Failed)
	if sum.Err != nil {
		fmt.Fprintln(errw, sum.Err)
	}
}
