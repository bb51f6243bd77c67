// Package core defines the shared types, format registry, and reporting
// primitives for metaclean.
package core

import (
	"os"
	"path/filepath"
	"strings"
)

// Status classifies the outcome of processing a single file.
type Status string

const (
	StatusOK    Status = "OK"
	StatusSkip  Status = "SKIP"
	StatusWarn  Status = "WARN"
	StatusError Status = "ERROR"
	StatusInfo  Status = "INFO"
	StatusAbort Status = "ABORT"
)

// Result is the explicit per-file outcome. The batch driver collects
// these instead of letting one file's failure unwind the run.
type Result struct {
	Path    string
	Status  Status
	Message string
	Err     error // set for StatusError; nil otherwise
}

// Policy is the immutable per-invocation strip configuration.
// It is constructed once from the CLI flags and never mutated.
type Policy struct {
	KeepDate        bool
	KeepOrientation bool
	KeepICC         bool
	KeepDPI         bool
	Force           bool
	InPlace         bool
	Copyright       string
	Quality         int
	Progressive     *bool // nil = encoder default
	OutDir          string
}

// OutputPath resolves the destination for a cleaned file: the source
// path itself when in-place, otherwise <outdir>/<stem>_clean<ext>.
func (p Policy) OutputPath(src string) string {
	if p.InPlace {
		return src
	}
	dir := p.OutDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	ext := filepath.Ext(src)
	stem := strings.TrimSuffix(filepath.Base(src), ext)
	return filepath.Join(dir, stem+"_clean"+ext)
}

// DefaultOutDir is the fallback destination for cleaned images.
func DefaultOutDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cleaned"
	}
	return filepath.Join(home, "Pictures", "cleaned")
}

// SupportedExts is the closed set of extensions the batch driver accepts.
var SupportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
}

// IsSupportedExt reports whether path carries a supported image
// extension (case-insensitive).
func IsSupportedExt(path string) bool {
	return SupportedExts[strings.ToLower(filepath.Ext(path))]
}
