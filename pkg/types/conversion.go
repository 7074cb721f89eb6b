// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConversionStatus is the outcome of converting one source file.
type ConversionStatus string

const (
	ConversionDone    ConversionStatus = "converted"
	ConversionSkipped ConversionStatus = "skipped"
	ConversionFailed  ConversionStatus = "failed"
)

// ConversionConfig holds settings for single-file and batch conversion.
type ConversionConfig struct {
	// RulesFile is the path to the YAML rule file (default "l2m.yml").
	RulesFile string `json:"rules" yaml:"rules"`

	// InputDir contains the chapter folders ("01 Intro", "02_Limits", ...).
	InputDir string `json:"input_dir" yaml:"input_dir"`

	// OutputDir receives the mirrored chapter tree.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Suffix is appended to the source base name (default "_converted").
	Suffix string `json:"suffix" yaml:"suffix"`

	// Extension of output files (default ".md").
	Extension string `json:"extension" yaml:"extension"`

	// Workers bounds concurrent conversions in a batch (0 = GOMAXPROCS).
	Workers int `json:"workers" yaml:"workers"`

	// Force reconverts files the ledger reports as unchanged.
	Force bool `json:"force" yaml:"force"`

	// LedgerPath is the SQLite ledger location; empty disables the ledger.
	LedgerPath string `json:"ledger" yaml:"ledger"`

	// Verify runs the output checker on every converted file.
	Verify bool `json:"verify" yaml:"verify"`
}

// ConversionRecord is one ledger row describing the last conversion of a
// source file.
type ConversionRecord struct {
	SourcePath  string           `json:"source_path" yaml:"source_path"`
	OutputPath  string           `json:"output_path" yaml:"output_path"`
	Digest      string           `json:"digest" yaml:"digest"`
	RunID       string           `json:"run_id" yaml:"run_id"`
	Footnotes   int              `json:"footnotes" yaml:"footnotes"`
	Status      ConversionStatus `json:"status" yaml:"status"`
	ConvertedAt time.Time        `json:"converted_at" yaml:"converted_at"`
}
