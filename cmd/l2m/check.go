// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/l2m/internal/verify"
)

var checkCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Check converted Markdown files for structural problems",
	Long: `Check parses each converted file and reports unreadable front matter,
directives or code fences that never close, and footnote references
without a definition. It exits non-zero when any file has a problem.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	bad := 0
	for _, path := range args {
		report, err := verify.CheckFile(path)
		if err != nil {
			return err
		}
		if !printReport(os.Stdout, report) {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d file(s) with problems", bad)
	}
	return nil
}

// printReport writes one summary line for report, followed by its
// problems. It returns report.OK().
func printReport(w io.Writer, report verify.Report) bool {
	counts := make([]string, 0, len(report.Directives))
	for _, name := range report.DirectiveNames() {
		counts = append(counts, fmt.Sprintf("%s=%d", name, report.Directives[name]))
	}
	directives := "none"
	if len(counts) > 0 {
		directives = strings.Join(counts, ", ")
	}

	if report.OK() {
		fmt.Fprintf(w, "ok:      %s (directives: %s; footnotes: %d)\n", report.Name, directives, report.Footnotes)
		return true
	}
	fmt.Fprintf(w, "problem: %s (%d)\n", report.Name, len(report.Problems))
	for _, p := range report.Problems {
		fmt.Fprintf(w, "  %s\n", p)
	}
	return false
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
