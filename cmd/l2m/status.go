// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/l2m/internal/ledger"
	"github.com/pdiddy/l2m/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent batch runs and the last conversion of each file",
	Long: `Status reads the conversion ledger written by batch and prints the most
recent runs followed by the last recorded conversion of every source file.
Use --format yaml for machine-readable output.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// statusReport is the YAML form of the status output.
type statusReport struct {
	Ledger      string                   `yaml:"ledger"`
	Runs        []ledger.Run             `yaml:"runs"`
	Conversions []types.ConversionRecord `yaml:"conversions"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, "ledger"); err != nil {
		return err
	}
	path := viper.GetString("ledger")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no ledger at %s: run batch first", path)
	}

	store, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("runs")
	ctx := context.Background()
	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}
	records, err := store.List(ctx)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(statusReport{Ledger: path, Runs: runs, Conversions: records})
	case "text", "":
		printStatus(os.Stdout, runs, records)
		return nil
	default:
		return fmt.Errorf("unsupported format %q: use text or yaml", format)
	}
}

func printStatus(w io.Writer, runs []ledger.Run, records []types.ConversionRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
	} else {
		fmt.Fprintf(w, "%-36s  %-20s  %9s  %7s  %6s\n", "Run", "Started", "Converted", "Skipped", "Failed")
		fmt.Fprintln(w, strings.Repeat("-", 88))
		for _, r := range runs {
			fmt.Fprintf(w, "%-36s  %-20s  %9d  %7d  %6d\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Converted, r.Skipped, r.Failed)
		}
	}

	fmt.Fprintln(w)
	if len(records) == 0 {
		fmt.Fprintln(w, "No conversions recorded.")
		return
	}
	fmt.Fprintf(w, "%-9s  %-20s  %9s  %s\n", "Status", "Converted at", "Footnotes", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 88))
	for _, rec := range records {
		fmt.Fprintf(w, "%-9s  %-20s  %9d  %s\n",
			rec.Status, rec.ConvertedAt.Local().Format(time.DateTime), rec.Footnotes, rec.SourcePath)
	}
	fmt.Fprintf(w, "\n%d files\n", len(records))
}

func init() {
	statusCmd.Flags().String("ledger", ledger.DefaultPath, "SQLite ledger path")
	statusCmd.Flags().Int("runs", 5, "number of recent runs to show (0 = all)")
	statusCmd.Flags().String("format", "text", "output format: text or yaml")

	rootCmd.AddCommand(statusCmd)
}
