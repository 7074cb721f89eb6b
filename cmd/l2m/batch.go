// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/l2m/internal/convert"
	"github.com/pdiddy/l2m/internal/ledger"
	"github.com/pdiddy/l2m/pkg/types"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Convert every chapter folder under a directory",
	Long: `Batch scans the input directory for chapter folders whose names start
with two digits followed by a space, underscore or dash ("01 Intro",
"02_Limits"). Every .tex file directly inside a chapter folder is converted
into the same chapter folder under the output directory.

Files are converted concurrently. A file that fails is reported and counted;
the remaining files are still converted. With a ledger, files whose source
and rule file are unchanged since their last successful conversion are
skipped unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, "input-dir", "output-dir", "workers", "ledger", "suffix", "extension"); err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	verifyOutput, _ := cmd.Flags().GetBool("verify")

	cfg := types.ConversionConfig{
		RulesFile:  viper.GetString("rules"),
		InputDir:   viper.GetString("input_dir"),
		OutputDir:  viper.GetString("output_dir"),
		Suffix:     viper.GetString("suffix"),
		Extension:  viper.GetString("extension"),
		Workers:    viper.GetInt("workers"),
		Force:      force,
		LedgerPath: viper.GetString("ledger"),
		Verify:     verifyOutput,
	}

	engine, ruleBytes, err := loadEngine(cfg.RulesFile, os.Stderr)
	if err != nil {
		return err
	}

	var opts []convert.Option
	if cfg.LedgerPath != "" {
		store, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, convert.WithLedger(store, ruleBytes))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := convert.ConvertTree(ctx, engine, cfg, os.Stdout, opts...)
	if err != nil {
		return err
	}
	if result.RunID != "" {
		fmt.Fprintf(os.Stdout, "Run %s recorded in %s\n", result.RunID, cfg.LedgerPath)
	}
	if result.HasFailures() {
		fmt.Fprintf(os.Stderr, "%d file(s) failed; see the failed: lines above\n", result.Failed)
	}
	fmt.Fprintln(os.Stdout, "All transformations complete.")
	return nil
}

func init() {
	batchCmd.Flags().String("input-dir", ".", "directory containing the chapter folders")
	batchCmd.Flags().String("output-dir", "", "directory receiving the converted tree (default: input-dir)")
	batchCmd.Flags().Int("workers", 0, "concurrent conversions (0 = GOMAXPROCS)")
	batchCmd.Flags().String("ledger", ledger.DefaultPath, "SQLite ledger path; empty disables the ledger")
	batchCmd.Flags().String("suffix", convert.DefaultSuffix, "suffix appended to output base names")
	batchCmd.Flags().String("extension", convert.DefaultExtension, "output file extension")
	batchCmd.Flags().Bool("force", false, "reconvert files the ledger reports as unchanged")
	batchCmd.Flags().Bool("verify", false, "check every output for unclosed fences and dangling footnotes")

	rootCmd.AddCommand(batchCmd)
}
