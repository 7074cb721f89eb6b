// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the l2m CLI, which converts LaTeX
// course chapters into MyST Markdown using a YAML rule file.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/pdiddy/l2m/internal/rules"
	"github.com/pdiddy/l2m/internal/transform"
)

// version is set at build time via ldflags.
var version = "dev"

// defaultRulesFile is looked up in the working directory.
const defaultRulesFile = "l2m.yml"

// rootCmd is the base command for the l2m CLI.
var rootCmd = &cobra.Command{
	Use:   "l2m",
	Short: "Convert LaTeX chapters to MyST Markdown",
	Long: `l2m rewrites LaTeX sources into MyST Markdown. A YAML rule file maps
LaTeX start and end markers to MyST directives; a fixed post-processing
pipeline then strips commands and comments, normalizes quotes, collects
footnotes and pairs exercises with their solutions.

Use convert for a single file and batch for a folder of numbered chapter
directories ("01 Intro", "02_Limits", ...).`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./l2m.yaml or ~/.config/l2m/l2m.yaml)")
	rootCmd.PersistentFlags().String("rules", defaultRulesFile, "YAML rule file")
	_ = viper.BindPFlag("rules", rootCmd.PersistentFlags().Lookup("rules"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("l2m")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "l2m"))
		}
	}

	viper.SetEnvPrefix("L2M")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindFlags binds the named flags of cmd to viper keys at run time, so a
// key shared by several commands follows the flag of the command that runs.
// Flag "output-dir" maps to key "output_dir".
func bindFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		key := strings.ReplaceAll(name, "-", "_")
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// loadEngine reads and compiles the rule file at path. Rule compilation
// diagnostics go to diag. The raw rule file is returned for ledger digests.
func loadEngine(path string, diag io.Writer) (*transform.Engine, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading rule file %s: %w", path, err)
	}
	rs, err := rules.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	engine, err := transform.New(rules.Compile(rs, diag), rs)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return engine, data, nil
}

func main() {
	// maxprocs.Set only fails on an invalid GOMAXPROCS value, in which case
	// the runtime default stays in effect.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
