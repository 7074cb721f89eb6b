// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/l2m/internal/convert"
	"github.com/pdiddy/l2m/internal/verify"
)

var convertCmd = &cobra.Command{
	Use:   "convert INPUT [OUTPUT]",
	Short: "Convert one LaTeX file to MyST Markdown",
	Long: `Convert applies the rule file to INPUT and writes the result to OUTPUT.
When OUTPUT is omitted the result is written next to INPUT with the
configured suffix and extension (default: NAME_converted.md).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, "suffix", "extension"); err != nil {
		return err
	}
	engine, _, err := loadEngine(viper.GetString("rules"), os.Stderr)
	if err != nil {
		return err
	}

	src := args[0]
	dst := defaultOutputPath(src, viper.GetString("suffix"), viper.GetString("extension"))
	if len(args) == 2 {
		dst = args[1]
	}

	res, err := convert.ConvertFile(engine, src, dst)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "converted: %s -> %s (%d footnotes)\n", src, dst, len(res.Footnotes))

	if verifyOutput, _ := cmd.Flags().GetBool("verify"); verifyOutput {
		report := verify.Check(dst, []byte(res.Text))
		for _, p := range report.Problems {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", dst, p)
		}
	}
	return nil
}

// defaultOutputPath places the output next to src.
func defaultOutputPath(src, suffix, ext string) string {
	if suffix == "" {
		suffix = convert.DefaultSuffix
	}
	if ext == "" {
		ext = convert.DefaultExtension
	}
	return filepath.Join(filepath.Dir(src), convert.OutputName(src, suffix, ext))
}

func init() {
	convertCmd.Flags().Bool("verify", false, "check the output for unclosed fences and dangling footnotes")
	convertCmd.Flags().String("suffix", convert.DefaultSuffix, "suffix appended to the output base name")
	convertCmd.Flags().String("extension", convert.DefaultExtension, "output file extension")

	rootCmd.AddCommand(convertCmd)
}
