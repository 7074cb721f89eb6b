// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/l2m/internal/rules"
	"github.com/pdiddy/l2m/pkg/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the compiled rules of a rule file",
	Long: `Rules loads the rule file, compiles every substitution and prints the
rules that will be applied, in order, with their directive kind and
regular expression. Rules that fail to compile are reported on stderr.`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	path := viper.GetString("rules")
	rs, err := rules.LoadFile(path)
	if err != nil {
		return err
	}
	matchers := rules.Compile(rs, os.Stderr)
	printRules(os.Stdout, rs, matchers)
	return nil
}

func printRules(w io.Writer, rs *types.RuleSet, matchers []rules.Matcher) {
	fmt.Fprintf(w, "%-3s  %-24s  %-14s  %s\n", "#", "Name", "Kind", "Pattern")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for i, m := range matchers {
		fmt.Fprintf(w, "%-3d  %-24s  %-14s  %s\n", i+1, m.Rule.DisplayName(), m.Kind, m.Pattern)
	}

	fmt.Fprintf(w, "\n%d of %d rules compiled\n", len(matchers), len(rs.Substitutions))
	if len(rs.RemoveCommands) > 0 {
		fmt.Fprintf(w, "remove_commands: %s\n", strings.Join(rs.RemoveCommands, ", "))
	}
	fmt.Fprintf(w, "remove_comments: %t\n", rs.RemoveComments)
	if rs.DateFormat != "" {
		fmt.Fprintf(w, "date_format: %s\n", rs.DateFormat)
	}
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
