package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"structgraph/internal/ruleengine"
)

var flagRulesDir string

// rulesCmd implements `structgraph rules lint`, a CLI-only convenience
// that surfaces malformed rule files without running an analysis (spec
// SPEC_FULL.md supplemental features, built on the same loader the Rule
// Engine uses for custom rule sets).
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Rule set utilities",
}

var rulesLintCmd = &cobra.Command{
	Use:   "lint [rules_dir]",
	Short: "Load a custom rule directory and report malformed files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := flagRulesDir
		if len(args) > 0 {
			dir = args[0]
		}
		rules, err := ruleengine.LoadCustomRules(dir)
		if err != nil {
			logger.Error("rules lint failed", zap.String("dir", dir), zap.Error(err))
			return err
		}
		logger.Info("rules lint complete", zap.String("dir", dir), zap.Int("loaded", len(rules)))
		fmt.Printf("%d valid rule(s) loaded from %s\n", len(rules), dir)
		fmt.Println("(malformed files, if any, were logged and skipped; see .structgraph/logs)")
		return printJSON(rules)
	},
}

func init() {
	rulesLintCmd.Flags().StringVar(&flagRulesDir, "dir", ".ast-grep-rules", "custom rule directory")
	rulesCmd.AddCommand(rulesLintCmd)
}
