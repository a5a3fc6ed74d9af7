package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"structgraph/internal/model"
	"structgraph/internal/ruleengine"
)

var (
	flagDryRun       bool
	flagBackup       bool
	flagPlanFile     string
	flagExtractTo    string
	flagRuleSet      string
	flagSeverity     string
	flagMaxViolations int
	flagParallelism  int
	flagViolationsFile string
	flagFixTypes     []string
)

var applyDedupCmd = &cobra.Command{
	Use:   "apply-dedup [project_root]",
	Short: "Apply a deduplication refactoring plan",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := projectRootFromArgs(args)
		plan, err := readPlan(flagPlanFile)
		if err != nil {
			return err
		}
		if flagExtractTo != "" {
			plan.GeneratedCode.ExtractToFile = flagExtractTo
		}
		logger.Info("apply-dedup starting", zap.String("root", root), zap.Int("files_affected", len(plan.FilesAffected)), zap.Bool("dry_run", flagDryRun))
		services, err := buildServices()
		if err != nil {
			return err
		}
		report, err := services.Refactor.Apply(plan, root, flagDryRun, flagBackup)
		if err != nil {
			logger.Error("apply-dedup failed", zap.Error(err))
			return err
		}
		logger.Info("apply-dedup complete", zap.Int("files_modified", len(report.FilesModified)))
		return printJSON(report)
	},
}

var enforceCmd = &cobra.Command{
	Use:   "enforce [project_root]",
	Short: "Check a project against a rule set",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := projectRootFromArgs(args)
		logger.Info("enforce starting", zap.String("root", root), zap.String("rule_set", flagRuleSet))
		services, err := buildServices()
		if err != nil {
			return err
		}
		result, err := services.RuleEngine.Enforce(context.Background(), ruleengine.Config{
			ProjectRoot:       root,
			Language:          flagLanguage,
			RuleSet:           ruleengine.BuiltinSetName(flagRuleSet),
			Exclude:           flagExclude,
			SeverityThreshold: model.Severity(flagSeverity),
			MaxViolations:     flagMaxViolations,
			Parallelism:       flagParallelism,
		})
		if err != nil {
			logger.Error("enforce failed", zap.Error(err))
			return err
		}
		logger.Info("enforce complete", zap.Int("violations", result.TotalViolations()))
		return printJSON(result)
	},
}

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Apply classified textual fixes for a batch of violations",
	RunE: func(cmd *cobra.Command, args []string) error {
		violations, err := readViolations(flagViolationsFile)
		if err != nil {
			return err
		}
		var ft ruleengine.FixTypes
		for _, t := range flagFixTypes {
			switch t {
			case "safe":
				ft.Safe = true
			case "suggested":
				ft.Suggested = true
			case "all":
				ft.Safe, ft.Suggested = true, true
			}
		}
		logger.Info("fix starting", zap.Int("violations", len(violations)), zap.Bool("dry_run", flagDryRun))
		services, err := buildServices()
		if err != nil {
			return err
		}
		result, err := services.Fixer.Apply(violations, flagLanguage, ft, flagDryRun, flagBackup)
		if err != nil {
			logger.Error("fix failed", zap.Error(err))
			return err
		}
		logger.Info("fix complete", zap.Int("successful", result.Successful), zap.Int("failed", result.Failed))
		return printJSON(result)
	},
}

func init() {
	applyDedupCmd.Flags().StringVar(&flagPlanFile, "plan", "", "path to a JSON-encoded RefactoringPlan")
	applyDedupCmd.Flags().StringVar(&flagExtractTo, "extract-to-file", "", "override the plan's extract_to_file target")
	applyDedupCmd.Flags().BoolVar(&flagDryRun, "dry-run", true, "compute diffs without writing")
	applyDedupCmd.Flags().BoolVar(&flagBackup, "backup", true, "snapshot affected files before writing")
	_ = applyDedupCmd.MarkFlagRequired("plan")

	enforceCmd.Flags().StringVar(&flagLanguage, "language", "", "language to scan")
	enforceCmd.Flags().StringVar(&flagRuleSet, "rule-set", "recommended", "recommended|security|performance|style|all|custom")
	enforceCmd.Flags().StringSliceVar(&flagExclude, "exclude", nil, "glob patterns to exclude")
	enforceCmd.Flags().StringVar(&flagSeverity, "severity-threshold", "info", "info|warning|error")
	enforceCmd.Flags().IntVar(&flagMaxViolations, "max-violations", 0, "0 = unlimited")
	enforceCmd.Flags().IntVar(&flagParallelism, "parallelism", 4, "rule execution concurrency")
	_ = enforceCmd.MarkFlagRequired("language")

	fixCmd.Flags().StringVar(&flagViolationsFile, "violations", "", "path to a JSON-encoded []Violation")
	fixCmd.Flags().StringVar(&flagLanguage, "language", "", "language of the violations")
	fixCmd.Flags().StringSliceVar(&flagFixTypes, "fix-types", []string{"safe"}, "safe|suggested|all")
	fixCmd.Flags().BoolVar(&flagDryRun, "dry-run", true, "report fixes without writing")
	fixCmd.Flags().BoolVar(&flagBackup, "backup", true, "snapshot affected files before writing")
	_ = fixCmd.MarkFlagRequired("violations")
	_ = fixCmd.MarkFlagRequired("language")
}

func readPlan(path string) (model.RefactoringPlan, error) {
	var plan model.RefactoringPlan
	data, err := os.ReadFile(path)
	if err != nil {
		return plan, err
	}
	err = json.Unmarshal(data, &plan)
	return plan, err
}

func readViolations(path string) ([]model.Violation, error) {
	var violations []model.Violation
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = json.Unmarshal(data, &violations)
	return violations, err
}
