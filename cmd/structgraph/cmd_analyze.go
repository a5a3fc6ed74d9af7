package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"structgraph/internal/detector"
	"structgraph/internal/orchestrator"
)

var (
	flagLanguage      string
	flagMinSimilarity float64
	flagMinLines      int
	flagExclude       []string
	flagMaxCandidates int
	flagIncludeCoverage bool
)

var findDuplicationCmd = &cobra.Command{
	Use:   "find-duplication [project_root]",
	Short: "Detect duplicate code constructs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := projectRootFromArgs(args)
		logger.Info("find-duplication starting", zap.String("root", root), zap.String("language", flagLanguage))
		services, err := buildServices()
		if err != nil {
			return err
		}
		groups, err := services.Detector.FindDuplication(context.Background(), detector.Config{
			ProjectRoot:     root,
			Language:        flagLanguage,
			MinSimilarity:   flagMinSimilarity,
			MinLines:        flagMinLines,
			ExcludePatterns: flagExclude,
		})
		if err != nil {
			logger.Error("find-duplication failed", zap.Error(err))
			return err
		}
		logger.Info("find-duplication complete", zap.Int("groups", len(groups)))
		return printJSON(groups)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [project_root]",
	Short: "Run the full detect/coverage/impact/rank pipeline",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := projectRootFromArgs(args)
		logger.Info("analyze starting", zap.String("root", root), zap.String("language", flagLanguage))
		services, err := buildServices()
		if err != nil {
			return err
		}
		result, err := services.Orchestrator.Analyze(context.Background(), orchestrator.Config{
			ProjectRoot:         root,
			Language:            flagLanguage,
			MinSimilarity:       flagMinSimilarity,
			MinLines:            flagMinLines,
			ExcludePatterns:     flagExclude,
			IncludeTestCoverage: flagIncludeCoverage,
			MaxCandidates:       flagMaxCandidates,
		}, func(fraction float64, stage string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%3.0f%%] %s\n", fraction*100, stage)
			logger.Debug("analyze progress", zap.Float64("fraction", fraction), zap.String("stage", stage))
		})
		if err != nil {
			logger.Error("analyze failed", zap.Error(err))
			return err
		}
		logger.Info("analyze complete", zap.Int("candidates", len(result.TopCandidates)))
		return printJSON(result)
	},
}

func init() {
	for _, c := range []*cobra.Command{findDuplicationCmd, analyzeCmd} {
		c.Flags().StringVar(&flagLanguage, "language", "", "language to scan")
		c.Flags().Float64Var(&flagMinSimilarity, "min-similarity", 0.8, "minimum verified similarity")
		c.Flags().IntVar(&flagMinLines, "min-lines", 5, "minimum construct size in lines")
		c.Flags().StringSliceVar(&flagExclude, "exclude", nil, "glob patterns to exclude")
	}
	analyzeCmd.Flags().BoolVar(&flagIncludeCoverage, "include-test-coverage", false, "probe test coverage for enrichment")
	analyzeCmd.Flags().IntVar(&flagMaxCandidates, "max-candidates", 0, "cap on returned top candidates (0 = unlimited)")
	_ = findDuplicationCmd.MarkFlagRequired("language")
	_ = analyzeCmd.MarkFlagRequired("language")
}

func projectRootFromArgs(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return workspace
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
