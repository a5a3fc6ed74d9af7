// Package main implements the structgraph CLI: a structural code-analysis
// and refactoring tool wrapping an ast-grep-compatible matcher subprocess.
//
// Commands are split across multiple cmd_*.go files:
//   - main.go          - entry point, rootCmd, global flags, init()
//   - cmd_analyze.go   - find-duplication, analyze subcommands
//   - cmd_refactor.go  - apply-dedup, enforce, fix subcommands
//   - cmd_backup.go    - rollback, list-backups subcommands
//   - cmd_rules.go     - rules lint convenience subcommand
//   - watch.go         - fsnotify-driven watch mode
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"structgraph/internal/logging"
)

var (
	verbose      bool
	workspace    string
	matcherPath  string
	matcherTimeoutSec int

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "structgraph",
	Short: "Structural code analysis, duplication detection, and standards enforcement",
	Long: `structgraph wraps a structural pattern matcher to find duplicate code,
rank deduplication candidates, enforce coding standards, and apply
backed-up, rollback-safe rewrites across a project.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		} else if abs, err := filepath.Abs(ws); err == nil {
			ws = abs
		}
		workspace = ws

		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Project root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&matcherPath, "matcher-path", "", "Path to the matcher binary (default: resolve ast-grep from PATH)")
	rootCmd.PersistentFlags().IntVar(&matcherTimeoutSec, "matcher-timeout", 60, "Matcher subprocess timeout in seconds")

	rootCmd.AddCommand(
		findDuplicationCmd,
		analyzeCmd,
		applyDedupCmd,
		enforceCmd,
		fixCmd,
		rollbackCmd,
		listBackupsCmd,
		rulesCmd,
		watchCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
