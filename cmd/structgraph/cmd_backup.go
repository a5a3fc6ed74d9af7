package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <backup_id>",
	Short: "Restore files from a prior backup snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info("rollback starting", zap.String("backup_id", args[0]))
		services, err := buildServices()
		if err != nil {
			return err
		}
		report, err := services.Backups.Restore(args[0])
		if err != nil {
			logger.Error("rollback failed", zap.Error(err))
			return err
		}
		logger.Info("rollback complete", zap.Int("restored", len(report.RestoredFiles)), zap.Int("errors", len(report.Errors)))
		return printJSON(report)
	},
}

var listBackupsCmd = &cobra.Command{
	Use:   "list-backups",
	Short: "List available backup snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := buildServices()
		if err != nil {
			return err
		}
		entries, err := services.Backups.List()
		if err != nil {
			logger.Error("list-backups failed", zap.Error(err))
			return err
		}
		logger.Debug("list-backups complete", zap.Int("count", len(entries)))
		return printJSON(entries)
	},
}
