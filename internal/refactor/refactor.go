// Package refactor implements the Refactor Orchestrator (C8): validates a
// RefactoringPlan, snapshots a backup, applies multi-file edits in planned
// order, post-validates, and rolls back on failure (spec §4.8).
package refactor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"structgraph/internal/backup"
	"structgraph/internal/diff"
	"structgraph/internal/logging"
	"structgraph/internal/model"
	"structgraph/internal/validator"
)

// Orchestrator applies RefactoringPlans with backup/rollback.
type Orchestrator struct {
	backups *backup.Store
}

// New constructs an Orchestrator backed by the given Backup Store.
func New(backups *backup.Store) *Orchestrator {
	return &Orchestrator{backups: backups}
}

// Apply implements spec §4.8's apply() contract. Multi-file plans are
// plan-wide atomic: any write or post-validation failure restores every
// affected file from backup.
func (o *Orchestrator) Apply(plan model.RefactoringPlan, projectRoot string, dryRun, createBackup bool) (*model.ApplyReport, error) {
	if err := o.preValidate(plan, projectRoot); err != nil {
		return nil, err
	}

	report := &model.ApplyReport{Diffs: make(map[string]string)}

	orderedWrites, err := o.planWrites(plan, projectRoot)
	if err != nil {
		return nil, err
	}

	for _, w := range orderedWrites {
		existing, _ := os.ReadFile(w.path)
		fd := diff.ComputeDiff(w.path, w.path, string(existing), w.content)
		report.Diffs[w.path] = renderDiff(fd)
	}

	if dryRun {
		report.ValidationPassed = true
		return report, nil
	}

	var backupID string
	backedUp := make(map[string]bool)
	if createBackup {
		var toBackup []string
		for _, w := range orderedWrites {
			if _, err := os.Stat(w.path); err == nil {
				toBackup = append(toBackup, w.path)
				backedUp[w.path] = true
			}
		}
		if len(toBackup) > 0 {
			id, err := o.backups.Create(toBackup, projectRoot, "apply_deduplication")
			if err != nil {
				return nil, err // create failure aborts before any write, per spec §7
			}
			backupID = id
		}
	}
	report.BackupID = backupID

	var written []string
	rollback := func(cause error) (*model.ApplyReport, error) {
		if backupID != "" {
			if _, rerr := o.backups.Restore(backupID); rerr != nil {
				logging.RefactorError("rollback failed after %v: %v", cause, rerr)
			}
		}
		// Files this plan created (not part of the backup because they
		// didn't exist beforehand, e.g. a fresh extract-to-file target)
		// have no prior state to restore; removing them is what restores
		// the pre-apply state.
		for _, path := range written {
			if !backedUp[path] {
				_ = os.Remove(path)
			}
		}
		report.FilesModified = nil
		report.ValidationPassed = false
		logging.RefactorWarn("plan-wide rollback triggered: %v", cause)
		return report, cause
	}

	for _, w := range orderedWrites {
		if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
			return rollback(fmt.Errorf("%w: %v", model.ErrStorage, err))
		}
		if err := os.WriteFile(w.path, []byte(w.content), 0644); err != nil {
			return rollback(fmt.Errorf("%w: %v", model.ErrStorage, err))
		}
		written = append(written, w.path)
	}

	for _, w := range orderedWrites {
		if err := validator.Validate(plan.Language, w.path, w.content); err != nil {
			return rollback(err)
		}
	}
	if plan.GeneratedCode.ExtractToFile != "" && plan.GeneratedCode.ExtractedFunction != "" {
		content, _ := os.ReadFile(plan.GeneratedCode.ExtractToFile)
		if !validator.HasFunctionDefined(plan.Language, string(content), extractedFunctionName(plan)) {
			return rollback(&model.ValidationError{
				File:    plan.GeneratedCode.ExtractToFile,
				Message: "extracted function not found in extract target",
			})
		}
	}

	report.FilesModified = written
	report.ValidationPassed = true
	logging.RefactorDebug("applied plan: %d files modified, backup=%s", len(written), backupID)
	return report, nil
}

type plannedWrite struct {
	path    string
	content string
}

// planWrites orders writes per spec §4.8: the extract-to-file target first
// (so every observable moment after the first write references symbols
// that already exist), then each updated file, with idempotent import
// injection.
func (o *Orchestrator) planWrites(plan model.RefactoringPlan, projectRoot string) ([]plannedWrite, error) {
	var out []plannedWrite

	if plan.GeneratedCode.ExtractToFile != "" {
		existing, _ := os.ReadFile(plan.GeneratedCode.ExtractToFile)
		content := string(existing)
		if plan.GeneratedCode.ExtractedFunction != "" && !strings.Contains(content, plan.GeneratedCode.ExtractedFunction) {
			if content != "" && !strings.HasSuffix(content, "\n") {
				content += "\n"
			}
			content += plan.GeneratedCode.ExtractedFunction
		}
		out = append(out, plannedWrite{path: plan.GeneratedCode.ExtractToFile, content: content})
	}

	importLine := importStatement(plan)

	for _, f := range plan.FilesAffected {
		repl, ok := plan.GeneratedCode.Replacements[f]
		if !ok {
			continue
		}
		content := repl.NewContent
		if importLine != "" && !strings.Contains(content, importLine) {
			content = importLine + "\n" + content
		}
		out = append(out, plannedWrite{path: f, content: content})
	}

	return out, nil
}

func importStatement(plan model.RefactoringPlan) string {
	if plan.GeneratedCode.ExtractToFile == "" || plan.GeneratedCode.ExtractedFunction == "" {
		return ""
	}
	name := extractedFunctionName(plan)
	if name == "" {
		return ""
	}
	switch strings.ToLower(plan.Language) {
	case "python":
		module := strings.TrimSuffix(plan.GeneratedCode.ExtractToFile, ".py")
		module = strings.ReplaceAll(module, string(filepath.Separator), ".")
		return fmt.Sprintf("from %s import %s", module, name)
	default:
		return ""
	}
}

func extractedFunctionName(plan model.RefactoringPlan) string {
	fn := plan.GeneratedCode.ExtractedFunction
	if strings.HasPrefix(fn, "def ") {
		rest := strings.TrimPrefix(fn, "def ")
		if idx := strings.IndexByte(rest, '('); idx > 0 {
			return rest[:idx]
		}
	}
	return ""
}

func (o *Orchestrator) preValidate(plan model.RefactoringPlan, projectRoot string) error {
	if len(plan.FilesAffected) == 0 {
		return fmt.Errorf("%w: plan has no files_affected", model.ErrInvalidInput)
	}
	for _, f := range plan.FilesAffected {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("%w: affected file does not exist: %s", model.ErrInvalidInput, f)
		}
		repl, ok := plan.GeneratedCode.Replacements[f]
		if !ok {
			return fmt.Errorf("%w: no generated replacement for %s", model.ErrInvalidInput, f)
		}
		if err := validator.Validate(plan.Language, f, repl.NewContent); err != nil {
			return err
		}
	}
	return nil
}

func renderDiff(fd *diff.FileDiff) string {
	if fd == nil {
		return ""
	}
	var b strings.Builder
	for _, h := range fd.Hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case diff.LineAdded:
				b.WriteString("+" + l.Content + "\n")
			case diff.LineRemoved:
				b.WriteString("-" + l.Content + "\n")
			default:
				b.WriteString(" " + l.Content + "\n")
			}
		}
	}
	return b.String()
}
