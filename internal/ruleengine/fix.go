package ruleengine

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"structgraph/internal/backup"
	"structgraph/internal/logging"
	"structgraph/internal/model"
	"structgraph/internal/validator"
)

// fixSafety is the built-in rule-id -> {is_safe, confidence} table from
// spec §4.8. Unlisted rule ids are treated as review-required at the
// lowest confidence.
var fixSafety = map[string]model.FixValidation{
	"no-var":          {IsSafe: true, Confidence: 0.95},
	"no-console-log":  {IsSafe: true, Confidence: 0.95},
	"no-bare-print":   {IsSafe: true, Confidence: 0.9},
	"no-eval":         {IsSafe: false, Confidence: 0.6, RequiresReview: true, Warnings: []string{"eval removal may change control flow"}},
	"no-empty-catch":  {IsSafe: false, Confidence: 0.7, RequiresReview: true, Warnings: []string{"empty-catch replacement changes error handling"}},
}

func classifyFix(ruleID string) model.FixValidation {
	if v, ok := fixSafety[ruleID]; ok {
		return v
	}
	return model.FixValidation{IsSafe: false, Confidence: 0.6, RequiresReview: true}
}

// Fixer applies rule-driven textual fixes, per spec §4.8's fix
// classification and file-local atomicity rules.
type Fixer struct {
	backups *backup.Store
}

// NewFixer constructs a Fixer backed by a Backup Store.
func NewFixer(backups *backup.Store) *Fixer {
	return &Fixer{backups: backups}
}

// FixTypes selects which classified fixes apply_standards_fixes will act
// on (spec §6: fix_types ⊆ {safe,suggested,all}).
type FixTypes struct {
	Safe      bool
	Suggested bool
}

func (ft FixTypes) allows(v model.FixValidation) bool {
	if ft.Safe && v.IsSafe {
		return true
	}
	if ft.Suggested && !v.IsSafe {
		return true
	}
	return false
}

// Apply implements apply_standards_fixes: violations are grouped by file
// and applied in reverse line order so earlier edits don't shift later
// ones. Atomicity is file-local: a failing fix rolls back only its own
// file; other already-written files stand, per spec §4.8's explicit
// distinction from the Refactor Orchestrator's plan-wide atomicity.
func (f *Fixer) Apply(violations []model.Violation, language string, types FixTypes, dryRun, createBackup bool) (*model.FixBatchResult, error) {
	byFile := make(map[string][]model.Violation)
	for _, v := range violations {
		if !types.allows(classifyFix(v.RuleID)) {
			continue
		}
		byFile[v.File] = append(byFile[v.File], v)
	}

	result := &model.FixBatchResult{ValidationPassed: true, BackupIDs: make(map[string]string)}

	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)

	for _, file := range files {
		vs := byFile[file]
		sort.Slice(vs, func(i, j int) bool { return vs[i].Range.Start.Line > vs[j].Range.Start.Line })

		original, err := os.ReadFile(file)
		if err != nil {
			logging.RuleEngineWarn("apply_standards_fixes: cannot read %s: %v", file, err)
			continue
		}
		content := string(original)

		var fileResults []model.FixResult
		fileFailed := false
		for _, v := range vs {
			result.Attempted++
			fixed, ok := applyOneFix(content, v)
			fr := model.FixResult{File: file, OriginalText: v.Text}
			if !ok {
				fr.Success = false
				fr.ErrorMsg = "no textual fix available for rule " + v.RuleID
				fr.Kind = model.FixKindSuggested
				fileResults = append(fileResults, fr)
				result.Failed++
				continue
			}
			content = fixed
			fr.Success = true
			fr.FixedText = fixed
			fr.Kind = fixKindOf(v.RuleID)
			fileResults = append(fileResults, fr)
			result.Successful++
		}

		if dryRun {
			result.Results = append(result.Results, fileResults...)
			continue
		}

		var backupID string
		if createBackup {
			id, err := f.backups.Create([]string{file}, "", "enforce_fix")
			if err != nil {
				return nil, err
			}
			backupID = id
			result.BackupIDs[file] = id
		}

		if err := validator.Validate(language, file, content); err != nil {
			logging.RuleEngineWarn("apply_standards_fixes: %s failed post-validation, reverting this file only: %v", file, err)
			fileFailed = true
		}

		if fileFailed {
			if backupID != "" {
				if _, rerr := f.backups.Restore(backupID); rerr != nil {
					logging.RuleEngineWarn("apply_standards_fixes: restore after file-local failure: %v", rerr)
				}
			}
			result.ValidationPassed = false
			result.Results = append(result.Results, fileResults...)
			continue
		}

		if err := os.WriteFile(file, []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrStorage, err)
		}
		result.FilesModified = append(result.FilesModified, file)
		result.Results = append(result.Results, fileResults...)
	}

	logging.RuleEngineDebug("apply_standards_fixes: attempted=%d successful=%d failed=%d files=%d",
		result.Attempted, result.Successful, result.Failed, len(result.FilesModified))
	return result, nil
}

func fixKindOf(ruleID string) model.FixKind {
	switch ruleID {
	case "no-var":
		return model.FixKindPattern
	case "no-console-log", "no-bare-print":
		return model.FixKindRemoval
	default:
		return model.FixKindSuggested
	}
}

// applyOneFix performs the purely textual substitution for a single
// violation, replacing the matched text with its rule's fix text (or
// removing it for removal-kind rules). Returns ok=false when the rule has
// no applicable textual transform.
func applyOneFix(content string, v model.Violation) (string, bool) {
	switch v.RuleID {
	case "no-console-log", "no-bare-print":
		return removeStatement(content, v.Text), true
	case "no-var":
		return replaceOnce(content, v.Text, strings.Replace(v.Text, "var ", "const ", 1)), true
	default:
		if v.FixSuggestion == "" {
			return content, false
		}
		return replaceOnce(content, v.Text, v.FixSuggestion), true
	}
}

func removeStatement(content, matched string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.Contains(line, matched) {
			lines[i] = ""
			break
		}
	}
	return strings.Join(lines, "\n")
}

func replaceOnce(content, old, new string) string {
	idx := strings.Index(content, old)
	if idx < 0 {
		return content
	}
	return content[:idx] + new + content[idx+len(old):]
}
