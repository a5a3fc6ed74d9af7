package ruleengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"structgraph/internal/backup"
	"structgraph/internal/model"
)

func TestClassifyFix_KnownAndUnknownRules(t *testing.T) {
	known := classifyFix("no-var")
	require.True(t, known.IsSafe)
	require.InDelta(t, 0.95, known.Confidence, 1e-9)

	unknown := classifyFix("some-made-up-rule")
	require.False(t, unknown.IsSafe)
	require.True(t, unknown.RequiresReview)
}

func TestFixTypes_Allows(t *testing.T) {
	safeOnly := FixTypes{Safe: true}
	require.True(t, safeOnly.allows(model.FixValidation{IsSafe: true}))
	require.False(t, safeOnly.allows(model.FixValidation{IsSafe: false}))

	suggestedOnly := FixTypes{Suggested: true}
	require.True(t, suggestedOnly.allows(model.FixValidation{IsSafe: false}))
	require.False(t, suggestedOnly.allows(model.FixValidation{IsSafe: true}))
}

func TestFixer_Apply_RemovesConsoleLog(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.js")
	src := "function f() {\n  console.log(\"debug\");\n  return 1;\n}\n"
	require.NoError(t, os.WriteFile(file, []byte(src), 0o644))

	violations := []model.Violation{
		{
			Match:  model.Match{File: file, Text: "console.log(\"debug\")", Range: model.Range{Start: model.Position{Line: 2}}},
			RuleID: "no-console-log",
		},
	}

	fixer := NewFixer(backup.New(filepath.Join(dir, ".backups")))
	result, err := fixer.Apply(violations, "javascript", FixTypes{Safe: true}, false, true)
	require.NoError(t, err)
	require.Equal(t, 1, result.Successful)
	require.Equal(t, 0, result.Failed)
	require.True(t, result.ValidationPassed)
	require.Contains(t, result.FilesModified, file)

	got, err := os.ReadFile(file)
	require.NoError(t, err)
	require.NotContains(t, string(got), "console.log")
}

func TestFixer_Apply_DryRunDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.js")
	src := "console.log(\"debug\");\n"
	require.NoError(t, os.WriteFile(file, []byte(src), 0o644))

	violations := []model.Violation{
		{Match: model.Match{File: file, Text: "console.log(\"debug\")"}, RuleID: "no-console-log"},
	}

	fixer := NewFixer(backup.New(filepath.Join(dir, ".backups")))
	result, err := fixer.Apply(violations, "javascript", FixTypes{Safe: true}, true, false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Successful)
	require.Empty(t, result.FilesModified)

	got, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Equal(t, src, string(got))
}

func TestFixer_Apply_FileLocalFailureLeavesOtherFilesWritten(t *testing.T) {
	dir := t.TempDir()
	goodFile := filepath.Join(dir, "a.js")
	badFile := filepath.Join(dir, "b.js")
	goodSrc := "console.log(\"debug\");\n"
	badSrc := "function g() {\n  foo();\n}\n"
	require.NoError(t, os.WriteFile(goodFile, []byte(goodSrc), 0o644))
	require.NoError(t, os.WriteFile(badFile, []byte(badSrc), 0o644))

	violations := []model.Violation{
		{Match: model.Match{File: goodFile, Text: "console.log(\"debug\")"}, RuleID: "no-console-log"},
		// An unrecognized rule id with a fix suggestion that introduces a stray
		// closing brace, so b.js fails post-fix brace-balance validation.
		{Match: model.Match{File: badFile, Text: "foo();"}, RuleID: "unbalances-braces", FixSuggestion: "foo(); }"},
	}

	fixer := NewFixer(backup.New(filepath.Join(dir, ".backups")))
	result, err := fixer.Apply(violations, "javascript", FixTypes{Safe: true, Suggested: true}, false, true)
	require.NoError(t, err)
	require.False(t, result.ValidationPassed)
	require.Contains(t, result.FilesModified, goodFile)
	require.NotContains(t, result.FilesModified, badFile)

	gotGood, err := os.ReadFile(goodFile)
	require.NoError(t, err)
	require.NotContains(t, string(gotGood), "console.log", "a.js's successful fix must stand despite b.js failing")

	gotBad, err := os.ReadFile(badFile)
	require.NoError(t, err)
	require.Equal(t, badSrc, string(gotBad), "b.js must be restored to its pre-fix content")
}

func TestFixer_Apply_FixTypesExcludesUnrequestedKind(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(file, []byte("eval(x);\n"), 0o644))

	violations := []model.Violation{
		{Match: model.Match{File: file, Text: "eval(x)"}, RuleID: "no-eval"},
	}

	fixer := NewFixer(backup.New(filepath.Join(dir, ".backups")))
	result, err := fixer.Apply(violations, "javascript", FixTypes{Safe: true}, false, false)
	require.NoError(t, err)
	require.Equal(t, 0, result.Attempted, "no-eval is unsafe and Safe-only fix types must skip it")
}
