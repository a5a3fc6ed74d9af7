// Package model defines the shared data types and error taxonomy that flow
// between structgraph's components: Match, Construct, DuplicateGroup,
// RankedCandidate, Rule, Violation, Backup, RefactoringPlan, and the typed
// error kinds each component returns.
package model

import (
	"errors"
	"fmt"
)

// Error kinds, per spec §7. Components wrap one of these sentinels with
// errors.Is-compatible %w so callers can branch on kind without parsing
// messages.
var (
	// ErrInvalidInput marks caller misuse: missing path, bad threshold,
	// unknown language, malformed plan. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMatcherNotFound means the matcher binary could not be located.
	ErrMatcherNotFound = errors.New("matcher binary not found")

	// ErrMatcherTimeout means the matcher subprocess exceeded its deadline.
	ErrMatcherTimeout = errors.New("matcher timed out")

	// ErrInvalidPattern means the matcher rejected a pattern/rule during
	// its dry-run probe.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrMatcher is the umbrella sentinel for MatcherError; use errors.Is
	// against this to catch any matcher subprocess failure regardless of
	// exit code or stderr content.
	ErrMatcher = errors.New("matcher error")

	// ErrValidation marks a pre- or post-write language-parse failure.
	ErrValidation = errors.New("validation failed")

	// ErrStorage marks a backup create/restore I/O failure.
	ErrStorage = errors.New("storage failure")

	// ErrConflict marks a rule id collision or a concurrent-modification
	// detection via backup metadata mismatch.
	ErrConflict = errors.New("conflict")
)

// MatcherError wraps a failed matcher subprocess invocation: non-zero exit,
// unparseable output, or any other runtime failure. Stderr is truncated to
// 200 bytes before being embedded, per spec §6.
type MatcherError struct {
	Stderr   string
	ExitCode int
	Err      error
}

func (e *MatcherError) Error() string {
	stderr := e.Stderr
	if len(stderr) > 200 {
		stderr = stderr[:200]
	}
	if e.Err != nil {
		return fmt.Sprintf("matcher error (exit=%d): %v: %s", e.ExitCode, e.Err, stderr)
	}
	return fmt.Sprintf("matcher error (exit=%d): %s", e.ExitCode, stderr)
}

func (e *MatcherError) Unwrap() error { return ErrMatcher }

// ValidationError reports a language-parse failure at a specific location.
type ValidationError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StorageError wraps a backup I/O failure.
type StorageError struct {
	Op   string // "create" | "restore" | "cleanup"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorage }

// ConflictError reports a rule-id collision or a backup metadata mismatch
// detected during restore.
type ConflictError struct {
	Subject string
	Detail  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Subject, e.Detail)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
