// Package validator implements the per-language Validator capability (spec
// §6, §9): a pure `validate(source) -> Ok | SyntaxError` function consumed
// by the Refactor Orchestrator for pre- and post-write checks. Go uses the
// standard library's parser, the natural choice since no third-party
// library in the corpus supersedes go/parser for Go syntax checking;
// Python/JS/TS use best-effort heuristic checks (bracket balance for
// Python, brace balance for JS/TS; indentation and block-header colons are
// not checked) since this module has no embedded Python/JS
// parser — unknown languages return Ok per spec §6.
package validator

import (
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"

	"structgraph/internal/model"
)

// Validate parses source under the named language's validator and returns
// a *model.ValidationError on failure, or nil on success.
func Validate(language, file, source string) error {
	switch strings.ToLower(language) {
	case "go":
		return validateGo(file, source)
	case "python":
		return validatePython(file, source)
	case "javascript", "typescript":
		return validateBraceBalance(file, source)
	default:
		return nil // best-effort: unknown languages are Ok
	}
}

func validateGo(file, source string) error {
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, file, source, parser.AllErrors)
	if err == nil {
		return nil
	}
	if errList, ok := err.(scanner.ErrorList); ok && len(errList) > 0 {
		first := errList[0]
		return &model.ValidationError{File: file, Line: first.Pos.Line, Column: first.Pos.Column, Message: first.Msg}
	}
	return &model.ValidationError{File: file, Message: err.Error()}
}

// validatePython does a best-effort syntax sanity check: balanced
// parens/brackets/braces only; block-header colons and indentation are not
// checked. Not a real Python
// grammar — a pure, dependency-free approximation per spec §6.
func validatePython(file, source string) error {
	depth := 0
	for i, r := range source {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return &model.ValidationError{File: file, Message: fmt.Sprintf("unbalanced closing bracket at byte %d", i)}
			}
		}
	}
	if depth != 0 {
		return &model.ValidationError{File: file, Message: "unbalanced brackets"}
	}
	return nil
}

// validateBraceBalance verifies brace balance for JS/TS, per spec §4.8's
// post-validation note ("for JS/TS, verify brace balance").
func validateBraceBalance(file, source string) error {
	depth := 0
	for i, r := range source {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return &model.ValidationError{File: file, Message: fmt.Sprintf("unbalanced closing brace at byte %d", i)}
			}
		}
	}
	if depth != 0 {
		return &model.ValidationError{File: file, Message: "unbalanced braces"}
	}
	return nil
}

// HasFunctionDefined reports whether the Python source defines a function
// with the given name — used for the Refactor Orchestrator's additional
// post-validation check on extract-to-file targets (spec §4.8).
func HasFunctionDefined(language, source, name string) bool {
	if strings.ToLower(language) != "python" {
		return true
	}
	return strings.Contains(source, "def "+name+"(")
}
