// Package ruleengine implements the Rule Engine (C7): loads rule sets,
// executes them in parallel via the Executor, and produces an
// EnforcementResult (spec §4.7). Rule-id conflicts across merged rule sets
// are resolved by asserting rule facts into a Mangle fact store and
// selecting the highest-priority rule per id (spec SPEC_FULL.md DOMAIN
// STACK).
package ruleengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/mangle/ast"
	"gopkg.in/yaml.v3"

	"structgraph/internal/logging"
	"structgraph/internal/mangle"
	"structgraph/internal/model"
)

// BuiltinSetName enumerates the named built-in rule sets from spec §4.7.
type BuiltinSetName string

const (
	SetRecommended BuiltinSetName = "recommended"
	SetSecurity    BuiltinSetName = "security"
	SetPerformance BuiltinSetName = "performance"
	SetStyle       BuiltinSetName = "style"
	SetAll         BuiltinSetName = "all"
	SetCustom      BuiltinSetName = "custom"
)

// BuiltinRuleSets returns the packaged built-in rule sets, each carrying a
// fixed priority so a project-local custom set (priority 100) outranks them
// on id conflicts.
func BuiltinRuleSets() map[BuiltinSetName]model.RuleSet {
	noConsoleLog := model.Rule{
		ID: "no-console-log", Language: "javascript", Severity: model.SeverityWarning,
		Message: "remove console.log before committing", Pattern: "console.log($$$ARGS)",
	}
	noVar := model.Rule{
		ID: "no-var", Language: "javascript", Severity: model.SeverityWarning,
		Message: "use let/const instead of var", Pattern: "var $NAME = $VALUE", Fix: "const $NAME = $VALUE",
	}
	noBarePrint := model.Rule{
		ID: "no-bare-print", Language: "python", Severity: model.SeverityInfo,
		Message: "bare print statement", Pattern: "print($$$ARGS)",
	}
	noEval := model.Rule{
		ID: "no-eval", Language: "javascript", Severity: model.SeverityError,
		Message: "eval() is a code-injection risk", Pattern: "eval($ARG)",
	}
	noEmptyCatch := model.Rule{
		ID: "no-empty-catch", Language: "javascript", Severity: model.SeverityWarning,
		Message: "empty catch block swallows errors", Pattern: "catch ($ERR) {  }",
	}

	return map[BuiltinSetName]model.RuleSet{
		SetRecommended: {Name: "recommended", Priority: 10, Rules: []model.Rule{noConsoleLog, noVar, noBarePrint}},
		SetSecurity:    {Name: "security", Priority: 20, Rules: []model.Rule{noEval}},
		SetStyle:       {Name: "style", Priority: 5, Rules: []model.Rule{noVar, noBarePrint}},
		SetPerformance: {Name: "performance", Priority: 15, Rules: []model.Rule{}},
		SetAll: {Name: "all", Priority: 1, Rules: []model.Rule{
			noConsoleLog, noVar, noBarePrint, noEval, noEmptyCatch,
		}},
	}
}

// LoadCustomRules reads one rule per YAML file from dir (default project
// name `.ast-grep-rules`, spec §6). Malformed files are logged and
// skipped, never failing the whole load.
func LoadCustomRules(dir string) ([]model.Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var rules []model.Rule
	for _, e := range entries {
		if e.IsDir() || !(strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logging.RuleEngineWarn("skipping unreadable rule file %s: %v", path, err)
			continue
		}
		var r model.Rule
		if err := yaml.Unmarshal(data, &r); err != nil {
			logging.RuleEngineWarn("skipping malformed rule file %s: %v", path, err)
			continue
		}
		if r.ID == "" {
			logging.RuleEngineWarn("skipping rule file %s: missing id", path)
			continue
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// mergeSchema declares the fact predicate used for priority-merge, plus two
// derived rules: max_priority aggregates the highest priority asserted per
// rule id, and winning_rule joins that back against rule_fact to surface
// which rule set(s) supplied the winning priority. The selection itself
// happens inside this Datalog program, not in Go.
const mergeSchema = `
Decl rule_fact(Id, Priority, RuleSetName).
Decl max_priority(Id, Priority).
Decl winning_rule(Id, Priority, RuleSetName).

max_priority(Id, Priority) :-
    rule_fact(Id, P, _) |>
    do fn:group_by(Id),
    let Priority = fn:Max(P).

winning_rule(Id, Priority, RuleSetName) :-
    rule_fact(Id, Priority, RuleSetName),
    max_priority(Id, Priority).
`

// MergeByPriority resolves rule-id collisions across ruleSets by asserting
// (id, priority, set-name) facts into a Mangle engine and querying
// winning_rule, whose group-by-max aggregation picks the highest-priority
// entry per id (spec §4.7 step 1, §3 invariant 6). When two rule sets
// assert the same id at the same priority, the set that appears earliest
// in ruleSets wins, matching the stable ordering callers pass built-in
// sets in. Returns the merged id -> Rule map.
func MergeByPriority(ruleSets []model.RuleSet) (map[string]model.Rule, error) {
	eng, err := mangle.NewEngine(mangle.DefaultConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("ruleengine: mangle engine: %w", err)
	}
	defer eng.Close()

	if err := eng.LoadSchemaString(mergeSchema); err != nil {
		return nil, fmt.Errorf("ruleengine: schema: %w", err)
	}

	type asserted struct {
		rule  model.Rule
		order int
	}
	bySetAndID := make(map[string]asserted)

	for i, rs := range ruleSets {
		for _, rule := range rs.Rules {
			// Id and set name are asserted as string constants so identifier-like
			// values are not promoted to /name atoms, which would no longer match
			// the bySetAndID keys when read back from the query.
			if err := eng.AddFact("rule_fact", ast.String(rule.ID), int64(rs.Priority), ast.String(rs.Name)); err != nil {
				return nil, fmt.Errorf("ruleengine: asserting rule_fact(%s): %w", rule.ID, err)
			}
			bySetAndID[rs.Name+"\x00"+rule.ID] = asserted{rule: rule, order: i}
		}
	}

	result, err := eng.Query(context.Background(), "winning_rule(Id, Priority, RuleSetName)")
	if err != nil {
		return nil, fmt.Errorf("ruleengine: querying winning_rule: %w", err)
	}

	type winner struct {
		rule  model.Rule
		order int
	}
	winners := make(map[string]winner, len(result.Bindings))
	for _, row := range result.Bindings {
		id, _ := row["Id"].(string)
		setName, _ := row["RuleSetName"].(string)
		a, ok := bySetAndID[setName+"\x00"+id]
		if !ok {
			return nil, fmt.Errorf("%w: winning_rule returned id %q from set %q not present among asserted facts",
				model.ErrConflict, id, setName)
		}
		// Ties on priority: keep the entry from the earliest-encountered rule set.
		if prev, dup := winners[id]; !dup || a.order < prev.order {
			winners[id] = winner{rule: a.rule, order: a.order}
		}
	}

	byID := make(map[string]model.Rule, len(winners))
	for id, w := range winners {
		byID[id] = w.rule
	}

	logging.RuleEngineDebug("merged %d rule sets into %d unique rule ids", len(ruleSets), len(byID))
	return byID, nil
}
