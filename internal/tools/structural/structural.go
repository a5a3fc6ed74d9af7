// Package structural registers structgraph's seven host-facing operations
// (spec §6: find_duplication, analyze_deduplication_candidates,
// apply_deduplication, enforce_standards, apply_standards_fixes,
// rollback_rewrite, list_backups) as tools.Tool values in a tools.Registry.
package structural

import (
	"context"
	"encoding/json"
	"fmt"

	"structgraph/internal/backup"
	"structgraph/internal/detector"
	"structgraph/internal/executor"
	"structgraph/internal/model"
	"structgraph/internal/orchestrator"
	"structgraph/internal/ranker"
	"structgraph/internal/refactor"
	"structgraph/internal/ruleengine"
	"structgraph/internal/similarity"
	"structgraph/internal/tools"
)

// Services bundles the component instances the seven operations dispatch
// to. All fields are required; Services.Register wires each into a Tool.
type Services struct {
	Exec         *executor.Executor
	Kernel       *similarity.Kernel
	Detector     *detector.Detector
	Ranker       *ranker.Ranker
	Orchestrator *orchestrator.Orchestrator
	RuleEngine   *ruleengine.Engine
	Fixer        *ruleengine.Fixer
	Refactor     *refactor.Orchestrator
	Backups      *backup.Store
}

// Register builds and registers all seven operations into reg.
func (s *Services) Register(reg *tools.Registry) error {
	for _, t := range s.build() {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Services) build() []*tools.Tool {
	return []*tools.Tool{
		s.findDuplicationTool(),
		s.analyzeCandidatesTool(),
		s.applyDeduplicationTool(),
		s.enforceStandardsTool(),
		s.applyStandardsFixesTool(),
		s.rollbackRewriteTool(),
		s.listBackupsTool(),
	}
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

func floatArg(args map[string]any, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (s *Services) findDuplicationTool() *tools.Tool {
	return &tools.Tool{
		Name:        "find_duplication",
		Description: "Detect duplicate code constructs across a project via structural similarity.",
		Category:    tools.CategoryAnalysis,
		Schema: tools.ToolSchema{
			Required: []string{"project_root", "language"},
			Properties: map[string]tools.Property{
				"project_root":     {Type: "string", Description: "root directory to scan"},
				"language":         {Type: "string", Description: "language to scan"},
				"min_similarity":   {Type: "number", Description: "minimum verified similarity", Default: 0.8},
				"min_lines":        {Type: "integer", Description: "minimum construct size in lines", Default: 5},
				"exclude_patterns": {Type: "array", Description: "glob patterns to exclude", Items: &tools.PropertyItems{Type: "string"}},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			groups, err := s.Detector.FindDuplication(ctx, detector.Config{
				ProjectRoot:     stringArg(args, "project_root", ""),
				Language:        stringArg(args, "language", ""),
				MinSimilarity:   floatArg(args, "min_similarity", 0.8),
				MinLines:        intArg(args, "min_lines", 5),
				ExcludePatterns: stringSliceArg(args, "exclude_patterns"),
			})
			if err != nil {
				return "", err
			}
			return marshal(groups)
		},
	}
}

func (s *Services) analyzeCandidatesTool() *tools.Tool {
	return &tools.Tool{
		Name:        "analyze_deduplication_candidates",
		Description: "Run the full detect/coverage/impact/rank pipeline and return top deduplication candidates.",
		Category:    tools.CategoryAnalysis,
		Schema: tools.ToolSchema{
			Required: []string{"project_root", "language"},
			Properties: map[string]tools.Property{
				"project_root":          {Type: "string", Description: "root directory to scan"},
				"language":              {Type: "string", Description: "language to scan"},
				"min_similarity":        {Type: "number", Default: 0.8},
				"include_test_coverage": {Type: "boolean", Default: false},
				"min_lines":             {Type: "integer", Default: 5},
				"max_candidates":        {Type: "integer"},
				"exclude_patterns":      {Type: "array", Items: &tools.PropertyItems{Type: "string"}},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			result, err := s.Orchestrator.Analyze(ctx, orchestrator.Config{
				ProjectRoot:         stringArg(args, "project_root", ""),
				Language:            stringArg(args, "language", ""),
				MinSimilarity:       floatArg(args, "min_similarity", 0.8),
				MinLines:            intArg(args, "min_lines", 5),
				ExcludePatterns:     stringSliceArg(args, "exclude_patterns"),
				IncludeTestCoverage: boolArg(args, "include_test_coverage", false),
				MaxCandidates:       intArg(args, "max_candidates", 0),
			}, nil)
			if err != nil {
				return "", err
			}
			return marshal(result)
		},
	}
}

// refactoringPlanArg decodes the refactoring_plan argument, which arrives
// as a generic map[string]any from JSON-shaped tool invocation.
func refactoringPlanArg(args map[string]any) (model.RefactoringPlan, error) {
	raw, ok := args["refactoring_plan"]
	if !ok {
		return model.RefactoringPlan{}, fmt.Errorf("%w: refactoring_plan", model.ErrInvalidInput)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return model.RefactoringPlan{}, err
	}
	var plan model.RefactoringPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return model.RefactoringPlan{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return plan, nil
}

func (s *Services) applyDeduplicationTool() *tools.Tool {
	return &tools.Tool{
		Name:        "apply_deduplication",
		Description: "Apply a deduplication refactoring plan with backup and rollback-on-failure.",
		Category:    tools.CategoryMutation,
		Schema: tools.ToolSchema{
			Required: []string{"project_root"},
			Properties: map[string]tools.Property{
				"project_root":     {Type: "string"},
				"group_id":         {Type: "string", Description: "duplicate group id; not read by this tool, refactoring_plan is required"},
				"refactoring_plan": {Type: "object", Description: "a pre-built RefactoringPlan"},
				"dry_run":          {Type: "boolean", Default: true},
				"backup":           {Type: "boolean", Default: true},
				"extract_to_file":  {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			plan, err := refactoringPlanArg(args)
			if err != nil {
				return "", err
			}
			if extract := stringArg(args, "extract_to_file", ""); extract != "" {
				plan.GeneratedCode.ExtractToFile = extract
			}
			report, err := s.Refactor.Apply(plan, stringArg(args, "project_root", ""),
				boolArg(args, "dry_run", true), boolArg(args, "backup", true))
			if err != nil {
				return "", err
			}
			return marshal(report)
		},
	}
}

func (s *Services) enforceStandardsTool() *tools.Tool {
	return &tools.Tool{
		Name:        "enforce_standards",
		Description: "Check a project against a named or custom rule set and report violations.",
		Category:    tools.CategoryAnalysis,
		Schema: tools.ToolSchema{
			Required: []string{"project_root", "language"},
			Properties: map[string]tools.Property{
				"project_root":      {Type: "string"},
				"language":          {Type: "string"},
				"rule_set":          {Type: "string", Enum: []any{"recommended", "security", "performance", "style", "all", "custom"}, Default: "recommended"},
				"custom_rules":      {Type: "array", Items: &tools.PropertyItems{Type: "string"}},
				"include":           {Type: "array", Items: &tools.PropertyItems{Type: "string"}},
				"exclude":           {Type: "array", Items: &tools.PropertyItems{Type: "string"}},
				"severity_threshold": {Type: "string", Enum: []any{"info", "warning", "error"}, Default: "info"},
				"max_violations":    {Type: "integer", Default: 0},
				"parallelism":       {Type: "integer", Default: 4},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			result, err := s.RuleEngine.Enforce(ctx, ruleengine.Config{
				ProjectRoot:       stringArg(args, "project_root", ""),
				Language:          stringArg(args, "language", ""),
				RuleSet:           ruleengine.BuiltinSetName(stringArg(args, "rule_set", "recommended")),
				CustomRuleIDs:     stringSliceArg(args, "custom_rules"),
				Include:           stringSliceArg(args, "include"),
				Exclude:           stringSliceArg(args, "exclude"),
				SeverityThreshold: model.Severity(stringArg(args, "severity_threshold", "info")),
				MaxViolations:     intArg(args, "max_violations", 0),
				Parallelism:       intArg(args, "parallelism", 4),
			})
			if err != nil {
				return "", err
			}
			return marshal(result)
		},
	}
}

func violationsArg(args map[string]any) ([]model.Violation, error) {
	raw, ok := args["violations"]
	if !ok {
		return nil, fmt.Errorf("%w: violations", model.ErrInvalidInput)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var violations []model.Violation
	if err := json.Unmarshal(data, &violations); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return violations, nil
}

func (s *Services) applyStandardsFixesTool() *tools.Tool {
	return &tools.Tool{
		Name:        "apply_standards_fixes",
		Description: "Apply classified textual fixes for a batch of violations, file-local atomic.",
		Category:    tools.CategoryMutation,
		Schema: tools.ToolSchema{
			Required: []string{"violations", "language"},
			Properties: map[string]tools.Property{
				"violations":     {Type: "array", Items: &tools.PropertyItems{Type: "object"}},
				"language":       {Type: "string"},
				"fix_types":      {Type: "array", Items: &tools.PropertyItems{Type: "string"}, Default: []any{"safe"}},
				"dry_run":        {Type: "boolean", Default: true},
				"create_backup":  {Type: "boolean", Default: true},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			violations, err := violationsArg(args)
			if err != nil {
				return "", err
			}
			fixTypes := stringSliceArg(args, "fix_types")
			if len(fixTypes) == 0 {
				fixTypes = []string{"safe"}
			}
			var ft ruleengine.FixTypes
			for _, t := range fixTypes {
				switch t {
				case "safe":
					ft.Safe = true
				case "suggested":
					ft.Suggested = true
				case "all":
					ft.Safe, ft.Suggested = true, true
				}
			}
			result, err := s.Fixer.Apply(violations, stringArg(args, "language", ""), ft,
				boolArg(args, "dry_run", true), boolArg(args, "create_backup", true))
			if err != nil {
				return "", err
			}
			return marshal(result)
		},
	}
}

func (s *Services) rollbackRewriteTool() *tools.Tool {
	return &tools.Tool{
		Name:        "rollback_rewrite",
		Description: "Restore files from a prior backup snapshot.",
		Category:    tools.CategoryBackup,
		Schema: tools.ToolSchema{
			Required: []string{"backup_id"},
			Properties: map[string]tools.Property{
				"backup_id": {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			report, err := s.Backups.Restore(stringArg(args, "backup_id", ""))
			if err != nil {
				return "", err
			}
			return marshal(report)
		},
	}
}

func (s *Services) listBackupsTool() *tools.Tool {
	return &tools.Tool{
		Name:        "list_backups",
		Description: "List available backup snapshots, newest first.",
		Category:    tools.CategoryBackup,
		Schema:      tools.ToolSchema{},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			entries, err := s.Backups.List()
			if err != nil {
				return "", err
			}
			return marshal(entries)
		},
	}
}
