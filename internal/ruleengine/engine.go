package ruleengine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"structgraph/internal/executor"
	"structgraph/internal/filegate"
	"structgraph/internal/logging"
	"structgraph/internal/model"
)

// Config parameterizes one enforce() call, per spec §4.7.
type Config struct {
	ProjectRoot       string
	Language          string
	RuleSet           BuiltinSetName
	CustomRuleIDs     []string
	CustomRulesDir    string
	Include           []string
	Exclude           []string
	SeverityThreshold model.Severity
	MaxViolations     int // 0 = unlimited
	Parallelism       int
}

// Engine resolves and executes rule sets.
type Engine struct {
	exec *executor.Executor
}

// New constructs a rule Engine bound to an Executor.
func New(exec *executor.Executor) *Engine {
	return &Engine{exec: exec}
}

// Enforce implements spec §4.7's enforce() operation.
func (e *Engine) Enforce(ctx context.Context, cfg Config) (*model.EnforcementResult, error) {
	start := time.Now()
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("%w: project_root required", model.ErrInvalidInput)
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.SeverityThreshold == "" {
		cfg.SeverityThreshold = model.SeverityInfo
	}

	rules, err := e.resolveRules(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Language != "" {
		rules = filterByLanguage(rules, cfg.Language)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no rules resolved for language %q", model.ErrInvalidInput, cfg.Language)
	}

	files, err := filegate.Gate(filegate.Config{
		ProjectRoot:  cfg.ProjectRoot,
		Language:     cfg.Language,
		IncludeGlobs: cfg.Include,
		ExcludeGlobs: cfg.Exclude,
	})
	if err != nil {
		return nil, err
	}
	fileSet := make(map[string]struct{}, len(files))
	for _, f := range files {
		fileSet[f] = struct{}{}
	}

	var (
		mu          sync.Mutex
		violations  []model.Violation
		rulesRun    int
		stopped     bool
		wg          sync.WaitGroup
		sem         = make(chan struct{}, cfg.Parallelism)
	)

	for _, rule := range rules {
		mu.Lock()
		if stopped {
			mu.Unlock()
			break
		}
		mu.Unlock()

		wg.Add(1)
		sem <- struct{}{}
		go func(r model.Rule) {
			defer wg.Done()
			defer func() { <-sem }()

			ruleYAML, err := yaml.Marshal(r)
			if err != nil {
				logging.RuleEngineWarn("rule %s: failed to serialize to YAML: %v", r.ID, err)
				return
			}

			seq, err := e.exec.Run(ctx, executor.RunOptions{
				ProjectRoot:   cfg.ProjectRoot,
				PatternOrRule: string(ruleYAML),
				Language:      r.Language,
			})
			if err != nil {
				logging.RuleEngineWarn("rule %s: matcher invocation failed, skipping rule: %v", r.ID, err)
				mu.Lock()
				rulesRun++
				mu.Unlock()
				return
			}

			var ruleViolations []model.Violation
			for {
				m, ok := seq.Next()
				if !ok {
					break
				}
				if _, allowed := fileSet[m.File]; len(fileSet) > 0 && !allowed {
					continue
				}
				ruleViolations = append(ruleViolations, model.Violation{
					Match:         m,
					RuleID:        r.ID,
					Severity:      r.Severity,
					Message:       r.Message,
					FixSuggestion: r.Fix,
				})
			}
			if err := seq.Close(); err != nil {
				logging.RuleEngineWarn("rule %s: matcher exited with error: %v", r.ID, err)
			}

			mu.Lock()
			defer mu.Unlock()
			rulesRun++
			if stopped {
				return
			}
			for _, v := range ruleViolations {
				if cfg.MaxViolations > 0 && len(violations) >= cfg.MaxViolations {
					stopped = true
					break
				}
				violations = append(violations, v)
			}
		}(rule)
	}
	wg.Wait()

	filtered := make([]model.Violation, 0, len(violations))
	for _, v := range violations {
		if v.Severity.AtLeast(cfg.SeverityThreshold) {
			filtered = append(filtered, v)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].File != filtered[j].File {
			return filtered[i].File < filtered[j].File
		}
		return filtered[i].Range.Start.Line < filtered[j].Range.Start.Line
	})

	bySeverity := make(map[model.Severity]int)
	for _, v := range filtered {
		bySeverity[v.Severity]++
	}

	result := &model.EnforcementResult{
		Violations:       filtered,
		CountsBySeverity: bySeverity,
		CountsByFile:     countBy(filtered, func(v model.Violation) string { return v.File }),
		CountsByRule:     countBy(filtered, func(v model.Violation) string { return v.RuleID }),
		FilesScanned:     len(files),
		RulesExecuted:    rulesRun,
		Elapsed:          time.Since(start),
	}
	logging.RuleEngineDebug("enforce: %d rules, %d files, %d violations in %v", rulesRun, len(files), len(filtered), result.Elapsed)
	return result, nil
}

func (e *Engine) resolveRules(cfg Config) ([]model.Rule, error) {
	switch cfg.RuleSet {
	case SetCustom, "":
		custom, err := LoadCustomRules(cfg.CustomRulesDir)
		if err != nil {
			return nil, err
		}
		if len(cfg.CustomRuleIDs) > 0 {
			wanted := make(map[string]struct{}, len(cfg.CustomRuleIDs))
			for _, id := range cfg.CustomRuleIDs {
				wanted[id] = struct{}{}
			}
			filtered := custom[:0]
			for _, r := range custom {
				if _, ok := wanted[r.ID]; ok {
					filtered = append(filtered, r)
				}
			}
			custom = filtered
		}
		customSet := model.RuleSet{Name: "custom", Priority: 100, Rules: custom}
		merged, err := MergeByPriority([]model.RuleSet{customSet})
		if err != nil {
			return nil, err
		}
		return rulesOf(merged), nil
	default:
		builtins := BuiltinRuleSets()
		set, ok := builtins[cfg.RuleSet]
		if !ok {
			return nil, fmt.Errorf("%w: unknown rule_set %q", model.ErrInvalidInput, cfg.RuleSet)
		}
		custom, _ := LoadCustomRules(cfg.CustomRulesDir)
		customSet := model.RuleSet{Name: "custom", Priority: 100, Rules: custom}
		merged, err := MergeByPriority([]model.RuleSet{set, customSet})
		if err != nil {
			return nil, err
		}
		return rulesOf(merged), nil
	}
}

func rulesOf(byID map[string]model.Rule) []model.Rule {
	out := make([]model.Rule, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func filterByLanguage(rules []model.Rule, lang string) []model.Rule {
	out := rules[:0]
	for _, r := range rules {
		if r.Language == lang {
			out = append(out, r)
		}
	}
	return out
}

func countBy(violations []model.Violation, key func(model.Violation) string) map[string]int {
	out := make(map[string]int)
	for _, v := range violations {
		out[key(v)]++
	}
	return out
}
