package main

import (
	"errors"
	"path/filepath"
	"time"

	"structgraph/internal/backup"
	"structgraph/internal/detector"
	"structgraph/internal/executor"
	"structgraph/internal/model"
	"structgraph/internal/orchestrator"
	"structgraph/internal/ranker"
	"structgraph/internal/refactor"
	"structgraph/internal/ruleengine"
	"structgraph/internal/similarity"
)

// buildServices wires the component graph used by every subcommand. The
// core (executor, similarity kernel, detector, ranker, rule engine, fixer,
// backup store, refactor orchestrator, analysis orchestrator) is assembled
// afresh on each call; no query cache is wired in. The embedding engine is
// left nil here since the CLI has no flags for configuring it — the
// semantic similarity stage degrades to MinHash+AST-only per its own
// nil-embedder contract.
func buildServices() (*coreServices, error) {
	execCfg := executor.DefaultConfig()
	if matcherPath != "" {
		execCfg.MatcherPath = matcherPath
	}
	if matcherTimeoutSec > 0 {
		execCfg.Timeout = time.Duration(matcherTimeoutSec) * time.Second
	}
	exec := executor.New(execCfg)

	kernel := similarity.New(similarity.DefaultConfig(), nil)

	det := detector.New(exec, kernel)

	rnk, err := ranker.New(512)
	if err != nil {
		return nil, err
	}

	ruleEng := ruleengine.New(exec)

	backupDir := filepath.Join(workspace, ".structgraph", "backups")
	backups := backup.New(backupDir)

	fixer := ruleengine.NewFixer(backups)
	refactorOrch := refactor.New(backups)

	orch := orchestrator.New(
		func() *detector.Detector { return det },
		func() (*ranker.Ranker, error) { return rnk, nil },
	)

	return &coreServices{
		Exec:         exec,
		Kernel:       kernel,
		Detector:     det,
		Ranker:       rnk,
		RuleEngine:   ruleEng,
		Fixer:        fixer,
		Backups:      backups,
		Refactor:     refactorOrch,
		Orchestrator: orch,
	}, nil
}

type coreServices struct {
	Exec         *executor.Executor
	Kernel       *similarity.Kernel
	Detector     *detector.Detector
	Ranker       *ranker.Ranker
	RuleEngine   *ruleengine.Engine
	Fixer        *ruleengine.Fixer
	Backups      *backup.Store
	Refactor     *refactor.Orchestrator
	Orchestrator *orchestrator.Orchestrator
}

// exitCodeFor classifies an error into the CLI exit codes spec §6 defines:
// 0 success, 1 user-input error, 2 matcher/runtime error, 3 validation
// failure after apply.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) || errors.Is(err, model.ErrValidation) {
		return 3
	}
	if errors.Is(err, model.ErrInvalidInput) || errors.Is(err, model.ErrInvalidPattern) {
		return 1
	}
	if errors.Is(err, model.ErrMatcher) || errors.Is(err, model.ErrMatcherTimeout) ||
		errors.Is(err, model.ErrMatcherNotFound) || errors.Is(err, model.ErrStorage) ||
		errors.Is(err, model.ErrConflict) {
		return 2
	}
	return 2
}
