package ruleengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"structgraph/internal/model"
)

func TestBuiltinRuleSets_PriorityOrdering(t *testing.T) {
	sets := BuiltinRuleSets()
	require.Less(t, sets[SetStyle].Priority, sets[SetRecommended].Priority)
	require.Less(t, sets[SetRecommended].Priority, sets[SetSecurity].Priority)
}

func TestLoadCustomRules_MissingDirIsEmptyNotError(t *testing.T) {
	rules, err := LoadCustomRules(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.Empty(t, rules)
}

func TestLoadCustomRules_SkipsMalformedAndMissingID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(
		"id: custom-1\nlanguage: python\nseverity: warning\nmessage: test rule\npattern: foo($ARG)\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "malformed.yaml"), []byte("{{not yaml"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noid.yaml"), []byte("language: python\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("id: nope\n"), 0o644))

	rules, err := LoadCustomRules(dir)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, "custom-1", rules[0].ID)
}

func TestMergeByPriority_HigherPriorityWins(t *testing.T) {
	low := model.RuleSet{Name: "low", Priority: 1, Rules: []model.Rule{
		{ID: "shared-rule", Message: "from low"},
	}}
	high := model.RuleSet{Name: "high", Priority: 100, Rules: []model.Rule{
		{ID: "shared-rule", Message: "from high"},
		{ID: "only-in-high", Message: "unique"},
	}}

	merged, err := MergeByPriority([]model.RuleSet{low, high})
	require.NoError(t, err)
	require.Len(t, merged, 2)
	require.Equal(t, "from high", merged["shared-rule"].Message)
	require.Equal(t, "unique", merged["only-in-high"].Message)
}

func TestMergeByPriority_EmptyInputYieldsEmptyMap(t *testing.T) {
	merged, err := MergeByPriority(nil)
	require.NoError(t, err)
	require.Empty(t, merged)
}

func TestMergeByPriority_TiePriorityKeepsEarliestRuleSet(t *testing.T) {
	first := model.RuleSet{Name: "first", Priority: 10, Rules: []model.Rule{
		{ID: "shared-rule", Message: "from first"},
	}}
	second := model.RuleSet{Name: "second", Priority: 10, Rules: []model.Rule{
		{ID: "shared-rule", Message: "from second"},
	}}

	merged, err := MergeByPriority([]model.RuleSet{first, second})
	require.NoError(t, err)
	require.Equal(t, "from first", merged["shared-rule"].Message)
}
