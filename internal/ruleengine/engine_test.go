package ruleengine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"structgraph/internal/model"
)

func TestFilterByLanguage(t *testing.T) {
	rules := []model.Rule{
		{ID: "py-rule", Language: "python"},
		{ID: "js-rule", Language: "javascript"},
	}
	got := filterByLanguage(rules, "python")
	require.Len(t, got, 1)
	require.Equal(t, "py-rule", got[0].ID)
}

func TestRulesOf_SortedByID(t *testing.T) {
	byID := map[string]model.Rule{
		"zeta":  {ID: "zeta"},
		"alpha": {ID: "alpha"},
		"mid":   {ID: "mid"},
	}
	got := rulesOf(byID)
	require.Equal(t, []string{"alpha", "mid", "zeta"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestCountBy_TallysByKey(t *testing.T) {
	violations := []model.Violation{
		{RuleID: "r1", Match: model.Match{File: "a.py"}},
		{RuleID: "r1", Match: model.Match{File: "b.py"}},
		{RuleID: "r2", Match: model.Match{File: "a.py"}},
	}
	byFile := countBy(violations, func(v model.Violation) string { return v.File })
	require.Equal(t, 2, byFile["a.py"])
	require.Equal(t, 1, byFile["b.py"])

	byRule := countBy(violations, func(v model.Violation) string { return v.RuleID })
	require.Equal(t, 2, byRule["r1"])
	require.Equal(t, 1, byRule["r2"])
}

func TestSeverity_AtLeast(t *testing.T) {
	require.True(t, model.SeverityError.AtLeast(model.SeverityWarning))
	require.False(t, model.SeverityInfo.AtLeast(model.SeverityWarning))
	require.True(t, model.SeverityWarning.AtLeast(model.SeverityWarning))
}
