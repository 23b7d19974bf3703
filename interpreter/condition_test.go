package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pydevbot/model"
)

func TestEvaluateCondition(t *testing.T) {
	variables := map[string]any{
		"vip":   true,
		"age":   float64(30),
		"plan":  "premium",
		"score": 4.5,
		"user":  map[string]any{"country": "br"},
	}
	for scenario, fn := range map[string]func(t *testing.T){
		"bool variable to branch": func(t *testing.T) {
			branch, err := evaluateCondition(conditionNode("{vip}", ""), variables)
			require.NoError(t, err)
			require.Equal(t, "true", branch)
		},
		"string variable to branch": func(t *testing.T) {
			branch, err := evaluateCondition(conditionNode("{plan}", ""), variables)
			require.NoError(t, err)
			require.Equal(t, "premium", branch)
		},
		"int valued float collapses": func(t *testing.T) {
			branch, err := evaluateCondition(conditionNode("{age}", ""), variables)
			require.NoError(t, err)
			require.Equal(t, "30", branch)
		},
		"fractional float keeps decimals": func(t *testing.T) {
			branch, err := evaluateCondition(conditionNode("{score}", ""), variables)
			require.NoError(t, err)
			require.Equal(t, "4.5", branch)
		},
		"jsonpath expression": func(t *testing.T) {
			branch, err := evaluateCondition(conditionNode("{$.user.country}", ""), variables)
			require.NoError(t, err)
			require.Equal(t, "br", branch)
		},
		"absent variable errors": func(t *testing.T) {
			_, err := evaluateCondition(conditionNode("{missing}", ""), variables)
			require.Error(t, err)
		},
		"script branch": func(t *testing.T) {
			branch, err := evaluateCondition(conditionNode("", "$.age >= 18 ? 'adult' : 'minor'"), variables)
			require.NoError(t, err)
			require.Equal(t, "adult", branch)
		},
		"script bool result": func(t *testing.T) {
			branch, err := evaluateCondition(conditionNode("", "$.plan === 'premium'"), variables)
			require.NoError(t, err)
			require.Equal(t, "true", branch)
		},
		"broken script errors": func(t *testing.T) {
			_, err := evaluateCondition(conditionNode("", "syntax error ==="), variables)
			require.Error(t, err)
		},
		"no expression errors": func(t *testing.T) {
			_, err := evaluateCondition(conditionNode("", ""), variables)
			require.Error(t, err)
		},
	} {
		t.Run(scenario, fn)
	}
}

func conditionNode(expression string, script string) *model.Node {
	data := map[string]any{}
	if expression != "" {
		data["expression"] = expression
	}
	if script != "" {
		data["script"] = script
	}
	return &model.Node{Id: "cond", Type: model.NODE_TYPE_CONDITION, Data: data}
}
