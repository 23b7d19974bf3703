package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveString(t *testing.T) {
	variables := map[string]any{
		"name": "ana",
		"age":  30,
		"order": map[string]any{
			"id": "ord-1",
		},
	}
	for scenario, fn := range map[string]func(t *testing.T){
		"plain variable token": func(t *testing.T) {
			require.Equal(t, "hello ana", ResolveString(variables, "hello {name}"))
		},
		"jsonpath token": func(t *testing.T) {
			require.Equal(t, "order ord-1", ResolveString(variables, "order {$.order.id}"))
		},
		"multiple tokens": func(t *testing.T) {
			require.Equal(t, "ana is 30", ResolveString(variables, "{name} is {age}"))
		},
		"unresolvable token kept": func(t *testing.T) {
			require.Equal(t, "hi {missing}", ResolveString(variables, "hi {missing}"))
		},
		"no tokens": func(t *testing.T) {
			require.Equal(t, "plain", ResolveString(variables, "plain"))
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestResolveParams(t *testing.T) {
	variables := map[string]any{"name": "ana", "city": "lisbon"}
	params := map[string]any{
		"greeting": "hi {name}",
		"count":    3,
		"nested": map[string]any{
			"where": "{city}",
		},
		"list": []any{"{name}", 1},
	}
	out := ResolveParams(variables, params)
	require.Equal(t, "hi ana", out["greeting"])
	require.Equal(t, 3, out["count"])
	require.Equal(t, "lisbon", out["nested"].(map[string]any)["where"])
	require.Equal(t, []any{"ana", 1}, out["list"])
}
