package interpreter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/oliveagle/jsonpath"
	"github.com/xkayo32/pydevbot/model"
)

// evaluateCondition resolves a condition node to a branch handle name.
// A node carries either a jsonpath expression over the session
// variables or a javascript snippet with $ bound to them.
func evaluateCondition(node *model.Node, variables map[string]any) (string, error) {
	if script, ok := node.Data["script"].(string); ok && script != "" {
		return evaluateScript(node.Id, script, variables)
	}
	expression, _ := node.Data["expression"].(string)
	if expression == "" {
		return "", fmt.Errorf("condition node %s has no expression", node.Id)
	}
	return evaluateExpression(node.Id, expression, variables)
}

func evaluateExpression(nodeId string, expression string, variables map[string]any) (string, error) {
	tmatch := strings.ReplaceAll(expression, "{", "")
	tmatch = strings.ReplaceAll(tmatch, "}", "")
	var value any
	if strings.HasPrefix(tmatch, "$") {
		v, err := jsonpath.JsonPathLookup(variables, tmatch)
		if err != nil {
			return "", fmt.Errorf("condition node %s expression %s: %w", nodeId, expression, err)
		}
		value = v
	} else {
		v, ok := variables[tmatch]
		if !ok {
			return "", fmt.Errorf("condition node %s references absent variable %s", nodeId, tmatch)
		}
		value = v
	}
	return branchName(value), nil
}

func evaluateScript(nodeId string, script string, variables map[string]any) (string, error) {
	vm := goja.New()
	if err := vm.Set("$", variables); err != nil {
		return "", err
	}
	val, err := vm.RunString(script)
	if err != nil {
		return "", fmt.Errorf("condition node %s script: %w", nodeId, err)
	}
	return branchName(val.Export()), nil
}

func branchName(value any) string {
	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case nil:
		return model.DEFAULT_HANDLE
	}
	return fmt.Sprintf("%v", value)
}
