package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenRe = regexp.MustCompile("{(.*?)}")

// ResolveString replaces {name} tokens with session variables and
// {$.path} tokens with jsonpath lookups over the variable map.
// Unresolvable tokens are left as-is.
func ResolveString(variables map[string]any, value string) string {
	tokens := tokenRe.FindAllString(value, -1)
	if len(tokens) == 0 {
		return value
	}
	tokenMap := make(map[string]any)
	for _, token := range tokens {
		tmatch := strings.ReplaceAll(token, "{", "")
		tmatch = strings.ReplaceAll(tmatch, "}", "")
		if strings.HasPrefix(tmatch, "$") {
			if v, err := jsonpath.JsonPathLookup(variables, tmatch); err == nil {
				tokenMap[token] = v
			}
		} else if v, ok := variables[tmatch]; ok {
			tokenMap[token] = v
		}
	}
	newStr := value
	for t, tv := range tokenMap {
		newStr = strings.ReplaceAll(newStr, t, fmt.Sprintf("%v", tv))
	}
	return newStr
}

// ResolveParams resolves every string leaf of params against the
// variable map, recursing through nested maps and lists.
func ResolveParams(variables map[string]any, params map[string]any) map[string]any {
	output := make(map[string]any)
	resolveParams(variables, params, output)
	return output
}

func resolveParams(variables map[string]any, params map[string]any, output map[string]any) {
	for k, v := range params {
		switch val := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			output[k] = out
			resolveParams(variables, val, out)
		case string:
			output[k] = ResolveString(variables, val)
		case []any:
			output[k] = resolveList(variables, val)
		default:
			output[k] = v
		}
	}
}

func resolveList(variables map[string]any, list []any) []any {
	var output []any
	for _, v := range list {
		switch val := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			resolveParams(variables, val, out)
			output = append(output, out)
		case string:
			output = append(output, ResolveString(variables, val))
		case []any:
			output = append(output, resolveList(variables, val))
		default:
			output = append(output, v)
		}
	}
	return output
}
