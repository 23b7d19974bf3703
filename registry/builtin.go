package registry

import "github.com/xkayo32/pydevbot/model"

// BuiltinTemplates returns the contracts for the node types the
// interpreter knows how to execute. The agent seeds missing ones at
// startup so a fresh install can run flows immediately.
func BuiltinTemplates() []model.ComponentTemplate {
	in := []model.Handle{{Name: "in", Required: true}}
	out := []model.Handle{{Name: model.DEFAULT_HANDLE}}
	return []model.ComponentTemplate{
		{
			Type:          model.NODE_TYPE_START,
			Name:          "Start",
			Category:      "flow",
			OutputHandles: out,
			IsActive:      true,
		},
		{
			Type:          model.NODE_TYPE_MESSAGE,
			Name:          "Message",
			Category:      "content",
			InputHandles:  in,
			OutputHandles: out,
			DefaultData:   map[string]any{"content": ""},
			IsActive:      true,
		},
		{
			Type:          model.NODE_TYPE_INPUT,
			Name:          "User Input",
			Category:      "content",
			InputHandles:  in,
			OutputHandles: out,
			DefaultData:   map[string]any{"prompt": "", "variable": ""},
			IsActive:      true,
		},
		{
			Type:          model.NODE_TYPE_CONDITION,
			Name:          "Condition",
			Category:      "logic",
			InputHandles:  in,
			OutputHandles: []model.Handle{{Name: "true"}, {Name: "false"}, {Name: model.DEFAULT_HANDLE}},
			DefaultData:   map[string]any{"expression": ""},
			IsActive:      true,
		},
		{
			Type:          model.NODE_TYPE_INTEGRATION,
			Name:          "Integration",
			Category:      "integration",
			InputHandles:  in,
			OutputHandles: out,
			DefaultData:   map[string]any{"url": "", "method": "POST"},
			IsActive:      true,
		},
		{
			Type:         model.NODE_TYPE_END,
			Name:         "End",
			Category:     "flow",
			InputHandles: in,
			IsActive:     true,
		},
	}
}
