package model

import "time"

type Handle struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// ComponentTemplate is the behavioral contract for a node type. Nodes
// reference templates by type string, not by identity, so template
// edits affect existing graphs on their next step.
type ComponentTemplate struct {
	Type          NodeType       `json:"type"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	InputHandles  []Handle       `json:"inputHandles"`
	OutputHandles []Handle       `json:"outputHandles"`
	DefaultData   map[string]any `json:"defaultData"`
	IsActive      bool           `json:"isActive"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}
