package model

import "time"

// FlowVersion is an immutable snapshot of a flow's graph and settings.
// VersionNumber increases gap-free per flow.
type FlowVersion struct {
	Id            string         `json:"id"`
	FlowId        string         `json:"flowId"`
	VersionNumber int            `json:"versionNumber"`
	Graph         FlowGraph      `json:"graph"`
	Settings      map[string]any `json:"settings"`
	Notes         string         `json:"notes,omitempty"`
	CreatedBy     string         `json:"createdBy"`
	CreatedAt     time.Time      `json:"createdAt"`
}
