package model

import (
	"encoding/json"
	"time"
)

type NodeType string

const NODE_TYPE_START NodeType = "start"
const NODE_TYPE_MESSAGE NodeType = "message"
const NODE_TYPE_INPUT NodeType = "input"
const NODE_TYPE_CONDITION NodeType = "condition"
const NODE_TYPE_INTEGRATION NodeType = "integration"
const NODE_TYPE_END NodeType = "end"

// DEFAULT_HANDLE is the output handle assumed when a node type offers
// no branching.
const DEFAULT_HANDLE string = "default"

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Node struct {
	Id       string         `json:"id"`
	Type     NodeType       `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

type Edge struct {
	Id           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// FlowGraph is the node/edge graph a session walks. It is owned by
// exactly one Flow and replaced wholesale on edit or restore.
type FlowGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (g *FlowGraph) GetNode(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].Id == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

func (g *FlowGraph) StartNode() *Node {
	for i := range g.Nodes {
		if g.Nodes[i].Type == NODE_TYPE_START {
			return &g.Nodes[i]
		}
	}
	return nil
}

func (g *FlowGraph) OutgoingEdges(nodeId string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == nodeId {
			out = append(out, e)
		}
	}
	return out
}

func (g *FlowGraph) IncomingEdges(nodeId string) []Edge {
	var in []Edge
	for _, e := range g.Edges {
		if e.Target == nodeId {
			in = append(in, e)
		}
	}
	return in
}

// Copy returns a deep copy with no structure shared with the receiver.
func (g *FlowGraph) Copy() *FlowGraph {
	data, err := json.Marshal(g)
	if err != nil {
		return &FlowGraph{}
	}
	var out FlowGraph
	if err := json.Unmarshal(data, &out); err != nil {
		return &FlowGraph{}
	}
	return &out
}

// Flow is a conversational flow definition. Generation increases on
// every wholesale graph replacement so that running sessions keep
// walking the generation they started against.
type Flow struct {
	Id          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	IsMainFlow  bool           `json:"isMainFlow"`
	IsActive    bool           `json:"isActive"`
	Generation  int            `json:"generation"`
	Graph       FlowGraph      `json:"graph"`
	Settings    map[string]any `json:"settings"`
	CreatedBy   string         `json:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func CopySettings(settings map[string]any) map[string]any {
	if settings == nil {
		return map[string]any{}
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return map[string]any{}
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}
