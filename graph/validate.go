package graph

import (
	"fmt"

	api "github.com/xkayo32/pydevbot/api/v1"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/registry"
)

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	NodeId  string `json:"nodeId,omitempty"`
	EdgeId  string `json:"edgeId,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Message
}

const CODE_NO_START = "no_start_node"
const CODE_MULTIPLE_START = "multiple_start_nodes"
const CODE_DANGLING_EDGE = "dangling_edge"
const CODE_UNKNOWN_TYPE = "unknown_component_type"
const CODE_UNCONNECTED_HANDLE = "unconnected_required_handle"

// Validate collects every structural violation in the graph; rules do
// not short-circuit. An empty result means the graph is publishable.
func Validate(g *model.FlowGraph, reg registry.Registry) []ValidationError {
	var errs []ValidationError

	startCount := 0
	for _, n := range g.Nodes {
		if n.Type == model.NODE_TYPE_START {
			startCount++
		}
	}
	if startCount == 0 {
		errs = append(errs, ValidationError{
			Code:    CODE_NO_START,
			Message: "flow must have a start node",
		})
	} else if startCount > 1 {
		errs = append(errs, ValidationError{
			Code:    CODE_MULTIPLE_START,
			Message: fmt.Sprintf("flow must have exactly one start node, found %d", startCount),
		})
	}

	nodeIds := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		nodeIds[n.Id] = true
	}
	// one violation per dangling endpoint
	for _, e := range g.Edges {
		if !nodeIds[e.Source] {
			errs = append(errs, ValidationError{
				Code:    CODE_DANGLING_EDGE,
				Message: fmt.Sprintf("edge %s references missing source node %s", e.Id, e.Source),
				EdgeId:  e.Id,
			})
		}
		if !nodeIds[e.Target] {
			errs = append(errs, ValidationError{
				Code:    CODE_DANGLING_EDGE,
				Message: fmt.Sprintf("edge %s references missing target node %s", e.Id, e.Target),
				EdgeId:  e.Id,
			})
		}
	}

	for _, n := range g.Nodes {
		tpl, err := reg.Resolve(n.Type)
		if err != nil {
			if api.IsTemplateNotFound(err) {
				errs = append(errs, ValidationError{
					Code:    CODE_UNKNOWN_TYPE,
					Message: fmt.Sprintf("node %s has unregistered component type %s", n.Id, n.Type),
					NodeId:  n.Id,
				})
			}
			continue
		}
		if n.Type == model.NODE_TYPE_START {
			continue
		}
		incoming := g.IncomingEdges(n.Id)
		for _, h := range tpl.InputHandles {
			if !h.Required {
				continue
			}
			if !handleConnected(incoming, h.Name) {
				errs = append(errs, ValidationError{
					Code:    CODE_UNCONNECTED_HANDLE,
					Message: fmt.Sprintf("node %s has no incoming edge for required handle %s", n.Id, h.Name),
					NodeId:  n.Id,
				})
			}
		}
	}
	return errs
}

func handleConnected(incoming []model.Edge, handle string) bool {
	for _, e := range incoming {
		// an edge with an empty target handle attaches to the node's
		// single implicit input
		if e.TargetHandle == handle || e.TargetHandle == "" {
			return true
		}
	}
	return false
}
