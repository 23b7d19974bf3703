package interpreter

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xkayo32/pydevbot/analytics"
	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/registry"
	"github.com/xkayo32/pydevbot/util"
	"go.uber.org/zap"
)

// WebhookDispatcher accepts outbound events without blocking on the
// network; the session lock is never held across a round-trip.
type WebhookDispatcher interface {
	Enqueue(event *model.WebhookEvent) error
}

// Interpreter advances a session through its captured graph generation
// one node at a time until the session waits, completes or fails.
type Interpreter struct {
	registry   registry.Registry
	dispatcher WebhookDispatcher
	maxSteps   int
}

// Result carries everything one advance produced; the caller persists
// it atomically with the session.
type Result struct {
	Logs     []model.ExecutionLogEntry
	Messages []model.Message
}

func New(reg registry.Registry, dispatcher WebhookDispatcher, maxSteps int) *Interpreter {
	if maxSteps <= 0 {
		maxSteps = 100
	}
	return &Interpreter{
		registry:   reg,
		dispatcher: dispatcher,
		maxSteps:   maxSteps,
	}
}

// Run walks the graph from the session's current node while the
// session stays active.
func (i *Interpreter) Run(session *model.Session, g *model.FlowGraph) *Result {
	res := &Result{}
	i.run(session, g, res)
	return res
}

// Resume consumes exactly one inbound value for a waiting session and
// continues walking.
func (i *Interpreter) Resume(session *model.Session, g *model.FlowGraph, rawValue string) *Result {
	res := &Result{}
	node := g.GetNode(session.CurrentNodeId)
	if node == nil {
		i.fail(session, g, res, session.CurrentNodeId, "", fmt.Errorf("current node %s not in graph", session.CurrentNodeId))
		return res
	}
	switch node.Type {
	case model.NODE_TYPE_INPUT:
		varName, _ := node.Data["variable"].(string)
		if varName == "" {
			i.fail(session, g, res, node.Id, node.Type, fmt.Errorf("input node %s has no variable name", node.Id))
			return res
		}
		session.Variables[varName] = rawValue
		res.Messages = append(res.Messages, newMessage(session, node.Id, model.MESSAGE_USER, rawValue))
		session.MessageCount++
	case model.NODE_TYPE_INTEGRATION:
		varName, _ := node.Data["responseVariable"].(string)
		if varName == "" {
			varName = "response"
		}
		session.Variables[varName] = rawValue
	default:
		i.fail(session, g, res, node.Id, node.Type, fmt.Errorf("node type %s can not consume input", node.Type))
		return res
	}
	session.Status = model.SESSION_ACTIVE
	nextId, walkedOff, err := i.nextNode(g, node, model.DEFAULT_HANDLE)
	if err != nil {
		i.fail(session, g, res, node.Id, node.Type, err)
		return res
	}
	if walkedOff {
		i.complete(session)
		return res
	}
	session.CurrentNodeId = nextId
	i.run(session, g, res)
	return res
}

func (i *Interpreter) run(session *model.Session, g *model.FlowGraph, res *Result) {
	steps := 0
	for session.Status == model.SESSION_ACTIVE {
		if steps >= i.maxSteps {
			i.fail(session, g, res, session.CurrentNodeId, "", fmt.Errorf("step limit %d exceeded, flow has a cycle without input", i.maxSteps))
			return
		}
		steps++

		node := g.GetNode(session.CurrentNodeId)
		if session.CurrentNodeId == "" {
			node = g.StartNode()
		}
		if node == nil {
			i.fail(session, g, res, session.CurrentNodeId, "", fmt.Errorf("current node %s not in graph", session.CurrentNodeId))
			return
		}
		session.CurrentNodeId = node.Id

		if _, err := i.registry.Resolve(node.Type); err != nil {
			i.fail(session, g, res, node.Id, node.Type, err)
			return
		}

		started := time.Now()
		outcome, err := i.executeNode(session, g, res, node)
		elapsed := time.Since(started).Milliseconds()
		if err != nil {
			i.failTimed(session, res, node, started, elapsed, err)
			return
		}

		res.Logs = append(res.Logs, model.ExecutionLogEntry{
			Id:              uuid.New().String(),
			SessionId:       session.Id,
			NodeId:          node.Id,
			ComponentType:   node.Type,
			Status:          model.LOG_COMPLETED,
			InputData:       node.Data,
			OutputData:      outcome.output,
			ExecutionTimeMs: elapsed,
			StartedAt:       started,
			CompletedAt:     time.Now(),
		})
		analytics.RecordNodeSuccess(session.FlowId, session.Id, node.Id, string(node.Type), outcome.output)

		if outcome.complete {
			i.complete(session)
			return
		}
		if outcome.wait {
			session.Status = model.SESSION_WAITING
			return
		}

		nextId, walkedOff, err := i.nextNode(g, node, outcome.handle)
		if err != nil {
			i.fail(session, g, res, node.Id, node.Type, err)
			return
		}
		if walkedOff {
			i.complete(session)
			return
		}
		session.CurrentNodeId = nextId
	}
}

type nodeOutcome struct {
	handle   string
	output   map[string]any
	wait     bool
	complete bool
}

func (i *Interpreter) executeNode(session *model.Session, g *model.FlowGraph, res *Result, node *model.Node) (nodeOutcome, error) {
	switch node.Type {
	case model.NODE_TYPE_START:
		return nodeOutcome{handle: model.DEFAULT_HANDLE}, nil

	case model.NODE_TYPE_MESSAGE:
		content, _ := node.Data["content"].(string)
		rendered := util.ResolveString(session.Variables, content)
		res.Messages = append(res.Messages, newMessage(session, node.Id, model.MESSAGE_BOT, rendered))
		session.MessageCount++
		return nodeOutcome{handle: model.DEFAULT_HANDLE, output: map[string]any{"content": rendered}}, nil

	case model.NODE_TYPE_INPUT:
		if varName, _ := node.Data["variable"].(string); varName == "" {
			return nodeOutcome{}, fmt.Errorf("input node %s has no variable name", node.Id)
		}
		if prompt, _ := node.Data["prompt"].(string); prompt != "" {
			rendered := util.ResolveString(session.Variables, prompt)
			res.Messages = append(res.Messages, newMessage(session, node.Id, model.MESSAGE_BOT, rendered))
			session.MessageCount++
		}
		return nodeOutcome{wait: true}, nil

	case model.NODE_TYPE_CONDITION:
		branch, err := evaluateCondition(node, session.Variables)
		if err != nil {
			return nodeOutcome{}, err
		}
		return nodeOutcome{handle: branch, output: map[string]any{"branch": branch}}, nil

	case model.NODE_TYPE_INTEGRATION:
		event, wait, err := i.buildWebhookEvent(session, node)
		if err != nil {
			return nodeOutcome{}, err
		}
		// fire and forget: delivery failures are isolated to the event
		// and never abort interpretation
		if err := i.dispatcher.Enqueue(event); err != nil {
			logger.Error("error enqueueing webhook event", zap.String("session", session.Id), zap.String("node", node.Id), zap.Error(err))
		}
		return nodeOutcome{handle: model.DEFAULT_HANDLE, wait: wait, output: map[string]any{"webhookEventId": event.Id}}, nil

	case model.NODE_TYPE_END:
		return nodeOutcome{complete: true}, nil
	}
	return nodeOutcome{}, fmt.Errorf("no behavior for component type %s", node.Type)
}

func (i *Interpreter) buildWebhookEvent(session *model.Session, node *model.Node) (*model.WebhookEvent, bool, error) {
	rawUrl, _ := node.Data["url"].(string)
	if rawUrl == "" {
		return nil, false, fmt.Errorf("integration node %s has no url", node.Id)
	}
	method, _ := node.Data["method"].(string)
	if method == "" {
		method = "POST"
	}
	eventType, _ := node.Data["eventType"].(string)
	if eventType == "" {
		eventType = "integration"
	}
	headers := make(map[string]string)
	if raw, ok := node.Data["headers"].(map[string]any); ok {
		for k, v := range raw {
			headers[k] = util.ResolveString(session.Variables, fmt.Sprintf("%v", v))
		}
	}
	var payload map[string]any
	if raw, ok := node.Data["payload"].(map[string]any); ok {
		payload = util.ResolveParams(session.Variables, raw)
	} else {
		payload = map[string]any{"sessionId": session.Id, "variables": session.Variables}
	}
	maxRetries := 0
	if raw, ok := node.Data["maxRetries"].(float64); ok {
		maxRetries = int(raw)
	}
	wait, _ := node.Data["waitForResponse"].(bool)
	event := &model.WebhookEvent{
		Id:         uuid.New().String(),
		SessionId:  session.Id,
		EventType:  eventType,
		Url:        util.ResolveString(session.Variables, rawUrl),
		Method:     method,
		Headers:    headers,
		Payload:    payload,
		Status:     model.WEBHOOK_PENDING,
		MaxRetries: maxRetries,
		CreatedAt:  time.Now(),
	}
	return event, wait, nil
}

// nextNode picks the unique edge matching (source, handle); the
// default handle is the fallback for non-branching selections.
func (i *Interpreter) nextNode(g *model.FlowGraph, node *model.Node, handle string) (string, bool, error) {
	edges := g.OutgoingEdges(node.Id)
	if len(edges) == 0 {
		return "", true, nil
	}
	for _, e := range edges {
		if e.SourceHandle == handle || (e.SourceHandle == "" && handle == model.DEFAULT_HANDLE) {
			return e.Target, false, nil
		}
	}
	if handle != model.DEFAULT_HANDLE {
		for _, e := range edges {
			if e.SourceHandle == model.DEFAULT_HANDLE || e.SourceHandle == "" {
				return e.Target, false, nil
			}
		}
	}
	return "", false, fmt.Errorf("node %s has no outgoing edge for handle %s", node.Id, handle)
}

func (i *Interpreter) complete(session *model.Session) {
	now := time.Now()
	session.Status = model.SESSION_COMPLETED
	session.EndTime = &now
	logger.Info("session completed", zap.String("flow", session.FlowId), zap.String("session", session.Id))
}

func (i *Interpreter) fail(session *model.Session, g *model.FlowGraph, res *Result, nodeId string, nodeType model.NodeType, cause error) {
	now := time.Now()
	res.Logs = append(res.Logs, model.ExecutionLogEntry{
		Id:            uuid.New().String(),
		SessionId:     session.Id,
		NodeId:        nodeId,
		ComponentType: nodeType,
		Status:        model.LOG_FAILED,
		ErrorMessage:  cause.Error(),
		StartedAt:     now,
		CompletedAt:   now,
	})
	session.Status = model.SESSION_ERROR
	session.EndTime = &now
	analytics.RecordNodeFailure(session.FlowId, session.Id, nodeId, string(nodeType), cause.Error())
	logger.Error("session failed", zap.String("flow", session.FlowId), zap.String("session", session.Id), zap.String("node", nodeId), zap.Error(cause))
}

func (i *Interpreter) failTimed(session *model.Session, res *Result, node *model.Node, started time.Time, elapsed int64, cause error) {
	now := time.Now()
	res.Logs = append(res.Logs, model.ExecutionLogEntry{
		Id:              uuid.New().String(),
		SessionId:       session.Id,
		NodeId:          node.Id,
		ComponentType:   node.Type,
		Status:          model.LOG_FAILED,
		InputData:       node.Data,
		ErrorMessage:    cause.Error(),
		ExecutionTimeMs: elapsed,
		StartedAt:       started,
		CompletedAt:     now,
	})
	session.Status = model.SESSION_ERROR
	session.EndTime = &now
	analytics.RecordNodeFailure(session.FlowId, session.Id, node.Id, string(node.Type), cause.Error())
	logger.Error("session failed", zap.String("flow", session.FlowId), zap.String("session", session.Id), zap.String("node", node.Id), zap.Error(cause))
}

func newMessage(session *model.Session, nodeId string, msgType model.MessageType, content string) model.Message {
	return model.Message{
		Id:        uuid.New().String(),
		SessionId: session.Id,
		NodeId:    nodeId,
		Type:      msgType,
		Content:   content,
		SentAt:    time.Now(),
	}
}
