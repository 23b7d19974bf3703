package interpreter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence/inmem"
	"github.com/xkayo32/pydevbot/registry"
)

type fakeDispatcher struct {
	events []*model.WebhookEvent
}

func (d *fakeDispatcher) Enqueue(event *model.WebhookEvent) error {
	d.events = append(d.events, event)
	return nil
}

func newTestInterpreter(t *testing.T) (*Interpreter, *fakeDispatcher) {
	storage := inmem.NewStorage()
	for _, tpl := range registry.BuiltinTemplates() {
		require.NoError(t, storage.SaveTemplate(tpl))
	}
	dispatcher := &fakeDispatcher{}
	return New(registry.NewRegistry(storage), dispatcher, 50), dispatcher
}

func newTestSession() *model.Session {
	now := time.Now()
	return &model.Session{
		Id:           "s1",
		FlowId:       "f1",
		Generation:   1,
		Variables:    map[string]any{},
		Status:       model.SESSION_ACTIVE,
		StartTime:    now,
		LastActivity: now,
	}
}

func TestInterpreterRun(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"walks to input and waits":        testWalkToInput,
		"single start node completes":     testSingleStartCompletes,
		"condition routes by branch":      testConditionRouting,
		"condition falls back to default": testConditionDefaultFallback,
		"integration enqueues webhook":    testIntegrationEnqueues,
		"cycle without input fails":       testCycleFails,
		"end node completes":              testEndCompletes,
	} {
		t.Run(scenario, fn)
	}
}

func testWalkToInput(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	session := newTestSession()
	g := &model.FlowGraph{
		Nodes: []model.Node{
			{Id: "n1", Type: model.NODE_TYPE_START},
			{Id: "n2", Type: model.NODE_TYPE_MESSAGE, Data: map[string]any{"content": "welcome"}},
			{Id: "n3", Type: model.NODE_TYPE_INPUT, Data: map[string]any{"variable": "name", "prompt": "your name?"}},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "n1", Target: "n2"},
			{Id: "e2", Source: "n2", Target: "n3"},
		},
	}
	res := interp.Run(session, g)
	require.Equal(t, model.SESSION_WAITING, session.Status)
	require.Equal(t, "n3", session.CurrentNodeId)
	require.Len(t, res.Messages, 2)
	require.Equal(t, "welcome", res.Messages[0].Content)
	require.Equal(t, "your name?", res.Messages[1].Content)
	require.Equal(t, 2, session.MessageCount)
	require.Len(t, res.Logs, 3)
	for _, entry := range res.Logs {
		require.Equal(t, model.LOG_COMPLETED, entry.Status)
	}
}

func testSingleStartCompletes(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	session := newTestSession()
	g := &model.FlowGraph{
		Nodes: []model.Node{{Id: "n1", Type: model.NODE_TYPE_START}},
	}
	res := interp.Run(session, g)
	require.Equal(t, model.SESSION_COMPLETED, session.Status)
	require.NotNil(t, session.EndTime)
	require.Len(t, res.Logs, 1)
}

func testConditionRouting(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	session := newTestSession()
	session.Variables["vip"] = true
	g := &model.FlowGraph{
		Nodes: []model.Node{
			{Id: "n1", Type: model.NODE_TYPE_START},
			{Id: "n2", Type: model.NODE_TYPE_CONDITION, Data: map[string]any{"expression": "{vip}"}},
			{Id: "n3", Type: model.NODE_TYPE_MESSAGE, Data: map[string]any{"content": "vip lane"}},
			{Id: "n4", Type: model.NODE_TYPE_MESSAGE, Data: map[string]any{"content": "regular lane"}},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "n1", Target: "n2"},
			{Id: "e2", Source: "n2", SourceHandle: "true", Target: "n3"},
			{Id: "e3", Source: "n2", SourceHandle: "false", Target: "n4"},
		},
	}
	res := interp.Run(session, g)
	require.Equal(t, model.SESSION_COMPLETED, session.Status)
	require.Len(t, res.Messages, 1)
	require.Equal(t, "vip lane", res.Messages[0].Content)
}

func testConditionDefaultFallback(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	session := newTestSession()
	session.Variables["plan"] = "enterprise"
	g := &model.FlowGraph{
		Nodes: []model.Node{
			{Id: "n1", Type: model.NODE_TYPE_START},
			{Id: "n2", Type: model.NODE_TYPE_CONDITION, Data: map[string]any{"expression": "{plan}"}},
			{Id: "n3", Type: model.NODE_TYPE_MESSAGE, Data: map[string]any{"content": "premium"}},
			{Id: "n4", Type: model.NODE_TYPE_MESSAGE, Data: map[string]any{"content": "everyone else"}},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "n1", Target: "n2"},
			{Id: "e2", Source: "n2", SourceHandle: "premium", Target: "n3"},
			{Id: "e3", Source: "n2", SourceHandle: "default", Target: "n4"},
		},
	}
	res := interp.Run(session, g)
	require.Equal(t, model.SESSION_COMPLETED, session.Status)
	require.Len(t, res.Messages, 1)
	require.Equal(t, "everyone else", res.Messages[0].Content)
}

func testIntegrationEnqueues(t *testing.T) {
	interp, dispatcher := newTestInterpreter(t)
	session := newTestSession()
	session.Variables["name"] = "ana"
	g := &model.FlowGraph{
		Nodes: []model.Node{
			{Id: "n1", Type: model.NODE_TYPE_START},
			{Id: "n2", Type: model.NODE_TYPE_INTEGRATION, Data: map[string]any{
				"url":     "http://crm.local/hook",
				"payload": map[string]any{"who": "{name}"},
			}},
			{Id: "n3", Type: model.NODE_TYPE_END},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "n1", Target: "n2"},
			{Id: "e2", Source: "n2", Target: "n3"},
		},
	}
	res := interp.Run(session, g)
	require.Equal(t, model.SESSION_COMPLETED, session.Status)
	require.Len(t, dispatcher.events, 1)
	event := dispatcher.events[0]
	require.Equal(t, "http://crm.local/hook", event.Url)
	require.Equal(t, "POST", event.Method)
	require.Equal(t, "ana", event.Payload["who"])
	require.Equal(t, model.WEBHOOK_PENDING, event.Status)
	require.Len(t, res.Logs, 3)
	require.Equal(t, event.Id, res.Logs[1].OutputData["webhookEventId"])
}

func testCycleFails(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	session := newTestSession()
	g := &model.FlowGraph{
		Nodes: []model.Node{
			{Id: "n1", Type: model.NODE_TYPE_START},
			{Id: "n2", Type: model.NODE_TYPE_MESSAGE, Data: map[string]any{"content": "again"}},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "n1", Target: "n2"},
			{Id: "e2", Source: "n2", Target: "n2"},
		},
	}
	res := interp.Run(session, g)
	require.Equal(t, model.SESSION_ERROR, session.Status)
	require.NotNil(t, session.EndTime)
	last := res.Logs[len(res.Logs)-1]
	require.Equal(t, model.LOG_FAILED, last.Status)
}

func testEndCompletes(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	session := newTestSession()
	g := &model.FlowGraph{
		Nodes: []model.Node{
			{Id: "n1", Type: model.NODE_TYPE_START},
			{Id: "n2", Type: model.NODE_TYPE_END},
		},
		Edges: []model.Edge{{Id: "e1", Source: "n1", Target: "n2"}},
	}
	interp.Run(session, g)
	require.Equal(t, model.SESSION_COMPLETED, session.Status)
}

func TestInterpreterResume(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	session := newTestSession()
	g := &model.FlowGraph{
		Nodes: []model.Node{
			{Id: "n1", Type: model.NODE_TYPE_START},
			{Id: "n2", Type: model.NODE_TYPE_INPUT, Data: map[string]any{"variable": "name", "prompt": "name?"}},
			{Id: "n3", Type: model.NODE_TYPE_MESSAGE, Data: map[string]any{"content": "hi {name}"}},
			{Id: "n4", Type: model.NODE_TYPE_END},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "n1", Target: "n2"},
			{Id: "e2", Source: "n2", Target: "n3"},
			{Id: "e3", Source: "n3", Target: "n4"},
		},
	}
	interp.Run(session, g)
	require.Equal(t, model.SESSION_WAITING, session.Status)

	res := interp.Resume(session, g, "ana")
	require.Equal(t, model.SESSION_COMPLETED, session.Status)
	require.Equal(t, "ana", session.Variables["name"])
	require.Len(t, res.Messages, 2)
	require.Equal(t, model.MESSAGE_USER, res.Messages[0].Type)
	require.Equal(t, "ana", res.Messages[0].Content)
	require.Equal(t, "hi ana", res.Messages[1].Content)
}

func TestResumeOnNonInputNode(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	session := newTestSession()
	session.CurrentNodeId = "n1"
	session.Status = model.SESSION_WAITING
	g := &model.FlowGraph{
		Nodes: []model.Node{{Id: "n1", Type: model.NODE_TYPE_MESSAGE, Data: map[string]any{"content": "x"}}},
	}
	res := interp.Resume(session, g, "value")
	require.Equal(t, model.SESSION_ERROR, session.Status)
	require.Len(t, res.Logs, 1)
	require.Equal(t, model.LOG_FAILED, res.Logs[0].Status)
}
