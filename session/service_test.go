package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	api "github.com/xkayo32/pydevbot/api/v1"
	"github.com/xkayo32/pydevbot/interpreter"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence/inmem"
	"github.com/xkayo32/pydevbot/registry"
)

type nopDispatcher struct{}

func (nopDispatcher) Enqueue(*model.WebhookEvent) error { return nil }

func newTestService(t *testing.T) (*Service, *inmem.Storage) {
	storage := inmem.NewStorage()
	for _, tpl := range registry.BuiltinTemplates() {
		require.NoError(t, storage.SaveTemplate(tpl))
	}
	interp := interpreter.New(registry.NewRegistry(storage), nopDispatcher{}, 50)
	return NewService(storage, storage, interp), storage
}

func seedGreetingFlow(t *testing.T, storage *inmem.Storage) {
	flow := &model.Flow{
		Id:         "f1",
		Name:       "greeting",
		IsActive:   true,
		Generation: 1,
		Graph: model.FlowGraph{
			Nodes: []model.Node{
				{Id: "n1", Type: model.NODE_TYPE_START},
				{Id: "n2", Type: model.NODE_TYPE_MESSAGE, Data: map[string]any{"content": "hi"}},
				{Id: "n3", Type: model.NODE_TYPE_INPUT, Data: map[string]any{"variable": "name"}},
				{Id: "n4", Type: model.NODE_TYPE_MESSAGE, Data: map[string]any{"content": "hi {name}"}},
				{Id: "n5", Type: model.NODE_TYPE_END},
			},
			Edges: []model.Edge{
				{Id: "e1", Source: "n1", Target: "n2"},
				{Id: "e2", Source: "n2", Target: "n3"},
				{Id: "e3", Source: "n3", Target: "n4"},
				{Id: "e4", Source: "n4", Target: "n5"},
			},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, storage.SaveFlow(flow))
}

func TestSessionService(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, svc *Service, storage *inmem.Storage){
		"full conversation walk":            testFullConversation,
		"input on non waiting session":      testInputInvalidState,
		"session pins its graph generation": testGenerationPinned,
		"inactive flow rejected":            testInactiveFlow,
		"flow without start rejected":       testNoStartNode,
		"abandon terminal is a no-op":       testAbandonTerminal,
		"abandon waiting session":           testAbandonWaiting,
		"concurrent submits conflict":       testConcurrentSubmits,
		"list filters by status":            testListFilter,
	} {
		t.Run(scenario, func(t *testing.T) {
			svc, storage := newTestService(t)
			fn(t, svc, storage)
		})
	}
}

func testFullConversation(t *testing.T, svc *Service, storage *inmem.Storage) {
	seedGreetingFlow(t, storage)

	session, messages, err := svc.Start(model.StartSessionRequest{FlowId: "f1", UserId: "u1"})
	require.NoError(t, err)
	require.Equal(t, model.SESSION_WAITING, session.Status)
	require.Equal(t, 1, session.Generation)
	require.Len(t, messages, 1)
	require.Equal(t, "hi", messages[0].Content)

	session, messages, err = svc.SubmitInput(session.Id, "ana")
	require.NoError(t, err)
	require.Equal(t, model.SESSION_COMPLETED, session.Status)
	require.NotNil(t, session.EndTime)
	require.Equal(t, "ana", session.Variables["name"])
	require.Len(t, messages, 2)
	require.Equal(t, "ana", messages[0].Content)
	require.Equal(t, "hi ana", messages[1].Content)

	detail, err := svc.Get(session.Id)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 3)
	require.Equal(t, 3, detail.Session.MessageCount)
	for _, entry := range detail.Logs {
		require.Equal(t, model.LOG_COMPLETED, entry.Status)
	}
}

func testInputInvalidState(t *testing.T, svc *Service, storage *inmem.Storage) {
	seedGreetingFlow(t, storage)
	session, _, err := svc.Start(model.StartSessionRequest{FlowId: "f1"})
	require.NoError(t, err)

	_, _, err = svc.SubmitInput(session.Id, "first")
	require.NoError(t, err)

	_, _, err = svc.SubmitInput(session.Id, "second")
	require.Error(t, err)
	require.True(t, api.IsInvalidSessionState(err))
}

func testGenerationPinned(t *testing.T, svc *Service, storage *inmem.Storage) {
	seedGreetingFlow(t, storage)
	session, _, err := svc.Start(model.StartSessionRequest{FlowId: "f1"})
	require.NoError(t, err)
	require.Equal(t, model.SESSION_WAITING, session.Status)

	// the flow is replaced under the running session
	flow, err := storage.GetFlow("f1")
	require.NoError(t, err)
	flow.Graph = model.FlowGraph{
		Nodes: []model.Node{{Id: "x1", Type: model.NODE_TYPE_START}},
	}
	flow.Generation = 2
	require.NoError(t, storage.SaveFlow(flow))

	session, messages, err := svc.SubmitInput(session.Id, "ana")
	require.NoError(t, err)
	require.Equal(t, model.SESSION_COMPLETED, session.Status)
	require.Equal(t, 1, session.Generation)
	require.Equal(t, "hi ana", messages[1].Content)
}

func testInactiveFlow(t *testing.T, svc *Service, storage *inmem.Storage) {
	seedGreetingFlow(t, storage)
	flow, err := storage.GetFlow("f1")
	require.NoError(t, err)
	flow.IsActive = false
	require.NoError(t, storage.SaveFlow(flow))

	_, _, err = svc.Start(model.StartSessionRequest{FlowId: "f1"})
	require.Error(t, err)
}

func testNoStartNode(t *testing.T, svc *Service, storage *inmem.Storage) {
	flow := &model.Flow{
		Id:         "f2",
		IsActive:   true,
		Generation: 1,
		Graph: model.FlowGraph{
			Nodes: []model.Node{{Id: "n1", Type: model.NODE_TYPE_END}},
		},
	}
	require.NoError(t, storage.SaveFlow(flow))

	_, _, err := svc.Start(model.StartSessionRequest{FlowId: "f2"})
	require.Error(t, err)
}

func testAbandonTerminal(t *testing.T, svc *Service, storage *inmem.Storage) {
	seedGreetingFlow(t, storage)
	session, _, err := svc.Start(model.StartSessionRequest{FlowId: "f1"})
	require.NoError(t, err)
	_, _, err = svc.SubmitInput(session.Id, "ana")
	require.NoError(t, err)

	abandoned, err := svc.Abandon(session.Id)
	require.NoError(t, err)
	require.Equal(t, model.SESSION_COMPLETED, abandoned.Status)
}

func testAbandonWaiting(t *testing.T, svc *Service, storage *inmem.Storage) {
	seedGreetingFlow(t, storage)
	session, _, err := svc.Start(model.StartSessionRequest{FlowId: "f1"})
	require.NoError(t, err)

	abandoned, err := svc.Abandon(session.Id)
	require.NoError(t, err)
	require.Equal(t, model.SESSION_ABANDONED, abandoned.Status)
	require.NotNil(t, abandoned.EndTime)

	_, _, err = svc.SubmitInput(session.Id, "late")
	require.Error(t, err)
	require.True(t, api.IsInvalidSessionState(err))
}

func testConcurrentSubmits(t *testing.T, svc *Service, storage *inmem.Storage) {
	seedGreetingFlow(t, storage)
	session, _, err := svc.Start(model.StartSessionRequest{FlowId: "f1"})
	require.NoError(t, err)

	release, ok := svc.locks.TryLock(session.Id)
	require.True(t, ok)
	defer release()

	_, _, err = svc.SubmitInput(session.Id, "ana")
	require.Error(t, err)
	require.True(t, api.IsConflict(err))
}

func testListFilter(t *testing.T, svc *Service, storage *inmem.Storage) {
	seedGreetingFlow(t, storage)
	first, _, err := svc.Start(model.StartSessionRequest{FlowId: "f1", UserId: "u1"})
	require.NoError(t, err)
	_, _, err = svc.Start(model.StartSessionRequest{FlowId: "f1", UserId: "u2"})
	require.NoError(t, err)
	_, _, err = svc.SubmitInput(first.Id, "ana")
	require.NoError(t, err)

	waiting, err := svc.List(model.SessionFilter{Status: model.SESSION_WAITING})
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	require.Equal(t, "u2", waiting[0].UserId)

	completed, err := svc.List(model.SessionFilter{FlowId: "f1", Status: model.SESSION_COMPLETED})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, first.Id, completed[0].Id)
}
