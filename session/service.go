package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	api "github.com/xkayo32/pydevbot/api/v1"
	"github.com/xkayo32/pydevbot/interpreter"
	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/util"
	"go.uber.org/zap"
)

// Service owns the session lifecycle. All mutation goes through a per
// session lock: API paths fail fast with a conflict, the idle reaper
// waits its turn.
type Service struct {
	flows    persistence.FlowStorage
	sessions persistence.SessionStorage
	interp   *interpreter.Interpreter
	locks    *util.KeyedMutex
}

// Detail is the full read model for one session.
type Detail struct {
	Session  *model.Session            `json:"session"`
	Logs     []model.ExecutionLogEntry `json:"executionLog"`
	Messages []model.Message           `json:"messages"`
}

func NewService(flows persistence.FlowStorage, sessions persistence.SessionStorage, interp *interpreter.Interpreter) *Service {
	return &Service{
		flows:    flows,
		sessions: sessions,
		interp:   interp,
		locks:    util.NewKeyedMutex(),
	}
}

// Start creates a session pinned to the flow's current graph generation
// and walks it until it waits for input or reaches a terminal state.
// The returned messages are what the bot said during the walk.
func (s *Service) Start(req model.StartSessionRequest) (*model.Session, []model.Message, error) {
	flow, err := s.flows.GetFlow(req.FlowId)
	if err != nil {
		return nil, nil, err
	}
	if !flow.IsActive {
		return nil, nil, fmt.Errorf("flow %s is not active", flow.Id)
	}
	if flow.Graph.StartNode() == nil {
		return nil, nil, fmt.Errorf("flow %s has no start node", flow.Id)
	}
	graph, _, err := s.flows.GetGeneration(flow.Id, flow.Generation)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now()
	session := &model.Session{
		Id:           uuid.New().String(),
		FlowId:       flow.Id,
		Generation:   flow.Generation,
		UserId:       req.UserId,
		Variables:    model.CopySettings(req.InitialData),
		Status:       model.SESSION_ACTIVE,
		StartTime:    now,
		LastActivity: now,
	}
	logger.Info("session started", zap.String("flow", flow.Id), zap.String("session", session.Id), zap.Int("generation", session.Generation))
	res := s.interp.Run(session, graph)
	session.LastActivity = time.Now()
	if err := s.sessions.SaveSessionStep(session, res.Logs, res.Messages); err != nil {
		return nil, nil, err
	}
	return session, res.Messages, nil
}

// SubmitInput feeds one user value to a waiting session and continues
// the walk. Concurrent calls on the same session fail fast with a
// conflict instead of queueing.
func (s *Service) SubmitInput(sessionId string, value string) (*model.Session, []model.Message, error) {
	release, ok := s.locks.TryLock(sessionId)
	if !ok {
		return nil, nil, api.ConflictError{SessionId: sessionId}
	}
	defer release()

	session, err := s.sessions.GetSession(sessionId)
	if err != nil {
		return nil, nil, err
	}
	if session.Status != model.SESSION_WAITING {
		return nil, nil, api.InvalidSessionStateError{SessionId: sessionId, Status: session.Status}
	}
	graph, _, err := s.flows.GetGeneration(session.FlowId, session.Generation)
	if err != nil {
		return nil, nil, err
	}
	res := s.interp.Resume(session, graph, value)
	session.LastActivity = time.Now()
	if err := s.sessions.SaveSessionStep(session, res.Logs, res.Messages); err != nil {
		return nil, nil, err
	}
	return session, res.Messages, nil
}

// Advance re-drives an active session, e.g. one interrupted between a
// persisted step and the next node. On waiting and terminal sessions it
// is a no-op.
func (s *Service) Advance(sessionId string) (*model.Session, []model.Message, error) {
	release, ok := s.locks.TryLock(sessionId)
	if !ok {
		return nil, nil, api.ConflictError{SessionId: sessionId}
	}
	defer release()

	session, err := s.sessions.GetSession(sessionId)
	if err != nil {
		return nil, nil, err
	}
	if session.Status != model.SESSION_ACTIVE {
		return session, nil, nil
	}
	graph, _, err := s.flows.GetGeneration(session.FlowId, session.Generation)
	if err != nil {
		return nil, nil, err
	}
	res := s.interp.Run(session, graph)
	session.LastActivity = time.Now()
	if err := s.sessions.SaveSessionStep(session, res.Logs, res.Messages); err != nil {
		return nil, nil, err
	}
	return session, res.Messages, nil
}

// Abandon terminates a session that will not continue. Unlike the API
// paths it waits for the lock, so the idle reaper cannot lose to a
// concurrent submit; terminal sessions are left untouched.
func (s *Service) Abandon(sessionId string) (*model.Session, error) {
	release := s.locks.Lock(sessionId)
	defer release()

	session, err := s.sessions.GetSession(sessionId)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return session, nil
	}
	now := time.Now()
	session.Status = model.SESSION_ABANDONED
	session.EndTime = &now
	session.LastActivity = now
	if err := s.sessions.SaveSession(session); err != nil {
		return nil, err
	}
	logger.Info("session abandoned", zap.String("flow", session.FlowId), zap.String("session", sessionId))
	return session, nil
}

func (s *Service) Get(sessionId string) (*Detail, error) {
	session, err := s.sessions.GetSession(sessionId)
	if err != nil {
		return nil, err
	}
	logs, err := s.sessions.GetExecutionLog(sessionId)
	if err != nil {
		return nil, err
	}
	messages, err := s.sessions.GetMessages(sessionId)
	if err != nil {
		return nil, err
	}
	return &Detail{Session: session, Logs: logs, Messages: messages}, nil
}

func (s *Service) List(filter model.SessionFilter) ([]*model.Session, error) {
	return s.sessions.ListSessions(filter)
}
