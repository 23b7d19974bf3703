package inmem

import (
	"sort"
	"sync"
	"time"

	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/util"
)

// Storage keeps everything in process memory behind one mutex. It backs
// tests and single node installs that do not want redis.
type Storage struct {
	mu sync.Mutex

	flows       map[string]*model.Flow
	generations map[string]map[int][]byte
	templates   map[model.NodeType]model.ComponentTemplate
	sessions    map[string]*model.Session
	logs        map[string][]model.ExecutionLogEntry
	messages    map[string][]model.Message
	versions    map[string]map[int]*model.FlowVersion
	events      map[string]*model.WebhookEvent
	claims      map[string]time.Time
	due         map[string]time.Time

	flowEncDec    util.EncoderDecoder[flowGeneration]
	sessionEncDec util.EncoderDecoder[model.Session]
	eventEncDec   util.EncoderDecoder[model.WebhookEvent]
	versionEncDec util.EncoderDecoder[model.FlowVersion]
}

type flowGeneration struct {
	Graph    model.FlowGraph `json:"graph"`
	Settings map[string]any  `json:"settings"`
}

var _ persistence.FlowStorage = new(Storage)
var _ persistence.TemplateStorage = new(Storage)
var _ persistence.SessionStorage = new(Storage)
var _ persistence.VersionStorage = new(Storage)
var _ persistence.WebhookStorage = new(Storage)

const claimTtl = 30 * time.Second

func NewStorage() *Storage {
	return &Storage{
		flows:         make(map[string]*model.Flow),
		generations:   make(map[string]map[int][]byte),
		templates:     make(map[model.NodeType]model.ComponentTemplate),
		sessions:      make(map[string]*model.Session),
		logs:          make(map[string][]model.ExecutionLogEntry),
		messages:      make(map[string][]model.Message),
		versions:      make(map[string]map[int]*model.FlowVersion),
		events:        make(map[string]*model.WebhookEvent),
		claims:        make(map[string]time.Time),
		due:           make(map[string]time.Time),
		flowEncDec:    util.NewJsonEncoderDecoder[flowGeneration](),
		sessionEncDec: util.NewJsonEncoderDecoder[model.Session](),
		eventEncDec:   util.NewJsonEncoderDecoder[model.WebhookEvent](),
		versionEncDec: util.NewJsonEncoderDecoder[model.FlowVersion](),
	}
}

func (s *Storage) SaveFlow(flow *model.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.flowEncDec.Encode(flowGeneration{Graph: flow.Graph, Settings: flow.Settings})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	cp := *flow
	s.flows[flow.Id] = &cp
	gens, ok := s.generations[flow.Id]
	if !ok {
		gens = make(map[int][]byte)
		s.generations[flow.Id] = gens
	}
	gens[flow.Generation] = data
	return nil
}

func (s *Storage) GetFlow(id string) (*model.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow, ok := s.flows[id]
	if !ok {
		return nil, persistence.NotFoundError{Entity: "flow", Id: id}
	}
	cp := *flow
	return &cp, nil
}

func (s *Storage) DeleteFlow(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flows[id]; !ok {
		return persistence.NotFoundError{Entity: "flow", Id: id}
	}
	delete(s.flows, id)
	delete(s.generations, id)
	return nil
}

func (s *Storage) ListFlows() ([]*model.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Flow, 0, len(s.flows))
	for _, f := range s.flows {
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Storage) GetGeneration(flowId string, generation int) (*model.FlowGraph, map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gens, ok := s.generations[flowId]
	if !ok {
		return nil, nil, persistence.NotFoundError{Entity: "flow", Id: flowId}
	}
	data, ok := gens[generation]
	if !ok {
		return nil, nil, persistence.NotFoundError{Entity: "flow generation", Id: flowId}
	}
	gen, err := s.flowEncDec.Decode(data)
	if err != nil {
		return nil, nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return &gen.Graph, gen.Settings, nil
}

func (s *Storage) SaveTemplate(tpl model.ComponentTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.Type] = tpl
	return nil
}

func (s *Storage) GetTemplate(nodeType model.NodeType) (*model.ComponentTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, ok := s.templates[nodeType]
	if !ok {
		return nil, persistence.NotFoundError{Entity: "component template", Id: string(nodeType)}
	}
	return &tpl, nil
}

func (s *Storage) DeleteTemplate(nodeType model.NodeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[nodeType]; !ok {
		return persistence.NotFoundError{Entity: "component template", Id: string(nodeType)}
	}
	delete(s.templates, nodeType)
	return nil
}

func (s *Storage) ListTemplates() ([]model.ComponentTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ComponentTemplate, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (s *Storage) SaveSession(session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSessionLocked(session)
}

func (s *Storage) saveSessionLocked(session *model.Session) error {
	data, err := s.sessionEncDec.Encode(*session)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	cp, err := s.sessionEncDec.Decode(data)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	s.sessions[session.Id] = cp
	return nil
}

func (s *Storage) SaveSessionStep(session *model.Session, entries []model.ExecutionLogEntry, messages []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveSessionLocked(session); err != nil {
		return err
	}
	s.logs[session.Id] = append(s.logs[session.Id], entries...)
	s.messages[session.Id] = append(s.messages[session.Id], messages...)
	return nil
}

func (s *Storage) GetSession(id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, persistence.NotFoundError{Entity: "session", Id: id}
	}
	data, err := s.sessionEncDec.Encode(*session)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.sessionEncDec.Decode(data)
}

func (s *Storage) ListSessions(filter model.SessionFilter) ([]*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Session
	for _, session := range s.sessions {
		if filter.FlowId != "" && session.FlowId != filter.FlowId {
			continue
		}
		if filter.UserId != "" && session.UserId != filter.UserId {
			continue
		}
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		cp := *session
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Storage) GetExecutionLog(sessionId string) ([]model.ExecutionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.logs[sessionId]
	out := make([]model.ExecutionLogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *Storage) GetMessages(sessionId string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.messages[sessionId]
	out := make([]model.Message, len(messages))
	copy(out, messages)
	return out, nil
}

func (s *Storage) IdleSessions(since time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, session := range s.sessions {
		if session.Status.Terminal() {
			continue
		}
		if session.LastActivity.Before(since) {
			out = append(out, session.Id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Storage) SaveVersion(version *model.FlowVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.versionEncDec.Encode(*version)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	cp, err := s.versionEncDec.Decode(data)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	versions, ok := s.versions[version.FlowId]
	if !ok {
		versions = make(map[int]*model.FlowVersion)
		s.versions[version.FlowId] = versions
	}
	versions[version.VersionNumber] = cp
	return nil
}

func (s *Storage) GetVersion(flowId string, versionNumber int) (*model.FlowVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version, ok := s.versions[flowId][versionNumber]
	if !ok {
		return nil, persistence.NotFoundError{Entity: "flow version", Id: flowId}
	}
	data, err := s.versionEncDec.Encode(*version)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.versionEncDec.Decode(data)
}

func (s *Storage) LatestVersionNumber(flowId string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := 0
	for n := range s.versions[flowId] {
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}

func (s *Storage) ListVersions(flowId string) ([]*model.FlowVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.FlowVersion, 0, len(s.versions[flowId]))
	for _, v := range s.versions[flowId] {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (s *Storage) DeleteVersions(flowId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.versions, flowId)
	return nil
}

func (s *Storage) SaveEvent(event *model.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.eventEncDec.Encode(*event)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	cp, err := s.eventEncDec.Decode(data)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	s.events[event.Id] = cp
	delete(s.claims, event.Id)
	return nil
}

func (s *Storage) GetEvent(id string) (*model.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getEventLocked(id)
}

func (s *Storage) getEventLocked(id string) (*model.WebhookEvent, error) {
	event, ok := s.events[id]
	if !ok {
		return nil, persistence.NotFoundError{Entity: "webhook event", Id: id}
	}
	data, err := s.eventEncDec.Encode(*event)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.eventEncDec.Decode(data)
}

func (s *Storage) ListEvents(filter model.WebhookFilter) ([]*model.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.WebhookEvent
	for _, event := range s.events {
		if filter.SessionId != "" && event.SessionId != filter.SessionId {
			continue
		}
		if filter.Status != "" && event.Status != filter.Status {
			continue
		}
		cp := *event
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Storage) ClaimEvent(id string) (*model.WebhookEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, err := s.getEventLocked(id)
	if err != nil {
		return nil, false, err
	}
	if event.Status != model.WEBHOOK_PENDING && event.Status != model.WEBHOOK_RETRYING {
		return nil, false, nil
	}
	if expiry, ok := s.claims[id]; ok && time.Now().Before(expiry) {
		return nil, false, nil
	}
	s.claims[id] = time.Now().Add(claimTtl)
	return event, true, nil
}

func (s *Storage) ScheduleRetry(id string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.due[id] = time.Now().Add(delay)
	return nil
}

func (s *Storage) PollDue() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []string
	for id, at := range s.due {
		if !at.After(now) {
			out = append(out, id)
			delete(s.due, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
