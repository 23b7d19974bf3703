package metadata

import (
	"time"

	"github.com/google/uuid"
	"github.com/xkayo32/pydevbot/graph"
	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/registry"
	"go.uber.org/zap"
)

// Service manages flow definitions and component templates. Graph
// writes are validated first and replace the stored graph wholesale;
// every accepted replacement bumps the flow's generation.
type Service struct {
	flows     persistence.FlowStorage
	templates persistence.TemplateStorage
	versions  persistence.VersionStorage
	registry  registry.Registry
}

func NewService(flows persistence.FlowStorage, templates persistence.TemplateStorage, versions persistence.VersionStorage, reg registry.Registry) *Service {
	return &Service{
		flows:     flows,
		templates: templates,
		versions:  versions,
		registry:  reg,
	}
}

func (s *Service) CreateFlow(flow *model.Flow) ([]graph.ValidationError, error) {
	if errs := graph.Validate(&flow.Graph, s.registry); len(errs) > 0 {
		return errs, nil
	}
	if flow.Id == "" {
		flow.Id = uuid.New().String()
	}
	now := time.Now()
	flow.Generation = 1
	flow.CreatedAt = now
	flow.UpdatedAt = now
	if err := s.flows.SaveFlow(flow); err != nil {
		return nil, err
	}
	logger.Info("flow created", zap.String("flow", flow.Id), zap.String("name", flow.Name))
	return nil, nil
}

// UpdateFlow replaces the flow's graph and settings in one shot and
// updates its descriptive fields. Running sessions are unaffected; they
// keep the generation they captured.
func (s *Service) UpdateFlow(flow *model.Flow) ([]graph.ValidationError, error) {
	existing, err := s.flows.GetFlow(flow.Id)
	if err != nil {
		return nil, err
	}
	if errs := graph.Validate(&flow.Graph, s.registry); len(errs) > 0 {
		return errs, nil
	}
	flow.Generation = existing.Generation + 1
	flow.CreatedBy = existing.CreatedBy
	flow.CreatedAt = existing.CreatedAt
	flow.UpdatedAt = time.Now()
	if err := s.flows.SaveFlow(flow); err != nil {
		return nil, err
	}
	logger.Info("flow updated", zap.String("flow", flow.Id), zap.Int("generation", flow.Generation))
	return nil, nil
}

// ValidateFlow runs the structural checks without persisting anything.
func (s *Service) ValidateFlow(g *model.FlowGraph) []graph.ValidationError {
	return graph.Validate(g, s.registry)
}

func (s *Service) GetFlow(id string) (*model.Flow, error) {
	return s.flows.GetFlow(id)
}

func (s *Service) ListFlows() ([]*model.Flow, error) {
	return s.flows.ListFlows()
}

// DeleteFlow removes the flow and its version history.
func (s *Service) DeleteFlow(id string) error {
	if err := s.flows.DeleteFlow(id); err != nil {
		return err
	}
	if err := s.versions.DeleteVersions(id); err != nil {
		return err
	}
	logger.Info("flow deleted", zap.String("flow", id))
	return nil
}

func (s *Service) SaveTemplate(tpl model.ComponentTemplate) error {
	now := time.Now()
	if existing, err := s.templates.GetTemplate(tpl.Type); err == nil {
		tpl.CreatedAt = existing.CreatedAt
	} else if persistence.IsNotFound(err) {
		tpl.CreatedAt = now
	} else {
		return err
	}
	tpl.UpdatedAt = now
	if err := s.templates.SaveTemplate(tpl); err != nil {
		return err
	}
	s.registry.Invalidate(tpl.Type)
	logger.Info("component template saved", zap.String("type", string(tpl.Type)))
	return nil
}

func (s *Service) GetTemplate(nodeType model.NodeType) (*model.ComponentTemplate, error) {
	return s.templates.GetTemplate(nodeType)
}

func (s *Service) ListTemplates() ([]model.ComponentTemplate, error) {
	return s.templates.ListTemplates()
}

func (s *Service) DeleteTemplate(nodeType model.NodeType) error {
	if err := s.templates.DeleteTemplate(nodeType); err != nil {
		return err
	}
	s.registry.Invalidate(nodeType)
	logger.Info("component template deleted", zap.String("type", string(nodeType)))
	return nil
}
