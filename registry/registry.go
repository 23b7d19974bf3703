package registry

import (
	"time"

	c "github.com/patrickmn/go-cache"
	api "github.com/xkayo32/pydevbot/api/v1"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence"
)

// Registry resolves a node's declared type to its behavioral contract.
// Lookup is by type string; template edits affect existing graphs on
// their next step.
type Registry interface {
	Resolve(nodeType model.NodeType) (*model.ComponentTemplate, error)
	List() ([]model.ComponentTemplate, error)
	Invalidate(nodeType model.NodeType)
}

type storageRegistry struct {
	storage persistence.TemplateStorage
	cache   *c.Cache
}

var _ Registry = new(storageRegistry)

func NewRegistry(storage persistence.TemplateStorage) *storageRegistry {
	return &storageRegistry{
		storage: storage,
		cache:   c.New(5*time.Minute, 10*time.Minute),
	}
}

func (r *storageRegistry) Resolve(nodeType model.NodeType) (*model.ComponentTemplate, error) {
	if cached, found := r.cache.Get(string(nodeType)); found {
		tpl := cached.(model.ComponentTemplate)
		return &tpl, nil
	}
	tpl, err := r.storage.GetTemplate(nodeType)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, api.TemplateNotFoundError{NodeType: nodeType}
		}
		return nil, err
	}
	r.cache.Set(string(nodeType), *tpl, c.DefaultExpiration)
	return tpl, nil
}

func (r *storageRegistry) List() ([]model.ComponentTemplate, error) {
	return r.storage.ListTemplates()
}

func (r *storageRegistry) Invalidate(nodeType model.NodeType) {
	r.cache.Delete(string(nodeType))
}
