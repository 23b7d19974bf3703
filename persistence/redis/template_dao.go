package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/util"
)

const COMPONENT_TEMPLATES string = "COMPONENT_TEMPLATES"

type redisTemplateDao struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.ComponentTemplate]
}

var _ persistence.TemplateStorage = new(redisTemplateDao)

func NewRedisTemplateDao(baseDao baseDao) *redisTemplateDao {
	return &redisTemplateDao{
		baseDao:        baseDao,
		encoderDecoder: util.NewJsonEncoderDecoder[model.ComponentTemplate](),
	}
}

func (rtd *redisTemplateDao) SaveTemplate(tpl model.ComponentTemplate) error {
	key := rtd.getNamespaceKey(COMPONENT_TEMPLATES)
	ctx := context.Background()
	data, err := rtd.encoderDecoder.Encode(tpl)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	err = rtd.redisClient.HSet(ctx, key, string(tpl.Type), data).Err()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rtd *redisTemplateDao) GetTemplate(nodeType model.NodeType) (*model.ComponentTemplate, error) {
	key := rtd.getNamespaceKey(COMPONENT_TEMPLATES)
	ctx := context.Background()
	val, err := rtd.redisClient.HGet(ctx, key, string(nodeType)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Entity: "component template", Id: string(nodeType)}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rtd.encoderDecoder.Decode([]byte(val))
}

func (rtd *redisTemplateDao) DeleteTemplate(nodeType model.NodeType) error {
	key := rtd.getNamespaceKey(COMPONENT_TEMPLATES)
	ctx := context.Background()
	removed, err := rtd.redisClient.HDel(ctx, key, string(nodeType)).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if removed == 0 {
		return persistence.NotFoundError{Entity: "component template", Id: string(nodeType)}
	}
	return nil
}

func (rtd *redisTemplateDao) ListTemplates() ([]model.ComponentTemplate, error) {
	key := rtd.getNamespaceKey(COMPONENT_TEMPLATES)
	ctx := context.Background()
	values, err := rtd.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.ComponentTemplate, 0, len(values))
	for _, val := range values {
		tpl, err := rtd.encoderDecoder.Decode([]byte(val))
		if err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		out = append(out, *tpl)
	}
	return out, nil
}
