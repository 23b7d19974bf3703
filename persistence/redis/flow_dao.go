package redis

import (
	"context"
	"errors"
	"strconv"

	rd "github.com/go-redis/redis/v9"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/util"
)

const FLOW_DEF string = "FLOW_DEF"
const FLOW_ALL string = "FLOW_ALL"
const FLOW_GEN string = "FLOW_GEN"

type flowGeneration struct {
	Graph    model.FlowGraph `json:"graph"`
	Settings map[string]any  `json:"settings"`
}

type redisFlowDao struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.Flow]
	genEncDec      util.EncoderDecoder[flowGeneration]
}

var _ persistence.FlowStorage = new(redisFlowDao)

func NewRedisFlowDao(baseDao baseDao) *redisFlowDao {
	return &redisFlowDao{
		baseDao:        baseDao,
		encoderDecoder: util.NewJsonEncoderDecoder[model.Flow](),
		genEncDec:      util.NewJsonEncoderDecoder[flowGeneration](),
	}
}

func (rfd *redisFlowDao) SaveFlow(flow *model.Flow) error {
	key := rfd.getNamespaceKey(FLOW_DEF, flow.Id)
	genKey := rfd.getNamespaceKey(FLOW_GEN, flow.Id)
	allKey := rfd.getNamespaceKey(FLOW_ALL)
	ctx := context.Background()
	data, err := rfd.encoderDecoder.Encode(*flow)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	genData, err := rfd.genEncDec.Encode(flowGeneration{Graph: flow.Graph, Settings: flow.Settings})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	pipe := rfd.redisClient.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.HSet(ctx, genKey, strconv.Itoa(flow.Generation), genData)
	pipe.SAdd(ctx, allKey, flow.Id)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rfd *redisFlowDao) GetFlow(id string) (*model.Flow, error) {
	key := rfd.getNamespaceKey(FLOW_DEF, id)
	ctx := context.Background()
	val, err := rfd.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Entity: "flow", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	flow, err := rfd.encoderDecoder.Decode([]byte(val))
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return flow, nil
}

func (rfd *redisFlowDao) DeleteFlow(id string) error {
	ctx := context.Background()
	exists, err := rfd.redisClient.Exists(ctx, rfd.getNamespaceKey(FLOW_DEF, id)).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if exists == 0 {
		return persistence.NotFoundError{Entity: "flow", Id: id}
	}
	pipe := rfd.redisClient.TxPipeline()
	pipe.Del(ctx, rfd.getNamespaceKey(FLOW_DEF, id))
	pipe.Del(ctx, rfd.getNamespaceKey(FLOW_GEN, id))
	pipe.SRem(ctx, rfd.getNamespaceKey(FLOW_ALL), id)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rfd *redisFlowDao) ListFlows() ([]*model.Flow, error) {
	ctx := context.Background()
	ids, err := rfd.redisClient.SMembers(ctx, rfd.getNamespaceKey(FLOW_ALL)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.Flow, 0, len(ids))
	for _, id := range ids {
		flow, err := rfd.GetFlow(id)
		if err != nil {
			if persistence.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, flow)
	}
	return out, nil
}

func (rfd *redisFlowDao) GetGeneration(flowId string, generation int) (*model.FlowGraph, map[string]any, error) {
	genKey := rfd.getNamespaceKey(FLOW_GEN, flowId)
	ctx := context.Background()
	val, err := rfd.redisClient.HGet(ctx, genKey, strconv.Itoa(generation)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil, persistence.NotFoundError{Entity: "flow generation", Id: flowId}
		}
		return nil, nil, persistence.StorageLayerError{Message: err.Error()}
	}
	gen, err := rfd.genEncDec.Decode([]byte(val))
	if err != nil {
		return nil, nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return &gen.Graph, gen.Settings, nil
}
