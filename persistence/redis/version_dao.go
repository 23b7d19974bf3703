package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"

	rd "github.com/go-redis/redis/v9"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/util"
)

const FLOW_VERSIONS string = "FLOW_VERSIONS"

type redisVersionDao struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.FlowVersion]
}

var _ persistence.VersionStorage = new(redisVersionDao)

func NewRedisVersionDao(baseDao baseDao) *redisVersionDao {
	return &redisVersionDao{
		baseDao:        baseDao,
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowVersion](),
	}
}

func (rvd *redisVersionDao) SaveVersion(version *model.FlowVersion) error {
	key := rvd.getNamespaceKey(FLOW_VERSIONS, version.FlowId)
	ctx := context.Background()
	data, err := rvd.encoderDecoder.Encode(*version)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	err = rvd.redisClient.HSet(ctx, key, strconv.Itoa(version.VersionNumber), data).Err()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rvd *redisVersionDao) GetVersion(flowId string, versionNumber int) (*model.FlowVersion, error) {
	key := rvd.getNamespaceKey(FLOW_VERSIONS, flowId)
	ctx := context.Background()
	val, err := rvd.redisClient.HGet(ctx, key, strconv.Itoa(versionNumber)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Entity: "flow version", Id: flowId}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rvd.encoderDecoder.Decode([]byte(val))
}

func (rvd *redisVersionDao) LatestVersionNumber(flowId string) (int, error) {
	key := rvd.getNamespaceKey(FLOW_VERSIONS, flowId)
	ctx := context.Background()
	fields, err := rvd.redisClient.HKeys(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return 0, nil
		}
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	latest := 0
	for _, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}

func (rvd *redisVersionDao) ListVersions(flowId string) ([]*model.FlowVersion, error) {
	key := rvd.getNamespaceKey(FLOW_VERSIONS, flowId)
	ctx := context.Background()
	values, err := rvd.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.FlowVersion, 0, len(values))
	for _, val := range values {
		version, err := rvd.encoderDecoder.Decode([]byte(val))
		if err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		out = append(out, version)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (rvd *redisVersionDao) DeleteVersions(flowId string) error {
	key := rvd.getNamespaceKey(FLOW_VERSIONS, flowId)
	ctx := context.Background()
	err := rvd.redisClient.Del(ctx, key).Err()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
