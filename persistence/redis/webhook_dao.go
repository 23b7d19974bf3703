package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/util"
	"go.uber.org/zap"
)

const WEBHOOK_EVENT string = "WEBHOOK_EVENT"
const WEBHOOK_ALL string = "WEBHOOK_ALL"
const WEBHOOK_SESSION string = "WEBHOOK_SESSION"
const WEBHOOK_CLAIM string = "WEBHOOK_CLAIM"
const WEBHOOK_RETRY_QUEUE string = "WEBHOOK_RETRY_QUEUE"

const claimTtl = 30 * time.Second

type redisWebhookDao struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.WebhookEvent]
}

var _ persistence.WebhookStorage = new(redisWebhookDao)

func NewRedisWebhookDao(baseDao baseDao) *redisWebhookDao {
	return &redisWebhookDao{
		baseDao:        baseDao,
		encoderDecoder: util.NewJsonEncoderDecoder[model.WebhookEvent](),
	}
}

func (rwd *redisWebhookDao) SaveEvent(event *model.WebhookEvent) error {
	ctx := context.Background()
	data, err := rwd.encoderDecoder.Encode(*event)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	pipe := rwd.redisClient.TxPipeline()
	pipe.Set(ctx, rwd.getNamespaceKey(WEBHOOK_EVENT, event.Id), data, 0)
	pipe.SAdd(ctx, rwd.getNamespaceKey(WEBHOOK_ALL), event.Id)
	if event.SessionId != "" {
		pipe.SAdd(ctx, rwd.getNamespaceKey(WEBHOOK_SESSION, event.SessionId), event.Id)
	}
	pipe.Del(ctx, rwd.getNamespaceKey(WEBHOOK_CLAIM, event.Id))
	_, err = pipe.Exec(ctx)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rwd *redisWebhookDao) GetEvent(id string) (*model.WebhookEvent, error) {
	ctx := context.Background()
	val, err := rwd.redisClient.Get(ctx, rwd.getNamespaceKey(WEBHOOK_EVENT, id)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Entity: "webhook event", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rwd.encoderDecoder.Decode([]byte(val))
}

func (rwd *redisWebhookDao) ListEvents(filter model.WebhookFilter) ([]*model.WebhookEvent, error) {
	ctx := context.Background()
	setKey := rwd.getNamespaceKey(WEBHOOK_ALL)
	if filter.SessionId != "" {
		setKey = rwd.getNamespaceKey(WEBHOOK_SESSION, filter.SessionId)
	}
	ids, err := rwd.redisClient.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var out []*model.WebhookEvent
	for _, id := range ids {
		event, err := rwd.GetEvent(id)
		if err != nil {
			if persistence.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if filter.Status != "" && event.Status != filter.Status {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

// ClaimEvent takes a short lived lock on the event via SETNX so that at
// most one sender works on it at a time. The lock is dropped when the
// attempt saves its outcome, or expires on its own after a crash.
func (rwd *redisWebhookDao) ClaimEvent(id string) (*model.WebhookEvent, bool, error) {
	ctx := context.Background()
	claimed, err := rwd.redisClient.SetNX(ctx, rwd.getNamespaceKey(WEBHOOK_CLAIM, id), 1, claimTtl).Result()
	if err != nil {
		return nil, false, persistence.StorageLayerError{Message: err.Error()}
	}
	if !claimed {
		return nil, false, nil
	}
	event, err := rwd.GetEvent(id)
	if err != nil {
		rwd.releaseClaim(id)
		return nil, false, err
	}
	if event.Status != model.WEBHOOK_PENDING && event.Status != model.WEBHOOK_RETRYING {
		rwd.releaseClaim(id)
		return nil, false, nil
	}
	return event, true, nil
}

func (rwd *redisWebhookDao) releaseClaim(id string) {
	ctx := context.Background()
	if err := rwd.redisClient.Del(ctx, rwd.getNamespaceKey(WEBHOOK_CLAIM, id)).Err(); err != nil {
		logger.Error("error releasing webhook claim", zap.String("event", id), zap.Error(err))
	}
}

func (rwd *redisWebhookDao) ScheduleRetry(id string, delay time.Duration) error {
	ctx := context.Background()
	dueAt := time.Now().Add(delay).UnixMilli()
	member := rd.Z{
		Score:  float64(dueAt),
		Member: id,
	}
	err := rwd.redisClient.ZAdd(ctx, rwd.getNamespaceKey(WEBHOOK_RETRY_QUEUE), member).Err()
	if err != nil {
		logger.Error("error while push to retry queue", zap.String("event", id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rwd *redisWebhookDao) PollDue() ([]string, error) {
	queueName := rwd.getNamespaceKey(WEBHOOK_RETRY_QUEUE)
	ctx := context.Background()
	currentTime := time.Now().UnixMilli()
	pipe := rwd.redisClient.Pipeline()

	opt := &rd.ZRangeBy{
		Min: strconv.Itoa(0),
		Max: strconv.FormatInt(currentTime, 10),
	}
	zr := pipe.ZRangeByScore(ctx, queueName, opt)
	pipe.ZRemRangeByScore(ctx, queueName, strconv.Itoa(0), strconv.FormatInt(currentTime, 10))

	_, err := pipe.Exec(ctx)
	if err != nil {
		logger.Error("error while pop from retry queue", zap.String("queue", queueName), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}

	res, err := zr.Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return []string{}, nil
		}
		logger.Error("error while pop from retry queue", zap.String("queue", queueName), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return res, nil
}
