package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/util"
)

const SESSION string = "SESSION"
const SESSION_ALL string = "SESSION_ALL"
const SESSION_LOGS string = "SESSION_LOGS"
const SESSION_MESSAGES string = "SESSION_MESSAGES"
const SESSION_ACTIVITY string = "SESSION_ACTIVITY"

type redisSessionDao struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.Session]
	logEncDec      util.EncoderDecoder[model.ExecutionLogEntry]
	messageEncDec  util.EncoderDecoder[model.Message]
}

var _ persistence.SessionStorage = new(redisSessionDao)

func NewRedisSessionDao(baseDao baseDao) *redisSessionDao {
	return &redisSessionDao{
		baseDao:        baseDao,
		encoderDecoder: util.NewJsonEncoderDecoder[model.Session](),
		logEncDec:      util.NewJsonEncoderDecoder[model.ExecutionLogEntry](),
		messageEncDec:  util.NewJsonEncoderDecoder[model.Message](),
	}
}

func (rsd *redisSessionDao) SaveSession(session *model.Session) error {
	return rsd.SaveSessionStep(session, nil, nil)
}

// SaveSessionStep writes the session, its new log entries and messages
// in one transaction. The activity index feeds IdleSessions; terminal
// sessions drop out of it.
func (rsd *redisSessionDao) SaveSessionStep(session *model.Session, entries []model.ExecutionLogEntry, messages []model.Message) error {
	ctx := context.Background()
	data, err := rsd.encoderDecoder.Encode(*session)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	pipe := rsd.redisClient.TxPipeline()
	pipe.Set(ctx, rsd.getNamespaceKey(SESSION, session.Id), data, 0)
	pipe.SAdd(ctx, rsd.getNamespaceKey(SESSION_ALL), session.Id)
	for _, entry := range entries {
		entryData, err := rsd.logEncDec.Encode(entry)
		if err != nil {
			return persistence.StorageLayerError{Message: err.Error()}
		}
		pipe.RPush(ctx, rsd.getNamespaceKey(SESSION_LOGS, session.Id), entryData)
	}
	for _, message := range messages {
		messageData, err := rsd.messageEncDec.Encode(message)
		if err != nil {
			return persistence.StorageLayerError{Message: err.Error()}
		}
		pipe.RPush(ctx, rsd.getNamespaceKey(SESSION_MESSAGES, session.Id), messageData)
	}
	activityKey := rsd.getNamespaceKey(SESSION_ACTIVITY)
	if session.Status.Terminal() {
		pipe.ZRem(ctx, activityKey, session.Id)
	} else {
		pipe.ZAdd(ctx, activityKey, rd.Z{
			Score:  float64(session.LastActivity.UnixMilli()),
			Member: session.Id,
		})
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rsd *redisSessionDao) GetSession(id string) (*model.Session, error) {
	ctx := context.Background()
	val, err := rsd.redisClient.Get(ctx, rsd.getNamespaceKey(SESSION, id)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Entity: "session", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rsd.encoderDecoder.Decode([]byte(val))
}

func (rsd *redisSessionDao) ListSessions(filter model.SessionFilter) ([]*model.Session, error) {
	ctx := context.Background()
	ids, err := rsd.redisClient.SMembers(ctx, rsd.getNamespaceKey(SESSION_ALL)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var out []*model.Session
	for _, id := range ids {
		session, err := rsd.GetSession(id)
		if err != nil {
			if persistence.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if filter.FlowId != "" && session.FlowId != filter.FlowId {
			continue
		}
		if filter.UserId != "" && session.UserId != filter.UserId {
			continue
		}
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		out = append(out, session)
	}
	return out, nil
}

func (rsd *redisSessionDao) GetExecutionLog(sessionId string) ([]model.ExecutionLogEntry, error) {
	ctx := context.Background()
	values, err := rsd.redisClient.LRange(ctx, rsd.getNamespaceKey(SESSION_LOGS, sessionId), 0, -1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.ExecutionLogEntry, 0, len(values))
	for _, val := range values {
		entry, err := rsd.logEncDec.Decode([]byte(val))
		if err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (rsd *redisSessionDao) GetMessages(sessionId string) ([]model.Message, error) {
	ctx := context.Background()
	values, err := rsd.redisClient.LRange(ctx, rsd.getNamespaceKey(SESSION_MESSAGES, sessionId), 0, -1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.Message, 0, len(values))
	for _, val := range values {
		message, err := rsd.messageEncDec.Decode([]byte(val))
		if err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		out = append(out, *message)
	}
	return out, nil
}

func (rsd *redisSessionDao) IdleSessions(since time.Time) ([]string, error) {
	ctx := context.Background()
	opt := &rd.ZRangeBy{
		Min: strconv.Itoa(0),
		Max: strconv.FormatInt(since.UnixMilli(), 10),
	}
	ids, err := rsd.redisClient.ZRangeByScore(ctx, rsd.getNamespaceKey(SESSION_ACTIVITY), opt).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return []string{}, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return ids, nil
}
