// Package cached puts a Redis cache-aside layer in front of a task store.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	repo "taskManager/internal/repository"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 5 * time.Minute

// genTTL bounds how long an idle generation counter lives. An expired counter
// only makes in-flight fills skip the cache write.
const genTTL = 24 * time.Hour

var errStaleFill = errors.New("cache fill superseded by invalidation")

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Backend is the store being cached.
type Backend interface {
	HealthCheck(context.Context) error
	Create(context.Context, *task.Task) error
	List(context.Context, repo.ListFilter) ([]*task.Task, error)
	GetByID(context.Context, int64) (*task.Task, error)
	Update(context.Context, int64, func(*task.Task) error) (*task.Task, error)
	Delete(context.Context, int64) error
}

// Storage caches single-task reads only. Lists always go to the backend, so
// they never observe a stale cache. Every invalidation bumps a per-task
// generation; a fill started under an older generation is dropped.
type Storage struct {
	next   Backend
	client *redis.Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
}

func New(next Backend, client *redis.Client, prefix string, ttl time.Duration) *Storage {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Storage{
		next:   next,
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Storage) key(id int64) string {
	return s.prefix + "task:" + strconv.FormatInt(id, 10)
}

func (s *Storage) genKey(id int64) string {
	return s.key(id) + ":gen"
}

func (s *Storage) Close() {
	if err := s.client.Close(); err != nil {
		logger.Warn("Cache: closing redis client", zap.Error(err))
	}
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.next.HealthCheck(ctx); err != nil {
		return err
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Storage) Create(ctx context.Context, t *task.Task) error {
	return s.next.Create(ctx, t)
}

func (s *Storage) List(ctx context.Context, filter repo.ListFilter) ([]*task.Task, error) {
	return s.next.List(ctx, filter)
}

func (s *Storage) GetByID(ctx context.Context, id int64) (*task.Task, error) {
	key := s.key(id)

	cached, err := s.load(ctx, key)
	if err != nil {
		logger.Warn("Cache: read failed, falling back to store", zap.String("key", key), zap.Error(err))
	}
	if cached != nil {
		logger.Debug("Cache: hit", zap.String("key", key))
		return cached, nil
	}

	gen, err := s.generation(ctx, s.client, id)
	if err != nil {
		logger.Warn("Cache: generation read failed, skipping fill", zap.String("key", key), zap.Error(err))
	}
	fill := err == nil

	val, err, _ := s.group.Do(key, func() (any, error) {
		found, err := s.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if fill {
			s.store(ctx, id, gen, found)
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	// shared between collapsed callers
	return val.(*task.Task).Clone(), nil
}

func (s *Storage) Update(ctx context.Context, id int64, mutate func(*task.Task) error) (*task.Task, error) {
	updated, err := s.next.Update(ctx, id, mutate)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

func (s *Storage) Delete(ctx context.Context, id int64) error {
	err := s.next.Delete(ctx, id)
	if err == nil || errors.Is(err, repo.ErrNotFound) {
		s.invalidate(ctx, id)
	}
	return err
}

func (s *Storage) load(ctx context.Context, key string) (*task.Task, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode cached task: %w", err)
	}
	return &t, nil
}

func (s *Storage) generation(ctx context.Context, c getter, id int64) (int64, error) {
	gen, err := c.Get(ctx, s.genKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// store writes t only if no invalidation happened since gen was read. WATCH on
// the generation key aborts the write when an invalidation races the fill.
func (s *Storage) store(ctx context.Context, id, gen int64, t *task.Task) {
	key := s.key(id)
	data, err := json.Marshal(t)
	if err != nil {
		logger.Warn("Cache: encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.generation(ctx, tx, id)
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, s.genKey(id))

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		logger.Debug("Cache: dropped stale fill", zap.String("key", key))
	default:
		logger.Warn("Cache: write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Storage) invalidate(ctx context.Context, id int64) {
	key := s.key(id)
	s.group.Forget(key)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, s.genKey(id))
		pipe.Expire(ctx, s.genKey(id), genTTL)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		logger.Warn("Cache: invalidation failed", zap.Int64("task_id", id), zap.Error(err))
	}
}
