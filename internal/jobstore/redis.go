package jobstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces the queue sets in redis.
const DefaultKeyPrefix = "horde:queue:"

// RedisStore keeps one redis set of pending job uuids per queue.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(queue string) string {
	return fmt.Sprintf("%s%s", s.prefix, queue)
}

func (s *RedisStore) Add(ctx context.Context, queue, jobUUID string) error {
	if queue == "" {
		return ErrEmptyQueue
	}
	if err := s.client.SAdd(ctx, s.key(queue), jobUUID).Err(); err != nil {
		return errors.Wrapf(err, "failed to add job %s to queue %s", jobUUID, queue)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, queue, jobUUID string) error {
	if queue == "" {
		return ErrEmptyQueue
	}
	if err := s.client.SRem(ctx, s.key(queue), jobUUID).Err(); err != nil {
		return errors.Wrapf(err, "failed to remove job %s from queue %s", jobUUID, queue)
	}
	return nil
}

func (s *RedisStore) Pending(ctx context.Context, queue string) ([]string, error) {
	if queue == "" {
		return nil, ErrEmptyQueue
	}

	ids, err := s.client.SMembers(ctx, s.key(queue)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrapf(err, "failed to list queue %s", queue)
	}
	sort.Strings(ids)
	return ids, nil
}
