package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koios/arqia/internal/redesign"
	"github.com/koios/arqia/pkg/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// maxUpdateRetries bounds optimistic transaction retries under contention
const maxUpdateRetries = 10

var _ redesign.Store = (*JobStore)(nil)

// JobStore keeps in-flight jobs as JSON values with a TTL, so records of
// abandoned jobs expire on their own
type JobStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewJobStore creates a job store on an existing client
func NewJobStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *JobStore {
	if prefix == "" {
		prefix = "arqia"
	}
	return &JobStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// buildKey creates a scoped key for a job id
func (s *JobStore) buildKey(id string) string {
	// Clean key to remove any potential path separators
	cleanID := strings.ReplaceAll(id, "/", "_")
	return fmt.Sprintf("%s:job:%s", s.prefix, cleanID)
}

// Put stores a job, resetting its TTL
func (s *JobStore) Put(ctx context.Context, job models.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	key := s.buildKey(job.ID)
	if err := s.client.Set(ctx, key, body, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s in Redis: %w", key, err)
	}
	return nil
}

// Get loads a job
func (s *JobStore) Get(ctx context.Context, id string) (models.Job, error) {
	key := s.buildKey(id)
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Job{}, &redesign.Error{Kind: redesign.KindNotFound, JobID: id}
		}
		return models.Job{}, fmt.Errorf("failed to get key %s from Redis: %w", key, err)
	}
	return decodeJob(id, raw)
}

// Update applies fn inside a WATCH transaction and retries on conflicts.
// The key keeps its original TTL.
func (s *JobStore) Update(ctx context.Context, id string, fn func(*models.Job) error) (models.Job, error) {
	key := s.buildKey(id)

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		var job models.Job

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return &redesign.Error{Kind: redesign.KindNotFound, JobID: id}
				}
				return fmt.Errorf("failed to get key %s from Redis: %w", key, err)
			}

			job, err = decodeJob(id, raw)
			if err != nil {
				return err
			}
			if err := fn(&job); err != nil {
				return err
			}

			body, err := json.Marshal(job)
			if err != nil {
				return fmt.Errorf("failed to marshal job %s: %w", id, err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, body, redis.KeepTTL)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("Job update conflicted, retrying", zap.String("job_id", id), zap.Int("attempt", attempt+1))
			continue
		}
		return job, err
	}

	return models.Job{}, fmt.Errorf("failed to update job %s: too many concurrent writers", id)
}

// Delete removes a job
func (s *JobStore) Delete(ctx context.Context, id string) error {
	key := s.buildKey(id)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func decodeJob(id string, raw []byte) (models.Job, error) {
	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return models.Job{}, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return job, nil
}
