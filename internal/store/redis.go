package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"judge-evals/internal/apperr"
)

const (
	// Key prefix for evaluation hashes
	evaluationKeyPrefix = "evaluation:"

	// Key prefix for per-contestant sorted sets of evaluation ids
	contestantKeyPrefix = "contestant:"

	maxUpdateAttempts = 5
)

// RedisStore keeps each evaluation in a hash and indexes ids per contestant in
// a sorted set scored by creation time.
type RedisStore struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed store and verifies the connection.
func NewRedis(addr, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func evaluationKey(id uuid.UUID) string { return evaluationKeyPrefix + id.String() }

func contestantKey(contestantID string) string {
	return contestantKeyPrefix + contestantID + ":evaluations"
}

func encodeEvaluation(ev Evaluation) map[string]any {
	return map[string]any{
		"id":            ev.ID.String(),
		"contestant_id": ev.ContestantID,
		"judge_id":      ev.JudgeID,
		"score":         ev.Score,
		"notes":         ev.Notes,
		"created_at":    ev.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    ev.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func decodeEvaluation(fields map[string]string) (Evaluation, error) {
	var ev Evaluation
	var err error
	if ev.ID, err = uuid.Parse(fields["id"]); err != nil {
		return Evaluation{}, fmt.Errorf("decode id: %w", err)
	}
	if ev.Score, err = strconv.Atoi(fields["score"]); err != nil {
		return Evaluation{}, fmt.Errorf("decode score: %w", err)
	}
	if ev.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return Evaluation{}, fmt.Errorf("decode created_at: %w", err)
	}
	if ev.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return Evaluation{}, fmt.Errorf("decode updated_at: %w", err)
	}
	ev.ContestantID = fields["contestant_id"]
	ev.JudgeID = fields["judge_id"]
	ev.Notes = fields["notes"]
	ev.CreatedAt = ev.CreatedAt.UTC()
	ev.UpdatedAt = ev.UpdatedAt.UTC()
	return ev, nil
}

func indexScore(ev Evaluation) float64 {
	return float64(ev.CreatedAt.UnixMicro())
}

func (s *RedisStore) Create(ctx context.Context, in NewEvaluation) (Evaluation, error) {
	ts := now()
	ev := Evaluation{
		ID:           uuid.New(),
		ContestantID: in.ContestantID,
		JudgeID:      in.JudgeID,
		Score:        in.Score,
		Notes:        in.Notes,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, evaluationKey(ev.ID), encodeEvaluation(ev))
		pipe.ZAdd(ctx, contestantKey(ev.ContestantID), redis.Z{Score: indexScore(ev), Member: ev.ID.String()})
		return nil
	})
	if err != nil {
		return Evaluation{}, apperr.Store("create", err)
	}
	return ev, nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (Evaluation, bool, error) {
	return s.get(ctx, s.client, id)
}

// hashReader is satisfied by both *redis.Client and *redis.Tx.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *RedisStore) get(ctx context.Context, c hashReader, id uuid.UUID) (Evaluation, bool, error) {
	fields, err := c.HGetAll(ctx, evaluationKey(id)).Result()
	if err != nil {
		return Evaluation{}, false, apperr.Store("get", err)
	}
	if len(fields) == 0 {
		return Evaluation{}, false, nil
	}
	ev, err := decodeEvaluation(fields)
	if err != nil {
		return Evaluation{}, false, apperr.Store("get", err)
	}
	return ev, true, nil
}

func (s *RedisStore) GetByContestant(ctx context.Context, contestantID string) ([]Evaluation, error) {
	ids, err := s.client.ZRange(ctx, contestantKey(contestantID), 0, -1).Result()
	if err != nil {
		return nil, apperr.Store("list", err)
	}
	if len(ids) == 0 {
		return []Evaluation{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, evaluationKeyPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Store("list", err)
	}

	out := make([]Evaluation, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Deleted between the index read and the hash read.
			continue
		}
		ev, err := decodeEvaluation(fields)
		if err != nil {
			return nil, apperr.Store("list", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, id uuid.UUID, patch Patch) (Evaluation, bool, error) {
	key := evaluationKey(id)
	var (
		updated Evaluation
		found   bool
	)
	txf := func(tx *redis.Tx) error {
		prev, ok, err := s.get(ctx, tx, id)
		if err != nil || !ok {
			found = false
			return err
		}
		found = true
		updated = prev
		patch.Apply(&updated)
		updated.UpdatedAt = nextUpdate(prev.UpdatedAt)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeEvaluation(updated))
			if updated.ContestantID != prev.ContestantID {
				pipe.ZRem(ctx, contestantKey(prev.ContestantID), id.String())
				pipe.ZAdd(ctx, contestantKey(updated.ContestantID), redis.Z{Score: indexScore(updated), Member: id.String()})
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Evaluation{}, false, apperr.Store("update", err)
		}
		return updated, found, nil
	}
	return Evaluation{}, false, apperr.Store("update", fmt.Errorf("evaluation %s: too much contention", id))
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	key := evaluationKey(id)
	var found bool
	txf := func(tx *redis.Tx) error {
		contestantID, err := tx.HGet(ctx, key, "contestant_id").Result()
		if errors.Is(err, redis.Nil) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, contestantKey(contestantID), id.String())
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, apperr.Store("delete", err)
		}
		return found, nil
	}
	return false, apperr.Store("delete", fmt.Errorf("evaluation %s: too much contention", id))
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
