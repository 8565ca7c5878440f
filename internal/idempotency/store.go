// Package idempotency stores the first response to each Idempotency-Key so
// retried mutations replay it instead of running twice. Postgres is the
// source of truth; Redis caches finished responses.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("idempotency key not found")
	ErrHashMismatch = errors.New("idempotency key reused with a different request")
	ErrInProgress   = errors.New("idempotency key in progress")
)

const (
	redisKeyPrefix      = "loyalty:idempotency"
	defaultPollInterval = 50 * time.Millisecond
)

// Record is a finished response.
type Record struct {
	Key         string
	RequestHash string
	Status      int
	Body        []byte
	ContentType string
	// ServedBy is "redis" or "postgres".
	ServedBy string
}

// QuerySource hands out the query set; repository.Store satisfies it.
type QuerySource interface {
	Queries() repository.Querier
}

type Store struct {
	redis        redis.Cmdable
	source       QuerySource
	ttl          time.Duration
	pollInterval time.Duration
}

// NewStore builds a store. redis may be nil, in which case every lookup goes
// to Postgres.
func NewStore(rdb redis.Cmdable, source QuerySource, ttl time.Duration) *Store {
	return &Store{redis: rdb, source: source, ttl: ttl, pollInterval: defaultPollInterval}
}

// ScopedKey namespaces a client key by caller so two customers cannot collide
// on the same header value.
func ScopedKey(scope, key string) string {
	if scope == "" {
		return key
	}
	return scope + "|" + key
}

type cacheEnvelope struct {
	Key         string `json:"key"`
	Hash        string `json:"hash"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

// Lookup returns the finished response for key. It fails with ErrNotFound
// for an unknown key, ErrInProgress while the first request still runs and
// ErrHashMismatch when the key was used for a different request.
func (s *Store) Lookup(ctx context.Context, key, requestHash string) (*Record, error) {
	if rec, ok, err := s.lookupCache(ctx, key, requestHash); ok || err != nil {
		return rec, err
	}

	row, err := s.source.Queries().GetIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if row.RequestHash != requestHash {
		return nil, ErrHashMismatch
	}
	if row.InProgress {
		return nil, ErrInProgress
	}
	rec := recordFromRow(row)
	s.cache(ctx, *rec)
	return rec, nil
}

func (s *Store) lookupCache(ctx context.Context, key, requestHash string) (*Record, bool, error) {
	if s.redis == nil {
		return nil, false, nil
	}
	val, err := s.redis.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("redis idempotency lookup failed", zap.Error(err))
		}
		return nil, false, nil
	}
	var env cacheEnvelope
	if err := json.Unmarshal([]byte(val), &env); err != nil {
		return nil, false, nil
	}
	if env.Hash != requestHash {
		return nil, true, ErrHashMismatch
	}
	return &Record{
		Key:         env.Key,
		RequestHash: env.Hash,
		Status:      env.Status,
		Body:        env.Body,
		ContentType: env.ContentType,
		ServedBy:    "redis",
	}, true, nil
}

// Reserve claims key for the current request. It reports false when another
// request holds or finished the key.
func (s *Store) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	_, err := s.source.Queries().ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Method:         method,
		Path:           path,
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("reserve idempotency key: %w", err)
}

// Finalize stores the response of a reserved key and caches it.
func (s *Store) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*Record, error) {
	row, err := s.source.Queries().FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{
		ResponseStatus: int32(status),
		ResponseBody:   body,
		ContentType:    contentType,
		IdempotencyKey: key,
		RequestHash:    requestHash,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}
	rec := recordFromRow(row)
	s.cache(ctx, *rec)
	return rec, nil
}

// WaitForCompletion polls until the request holding key finishes or ctx ends.
func (s *Store) WaitForCompletion(ctx context.Context, key, requestHash string) (*Record, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		rec, err := s.Lookup(ctx, key, requestHash)
		if !errors.Is(err, ErrInProgress) {
			return rec, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func recordFromRow(row repository.IdempotencyKey) *Record {
	return &Record{
		Key:         row.IdempotencyKey,
		RequestHash: row.RequestHash,
		Status:      int(row.ResponseStatus),
		Body:        row.ResponseBody,
		ContentType: row.ContentType,
		ServedBy:    "postgres",
	}
}

func (s *Store) cache(ctx context.Context, rec Record) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(cacheEnvelope{
		Key:         rec.Key,
		Hash:        rec.RequestHash,
		Status:      rec.Status,
		Body:        rec.Body,
		ContentType: rec.ContentType,
	})
	if err != nil {
		zap.L().Warn("marshal idempotency cache", zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, redisKey(rec.Key), payload, s.ttl).Err(); err != nil {
		zap.L().Warn("redis idempotency cache set failed", zap.Error(err))
	}
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}
