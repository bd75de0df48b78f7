package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"pyqtest-server-go/apierr"
	"pyqtest-server-go/logger"
)

const (
	subjectsKey = "subjects" // Set: all subject IDs
	papersKey   = "papers"   // Set: all paper IDs

	subjectPrefix  = "subject:"  // Hash subject:{id}; sets/zsets subject:{id}:*
	chapterPrefix  = "chapter:"  // Hash chapter:{id}; chapter:{id}:topics zset
	topicPrefix    = "topic:"    // Hash topic:{id}; topic:{id}:subtopics zset
	subtopicPrefix = "subtopic:" // Hash subtopic:{id}
	questionPrefix = "question:" // JSON question:{id}
	paperPrefix    = "paper:"    // JSON paper:{id}; paper:{id}:attempts, paper:{id}:results
	attemptPrefix  = "attempt:"  // JSON attempt:{id}
	resultPrefix   = "result:"   // JSON result:{attemptId}
	studentPrefix  = "student:"  // student:{id}:attempts set, student:{id}:results zset
)

// RedisService stores curriculum, question bank, papers, attempts and results
// in Redis.
type RedisService struct {
	Client *redis.Client
	log    *logger.Logger
	now    func() time.Time
	newID  func() string
}

// NewRedisService creates a new RedisService instance
func NewRedisService(client *redis.Client, log *logger.Logger) *RedisService {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisService{
		Client: client,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func key(prefix, id string, suffix ...string) string {
	k := prefix + id
	for _, s := range suffix {
		k += ":" + s
	}
	return k
}

func (s *RedisService) setJSON(ctx context.Context, k string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k, err)
	}
	if err := s.Client.Set(ctx, k, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s to Redis: %w", k, err)
	}
	return nil
}

// getJSON loads k into v and reports whether the key existed.
func (s *RedisService) getJSON(ctx context.Context, k string, v interface{}) (bool, error) {
	data, err := s.Client.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s from Redis: %w", k, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", k, err)
	}
	return true, nil
}

// getJSONMany loads the JSON values stored under keys, skipping keys that have
// gone missing. decode is called for each value in key order.
func (s *RedisService) getJSONMany(ctx context.Context, keys []string, decode func(data []byte) error) error {
	if len(keys) == 0 {
		return nil
	}
	vals, err := s.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to read %d keys from Redis: %w", len(keys), err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			s.log.Warn("index points at missing record", "key", keys[i])
			continue
		}
		if err := decode([]byte(str)); err != nil {
			return fmt.Errorf("decode %s: %w", keys[i], err)
		}
	}
	return nil
}

// appendDecoded returns a getJSONMany callback that decodes into *out.
func appendDecoded[T any](out *[]T) func(data []byte) error {
	return func(data []byte) error {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*out = append(*out, v)
		return nil
	}
}

// hashesOf fetches the hashes of ids in one pipeline, preserving order and
// skipping ids whose hash is gone.
func (s *RedisService) hashesOf(ctx context.Context, prefix string, ids []string) ([]map[string]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := s.Client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, key(prefix, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read %s records from Redis: %w", prefix, err)
	}
	out := make([]map[string]string, 0, len(ids))
	for i, cmd := range cmds {
		data := cmd.Val()
		if len(data) == 0 {
			s.log.Warn("index points at missing record", "key", key(prefix, ids[i]))
			continue
		}
		out = append(out, data)
	}
	return out, nil
}

func sortBy[T any](xs []T, less func(a, b T) bool) {
	sort.SliceStable(xs, func(i, j int) bool { return less(xs[i], xs[j]) })
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func notFound(what, id string) error {
	return apierr.NotFoundf("%s %s not found", what, id)
}

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}
