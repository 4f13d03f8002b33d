package presence

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/damoang/angple-forum/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Redis keys
const (
	redisIndexKey = "forum:online"      // ZSET session -> last seen (unix ms)
	redisDataKey  = "forum:online:data" // HASH session -> entry JSON
)

// RedisStore keeps presence in a sorted set plus a hash of payloads, so every
// API instance sees the same window
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Upsert writes the index score and payload in one transaction
func (s *RedisStore) Upsert(ctx context.Context, entry domain.OnlineEntry) error {
	data, err := json.Marshal(redisEntry(entry))
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{
			Score:  float64(entry.LastSeen.UnixMilli()),
			Member: entry.SessionID,
		})
		pipe.HSet(ctx, redisDataKey, entry.SessionID, data)
		return nil
	})
	return err
}

// Since returns entries seen at or after cutoff, newest first
func (s *RedisStore) Since(ctx context.Context, cutoff time.Time) ([]domain.OnlineEntry, error) {
	ids, err := s.client.ZRevRangeByScore(ctx, redisIndexKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	values, err := s.client.HMGet(ctx, redisDataKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]domain.OnlineEntry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// payload swept between the two reads
			continue
		}
		var e storedEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		entries = append(entries, e.toDomain())
	}
	sortNewestFirst(entries)
	return entries, nil
}

// Sweep removes entries scored before cutoff from both keys
func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	rangeBy := &redis.ZRangeBy{Min: "-inf", Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)}
	ids, err := s.client.ZRangeByScore(ctx, redisIndexKey, rangeBy).Result()
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, redisIndexKey, members...)
		pipe.HDel(ctx, redisDataKey, ids...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// storedEntry is the hash payload; the session id is kept inside since the
// domain type hides it from API responses
type storedEntry struct {
	SessionID  string          `json:"session_id"`
	MemberID   uint64          `json:"member_id"`
	MemberName string          `json:"member_name,omitempty"`
	Action     json.RawMessage `json:"action,omitempty"`
	LastSeen   time.Time       `json:"last_seen"`
}

func redisEntry(e domain.OnlineEntry) storedEntry {
	return storedEntry{
		SessionID:  e.SessionID,
		MemberID:   e.MemberID,
		MemberName: e.MemberName,
		Action:     json.RawMessage(e.Action),
		LastSeen:   e.LastSeen,
	}
}

func (e storedEntry) toDomain() domain.OnlineEntry {
	return domain.OnlineEntry{
		SessionID:  e.SessionID,
		MemberID:   e.MemberID,
		MemberName: e.MemberName,
		Action:     []byte(e.Action),
		LastSeen:   e.LastSeen.UTC(),
	}
}
