package switches

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRepository stores each switch as a JSON field of one Redis hash.
// HSET of a single field is atomic.
type RedisRepository struct {
	client *redis.Client
	key    string
}

// NewRedisRepository uses hash key. Close closes client.
func NewRedisRepository(client *redis.Client, key string) *RedisRepository {
	return &RedisRepository{client: client, key: key}
}

// LoadAll reads the whole hash.
func (r *RedisRepository) LoadAll(ctx context.Context) (map[string]Record, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.key, err)
	}
	return decodeHash(fields)
}

// decodeHash turns hash fields into records, collecting corrupt ones.
func decodeHash(fields map[string]string) (map[string]Record, error) {
	records := make(map[string]Record, len(fields))
	var corrupt []error
	for id, raw := range fields {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			corrupt = append(corrupt, fmt.Errorf("switch %s: %w", id, err))
			continue
		}
		if rec.ID != id {
			corrupt = append(corrupt, fmt.Errorf("switch %s: record carries id %q", id, rec.ID))
			continue
		}
		if rec.Attributes == nil {
			rec.Attributes = Attributes{}
		}
		if err := rec.Validate(); err != nil {
			corrupt = append(corrupt, err)
			continue
		}
		records[id] = rec
	}
	return records, corruptError(corrupt)
}

// Save writes one field.
func (r *RedisRepository) Save(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling switch %s: %w", rec.ID, err)
	}
	if err := r.client.HSet(ctx, r.key, rec.ID, raw).Err(); err != nil {
		return fmt.Errorf("saving switch %s: %w", rec.ID, err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
