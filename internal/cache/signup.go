package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modelforge/waitlist/internal/model"
	"github.com/modelforge/waitlist/internal/store"
)

// Redis keys for the signup store.
const (
	emailsKey  = "waitlist:emails"  // SET of registered addresses
	countKey   = "waitlist:count"   // running total, seeded on first use
	signupsKey = "waitlist:signups" // ZSET of JSON records scored by count
	updatedKey = "waitlist:updated" // last mutation, RFC3339
)

var _ store.Store = (*Cache)(nil)

// addSignupScript performs the dedupe-and-increment step atomically.
// Redis runs scripts one at a time, so no two callers can both see the
// address as missing.
var addSignupScript = redis.NewScript(`
	local emails = KEYS[1]
	local count_key = KEYS[2]
	local signups = KEYS[3]
	local updated = KEYS[4]
	local email = ARGV[1]
	local seed = ARGV[2]
	local record = ARGV[3]
	local now = ARGV[4]

	redis.call('SETNX', count_key, seed)

	if redis.call('SISMEMBER', emails, email) == 1 then
		return {0, tonumber(redis.call('GET', count_key))}
	end

	redis.call('SADD', emails, email)
	local count = redis.call('INCR', count_key)
	redis.call('ZADD', signups, count, record)
	redis.call('SET', updated, now)

	return {1, count}
`)

// getCountScript reads the count, seeding it if absent.
var getCountScript = redis.NewScript(`
	redis.call('SETNX', KEYS[1], ARGV[1])
	return tonumber(redis.call('GET', KEYS[1]))
`)

// TryAddSignup implements store.Store.
func (c *Cache) TryAddSignup(ctx context.Context, email string) (store.AddResult, error) {
	record := store.NewRecord(email, c.now())
	data, err := json.Marshal(record)
	if err != nil {
		return store.AddResult{}, fmt.Errorf("%w: encode record: %v", store.ErrStorageUnavailable, err)
	}

	result, err := addSignupScript.Run(ctx, c.client,
		[]string{emailsKey, countKey, signupsKey, updatedKey},
		email, c.seed, string(data), record.SubmittedAt.Format(time.RFC3339Nano),
	).Int64Slice()
	if err != nil {
		return store.AddResult{}, fmt.Errorf("%w: add signup: %v", store.ErrStorageUnavailable, err)
	}

	if result[0] == 0 {
		return store.AddResult{Accepted: false, Count: result[1]}, store.ErrDuplicateSignup
	}

	return store.AddResult{Accepted: true, Count: result[1]}, nil
}

// GetCount implements store.Store.
func (c *Cache) GetCount(ctx context.Context) (int64, error) {
	count, err := getCountScript.Run(ctx, c.client, []string{countKey}, c.seed).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: get count: %v", store.ErrStorageUnavailable, err)
	}
	return count, nil
}

// ListSignups implements store.Store.
func (c *Cache) ListSignups(ctx context.Context) ([]model.SignupRecord, error) {
	members, err := c.client.ZRevRange(ctx, signupsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list signups: %v", store.ErrStorageUnavailable, err)
	}

	records := make([]model.SignupRecord, 0, len(members))
	for _, member := range members {
		var rec model.SignupRecord
		if err := json.Unmarshal([]byte(member), &rec); err != nil {
			return nil, fmt.Errorf("%w: decode signup: %v", store.ErrStorageUnavailable, err)
		}
		records = append(records, rec)
	}

	return records, nil
}
