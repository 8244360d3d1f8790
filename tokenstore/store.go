package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/gateAuth/internal"
	"github.com/MrEthical07/gateAuth/refresh"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	persistStatusConflict  int64 = 0
	persistStatusWritten   int64 = 1
	persistStatusCollision int64 = 2
)

const (
	fieldVersion = "v"
	fieldData    = "d"
)

// KEYS[1]   collection hash
// KEYS[2..] index keys of current tokens (ARGV[4] of them), then pruned ones
// ARGV[1]   expected version, ARGV[2] encoded collection
// ARGV[3]   principal id, ARGV[4] number of current-token keys
const persistScript = `
local current = tonumber(redis.call("HGET", KEYS[1], "v") or "0")
if current ~= tonumber(ARGV[1]) then
  return {0, current}
end

local owner_id = ARGV[3]
local live = tonumber(ARGV[4])

for i = 2, live + 1 do
  local owner = redis.call("GET", KEYS[i])
  if owner and owner ~= owner_id then
    return {2, current}
  end
end

for i = 2, live + 1 do
  redis.call("SET", KEYS[i], owner_id)
end

for i = live + 2, #KEYS do
  local owner = redis.call("GET", KEYS[i])
  if owner == owner_id then
    redis.call("DEL", KEYS[i])
  end
end

local next_version = current + 1
redis.call("HSET", KEYS[1], "v", next_version, "d", ARGV[2])
return {1, next_version}
`

var persistLua = redis.NewScript(persistScript)

// KEYS[1] collection hash, KEYS[2] reuse counter, KEYS[3..] index keys
// ARGV[1] expected version, ARGV[2] principal id
const deleteScript = `
local current = tonumber(redis.call("HGET", KEYS[1], "v") or "0")
if current ~= tonumber(ARGV[1]) then
  return 0
end

for i = 3, #KEYS do
  if redis.call("GET", KEYS[i]) == ARGV[2] then
    redis.call("DEL", KEYS[i])
  end
end

redis.call("DEL", KEYS[1], KEYS[2])
return 1
`

var deleteLua = redis.NewScript(deleteScript)

const deleteAttempts = 5

// Store is a Redis-backed [refresh.Store].
//
//	Performance: FindByToken is 2 round trips (GET + HMGET); Persist is 1 script call.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

var _ refresh.Store = (*Store)(nil)

// NewStore creates a [Store] using prefix as the key namespace.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "grt"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) collectionKey(principalID string) string {
	return s.prefix + ":c:" + principalID
}

func (s *Store) indexKey(token string) string {
	return s.prefix + ":t:" + internal.HashToken(token)
}

func (s *Store) reuseKey(principalID string) string {
	return s.prefix + ":reuse:" + principalID
}

// Load returns the principal's collection. A principal without stored tokens
// yields an empty collection at version 0.
func (s *Store) Load(ctx context.Context, principalID, username string) (*refresh.Collection, error) {
	if principalID == "" {
		return nil, errors.New("principal id required")
	}

	vals, err := s.redis.HMGet(ctx, s.collectionKey(principalID), fieldVersion, fieldData).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	version, data, ok := parseHash(vals)
	if !ok {
		return refresh.NewCollection(principalID, username), nil
	}

	c, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if username != "" {
		c.Username = username
	}
	c.Version = version

	return c, nil
}

// FindByToken resolves the owning principal through the token index and
// loads its collection. A dangling index entry is reported as not found.
func (s *Store) FindByToken(ctx context.Context, token string) (*refresh.Collection, error) {
	if token == "" {
		return nil, refresh.ErrNotFound
	}

	principalID, err := s.redis.Get(ctx, s.indexKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, refresh.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	c, err := s.Load(ctx, principalID, "")
	if err != nil {
		return nil, err
	}
	if c.Find(token) == nil {
		return nil, refresh.ErrNotFound
	}

	return c, nil
}

// Exists reports whether token is indexed for any principal.
func (s *Store) Exists(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.indexKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Persist writes c if nobody else has written the principal's collection
// since it was loaded. On success c.Version advances and pruned tokens are
// forgotten.
func (s *Store) Persist(ctx context.Context, c *refresh.Collection) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}

	pruned := c.Pruned()
	keys := make([]string, 0, 1+len(c.Tokens)+len(pruned))
	keys = append(keys, s.collectionKey(c.PrincipalID))
	for _, t := range c.Tokens {
		keys = append(keys, s.indexKey(t.Token))
	}
	for _, token := range pruned {
		keys = append(keys, s.indexKey(token))
	}

	res, err := persistLua.Run(ctx, s.redis, keys,
		strconv.FormatInt(c.Version, 10),
		data,
		c.PrincipalID,
		len(c.Tokens),
	).Int64Slice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}

	switch res[0] {
	case persistStatusWritten:
		c.MarkPersisted(res[1])
		return nil
	case persistStatusConflict:
		return refresh.ErrConflict
	case persistStatusCollision:
		return refresh.ErrCollision
	default:
		return fmt.Errorf("%w: unknown persist status %d", ErrRedisUnavailable, res[0])
	}
}

// Delete removes the principal's collection and every index entry pointing
// at it. Used when the principal itself is deleted. The write is rejected
// and retried when a concurrent Persist moves the collection version.
func (s *Store) Delete(ctx context.Context, principalID string) error {
	for attempt := 0; attempt < deleteAttempts; attempt++ {
		c, err := s.Load(ctx, principalID, "")
		if err != nil {
			return err
		}
		deleted, err := s.deleteAt(ctx, c)
		if err != nil {
			return err
		}
		if deleted {
			return nil
		}
	}
	return refresh.ErrConflict
}

// deleteAt drops c and its index entries only if c.Version is still current.
func (s *Store) deleteAt(ctx context.Context, c *refresh.Collection) (bool, error) {
	keys := make([]string, 0, 2+len(c.Tokens))
	keys = append(keys, s.collectionKey(c.PrincipalID), s.reuseKey(c.PrincipalID))
	for _, t := range c.Tokens {
		keys = append(keys, s.indexKey(t.Token))
	}

	status, err := deleteLua.Run(ctx, s.redis, keys,
		strconv.FormatInt(c.Version, 10),
		c.PrincipalID,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return status == persistStatusWritten, nil
}

// TrackReuse counts reuse detections for a principal within a sliding ttl
// window and returns the current count.
func (s *Store) TrackReuse(ctx context.Context, principalID string, ttl time.Duration) (int64, error) {
	key := s.reuseKey(principalID)

	var incr *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return incr.Val(), nil
}

// Ping measures a Redis round trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func parseHash(vals []interface{}) (int64, []byte, bool) {
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return 0, nil, false
	}

	rawVersion, ok := vals[0].(string)
	if !ok {
		return 0, nil, false
	}
	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		return 0, nil, false
	}

	rawData, ok := vals[1].(string)
	if !ok {
		return 0, nil, false
	}

	return version, []byte(rawData), true
}
