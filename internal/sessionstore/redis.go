// Package sessionstore keeps live session snapshots in Redis so several
// coach processes can share sessions. A per-session lock serializes turns
// across processes the way the in-process registry does within one.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
)

var (
	// ErrNotFound is returned when no snapshot exists for a session.
	ErrNotFound = errors.New("snapshot not found")
	// ErrLocked is returned when a session lock could not be acquired in time.
	ErrLocked = errors.New("session locked")
)

// #region config

// Config configures the Redis store.
type Config struct {
	Prefix   string        // key prefix, default "negotiation"
	TTL      time.Duration // snapshot expiry, 0 = no expiry
	LockTTL  time.Duration // lock lease, default 5s
	LockWait time.Duration // how long Lock retries, default 2s
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "negotiation"
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Second
	}
	if c.LockWait <= 0 {
		c.LockWait = 2 * time.Second
	}
	return c
}

// #endregion config

// #region store

// Store keeps JSON snapshots of engine.State under "{prefix}:session:{id}".
type Store struct {
	client *redis.Client
	cfg    Config
}

// New wraps an existing client.
func New(client *redis.Client, cfg Config) *Store {
	return &Store{client: client, cfg: cfg.withDefaults()}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr string, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(client, cfg), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.cfg.Prefix, id)
}

func (s *Store) lockKey(id string) string {
	return fmt.Sprintf("%s:lock:%s", s.cfg.Prefix, id)
}

// #endregion store

// #region snapshots

// Save writes st as the session's snapshot.
func (s *Store) Save(ctx context.Context, id string, st engine.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(id), data, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", id, err)
	}
	return nil
}

// Load reads the session's snapshot. A missing snapshot matches both
// ErrNotFound and engine.ErrSessionNotFound.
func (s *Store) Load(ctx context.Context, id string) (engine.State, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.State{}, fmt.Errorf("load %s: %w: %w", id, ErrNotFound, engine.ErrSessionNotFound)
	}
	if err != nil {
		return engine.State{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	var st engine.State
	if err := json.Unmarshal(data, &st); err != nil {
		return engine.State{}, fmt.Errorf("unmarshal snapshot %s: %w", id, err)
	}
	return st, nil
}

// Delete removes the session's snapshot. Missing snapshots are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}

// IDs lists sessions with a stored snapshot, in SCAN order.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	prefix := s.sessionKey("")
	var ids []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return ids, nil
}

// #endregion snapshots

// #region lock

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock acquires the session's lock, retrying until LockWait elapses or ctx
// is done. The returned func releases it.
func (s *Store) Lock(ctx context.Context, id string) (func(), error) {
	key := s.lockKey(id)
	token := uuid.NewString()
	deadline := time.Now().Add(s.cfg.LockWait)
	for {
		ok, err := s.client.SetNX(ctx, key, token, s.cfg.LockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", id, err)
		}
		if ok {
			return func() {
				// Use a fresh context so release still happens after ctx is cancelled.
				releaseScript.Run(context.Background(), s.client, []string{key}, token)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s: %w", id, ErrLocked)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// #endregion lock
