package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockUnavailable = errors.New("lock_unavailable")
	ErrLeaseLost       = errors.New("lease_lost")
)

// Both scripts act only while KEYS[1] still holds the caller's token.
const (
	leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`
	leaseExtendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`
)

// Locker hands out leases on background jobs so a sweep runs on one
// instance at a time.
type Locker struct {
	client  redis.UniversalClient
	release *redis.Script
	extend  *redis.Script
}

func NewLocker(client redis.UniversalClient) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(leaseReleaseScript),
		extend:  redis.NewScript(leaseExtendScript),
	}
}

// Lease is a held job lock. Only its holder can extend or release it.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

// Acquire returns a nil lease without error when another holder owns key.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockUnavailable
	}
	key = strings.TrimSpace(key)
	if key == "" || ttl <= 0 {
		return nil, errors.New("lock key and ttl are required")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

// Extend pushes the expiry out to ttl from now. ErrLeaseLost means the lease
// expired and may now belong to someone else.
func (ls *Lease) Extend(ctx context.Context, ttl time.Duration) error {
	if ls == nil {
		return ErrLeaseLost
	}
	res, err := ls.locker.extend.Run(ctx, ls.locker.client, []string{ls.key}, ls.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (ls *Lease) Release(ctx context.Context) error {
	if ls == nil {
		return nil
	}
	return ls.locker.release.Run(ctx, ls.locker.client, []string{ls.key}, ls.token).Err()
}
