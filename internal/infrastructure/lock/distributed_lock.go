package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"couponhub/internal/model"

	"github.com/go-redis/redis/v8"
)

// A lock is SET key token NX EX ttl. The token identifies the holder so that
// Unlock never deletes a lock that expired and was taken by someone else.

var (
	ErrLockFailed = errors.New("acquire lock failed")
)

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock makes one attempt.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock until it succeeds, ctx ends or maxRetries is used up.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

func (l *DistributedLock) Key() string {
	return l.key
}

// NewWalletLock serialises balance mutations of one wallet. Different owners
// never contend.
func NewWalletLock(client *redis.Client, owner model.Owner, token string) *DistributedLock {
	key := fmt.Sprintf("wallet:lock:%s:%d", owner.Type, owner.ID)
	return NewDistributedLock(client, key, token, 30*time.Second)
}
