package redis

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

// PairLocker implements ports.PairLocker with one SET NX lock per account.
// Keys are taken in sorted order; each lock expires after ttl so a crashed
// holder cannot wedge an account.
type PairLocker struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	log    zerolog.Logger
	token  func() string
}

// NewPairLocker creates a distributed pair locker.
func NewPairLocker(client goredis.UniversalClient, ttl, wait time.Duration, log zerolog.Logger) *PairLocker {
	return &PairLocker{
		client: client,
		prefix: "lock:account:",
		ttl:    ttl,
		wait:   wait,
		log:    log,
		token:  uuid.NewString,
	}
}

// Acquire takes every key or none.
func (l *PairLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ordered := append([]string(nil), keys...)
	sort.Strings(ordered)

	token := l.token()
	var held []string
	for i, k := range ordered {
		if i > 0 && k == ordered[i-1] {
			continue
		}
		if err := l.waitLock(ctx, l.prefix+k, token); err != nil {
			l.unlock(held, token)
			return nil, err
		}
		held = append(held, l.prefix+k)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlock(held, token) })
	}, nil
}

// waitLock retries SET NX with jitter until wait elapses or ctx is done.
func (l *PairLocker) waitLock(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("failed to acquire lock for key %s within %s", key, l.wait)
		}

		timer := time.NewTimer(time.Duration(rand.Intn(100)) * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *PairLocker) unlock(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := len(keys) - 1; i >= 0; i-- {
		res, err := l.client.Eval(ctx, unlockScript, []string{keys[i]}, token).Result()
		if err != nil {
			l.log.Error().Err(err).Str("key", keys[i]).Msg("unlock failed")
			continue
		}
		if res == int64(0) {
			l.log.Warn().Str("key", keys[i]).Msg("lock expired before release")
		}
	}
}
