package redisinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/attendance-notifier/internal/config"
	"github.com/attendance-notifier/internal/pkg/id"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lease never removes a lock taken over by another process.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// renewScript pushes the expiry out only while the key still holds our token.
const renewScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("pexpire", KEYS[1], ARGV[2]) else return 0 end`

// Client is the subset of go-redis the lock uses.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Lock is a single-holder lease across processes (SET NX PX + compare-and-delete).
// While held, the lease is renewed every third of its TTL so a slow sweep keeps it.
type Lock struct {
	client Client
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewClient connects to cfg.RedisAddr and verifies the connection.
func NewClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewLock(client Client, key string, ttl time.Duration, logger zerolog.Logger) *Lock {
	return &Lock{client: client, key: key, ttl: ttl, logger: logger}
}

// TryLock acquires the lease without waiting. ok is false when another holder has it.
func (l *Lock) TryLock(ctx context.Context) (func(), bool, error) {
	token := id.New()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(token, stop, done)

	release := func() {
		close(stop)
		<-done
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := l.client.Eval(ctx, releaseScript, []string{l.key}, token).Int64()
		switch {
		case err != nil:
			l.logger.Warn().Err(err).Str("key", l.key).Msg("release lock failed; lease will expire")
		case n == 0:
			l.logger.Warn().Str("key", l.key).Msg("lease expired before release; another sweep may have overlapped")
		}
	}
	return release, true, nil
}

func (l *Lock) renew(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := l.client.Eval(ctx, renewScript, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				l.logger.Warn().Err(err).Str("key", l.key).Msg("renew lock failed")
				continue
			}
			if n == 0 {
				l.logger.Warn().Str("key", l.key).Msg("lease lost, stopping renewal")
				return
			}
		}
	}
}
