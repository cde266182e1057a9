package otpengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errGuardRedisUnavailable = errors.New("abuse guard redis unavailable")

// Lock and counter keys are per identity, not per purpose: a caller
// hammering the registration flow is equally locked out of password reset.
func attemptLockKey(prefix, identity string) string {
	return prefix + "_lock:" + identity
}

func spamLockKey(prefix, identity string) string {
	return prefix + "_spam_lock:" + identity
}

func cooldownKey(prefix, identity string) string {
	return prefix + "_cooldown:" + identity
}

func requestCountKey(prefix, identity string) string {
	return prefix + "_request_count:" + identity
}

type guardDecision struct {
	allowed    bool
	reason     BlockReason
	retryAfter time.Duration
}

// abuseGuard layers the three issuance locks over Redis. It is advisory
// only: it never touches challenge state, and the engine must consult it
// before acting for the lock invariants to hold.
type abuseGuard struct {
	redis   *redis.Client
	config  GuardConfig
	prefix  string
	timeout time.Duration
}

func newAbuseGuard(redisClient *redis.Client, cfg GuardConfig, prefix string, timeout time.Duration) *abuseGuard {
	return &abuseGuard{
		redis:   redisClient,
		config:  cfg,
		prefix:  prefix,
		timeout: timeout,
	}
}

func (g *abuseGuard) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

// CheckIssuance reports the first active lock in severity order: attempt
// lock, spam lock, cooldown. The order matters — the longer locks must win
// so a locked-out caller is never told to retry in 60 seconds.
func (g *abuseGuard) CheckIssuance(ctx context.Context, identity string) (guardDecision, error) {
	ctx, cancel := g.opContext(ctx)
	defer cancel()

	checks := []struct {
		key    string
		reason BlockReason
	}{
		{attemptLockKey(g.prefix, identity), BlockAttemptLock},
		{spamLockKey(g.prefix, identity), BlockSpamLock},
		{cooldownKey(g.prefix, identity), BlockCooldown},
	}

	for _, check := range checks {
		ttl, err := g.redis.TTL(ctx, check.key).Result()
		if err != nil {
			return guardDecision{}, fmt.Errorf("%w: %v", errGuardRedisUnavailable, err)
		}
		if ttl > 0 {
			return guardDecision{reason: check.reason, retryAfter: ttl}, nil
		}
	}

	return guardDecision{allowed: true}, nil
}

// CheckSubmission gates verification attempts on the attempt lock alone.
// Cooldown and spam lock block issuance only.
func (g *abuseGuard) CheckSubmission(ctx context.Context, identity string) (guardDecision, error) {
	ctx, cancel := g.opContext(ctx)
	defer cancel()

	ttl, err := g.redis.TTL(ctx, attemptLockKey(g.prefix, identity)).Result()
	if err != nil {
		return guardDecision{}, fmt.Errorf("%w: %v", errGuardRedisUnavailable, err)
	}
	if ttl > 0 {
		return guardDecision{reason: BlockAttemptLock, retryAfter: ttl}, nil
	}

	return guardDecision{allowed: true}, nil
}

// RecordIssuance sets the cooldown and advances the rolling request count.
// The count uses a single atomic INCR — concurrent issuances each observe a
// distinct value, so the spam-lock escalation cannot be undercounted. When
// the count reaches MaxRequests the spam lock is armed immediately,
// pre-emptively blocking the next request rather than this one.
func (g *abuseGuard) RecordIssuance(ctx context.Context, identity string) error {
	ctx, cancel := g.opContext(ctx)
	defer cancel()

	countKey := requestCountKey(g.prefix, identity)

	pipe := g.redis.TxPipeline()
	pipe.Set(ctx, cooldownKey(g.prefix, identity), "true", g.config.CooldownTTL)
	incr := pipe.Incr(ctx, countKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", errGuardRedisUnavailable, err)
	}

	count := incr.Val()
	if count == 1 {
		if err := g.redis.Expire(ctx, countKey, g.config.RequestWindow).Err(); err != nil {
			return fmt.Errorf("%w: %v", errGuardRedisUnavailable, err)
		}
	}

	if count >= int64(g.config.MaxRequests) {
		if err := g.redis.Set(ctx, spamLockKey(g.prefix, identity), "locked", g.config.SpamLockTTL).Err(); err != nil {
			return fmt.Errorf("%w: %v", errGuardRedisUnavailable, err)
		}
	}

	return nil
}
