package otpengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytemarket/otpengine/internal"
	"github.com/redis/go-redis/v9"
)

var (
	errChallengeRedisUnavailable = errors.New("challenge redis unavailable")
	errChallengeContention       = errors.New("challenge verify contention")
)

type verifyStatus uint8

const (
	verifyOK verifyStatus = iota
	verifyMismatch
	verifyExpired
	verifyLocked
)

type verifyResult struct {
	status    verifyStatus
	remaining int
}

// challengeStore owns the per-(identity, purpose) code and attempt-counter
// keys plus the password-reset verified flag. Lock keys are shared with the
// abuse guard through the package-level key builders in abuse_guard.go.
type challengeStore struct {
	redis   *redis.Client
	config  ChallengeConfig
	timeout time.Duration
}

func newChallengeStore(redisClient *redis.Client, cfg ChallengeConfig, timeout time.Duration) *challengeStore {
	return &challengeStore{
		redis:   redisClient,
		config:  cfg,
		timeout: timeout,
	}
}

func (s *challengeStore) codeKey(identity string, purpose Purpose) string {
	return s.config.RedisPrefix + ":" + string(purpose) + ":" + identity
}

func (s *challengeStore) attemptsKey(identity string, purpose Purpose) string {
	return s.config.RedisPrefix + "_attempts:" + string(purpose) + ":" + identity
}

func (s *challengeStore) verifiedKey(identity string) string {
	return s.config.RedisPrefix + "_reset_verified:" + identity
}

func (s *challengeStore) ttlFor(purpose Purpose) time.Duration {
	if purpose == PurposePasswordReset {
		return s.config.PasswordResetTTL
	}
	return s.config.RegistrationTTL
}

func (s *challengeStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Issue generates a fresh code and stores it with the purpose TTL,
// overwriting any live code for the same identity and purpose. The attempt
// counter is cleared in the same transaction so a superseded challenge
// starts with a clean slate.
func (s *challengeStore) Issue(ctx context.Context, identity string, purpose Purpose) (string, error) {
	code, err := internal.NewCode(s.config.CodeDigits)
	if err != nil {
		return "", err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.codeKey(identity, purpose), code, s.ttlFor(purpose))
	pipe.Del(ctx, s.attemptsKey(identity, purpose))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}

	return code, nil
}

// Verify matches a submitted code against the stored one inside an
// optimistic WATCH transaction over both the code and the attempt counter.
// Two concurrent wrong guesses cannot both observe the same attempt count:
// the loser's EXEC fails and it retries against the updated counter, so the
// lockout transition fires exactly once and the counter never passes
// MaxAttempts.
func (s *challengeStore) Verify(ctx context.Context, identity string, purpose Purpose, submitted string) (verifyResult, error) {
	const maxRetries = 4

	codeKey := s.codeKey(identity, purpose)
	attemptsKey := s.attemptsKey(identity, purpose)

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	for i := 0; i < maxRetries; i++ {
		var res verifyResult

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			stored, err := tx.Get(ctx, codeKey).Result()
			if errors.Is(err, redis.Nil) {
				res = verifyResult{status: verifyExpired}
				return nil
			}
			if err != nil {
				return err
			}

			attempts, err := tx.Get(ctx, attemptsKey).Int()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			attempts++

			if strings.TrimSpace(stored) == strings.TrimSpace(submitted) {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, codeKey, attemptsKey)
					return nil
				})
				if err != nil {
					return err
				}
				res = verifyResult{status: verifyOK}
				return nil
			}

			if attempts >= s.config.MaxAttempts {
				// Destroying the challenge with the lock bounds guessing to
				// MaxAttempts tries per lock window no matter how often the
				// caller resends.
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, attemptLockKey(s.config.RedisPrefix, identity), "locked", s.config.AttemptLockTTL)
					pipe.Del(ctx, codeKey, attemptsKey)
					return nil
				})
				if err != nil {
					return err
				}
				res = verifyResult{status: verifyLocked}
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, attemptsKey, attempts, s.config.AttemptsTTL)
				return nil
			})
			if err != nil {
				return err
			}
			res = verifyResult{status: verifyMismatch, remaining: s.config.MaxAttempts - attempts}
			return nil
		}, codeKey, attemptsKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return verifyResult{}, fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
		}

		return res, nil
	}

	return verifyResult{}, errChallengeContention
}

// Clear unconditionally deletes the code and attempt counter.
func (s *challengeStore) Clear(ctx context.Context, identity string, purpose Purpose) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.redis.Del(ctx, s.codeKey(identity, purpose), s.attemptsKey(identity, purpose)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}
	return nil
}

// MarkVerified arms the single-use password-reset hand-off flag.
func (s *challengeStore) MarkVerified(ctx context.Context, identity string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.verifiedKey(identity), "true", s.config.VerifiedTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}
	return nil
}

// ConsumeVerified atomically reads and deletes the verified flag. GETDEL
// makes consumption exactly-once: of two concurrent callers, one gets true
// and the other sees the key already gone.
func (s *challengeStore) ConsumeVerified(ctx context.Context, identity string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.redis.GetDel(ctx, s.verifiedKey(identity)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}
	return true, nil
}
