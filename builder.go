package otpengine

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/bytemarket/otpengine/password"
)

// Builder defines a public type used by otpengine APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	notifier Notifier
	users    UserProvider

	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithNotifier describes the withnotifier operation and its observable behavior.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithUserProvider describes the withuserprovider operation and its observable behavior.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.users = up
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	if b.users == nil {
		return nil, errors.New("user provider required")
	}

	hasher, err := password.NewBcrypt(password.Config{Cost: cfg.Password.BcryptCost})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		challenges: newChallengeStore(b.redis, cfg.Challenge, cfg.StoreTimeout),
		guard:      newAbuseGuard(b.redis, cfg.Guard, cfg.Challenge.RedisPrefix, cfg.StoreTimeout),
		notifier:   b.notifier,
		users:      b.users,
		hasher:     hasher,
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:    NewMetrics(cfg.Metrics),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}

	b.built = true

	return engine, nil
}
