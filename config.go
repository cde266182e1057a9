package otpengine

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config defines a public type used by otpengine APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Challenge ChallengeConfig
	Guard     GuardConfig
	Password  PasswordConfig
	Audit     AuditConfig
	Metrics   MetricsConfig

	// StoreTimeout bounds every Redis round-trip. A timed-out check fails
	// closed: issuance and verification are denied, never waved through.
	StoreTimeout time.Duration
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig defines a public type used by otpengine APIs.
//
// ChallengeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ChallengeConfig struct {
	// CodeDigits is the length of the numeric code. Codes are drawn
	// uniformly from the full d-digit range with a non-zero leading digit
	// (4 digits: 1000–9999 inclusive, 9000 values).
	CodeDigits int

	RegistrationTTL  time.Duration
	PasswordResetTTL time.Duration

	// MaxAttempts wrong submissions destroy the challenge and arm the
	// attempt lock for AttemptLockTTL.
	MaxAttempts    int
	AttemptsTTL    time.Duration
	AttemptLockTTL time.Duration

	// VerifiedTTL is the window during which a successful password-reset
	// verification authorizes one SetNewPassword call.
	VerifiedTTL time.Duration

	RedisPrefix string
}

/*
====================================
GUARD CONFIG
====================================
*/

// GuardConfig defines a public type used by otpengine APIs.
//
// GuardConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GuardConfig struct {
	CooldownTTL time.Duration

	// MaxRequests issuances inside RequestWindow arm the spam lock for
	// SpamLockTTL. The lock is set pre-emptively when the count is reached,
	// blocking the next request rather than the current one.
	MaxRequests   int
	RequestWindow time.Duration
	SpamLockTTL   time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by otpengine APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	BcryptCost int
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by otpengine APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by otpengine APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: 4-digit codes, 5 minute
// registration TTL, 10 minute reset TTL, 3 attempts, 30 minute attempt lock,
// 60 second cooldown, 3 requests per rolling hour before the 1 hour spam
// lock.
func DefaultConfig() Config {
	return Config{
		Challenge: ChallengeConfig{
			CodeDigits:       4,
			RegistrationTTL:  5 * time.Minute,
			PasswordResetTTL: 10 * time.Minute,
			MaxAttempts:      3,
			AttemptsTTL:      5 * time.Minute,
			AttemptLockTTL:   30 * time.Minute,
			VerifiedTTL:      10 * time.Minute,
			RedisPrefix:      "otp",
		},
		Guard: GuardConfig{
			CooldownTTL:   time.Minute,
			MaxRequests:   3,
			RequestWindow: time.Hour,
			SpamLockTTL:   time.Hour,
		},
		Password: PasswordConfig{
			BcryptCost: bcrypt.DefaultCost,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		StoreTimeout: 2 * time.Second,
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
func (c Config) Validate() error {
	if c.Challenge.CodeDigits < 4 || c.Challenge.CodeDigits > 10 {
		return errors.New("Challenge.CodeDigits must be between 4 and 10")
	}
	if c.Challenge.RegistrationTTL <= 0 || c.Challenge.PasswordResetTTL <= 0 {
		return errors.New("Challenge TTLs must be positive")
	}
	if c.Challenge.MaxAttempts < 1 {
		return errors.New("Challenge.MaxAttempts must be at least 1")
	}
	if c.Challenge.AttemptsTTL <= 0 || c.Challenge.AttemptLockTTL <= 0 || c.Challenge.VerifiedTTL <= 0 {
		return errors.New("Challenge counter and lock TTLs must be positive")
	}
	if c.Challenge.RedisPrefix == "" {
		return errors.New("Challenge.RedisPrefix must not be empty")
	}
	if c.Guard.CooldownTTL <= 0 || c.Guard.SpamLockTTL <= 0 || c.Guard.RequestWindow <= 0 {
		return errors.New("Guard TTLs must be positive")
	}
	if c.Guard.MaxRequests < 1 {
		return errors.New("Guard.MaxRequests must be at least 1")
	}
	if c.Password.BcryptCost != 0 && (c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost) {
		return errors.New("Password.BcryptCost out of range")
	}
	if c.StoreTimeout < 0 {
		return errors.New("StoreTimeout must not be negative")
	}
	return nil
}
