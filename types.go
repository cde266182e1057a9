package otpengine

import (
	"context"
	"time"
)

// Purpose identifies which flow a challenge belongs to. Challenge state is
// partitioned per (identity, purpose): a registration code and a password
// reset code for the same email never collide.
type Purpose string

const (
	// PurposeRegistration is an exported constant or variable used by the OTP engine.
	PurposeRegistration Purpose = "registration"
	// PurposePasswordReset is an exported constant or variable used by the OTP engine.
	PurposePasswordReset Purpose = "password_reset"
)

func (p Purpose) valid() bool {
	return p == PurposeRegistration || p == PurposePasswordReset
}

// BlockReason names the lock that rejected an issuance request. The guard
// reports the most severe active lock, so a caller locked out for 30 minutes
// is never told to retry in 60 seconds.
type BlockReason string

const (
	// BlockAttemptLock is an exported constant or variable used by the OTP engine.
	BlockAttemptLock BlockReason = "attempt_lock"
	// BlockSpamLock is an exported constant or variable used by the OTP engine.
	BlockSpamLock BlockReason = "spam_lock"
	// BlockCooldown is an exported constant or variable used by the OTP engine.
	BlockCooldown BlockReason = "cooldown"
)

// RequestResult is returned by [Engine.RequestChallenge]. When Blocked is
// true no challenge was issued; Reason and RetryAfter describe the active
// lock.
type RequestResult struct {
	Blocked    bool
	Reason     BlockReason
	RetryAfter time.Duration
}

// SubmitStatus defines a public type used by otpengine APIs.
type SubmitStatus uint8

const (
	// SubmitVerified is an exported constant or variable used by the OTP engine.
	SubmitVerified SubmitStatus = iota
	// SubmitInvalid is an exported constant or variable used by the OTP engine.
	SubmitInvalid
	// SubmitExpired is an exported constant or variable used by the OTP engine.
	SubmitExpired
	// SubmitLocked is an exported constant or variable used by the OTP engine.
	SubmitLocked
)

// SubmitResult is returned by [Engine.SubmitChallenge]. AttemptsRemaining is
// meaningful only when Status is SubmitInvalid.
type SubmitResult struct {
	Status            SubmitStatus
	AttemptsRemaining int
}

// RegistrationResult is returned by [Engine.CompleteRegistration]. User is
// non-nil only when Submit.Status is SubmitVerified and the account record
// was created.
type RegistrationResult struct {
	Submit SubmitResult
	User   *UserRecord
}

// Template selects the out-of-band message rendered by the [Notifier].
// Rendering is the dispatcher's concern; the engine only names the template.
type Template string

const (
	// TemplateUserActivation is an exported constant or variable used by the OTP engine.
	TemplateUserActivation Template = "user-activation-mail"
	// TemplatePasswordReset is an exported constant or variable used by the OTP engine.
	TemplatePasswordReset Template = "password-reset-mail"
)

// Message carries one challenge code to a destination address.
type Message struct {
	To       string
	Name     string
	Template Template
	Code     string

	// ExpiresIn lets the dispatcher tell the recipient how long the code
	// stays valid. Informational only.
	ExpiresIn time.Duration
}

// Notifier delivers a challenge code out-of-band. The engine assumes no
// retry contract: a returned error means the caller is told dispatch failed,
// nothing more.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// UserRecord is the account record exchanged with [UserProvider].
type UserRecord struct {
	UserID       string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserProvider is the interface callers implement to integrate the engine
// with their user database. FindByEmail must return [ErrUserNotFound] for
// unknown emails and CreateUser must return [ErrAccountExists] for duplicate
// ones; any other error is treated as persistence unavailability.
type UserProvider interface {
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	CreateUser(ctx context.Context, record UserRecord) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

// RegistrationData is the caller-supplied input for the registration flow.
type RegistrationData struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	Phone    string `validate:"omitempty,min=7,max=20"`
}
