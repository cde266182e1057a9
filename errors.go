package otpengine

import "errors"

var (
	// ErrValidation is an exported constant or variable used by the OTP engine.
	ErrValidation = errors.New("invalid request data")
	// ErrUserNotFound is an exported constant or variable used by the OTP engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is an exported constant or variable used by the OTP engine.
	ErrAccountExists = errors.New("account already registered")
	// ErrNotVerified is an exported constant or variable used by the OTP engine.
	ErrNotVerified = errors.New("password reset not authorized")
	// ErrPasswordReuse is an exported constant or variable used by the OTP engine.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrDispatchFailed is an exported constant or variable used by the OTP engine.
	ErrDispatchFailed = errors.New("challenge dispatch failed")
	// ErrChallengeUnavailable is an exported constant or variable used by the OTP engine.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
	// ErrProviderUnavailable is an exported constant or variable used by the OTP engine.
	ErrProviderUnavailable = errors.New("user persistence unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the OTP engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
