package otpengine

import (
	"context"
	"errors"
)

// BeginPasswordReset issues a reset code to a known account. Unknown emails
// are reported as [ErrUserNotFound], matching the marketplace API surface
// this engine serves.
func (e *Engine) BeginPasswordReset(ctx context.Context, email string) (RequestResult, error) {
	if !e.ready() || e.users == nil {
		return RequestResult{}, ErrEngineNotReady
	}

	email = normalizeIdentity(email)
	if email == "" {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, email, PurposePasswordReset, ErrValidation, nil)
		return RequestResult{}, ErrValidation
	}

	user, err := e.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, email, PurposePasswordReset, ErrUserNotFound, nil)
		return RequestResult{}, ErrUserNotFound
	}
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, email, PurposePasswordReset, ErrProviderUnavailable, nil)
		return RequestResult{}, ErrProviderUnavailable
	}

	res, err := e.requestChallenge(ctx, email, user.Name, PurposePasswordReset)
	if err != nil {
		return res, err
	}
	if !res.Blocked {
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, email, PurposePasswordReset, nil, nil)
	}
	return res, nil
}

// ConfirmPasswordReset verifies the reset code. On success the engine arms
// the single-use verified flag instead of changing anything — proving
// receipt of the code and setting the new password are deliberately
// separate operations.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, code string) (SubmitResult, error) {
	res, err := e.SubmitChallenge(ctx, email, PurposePasswordReset, code)
	if err != nil {
		return res, err
	}
	if res.Status == SubmitVerified {
		e.emitAudit(ctx, auditEventPasswordResetConfirm, true, normalizeIdentity(email), PurposePasswordReset, nil, nil)
	}
	return res, nil
}

// CompletePasswordReset consumes the verified flag and rotates the stored
// password hash. The flag is consumed up front, atomically: of two racing
// calls exactly one proceeds, and a rejected new password (reuse of the old
// one) requires restarting from ConfirmPasswordReset.
func (e *Engine) CompletePasswordReset(ctx context.Context, email, newPassword string) error {
	if !e.ready() || e.users == nil || e.hasher == nil {
		return ErrEngineNotReady
	}

	email = normalizeIdentity(email)
	if email == "" || len(newPassword) < 8 {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, email, PurposePasswordReset, ErrValidation, nil)
		return ErrValidation
	}

	if err := e.ConsumeVerification(ctx, email); err != nil {
		return err
	}

	user, err := e.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, email, PurposePasswordReset, ErrUserNotFound, nil)
		return ErrUserNotFound
	}
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, email, PurposePasswordReset, ErrProviderUnavailable, nil)
		return ErrProviderUnavailable
	}

	if user.PasswordHash != "" && e.hasher.Compare(user.PasswordHash, newPassword) {
		e.metricInc(MetricPasswordReuseRejected)
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, email, PurposePasswordReset, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, email, PurposePasswordReset, err, nil)
		return err
	}

	if err := e.users.UpdatePassword(ctx, email, hash); err != nil {
		e.emitAudit(ctx, auditEventPasswordResetComplete, false, email, PurposePasswordReset, ErrProviderUnavailable, nil)
		return ErrProviderUnavailable
	}

	// Any leftover reset challenge is dead weight once the password changed.
	_ = e.challenges.Clear(ctx, email, PurposePasswordReset)

	e.metricInc(MetricPasswordResetCompleted)
	e.emitAudit(ctx, auditEventPasswordResetComplete, true, email, PurposePasswordReset, nil, nil)
	return nil
}
