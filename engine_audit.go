package otpengine

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventChallengeRequest      = "challenge_request"
	auditEventChallengeSubmit       = "challenge_submit"
	auditEventAttemptLockout        = "attempt_lockout"
	auditEventAbuseBlocked          = "abuse_block_triggered"
	auditEventRegistrationRequest   = "registration_request"
	auditEventRegistrationComplete  = "registration_complete"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventPasswordResetComplete = "password_reset_complete"
	auditEventVerificationConsumed  = "verification_consumed"
)

// AuditErrorCode defines a public type used by otpengine APIs.
type AuditErrorCode string

const (
	auditErrValidation     AuditErrorCode = "validation"
	auditErrUserNotFound   AuditErrorCode = "user_not_found"
	auditErrDuplicate      AuditErrorCode = "duplicate"
	auditErrNotVerified    AuditErrorCode = "not_verified"
	auditErrPasswordReuse  AuditErrorCode = "password_reuse"
	auditErrDispatchFailed AuditErrorCode = "dispatch_failed"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identity string,
	purpose Purpose,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Identity:  identity,
		Purpose:   string(purpose),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitBlocked(ctx context.Context, identity string, purpose Purpose, reason BlockReason, retryAfter time.Duration) {
	e.metricInc(MetricChallengeBlocked)
	e.emitAudit(ctx, auditEventAbuseBlocked, false, identity, purpose, nil, func() map[string]string {
		return map[string]string{
			"reason":      string(reason),
			"retry_after": retryAfter.String(),
		}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrNotVerified):
		return auditErrNotVerified
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrDispatchFailed):
		return auditErrDispatchFailed
	case errors.Is(err, ErrChallengeUnavailable),
		errors.Is(err, ErrProviderUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
