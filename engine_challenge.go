package otpengine

import (
	"context"
	"time"
)

// RequestChallenge issues a one-time code for identity and purpose and
// dispatches it through the configured [Notifier]. Issuance runs guard
// checks first; a blocked result reports the most severe active lock and is
// not an error. On dispatch failure the already-stored challenge stays live
// but no cooldown is recorded, so the caller may retry immediately and the
// retry overwrites the code.
func (e *Engine) RequestChallenge(ctx context.Context, identity string, purpose Purpose) (RequestResult, error) {
	return e.requestChallenge(ctx, identity, "", purpose)
}

func (e *Engine) requestChallenge(ctx context.Context, identity, name string, purpose Purpose) (RequestResult, error) {
	if !e.ready() {
		return RequestResult{}, ErrEngineNotReady
	}

	identity = normalizeIdentity(identity)
	if identity == "" || !purpose.valid() {
		e.emitAudit(ctx, auditEventChallengeRequest, false, identity, purpose, ErrValidation, nil)
		return RequestResult{}, ErrValidation
	}

	decision, err := e.guard.CheckIssuance(ctx, identity)
	if err != nil {
		mapped := mapChallengeError(err)
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventChallengeRequest, false, identity, purpose, mapped, nil)
		return RequestResult{}, mapped
	}
	if !decision.allowed {
		e.emitBlocked(ctx, identity, purpose, decision.reason, decision.retryAfter)
		return RequestResult{
			Blocked:    true,
			Reason:     decision.reason,
			RetryAfter: decision.retryAfter,
		}, nil
	}

	code, err := e.challenges.Issue(ctx, identity, purpose)
	if err != nil {
		mapped := mapChallengeError(err)
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventChallengeRequest, false, identity, purpose, mapped, nil)
		return RequestResult{}, mapped
	}

	if e.notifier != nil {
		msg := Message{
			To:        identity,
			Name:      name,
			Template:  templateFor(purpose),
			Code:      code,
			ExpiresIn: e.challenges.ttlFor(purpose),
		}
		if err := e.notifier.Send(ctx, msg); err != nil {
			e.metricInc(MetricDispatchFailure)
			e.emitAudit(ctx, auditEventChallengeRequest, false, identity, purpose, ErrDispatchFailed, func() map[string]string {
				return map[string]string{
					"dispatch_error": err.Error(),
				}
			})
			return RequestResult{}, ErrDispatchFailed
		}
	}

	if err := e.guard.RecordIssuance(ctx, identity); err != nil {
		mapped := mapChallengeError(err)
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventChallengeRequest, false, identity, purpose, mapped, nil)
		return RequestResult{}, mapped
	}

	e.metricInc(MetricChallengeIssued)
	e.emitAudit(ctx, auditEventChallengeRequest, true, identity, purpose, nil, nil)
	return RequestResult{}, nil
}

// SubmitChallenge matches a submitted code against the live challenge.
// Outcomes are values, not errors: invalid, expired, and locked are expected
// states the HTTP layer maps to responses. The error return is reserved for
// validation failures and backend unavailability, which always fail closed.
func (e *Engine) SubmitChallenge(ctx context.Context, identity string, purpose Purpose, code string) (SubmitResult, error) {
	if !e.ready() {
		return SubmitResult{}, ErrEngineNotReady
	}

	identity = normalizeIdentity(identity)
	if identity == "" || code == "" || !purpose.valid() {
		e.emitAudit(ctx, auditEventChallengeSubmit, false, identity, purpose, ErrValidation, nil)
		return SubmitResult{}, ErrValidation
	}

	start := time.Now()

	decision, err := e.guard.CheckSubmission(ctx, identity)
	if err != nil {
		mapped := mapChallengeError(err)
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventChallengeSubmit, false, identity, purpose, mapped, nil)
		return SubmitResult{}, mapped
	}
	if !decision.allowed {
		e.metricInc(MetricVerifyBlocked)
		e.emitAudit(ctx, auditEventChallengeSubmit, false, identity, purpose, nil, func() map[string]string {
			return map[string]string{
				"reason":      string(decision.reason),
				"retry_after": decision.retryAfter.String(),
			}
		})
		return SubmitResult{Status: SubmitLocked}, nil
	}

	res, err := e.challenges.Verify(ctx, identity, purpose, code)
	if err != nil {
		mapped := mapChallengeError(err)
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventChallengeSubmit, false, identity, purpose, mapped, nil)
		return SubmitResult{}, mapped
	}

	if e.metrics != nil {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}

	switch res.status {
	case verifyOK:
		if purpose == PurposePasswordReset {
			if err := e.challenges.MarkVerified(ctx, identity); err != nil {
				mapped := mapChallengeError(err)
				e.metricInc(MetricStoreFailure)
				e.emitAudit(ctx, auditEventChallengeSubmit, false, identity, purpose, mapped, nil)
				return SubmitResult{}, mapped
			}
		}
		e.metricInc(MetricVerifySuccess)
		e.emitAudit(ctx, auditEventChallengeSubmit, true, identity, purpose, nil, nil)
		return SubmitResult{Status: SubmitVerified}, nil

	case verifyExpired:
		e.metricInc(MetricVerifyExpired)
		e.emitAudit(ctx, auditEventChallengeSubmit, false, identity, purpose, nil, func() map[string]string {
			return map[string]string{"outcome": "expired"}
		})
		return SubmitResult{Status: SubmitExpired}, nil

	case verifyLocked:
		e.metricInc(MetricVerifyLockout)
		e.emitAudit(ctx, auditEventAttemptLockout, false, identity, purpose, nil, nil)
		return SubmitResult{Status: SubmitLocked}, nil

	default:
		e.metricInc(MetricVerifyInvalid)
		e.emitAudit(ctx, auditEventChallengeSubmit, false, identity, purpose, nil, func() map[string]string {
			return map[string]string{"outcome": "invalid"}
		})
		return SubmitResult{Status: SubmitInvalid, AttemptsRemaining: res.remaining}, nil
	}
}

// ConsumeVerification spends the single-use verified flag set by a
// successful password-reset submission. Exactly one caller succeeds per
// verification; a second call returns [ErrNotVerified].
func (e *Engine) ConsumeVerification(ctx context.Context, identity string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	identity = normalizeIdentity(identity)
	if identity == "" {
		return ErrValidation
	}

	ok, err := e.challenges.ConsumeVerified(ctx, identity)
	if err != nil {
		mapped := mapChallengeError(err)
		e.metricInc(MetricStoreFailure)
		e.emitAudit(ctx, auditEventVerificationConsumed, false, identity, PurposePasswordReset, mapped, nil)
		return mapped
	}
	if !ok {
		e.metricInc(MetricConsumeNotVerified)
		e.emitAudit(ctx, auditEventVerificationConsumed, false, identity, PurposePasswordReset, ErrNotVerified, nil)
		return ErrNotVerified
	}

	e.metricInc(MetricVerificationConsumed)
	e.emitAudit(ctx, auditEventVerificationConsumed, true, identity, PurposePasswordReset, nil, nil)
	return nil
}

func templateFor(purpose Purpose) Template {
	if purpose == PurposePasswordReset {
		return TemplatePasswordReset
	}
	return TemplateUserActivation
}

// mapChallengeError collapses the internal store and guard sentinels
// (errChallengeRedisUnavailable, errChallengeContention,
// errGuardRedisUnavailable) into the one public error callers can act on.
func mapChallengeError(err error) error {
	if err == nil {
		return nil
	}
	return ErrChallengeUnavailable
}
