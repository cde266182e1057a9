package otpengine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BeginRegistration validates the registration data, rejects already
// registered emails, and issues an activation code to the address. The
// account record is not created here — only [Engine.CompleteRegistration]
// touches persistence, and only after the code is verified.
func (e *Engine) BeginRegistration(ctx context.Context, data RegistrationData) (RequestResult, error) {
	if !e.ready() || e.users == nil {
		return RequestResult{}, ErrEngineNotReady
	}

	if err := e.validateRegistration(&data); err != nil {
		e.emitAudit(ctx, auditEventRegistrationRequest, false, data.Email, PurposeRegistration, ErrValidation, nil)
		return RequestResult{}, err
	}

	if _, err := e.users.FindByEmail(ctx, data.Email); err == nil {
		e.metricInc(MetricRegistrationDuplicate)
		e.emitAudit(ctx, auditEventRegistrationRequest, false, data.Email, PurposeRegistration, ErrAccountExists, nil)
		return RequestResult{}, ErrAccountExists
	} else if !errors.Is(err, ErrUserNotFound) {
		e.emitAudit(ctx, auditEventRegistrationRequest, false, data.Email, PurposeRegistration, ErrProviderUnavailable, nil)
		return RequestResult{}, ErrProviderUnavailable
	}

	res, err := e.requestChallenge(ctx, data.Email, data.Name, PurposeRegistration)
	if err != nil {
		return res, err
	}
	if !res.Blocked {
		e.emitAudit(ctx, auditEventRegistrationRequest, true, data.Email, PurposeRegistration, nil, nil)
	}
	return res, nil
}

// CompleteRegistration verifies the activation code and, on success, creates
// the account record with a bcrypt password hash. Creation is a one-shot
// action gated strictly on verification; it is never retried by the engine.
// Non-verified submit outcomes are reported in the result, not as errors.
func (e *Engine) CompleteRegistration(ctx context.Context, data RegistrationData, code string) (RegistrationResult, error) {
	if !e.ready() || e.users == nil || e.hasher == nil {
		return RegistrationResult{}, ErrEngineNotReady
	}

	if err := e.validateRegistration(&data); err != nil {
		e.emitAudit(ctx, auditEventRegistrationComplete, false, data.Email, PurposeRegistration, ErrValidation, nil)
		return RegistrationResult{}, err
	}
	if strings.TrimSpace(code) == "" {
		e.emitAudit(ctx, auditEventRegistrationComplete, false, data.Email, PurposeRegistration, ErrValidation, nil)
		return RegistrationResult{}, ErrValidation
	}

	if _, err := e.users.FindByEmail(ctx, data.Email); err == nil {
		e.metricInc(MetricRegistrationDuplicate)
		e.emitAudit(ctx, auditEventRegistrationComplete, false, data.Email, PurposeRegistration, ErrAccountExists, nil)
		return RegistrationResult{}, ErrAccountExists
	} else if !errors.Is(err, ErrUserNotFound) {
		e.emitAudit(ctx, auditEventRegistrationComplete, false, data.Email, PurposeRegistration, ErrProviderUnavailable, nil)
		return RegistrationResult{}, ErrProviderUnavailable
	}

	submit, err := e.SubmitChallenge(ctx, data.Email, PurposeRegistration, code)
	if err != nil {
		return RegistrationResult{}, err
	}
	if submit.Status != SubmitVerified {
		return RegistrationResult{Submit: submit}, nil
	}

	hash, err := e.hasher.Hash(data.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventRegistrationComplete, false, data.Email, PurposeRegistration, err, nil)
		return RegistrationResult{}, err
	}

	record := UserRecord{
		UserID:       uuid.NewString(),
		Name:         data.Name,
		Email:        data.Email,
		Phone:        data.Phone,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := e.users.CreateUser(ctx, record); err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegistrationDuplicate)
			e.emitAudit(ctx, auditEventRegistrationComplete, false, data.Email, PurposeRegistration, ErrAccountExists, nil)
			return RegistrationResult{}, ErrAccountExists
		}
		e.emitAudit(ctx, auditEventRegistrationComplete, false, data.Email, PurposeRegistration, ErrProviderUnavailable, nil)
		return RegistrationResult{}, ErrProviderUnavailable
	}

	// Never echo the credential hash back to the caller.
	record.PasswordHash = ""

	e.metricInc(MetricRegistrationCompleted)
	e.emitAudit(ctx, auditEventRegistrationComplete, true, data.Email, PurposeRegistration, nil, func() map[string]string {
		return map[string]string{
			"user_id": record.UserID,
		}
	})
	return RegistrationResult{Submit: submit, User: &record}, nil
}
