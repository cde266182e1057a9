package otpengine

import (
	"fmt"
	"strings"
)

func normalizeIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) validateRegistration(data *RegistrationData) error {
	if e.validate == nil {
		return ErrEngineNotReady
	}

	data.Email = normalizeIdentity(data.Email)
	data.Name = strings.TrimSpace(data.Name)

	if err := e.validate.Struct(data); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
