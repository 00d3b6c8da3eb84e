package domain

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce  sync.Once
	validatorImpl *validator.Validate
)

func v() *validator.Validate {
	validateOnce.Do(func() {
		validatorImpl = validator.New()
	})
	return validatorImpl
}

// ValidateSignal checks a StrategySignal's struct tags plus the
// quantity-must-be-positive rule the tag syntax can't express for decimals.
func ValidateSignal(s StrategySignal) error {
	if err := v().Struct(s); err != nil {
		return NewError(ErrValidation, "invalid strategy signal: %v", err)
	}
	if !s.TargetQuantity.IsPositive() {
		return NewError(ErrValidation, "target_quantity must be > 0, got %s", s.TargetQuantity)
	}
	return nil
}

func ValidateCancel(c CancelSignal) error {
	if err := v().Struct(c); err != nil {
		return NewError(ErrValidation, "invalid cancel signal: %v", err)
	}
	return nil
}

func ValidateReplace(r ReplaceSignal) error {
	if err := v().Struct(r); err != nil {
		return NewError(ErrValidation, "invalid replace signal: %v", err)
	}
	if !r.TargetQuantity.IsPositive() {
		return NewError(ErrValidation, "target_quantity must be > 0, got %s", r.TargetQuantity)
	}
	return nil
}

func ValidateKillSwitch(k KillSwitchRequest) error {
	if err := v().Struct(k); err != nil {
		return NewError(ErrValidation, "invalid kill switch request: %v", err)
	}
	return nil
}
