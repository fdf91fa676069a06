package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrConflict           = errors.New("conflicting state transition")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")

	// Pricing / promo codes
	ErrTariffNotFound     = errors.New("tariff not found or inactive")
	ErrPromoInvalid       = errors.New("promo code is not valid")
	ErrPromoExpired       = errors.New("promo code has expired")
	ErrPromoExhausted     = errors.New("promo code activation limit reached")
	ErrPromoNotApplicable = errors.New("promo code is not applicable")
	ErrPromoAlreadyUsed   = errors.New("promo code already used by this user")

	// Payments / external systems
	ErrSignatureVerification = errors.New("webhook signature verification failed")
	ErrExternalService       = errors.New("external service unavailable")
	ErrLockNotAcquired       = errors.New("could not acquire user lock")
)
