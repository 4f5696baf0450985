package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Analysis errors
	ErrEmptyResult       = errors.New("no matched pairs")
	ErrEmptyDistribution = errors.New("empty distribution")

	// Configuration errors
	ErrInvalidConfig   = errors.New("invalid analysis configuration")
	ErrMissingColumn   = fmt.Errorf("%w: missing column", ErrInvalidConfig)
	ErrUnobservedValue = fmt.Errorf("%w: value not observed", ErrInvalidConfig)
)

// Error constructors with context
func NewEmptyResultError(attribute, pairs string) error {
	return fmt.Errorf("%w for %s (%s)", ErrEmptyResult, attribute, pairs)
}

func NewConfigError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, reason)
}

func NewMissingColumnError(kind, column string) error {
	return fmt.Errorf("%w: %s column %q", ErrMissingColumn, kind, column)
}

func NewUnobservedValueError(column, value string) error {
	return fmt.Errorf("%w: %q in column %q", ErrUnobservedValue, value, column)
}

// Error checking helpers
func IsEmptyError(err error) bool {
	return errors.Is(err, ErrEmptyResult) || errors.Is(err, ErrEmptyDistribution)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
