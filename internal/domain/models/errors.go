package models

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyOpen      = errors.New("scalp already open")
	ErrCooldownActive   = errors.New("scalp cooldown active")
	ErrNoPosition       = errors.New("no open scalp")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrInvalidOutcome   = errors.New("invalid outcome")
	ErrUnknownDecision  = errors.New("no recorded decision for symbol")
)

// ConfigurationError reports invalid static parameters. It is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(field, format string, a ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, a...)}
}

// ValidationDenied is returned when a gate predicate fails.
type ValidationDenied struct {
	Check  string
	Reason string
}

func (e *ValidationDenied) Error() string {
	return fmt.Sprintf("denied by %s: %s", e.Check, e.Reason)
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
