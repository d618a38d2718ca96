package config

import (
	"errors"

	"github.com/ajxchapman/goswatch/internal/registry"
)

// IsConfigurationError reports whether err is (or wraps) one of the
// registry's ConfigurationError kinds spec.md §7 assigns to the driver:
// caught, reported, and skipped rather than treated as a fatal load
// failure.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var unknownType *registry.UnknownTypeError
	if errors.As(err, &unknownType) {
		return true
	}
	var uncastable *registry.UncastableArgumentError
	if errors.As(err, &uncastable) {
		return true
	}
	var reservedKey *registry.ReservedKeyUsedError
	if errors.As(err, &reservedKey) {
		return true
	}
	var unexpected *registry.UnexpectedArgumentError
	if errors.As(err, &unexpected) {
		return true
	}
	var unknownTemplate *registry.UnknownTemplateError
	if errors.As(err, &unknownTemplate) {
		return true
	}
	var missingVar *registry.MissingRequiredVariableError
	if errors.As(err, &missingVar) {
		return true
	}
	return false
}
