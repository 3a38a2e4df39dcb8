// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is an invalid parameter error
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNilParameter is a nil parameter error
	ErrNilParameter = errors.New("nil parameter")

	// ErrConfigType is returned when a setting holds a value of the wrong
	// kind, including a Computed value for a static-only setting.
	ErrConfigType = errors.New("config type error")

	// ErrConfigValue is returned when a setting holds a malformed value.
	ErrConfigValue = errors.New("config value error")
)

// ConfigTypeError describes a setting that cannot be resolved because of its
// type.  It matches ErrConfigType with errors.Is
type ConfigTypeError struct {
	Name   Name
	Reason string
}

func (e *ConfigTypeError) Error() string {
	return fmt.Sprintf("%s: setting %s: %s", ErrConfigType, e.Name, e.Reason)
}

// Unwrap returns ErrConfigType
func (e *ConfigTypeError) Unwrap() error { return ErrConfigType }

// ConfigValueError describes a setting with a malformed value. It matches
// ErrConfigValue with errors.Is
type ConfigValueError struct {
	Name   Name
	Value  interface{}
	Reason string
}

func (e *ConfigValueError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %q: %s", ErrConfigValue, fmt.Sprint(e.Value), e.Reason)
	}
	return fmt.Sprintf("%s: setting %s=%q: %s", ErrConfigValue, e.Name, fmt.Sprint(e.Value), e.Reason)
}

// Unwrap returns ErrConfigValue
func (e *ConfigValueError) Unwrap() error { return ErrConfigValue }
