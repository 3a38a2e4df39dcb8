// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package config

import "net/http"

// ComputedFunc computes a setting's value from the current request.
type ComputedFunc[T any] func(r *http.Request) T

// Value is either a static literal or a function of the request.  The zero
// Value is a static zero value of T.
type Value[T any] struct {
	static   T
	computed ComputedFunc[T]
}

// Static returns a Value which always resolves to v.
func Static[T any](v T) Value[T] {
	return Value[T]{static: v}
}

// Computed returns a Value which resolves by calling fn with the current
// request.  A nil fn is treated as Static of the zero value.
func Computed[T any](fn ComputedFunc[T]) Value[T] {
	return Value[T]{computed: fn}
}

// IsComputed reports whether the value is a function of the request.
func (v Value[T]) IsComputed() bool { return v.computed != nil }

// Get returns the value for the request. The result is never cached.
func (v Value[T]) Get(r *http.Request) T {
	if v.computed != nil {
		return v.computed(r)
	}
	return v.static
}
