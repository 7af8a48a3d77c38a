// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provides the few generic slice helpers used across Gradix.
package xslices

import (
	"golang.org/x/exp/constraints"
)

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// At returns the i-th element of the slice. Negative values of i are taken from the end: At(s, -1)
// is the last element.
func At[T any](slice []T, i int) T {
	if i < 0 {
		i = len(slice) + i
	}
	return slice[i]
}

// Last returns the last element of the slice.
func Last[T any](slice []T) T {
	return At(slice, -1)
}

// Iota returns a slice of n increments of 1 starting from start: {start, start+1, ...}.
func Iota[T constraints.Integer | constraints.Float](start T, n int) (slice []T) {
	slice = make([]T, n)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// SliceWithValue creates a slice of the given size with each element set to value.
func SliceWithValue[T any](size int, value T) []T {
	s := make([]T, size)
	for ii := range s {
		s[ii] = value
	}
	return s
}
