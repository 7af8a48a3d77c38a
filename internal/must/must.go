// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package must converts (value, error) returns into panic-on-error values.
// It backs the Must* variants of the public API and keeps small programs
// and tests terse.
package must

import (
	"k8s.io/klog/v2"
)

// M logs and panics if err is not nil.
//
// Reassign it to change the failure behavior globally, e.g. to klog.Fatalf.
var M = func(err error) {
	if err != nil {
		klog.Errorf("must: %+v", err)
		panic(err)
	}
}

// M1 checks err with M and returns value.
func M1[T any](value T, err error) T {
	M(err)
	return value
}
