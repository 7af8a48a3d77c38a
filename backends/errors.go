// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"github.com/pkg/errors"
)

// The error categories of the engine. Every error returned by Gradix wraps
// exactly one of these sentinels, so callers can classify failures with
// errors.Is. All failures are synchronous: they are reported by the call
// that caused them and nothing is retried.
var (
	// ErrShape indicates incompatible operand shapes: a failed broadcast,
	// mismatched matrix dimensions, an axis out of range, an input tensor
	// that does not match its parameter, or a gradient seed that does not
	// match its output.
	ErrShape = errors.New("incompatible shapes")

	// ErrArity indicates a call with the wrong number of inputs for the
	// function's parameters.
	ErrArity = errors.New("wrong number of inputs")

	// ErrUntraceable indicates a traced computation tried to read the
	// concrete data of a symbolic value, typically to branch on it.
	// Traced functions must express data-dependent choices with operations
	// of the graph itself.
	ErrUntraceable = errors.New("untraceable control flow: symbolic values carry no data")

	// ErrNonScalarOutput indicates a default-seeded gradient was requested
	// for a function whose output is not a scalar. Non-scalar outputs need
	// an explicit seed.
	ErrNonScalarOutput = errors.New("gradient of non-scalar output requires an explicit seed")

	// ErrUnsupported indicates an operation outside the closed operation
	// set, or one for which the requested rule (evaluation, gradient) is
	// not defined.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrCrossGraph indicates a symbolic value was used with a builder or
	// graph other than the one that created it.
	ErrCrossGraph = errors.New("value belongs to a different graph")
)
