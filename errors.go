// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradix

import "github.com/gomlx/gradix/backends"

// The errors returned by the engine (or recovered from traced functions)
// wrap one of the sentinels below, re-exported from the backends package so
// callers can classify failures with errors.Is without an extra import.
var (
	// ErrShape marks shape mismatches: incompatible broadcasts, invalid
	// MatMul operands, bad axes or permutations, inputs or gradient seeds of
	// the wrong shape.
	ErrShape = backends.ErrShape

	// ErrArity marks a wrong number of inputs, outputs or seeds.
	ErrArity = backends.ErrArity

	// ErrUntraceable marks data-dependent control flow inside a traced
	// function: the concrete value of a symbolic node was requested.
	ErrUntraceable = backends.ErrUntraceable

	// ErrNonScalarOutput marks a default-seeded Grad of a function whose
	// output is not a single scalar. Use GradWithSeeds instead.
	ErrNonScalarOutput = backends.ErrNonScalarOutput

	// ErrUnsupported marks an operation outside the closed operation set.
	ErrUnsupported = backends.ErrUnsupported

	// ErrCrossGraph marks a node or value used with a graph it does not
	// belong to, including appending to an already finalized graph.
	ErrCrossGraph = backends.ErrCrossGraph
)
