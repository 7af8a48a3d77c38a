// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the contract between the Gradix engine and the
// implementations that carry out its operations.
//
// The evaluator and the differentiator in the root package are written
// against the Ops interface only, so the same code paths serve two very
// different purposes:
//
//   - backends/eager implements Ops over concrete *tensors.Tensor values,
//     computing each operation immediately. Running a graph against it
//     evaluates the graph.
//   - graph.Builder implements Ops over symbolic *graph.Node values,
//     appending one node per operation. Running a graph against it replays
//     the computation into a new graph, which is how gradient graphs are
//     built and why gradients of gradients need no extra machinery.
//
// Values are opaque: each implementation only accepts values it created
// itself.
package backends

import (
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
)

// Value is the opaque handle to a tensor-valued operand. Concrete
// implementations define their own value type (a *tensors.Tensor for the
// eager backend, a *graph.Node for the symbolic builder) and reject values
// created elsewhere.
type Value any

// Ops is the closed set of primitive operations a Gradix value supports.
//
// Binary elementwise operations broadcast their operands following the
// NumPy right-aligned rule. All methods validate shapes and return an error
// wrapping ErrShape on mismatch; they never mutate their operands.
type Ops interface {
	// Name identifies the implementation in logs and error messages.
	Name() string

	// Constant materializes a tensor as a value.
	Constant(t *tensors.Tensor) (Value, error)

	// ShapeOf returns the shape of the given value.
	ShapeOf(v Value) (shapes.Shape, error)

	// ConcreteValue returns the data held by the value.
	//
	// The eager implementation returns the tensor; the symbolic builder
	// fails with ErrUntraceable, since the data a node will hold is unknown
	// while tracing. Computations that call it therefore cannot be traced:
	// this is the hook that turns data-dependent control flow into a
	// reported error.
	ConcreteValue(v Value) (*tensors.Tensor, error)

	// Add returns x+y elementwise, broadcasting.
	Add(x, y Value) (Value, error)
	// Sub returns x-y elementwise, broadcasting.
	Sub(x, y Value) (Value, error)
	// Mul returns x*y elementwise, broadcasting.
	Mul(x, y Value) (Value, error)
	// Div returns x/y elementwise, broadcasting.
	Div(x, y Value) (Value, error)

	// Neg returns -x.
	Neg(x Value) (Value, error)
	// Sin returns sin(x) elementwise.
	Sin(x Value) (Value, error)
	// Cos returns cos(x) elementwise.
	Cos(x Value) (Value, error)
	// Exp returns e^x elementwise.
	Exp(x Value) (Value, error)
	// Log returns the natural logarithm elementwise.
	Log(x Value) (Value, error)
	// Sqrt returns the square root elementwise.
	Sqrt(x Value) (Value, error)
	// Relu returns max(x, 0) elementwise.
	Relu(x Value) (Value, error)
	// Step returns 1 where x >= 0 and 0 elsewhere.
	Step(x Value) (Value, error)

	// MatMul returns the matrix product of x and y: vectors contract to a
	// dot product, operands of rank >= 2 multiply their last two axes with
	// leading axes broadcast, scalars degrade to elementwise
	// multiplication.
	MatMul(x, y Value) (Value, error)

	// Transpose permutes the axes of x: output axis ii is input axis
	// permutation[ii].
	Transpose(x Value, permutation ...int) (Value, error)
	// Reshape returns x with the given dimensions, preserving the size.
	Reshape(x Value, dimensions ...int) (Value, error)
	// BroadcastTo broadcasts x to the given dimensions.
	BroadcastTo(x Value, dimensions ...int) (Value, error)

	// ReduceSum sums the given axes away, all of them if none given. With
	// keepDims the reduced axes stay with dimension 1.
	ReduceSum(x Value, axes []int, keepDims bool) (Value, error)
	// ReduceMax takes the maximum over the given axes, all of them if none
	// given. With keepDims the reduced axes stay with dimension 1.
	ReduceMax(x Value, axes []int, keepDims bool) (Value, error)
}
