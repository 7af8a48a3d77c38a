// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
	"github.com/pkg/errors"
)

// This file defines the package-level operations used inside traced
// functions. They panic on invalid use (mismatched shapes, nodes from
// another graph, finalized graph) with errors wrapping the backends
// sentinels; the engine catches those panics at the trace boundary and
// returns them as errors.

// mustNode converts the error-returning graph internals to the panic style
// of the package-level operations.
func mustNode(node *Node, err error) *Node {
	if err != nil {
		panic(err)
	}
	return node
}

// graphOf returns the graph owning the inputs, panicking on nil nodes. Full
// same-graph validation happens when the node is appended.
func graphOf(opName string, inputs ...*Node) *Graph {
	for ii, input := range inputs {
		if input == nil {
			panic(errors.Wrapf(backends.ErrCrossGraph, "%s: input #%d is nil", opName, ii))
		}
	}
	return inputs[0].g
}

// Add returns lhs+rhs, elementwise with broadcasting.
func Add(lhs, rhs *Node) *Node {
	g := graphOf("Add", lhs, rhs)
	return mustNode(g.addBinaryOp(backends.OpTypeAdd, lhs, rhs))
}

// Sub returns lhs-rhs, elementwise with broadcasting.
func Sub(lhs, rhs *Node) *Node {
	g := graphOf("Sub", lhs, rhs)
	return mustNode(g.addBinaryOp(backends.OpTypeSub, lhs, rhs))
}

// Mul returns lhs*rhs, elementwise with broadcasting.
func Mul(lhs, rhs *Node) *Node {
	g := graphOf("Mul", lhs, rhs)
	return mustNode(g.addBinaryOp(backends.OpTypeMul, lhs, rhs))
}

// Div returns lhs/rhs, elementwise with broadcasting.
func Div(lhs, rhs *Node) *Node {
	g := graphOf("Div", lhs, rhs)
	return mustNode(g.addBinaryOp(backends.OpTypeDiv, lhs, rhs))
}

// MatMul multiplies two matrices, or batches of matrices with broadcasting
// batch dimensions. Vectors are accepted on either side (dot product,
// vector-matrix and matrix-vector products), and a scalar operand degrades
// to an elementwise Mul.
func MatMul(lhs, rhs *Node) *Node {
	g := graphOf("MatMul", lhs, rhs)
	return mustNode(g.addMatMul(lhs, rhs))
}

// Neg returns -x.
func Neg(x *Node) *Node {
	return mustNode(graphOf("Neg", x).addUnaryOp(backends.OpTypeNeg, x))
}

// Sin returns sin(x), elementwise.
func Sin(x *Node) *Node {
	return mustNode(graphOf("Sin", x).addUnaryOp(backends.OpTypeSin, x))
}

// Cos returns cos(x), elementwise.
func Cos(x *Node) *Node {
	return mustNode(graphOf("Cos", x).addUnaryOp(backends.OpTypeCos, x))
}

// Exp returns e^x, elementwise.
func Exp(x *Node) *Node {
	return mustNode(graphOf("Exp", x).addUnaryOp(backends.OpTypeExp, x))
}

// Log returns the natural logarithm of x, elementwise.
func Log(x *Node) *Node {
	return mustNode(graphOf("Log", x).addUnaryOp(backends.OpTypeLog, x))
}

// Sqrt returns the square root of x, elementwise.
func Sqrt(x *Node) *Node {
	return mustNode(graphOf("Sqrt", x).addUnaryOp(backends.OpTypeSqrt, x))
}

// Relu returns max(x, 0), elementwise.
func Relu(x *Node) *Node {
	return mustNode(graphOf("Relu", x).addUnaryOp(backends.OpTypeRelu, x))
}

// Step returns 1 where x >= 0 and 0 elsewhere, elementwise.
func Step(x *Node) *Node {
	return mustNode(graphOf("Step", x).addUnaryOp(backends.OpTypeStep, x))
}

// Transpose returns x with axisA and axisB swapped. Axes can be negative,
// counting from the end.
func Transpose(x *Node, axisA, axisB int) *Node {
	g := graphOf("Transpose", x)
	rank := x.Rank()
	a, b := axisA, axisB
	if a < 0 {
		a += rank
	}
	if b < 0 {
		b += rank
	}
	if a < 0 || a >= rank || b < 0 || b >= rank {
		panic(errors.Wrapf(backends.ErrShape, "Transpose: axes (%d, %d) out of range for shape %s", axisA, axisB, x.shape))
	}
	permutation := make([]int, rank)
	for ii := range permutation {
		permutation[ii] = ii
	}
	permutation[a], permutation[b] = b, a
	return mustNode(g.addTranspose(x, permutation))
}

// TransposeAllDims permutes all axes of x: output axis ii takes the
// dimension of input axis permutation[ii]. It requires exactly one entry
// per axis.
func TransposeAllDims(x *Node, permutation ...int) *Node {
	g := graphOf("TransposeAllDims", x)
	return mustNode(g.addTranspose(x, permutation))
}

// Reshape returns x reshaped to the given dimensions. The total size must
// not change.
func Reshape(x *Node, dimensions ...int) *Node {
	g := graphOf("Reshape", x)
	return mustNode(g.addReshape(x, dimensions))
}

// BroadcastTo returns x broadcast to the given dimensions, following the
// usual right-aligned broadcasting rules.
func BroadcastTo(x *Node, dimensions ...int) *Node {
	g := graphOf("BroadcastTo", x)
	return mustNode(g.addBroadcastTo(x, dimensions))
}

// ReduceSum sums over the given axes, which are removed from the shape. No
// axes means reduce over all of them, yielding a scalar.
func ReduceSum(x *Node, axes ...int) *Node {
	g := graphOf("ReduceSum", x)
	return mustNode(g.addReduce(backends.OpTypeReduceSum, x, axes, false))
}

// ReduceMax takes the maximum over the given axes, which are removed from
// the shape. No axes means reduce over all of them, yielding a scalar.
func ReduceMax(x *Node, axes ...int) *Node {
	g := graphOf("ReduceMax", x)
	return mustNode(g.addReduce(backends.OpTypeReduceMax, x, axes, false))
}

// ReduceMean takes the mean over the given axes, which are removed from the
// shape. No axes means reduce over all of them, yielding a scalar.
func ReduceMean(x *Node, axes ...int) *Node {
	graphOf("ReduceMean", x)
	reducedShape, _, err := shapes.Reduce(x.shape, axes, false)
	if err != nil {
		panic(errors.Wrapf(backends.ErrShape, "ReduceMean: %v", err))
	}
	count := x.shape.Size() / reducedShape.Size()
	return MulScalar(ReduceSum(x, axes...), 1/float64(count))
}

// ReduceAndKeep applies a reduction (ReduceSum or ReduceMax) over the given
// axes but keeps the reduced axes with dimension 1, so the result still
// broadcasts against the original x.
func ReduceAndKeep(x *Node, reduceFn func(x *Node, axes ...int) *Node, axes ...int) *Node {
	graphOf("ReduceAndKeep", x)
	keptShape, _, err := shapes.Reduce(x.shape, axes, true)
	if err != nil {
		panic(errors.Wrapf(backends.ErrShape, "ReduceAndKeep: %v", err))
	}
	return Reshape(reduceFn(x, axes...), keptShape.Dimensions...)
}

// ConstTensor adds the tensor as a constant node of the graph.
func ConstTensor(g *Graph, t *tensors.Tensor) *Node {
	return mustNode(g.addConstant(t))
}

// Const adds a constant node built from a Go value: a float64 or nested
// slices of float64 ([]float64, [][]float64, ...). It panics on
// non-conforming values.
func Const(g *Graph, value any) *Node {
	return ConstTensor(g, tensors.FromAnyValue(value))
}

// Scalar adds a scalar constant node.
func Scalar(g *Graph, value float64) *Node {
	return ConstTensor(g, tensors.FromScalar(value))
}

// Zeros adds a constant node of zeros with the given shape.
func Zeros(g *Graph, shape shapes.Shape) *Node {
	return BroadcastTo(Scalar(g, 0), shape.Dimensions...)
}

// Ones adds a constant node of ones with the given shape.
func Ones(g *Graph, shape shapes.Shape) *Node {
	return BroadcastTo(Scalar(g, 1), shape.Dimensions...)
}

// ZerosLike returns a node of zeros with the same shape as x.
func ZerosLike(x *Node) *Node {
	g := graphOf("ZerosLike", x)
	return Zeros(g, x.shape)
}

// OnesLike returns a node of ones with the same shape as x.
func OnesLike(x *Node) *Node {
	g := graphOf("OnesLike", x)
	return Ones(g, x.shape)
}

// AddScalar returns x + scalar, elementwise.
func AddScalar(x *Node, scalar float64) *Node {
	g := graphOf("AddScalar", x)
	return Add(x, Scalar(g, scalar))
}

// SubScalar returns x - scalar, elementwise.
func SubScalar(x *Node, scalar float64) *Node {
	g := graphOf("SubScalar", x)
	return Sub(x, Scalar(g, scalar))
}

// MulScalar returns x * scalar, elementwise.
func MulScalar(x *Node, scalar float64) *Node {
	g := graphOf("MulScalar", x)
	return Mul(x, Scalar(g, scalar))
}

// DivScalar returns x / scalar, elementwise.
func DivScalar(x *Node, scalar float64) *Node {
	g := graphOf("DivScalar", x)
	return Div(x, Scalar(g, scalar))
}

// StopGradient returns a node with the same value as x through which
// gradients do not flow: differentiation treats it as a constant.
func StopGradient(x *Node) *Node {
	g := graphOf("StopGradient", x)
	node := mustNode(g.addReshape(x, x.shape.Dimensions))
	node.stopGradient = true
	return node
}
