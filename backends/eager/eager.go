// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package eager implements the backends.Ops interface over concrete
// *tensors.Tensor values: every operation validates its operand shapes and
// computes its result immediately with the tensors kernels.
//
// It is the interpreter behind Func.Eval. A Backend carries no state, so a
// single instance can serve any number of concurrent evaluations.
package eager

import (
	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
	"github.com/pkg/errors"
)

// Backend computes operations eagerly on *tensors.Tensor values. The zero
// value is ready to use.
type Backend struct{}

// New returns an eager Backend.
func New() *Backend { return &Backend{} }

// Name implements backends.Ops.
func (b *Backend) Name() string { return "eager" }

// Constant implements backends.Ops: the tensor itself is the value.
func (b *Backend) Constant(t *tensors.Tensor) (backends.Value, error) {
	if t == nil {
		return nil, errors.Wrap(backends.ErrCrossGraph, "eager.Constant: nil tensor")
	}
	return t, nil
}

// ShapeOf implements backends.Ops.
func (b *Backend) ShapeOf(v backends.Value) (shapes.Shape, error) {
	t, err := b.tensorOf(v)
	if err != nil {
		return shapes.Shape{}, err
	}
	return t.Shape(), nil
}

// ConcreteValue implements backends.Ops. Eager values are concrete, so it
// simply unwraps the tensor.
func (b *Backend) ConcreteValue(v backends.Value) (*tensors.Tensor, error) {
	return b.tensorOf(v)
}

func (b *Backend) tensorOf(v backends.Value) (*tensors.Tensor, error) {
	t, ok := v.(*tensors.Tensor)
	if !ok || t == nil {
		return nil, errors.Wrapf(backends.ErrCrossGraph, "eager: value of type %T was not created by this backend", v)
	}
	return t, nil
}

func (b *Backend) binaryOp(opName string, x, y backends.Value, kernel func(a, b *tensors.Tensor) *tensors.Tensor) (backends.Value, error) {
	xT, err := b.tensorOf(x)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s lhs", opName)
	}
	yT, err := b.tensorOf(y)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s rhs", opName)
	}
	if _, ok := shapes.Broadcast(xT.Shape(), yT.Shape()); !ok {
		return nil, errors.Wrapf(backends.ErrShape, "%s: cannot broadcast %s and %s", opName, xT.Shape(), yT.Shape())
	}
	return kernel(xT, yT), nil
}

// Add implements backends.Ops.
func (b *Backend) Add(x, y backends.Value) (backends.Value, error) {
	return b.binaryOp("Add", x, y, tensors.Add)
}

// Sub implements backends.Ops.
func (b *Backend) Sub(x, y backends.Value) (backends.Value, error) {
	return b.binaryOp("Sub", x, y, tensors.Sub)
}

// Mul implements backends.Ops.
func (b *Backend) Mul(x, y backends.Value) (backends.Value, error) {
	return b.binaryOp("Mul", x, y, tensors.Mul)
}

// Div implements backends.Ops.
func (b *Backend) Div(x, y backends.Value) (backends.Value, error) {
	return b.binaryOp("Div", x, y, tensors.Div)
}

func (b *Backend) unaryOp(opName string, x backends.Value, kernel func(a *tensors.Tensor) *tensors.Tensor) (backends.Value, error) {
	xT, err := b.tensorOf(x)
	if err != nil {
		return nil, errors.WithMessage(err, opName)
	}
	return kernel(xT), nil
}

// Neg implements backends.Ops.
func (b *Backend) Neg(x backends.Value) (backends.Value, error) {
	return b.unaryOp("Neg", x, tensors.Neg)
}

// Sin implements backends.Ops.
func (b *Backend) Sin(x backends.Value) (backends.Value, error) {
	return b.unaryOp("Sin", x, tensors.Sin)
}

// Cos implements backends.Ops.
func (b *Backend) Cos(x backends.Value) (backends.Value, error) {
	return b.unaryOp("Cos", x, tensors.Cos)
}

// Exp implements backends.Ops.
func (b *Backend) Exp(x backends.Value) (backends.Value, error) {
	return b.unaryOp("Exp", x, tensors.Exp)
}

// Log implements backends.Ops.
func (b *Backend) Log(x backends.Value) (backends.Value, error) {
	return b.unaryOp("Log", x, tensors.Log)
}

// Sqrt implements backends.Ops.
func (b *Backend) Sqrt(x backends.Value) (backends.Value, error) {
	return b.unaryOp("Sqrt", x, tensors.Sqrt)
}

// Relu implements backends.Ops.
func (b *Backend) Relu(x backends.Value) (backends.Value, error) {
	return b.unaryOp("Relu", x, tensors.Relu)
}

// Step implements backends.Ops.
func (b *Backend) Step(x backends.Value) (backends.Value, error) {
	return b.unaryOp("Step", x, tensors.Step)
}

// MatMul implements backends.Ops.
func (b *Backend) MatMul(x, y backends.Value) (backends.Value, error) {
	xT, err := b.tensorOf(x)
	if err != nil {
		return nil, errors.WithMessage(err, "MatMul lhs")
	}
	yT, err := b.tensorOf(y)
	if err != nil {
		return nil, errors.WithMessage(err, "MatMul rhs")
	}
	if _, err := shapes.MatMul(xT.Shape(), yT.Shape()); err != nil {
		return nil, errors.Wrapf(backends.ErrShape, "%v", err)
	}
	return tensors.MatMul(xT, yT), nil
}

// Transpose implements backends.Ops.
func (b *Backend) Transpose(x backends.Value, permutation ...int) (backends.Value, error) {
	xT, err := b.tensorOf(x)
	if err != nil {
		return nil, errors.WithMessage(err, "Transpose")
	}
	if _, err := shapes.Transpose(xT.Shape(), permutation); err != nil {
		return nil, errors.Wrapf(backends.ErrShape, "%v", err)
	}
	return tensors.Transpose(xT, permutation), nil
}

// Reshape implements backends.Ops.
func (b *Backend) Reshape(x backends.Value, dimensions ...int) (backends.Value, error) {
	xT, err := b.tensorOf(x)
	if err != nil {
		return nil, errors.WithMessage(err, "Reshape")
	}
	if err := shapes.CheckDims(dimensions...); err != nil {
		return nil, errors.Wrapf(backends.ErrShape, "Reshape: %v", err)
	}
	if newShape := shapes.Make(dimensions...); newShape.Size() != xT.Size() {
		return nil, errors.Wrapf(backends.ErrShape, "Reshape: cannot reshape %s (%d values) to %s (%d values)",
			xT.Shape(), xT.Size(), newShape, newShape.Size())
	}
	return tensors.Reshape(xT, dimensions...), nil
}

// BroadcastTo implements backends.Ops.
func (b *Backend) BroadcastTo(x backends.Value, dimensions ...int) (backends.Value, error) {
	xT, err := b.tensorOf(x)
	if err != nil {
		return nil, errors.WithMessage(err, "BroadcastTo")
	}
	if err := shapes.CheckDims(dimensions...); err != nil {
		return nil, errors.Wrapf(backends.ErrShape, "BroadcastTo: %v", err)
	}
	if target := shapes.Make(dimensions...); !shapes.BroadcastableTo(xT.Shape(), target) {
		return nil, errors.Wrapf(backends.ErrShape, "BroadcastTo: cannot broadcast %s to %s", xT.Shape(), target)
	}
	return tensors.BroadcastTo(xT, dimensions...), nil
}

func (b *Backend) reduceOp(opName string, x backends.Value, axes []int, keepDims bool, kernel func(a *tensors.Tensor, axes []int, keepDims bool) *tensors.Tensor) (backends.Value, error) {
	xT, err := b.tensorOf(x)
	if err != nil {
		return nil, errors.WithMessage(err, opName)
	}
	if _, _, err := shapes.Reduce(xT.Shape(), axes, keepDims); err != nil {
		return nil, errors.Wrapf(backends.ErrShape, "%s: %v", opName, err)
	}
	return kernel(xT, axes, keepDims), nil
}

// ReduceSum implements backends.Ops.
func (b *Backend) ReduceSum(x backends.Value, axes []int, keepDims bool) (backends.Value, error) {
	return b.reduceOp("ReduceSum", x, axes, keepDims, tensors.ReduceSum)
}

// ReduceMax implements backends.Ops.
func (b *Backend) ReduceMax(x backends.Value, axes []int, keepDims bool) (backends.Value, error) {
	return b.reduceOp("ReduceMax", x, axes, keepDims, tensors.ReduceMax)
}

// Compile-time check that Backend satisfies the interface.
var _ backends.Ops = (*Backend)(nil)
