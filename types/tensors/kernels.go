// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gradix/types/shapes"
	"gonum.org/v1/gonum/floats"
)

// Add returns a+b elementwise, with broadcasting.
func Add(a, b *Tensor) *Tensor {
	return binaryOp(a, b, floats.AddTo, func(x, y float64) float64 { return x + y })
}

// Sub returns a-b elementwise, with broadcasting.
func Sub(a, b *Tensor) *Tensor {
	return binaryOp(a, b, floats.SubTo, func(x, y float64) float64 { return x - y })
}

// Mul returns a*b elementwise, with broadcasting.
func Mul(a, b *Tensor) *Tensor {
	return binaryOp(a, b, floats.MulTo, func(x, y float64) float64 { return x * y })
}

// Div returns a/b elementwise, with broadcasting. Division by zero follows
// IEEE float64 semantics (±Inf or NaN).
func Div(a, b *Tensor) *Tensor {
	return binaryOp(a, b, floats.DivTo, func(x, y float64) float64 { return x / y })
}

// binaryOp computes fn(a, b) elementwise on the broadcast shape of a and b.
// fastTo is the gonum contiguous version, used when no broadcasting is
// involved.
func binaryOp(a, b *Tensor, fastTo func(dst, s, t []float64) []float64, fn func(x, y float64) float64) *Tensor {
	if a.shape.Equal(b.shape) {
		out := newTensor(a.shape)
		fastTo(out.flat, a.flat, b.flat)
		return out
	}
	outShape, ok := shapes.Broadcast(a.shape, b.shape)
	if !ok {
		exceptions.Panicf("tensors: cannot broadcast %s and %s", a.shape, b.shape)
	}
	out := newTensor(outShape)
	stridesA := broadcastStrides(a.shape, outShape)
	stridesB := broadcastStrides(b.shape, outShape)
	iterateBroadcast(outShape, stridesA, stridesB, func(outIdx, idxA, idxB int) {
		out.flat[outIdx] = fn(a.flat[idxA], b.flat[idxB])
	})
	return out
}

// broadcastStrides returns the strides to walk a tensor of shape from along
// the axes of the broadcast shape to: axes where from does not stretch get
// its row-major stride, broadcast axes get stride 0 (the same input element
// repeats).
func broadcastStrides(from, to shapes.Shape) []int {
	if !shapes.BroadcastableTo(from, to) {
		exceptions.Panicf("tensors: %s is not broadcastable to %s", from, to)
	}
	fromStrides := rowMajorStrides(from)
	strides := make([]int, to.Rank())
	for axis := 1; axis <= from.Rank(); axis++ {
		fromAxis := from.Rank() - axis
		if from.Dimensions[fromAxis] != 1 || to.Dimensions[to.Rank()-axis] == 1 {
			strides[to.Rank()-axis] = fromStrides[fromAxis]
		}
	}
	return strides
}

// iterateBroadcast walks every element of shape in row-major order calling
// visit with the flat output index and the flat input indices derived from
// the two stride vectors.
func iterateBroadcast(shape shapes.Shape, stridesA, stridesB []int, visit func(outIdx, idxA, idxB int)) {
	rank := shape.Rank()
	size := shape.Size()
	counters := make([]int, rank)
	idxA, idxB := 0, 0
	for outIdx := 0; outIdx < size; outIdx++ {
		visit(outIdx, idxA, idxB)
		for axis := rank - 1; axis >= 0; axis-- {
			counters[axis]++
			idxA += stridesA[axis]
			idxB += stridesB[axis]
			if counters[axis] < shape.Dimensions[axis] {
				break
			}
			counters[axis] = 0
			idxA -= stridesA[axis] * shape.Dimensions[axis]
			idxB -= stridesB[axis] * shape.Dimensions[axis]
		}
	}
}

// Neg returns -a.
func Neg(a *Tensor) *Tensor { return unaryOp(a, func(x float64) float64 { return -x }) }

// Sin returns sin(a) elementwise.
func Sin(a *Tensor) *Tensor { return unaryOp(a, math.Sin) }

// Cos returns cos(a) elementwise.
func Cos(a *Tensor) *Tensor { return unaryOp(a, math.Cos) }

// Exp returns e^a elementwise.
func Exp(a *Tensor) *Tensor { return unaryOp(a, math.Exp) }

// Log returns the natural logarithm of a elementwise.
func Log(a *Tensor) *Tensor { return unaryOp(a, math.Log) }

// Sqrt returns the square root of a elementwise.
func Sqrt(a *Tensor) *Tensor { return unaryOp(a, math.Sqrt) }

// Relu returns max(a, 0) elementwise.
func Relu(a *Tensor) *Tensor {
	return unaryOp(a, func(x float64) float64 {
		if x > 0 {
			return x
		}
		return 0
	})
}

// Step returns the non-negative indicator of a: 1 where a >= 0, 0 elsewhere.
func Step(a *Tensor) *Tensor {
	return unaryOp(a, func(x float64) float64 {
		if x >= 0 {
			return 1
		}
		return 0
	})
}

func unaryOp(a *Tensor, fn func(x float64) float64) *Tensor {
	out := newTensor(a.shape)
	for ii, v := range a.flat {
		out.flat[ii] = fn(v)
	}
	return out
}
