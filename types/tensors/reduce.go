// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gradix/types/shapes"
	"gonum.org/v1/gonum/floats"
)

// ReduceSum sums the given axes away (all axes if none given). With keepDims
// the reduced axes are kept with dimension 1.
func ReduceSum(a *Tensor, axes []int, keepDims bool) *Tensor {
	return reduceOp(a, axes, keepDims, 0, func(acc, v float64) float64 { return acc + v }, floats.Sum)
}

// ReduceMax takes the maximum over the given axes (all axes if none given).
// With keepDims the reduced axes are kept with dimension 1.
func ReduceMax(a *Tensor, axes []int, keepDims bool) *Tensor {
	return reduceOp(a, axes, keepDims, math.Inf(-1), math.Max, floats.Max)
}

func reduceOp(a *Tensor, axes []int, keepDims bool, initial float64, fn func(acc, v float64) float64, fullFast func([]float64) float64) *Tensor {
	outShape, normalized, err := shapes.Reduce(a.shape, axes, keepDims)
	if err != nil {
		exceptions.Panicf("tensors: %v", err)
	}
	if len(normalized) == a.Rank() && a.Rank() > 0 {
		// Full reduction.
		out := newTensor(outShape)
		out.flat[0] = fullFast(a.flat)
		return out
	}

	out := Full(outShape, initial)
	reduced := make([]bool, a.Rank())
	for _, axis := range normalized {
		reduced[axis] = true
	}
	// Strides into out for each input axis: reduced axes contribute 0, so
	// all elements that differ only on reduced axes fold into the same slot.
	outStrides := make([]int, a.Rank())
	stride := 1
	for axis := a.Rank() - 1; axis >= 0; axis-- {
		if !reduced[axis] {
			outStrides[axis] = stride
			stride *= a.shape.Dimensions[axis]
		}
	}
	zeros := make([]int, a.Rank())
	iterateBroadcast(a.shape, outStrides, zeros, func(inIdx, outIdx, _ int) {
		out.flat[outIdx] = fn(out.flat[outIdx], a.flat[inIdx])
	})
	return out
}

// Transpose returns a new tensor with the axes permuted: output axis ii is
// input axis permutation[ii].
func Transpose(a *Tensor, permutation []int) *Tensor {
	outShape, err := shapes.Transpose(a.shape, permutation)
	if err != nil {
		exceptions.Panicf("tensors: %v", err)
	}
	out := newTensor(outShape)
	inStrides := rowMajorStrides(a.shape)
	// Walking out in row-major order advances the input by the permuted strides.
	walkStrides := make([]int, outShape.Rank())
	for ii, axis := range permutation {
		walkStrides[ii] = inStrides[shapes.AdjustAxis(a.shape, axis)]
	}
	zeros := make([]int, outShape.Rank())
	iterateBroadcast(outShape, walkStrides, zeros, func(outIdx, inIdx, _ int) {
		out.flat[outIdx] = a.flat[inIdx]
	})
	return out
}

// Reshape returns a tensor of the given dimensions sharing the data of a.
// The new shape must have exactly a.Size() elements.
func Reshape(a *Tensor, dimensions ...int) *Tensor {
	outShape := shapes.Make(dimensions...)
	if outShape.Size() != a.Size() {
		exceptions.Panicf("tensors.Reshape: cannot reshape %s (%d values) to %s (%d values)",
			a.shape, a.Size(), outShape, outShape.Size())
	}
	return &Tensor{shape: outShape, flat: a.flat}
}

// BroadcastTo materializes a broadcast to the given dimensions, following
// the right-aligned broadcast rule.
func BroadcastTo(a *Tensor, dimensions ...int) *Tensor {
	outShape := shapes.Make(dimensions...)
	if !shapes.BroadcastableTo(a.shape, outShape) {
		exceptions.Panicf("tensors.BroadcastTo: cannot broadcast %s to %s", a.shape, outShape)
	}
	out := newTensor(outShape)
	strides := broadcastStrides(a.shape, outShape)
	zeros := make([]int, outShape.Rank())
	iterateBroadcast(outShape, strides, zeros, func(outIdx, inIdx, _ int) {
		out.flat[outIdx] = a.flat[inIdx]
	})
	return out
}
