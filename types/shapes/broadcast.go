// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"

	"github.com/pkg/errors"
)

// Broadcast returns the shape that a and b broadcast to, following the
// NumPy rule: align shapes on the right, pad the shorter one with 1s, and
// for each axis the dimensions must match or one of them must be 1, in
// which case it stretches to the other. It returns ok=false if the shapes
// are not broadcast-compatible.
func Broadcast(a, b Shape) (Shape, bool) {
	rank := max(a.Rank(), b.Rank())
	if rank == 0 {
		return Scalar(), true
	}
	dims := make([]int, rank)
	for axis := 1; axis <= rank; axis++ {
		dimA, dimB := 1, 1
		if axis <= a.Rank() {
			dimA = a.Dimensions[a.Rank()-axis]
		}
		if axis <= b.Rank() {
			dimB = b.Dimensions[b.Rank()-axis]
		}
		switch {
		case dimA == dimB:
			dims[rank-axis] = dimA
		case dimA == 1:
			dims[rank-axis] = dimB
		case dimB == 1:
			dims[rank-axis] = dimA
		default:
			return Shape{}, false
		}
	}
	return Shape{Dimensions: dims}, true
}

// BroadcastableTo reports whether a tensor of shape from can be broadcast to
// the shape to. Different from Broadcast, this is directional: from may not
// stretch any of to's dimensions.
func BroadcastableTo(from, to Shape) bool {
	if from.Rank() > to.Rank() {
		return false
	}
	for axis := 1; axis <= from.Rank(); axis++ {
		dimFrom := from.Dimensions[from.Rank()-axis]
		dimTo := to.Dimensions[to.Rank()-axis]
		if dimFrom != dimTo && dimFrom != 1 {
			return false
		}
	}
	return true
}

// MatMul returns the shape of the matrix multiplication of lhs by rhs.
//
// The supported cases follow the usual conventions: two vectors contract to
// a scalar (dot product), a vector against a matrix (and vice versa)
// contracts the matching axis, and for operands of rank 2 or higher the last
// two axes multiply as matrices while the leading (batch) axes broadcast
// together. A scalar operand turns the operation into a plain elementwise
// multiplication. A vector against an operand of rank 3 or higher is
// rejected.
func MatMul(lhs, rhs Shape) (Shape, error) {
	lRank, rRank := lhs.Rank(), rhs.Rank()
	switch {
	case lRank == 0 || rRank == 0:
		result, ok := Broadcast(lhs, rhs)
		if !ok {
			return Shape{}, errors.Errorf("MatMul with scalar operand cannot broadcast %s and %s", lhs, rhs)
		}
		return result, nil

	case lRank == 1 && rRank == 1:
		if lhs.Dimensions[0] != rhs.Dimensions[0] {
			return Shape{}, errors.Errorf("MatMul of vectors with different lengths: %s and %s", lhs, rhs)
		}
		return Scalar(), nil

	case lRank == 1 && rRank == 2:
		if lhs.Dimensions[0] != rhs.Dimensions[0] {
			return Shape{}, errors.Errorf("MatMul vector length %d does not match matrix rows of %s", lhs.Dimensions[0], rhs)
		}
		return Make(rhs.Dimensions[1]), nil

	case lRank == 2 && rRank == 1:
		if lhs.Dimensions[1] != rhs.Dimensions[0] {
			return Shape{}, errors.Errorf("MatMul matrix columns of %s do not match vector length %d", lhs, rhs.Dimensions[0])
		}
		return Make(lhs.Dimensions[0]), nil

	case lRank >= 2 && rRank >= 2:
		contractL, contractR := lhs.Dim(-1), rhs.Dim(-2)
		if contractL != contractR {
			return Shape{}, errors.Errorf("MatMul inner dimensions do not match: %s and %s", lhs, rhs)
		}
		batchL := Shape{Dimensions: lhs.Dimensions[:lRank-2]}
		batchR := Shape{Dimensions: rhs.Dimensions[:rRank-2]}
		batch, ok := Broadcast(batchL, batchR)
		if !ok {
			return Shape{}, errors.Errorf("MatMul batch dimensions are not broadcast-compatible: %s and %s", lhs, rhs)
		}
		dims := make([]int, 0, batch.Rank()+2)
		dims = append(dims, batch.Dimensions...)
		dims = append(dims, lhs.Dim(-2), rhs.Dim(-1))
		return Shape{Dimensions: dims}, nil

	default:
		return Shape{}, errors.Errorf("MatMul of a vector against rank %d is not supported: %s and %s",
			max(lRank, rRank), lhs, rhs)
	}
}

// Reduce returns the shape after reducing the given axes, and the normalized
// (positive, ascending, deduplicated) axes actually reduced. An empty axes
// list reduces over all axes. With keepDims the reduced axes are kept with
// dimension 1, otherwise they are removed.
func Reduce(s Shape, axes []int, keepDims bool) (Shape, []int, error) {
	if len(axes) == 0 {
		axes = make([]int, s.Rank())
		for axis := range axes {
			axes[axis] = axis
		}
	}
	reduced := make([]bool, s.Rank())
	normalized := make([]int, 0, len(axes))
	for _, axis := range axes {
		adjusted := axis
		if adjusted < 0 {
			adjusted = s.Rank() + adjusted
		}
		if adjusted < 0 || adjusted >= s.Rank() {
			return Shape{}, nil, errors.Errorf("reduce axis %d out of range for shape %s", axis, s)
		}
		if !reduced[adjusted] {
			reduced[adjusted] = true
			normalized = append(normalized, adjusted)
		}
	}
	slices.Sort(normalized)
	var dims []int
	for axis, dim := range s.Dimensions {
		if !reduced[axis] {
			dims = append(dims, dim)
		} else if keepDims {
			dims = append(dims, 1)
		}
	}
	return Shape{Dimensions: dims}, normalized, nil
}

// Transpose returns the shape after permuting the axes: output axis ii has
// the dimension of input axis permutation[ii]. The permutation must mention
// every axis of s exactly once (negative indices allowed).
func Transpose(s Shape, permutation []int) (Shape, error) {
	if len(permutation) != s.Rank() {
		return Shape{}, errors.Errorf("transpose permutation %v has %d axes, shape %s has rank %d",
			permutation, len(permutation), s, s.Rank())
	}
	seen := make([]bool, s.Rank())
	dims := make([]int, s.Rank())
	for ii, axis := range permutation {
		adjusted := axis
		if adjusted < 0 {
			adjusted = s.Rank() + adjusted
		}
		if adjusted < 0 || adjusted >= s.Rank() {
			return Shape{}, errors.Errorf("transpose permutation %v: axis %d out of range for shape %s", permutation, axis, s)
		}
		if seen[adjusted] {
			return Shape{}, errors.Errorf("transpose permutation %v mentions axis %d more than once", permutation, adjusted)
		}
		seen[adjusted] = true
		dims[ii] = s.Dimensions[adjusted]
	}
	return Shape{Dimensions: dims}, nil
}
