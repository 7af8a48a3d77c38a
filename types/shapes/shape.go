// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape and the shape rules of the Gradix operations.
//
// Gradix computes on dense float64 tensors, so a Shape is just the list of
// dimensions: scalars have rank 0 (nil Dimensions), a vector of 3 elements is
// Make(3), a 2x3 matrix is Make(2, 3) and so on. Shapes are values: copy
// them freely, never mutate Dimensions in place.
//
// The *Shape functions (BroadcastShapes, MatMulShape, ReduceShape,
// TransposeShape, BroadcastableTo) are the rules used by the graph builder
// when appending nodes and by the eager interpreter when validating
// operands. They are pure and have no dependencies, so they can be tested
// in isolation.
package shapes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Shape represents the dimensions of a tensor. The zero value is a valid
// scalar shape.
type Shape struct {
	Dimensions []int
}

// Make returns a Shape with the given dimensions. It panics if any dimension
// is smaller than 1: Gradix has no dynamic (-1) or empty axes.
func Make(dimensions ...int) Shape {
	s := Shape{Dimensions: make([]int, len(dimensions))}
	for axis, dim := range dimensions {
		if dim < 1 {
			exceptions.Panicf("shapes.Make(%v): axis %d has invalid dimension %d", dimensions, axis, dim)
		}
		s.Dimensions[axis] = dim
	}
	return s
}

// Scalar returns the rank-0 shape.
func Scalar() Shape { return Shape{} }

// CheckDims returns an error if any of the dimensions is invalid (< 1).
// It is the non-panicking check behind Make, for callers that report errors
// instead.
func CheckDims(dimensions ...int) error {
	for axis, dim := range dimensions {
		if dim < 1 {
			return errors.Errorf("axis %d has invalid dimension %d in %v", axis, dim, dimensions)
		}
	}
	return nil
}

// Rank of the shape: the number of axes. Scalars have rank 0.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape has rank 0.
func (s Shape) IsScalar() bool { return s.Rank() == 0 }

// Size returns the number of elements a tensor of this shape holds. The size
// of a scalar is 1.
func (s Shape) Size() int {
	size := 1
	for _, dim := range s.Dimensions {
		size *= dim
	}
	return size
}

// Dim returns the dimension of the given axis. Negative axes are taken from
// the end: Dim(-1) is the dimension of the last axis. It panics if axis is
// out of range.
func (s Shape) Dim(axis int) int {
	adjusted := AdjustAxis(s, axis)
	return s.Dimensions[adjusted]
}

// AdjustAxis returns the positive axis, adjusting in case the axis given is
// negative. It panics if the axis is out of range for the shape's rank.
func AdjustAxis(s Shape, axis int) int {
	adjusted := axis
	if axis < 0 {
		adjusted = s.Rank() + axis
	}
	if adjusted < 0 || adjusted >= s.Rank() {
		exceptions.Panicf("invalid axis %d for shape %s", axis, s)
	}
	return adjusted
}

// Clone makes a deep copy of the shape.
func (s Shape) Clone() Shape {
	s2 := Shape{Dimensions: make([]int, len(s.Dimensions))}
	copy(s2.Dimensions, s.Dimensions)
	return s2
}

// Equal compares two shapes for equality.
func (s Shape) Equal(other Shape) bool {
	if s.Rank() != other.Rank() {
		return false
	}
	for axis, dim := range s.Dimensions {
		if other.Dimensions[axis] != dim {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer. Scalars print as "scalar", everything else
// as the dimensions list, e.g. "[2 3]".
func (s Shape) String() string {
	if s.IsScalar() {
		return "scalar"
	}
	parts := make([]string, len(s.Dimensions))
	for axis, dim := range s.Dimensions {
		parts[axis] = strconv.Itoa(dim)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, " "))
}
