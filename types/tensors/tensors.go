// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements Tensor, a dense multi-dimensional array of
// float64 values, along with the numeric kernels Gradix needs: elementwise
// arithmetic with NumPy-style broadcasting, matrix multiplication (plain and
// batched), reductions, transposition and reshaping.
//
// Tensors are immutable by convention: every kernel returns a fresh tensor
// and never writes to its operands. Flat exposes the backing data for
// reading; callers that need to write should work on CopyFlat.
//
// Kernels assume operands that already passed the shape rules in
// types/shapes (the graph builder and the eager interpreter validate before
// dispatching) and panic on violated preconditions.
package tensors

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/xslices"
)

// Tensor is a dense row-major float64 array of a fixed shape.
type Tensor struct {
	shape shapes.Shape
	flat  []float64
}

// newTensor returns a zero-initialized tensor of the given shape.
func newTensor(shape shapes.Shape) *Tensor {
	return &Tensor{shape: shape, flat: make([]float64, shape.Size())}
}

// FromShape returns a zero-initialized tensor of the given shape.
func FromShape(shape shapes.Shape) *Tensor { return newTensor(shape) }

// Zeros is an alias to FromShape: a tensor of the given shape filled with 0.
func Zeros(shape shapes.Shape) *Tensor { return FromShape(shape) }

// Ones returns a tensor of the given shape filled with 1.
func Ones(shape shapes.Shape) *Tensor { return Full(shape, 1) }

// Full returns a tensor of the given shape with every element set to value.
func Full(shape shapes.Shape, value float64) *Tensor {
	return &Tensor{shape: shape, flat: xslices.SliceWithValue(shape.Size(), value)}
}

// Iota returns a tensor of the given shape whose flat values count up from 0.
func Iota(shape shapes.Shape) *Tensor {
	return &Tensor{shape: shape, flat: xslices.Iota(0.0, shape.Size())}
}

// FromScalar returns a rank-0 tensor holding the given value.
func FromScalar(value float64) *Tensor {
	return &Tensor{shape: shapes.Scalar(), flat: []float64{value}}
}

// FromFlatDataAndDimensions returns a tensor of the given dimensions backed
// by a copy of data, interpreted in row-major order. It panics if the size
// of data does not match the dimensions.
func FromFlatDataAndDimensions(data []float64, dimensions ...int) *Tensor {
	shape := shapes.Make(dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("tensors.FromFlatDataAndDimensions: shape %s needs %d values, got %d",
			shape, shape.Size(), len(data))
	}
	t := newTensor(shape)
	copy(t.flat, data)
	return t
}

// MultiDimensionSlice is the type constraint of the Go values FromValue
// accepts: a float64 scalar or (nested) slices of them.
type MultiDimensionSlice interface {
	float64 | []float64 | [][]float64 | [][][]float64 | [][][][]float64
}

// FromValue returns a tensor with shape and data taken from value, a scalar
// or (nested) slices of float64. Nested slices must be regular, all rows of
// an axis with the same length.
func FromValue[S MultiDimensionSlice](value S) *Tensor {
	return FromAnyValue(value)
}

// FromAnyValue is a non-generic FromValue. It panics if value is not a
// float64 scalar or regular nested slices of float64.
func FromAnyValue(value any) *Tensor {
	if v, ok := value.(float64); ok {
		return FromScalar(v)
	}
	var dims []int
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Slice {
		if v.Len() == 0 {
			exceptions.Panicf("tensors.FromAnyValue: empty slice at axis %d, shapes must have no empty axes", len(dims))
		}
		dims = append(dims, v.Len())
		v = v.Index(0)
	}
	if v.Kind() != reflect.Float64 {
		exceptions.Panicf("tensors.FromAnyValue: only float64 values are supported, got %T", value)
	}
	t := newTensor(shapes.Make(dims...))
	pos := 0
	var fill func(v reflect.Value, axis int)
	fill = func(v reflect.Value, axis int) {
		if axis == len(dims) {
			t.flat[pos] = v.Float()
			pos++
			return
		}
		if v.Len() != dims[axis] {
			exceptions.Panicf("tensors.FromAnyValue: irregular slice, axis %d has %d elements, expected %d",
				axis, v.Len(), dims[axis])
		}
		for ii := 0; ii < v.Len(); ii++ {
			fill(v.Index(ii), axis+1)
		}
	}
	fill(reflect.ValueOf(value), 0)
	return t
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// Rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor holds a single value with rank 0.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size returns the number of elements.
func (t *Tensor) Size() int { return t.shape.Size() }

// Flat returns the backing row-major data. It is not a copy: treat it as
// read-only.
func (t *Tensor) Flat() []float64 { return t.flat }

// CopyFlat returns a copy of the flat row-major data.
func (t *Tensor) CopyFlat() []float64 {
	flat := make([]float64, len(t.flat))
	copy(flat, t.flat)
	return flat
}

// ScalarValue returns the value of a rank-0 tensor. It panics if the tensor
// is not a scalar.
func (t *Tensor) ScalarValue() float64 {
	if !t.IsScalar() {
		exceptions.Panicf("Tensor.ScalarValue called on shape %s", t.shape)
	}
	return t.flat[0]
}

// LayoutStrides returns the row-major strides of the tensor's shape, one per
// axis.
func (t *Tensor) LayoutStrides() []int { return rowMajorStrides(t.shape) }

func rowMajorStrides(shape shapes.Shape) []int {
	rank := shape.Rank()
	strides := make([]int, rank)
	stride := 1
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= shape.Dimensions[axis]
	}
	return strides
}

// Value returns the tensor data as a Go value: a float64 for scalars, nested
// []float64 slices otherwise.
func (t *Tensor) Value() any {
	var build func(offset int, axis int) any
	strides := t.LayoutStrides()
	build = func(offset, axis int) any {
		if axis == t.Rank() {
			return t.flat[offset]
		}
		if axis == t.Rank()-1 {
			row := make([]float64, t.shape.Dimensions[axis])
			copy(row, t.flat[offset:offset+len(row)])
			return row
		}
		dim := t.shape.Dimensions[axis]
		rows := make([]any, dim)
		for ii := 0; ii < dim; ii++ {
			rows[ii] = build(offset+ii*strides[axis], axis+1)
		}
		return anySliceToTyped(rows)
	}
	return build(0, 0)
}

// anySliceToTyped converts []any whose elements are all of the same slice
// type into a typed slice, so Value returns [][]float64 and not []any.
func anySliceToTyped(rows []any) any {
	elemType := reflect.TypeOf(rows[0])
	out := reflect.MakeSlice(reflect.SliceOf(elemType), len(rows), len(rows))
	for ii, row := range rows {
		out.Index(ii).Set(reflect.ValueOf(row))
	}
	return out.Interface()
}

// Equal returns whether both tensors have the same shape and exactly the
// same values.
func (t *Tensor) Equal(other *Tensor) bool {
	return t.InDelta(other, 0)
}

// InDelta returns whether both tensors have the same shape and every element
// differs by at most delta. A delta of 0 requires exact equality.
func (t *Tensor) InDelta(other *Tensor, delta float64) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for ii, v := range t.flat {
		diff := math.Abs(v - other.flat[ii])
		if math.IsNaN(diff) || diff > delta {
			return false
		}
	}
	return true
}

const maxStringValues = 8

// String returns a short human-readable representation: the shape and up to
// 8 values.
func (t *Tensor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: [", t.shape)
	for ii, v := range t.flat {
		if ii >= maxStringValues {
			fmt.Fprintf(&sb, "... (%d values)", t.Size())
			break
		}
		if ii > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%g", v)
	}
	sb.WriteByte(']')
	return sb.String()
}
