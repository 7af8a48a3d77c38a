// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestParams builds a graph with one parameter per shape given.
func newTestParams(t *testing.T, dims ...[]int) (*Builder, []*Node) {
	t.Helper()
	b := NewBuilder(t.Name())
	nodes := make([]*Node, len(dims))
	for ii, d := range dims {
		var err error
		nodes[ii], err = b.Parameter("", shapes.Make(d...))
		require.NoError(t, err)
	}
	return b, nodes
}

func TestOpsShapeInference(t *testing.T) {
	_, params := newTestParams(t, []int{2, 3}, []int{3}, []int{3, 5})
	x, y, w := params[0], params[1], params[2]

	testCases := []struct {
		name string
		node *Node
		want shapes.Shape
	}{
		{"Add broadcasts", Add(x, y), shapes.Make(2, 3)},
		{"Sub broadcasts scalar", SubScalar(x, 1), shapes.Make(2, 3)},
		{"Div broadcasts scalar", DivScalar(x, 2), shapes.Make(2, 3)},
		{"MatMul", MatMul(x, w), shapes.Make(2, 5)},
		{"MatMul vector lhs", MatMul(y, w), shapes.Make(5)},
		{"MatMul vector rhs", MatMul(x, y), shapes.Make(2)},
		{"Neg", Neg(x), shapes.Make(2, 3)},
		{"Transpose", Transpose(x, 0, 1), shapes.Make(3, 2)},
		{"Transpose negative axes", Transpose(x, -1, -2), shapes.Make(3, 2)},
		{"Reshape", Reshape(x, 3, 2), shapes.Make(3, 2)},
		{"Reshape to vector", Reshape(x, 6), shapes.Make(6)},
		{"BroadcastTo", BroadcastTo(y, 4, 3), shapes.Make(4, 3)},
		{"ReduceSum all", ReduceSum(x), shapes.Scalar()},
		{"ReduceSum axis", ReduceSum(x, 0), shapes.Make(3)},
		{"ReduceMax negative axis", ReduceMax(x, -1), shapes.Make(2)},
		{"ReduceMean", ReduceMean(x, 1), shapes.Make(2)},
		{"ReduceAndKeep", ReduceAndKeep(x, ReduceSum, 1), shapes.Make(2, 1)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Truef(t, tc.node.Shape().Equal(tc.want), "got shape %s, want %s", tc.node.Shape(), tc.want)
		})
	}
}

func TestMatMulScalarDegradesToMul(t *testing.T) {
	_, params := newTestParams(t, []int{2, 3}, nil)
	x, s := params[0], params[1]
	node := MatMul(x, s)
	assert.Equal(t, backends.OpTypeMul, node.OpType())
	assert.True(t, node.Shape().Equal(shapes.Make(2, 3)))
	node = MatMul(s, x)
	assert.Equal(t, backends.OpTypeMul, node.OpType())
}

func TestTransposeAllDims(t *testing.T) {
	_, params := newTestParams(t, []int{2, 3, 4})
	x := params[0]
	node := TransposeAllDims(x, 2, 0, 1)
	assert.True(t, node.Shape().Equal(shapes.Make(4, 2, 3)))
	assert.Equal(t, []int{2, 0, 1}, node.Permutation())

	// Negative axes are normalized before being stored.
	node = TransposeAllDims(x, -1, -2, -3)
	assert.Equal(t, []int{2, 1, 0}, node.Permutation())
}

func TestConstants(t *testing.T) {
	b := NewBuilder("constants")
	g := b.Graph()

	c := Const(g, [][]float64{{1, 2}, {3, 4}})
	assert.True(t, c.Shape().Equal(shapes.Make(2, 2)))
	assert.Equal(t, backends.OpTypeConstant, c.OpType())

	s := Scalar(g, 2.5)
	assert.True(t, s.IsScalar())
	assert.Equal(t, 2.5, s.ConstValue().ScalarValue())

	ones := OnesLike(c)
	assert.True(t, ones.Shape().Equal(c.Shape()))
	assert.Equal(t, backends.OpTypeBroadcastTo, ones.OpType())

	zeros := Zeros(g, shapes.Make(3, 1))
	assert.True(t, zeros.Shape().Equal(shapes.Make(3, 1)))

	zerosLike := ZerosLike(ones)
	assert.True(t, zerosLike.Shape().Equal(c.Shape()))
}

func TestStopGradientNode(t *testing.T) {
	_, params := newTestParams(t, []int{2, 3})
	x := params[0]
	sg := StopGradient(x)
	assert.True(t, sg.IsStopGradient())
	assert.True(t, sg.Shape().Equal(x.Shape()))
	assert.Equal(t, backends.OpTypeReshape, sg.OpType())
	assert.False(t, x.IsStopGradient())
}

func TestOpsShapeErrors(t *testing.T) {
	_, params := newTestParams(t, []int{2, 3}, []int{4}, []int{2, 2, 2})
	x, y, cube := params[0], params[1], params[2]

	testCases := []struct {
		name string
		fn   func()
	}{
		{"Add mismatched", func() { Add(x, y) }},
		{"MatMul contraction mismatch", func() { MatMul(x, Reshape(y, 4, 1)) }},
		{"MatMul vector vs batched", func() { MatMul(y, cube) }},
		{"Reshape size change", func() { Reshape(x, 7) }},
		{"BroadcastTo shrinks", func() { BroadcastTo(x, 3) }},
		{"Transpose axis out of range", func() { Transpose(x, 0, 5) }},
		{"TransposeAllDims incomplete", func() { TransposeAllDims(x, 0) }},
		{"ReduceSum bad axis", func() { ReduceSum(x, 2) }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := exceptions.TryCatch[error](tc.fn)
			require.ErrorIs(t, err, backends.ErrShape)
		})
	}
}

func TestLoggedNodes(t *testing.T) {
	_, params := newTestParams(t, []int{2})
	x := params[0]
	node := AddScalar(x, 1)
	assert.False(t, node.IsLogged())
	node.SetLogged("x plus one")
	assert.True(t, node.IsLogged())
	assert.Equal(t, "x plus one", node.LogMessage())
	assert.Contains(t, node.String(), "[Logged:")
}
