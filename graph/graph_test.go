// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderParameters(t *testing.T) {
	b := NewBuilder("params")
	x, err := b.Parameter("x", shapes.Make(3))
	require.NoError(t, err)
	y, err := b.Parameter("y", shapes.Scalar())
	require.NoError(t, err)

	assert.Equal(t, NodeId(0), x.Id())
	assert.Equal(t, NodeId(1), y.Id())
	assert.Equal(t, "x", x.ParameterName())
	assert.Equal(t, 0, x.ParameterIndex())
	assert.Equal(t, 1, y.ParameterIndex())
	assert.Equal(t, 2, b.Graph().NumParameters())

	// Unnamed parameters are assigned a positional name.
	z, err := b.Parameter("", shapes.Make(2, 2))
	require.NoError(t, err)
	assert.Equal(t, "arg#2", z.ParameterName())

	// Duplicate names are rejected.
	_, err = b.Parameter("x", shapes.Make(7))
	require.ErrorIs(t, err, backends.ErrShape)
}

func TestNodeIdsAreCreationOrder(t *testing.T) {
	b := NewBuilder("topology")
	x, err := b.Parameter("x", shapes.Make(2, 3))
	require.NoError(t, err)
	y, err := b.Parameter("y", shapes.Make(3))
	require.NoError(t, err)
	sum := Add(x, y)
	out := Mul(sum, sum)

	g := b.Graph()
	require.Equal(t, 4, g.NumNodes())
	for _, node := range g.Nodes() {
		assert.Equal(t, node, g.NodeById(node.Id()))
		for _, input := range node.Inputs() {
			assert.Less(t, input.Id(), node.Id(), "inputs must be created before their consumers")
		}
	}
	assert.Equal(t, NodeId(3), out.Id())
	assert.Equal(t, []*Node{x, y}, sum.Inputs())
}

func TestFinalize(t *testing.T) {
	b := NewBuilder("finalize")
	x, err := b.Parameter("x", shapes.Make(3))
	require.NoError(t, err)
	out := AddScalar(x, 1)

	g, err := b.Finalize(out)
	require.NoError(t, err)
	assert.True(t, g.Finalized())
	assert.Equal(t, []*Node{out}, g.Outputs())

	// No more nodes after finalization, through either surface.
	_, err = b.Add(x, x)
	require.ErrorIs(t, err, backends.ErrCrossGraph)
	err = exceptions.TryCatch[error](func() { Add(x, x) })
	require.ErrorIs(t, err, backends.ErrCrossGraph)

	// Finalizing twice is also an error.
	_, err = b.Finalize(out)
	require.ErrorIs(t, err, backends.ErrCrossGraph)
}

func TestFinalizeValidation(t *testing.T) {
	b := NewBuilder("no-outputs")
	_, err := b.Parameter("x", shapes.Make(3))
	require.NoError(t, err)
	_, err = b.Finalize()
	require.ErrorIs(t, err, backends.ErrArity)

	// Outputs must belong to the graph being finalized.
	other := NewBuilder("other")
	foreign, err := other.Parameter("x", shapes.Make(3))
	require.NoError(t, err)
	_, err = b.Finalize(foreign)
	require.ErrorIs(t, err, backends.ErrCrossGraph)
}

func TestCrossGraphNodes(t *testing.T) {
	b1 := NewBuilder("g1")
	b2 := NewBuilder("g2")
	x1, err := b1.Parameter("x", shapes.Make(3))
	require.NoError(t, err)
	x2, err := b2.Parameter("x", shapes.Make(3))
	require.NoError(t, err)

	err = exceptions.TryCatch[error](func() { Add(x1, x2) })
	require.ErrorIs(t, err, backends.ErrCrossGraph)

	// Builder surface returns the error directly, including for values it
	// never created.
	_, err = b1.Add(x1, x2)
	require.ErrorIs(t, err, backends.ErrCrossGraph)
	_, err = b1.Neg(42)
	require.ErrorIs(t, err, backends.ErrCrossGraph)
	_, err = b1.Add(x1, nil)
	require.ErrorIs(t, err, backends.ErrCrossGraph)
}

func TestBuilderIsSymbolic(t *testing.T) {
	b := NewBuilder("symbolic")
	x, err := b.Parameter("x", shapes.Make(2))
	require.NoError(t, err)

	shape, err := b.ShapeOf(x)
	require.NoError(t, err)
	assert.True(t, shape.Equal(shapes.Make(2)))

	// Symbolic values have no concrete tensor to read.
	_, err = b.ConcreteValue(x)
	require.ErrorIs(t, err, backends.ErrUntraceable)

	v, err := b.Constant(tensors.FromScalar(3))
	require.NoError(t, err)
	node := v.(*Node)
	assert.Equal(t, backends.OpTypeConstant, node.OpType())
	require.NotNil(t, node.ConstValue())
	assert.Equal(t, 3.0, node.ConstValue().ScalarValue())
}

func TestGraphString(t *testing.T) {
	b := NewBuilder("dump")
	x, err := b.Parameter("x", shapes.Make(2))
	require.NoError(t, err)
	out := Mul(AddScalar(x, 1), x)
	g, err := b.Finalize(out)
	require.NoError(t, err)

	dump := g.String()
	assert.Contains(t, dump, `Graph "dump"`)
	assert.Contains(t, dump, `Parameter("x")`)
	assert.Contains(t, dump, "Mul(#2, #0)")
	assert.Contains(t, dump, "outputs: #3")
}
