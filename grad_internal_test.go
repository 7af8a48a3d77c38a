// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradix

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/graph"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceBroadcast(t *testing.T) {
	ctx := &vjpContext{ops: evalBackend}
	value := func(t2 *tensors.Tensor) backends.Value {
		v, err := evalBackend.Constant(t2)
		require.NoError(t, err)
		return v
	}
	concrete := func(v backends.Value) *tensors.Tensor {
		t2, err := evalBackend.ConcreteValue(v)
		require.NoError(t, err)
		return t2
	}

	m := tensors.FromValue([][]float64{{1, 2, 3}, {10, 20, 30}})

	testCases := []struct {
		name   string
		v      *tensors.Tensor
		target shapes.Shape
		want   *tensors.Tensor
	}{
		{"same shape", m, shapes.Make(2, 3), m},
		{"to scalar", m, shapes.Make(), tensors.FromScalar(66)},
		{"leading axis", m, shapes.Make(3), tensors.FromValue([]float64{11, 22, 33})},
		{"inner dim-1 axis", m, shapes.Make(2, 1), tensors.FromValue([][]float64{{6}, {60}})},
		{"leading and dim-1", tensors.Iota(shapes.Make(2, 4, 3)), shapes.Make(4, 1),
			tensors.FromValue([][]float64{{42}, {60}, {78}, {96}})},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := concrete(ctx.reduceBroadcast(value(tc.v), tc.target))
			assert.Truef(t, tc.want.InDelta(got, 1e-12), "got %s, want %s", got, tc.want)
		})
	}

	t.Run("unrelated shapes", func(t *testing.T) {
		err := exceptions.TryCatch[error](func() {
			ctx.reduceBroadcast(value(tensors.Iota(shapes.Make(3))), shapes.Make(2))
		})
		require.ErrorIs(t, err, ErrShape)
	})
}

func TestUsefulNodes(t *testing.T) {
	b := graph.NewBuilder("useful")
	x, err := b.Parameter("x", shapes.Make(3))
	require.NoError(t, err)
	y, err := b.Parameter("y", shapes.Make(3))
	require.NoError(t, err)
	doubled := graph.MulScalar(x, 2)
	stopped := graph.StopGradient(doubled)
	dangling := graph.Exp(y) // never reaches the output
	out := graph.Add(stopped, y)
	g, err := b.Finalize(out)
	require.NoError(t, err)

	seeds := map[graph.NodeId]backends.Value{out.Id(): nil}
	useful := usefulNodes(g, seeds, []*graph.Node{x, y})

	assert.True(t, useful.Has(out.Id()))
	assert.True(t, useful.Has(y.Id()))
	assert.False(t, useful.Has(x.Id()), "blocked by StopGradient")
	assert.False(t, useful.Has(doubled.Id()))
	assert.False(t, useful.Has(dangling.Id()), "not reachable from the output")
}
