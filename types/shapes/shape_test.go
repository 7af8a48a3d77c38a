// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeAndAccessors(t *testing.T) {
	s := Make(2, 3)
	assert.Equal(t, 2, s.Rank())
	assert.Equal(t, 6, s.Size())
	assert.Equal(t, 3, s.Dim(-1))
	assert.Equal(t, 2, s.Dim(0))
	assert.False(t, s.IsScalar())
	assert.Equal(t, "[2 3]", s.String())

	scalar := Scalar()
	assert.True(t, scalar.IsScalar())
	assert.Equal(t, 1, scalar.Size())
	assert.Equal(t, "scalar", scalar.String())

	require.Panics(t, func() { Make(2, 0) })
	require.Panics(t, func() { Make(-1) })
	require.Panics(t, func() { s.Dim(2) })
	require.Panics(t, func() { s.Dim(-3) })

	clone := s.Clone()
	assert.True(t, s.Equal(clone))
	clone.Dimensions[0] = 7
	assert.False(t, s.Equal(clone))
	assert.False(t, s.Equal(Make(2)))
	assert.True(t, Scalar().Equal(Shape{}))
}

func TestBroadcast(t *testing.T) {
	testCases := []struct {
		a, b Shape
		want Shape
		ok   bool
	}{
		{Make(2, 3), Make(2, 3), Make(2, 3), true},
		{Make(2, 3), Scalar(), Make(2, 3), true},
		{Scalar(), Scalar(), Scalar(), true},
		{Make(3), Make(2, 3), Make(2, 3), true},
		{Make(2, 1), Make(1, 3), Make(2, 3), true},
		{Make(5, 1, 3), Make(4, 3), Make(5, 4, 3), true},
		{Make(2), Make(3), Shape{}, false},
		{Make(2, 2), Make(2, 3), Shape{}, false},
	}
	for _, tc := range testCases {
		got, ok := Broadcast(tc.a, tc.b)
		require.Equalf(t, tc.ok, ok, "Broadcast(%s, %s)", tc.a, tc.b)
		if ok {
			assert.Truef(t, tc.want.Equal(got), "Broadcast(%s, %s): want %s, got %s", tc.a, tc.b, tc.want, got)
		}
		// The rule is symmetric.
		gotRev, okRev := Broadcast(tc.b, tc.a)
		assert.Equal(t, ok, okRev)
		if ok {
			assert.True(t, got.Equal(gotRev))
		}
	}
}

func TestBroadcastableTo(t *testing.T) {
	assert.True(t, BroadcastableTo(Scalar(), Make(2, 3)))
	assert.True(t, BroadcastableTo(Make(3), Make(2, 3)))
	assert.True(t, BroadcastableTo(Make(1, 3), Make(2, 3)))
	assert.True(t, BroadcastableTo(Make(2, 3), Make(2, 3)))
	assert.False(t, BroadcastableTo(Make(2), Make(2, 3)))
	assert.False(t, BroadcastableTo(Make(2, 3), Make(3)))
	assert.False(t, BroadcastableTo(Make(2, 3), Scalar()))
}

func TestMatMul(t *testing.T) {
	testCases := []struct {
		lhs, rhs Shape
		want     Shape
		wantErr  bool
	}{
		{Make(3), Make(3), Scalar(), false},
		{Make(3), Make(3, 4), Make(4), false},
		{Make(3, 4), Make(4), Make(3), false},
		{Make(3, 4), Make(4, 5), Make(3, 5), false},
		{Make(7, 3, 4), Make(7, 4, 5), Make(7, 3, 5), false},
		{Make(7, 3, 4), Make(4, 5), Make(7, 3, 5), false},
		{Make(1, 3, 4), Make(7, 4, 5), Make(7, 3, 5), false},
		{Scalar(), Make(3, 4), Make(3, 4), false},
		{Make(3), Scalar(), Make(3), false},
		{Make(3), Make(4), Shape{}, true},
		{Make(3), Make(4, 5), Shape{}, true},
		{Make(3, 4), Make(5, 6), Shape{}, true},
		{Make(3), Make(2, 3, 4), Shape{}, true},
		{Make(2, 3, 4), Make(3, 4, 5), Shape{}, true},
	}
	for _, tc := range testCases {
		got, err := MatMul(tc.lhs, tc.rhs)
		if tc.wantErr {
			require.Errorf(t, err, "MatMul(%s, %s)", tc.lhs, tc.rhs)
			continue
		}
		require.NoErrorf(t, err, "MatMul(%s, %s)", tc.lhs, tc.rhs)
		assert.Truef(t, tc.want.Equal(got), "MatMul(%s, %s): want %s, got %s", tc.lhs, tc.rhs, tc.want, got)
	}
}

func TestReduce(t *testing.T) {
	s := Make(2, 3, 4)

	got, axes, err := Reduce(s, nil, false)
	require.NoError(t, err)
	assert.True(t, got.IsScalar())
	assert.Equal(t, []int{0, 1, 2}, axes)

	got, axes, err = Reduce(s, []int{1}, false)
	require.NoError(t, err)
	assert.True(t, Make(2, 4).Equal(got))
	assert.Equal(t, []int{1}, axes)

	got, _, err = Reduce(s, []int{1}, true)
	require.NoError(t, err)
	assert.True(t, Make(2, 1, 4).Equal(got))

	got, axes, err = Reduce(s, []int{-1, 0, -1}, false)
	require.NoError(t, err)
	assert.True(t, Make(3).Equal(got))
	assert.Equal(t, []int{0, 2}, axes)

	got, _, err = Reduce(Scalar(), nil, false)
	require.NoError(t, err)
	assert.True(t, got.IsScalar())

	_, _, err = Reduce(s, []int{3}, false)
	require.Error(t, err)
	_, _, err = Reduce(s, []int{-4}, false)
	require.Error(t, err)
}

func TestTranspose(t *testing.T) {
	s := Make(2, 3, 4)

	got, err := Transpose(s, []int{2, 0, 1})
	require.NoError(t, err)
	assert.True(t, Make(4, 2, 3).Equal(got))

	got, err = Transpose(s, []int{0, 2, 1})
	require.NoError(t, err)
	assert.True(t, Make(2, 4, 3).Equal(got))

	got, err = Transpose(Scalar(), nil)
	require.NoError(t, err)
	assert.True(t, got.IsScalar())

	_, err = Transpose(s, []int{0, 1})
	require.Error(t, err)
	_, err = Transpose(s, []int{0, 1, 1})
	require.Error(t, err)
	_, err = Transpose(s, []int{0, 1, 3})
	require.Error(t, err)
}
