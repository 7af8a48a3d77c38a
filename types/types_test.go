// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := MakeSet[int](3)
	assert.False(t, s.Has(3))
	s.Insert(3, 5)
	assert.True(t, s.Has(3))
	assert.True(t, s.Has(5))
	assert.False(t, s.Has(7))

	s2 := SetWith(3, 5)
	assert.Len(t, s2, 2)
	assert.True(t, s2.Has(3))
}
