// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpTypeString(t *testing.T) {
	// Every member of the closed set must print a proper name: the String
	// switch has to be extended together with the enum.
	for op := OpTypeInvalid; op < OpTypeLast; op++ {
		assert.NotEqualf(t, "UnknownOpType", op.String(), "OpType %d is missing a String case", int(op))
	}
	assert.Equal(t, "MatMul", OpTypeMatMul.String())
	assert.Equal(t, "UnknownOpType", OpTypeLast.String())
}
