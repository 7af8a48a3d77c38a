// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

// OpType identifies each operation of the closed Gradix operation set.
//
// The set is deliberately closed: the graph node kinds, the eager dispatch,
// the shape rules and the gradient (VJP) rules are all exhaustive switches
// over these values, so a missing case surfaces as an ErrUnsupported error
// instead of silently misbehaving. Extending the set means extending each of
// those switches.
type OpType int

const (
	// OpTypeInvalid is the zero value, used only to catch uninitialized nodes.
	OpTypeInvalid OpType = iota

	// OpTypeParameter is a graph input placeholder.
	OpTypeParameter
	// OpTypeConstant holds a tensor embedded in the graph.
	OpTypeConstant

	OpTypeAdd
	OpTypeSub
	OpTypeMul
	OpTypeDiv

	OpTypeNeg
	OpTypeSin
	OpTypeCos
	OpTypeExp
	OpTypeLog
	OpTypeSqrt
	OpTypeRelu
	OpTypeStep

	OpTypeMatMul
	OpTypeTranspose
	OpTypeReshape
	OpTypeBroadcastTo
	OpTypeReduceSum
	OpTypeReduceMax

	// OpTypeLast is a sentinel, always the last entry.
	OpTypeLast
)

// String implements fmt.Stringer.
func (op OpType) String() string {
	switch op {
	case OpTypeInvalid:
		return "Invalid"
	case OpTypeParameter:
		return "Parameter"
	case OpTypeConstant:
		return "Constant"
	case OpTypeAdd:
		return "Add"
	case OpTypeSub:
		return "Sub"
	case OpTypeMul:
		return "Mul"
	case OpTypeDiv:
		return "Div"
	case OpTypeNeg:
		return "Neg"
	case OpTypeSin:
		return "Sin"
	case OpTypeCos:
		return "Cos"
	case OpTypeExp:
		return "Exp"
	case OpTypeLog:
		return "Log"
	case OpTypeSqrt:
		return "Sqrt"
	case OpTypeRelu:
		return "Relu"
	case OpTypeStep:
		return "Step"
	case OpTypeMatMul:
		return "MatMul"
	case OpTypeTranspose:
		return "Transpose"
	case OpTypeReshape:
		return "Reshape"
	case OpTypeBroadcastTo:
		return "BroadcastTo"
	case OpTypeReduceSum:
		return "ReduceSum"
	case OpTypeReduceMax:
		return "ReduceMax"
	default:
		return "UnknownOpType"
	}
}
