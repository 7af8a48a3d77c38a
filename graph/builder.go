// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
	"github.com/pkg/errors"
)

// Builder builds a Graph one operation at a time and is the symbolic
// implementation of backends.Ops: operations return *Node values wrapped as
// backends.Value and no computation happens until the finalized graph is
// evaluated.
//
// A Builder is not safe for concurrent use. After Finalize the builder's
// graph stops accepting nodes.
type Builder struct {
	g *Graph
}

var _ backends.Ops = (*Builder)(nil)

// NewBuilder creates a Builder for a new empty graph with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{g: newGraph(name)}
}

// Graph being built. It keeps accepting nodes until Finalize.
func (b *Builder) Graph() *Graph { return b.g }

// Name implements backends.Ops.
func (b *Builder) Name() string {
	return fmt.Sprintf("builder(%q)", b.g.name)
}

// Parameter creates a named placeholder node whose value is fed at
// evaluation time. Names must be unique within the graph; an empty name is
// assigned "arg#<index>".
func (b *Builder) Parameter(name string, shape shapes.Shape) (*Node, error) {
	return b.g.addParameter(name, shape)
}

// Finalize freezes the graph with the given outputs, after which the graph
// can be evaluated. At least one output is required.
func (b *Builder) Finalize(outputs ...*Node) (*Graph, error) {
	if err := b.g.finalize(outputs); err != nil {
		return nil, err
	}
	return b.g, nil
}

// nodeOf converts a backends.Value back to the *Node this builder created,
// failing for foreign values.
func (b *Builder) nodeOf(opName string, v backends.Value) (*Node, error) {
	node, ok := v.(*Node)
	if !ok {
		return nil, errors.Wrapf(backends.ErrCrossGraph,
			"%s: value of type %T was not created by %s", opName, v, b.Name())
	}
	if node.g != b.g {
		return nil, errors.Wrapf(backends.ErrCrossGraph,
			"%s: node #%d belongs to graph %q, not to graph %q", opName, node.id, node.g.name, b.g.name)
	}
	return node, nil
}

func (b *Builder) nodesOf(opName string, x, y backends.Value) (lhs, rhs *Node, err error) {
	lhs, err = b.nodeOf(opName, x)
	if err != nil {
		return
	}
	rhs, err = b.nodeOf(opName, y)
	return
}

// Constant implements backends.Ops.
func (b *Builder) Constant(t *tensors.Tensor) (backends.Value, error) {
	return b.g.addConstant(t)
}

// ShapeOf implements backends.Ops.
func (b *Builder) ShapeOf(v backends.Value) (shapes.Shape, error) {
	node, err := b.nodeOf("ShapeOf", v)
	if err != nil {
		return shapes.Shape{}, err
	}
	return node.shape, nil
}

// ConcreteValue implements backends.Ops. Symbolic values carry no data, so
// it always fails with ErrUntraceable: reading a concrete tensor inside a
// traced function means its result would be baked into the graph, hiding
// data-dependent control flow.
func (b *Builder) ConcreteValue(v backends.Value) (*tensors.Tensor, error) {
	node, err := b.nodeOf("ConcreteValue", v)
	if err != nil {
		return nil, err
	}
	return nil, errors.Wrapf(backends.ErrUntraceable,
		"node #%d (%s) has no concrete value while the graph is being built", node.id, node.opType)
}

func (b *Builder) binaryOp(opType backends.OpType, x, y backends.Value) (backends.Value, error) {
	lhs, rhs, err := b.nodesOf(opType.String(), x, y)
	if err != nil {
		return nil, err
	}
	return b.g.addBinaryOp(opType, lhs, rhs)
}

func (b *Builder) unaryOp(opType backends.OpType, x backends.Value) (backends.Value, error) {
	node, err := b.nodeOf(opType.String(), x)
	if err != nil {
		return nil, err
	}
	return b.g.addUnaryOp(opType, node)
}

// Add implements backends.Ops.
func (b *Builder) Add(x, y backends.Value) (backends.Value, error) {
	return b.binaryOp(backends.OpTypeAdd, x, y)
}

// Sub implements backends.Ops.
func (b *Builder) Sub(x, y backends.Value) (backends.Value, error) {
	return b.binaryOp(backends.OpTypeSub, x, y)
}

// Mul implements backends.Ops.
func (b *Builder) Mul(x, y backends.Value) (backends.Value, error) {
	return b.binaryOp(backends.OpTypeMul, x, y)
}

// Div implements backends.Ops.
func (b *Builder) Div(x, y backends.Value) (backends.Value, error) {
	return b.binaryOp(backends.OpTypeDiv, x, y)
}

// Neg implements backends.Ops.
func (b *Builder) Neg(x backends.Value) (backends.Value, error) {
	return b.unaryOp(backends.OpTypeNeg, x)
}

// Sin implements backends.Ops.
func (b *Builder) Sin(x backends.Value) (backends.Value, error) {
	return b.unaryOp(backends.OpTypeSin, x)
}

// Cos implements backends.Ops.
func (b *Builder) Cos(x backends.Value) (backends.Value, error) {
	return b.unaryOp(backends.OpTypeCos, x)
}

// Exp implements backends.Ops.
func (b *Builder) Exp(x backends.Value) (backends.Value, error) {
	return b.unaryOp(backends.OpTypeExp, x)
}

// Log implements backends.Ops.
func (b *Builder) Log(x backends.Value) (backends.Value, error) {
	return b.unaryOp(backends.OpTypeLog, x)
}

// Sqrt implements backends.Ops.
func (b *Builder) Sqrt(x backends.Value) (backends.Value, error) {
	return b.unaryOp(backends.OpTypeSqrt, x)
}

// Relu implements backends.Ops.
func (b *Builder) Relu(x backends.Value) (backends.Value, error) {
	return b.unaryOp(backends.OpTypeRelu, x)
}

// Step implements backends.Ops.
func (b *Builder) Step(x backends.Value) (backends.Value, error) {
	return b.unaryOp(backends.OpTypeStep, x)
}

// MatMul implements backends.Ops.
func (b *Builder) MatMul(x, y backends.Value) (backends.Value, error) {
	lhs, rhs, err := b.nodesOf("MatMul", x, y)
	if err != nil {
		return nil, err
	}
	return b.g.addMatMul(lhs, rhs)
}

// Transpose implements backends.Ops.
func (b *Builder) Transpose(x backends.Value, permutation ...int) (backends.Value, error) {
	node, err := b.nodeOf("Transpose", x)
	if err != nil {
		return nil, err
	}
	return b.g.addTranspose(node, permutation)
}

// Reshape implements backends.Ops.
func (b *Builder) Reshape(x backends.Value, dimensions ...int) (backends.Value, error) {
	node, err := b.nodeOf("Reshape", x)
	if err != nil {
		return nil, err
	}
	return b.g.addReshape(node, dimensions)
}

// BroadcastTo implements backends.Ops.
func (b *Builder) BroadcastTo(x backends.Value, dimensions ...int) (backends.Value, error) {
	node, err := b.nodeOf("BroadcastTo", x)
	if err != nil {
		return nil, err
	}
	return b.g.addBroadcastTo(node, dimensions)
}

// ReduceSum implements backends.Ops.
func (b *Builder) ReduceSum(x backends.Value, axes []int, keepDims bool) (backends.Value, error) {
	node, err := b.nodeOf("ReduceSum", x)
	if err != nil {
		return nil, err
	}
	return b.g.addReduce(backends.OpTypeReduceSum, node, axes, keepDims)
}

// ReduceMax implements backends.Ops.
func (b *Builder) ReduceMax(x backends.Value, axes []int, keepDims bool) (backends.Value, error) {
	node, err := b.nodeOf("ReduceMax", x)
	if err != nil {
		return nil, err
	}
	return b.g.addReduce(backends.OpTypeReduceMax, node, axes, keepDims)
}
