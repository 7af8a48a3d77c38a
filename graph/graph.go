// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph defines the computation graph Gradix traces functions into:
// an append-only, acyclic sequence of Nodes, each one operation of the
// closed operation set.
//
// A graph is built through a Builder (the symbolic implementation of
// backends.Ops, used by the engine) or, more conveniently inside traced
// functions, through the package-level operation functions (Add, Mul,
// MatMul, ...) that combine nodes directly and panic on invalid use; the
// engine converts those panics into errors at the trace boundary.
//
// Node ids are creation indices, so iterating nodes by ascending id visits
// every node after all of its inputs. Once finalized with its outputs a
// Graph is immutable and safe to share across goroutines.
package graph

import (
	"fmt"
	"strings"

	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Graph is a computation as an append-only DAG of operation nodes.
//
// Mutating methods are only available through the Builder that owns the
// graph (and the package-level operation functions); after Finalize the
// graph is frozen.
type Graph struct {
	name           string
	nodes          []*Node
	parameters     []*Node
	parameterNames map[string]NodeId
	outputs        []*Node
	frozen         bool
}

func newGraph(name string) *Graph {
	return &Graph{
		name:           name,
		parameterNames: make(map[string]NodeId),
	}
}

// Name of the graph, set at creation.
func (g *Graph) Name() string { return g.name }

// NumNodes returns how many nodes the graph holds.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Nodes returns the graph's nodes ordered by id. The returned slice is owned
// by the graph: do not modify.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NodeById returns the node with the given id, or nil if out of range.
func (g *Graph) NodeById(id NodeId) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Parameters returns the parameter nodes in declaration order. Do not
// modify.
func (g *Graph) Parameters() []*Node { return g.parameters }

// NumParameters returns the number of parameters of the graph.
func (g *Graph) NumParameters() int { return len(g.parameters) }

// Outputs returns the output nodes chosen at Finalize, nil before that. Do
// not modify.
func (g *Graph) Outputs() []*Node { return g.outputs }

// Finalized returns whether the graph was finalized and is now immutable.
func (g *Graph) Finalized() bool { return g.frozen }

// String implements fmt.Stringer with a multi-line dump of the graph.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Graph %q: %d nodes, %d parameters\n", g.name, len(g.nodes), len(g.parameters))
	for _, node := range g.nodes {
		fmt.Fprintf(&sb, "\t#%d\t%s\n", node.id, node)
	}
	if len(g.outputs) > 0 {
		ids := make([]string, len(g.outputs))
		for ii, output := range g.outputs {
			ids[ii] = fmt.Sprintf("#%d", output.id)
		}
		fmt.Fprintf(&sb, "\toutputs: %s\n", strings.Join(ids, ", "))
	}
	return sb.String()
}

// checkMutable returns an error if the graph can no longer accept nodes.
func (g *Graph) checkMutable() error {
	if g.frozen {
		return errors.Wrapf(backends.ErrCrossGraph,
			"graph %q is already finalized, its nodes can only be combined while the trace is running", g.name)
	}
	return nil
}

// checkInputs validates that every input exists and was created by this
// graph.
func (g *Graph) checkInputs(opName string, inputs ...*Node) error {
	for ii, input := range inputs {
		if input == nil {
			return errors.Wrapf(backends.ErrCrossGraph, "%s: input #%d is nil", opName, ii)
		}
		if input.g != g {
			return errors.Wrapf(backends.ErrCrossGraph,
				"%s: input #%d was created by graph %q, not by graph %q", opName, ii, input.g.name, g.name)
		}
	}
	return nil
}

// newNode appends a node to the graph, assigning it the next id. All
// validations must have happened already.
func (g *Graph) newNode(opType backends.OpType, shape shapes.Shape, inputs []*Node) *Node {
	node := &Node{
		g:      g,
		id:     NodeId(len(g.nodes)),
		opType: opType,
		shape:  shape,
		inputs: inputs,
	}
	g.nodes = append(g.nodes, node)
	return node
}

func (g *Graph) addParameter(name string, shape shapes.Shape) (*Node, error) {
	if err := g.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" {
		name = fmt.Sprintf("arg#%d", len(g.parameters))
	}
	if prevId, found := g.parameterNames[name]; found {
		return nil, errors.Wrapf(backends.ErrShape,
			"graph %q already has a parameter named %q (node #%d)", g.name, name, prevId)
	}
	node := g.newNode(backends.OpTypeParameter, shape.Clone(), nil)
	node.paramName = name
	node.paramIndex = len(g.parameters)
	g.parameters = append(g.parameters, node)
	g.parameterNames[name] = node.id
	return node, nil
}

func (g *Graph) addConstant(t *tensors.Tensor) (*Node, error) {
	if err := g.checkMutable(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.Wrap(backends.ErrShape, "Constant: nil tensor")
	}
	node := g.newNode(backends.OpTypeConstant, t.Shape(), nil)
	node.constValue = t
	return node, nil
}

func (g *Graph) addBinaryOp(opType backends.OpType, lhs, rhs *Node) (*Node, error) {
	if err := g.checkMutable(); err != nil {
		return nil, err
	}
	if err := g.checkInputs(opType.String(), lhs, rhs); err != nil {
		return nil, err
	}
	shape, ok := shapes.Broadcast(lhs.shape, rhs.shape)
	if !ok {
		return nil, errors.Wrapf(backends.ErrShape, "%s: cannot broadcast %s and %s", opType, lhs.shape, rhs.shape)
	}
	return g.newNode(opType, shape, []*Node{lhs, rhs}), nil
}

func (g *Graph) addUnaryOp(opType backends.OpType, x *Node) (*Node, error) {
	if err := g.checkMutable(); err != nil {
		return nil, err
	}
	if err := g.checkInputs(opType.String(), x); err != nil {
		return nil, err
	}
	return g.newNode(opType, x.shape, []*Node{x}), nil
}

// addMatMul appends a matrix multiplication. A scalar operand makes it
// degrade to an elementwise multiplication, so MatMul nodes never carry
// rank-0 inputs.
func (g *Graph) addMatMul(lhs, rhs *Node) (*Node, error) {
	if err := g.checkMutable(); err != nil {
		return nil, err
	}
	if err := g.checkInputs("MatMul", lhs, rhs); err != nil {
		return nil, err
	}
	if lhs.IsScalar() || rhs.IsScalar() {
		return g.addBinaryOp(backends.OpTypeMul, lhs, rhs)
	}
	shape, err := shapes.MatMul(lhs.shape, rhs.shape)
	if err != nil {
		return nil, errors.Wrapf(backends.ErrShape, "%v", err)
	}
	return g.newNode(backends.OpTypeMatMul, shape, []*Node{lhs, rhs}), nil
}

func (g *Graph) addTranspose(x *Node, permutation []int) (*Node, error) {
	if err := g.checkMutable(); err != nil {
		return nil, err
	}
	if err := g.checkInputs("Transpose", x); err != nil {
		return nil, err
	}
	shape, err := shapes.Transpose(x.shape, permutation)
	if err != nil {
		return nil, errors.Wrapf(backends.ErrShape, "%v", err)
	}
	normalized := make([]int, len(permutation))
	for ii, axis := range permutation {
		normalized[ii] = shapes.AdjustAxis(x.shape, axis)
	}
	node := g.newNode(backends.OpTypeTranspose, shape, []*Node{x})
	node.permutation = normalized
	return node, nil
}

func (g *Graph) addReshape(x *Node, dimensions []int) (*Node, error) {
	if err := g.checkMutable(); err != nil {
		return nil, err
	}
	if err := g.checkInputs("Reshape", x); err != nil {
		return nil, err
	}
	if err := shapes.CheckDims(dimensions...); err != nil {
		return nil, errors.Wrapf(backends.ErrShape, "Reshape: %v", err)
	}
	shape := shapes.Make(dimensions...)
	if shape.Size() != x.shape.Size() {
		return nil, errors.Wrapf(backends.ErrShape, "Reshape: cannot reshape %s (%d values) to %s (%d values)",
			x.shape, x.shape.Size(), shape, shape.Size())
	}
	node := g.newNode(backends.OpTypeReshape, shape, []*Node{x})
	node.dimensions = shape.Dimensions
	return node, nil
}

func (g *Graph) addBroadcastTo(x *Node, dimensions []int) (*Node, error) {
	if err := g.checkMutable(); err != nil {
		return nil, err
	}
	if err := g.checkInputs("BroadcastTo", x); err != nil {
		return nil, err
	}
	if err := shapes.CheckDims(dimensions...); err != nil {
		return nil, errors.Wrapf(backends.ErrShape, "BroadcastTo: %v", err)
	}
	shape := shapes.Make(dimensions...)
	if !shapes.BroadcastableTo(x.shape, shape) {
		return nil, errors.Wrapf(backends.ErrShape, "BroadcastTo: cannot broadcast %s to %s", x.shape, shape)
	}
	node := g.newNode(backends.OpTypeBroadcastTo, shape, []*Node{x})
	node.dimensions = shape.Dimensions
	return node, nil
}

func (g *Graph) addReduce(opType backends.OpType, x *Node, axes []int, keepDims bool) (*Node, error) {
	if err := g.checkMutable(); err != nil {
		return nil, err
	}
	if err := g.checkInputs(opType.String(), x); err != nil {
		return nil, err
	}
	shape, normalized, err := shapes.Reduce(x.shape, axes, keepDims)
	if err != nil {
		return nil, errors.Wrapf(backends.ErrShape, "%s: %v", opType, err)
	}
	node := g.newNode(opType, shape, []*Node{x})
	node.reduceAxes = normalized
	node.keepDims = keepDims
	return node, nil
}

// finalize freezes the graph with the given outputs.
func (g *Graph) finalize(outputs []*Node) error {
	if g.frozen {
		return errors.Wrapf(backends.ErrCrossGraph, "graph %q is already finalized", g.name)
	}
	if len(outputs) == 0 {
		return errors.Wrapf(backends.ErrArity, "graph %q finalized with no outputs", g.name)
	}
	if err := g.checkInputs("Finalize", outputs...); err != nil {
		return err
	}
	g.outputs = outputs
	g.frozen = true
	klog.V(1).Infof("graph %q finalized: %d nodes, %d parameters, %d outputs",
		g.name, len(g.nodes), len(g.parameters), len(g.outputs))
	return nil
}
