// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strings"

	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
)

// NodeId is the unique identifier of a node within its graph: the number of
// nodes the graph held when the node was created. Ids are therefore dense,
// start at 0, and every node's inputs have smaller ids than the node itself,
// which makes the creation order a topological order of the graph.
type NodeId int

// Node is one operation of a Graph. Nodes are created by the Builder (or
// the package-level operation functions) and are immutable once created,
// except for the logging marker.
type Node struct {
	g      *Graph
	id     NodeId
	opType backends.OpType
	shape  shapes.Shape
	inputs []*Node

	// Payload, depending on opType.
	constValue  *tensors.Tensor // Constant
	paramName   string          // Parameter
	paramIndex  int             // Parameter: position among the graph parameters
	permutation []int           // Transpose
	dimensions  []int           // Reshape, BroadcastTo
	reduceAxes  []int           // ReduceSum, ReduceMax (normalized: positive, ascending)
	keepDims    bool            // ReduceSum, ReduceMax

	stopGradient bool
	logMessage   string
}

// Graph that owns the node.
func (n *Node) Graph() *Graph { return n.g }

// Id of the node within its graph.
func (n *Node) Id() NodeId { return n.id }

// OpType returns the operation the node performs.
func (n *Node) OpType() backends.OpType { return n.opType }

// Shape of the node's output.
func (n *Node) Shape() shapes.Shape { return n.shape }

// Rank of the node's shape.
func (n *Node) Rank() int { return n.shape.Rank() }

// IsScalar returns whether the node's shape is rank-0.
func (n *Node) IsScalar() bool { return n.shape.IsScalar() }

// Inputs are the nodes the operation consumes, in order. The returned slice
// is owned by the node: do not modify.
func (n *Node) Inputs() []*Node { return n.inputs }

// NumInputs returns the number of inputs of the node.
func (n *Node) NumInputs() int { return len(n.inputs) }

// ConstValue returns the tensor of a Constant node, nil for anything else.
func (n *Node) ConstValue() *tensors.Tensor { return n.constValue }

// ParameterName returns the name of a Parameter node, "" for anything else.
func (n *Node) ParameterName() string { return n.paramName }

// ParameterIndex returns the position of a Parameter node among the graph's
// parameters. It is only meaningful when OpType() is OpTypeParameter.
func (n *Node) ParameterIndex() int { return n.paramIndex }

// Permutation returns the axes permutation of a Transpose node. Do not
// modify.
func (n *Node) Permutation() []int { return n.permutation }

// Dimensions returns the target dimensions of a Reshape or BroadcastTo
// node. Do not modify.
func (n *Node) Dimensions() []int { return n.dimensions }

// ReduceAxes returns the normalized (positive, ascending) axes of a
// ReduceSum or ReduceMax node. Do not modify.
func (n *Node) ReduceAxes() []int { return n.reduceAxes }

// ReduceKeepDims returns whether a ReduceSum or ReduceMax node keeps the
// reduced axes with dimension 1.
func (n *Node) ReduceKeepDims() bool { return n.keepDims }

// IsStopGradient returns whether the node blocks gradients: the backward
// pass does not propagate through it.
func (n *Node) IsStopGradient() bool { return n.stopGradient }

// SetLogged marks the node to be logged: evaluations report the node's
// value tagged with the given message.
func (n *Node) SetLogged(message string) { n.logMessage = message }

// IsLogged returns whether the node was marked for logging.
func (n *Node) IsLogged() bool { return n.logMessage != "" }

// LogMessage returns the message set with SetLogged.
func (n *Node) LogMessage() string { return n.logMessage }

// CopyMarkers copies the stop-gradient and logging markers from another
// node. It is used when a graph is replayed node by node into a new graph,
// so the markers survive the copy; it is only sensible while the node's own
// graph is still being built.
func (n *Node) CopyMarkers(from *Node) {
	n.stopGradient = from.stopGradient
	n.logMessage = from.logMessage
}

// String implements fmt.Stringer with a one-line description of the node.
func (n *Node) String() string {
	var sb strings.Builder
	switch n.opType {
	case backends.OpTypeParameter:
		fmt.Fprintf(&sb, "Parameter(%q)", n.paramName)
	case backends.OpTypeConstant:
		fmt.Fprintf(&sb, "Constant(%s)", n.constValue)
	case backends.OpTypeTranspose:
		fmt.Fprintf(&sb, "Transpose(%s, permutation=%v)", n.inputIds(), n.permutation)
	case backends.OpTypeReshape, backends.OpTypeBroadcastTo:
		fmt.Fprintf(&sb, "%s(%s, dimensions=%v)", n.opType, n.inputIds(), n.dimensions)
	case backends.OpTypeReduceSum, backends.OpTypeReduceMax:
		fmt.Fprintf(&sb, "%s(%s, axes=%v, keepDims=%v)", n.opType, n.inputIds(), n.reduceAxes, n.keepDims)
	default:
		fmt.Fprintf(&sb, "%s(%s)", n.opType, n.inputIds())
	}
	fmt.Fprintf(&sb, " => %s", n.shape)
	if n.stopGradient {
		sb.WriteString(" [StopGradient]")
	}
	if n.IsLogged() {
		fmt.Fprintf(&sb, " [Logged: %s]", n.logMessage)
	}
	return sb.String()
}

func (n *Node) inputIds() string {
	parts := make([]string, len(n.inputs))
	for ii, input := range n.inputs {
		parts[ii] = fmt.Sprintf("#%d", input.id)
	}
	return strings.Join(parts, ", ")
}
