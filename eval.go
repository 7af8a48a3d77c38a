// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradix

import (
	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/graph"
	"github.com/gomlx/gradix/types"
	"github.com/pkg/errors"
)

// evalGraph interprets a finalized graph under the given ops implementation
// and returns the value of every node, indexed by graph.NodeId.
//
// The same walk serves two purposes: under the eager backend it computes
// tensors, and under a graph.Builder it replays the graph as new nodes of
// another graph, which is how gradients (and gradients of gradients) are
// built. Nodes that neither an output nor a logged node depends on are
// skipped and left nil.
func evalGraph(ops backends.Ops, g *graph.Graph, inputs []backends.Value) ([]backends.Value, error) {
	if !g.Finalized() {
		return nil, errors.Errorf("graph %q was not finalized, cannot evaluate it", g.Name())
	}
	if len(inputs) != g.NumParameters() {
		return nil, errors.Wrapf(backends.ErrArity, "graph %q takes %d parameters, got %d inputs",
			g.Name(), g.NumParameters(), len(inputs))
	}
	results := make([]backends.Value, g.NumNodes())
	for ii, param := range g.Parameters() {
		inputShape, err := ops.ShapeOf(inputs[ii])
		if err != nil {
			return nil, errors.WithMessagef(err, "input #%d (%q) of graph %q", ii, param.ParameterName(), g.Name())
		}
		if !inputShape.Equal(param.Shape()) {
			return nil, errors.Wrapf(backends.ErrShape, "input #%d (%q) of graph %q has shape %s, want %s",
				ii, param.ParameterName(), g.Name(), inputShape, param.Shape())
		}
		results[param.Id()] = inputs[ii]
	}
	needed := neededNodes(g)
	for _, node := range g.Nodes() {
		if node.OpType() == backends.OpTypeParameter || !needed.Has(node.Id()) {
			continue
		}
		value, err := evalNode(ops, node, results)
		if err != nil {
			return nil, errors.WithMessagef(err, "evaluating node #%d of graph %q", node.Id(), g.Name())
		}
		results[node.Id()] = value
	}
	return results, nil
}

// neededNodes returns the set of nodes the graph outputs and logged nodes
// transitively depend on. Node inputs always have smaller ids, so one
// reverse scan suffices.
func neededNodes(g *graph.Graph) types.Set[graph.NodeId] {
	needed := types.MakeSet[graph.NodeId](g.NumNodes())
	for _, node := range g.Outputs() {
		needed.Insert(node.Id())
	}
	nodes := g.Nodes()
	for id := len(nodes) - 1; id >= 0; id-- {
		node := nodes[id]
		if node.IsLogged() {
			needed.Insert(node.Id())
		}
		if !needed.Has(node.Id()) {
			continue
		}
		for _, input := range node.Inputs() {
			needed.Insert(input.Id())
		}
	}
	return needed
}

// evalNode dispatches one node to the corresponding ops method. Inputs were
// already computed in results.
func evalNode(ops backends.Ops, node *graph.Node, results []backends.Value) (backends.Value, error) {
	in := func(ii int) backends.Value { return results[node.Inputs()[ii].Id()] }
	switch node.OpType() {
	case backends.OpTypeConstant:
		return ops.Constant(node.ConstValue())
	case backends.OpTypeAdd:
		return ops.Add(in(0), in(1))
	case backends.OpTypeSub:
		return ops.Sub(in(0), in(1))
	case backends.OpTypeMul:
		return ops.Mul(in(0), in(1))
	case backends.OpTypeDiv:
		return ops.Div(in(0), in(1))
	case backends.OpTypeNeg:
		return ops.Neg(in(0))
	case backends.OpTypeSin:
		return ops.Sin(in(0))
	case backends.OpTypeCos:
		return ops.Cos(in(0))
	case backends.OpTypeExp:
		return ops.Exp(in(0))
	case backends.OpTypeLog:
		return ops.Log(in(0))
	case backends.OpTypeSqrt:
		return ops.Sqrt(in(0))
	case backends.OpTypeRelu:
		return ops.Relu(in(0))
	case backends.OpTypeStep:
		return ops.Step(in(0))
	case backends.OpTypeMatMul:
		return ops.MatMul(in(0), in(1))
	case backends.OpTypeTranspose:
		return ops.Transpose(in(0), node.Permutation()...)
	case backends.OpTypeReshape:
		return ops.Reshape(in(0), node.Dimensions()...)
	case backends.OpTypeBroadcastTo:
		return ops.BroadcastTo(in(0), node.Dimensions()...)
	case backends.OpTypeReduceSum:
		return ops.ReduceSum(in(0), node.ReduceAxes(), node.ReduceKeepDims())
	case backends.OpTypeReduceMax:
		return ops.ReduceMax(in(0), node.ReduceAxes(), node.ReduceKeepDims())
	default:
		return nil, errors.Wrapf(backends.ErrUnsupported, "operation %s (node %s) has no evaluation rule",
			node.OpType(), node)
	}
}
