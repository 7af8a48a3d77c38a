// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradix

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/graph"
	"github.com/gomlx/gradix/types"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Reverse-mode differentiation: starting from seed cotangents on the graph
// outputs, walk the nodes in descending id order (reverse topological) and
// apply each operation's VJP (vector-Jacobian product) rule, accumulating
// cotangents additively on the operation inputs.
//
// Everything is expressed through backends.Ops calls, so under a
// graph.Builder the backward pass becomes new nodes of a gradient graph
// (which can itself be differentiated), and under the eager backend it
// would compute tensors directly.

// gradGraph computes the cotangent of each wrt parameter of g, given the
// forward value of every node (as returned by evalGraph with the same ops)
// and seed cotangents per output node id.
//
// Parameters the seeded outputs do not depend on get a zeros cotangent.
func gradGraph(ops backends.Ops, g *graph.Graph, forward []backends.Value,
	seeds map[graph.NodeId]backends.Value, wrt []*graph.Node) (grads []backends.Value, err error) {
	err = exceptions.TryCatch[error](func() {
		grads = buildGrad(ops, g, forward, seeds, wrt)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "differentiating graph %q", g.Name())
	}
	return grads, nil
}

func buildGrad(ops backends.Ops, g *graph.Graph, forward []backends.Value,
	seeds map[graph.NodeId]backends.Value, wrt []*graph.Node) []backends.Value {
	ctx := &vjpContext{ops: ops, values: forward}
	useful := usefulNodes(g, seeds, wrt)

	accum := make([]backends.Value, g.NumNodes())
	for id, seed := range seeds {
		if useful.Has(id) {
			accum[id] = seed
		}
	}

	nodes := g.Nodes()
	for id := len(nodes) - 1; id >= 0; id-- {
		node := nodes[id]
		v := accum[id]
		if v == nil || node.IsStopGradient() || node.NumInputs() == 0 {
			continue
		}
		rule, found := vjpTable[node.OpType()]
		if !found {
			panic(errors.Wrapf(backends.ErrUnsupported, "operation %s (node #%d) has no gradient rule",
				node.OpType(), node.Id()))
		}
		if klog.V(2).Enabled() {
			klog.Infof("backward #%d %s", node.Id(), node)
		}
		contributions := rule(ctx, node, v)
		if len(contributions) != node.NumInputs() {
			panic(errors.Errorf("gradient rule for %s returned %d cotangents for %d inputs",
				node.OpType(), len(contributions), node.NumInputs()))
		}
		for ii, contribution := range contributions {
			input := node.Inputs()[ii]
			if contribution == nil || !useful.Has(input.Id()) {
				continue
			}
			contribution = ctx.reduceBroadcast(contribution, input.Shape())
			if accum[input.Id()] == nil {
				accum[input.Id()] = contribution
			} else {
				accum[input.Id()] = ctx.add(accum[input.Id()], contribution)
			}
		}
	}

	grads := make([]backends.Value, len(wrt))
	for ii, param := range wrt {
		if grad := accum[param.Id()]; grad != nil {
			grads[ii] = grad
			continue
		}
		// Output does not depend on this parameter.
		grads[ii] = ctx.constant(tensors.Zeros(param.Shape()))
	}
	return grads
}

// usefulNodes returns the nodes that are both reachable from a seeded
// output and lead to one of the wrt parameters. Only those take part in the
// backward pass. StopGradient nodes block both directions.
func usefulNodes(g *graph.Graph, seeds map[graph.NodeId]backends.Value, wrt []*graph.Node) types.Set[graph.NodeId] {
	nodes := g.Nodes()

	// Reachable from a seeded output, walking inputs. Inputs have smaller
	// ids, so a single descending scan settles each node after all of its
	// consumers.
	reachable := types.MakeSet[graph.NodeId](len(nodes))
	for id := range seeds {
		reachable.Insert(id)
	}
	for id := len(nodes) - 1; id >= 0; id-- {
		node := nodes[id]
		if !reachable.Has(node.Id()) || node.IsStopGradient() {
			continue
		}
		for _, input := range node.Inputs() {
			reachable.Insert(input.Id())
		}
	}

	// Leads to a wrt parameter, walking consumers. One ascending scan, same
	// argument in reverse.
	leads := types.MakeSet[graph.NodeId](len(wrt))
	for _, param := range wrt {
		leads.Insert(param.Id())
	}
	for _, node := range nodes {
		if node.IsStopGradient() || leads.Has(node.Id()) {
			continue
		}
		for _, input := range node.Inputs() {
			if leads.Has(input.Id()) {
				leads.Insert(node.Id())
				break
			}
		}
	}

	useful := types.MakeSet[graph.NodeId]()
	for id := range reachable {
		if leads.Has(id) {
			useful.Insert(id)
		}
	}
	return useful
}

// vjpFn computes the cotangent contribution of a node to each of its
// inputs, given the node's accumulated cotangent v. A nil entry means no
// contribution. Contributions may still carry the node's (broadcast) shape:
// the caller reduces them back to each input's shape.
type vjpFn func(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value

var vjpTable = map[backends.OpType]vjpFn{
	backends.OpTypeAdd:         addVJP,
	backends.OpTypeSub:         subVJP,
	backends.OpTypeMul:         mulVJP,
	backends.OpTypeDiv:         divVJP,
	backends.OpTypeNeg:         negVJP,
	backends.OpTypeSin:         sinVJP,
	backends.OpTypeCos:         cosVJP,
	backends.OpTypeExp:         expVJP,
	backends.OpTypeLog:         logVJP,
	backends.OpTypeSqrt:        sqrtVJP,
	backends.OpTypeRelu:        reluVJP,
	backends.OpTypeStep:        stepVJP,
	backends.OpTypeMatMul:      matMulVJP,
	backends.OpTypeTranspose:   transposeVJP,
	backends.OpTypeReshape:     reshapeVJP,
	backends.OpTypeBroadcastTo: broadcastToVJP,
	backends.OpTypeReduceSum:   reduceSumVJP,
	backends.OpTypeReduceMax:   reduceMaxVJP,
}

// vjpContext gives VJP rules access to the ops implementation and to the
// forward value of every node, with panic-on-error wrappers so the rules
// read as plain expressions. Panics are recovered at the gradGraph
// boundary.
type vjpContext struct {
	ops    backends.Ops
	values []backends.Value
}

// input returns the forward value of the node's ii-th input.
func (ctx *vjpContext) input(node *graph.Node, ii int) backends.Value {
	return ctx.values[node.Inputs()[ii].Id()]
}

// output returns the forward value of the node itself.
func (ctx *vjpContext) output(node *graph.Node) backends.Value {
	return ctx.values[node.Id()]
}

func (ctx *vjpContext) must(v backends.Value, err error) backends.Value {
	if err != nil {
		panic(err)
	}
	return v
}

func (ctx *vjpContext) add(x, y backends.Value) backends.Value { return ctx.must(ctx.ops.Add(x, y)) }
func (ctx *vjpContext) sub(x, y backends.Value) backends.Value { return ctx.must(ctx.ops.Sub(x, y)) }
func (ctx *vjpContext) mul(x, y backends.Value) backends.Value { return ctx.must(ctx.ops.Mul(x, y)) }
func (ctx *vjpContext) div(x, y backends.Value) backends.Value { return ctx.must(ctx.ops.Div(x, y)) }
func (ctx *vjpContext) neg(x backends.Value) backends.Value    { return ctx.must(ctx.ops.Neg(x)) }
func (ctx *vjpContext) sin(x backends.Value) backends.Value    { return ctx.must(ctx.ops.Sin(x)) }
func (ctx *vjpContext) cos(x backends.Value) backends.Value    { return ctx.must(ctx.ops.Cos(x)) }
func (ctx *vjpContext) step(x backends.Value) backends.Value   { return ctx.must(ctx.ops.Step(x)) }

func (ctx *vjpContext) matMul(x, y backends.Value) backends.Value {
	return ctx.must(ctx.ops.MatMul(x, y))
}

func (ctx *vjpContext) transpose(x backends.Value, permutation ...int) backends.Value {
	return ctx.must(ctx.ops.Transpose(x, permutation...))
}

func (ctx *vjpContext) reshape(x backends.Value, dimensions ...int) backends.Value {
	return ctx.must(ctx.ops.Reshape(x, dimensions...))
}

func (ctx *vjpContext) broadcastTo(x backends.Value, dimensions ...int) backends.Value {
	return ctx.must(ctx.ops.BroadcastTo(x, dimensions...))
}

func (ctx *vjpContext) reduceSum(x backends.Value, axes []int, keepDims bool) backends.Value {
	return ctx.must(ctx.ops.ReduceSum(x, axes, keepDims))
}

func (ctx *vjpContext) constant(t *tensors.Tensor) backends.Value {
	return ctx.must(ctx.ops.Constant(t))
}

func (ctx *vjpContext) scalar(value float64) backends.Value {
	return ctx.constant(tensors.FromScalar(value))
}

func (ctx *vjpContext) shapeOf(v backends.Value) shapes.Shape {
	shape, err := ctx.ops.ShapeOf(v)
	if err != nil {
		panic(err)
	}
	return shape
}

// reduceBroadcast reduces a cotangent carrying a broadcast shape back to
// the target operand shape: sum over the axes the operand was stretched
// along (leading axes it did not have, and axes where its dimension is 1),
// then reshape to the operand shape. Identity when shapes already match.
func (ctx *vjpContext) reduceBroadcast(v backends.Value, target shapes.Shape) backends.Value {
	vShape := ctx.shapeOf(v)
	if vShape.Equal(target) {
		return v
	}
	if target.IsScalar() {
		return ctx.reduceSum(v, nil, false)
	}
	rankDiff := vShape.Rank() - target.Rank()
	if rankDiff < 0 || !shapes.BroadcastableTo(target, vShape) {
		panic(errors.Wrapf(backends.ErrShape, "cannot reduce cotangent of shape %s back to %s", vShape, target))
	}
	axes := make([]int, 0, vShape.Rank())
	for axis := 0; axis < rankDiff; axis++ {
		axes = append(axes, axis)
	}
	for ii, dim := range target.Dimensions {
		if dim == 1 && vShape.Dim(rankDiff+ii) != 1 {
			axes = append(axes, rankDiff+ii)
		}
	}
	summed := ctx.reduceSum(v, axes, true)
	return ctx.reshape(summed, target.Dimensions...)
}

// expandReduced undoes a reduction's shape change: reshape the cotangent to
// the keep-dims form and broadcast it back to the reduction operand shape.
func expandReduced(ctx *vjpContext, node *graph.Node, v backends.Value) backends.Value {
	operand := node.Inputs()[0].Shape()
	if !node.ReduceKeepDims() {
		kept := operand.Clone()
		for _, axis := range node.ReduceAxes() {
			kept.Dimensions[axis] = 1
		}
		v = ctx.reshape(v, kept.Dimensions...)
	}
	return ctx.broadcastTo(v, operand.Dimensions...)
}

func addVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	return []backends.Value{v, v}
}

func subVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	return []backends.Value{v, ctx.neg(v)}
}

func mulVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	x, y := ctx.input(node, 0), ctx.input(node, 1)
	return []backends.Value{ctx.mul(v, y), ctx.mul(v, x)}
}

func divVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	x, y := ctx.input(node, 0), ctx.input(node, 1)
	dx := ctx.div(v, y)
	dy := ctx.neg(ctx.div(ctx.mul(v, x), ctx.mul(y, y)))
	return []backends.Value{dx, dy}
}

func negVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	return []backends.Value{ctx.neg(v)}
}

func sinVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	return []backends.Value{ctx.mul(v, ctx.cos(ctx.input(node, 0)))}
}

func cosVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	return []backends.Value{ctx.neg(ctx.mul(v, ctx.sin(ctx.input(node, 0))))}
}

func expVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	// d(e^x) = e^x dx, reusing the forward output.
	return []backends.Value{ctx.mul(v, ctx.output(node))}
}

func logVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	return []backends.Value{ctx.div(v, ctx.input(node, 0))}
}

func sqrtVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	// d(sqrt(x)) = dx / (2 sqrt(x)), reusing the forward output.
	return []backends.Value{ctx.div(v, ctx.mul(ctx.scalar(2), ctx.output(node)))}
}

func reluVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	return []backends.Value{ctx.mul(v, ctx.step(ctx.input(node, 0)))}
}

// stepVJP: Step is piecewise constant, its derivative is zero almost
// everywhere, so it contributes nothing.
func stepVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	return []backends.Value{nil}
}

func matMulVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	x, y := ctx.input(node, 0), ctx.input(node, 1)
	lhsShape := node.Inputs()[0].Shape()
	rhsShape := node.Inputs()[1].Shape()
	switch {
	case lhsShape.Rank() == 1 && rhsShape.Rank() == 1:
		// Dot product, v is a scalar.
		return []backends.Value{ctx.mul(v, y), ctx.mul(v, x)}
	case lhsShape.Rank() == 1:
		// x:[k] times y:[k,n], v:[n]: dx = y·v, dy = outer(x, v).
		dx := ctx.matMul(y, v)
		dy := ctx.matMul(ctx.reshape(x, lhsShape.Dim(0), 1), ctx.reshape(v, 1, rhsShape.Dim(1)))
		return []backends.Value{dx, dy}
	case rhsShape.Rank() == 1:
		// x:[m,k] times y:[k], v:[m]: dx = outer(v, y), dy = v·x.
		dx := ctx.matMul(ctx.reshape(v, lhsShape.Dim(0), 1), ctx.reshape(y, 1, rhsShape.Dim(0)))
		dy := ctx.matMul(v, x)
		return []backends.Value{dx, dy}
	default:
		// Matrices or batches of them: dx = v yᵀ, dy = xᵀ v, with ᵀ swapping
		// the last two axes. Broadcast batch axes are reduced back to each
		// operand by the caller.
		dx := ctx.matMul(v, ctx.swapLastAxes(y))
		dy := ctx.matMul(ctx.swapLastAxes(x), v)
		return []backends.Value{dx, dy}
	}
}

func (ctx *vjpContext) swapLastAxes(v backends.Value) backends.Value {
	shape := ctx.shapeOf(v)
	permutation := make([]int, shape.Rank())
	for ii := range permutation {
		permutation[ii] = ii
	}
	last := len(permutation) - 1
	permutation[last], permutation[last-1] = permutation[last-1], permutation[last]
	return ctx.transpose(v, permutation...)
}

func transposeVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	permutation := node.Permutation()
	inverse := make([]int, len(permutation))
	for ii, axis := range permutation {
		inverse[axis] = ii
	}
	return []backends.Value{ctx.transpose(v, inverse...)}
}

func reshapeVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	return []backends.Value{ctx.reshape(v, node.Inputs()[0].Shape().Dimensions...)}
}

// broadcastToVJP returns v unchanged: the caller's reduceBroadcast sums it
// back to the operand shape.
func broadcastToVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	return []backends.Value{v}
}

func reduceSumVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	// Every element of x contributes once: spread v uniformly.
	return []backends.Value{expandReduced(ctx, node, v)}
}

func reduceMaxVJP(ctx *vjpContext, node *graph.Node, v backends.Value) []backends.Value {
	// Only maximal elements receive gradient. Ties all get the full
	// cotangent: x - max is 0 exactly there and negative elsewhere.
	x := ctx.input(node, 0)
	mask := ctx.step(ctx.sub(x, expandReduced(ctx, node, ctx.output(node))))
	return []backends.Value{ctx.mul(expandReduced(ctx, node, v), mask)}
}
