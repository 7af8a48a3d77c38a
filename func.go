// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradix

import (
	"fmt"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/backends/eager"
	"github.com/gomlx/gradix/graph"
	"github.com/gomlx/gradix/internal/must"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// GraphFn is the type of function Compile traces: it receives the graph
// under construction and one symbolic node per argument shape, combines
// them with the graph package operations and returns the output nodes. It
// must not keep state between calls nor read concrete values.
type GraphFn func(g *graph.Graph, inputs []*graph.Node) []*graph.Node

// LoggerFn is the function used to report nodes marked for logging. It is
// called at the end of Eval with the list of messages and corresponding
// values of the logged nodes, in node id order.
type LoggerFn func(messages []string, values []*tensors.Tensor)

// evalBackend is the shared eager implementation backing Func.Eval. It is
// stateless.
var evalBackend = eager.New()

// Func is a function traced into a computation graph for fixed argument
// shapes.
//
// Funcs are created by Compile (or by Grad, from another Func). Tracing
// happens once, on first use; after that a Func is immutable and safe for
// concurrent Eval and Grad calls. Trace failures are sticky: every use
// reports the same error.
type Func struct {
	name      string
	fn        GraphFn
	argShapes []shapes.Shape
	logger    LoggerFn

	traceOnce sync.Once
	g         *graph.Graph
	traceErr  error
}

// Compile declares a function to be traced with the given argument shapes.
// The trace itself is deferred to the first use (Eval, Grad, Trace or
// Graph), and any error it raises is reported then.
func Compile(name string, fn GraphFn, argShapes ...shapes.Shape) *Func {
	return &Func{name: name, fn: fn, argShapes: argShapes, logger: defaultNodeLogger}
}

// fromGraph wraps an already finalized graph as a Func: it is born traced.
func fromGraph(name string, g *graph.Graph, argShapes []shapes.Shape) *Func {
	return &Func{name: name, argShapes: argShapes, g: g, logger: defaultNodeLogger}
}

// Name the Func was compiled with.
func (f *Func) Name() string { return f.name }

func (f *Func) ensureTraced() error {
	f.traceOnce.Do(f.trace)
	return f.traceErr
}

func (f *Func) trace() {
	if f.g != nil {
		// Born traced (gradient Funcs).
		return
	}
	b := graph.NewBuilder(f.name)
	var g *graph.Graph
	err := exceptions.TryCatch[error](func() {
		inputs := make([]*graph.Node, len(f.argShapes))
		for ii, shape := range f.argShapes {
			param, err := b.Parameter(fmt.Sprintf("arg#%d", ii), shape)
			if err != nil {
				panic(err)
			}
			inputs[ii] = param
		}
		outputs := f.fn(b.Graph(), inputs)
		finalized, err := b.Finalize(outputs...)
		if err != nil {
			panic(err)
		}
		g = finalized
	})
	if err != nil {
		f.traceErr = errors.WithMessagef(err, "tracing %q", f.name)
		return
	}
	f.g = g
}

// Trace forces the trace if it did not happen yet and returns its error, if
// any.
func (f *Func) Trace() error { return f.ensureTraced() }

// MustTrace panics if the trace fails.
func (f *Func) MustTrace() *Func {
	must.M(f.Trace())
	return f
}

// Graph returns the traced computation graph, tracing it on first use. It
// returns nil if the trace failed (see Trace for the error).
func (f *Func) Graph() *graph.Graph {
	_ = f.ensureTraced()
	return f.g
}

// String implements fmt.Stringer with the Func name and its graph dump (or
// the trace error). It forces the trace.
func (f *Func) String() string {
	if err := f.ensureTraced(); err != nil {
		return fmt.Sprintf("Func %q: trace failed: %v", f.name, err)
	}
	return fmt.Sprintf("Func %q\n%s", f.name, f.g)
}

// SetLogger replaces the function called with the values of the nodes
// marked for logging during Eval. If set to nil nothing is logged. It
// returns the Func to allow chaining and must be called before the Func is
// used concurrently.
func (f *Func) SetLogger(loggerFn LoggerFn) *Func {
	f.logger = loggerFn
	return f
}

// Logger returns the currently registered LoggerFn.
func (f *Func) Logger() LoggerFn { return f.logger }

// defaultNodeLogger reports logged nodes through klog, one line per node.
func defaultNodeLogger(messages []string, values []*tensors.Tensor) {
	for ii, msg := range messages {
		klog.Infof("%s: %s", msg, values[ii])
	}
}

// Eval runs the traced graph on the given inputs, one tensor per argument
// shape, and returns the output tensors. Nodes marked with SetLogged are
// reported through the Func's logger as a side effect (see SetLogger; the
// default prints through klog).
func (f *Func) Eval(inputs ...*tensors.Tensor) ([]*tensors.Tensor, error) {
	if err := f.ensureTraced(); err != nil {
		return nil, err
	}
	values := make([]backends.Value, len(inputs))
	for ii, t := range inputs {
		if t == nil {
			return nil, errors.Wrapf(backends.ErrArity, "Eval of %q: input #%d is nil", f.name, ii)
		}
		values[ii] = t
	}
	results, err := evalGraph(evalBackend, f.g, values)
	if err != nil {
		return nil, errors.WithMessagef(err, "evaluating %q", f.name)
	}
	f.reportLogged(results)
	outputs := make([]*tensors.Tensor, len(f.g.Outputs()))
	for ii, node := range f.g.Outputs() {
		outputs[ii], err = evalBackend.ConcreteValue(results[node.Id()])
		if err != nil {
			return nil, errors.WithMessagef(err, "output #%d of %q", ii, f.name)
		}
	}
	return outputs, nil
}

// Eval1 is Eval for functions with exactly one output.
func (f *Func) Eval1(inputs ...*tensors.Tensor) (*tensors.Tensor, error) {
	outputs, err := f.Eval(inputs...)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, errors.Wrapf(backends.ErrArity, "Eval1 of %q: function has %d outputs, want exactly 1",
			f.name, len(outputs))
	}
	return outputs[0], nil
}

// MustEval is Eval panicking on error.
func (f *Func) MustEval(inputs ...*tensors.Tensor) []*tensors.Tensor {
	return must.M1(f.Eval(inputs...))
}

// MustEval1 is Eval1 panicking on error.
func (f *Func) MustEval1(inputs ...*tensors.Tensor) *tensors.Tensor {
	return must.M1(f.Eval1(inputs...))
}

// reportLogged collects the values of the logged nodes and hands them to
// the registered logger.
func (f *Func) reportLogged(results []backends.Value) {
	if f.logger == nil {
		return
	}
	var messages []string
	var values []*tensors.Tensor
	for _, node := range f.g.Nodes() {
		if !node.IsLogged() {
			continue
		}
		t, err := evalBackend.ConcreteValue(results[node.Id()])
		if err != nil {
			continue
		}
		messages = append(messages, node.LogMessage())
		values = append(values, t)
	}
	if len(messages) == 0 {
		return
	}
	f.logger(messages, values)
}

// Grad differentiates the Func and returns a new Func that evaluates, for
// the same inputs, the gradient of the output with respect to each chosen
// parameter (by index; none means all of them).
//
// The default seed of 1 requires the Func to have a single scalar output;
// otherwise it fails with ErrNonScalarOutput and the caller must provide
// explicit seeds with GradWithSeeds.
//
// The result is an ordinary Func whose graph holds a replay of the forward
// computation plus the backward accumulation, so it can be evaluated like
// any other and differentiated again for higher-order derivatives.
func (f *Func) Grad(wrt ...int) (*Func, error) {
	if err := f.ensureTraced(); err != nil {
		return nil, err
	}
	outputs := f.g.Outputs()
	if len(outputs) != 1 || !outputs[0].IsScalar() {
		return nil, errors.Wrapf(backends.ErrNonScalarOutput,
			"Grad of %q: default seed requires a single scalar output, the function has %d output(s) and output #0 has shape %s; use GradWithSeeds",
			f.name, len(outputs), outputs[0].Shape())
	}
	return f.gradFunc([]*tensors.Tensor{tensors.FromScalar(1)}, wrt)
}

// GradWithSeeds is Grad with an explicit seed cotangent per output, for
// functions whose outputs are not a single scalar. Each seed must match the
// shape of its output; the seeds are baked into the gradient graph as
// constants.
func (f *Func) GradWithSeeds(seeds []*tensors.Tensor, wrt ...int) (*Func, error) {
	if err := f.ensureTraced(); err != nil {
		return nil, err
	}
	outputs := f.g.Outputs()
	if len(seeds) != len(outputs) {
		return nil, errors.Wrapf(backends.ErrArity, "GradWithSeeds of %q: %d seeds for %d outputs",
			f.name, len(seeds), len(outputs))
	}
	for ii, seed := range seeds {
		if seed == nil {
			return nil, errors.Wrapf(backends.ErrArity, "GradWithSeeds of %q: seed #%d is nil", f.name, ii)
		}
		if !seed.Shape().Equal(outputs[ii].Shape()) {
			return nil, errors.Wrapf(backends.ErrShape, "GradWithSeeds of %q: seed #%d has shape %s, output has shape %s",
				f.name, ii, seed.Shape(), outputs[ii].Shape())
		}
	}
	return f.gradFunc(seeds, wrt)
}

// MustGrad is Grad panicking on error.
func (f *Func) MustGrad(wrt ...int) *Func {
	return must.M1(f.Grad(wrt...))
}

// gradFunc builds the gradient graph: fresh builder, same parameters,
// forward replay, seed constants, backward accumulation. Inputs were
// validated by the callers.
func (f *Func) gradFunc(seedTensors []*tensors.Tensor, wrt []int) (*Func, error) {
	params := f.g.Parameters()
	if len(wrt) == 0 {
		wrt = make([]int, len(params))
		for ii := range wrt {
			wrt[ii] = ii
		}
	}
	wrtNodes := make([]*graph.Node, len(wrt))
	for ii, idx := range wrt {
		if idx < 0 || idx >= len(params) {
			return nil, errors.Wrapf(backends.ErrArity, "Grad of %q: wrt index %d out of range, the function has %d parameters",
				f.name, idx, len(params))
		}
		wrtNodes[ii] = params[idx]
	}

	name := fmt.Sprintf("grad(%s)", f.name)
	var g *graph.Graph
	err := exceptions.TryCatch[error](func() {
		b := graph.NewBuilder(name)
		inputs := make([]backends.Value, len(params))
		for ii, param := range params {
			node, err := b.Parameter(param.ParameterName(), param.Shape())
			if err != nil {
				panic(err)
			}
			inputs[ii] = node
		}

		forward, err := evalGraph(b, f.g, inputs)
		if err != nil {
			panic(err)
		}
		// Stop-gradient and logging markers survive into the replay, so the
		// gradient graph differentiates and logs like the original.
		for _, node := range f.g.Nodes() {
			if replayed, ok := forward[node.Id()].(*graph.Node); ok && replayed != nil {
				replayed.CopyMarkers(node)
			}
		}

		seeds := make(map[graph.NodeId]backends.Value, len(seedTensors))
		for ii, node := range f.g.Outputs() {
			seed, err := b.Constant(seedTensors[ii])
			if err != nil {
				panic(err)
			}
			if prev, found := seeds[node.Id()]; found {
				// The same node listed as two outputs accumulates both seeds.
				combined, err := b.Add(prev, seed)
				if err != nil {
					panic(err)
				}
				seeds[node.Id()] = combined
			} else {
				seeds[node.Id()] = seed
			}
		}

		grads, err := gradGraph(b, f.g, forward, seeds, wrtNodes)
		if err != nil {
			panic(err)
		}
		gradOutputs := make([]*graph.Node, len(grads))
		for ii, grad := range grads {
			gradOutputs[ii] = grad.(*graph.Node)
		}
		finalized, err := b.Finalize(gradOutputs...)
		if err != nil {
			panic(err)
		}
		g = finalized
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "building gradient of %q", f.name)
	}
	klog.V(1).Infof("gradient of %q built: %d nodes", f.name, g.NumNodes())
	df := fromGraph(name, g, f.argShapes)
	df.logger = f.logger
	return df, nil
}
