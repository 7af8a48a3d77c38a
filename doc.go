// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gradix is a small reverse-mode automatic differentiation engine
// for float64 tensors, built around a closed set of operations.
//
// Functions are written against the graph package's symbolic operations and
// compiled with Compile, which traces them once per set of argument shapes
// into an immutable computation graph:
//
//	f := gradix.Compile("xy+1", func(g *graph.Graph, inputs []*graph.Node) []*graph.Node {
//		x, y := inputs[0], inputs[1]
//		return []*graph.Node{graph.AddScalar(graph.Mul(x, y), 1)}
//	}, shapes.Make(3), shapes.Make(3))
//	outputs, err := f.Eval(tensors.FromValue([]float64{1, 2, 3}), tensors.FromValue([]float64{4, 5, 6}))
//
// Func.Grad differentiates the traced graph, producing a new Func that
// evaluates the gradients of a scalar output with respect to the chosen
// parameters. Because the result is an ordinary Func backed by an ordinary
// graph, it can be differentiated again for higher-order derivatives:
//
//	df, err := f2.Grad()        // f2 must have a single scalar output.
//	d2f, err := df.Grad()       // Second order.
//
// Exec adds a per-shape-signature cache on top of Compile for callers whose
// input shapes vary between calls.
//
// Evaluation is an interpretation of the graph with the eager backend
// (backends/eager); no JIT or code generation is involved. All values are
// dense float64 tensors (types/tensors).
package gradix
