// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graphtest holds test utilities for packages exercising traced
// functions: evaluate-and-compare helpers and a finite-difference gradient
// checker.
package graphtest

import (
	"fmt"
	"testing"

	"github.com/gomlx/gradix"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
	"github.com/gomlx/gradix/types/xslices"
	"github.com/stretchr/testify/require"
)

// RunTestFunc compiles fn for the inputs' shapes, evaluates it and compares
// the outputs to want, reporting failures in t under a sub-test called
// name. Entries of want can be *tensors.Tensor or any value accepted by
// tensors.FromAnyValue.
//
// delta is the acceptable margin on each output element; delta <= 0 means
// only exact equality is accepted.
func RunTestFunc(t *testing.T, name string, fn gradix.GraphFn, inputs []*tensors.Tensor, want []any, delta float64) {
	t.Run(name, func(t *testing.T) {
		wantTensors := xslices.Map(want, func(value any) *tensors.Tensor {
			if tensor, ok := value.(*tensors.Tensor); ok {
				return tensor
			}
			return tensors.FromAnyValue(value)
		})
		f := gradix.Compile(name, fn, argShapesOf(inputs)...)
		outputs, err := f.Eval(inputs...)
		require.NoErrorf(t, err, "%s: failed to evaluate", name)

		fmt.Printf("\n%s:\n", name)
		for ii, input := range inputs {
			fmt.Printf("\tInput %d: %s\n", ii, input)
		}
		if len(inputs) > 0 {
			fmt.Printf("\t======\n")
		}
		for ii, output := range outputs {
			fmt.Printf("\tOutput %d: %s\n", ii, output)
		}

		require.Equalf(t, len(want), len(outputs),
			"%s: number of wanted results different from number of outputs", name)
		for ii, output := range outputs {
			require.Truef(t, wantTensors[ii].InDelta(output, delta),
				"%s: output #%d is %s, want %v", name, ii, output, want[ii])
		}
	})
}

// GradientCheck verifies the gradient of a scalar-valued fn against central
// finite differences at the given inputs, under a sub-test called name.
//
// Every element of every input is perturbed by ±epsilon, so the check costs
// two evaluations per element; keep the inputs small. delta bounds the
// allowed difference between analytic and numerical gradient per element.
func GradientCheck(t *testing.T, name string, fn gradix.GraphFn, inputs []*tensors.Tensor, delta, epsilon float64) {
	t.Run(name, func(t *testing.T) {
		f := gradix.Compile(name, fn, argShapesOf(inputs)...)
		df, err := f.Grad()
		require.NoErrorf(t, err, "%s: failed to differentiate", name)
		grads, err := df.Eval(inputs...)
		require.NoErrorf(t, err, "%s: failed to evaluate gradient", name)

		evalAt := func(perturbed []*tensors.Tensor) float64 {
			output, err := f.Eval1(perturbed...)
			require.NoErrorf(t, err, "%s: failed to evaluate at perturbed input", name)
			return output.ScalarValue()
		}

		perturbed := make([]*tensors.Tensor, len(inputs))
		copy(perturbed, inputs)
		for inputIdx, input := range inputs {
			gradFlat := grads[inputIdx].Flat()
			dims := input.Shape().Dimensions
			for jj := 0; jj < input.Size(); jj++ {
				flat := input.CopyFlat()
				flat[jj] += epsilon
				perturbed[inputIdx] = tensors.FromFlatDataAndDimensions(flat, dims...)
				plus := evalAt(perturbed)

				flat = input.CopyFlat()
				flat[jj] -= epsilon
				perturbed[inputIdx] = tensors.FromFlatDataAndDimensions(flat, dims...)
				minus := evalAt(perturbed)

				numerical := (plus - minus) / (2 * epsilon)
				require.InDeltaf(t, numerical, gradFlat[jj], delta,
					"%s: gradient w.r.t. input #%d element %d: analytic %g, numerical %g",
					name, inputIdx, jj, gradFlat[jj], numerical)
			}
			perturbed[inputIdx] = input
		}
	})
}

func argShapesOf(inputs []*tensors.Tensor) []shapes.Shape {
	return xslices.Map(inputs, func(t *tensors.Tensor) shapes.Shape { return t.Shape() })
}
