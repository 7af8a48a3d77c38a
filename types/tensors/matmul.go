// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gradix/types/shapes"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MatMul returns the matrix product of a and b, following the shape rule of
// shapes.MatMul: vector dot product, vector-matrix, matrix-vector, and for
// ranks >= 2 a (batched) matrix multiplication of the last two axes with the
// leading axes broadcast together. A scalar operand degrades to an
// elementwise multiplication.
func MatMul(a, b *Tensor) *Tensor {
	outShape, err := shapes.MatMul(a.shape, b.shape)
	if err != nil {
		exceptions.Panicf("tensors.MatMul: %v", err)
	}

	aRank, bRank := a.Rank(), b.Rank()
	switch {
	case aRank == 0 || bRank == 0:
		return Mul(a, b)

	case aRank == 1 && bRank == 1:
		return FromScalar(floats.Dot(a.flat, b.flat))

	case aRank == 1 && bRank == 2:
		// Treat the vector as a 1-row matrix and drop the row axis after.
		k, n := b.shape.Dimensions[0], b.shape.Dimensions[1]
		out := newTensor(outShape)
		matMul2D(a.flat, b.flat, out.flat, 1, k, n)
		return out

	case aRank == 2 && bRank == 1:
		// Treat the vector as a 1-column matrix and drop the column axis after.
		m, k := a.shape.Dimensions[0], a.shape.Dimensions[1]
		out := newTensor(outShape)
		matMul2D(a.flat, b.flat, out.flat, m, k, 1)
		return out

	default:
		return batchedMatMul(a, b, outShape)
	}
}

// matMul2D computes the m×k by k×n product into out (m×n), all row-major
// contiguous slices.
func matMul2D(aFlat, bFlat, outFlat []float64, m, k, n int) {
	aM := mat.NewDense(m, k, aFlat)
	bM := mat.NewDense(k, n, bFlat)
	outM := mat.NewDense(m, n, outFlat)
	outM.Mul(aM, bM)
}

// batchedMatMul multiplies the last two axes of a and b as matrices, for
// every element of the broadcast batch shape (the leading axes). Batch
// elements are independent and are run through the kernels worker pool.
func batchedMatMul(a, b *Tensor, outShape shapes.Shape) *Tensor {
	m, k := a.shape.Dim(-2), a.shape.Dim(-1)
	n := b.shape.Dim(-1)
	batchShape := shapes.Shape{Dimensions: outShape.Dimensions[:outShape.Rank()-2]}

	out := newTensor(outShape)
	if batchShape.Size() == 1 {
		matMul2D(matrixAt(a, 0), matrixAt(b, 0), out.flat, m, k, n)
		return out
	}

	batchA := shapes.Shape{Dimensions: a.shape.Dimensions[:a.Rank()-2]}
	batchB := shapes.Shape{Dimensions: b.shape.Dimensions[:b.Rank()-2]}
	stridesA := broadcastStrides(batchA, batchShape)
	stridesB := broadcastStrides(batchB, batchShape)
	// Strides above count matrices, not elements.
	for axis := range stridesA {
		stridesA[axis] *= m * k
	}
	for axis := range stridesB {
		stridesB[axis] *= k * n
	}

	var wg sync.WaitGroup
	pool := kernelsPool()
	iterateBroadcast(batchShape, stridesA, stridesB, func(batchIdx, offA, offB int) {
		aFlat := a.flat[offA : offA+m*k]
		bFlat := b.flat[offB : offB+k*n]
		outFlat := out.flat[batchIdx*m*n : (batchIdx+1)*m*n]
		wg.Add(1)
		pool.WaitToStart(func() {
			defer wg.Done()
			matMul2D(aFlat, bFlat, outFlat, m, k, n)
		})
	})
	wg.Wait()
	return out
}

// matrixAt returns the flat data of the idx-th trailing matrix of t.
func matrixAt(t *Tensor, idx int) []float64 {
	size := t.shape.Dim(-2) * t.shape.Dim(-1)
	return t.flat[idx*size : (idx+1)*size]
}
