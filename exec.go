// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gradix

import (
	"fmt"
	"sync"

	"github.com/gomlx/gradix/backends"
	"github.com/gomlx/gradix/internal/must"
	"github.com/gomlx/gradix/types/shapes"
	"github.com/gomlx/gradix/types/tensors"
	"github.com/gomlx/gradix/types/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultExecMaxCacheSize is how many different shape signatures an Exec
// keeps compiled before evicting the least recently used one.
const DefaultExecMaxCacheSize = 10

// Exec compiles and caches one Func per combination of input shapes, so the
// same GraphFn can be called with varying shapes without retracing on every
// call.
//
// Funcs are fixed-shape on purpose; Exec is the layer that makes them
// convenient when shapes vary. If the variation is unbounded (e.g. growing
// sequence lengths) consider padding to a fixed set of bucket shapes, since
// every new signature costs a trace.
//
// Exec is safe for concurrent use.
type Exec struct {
	name string
	fn   GraphFn

	mu           sync.Mutex
	maxCacheSize int
	numCompiled  int
	cache        []*execEntry // most recently used first
}

type execEntry struct {
	argShapes []shapes.Shape
	f         *Func
}

// NewExec creates an Exec wrapping the given GraphFn. The name prefixes the
// names of the compiled graphs.
func NewExec(name string, fn GraphFn) *Exec {
	return &Exec{name: name, fn: fn, maxCacheSize: DefaultExecMaxCacheSize}
}

// Name returns the Exec name.
func (e *Exec) Name() string { return e.name }

// SetMaxCache changes how many shape signatures are kept compiled. Zero or
// negative means unlimited. It returns e for chaining.
func (e *Exec) SetMaxCache(size int) *Exec {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxCacheSize = size
	return e
}

// CacheSize returns how many compiled Funcs the Exec currently holds.
func (e *Exec) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// Call evaluates the GraphFn on the given inputs, compiling it for their
// shape signature if no cached Func matches.
func (e *Exec) Call(inputs ...*tensors.Tensor) ([]*tensors.Tensor, error) {
	f, err := e.funcFor(inputs)
	if err != nil {
		return nil, err
	}
	return f.Eval(inputs...)
}

// Call1 is Call for functions with exactly one output.
func (e *Exec) Call1(inputs ...*tensors.Tensor) (*tensors.Tensor, error) {
	f, err := e.funcFor(inputs)
	if err != nil {
		return nil, err
	}
	return f.Eval1(inputs...)
}

// MustCall is Call panicking on error.
func (e *Exec) MustCall(inputs ...*tensors.Tensor) []*tensors.Tensor {
	return must.M1(e.Call(inputs...))
}

// MustCall1 is Call1 panicking on error.
func (e *Exec) MustCall1(inputs ...*tensors.Tensor) *tensors.Tensor {
	return must.M1(e.Call1(inputs...))
}

// GradFunc returns the gradient Func of the cached Func matching the
// inputs' shape signature, compiling the forward Func first if needed. See
// Func.Grad for the wrt convention.
func (e *Exec) GradFunc(inputs []*tensors.Tensor, wrt ...int) (*Func, error) {
	f, err := e.funcFor(inputs)
	if err != nil {
		return nil, err
	}
	return f.Grad(wrt...)
}

// funcFor returns the cached Func for the inputs' shapes, compiling and
// caching a new one on miss. The Func is returned untraced; the trace
// happens on its first Eval, outside the cache lock.
func (e *Exec) funcFor(inputs []*tensors.Tensor) (*Func, error) {
	argShapes := make([]shapes.Shape, len(inputs))
	for ii, t := range inputs {
		if t == nil {
			return nil, errors.Wrapf(backends.ErrArity, "Exec %q: input #%d is nil", e.name, ii)
		}
		argShapes[ii] = t.Shape()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for ii, entry := range e.cache {
		if !shapeSignaturesEqual(entry.argShapes, argShapes) {
			continue
		}
		if ii > 0 {
			// Move to front: most recently used first.
			copy(e.cache[1:ii+1], e.cache[:ii])
			e.cache[0] = entry
		}
		return entry.f, nil
	}

	if e.maxCacheSize > 0 && len(e.cache) >= e.maxCacheSize {
		evicted := xslices.Last(e.cache)
		e.cache = e.cache[:len(e.cache)-1]
		klog.V(1).Infof("Exec %q: evicting %q to make room (max cache size %d)",
			e.name, evicted.f.Name(), e.maxCacheSize)
	}
	f := Compile(fmt.Sprintf("%s#%d", e.name, e.numCompiled), e.fn, argShapes...)
	e.numCompiled++
	e.cache = append([]*execEntry{{argShapes: argShapes, f: f}}, e.cache...)
	klog.V(1).Infof("Exec %q: compiled %q for shapes %v", e.name, f.Name(), argShapes)
	return f, nil
}

func shapeSignaturesEqual(a, b []shapes.Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for ii := range a {
		if !a[ii].Equal(b[ii]) {
			return false
		}
	}
	return true
}
