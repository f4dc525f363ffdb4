// Package atomicf64 implements float64 vectors whose elements may be read
// and written concurrently without locks.
//
// Each element is accessed atomically, but there is no isolation across
// elements: a reader may observe a mix of old and new values while a writer
// is updating the vector. This is the consistency model of Hogwild-style
// optimization.
package atomicf64

import (
	"go.uber.org/atomic"
)

// Vec is a fixed-length vector of float64.
type Vec struct {
	elems []atomic.Float64
}

// New returns a Vec initialized with a copy of the given values.
func New(values []float64) *Vec {
	v := Zeros(len(values))
	v.CopyFrom(values)
	return v
}

// Zeros returns a Vec of length n with all elements zero.
func Zeros(n int) *Vec {
	return &Vec{elems: make([]atomic.Float64, n)}
}

func (v *Vec) Len() int {
	return len(v.elems)
}

func (v *Vec) Load(i int) float64 {
	return v.elems[i].Load()
}

func (v *Vec) Store(i int, x float64) {
	v.elems[i].Store(x)
}

// CopyTo loads every element into dst, which must have length v.Len().
func (v *Vec) CopyTo(dst []float64) {
	for i := range v.elems {
		dst[i] = v.elems[i].Load()
	}
}

// CopyFrom stores every element of src, which must have length v.Len().
func (v *Vec) CopyFrom(src []float64) {
	for i, x := range src {
		v.elems[i].Store(x)
	}
}

// Slice returns a newly allocated copy of the current values.
func (v *Vec) Slice() []float64 {
	result := make([]float64, len(v.elems))
	v.CopyTo(result)
	return result
}
