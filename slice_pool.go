package a3c

// floatSlicePool recycles the per-step buffers of a rollout. It is owned by
// a single Worker and is not safe for concurrent use. A nil pool allocates.
type floatSlicePool struct {
	pool [][]float64
}

// alloc returns a zeroed slice of length n.
func (p *floatSlicePool) alloc(n int) []float64 {
	if p == nil {
		return make([]float64, n)
	}

	if len(p.pool) > 0 {
		m := len(p.pool)
		next := p.pool[m-1]
		p.pool = p.pool[:m-1]
		if cap(next) >= n {
			next = next[:n]
			for i := range next {
				next[i] = 0
			}
			return next
		}
	}

	return make([]float64, n)
}

func (p *floatSlicePool) free(s []float64) {
	if p != nil && cap(s) > 0 {
		p.pool = append(p.pool, s[:0])
	}
}
