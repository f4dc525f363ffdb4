package atomicf64

import (
	"sync"
	"testing"
)

func TestLoadStore(t *testing.T) {
	v := New([]float64{1.5, -2, 0})
	if v.Len() != 3 {
		t.Fatalf("expected len %d, got %d", 3, v.Len())
	}

	v.Store(2, 3.25)
	expected := []float64{1.5, -2, 3.25}
	for i, x := range v.Slice() {
		if x != expected[i] {
			t.Errorf("element %d: expected %v, got %v", i, expected[i], x)
		}
	}
}

func TestCopyFrom(t *testing.T) {
	v := Zeros(4)
	v.CopyFrom([]float64{1, 2, 3, 4})
	dst := make([]float64, 4)
	v.CopyTo(dst)
	for i, x := range dst {
		if x != float64(i+1) {
			t.Errorf("element %d: expected %v, got %v", i, float64(i+1), x)
		}
	}
}

// Concurrent writers must never produce a value that no writer stored.
func TestConcurrentStores(t *testing.T) {
	v := Zeros(64)
	var wg sync.WaitGroup
	for w := 1; w <= 8; w++ {
		wg.Add(1)
		go func(x float64) {
			defer wg.Done()
			for iter := 0; iter < 1000; iter++ {
				for i := 0; i < v.Len(); i++ {
					v.Store(i, x)
					_ = v.Load(i)
				}
			}
		}(float64(w))
	}
	wg.Wait()

	for i, x := range v.Slice() {
		if x < 1 || x > 8 || x != float64(int(x)) {
			t.Errorf("element %d has torn value %v", i, x)
		}
	}
}

func BenchmarkCopyTo(b *testing.B) {
	v := Zeros(1 << 12)
	dst := make([]float64, v.Len())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.CopyTo(dst)
	}
}
