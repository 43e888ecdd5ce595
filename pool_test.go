package tsx2pdf

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

// Compile-time interface check.
var _ interface {
	Acquire() *Converter
	Release(*Converter)
	Size() int
	Close() error
} = (*ConverterPool)(nil)

// newMockPool builds a pool whose converters never touch a browser.
func newMockPool(n int) *ConverterPool {
	return NewConverterPool(n,
		WithEngineProvider(&mockProvider{engine: &mockEngine{}}),
		WithLogger(discardLogger()),
	)
}

func TestResolvePoolSize(t *testing.T) {
	t.Parallel()

	gomaxprocs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{
			name:    "explicit takes priority",
			workers: 4,
			want:    4,
		},
		{
			name:    "explicit=1 for sequential",
			workers: 1,
			want:    1,
		},
		{
			name:    "zero uses auto calculation",
			workers: 0,
			want:    min(max(gomaxprocs/cpuDivisor, MinPoolSize), MaxPoolSize),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ResolvePoolSize(tt.workers)
			if got != tt.want {
				t.Errorf("ResolvePoolSize(%d) = %d, want %d", tt.workers, got, tt.want)
			}
		})
	}
}

func TestResolvePoolSize_Bounds(t *testing.T) {
	t.Parallel()

	t.Run("minimum is 1", func(t *testing.T) {
		t.Parallel()

		got := ResolvePoolSize(0)
		if got < MinPoolSize {
			t.Errorf("ResolvePoolSize(0) = %d, should be at least %d", got, MinPoolSize)
		}
	})

	t.Run("maximum is 8", func(t *testing.T) {
		t.Parallel()

		got := ResolvePoolSize(0)
		if got > MaxPoolSize {
			t.Errorf("ResolvePoolSize(0) = %d, should be at most %d", got, MaxPoolSize)
		}
	})

	t.Run("explicit can exceed max", func(t *testing.T) {
		t.Parallel()

		got := ResolvePoolSize(16)
		if got != 16 {
			t.Errorf("ResolvePoolSize(16) = %d, want 16", got)
		}
	})
}

func TestConverterPool_AcquireRelease(t *testing.T) {
	t.Parallel()

	pool := newMockPool(2)
	defer pool.Close()

	conv1 := pool.Acquire()
	if conv1 == nil {
		t.Fatal("Acquire() returned nil")
	}

	conv2 := pool.Acquire()
	if conv2 == nil {
		t.Fatal("Acquire() returned nil")
	}

	if conv1 == conv2 {
		t.Error("expected different converter instances")
	}

	// Release and re-acquire
	pool.Release(conv1)
	conv3 := pool.Acquire()

	if conv3 != conv1 {
		t.Error("expected to get back released converter")
	}

	pool.Release(conv2)
	pool.Release(conv3)
}

func TestConverterPool_Size(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size int
		want int
	}{
		{"size 1", 1, 1},
		{"size 4", 4, 4},
		{"size 0 becomes 1", 0, 1},
		{"negative becomes 1", -1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pool := newMockPool(tt.size)
			defer pool.Close()

			if got := pool.Size(); got != tt.want {
				t.Errorf("Size() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestConverterPool_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	pool := newMockPool(4)
	defer pool.Close()

	var wg sync.WaitGroup
	iterations := 20

	for i := 0; i < iterations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv := pool.Acquire()
			time.Sleep(5 * time.Millisecond) // Simulate work
			pool.Release(conv)
		}()
	}

	// Should complete without deadlock
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	select {
	case <-done:
		// Success
	case <-timer.C:
		t.Fatal("concurrent access test timed out - possible deadlock")
	}
}

func TestConverterPool_ClosePreventsFurtherRelease(t *testing.T) {
	t.Parallel()

	pool := newMockPool(2)

	conv := pool.Acquire()
	pool.Close()

	// Release after close should not panic
	pool.Release(conv) // Should be safe (no-op)
}

func TestConverterPool_DoubleClose(t *testing.T) {
	t.Parallel()

	pool := newMockPool(1)

	if err := pool.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}

	// Second close should not panic
	pool.Close()
}

func TestConverterPool_AllConvertersAcquired(t *testing.T) {
	t.Parallel()

	pool := newMockPool(3)
	defer pool.Close()

	converters := make([]*Converter, 3)
	for i := 0; i < 3; i++ {
		converters[i] = pool.Acquire()
		if converters[i] == nil {
			t.Fatalf("Acquire() returned nil for converter %d", i)
		}
	}

	seen := make(map[*Converter]bool)
	for _, conv := range converters {
		if seen[conv] {
			t.Error("got duplicate converter from pool")
		}
		seen[conv] = true
	}

	for _, conv := range converters {
		pool.Release(conv)
	}
}

func TestConverterPool_LazyCreation(t *testing.T) {
	t.Parallel()

	pool := newMockPool(3)
	defer pool.Close()

	conv1 := pool.Acquire()
	if conv1 == nil {
		t.Fatal("first Acquire() returned nil")
	}

	pool.Release(conv1)

	// Acquire again - should get the same converter (reuse)
	conv2 := pool.Acquire()
	if conv2 != conv1 {
		t.Error("expected to reuse released converter")
	}

	pool.Release(conv2)
}

func TestResolvePoolSize_NegativeWorkers(t *testing.T) {
	t.Parallel()

	// Negative workers should be treated as 0 (auto-calculate)
	got := ResolvePoolSize(-5)

	if got < MinPoolSize || got > MaxPoolSize {
		t.Errorf("ResolvePoolSize(-5) = %d, should be between %d and %d", got, MinPoolSize, MaxPoolSize)
	}
}
