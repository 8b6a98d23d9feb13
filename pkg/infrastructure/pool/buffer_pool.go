// Package pool provides reusable byte buffers for downloaded dataset files.
package pool

import (
	"sync"
	"sync/atomic"
)

// DefaultMaxRetained is the largest buffer capacity kept for reuse.
const DefaultMaxRetained = 64 << 20

// BufferPool manages pools of []byte buffers for power-of-two size classes.
type BufferPool struct {
	pools       map[int]*sync.Pool
	mu          sync.RWMutex
	maxRetained int

	gets     atomic.Int64
	reused   atomic.Int64
	returned atomic.Int64
}

// NewBufferPool creates a pool that drops buffers larger than maxRetained.
// A non-positive maxRetained means DefaultMaxRetained.
func NewBufferPool(maxRetained int) *BufferPool {
	if maxRetained <= 0 {
		maxRetained = DefaultMaxRetained
	}
	return &BufferPool{
		pools:       make(map[int]*sync.Pool),
		maxRetained: maxRetained,
	}
}

// Get returns an empty buffer with capacity of at least size.
func (p *BufferPool) Get(size int) []byte {
	p.gets.Add(1)
	size = nextPowerOfTwo(size)
	if size > p.maxRetained {
		return make([]byte, 0, size)
	}

	if buf, ok := p.classPool(size).Get().(*[]byte); ok {
		p.reused.Add(1)
		return (*buf)[:0]
	}
	return make([]byte, 0, size)
}

// Put returns a buffer to the pool. The caller must not use buf afterwards.
func (p *BufferPool) Put(buf []byte) {
	c := cap(buf)
	if c == 0 || c > p.maxRetained {
		return
	}
	// Only exact size classes are pooled so Get can honor its capacity.
	if c != nextPowerOfTwo(c) {
		return
	}
	buf = buf[:0]
	p.returned.Add(1)
	p.classPool(c).Put(&buf)
}

// Stats returns the number of Get calls and how many were served from the pool.
func (p *BufferPool) Stats() (gets, reused int64) {
	return p.gets.Load(), p.reused.Load()
}

// Returned reports how many buffers Put accepted back into the pool.
func (p *BufferPool) Returned() int64 {
	return p.returned.Load()
}

func (p *BufferPool) classPool(size int) *sync.Pool {
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()
	if exists {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pool, exists = p.pools[size]; !exists {
		pool = &sync.Pool{}
		p.pools[size] = pool
	}
	return pool
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
