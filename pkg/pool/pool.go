// Package pool provides type-safe object pooling for tabavro's hot paths.
// Writers churn through one block buffer per file and conversion jobs open
// many files in sequence, so recycling those buffers keeps allocation
// pressure flat regardless of file count.
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool wraps sync.Pool with type safety, an optional reset hook, and usage
// statistics. Safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
	}
}

// New creates a pool with a factory and an optional reset function. The
// reset function runs before an object re-enters the pool.
func New[T any](factory func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return factory()
	}
	return p
}

// Get retrieves an object, creating one if the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool for reuse. The caller must not use the
// object afterwards.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the total objects created and the number currently checked
// out.
func (p *Pool[T]) Stats() (allocated, inUse int64) {
	return atomic.LoadInt64(&p.stats.allocated), atomic.LoadInt64(&p.stats.inUse)
}

// blockBufferCap seeds new buffers near the default block flush threshold
// so a typical block never reallocates.
const blockBufferCap = 64 * 1024

// Buffers recycles block-sized byte buffers across writer lifetimes.
var Buffers = New(
	func() *bytes.Buffer {
		buf := &bytes.Buffer{}
		buf.Grow(blockBufferCap)
		return buf
	},
	func(buf *bytes.Buffer) {
		buf.Reset()
	},
)
