// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import (
	"sync"

	"github.com/eapache/queue"
)

// BytePool recycles fixed-size receive buffers for server loops. Released
// buffers are reused oldest first; at most limit of them are retained and
// the rest are left to the GC.
type BytePool struct {
	mu    sync.Mutex
	free  *queue.Queue
	size  int
	limit int
}

// NewBytePool creates a pool of size-byte buffers that keeps up to limit
// idle buffers. A limit below 1 is treated as 1.
func NewBytePool(size, limit int) *BytePool {
	if limit < 1 {
		limit = 1
	}
	return &BytePool{
		free:  queue.New(),
		size:  size,
		limit: limit,
	}
}

// Size is the length of every buffer handed out.
func (b *BytePool) Size() int { return b.size }

// GetBuffer returns a buffer of Size bytes.
func (b *BytePool) GetBuffer() []byte {
	b.mu.Lock()
	if b.free.Length() > 0 {
		buf := b.free.Remove().([]byte)
		b.mu.Unlock()
		return buf[:b.size]
	}
	b.mu.Unlock()
	return make([]byte, b.size)
}

// PutBuffer returns a buffer to the pool. Foreign buffers with too little
// capacity are dropped.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) < b.size {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.free.Length() >= b.limit {
		return
	}
	b.free.Add(buf[:b.size])
}

// Idle reports how many buffers wait for reuse.
func (b *BytePool) Idle() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.free.Length()
}
