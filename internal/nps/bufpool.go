package nps

import "sync"

// Buffer sizes for the pooled per-connection read/send buffers. The read
// buffer must hold a maximal frame (codec.MaxFrameSize).
const (
	DefaultReadBufSize = 1 << 16
	DefaultSendBufSize = 8192
)

// BytePool переиспользует []byte буферы между соединениями, чтобы не
// аллоцировать на каждый кадр.
type BytePool struct {
	pool sync.Pool
}

// NewBytePool создаёт пул; defaultCap — ёмкость новых слайсов.
func NewBytePool(defaultCap int) *BytePool {
	p := &BytePool{}
	p.pool.New = func() any {
		return make([]byte, 0, defaultCap)
	}
	return p
}

// Get returns a zeroed slice of length size, reusing a pooled allocation
// when one is large enough.
func (p *BytePool) Get(size int) []byte {
	b := p.pool.Get().([]byte)
	if cap(b) < size {
		p.pool.Put(b)
		return make([]byte, size)
	}
	b = b[:size]
	clear(b)
	return b
}

// Put returns a slice to the pool.
func (p *BytePool) Put(b []byte) {
	if b == nil {
		return
	}
	p.pool.Put(b[:0])
}
