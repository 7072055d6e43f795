// Package pool recycles the buffers used to read inbound websocket messages.
package pool

import (
	"bytes"
	"io"
	"sync"
)

const (
	// DefaultBufferSize covers a typical client command.
	DefaultBufferSize = 1024
	// MaxRetainedSize is the largest buffer returned to the pool.
	MaxRetainedSize = 64 * 1024
)

// BufferPool hands out reset bytes.Buffers.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, DefaultBufferSize))
			},
		},
	}
}

// Get returns an empty buffer.
func (p *BufferPool) Get() *bytes.Buffer {
	if p == nil {
		return bytes.NewBuffer(make([]byte, 0, DefaultBufferSize))
	}
	buf := p.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns buf to the pool. Oversized buffers are dropped so one large
// message does not pin memory.
func (p *BufferPool) Put(buf *bytes.Buffer) {
	if p == nil || buf == nil || buf.Cap() > MaxRetainedSize {
		return
	}
	p.pool.Put(buf)
}

// ReadAll drains r into a pooled buffer and passes its bytes to fn. The bytes
// are only valid until fn returns.
func (p *BufferPool) ReadAll(r io.Reader, fn func([]byte)) error {
	buf := p.Get()
	defer p.Put(buf)
	if _, err := buf.ReadFrom(r); err != nil {
		return err
	}
	fn(buf.Bytes())
	return nil
}
