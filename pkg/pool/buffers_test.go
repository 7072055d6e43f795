package pool

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestBufferPoolGetIsEmpty(t *testing.T) {
	p := NewBufferPool()

	buf := p.Get()
	buf.WriteString("hello world")
	p.Put(buf)

	again := p.Get()
	if again.Len() != 0 {
		t.Fatalf("expected empty buffer, got len=%d", again.Len())
	}
	if again.Cap() < DefaultBufferSize {
		t.Fatalf("expected capacity at least %d, got %d", DefaultBufferSize, again.Cap())
	}
}

func TestBufferPoolNilPool(t *testing.T) {
	var p *BufferPool

	// Should not panic
	buf := p.Get()
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer, got len=%d", buf.Len())
	}
	p.Put(buf)
}

func TestBufferPoolDropsOversizedBuffers(t *testing.T) {
	p := NewBufferPool()
	big := bytes.NewBuffer(make([]byte, 0, MaxRetainedSize*2))
	p.Put(big)

	got := p.Get()
	if got == big {
		t.Fatalf("expected oversized buffer to be dropped")
	}
}

func TestReadAll(t *testing.T) {
	p := NewBufferPool()

	var seen string
	if err := p.ReadAll(strings.NewReader(`{"type":"click"}`), func(b []byte) {
		seen = string(b)
	}); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if seen != `{"type":"click"}` {
		t.Fatalf("unexpected payload %q", seen)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestReadAllPropagatesReadErrors(t *testing.T) {
	p := NewBufferPool()
	called := false
	err := p.ReadAll(failingReader{}, func([]byte) { called = true })
	if err == nil {
		t.Fatalf("expected error")
	}
	if called {
		t.Fatalf("callback should not run on read error")
	}
}
