// Package buffer provides a size-tiered pool of reusable byte slices for the
// UDP receive/send path, so a packet-per-datagram workload doesn't allocate
// on every read.
package buffer

import "sync"

// Pool manages three tiers of reusable buffers sized for a small control
// packet, a mid-size update, and a large universe snapshot respectively.
type Pool struct {
	small  sync.Pool // 2KB: a single datagram at typical UDP MTU
	medium sync.Pool // 16KB: a multi-chat Update
	large  sync.Pool // 64KB: a full-snapshot universe diff
}

const (
	smallSize  = 2048
	mediumSize = 16384
	largeSize  = 65536
)

// NewPool constructs an empty Pool; buffers are allocated lazily on first
// Get of each tier.
func NewPool() *Pool {
	p := &Pool{}
	p.small.New = func() any { buf := make([]byte, smallSize); return &buf }
	p.medium.New = func() any { buf := make([]byte, mediumSize); return &buf }
	p.large.New = func() any { buf := make([]byte, largeSize); return &buf }
	return p
}

func (p *Pool) tierFor(size int) *sync.Pool {
	switch {
	case size <= smallSize:
		return &p.small
	case size <= mediumSize:
		return &p.medium
	default:
		return &p.large
	}
}

// Get returns a buffer of at least size bytes, resliced to exactly size.
func (p *Pool) Get(size int) *[]byte {
	pool := p.tierFor(size)
	v := pool.Get().(*[]byte)
	if cap(*v) < size {
		buf := make([]byte, size)
		return &buf
	}
	*v = (*v)[:size]
	return v
}

// Put returns buf to the pool tier matching its capacity. Buffers larger
// than the large tier are dropped rather than pooled.
func (p *Pool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	size := cap(*buf)
	*buf = (*buf)[:0]
	switch {
	case size <= smallSize:
		p.small.Put(buf)
	case size <= mediumSize:
		p.medium.Put(buf)
	case size <= largeSize:
		p.large.Put(buf)
	}
}
