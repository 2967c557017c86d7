package brick

import "sync"

// Pool is a fixed-size sync.Pool of bricks sharing one dimension
// triple. Every brick in a dataset shares identical dimensions, so a
// single bucket (unlike a general byte-buffer pool bucketed by size
// class) is enough to keep the builder's live brick count bounded
// without per-allocation garbage.
type Pool struct {
	bx, by, bz int
	pool       sync.Pool
}

// NewPool returns a pool that hands out bricks of the given
// dimensions.
func NewPool(bx, by, bz int) *Pool {
	p := &Pool{bx: bx, by: by, bz: bz}
	p.pool.New = func() interface{} {
		return &Brick{Bx: bx, By: by, Bz: bz, Data: make([]Real, bx*by*bz)}
	}
	return p
}

// Get returns a zeroed brick of the pool's dimensions. The caller owns
// the brick until it calls Put.
func (p *Pool) Get() *Brick {
	b := p.pool.Get().(*Brick)
	for i := range b.Data {
		b.Data[i] = 0
	}
	return b
}

// Put returns a brick to the pool. Bricks of the wrong dimensions are
// silently dropped rather than pooled.
func (p *Pool) Put(b *Brick) {
	if b == nil || b.Bx != p.bx || b.By != p.by || b.Bz != p.bz {
		return
	}
	p.pool.Put(b)
}
