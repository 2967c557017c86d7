// Package brick implements the fixed-dimension dense scalar blocks that
// make up every node of a TSP tree, and the filter/combine/average
// operations used to build interior nodes from their children.
package brick

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Real is the scalar voxel type. The design fixes this at 32-bit
// IEEE-754; sizeof(Real) is recorded in the TSP header so a reader
// never has to guess.
type Real = float32

// SizeOfReal is the on-disk width of a single voxel, in bytes.
const SizeOfReal = 4

var (
	// ErrCoordOutOfRange is returned by Set/Get when a local coordinate
	// is not within the brick's dimensions.
	ErrCoordOutOfRange = errors.New("brick: coordinate out of range")

	// ErrDimensionMismatch is returned by Combine/Average when their
	// operands do not share identical dimensions, or by Filter/Combine
	// when a dimension is not evenly halvable.
	ErrDimensionMismatch = errors.New("brick: dimension mismatch")
)

// Brick is a dense Bx*By*Bz block of Real voxels stored x-fastest,
// then-y, then-z.
type Brick struct {
	Bx, By, Bz int
	Data       []Real
}

// New allocates a brick of the given dimensions with every voxel set
// to fill.
func New(bx, by, bz int, fill Real) *Brick {
	b := &Brick{Bx: bx, By: by, Bz: bz, Data: make([]Real, bx*by*bz)}
	if fill != 0 {
		for i := range b.Data {
			b.Data[i] = fill
		}
	}
	return b
}

// SizeVoxels is the number of voxels a brick of these dimensions holds.
func (b *Brick) SizeVoxels() int {
	return b.Bx * b.By * b.Bz
}

// SizeBytes is the on-disk footprint of a brick of these dimensions.
func (b *Brick) SizeBytes() int64 {
	return int64(b.SizeVoxels()) * SizeOfReal
}

func (b *Brick) index(x, y, z int) (int, error) {
	if x < 0 || y < 0 || z < 0 || x >= b.Bx || y >= b.By || z >= b.Bz {
		return 0, fmt.Errorf("(%d,%d,%d) against dims (%d,%d,%d): %w", x, y, z, b.Bx, b.By, b.Bz, ErrCoordOutOfRange)
	}
	return x + y*b.Bx + z*b.Bx*b.By, nil
}

// Set writes a single voxel in local coordinates.
func (b *Brick) Set(x, y, z int, v Real) error {
	idx, err := b.index(x, y, z)
	if err != nil {
		return err
	}
	b.Data[idx] = v
	return nil
}

// Get reads a single voxel in local coordinates.
func (b *Brick) Get(x, y, z int) (Real, error) {
	idx, err := b.index(x, y, z)
	if err != nil {
		return 0, err
	}
	return b.Data[idx], nil
}

func sameDims(a, b *Brick) bool {
	return a.Bx == b.Bx && a.By == b.By && a.Bz == b.Bz
}

// Filter produces a brick of the same dimensions as b whose voxel at
// local (x,y,z), for x<Bx/2, y<By/2, z<Bz/2, is the average of the
// 2x2x2 block at (2x,2y,2z) of b. The remaining octants of the
// returned brick are left zeroed; Combine never reads them.
//
// A 1x1x1 brick has no 2x2x2 block to average, so Filter is the
// identity: the single voxel already is the node's representative
// sample, and averaging across octants happens in Combine instead.
func Filter(pool *Pool, b *Brick) (*Brick, error) {

	if b.Bx == 1 && b.By == 1 && b.Bz == 1 {
		out := allocate(pool, 1, 1, 1)
		out.Data[0] = b.Data[0]
		return out, nil
	}

	if b.Bx%2 != 0 || b.By%2 != 0 || b.Bz%2 != 0 {
		return nil, fmt.Errorf("filtering brick of dims (%d,%d,%d): %w", b.Bx, b.By, b.Bz, ErrDimensionMismatch)
	}

	out := allocate(pool, b.Bx, b.By, b.Bz)
	hx, hy, hz := b.Bx/2, b.By/2, b.Bz/2

	for z := 0; z < hz; z++ {
		for y := 0; y < hy; y++ {
			for x := 0; x < hx; x++ {

				var sum Real
				for dz := 0; dz < 2; dz++ {
					for dy := 0; dy < 2; dy++ {
						for dx := 0; dx < 2; dx++ {
							v, err := b.Get(2*x+dx, 2*y+dy, 2*z+dz)
							if err != nil {
								return nil, err
							}
							sum += v
						}
					}
				}

				if err := out.Set(x, y, z, sum/8); err != nil {
					return nil, err
				}

			}
		}
	}

	return out, nil

}

// Combine assembles eight filtered children, indexed by Z-order (child
// i occupies the octant whose 3-bit signature equals i under bit order
// (z,y,x)), into a fresh brick of the same dimensions covering twice
// the linear extent. Only the lower octant of each child is read.
//
// A 1x1x1 brick has no octants to assemble into, so Combine instead
// averages the eight children's single voxels directly: the degenerate
// Filter (identity) followed by this degenerate Combine (mean of 8)
// is how a B=1 octree's interior nodes get their representative value.
func Combine(pool *Pool, children [8]*Brick) (*Brick, error) {

	first := children[0]
	if first == nil {
		return nil, fmt.Errorf("combine: nil child 0: %w", ErrDimensionMismatch)
	}
	for i, c := range children {
		if c == nil || !sameDims(c, first) {
			return nil, fmt.Errorf("combine: child %d dims mismatch: %w", i, ErrDimensionMismatch)
		}
	}

	bx, by, bz := first.Bx, first.By, first.Bz

	if bx == 1 && by == 1 && bz == 1 {
		out := allocate(pool, 1, 1, 1)
		var sum Real
		for _, c := range children {
			sum += c.Data[0]
		}
		out.Data[0] = sum / 8
		return out, nil
	}

	if bx%2 != 0 || by%2 != 0 || bz%2 != 0 {
		return nil, fmt.Errorf("combine: odd dims (%d,%d,%d): %w", bx, by, bz, ErrDimensionMismatch)
	}

	out := allocate(pool, bx, by, bz)
	hx, hy, hz := bx/2, by/2, bz/2

	for i := 0; i < 8; i++ {

		xBit := i & 1
		yBit := (i >> 1) & 1
		zBit := (i >> 2) & 1
		ox, oy, oz := xBit*hx, yBit*hy, zBit*hz

		child := children[i]
		for z := 0; z < hz; z++ {
			for y := 0; y < hy; y++ {
				for x := 0; x < hx; x++ {
					v, err := child.Get(x, y, z)
					if err != nil {
						return nil, err
					}
					if err := out.Set(ox+x, oy+y, oz+z, v); err != nil {
						return nil, err
					}
				}
			}
		}

	}

	return out, nil

}

// Average returns the elementwise mean of two same-dimensioned bricks.
func Average(pool *Pool, a, b *Brick) (*Brick, error) {

	if !sameDims(a, b) {
		return nil, fmt.Errorf("average: dims (%d,%d,%d) vs (%d,%d,%d): %w", a.Bx, a.By, a.Bz, b.Bx, b.By, b.Bz, ErrDimensionMismatch)
	}

	out := allocate(pool, a.Bx, a.By, a.Bz)
	for i := range out.Data {
		out.Data[i] = (a.Data[i] + b.Data[i]) / 2
	}

	return out, nil

}

func allocate(pool *Pool, bx, by, bz int) *Brick {
	if pool != nil {
		return pool.Get()
	}
	return New(bx, by, bz, 0)
}

// Encode serializes the brick's voxels to a little-endian byte slice
// of exactly SizeBytes() length, suitable for io.WriterAt.
func (b *Brick) Encode() []byte {
	buf := make([]byte, len(b.Data)*SizeOfReal)
	for i, v := range b.Data {
		binary.LittleEndian.PutUint32(buf[i*SizeOfReal:], math.Float32bits(v))
	}
	return buf
}

// Decode populates the brick's voxels from a little-endian byte slice
// previously produced by Encode. The slice must be exactly
// SizeBytes() long.
func (b *Brick) Decode(raw []byte) error {
	if len(raw) != len(b.Data)*SizeOfReal {
		return fmt.Errorf("decode: got %d bytes, want %d: %w", len(raw), len(b.Data)*SizeOfReal, ErrDimensionMismatch)
	}
	for i := range b.Data {
		b.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*SizeOfReal:]))
	}
	return nil
}

// WriteTo implements io.WriterTo, writing the brick sequentially.
func (b *Brick) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Encode())
	return int64(n), err
}

// ReadFrom implements io.ReaderFrom, filling the brick from a
// sequential stream. The brick must already be sized.
func (b *Brick) ReadFrom(r io.Reader) (int64, error) {
	raw := make([]byte, b.SizeBytes())
	n, err := io.ReadFull(r, raw)
	if err != nil {
		return int64(n), err
	}
	return int64(n), b.Decode(raw)
}
