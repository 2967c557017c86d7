// Package tspformat describes the on-disk geometry of a TSP tree: the
// input-file prefix, the 44-byte TSP file header, and the invariants
// that tie brick dimensions, octree levels and timestep counts
// together.
package tspformat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderOffset is the byte count at which voxel payload begins in the
// input file: five little-endian uint32 prefix fields. It is a byte
// count, never a stream position, which sidesteps the source's
// ambiguity between a handle it logs from and one it later reopens to
// read (see design notes).
const HeaderOffset = 5 * 4

// FileHeaderSize is the width, in bytes, of the 44-byte TSP file
// header: eleven little-endian uint32 fields.
const FileHeaderSize = 11 * 4

var (
	// ErrInputUnreadable covers a missing, unreadable or truncated
	// input file prefix.
	ErrInputUnreadable = errors.New("tspformat: input file unreadable")

	// ErrGeometryMismatch covers a spatial dimension that isn't an
	// exact multiple of its brick dimension, or brick counts that
	// aren't all equal and a power of two.
	ErrGeometryMismatch = errors.New("tspformat: geometry mismatch")

	// ErrTimestepCount covers a timestep count that isn't a power of
	// two.
	ErrTimestepCount = errors.New("tspformat: timestep count is not a power of two")
)

// Header is the in-memory descriptor of a dataset's geometry and brick
// layout. It is immutable once populated and is shared, read-only,
// across the whole pipeline.
type Header struct {
	Structure          uint32
	DataDimensionality uint32
	Bx, By, Bz         uint32
	Nx, Ny, Nz         uint32
	T                  uint32
	PaddingWidth       uint32
	DataSize           uint32

	vx, vy, vz uint32
}

// InputArgs carries the fields an invocation supplies that the input
// file itself does not (spec §6 Invocation).
type InputArgs struct {
	Bx, By, Bz   uint32
	PaddingWidth uint32
	Structure    uint32
}

// Load reads the five-uint32 prefix of an input stream and combines it
// with the invocation-supplied brick geometry to populate a Header,
// validating every invariant before returning.
func Load(r io.Reader, args InputArgs) (*Header, error) {

	var prefix [5]uint32
	if err := binary.Read(r, binary.LittleEndian, &prefix); err != nil {
		return nil, fmt.Errorf("reading input prefix: %v: %w", err, ErrInputUnreadable)
	}

	h := &Header{
		Structure:          args.Structure,
		DataDimensionality: prefix[0],
		Bx:                 args.Bx,
		By:                 args.By,
		Bz:                 args.Bz,
		T:                  prefix[1],
		PaddingWidth:       args.PaddingWidth,
		DataSize:           4,
		vx:                 prefix[2],
		vy:                 prefix[3],
		vz:                 prefix[4],
	}

	if h.Bx == 0 || h.By == 0 || h.Bz == 0 {
		return nil, fmt.Errorf("brick dimensions must be non-zero: %w", ErrGeometryMismatch)
	}

	if h.vx%h.Bx != 0 || h.vy%h.By != 0 || h.vz%h.Bz != 0 {
		return nil, fmt.Errorf("volume (%d,%d,%d) not an exact multiple of brick (%d,%d,%d): %w",
			h.vx, h.vy, h.vz, h.Bx, h.By, h.Bz, ErrGeometryMismatch)
	}

	h.Nx = h.vx / h.Bx
	h.Ny = h.vy / h.By
	h.Nz = h.vz / h.Bz

	if err := h.Validate(); err != nil {
		return nil, err
	}

	return h, nil

}

// VoxelDims returns the full volume dimensions in voxels.
func (h *Header) VoxelDims() (vx, vy, vz uint32) {
	return h.vx, h.vy, h.vz
}

func isPowerOfTwo(n uint32) bool {
	return n > 0 && n&(n-1) == 0
}

func log2(n uint32) int {
	l := 0
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}

// Validate checks the invariants of spec §3: the brick-count cube must
// be equal on every axis and a power of two, and the timestep count
// must be a power of two.
func (h *Header) Validate() error {

	if h.Nx != h.Ny || h.Ny != h.Nz {
		return fmt.Errorf("brick counts (%d,%d,%d) are not equal on every axis: %w", h.Nx, h.Ny, h.Nz, ErrGeometryMismatch)
	}

	if !isPowerOfTwo(h.Nx) {
		return fmt.Errorf("brick count %d is not a power of two: %w", h.Nx, ErrGeometryMismatch)
	}

	if !isPowerOfTwo(h.T) {
		return fmt.Errorf("timestep count %d is not a power of two: %w", h.T, ErrTimestepCount)
	}

	return nil

}

// Level returns L, the number of octree levels above the leaves; the
// root is at level L.
func (h *Header) Level() int {
	return log2(h.Nx)
}

// TimeLevels returns K, such that T = 2^K.
func (h *Header) TimeLevels() int {
	return log2(h.T)
}

// NOctree returns the total number of bricks in a full octree over
// this header's geometry: (8^(L+1)-1)/7.
func (h *Header) NOctree() int64 {
	l := h.Level()
	total := int64(0)
	level := int64(1)
	for i := 0; i <= l; i++ {
		total += level
		level *= 8
	}
	return total
}

// LeafCount returns 8^L, the number of base (leaf) bricks.
func (h *Header) LeafCount() int64 {
	return int64(1) << uint(3*h.Level())
}

// SizeVoxels returns the number of voxels in a single brick.
func (h *Header) SizeVoxels() int64 {
	return int64(h.Bx) * int64(h.By) * int64(h.Bz)
}

// SizeBytes returns the on-disk size of a single brick.
func (h *Header) SizeBytes() int64 {
	return h.SizeVoxels() * int64(h.DataSize)
}

// TimeBSTNodes returns 2T-1, the node count of the per-node time BST.
func (h *Header) TimeBSTNodes() int64 {
	return 2*int64(h.T) - 1
}

// ScratchFileSize returns the exact expected size of the intermediate
// scratch file: T * NOctree * SizeBytes.
func (h *Header) ScratchFileSize() int64 {
	return int64(h.T) * h.NOctree() * h.SizeBytes()
}

// TSPFileSize returns the exact expected size of the final TSP file:
// the 44-byte header plus NOctree * (2T-1) * SizeBytes.
func (h *Header) TSPFileSize() int64 {
	return FileHeaderSize + h.NOctree()*h.TimeBSTNodes()*h.SizeBytes()
}

// WriteTo encodes the 44-byte TSP file header.
func (h *Header) WriteTo(w io.Writer) (int64, error) {

	fields := [11]uint32{
		h.Structure, h.DataDimensionality,
		h.Bx, h.By, h.Bz,
		h.Nx, h.Ny, h.Nz,
		h.T, h.PaddingWidth, h.DataSize,
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, fields); err != nil {
		return 0, err
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err

}

// ReadTSPHeader decodes the 44-byte TSP file header.
func ReadTSPHeader(r io.Reader) (*Header, error) {

	var fields [11]uint32
	if err := binary.Read(r, binary.LittleEndian, &fields); err != nil {
		return nil, fmt.Errorf("reading TSP header: %w", err)
	}

	h := &Header{
		Structure:          fields[0],
		DataDimensionality: fields[1],
		Bx:                 fields[2],
		By:                 fields[3],
		Bz:                 fields[4],
		Nx:                 fields[5],
		Ny:                 fields[6],
		Nz:                 fields[7],
		T:                  fields[8],
		PaddingWidth:       fields[9],
		DataSize:           fields[10],
	}

	return h, h.Validate()

}
