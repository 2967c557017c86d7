// Package tspdecompiler provides read-only inspection of a finished
// TSP file: header decoding, node addressing and a tabular summary,
// modeled on the read-only inspector style of this codebase's image
// decompilers.
package tspdecompiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"code.cloudfoundry.org/bytefmt"
	"github.com/sisatech/tablewriter"

	"github.com/sisatech/tspc/pkg/brick"
	"github.com/sisatech/tspc/pkg/tspformat"
)

// ErrNodeOutOfRange is returned when an octree level or spatial index
// addresses a node that does not exist in this file's geometry.
var ErrNodeOutOfRange = errors.New("tspdecompiler: node out of range")

// IO wraps a finished TSP file for random-access inspection. It never
// writes to the underlying stream.
type IO struct {
	r      io.ReaderAt
	header *tspformat.Header
}

// Open decodes the 44-byte header from r and returns an IO ready to
// address BST nodes within it.
func Open(r io.ReaderAt) (*IO, error) {

	buf := make([]byte, tspformat.FileHeaderSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("reading TSP header: %w", err)
	}

	h, err := tspformat.ReadTSPHeader(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decoding TSP header: %w", err)
	}

	return &IO{r: r, header: h}, nil

}

// Header returns the decoded file header.
func (iio *IO) Header() *tspformat.Header {
	return iio.header
}

// NodeCount returns the total number of BST nodes in the file:
// NOctree * (2T-1).
func (iio *IO) NodeCount() int64 {
	h := iio.header
	return h.NOctree() * h.TimeBSTNodes()
}

// levelLayout returns, for the given octree level k (0 = leaves, L =
// root), the spatial-node count at that level and the level's starting
// offset among octree nodes counted root-first (matching the TSP
// payload's on-disk node ordering).
func (iio *IO) levelLayout(level int) (count int64, tspNodeStart int64, err error) {

	h := iio.header
	l := h.Level()
	if level < 0 || level > l {
		return 0, 0, fmt.Errorf("octree level %d outside [0,%d]: %w", level, l, ErrNodeOutOfRange)
	}

	var nodeOffset int64
	for k := l; k > level; k-- {
		nodeOffset += int64(1) << uint(3*(l-k))
	}

	return int64(1) << uint(3*(l-level)), nodeOffset, nil

}

// BSTBlock decodes the full time BST for the spatial node at
// (octreeLevel, spatialIndex) — where spatialIndex is relative to
// other nodes at the same level, root-first — returning its 2T-1
// bricks in BST array order (spec §4.3 layout).
func (iio *IO) BSTBlock(octreeLevel, spatialIndex int) ([]*brick.Brick, error) {

	h := iio.header
	count, nodeOffset, err := iio.levelLayout(octreeLevel)
	if err != nil {
		return nil, err
	}

	if spatialIndex < 0 || int64(spatialIndex) >= count {
		return nil, fmt.Errorf("spatial index %d outside [0,%d) at level %d: %w",
			spatialIndex, count, octreeLevel, ErrNodeOutOfRange)
	}

	bstNodes := h.TimeBSTNodes()
	base := tspformat.FileHeaderSize + (nodeOffset+int64(spatialIndex))*bstNodes*h.SizeBytes()

	out := make([]*brick.Brick, bstNodes)
	raw := make([]byte, h.SizeBytes())

	for i := int64(0); i < bstNodes; i++ {

		off := base + i*h.SizeBytes()
		if _, err := iio.r.ReadAt(raw, off); err != nil {
			return nil, fmt.Errorf("reading BST node %d of block (%d,%d): %w", i, octreeLevel, spatialIndex, err)
		}

		b := brick.New(int(h.Bx), int(h.By), int(h.Bz), 0)
		if err := b.Decode(raw); err != nil {
			return nil, fmt.Errorf("decoding BST node %d of block (%d,%d): %w", i, octreeLevel, spatialIndex, err)
		}

		out[i] = b

	}

	return out, nil

}

// Describe writes a tabular summary of the file's geometry.
func (iio *IO) Describe(w io.Writer) {

	h := iio.header

	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")

	rows := [][]string{
		{"structure", fmt.Sprintf("%d", h.Structure)},
		{"data dimensionality", fmt.Sprintf("%d", h.DataDimensionality)},
		{"brick dims", fmt.Sprintf("%dx%dx%d", h.Bx, h.By, h.Bz)},
		{"brick counts", fmt.Sprintf("%dx%dx%d", h.Nx, h.Ny, h.Nz)},
		{"octree depth", fmt.Sprintf("%d", h.Level())},
		{"octree nodes", fmt.Sprintf("%d", h.NOctree())},
		{"timesteps", fmt.Sprintf("%d", h.T)},
		{"padding width", fmt.Sprintf("%d", h.PaddingWidth)},
		{"voxel size", fmt.Sprintf("%d bytes", h.DataSize)},
		{"total nodes", fmt.Sprintf("%d", iio.NodeCount())},
		{"payload size", bytefmt.ByteSize(uint64(h.TSPFileSize() - tspformat.FileHeaderSize))},
		{"file size", bytefmt.ByteSize(uint64(h.TSPFileSize()))},
	}

	for _, r := range rows {
		table.Append(r)
	}

	table.Render()

}
