package octree

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/sisatech/tspc/pkg/tspformat"
)

type memReaderAt struct{ data []byte }

func (m *memReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, m.data[off:]), nil
}

type memWriterAt struct{ data []byte }

func (m *memWriterAt) WriteAt(p []byte, off int64) (int, error) {
	n := copy(m.data[off:], p)
	return n, nil
}

func buildInput(t *testing.T, dataDim, timesteps, vx, vy, vz uint32, voxels [][]float32) *memReaderAt {
	t.Helper()
	buf := new(bytes.Buffer)
	prefix := [5]uint32{dataDim, timesteps, vx, vy, vz}
	if err := binary.Write(buf, binary.LittleEndian, prefix); err != nil {
		t.Fatal(err)
	}
	for _, ts := range voxels {
		if err := binary.Write(buf, binary.LittleEndian, ts); err != nil {
			t.Fatal(err)
		}
	}
	return &memReaderAt{data: buf.Bytes()}
}

// Scenario 2 from spec §8: Bx=By=Bz=1, Nx=Ny=Nz=2, T=1, Vx=Vy=Vz=2,
// voxels 0..7 x-fastest. N_octree=9, root = mean = 3.5.
func TestBuildSingleTimestepOctree(t *testing.T) {

	voxels := []float32{0, 1, 2, 3, 4, 5, 6, 7}
	input := buildInput(t, 1, 1, 2, 2, 2, [][]float32{voxels})

	h, err := tspformat.Load(bytes.NewReader(input.data), tspformat.InputArgs{Bx: 1, By: 1, Bz: 1})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if h.NOctree() != 9 {
		t.Fatalf("NOctree = %d, want 9", h.NOctree())
	}

	scratch := &memWriterAt{data: make([]byte, h.ScratchFileSize())}
	b := &Builder{Header: h, Input: input, Scratch: scratch}

	if err := b.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}

	// root brick is the last of 9 bricks, single voxel.
	rootOffset := 8 * h.SizeBytes()
	rootBits := scratch.data[rootOffset : rootOffset+4]
	var root float32
	root = readFloat32(rootBits)
	if root != 3.5 {
		t.Fatalf("root = %v, want 3.5", root)
	}

	// leaves in Z-order: 0,1,2,3,4,5,6,7
	for i := 0; i < 8; i++ {
		off := int64(i) * h.SizeBytes()
		v := readFloat32(scratch.data[off : off+4])
		if v != float32(i) {
			t.Errorf("leaf %d = %v, want %v", i, v, i)
		}
	}

}

func readFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
