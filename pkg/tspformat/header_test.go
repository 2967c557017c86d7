package tspformat

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func prefixBytes(t *testing.T, dataDim, timesteps, vx, vy, vz uint32) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	vals := [5]uint32{dataDim, timesteps, vx, vy, vz}
	if err := binary.Write(buf, binary.LittleEndian, vals); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoadValidGeometry(t *testing.T) {
	r := bytes.NewReader(prefixBytes(t, 1, 4, 4, 4, 4))
	h, err := Load(r, InputArgs{Bx: 2, By: 2, Bz: 2, PaddingWidth: 0, Structure: 7})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if h.Nx != 2 || h.Ny != 2 || h.Nz != 2 {
		t.Fatalf("brick counts = (%d,%d,%d), want (2,2,2)", h.Nx, h.Ny, h.Nz)
	}
	if h.Level() != 1 {
		t.Fatalf("level = %d, want 1", h.Level())
	}
	if h.NOctree() != 9 {
		t.Fatalf("NOctree = %d, want 9", h.NOctree())
	}
	if h.Structure != 7 {
		t.Fatalf("structure = %d, want 7", h.Structure)
	}
}

func TestLoadGeometryMismatch(t *testing.T) {
	r := bytes.NewReader(prefixBytes(t, 1, 1, 6, 6, 6))
	_, err := Load(r, InputArgs{Bx: 4, By: 4, Bz: 4})
	if err == nil {
		t.Fatal("expected geometry mismatch error")
	}
}

func TestLoadTimestepNotPowerOfTwo(t *testing.T) {
	r := bytes.NewReader(prefixBytes(t, 1, 3, 4, 4, 4))
	_, err := Load(r, InputArgs{Bx: 2, By: 2, Bz: 2})
	if err == nil {
		t.Fatal("expected timestep count error")
	}
}

func TestLoadUnequalBrickCounts(t *testing.T) {
	r := bytes.NewReader(prefixBytes(t, 1, 1, 4, 8, 4))
	_, err := Load(r, InputArgs{Bx: 2, By: 2, Bz: 2})
	if err == nil {
		t.Fatal("expected geometry mismatch error for unequal brick counts")
	}
}

func TestTSPHeaderRoundTrip(t *testing.T) {
	h := &Header{
		Structure: 3, DataDimensionality: 1,
		Bx: 2, By: 2, Bz: 2,
		Nx: 4, Ny: 4, Nz: 4,
		T: 8, PaddingWidth: 1, DataSize: 4,
	}

	buf := new(bytes.Buffer)
	n, err := h.WriteTo(buf)
	if err != nil {
		t.Fatalf("writeto: %v", err)
	}
	if n != FileHeaderSize || buf.Len() != FileHeaderSize {
		t.Fatalf("wrote %d bytes, want %d", n, FileHeaderSize)
	}

	h2, err := ReadTSPHeader(buf)
	if err != nil {
		t.Fatalf("readback: %v", err)
	}
	if *h2 != *h {
		t.Fatalf("round-tripped header %+v != original %+v", h2, h)
	}
}

func TestSizesForMinimalConfiguration(t *testing.T) {
	// L=0, K=0: one brick, one timestep.
	h := &Header{Bx: 2, By: 2, Bz: 2, Nx: 1, Ny: 1, Nz: 1, T: 1, DataSize: 4}
	if err := h.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if h.NOctree() != 1 {
		t.Fatalf("NOctree = %d, want 1", h.NOctree())
	}
	if h.TimeBSTNodes() != 1 {
		t.Fatalf("TimeBSTNodes = %d, want 1", h.TimeBSTNodes())
	}
	want := int64(FileHeaderSize) + 1*1*8*4
	if h.TSPFileSize() != want {
		t.Fatalf("TSPFileSize = %d, want %d", h.TSPFileSize(), want)
	}
}
