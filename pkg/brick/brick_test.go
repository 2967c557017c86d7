package brick

import (
	"testing"
)

func TestSetGet(t *testing.T) {
	b := New(2, 2, 2, 0)
	if err := b.Set(1, 1, 1, 42); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := b.Get(1, 1, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %v, want 42", v)
	}
}

func TestGetOutOfRange(t *testing.T) {
	b := New(2, 2, 2, 0)
	if _, err := b.Get(2, 0, 0); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestFilterCombineRoundTrip(t *testing.T) {

	// Eight children, each a constant brick with a distinct value.
	// After filter+combine, octant i of the parent must equal children[i]'s value.
	var children [8]*Brick
	for i := 0; i < 8; i++ {
		children[i] = New(2, 2, 2, Real(i+1))
	}

	var filtered [8]*Brick
	for i, c := range children {
		f, err := Filter(nil, c)
		if err != nil {
			t.Fatalf("filter %d: %v", i, err)
		}
		filtered[i] = f
	}

	parent, err := Combine(nil, filtered)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}

	for i := 0; i < 8; i++ {
		xBit := i & 1
		yBit := (i >> 1) & 1
		zBit := (i >> 2) & 1
		v, err := parent.Get(xBit, yBit, zBit)
		if err != nil {
			t.Fatalf("get octant %d: %v", i, err)
		}
		if v != Real(i+1) {
			t.Errorf("octant %d = %v, want %v", i, v, i+1)
		}
	}

}

func TestFilterAverages2x2x2Block(t *testing.T) {

	b := New(2, 2, 2, 0)
	vals := []Real{1, 2, 3, 4, 5, 6, 7, 8}
	i := 0
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				if err := b.Set(x, y, z, vals[i]); err != nil {
					t.Fatal(err)
				}
				i++
			}
		}
	}

	f, err := Filter(nil, b)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}

	v, err := f.Get(0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v != 4.5 {
		t.Fatalf("got %v, want 4.5", v)
	}

}

func TestFilterCombineDegenerateSingleVoxel(t *testing.T) {

	// Spec §8 scenario 2: Bx=By=Bz=1, eight leaf values 0..7. Filter
	// has no 2x2x2 block to downsample, so it must pass the single
	// voxel through unchanged; Combine then has no octants to place
	// children into, so it must average all eight directly.
	var children [8]*Brick
	for i := 0; i < 8; i++ {
		children[i] = New(1, 1, 1, Real(i))
	}

	var filtered [8]*Brick
	for i, c := range children {
		f, err := Filter(nil, c)
		if err != nil {
			t.Fatalf("filter %d: %v", i, err)
		}
		if f.Data[0] != c.Data[0] {
			t.Fatalf("filter %d: got %v, want identity %v", i, f.Data[0], c.Data[0])
		}
		filtered[i] = f
	}

	parent, err := Combine(nil, filtered)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}

	if parent.Bx != 1 || parent.By != 1 || parent.Bz != 1 {
		t.Fatalf("combine: dims = (%d,%d,%d), want (1,1,1)", parent.Bx, parent.By, parent.Bz)
	}
	if parent.Data[0] != 3.5 {
		t.Fatalf("combine: got %v, want 3.5", parent.Data[0])
	}

}

func TestAverage(t *testing.T) {
	a := New(2, 2, 2, 10)
	b := New(2, 2, 2, 20)
	avg, err := Average(nil, a, b)
	if err != nil {
		t.Fatalf("average: %v", err)
	}
	for _, v := range avg.Data {
		if v != 15 {
			t.Fatalf("got %v, want 15", v)
		}
	}
}

func TestAverageDimensionMismatch(t *testing.T) {
	a := New(2, 2, 2, 0)
	b := New(4, 2, 2, 0)
	if _, err := Average(nil, a, b); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := New(2, 2, 2, 0)
	for i := range b.Data {
		b.Data[i] = Real(i) * 1.5
	}
	raw := b.Encode()
	if int64(len(raw)) != b.SizeBytes() {
		t.Fatalf("encoded length %d, want %d", len(raw), b.SizeBytes())
	}

	out := New(2, 2, 2, 0)
	if err := out.Decode(raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range b.Data {
		if out.Data[i] != b.Data[i] {
			t.Fatalf("voxel %d: got %v, want %v", i, out.Data[i], b.Data[i])
		}
	}
}

func TestPoolRoundTrip(t *testing.T) {
	p := NewPool(2, 2, 2)
	b := p.Get()
	b.Data[0] = 99
	p.Put(b)

	b2 := p.Get()
	if b2.Data[0] != 0 {
		t.Fatalf("pooled brick not zeroed on Get: %v", b2.Data[0])
	}
}
