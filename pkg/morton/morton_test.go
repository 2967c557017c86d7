package morton

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for x := uint32(0); x < 8; x++ {
		for y := uint32(0); y < 8; y++ {
			for z := uint32(0); z < 8; z++ {
				code := Encode(x, y, z)
				gx, gy, gz := Decode(code)
				if gx != x || gy != y || gz != z {
					t.Fatalf("Encode(%d,%d,%d)=%d decoded to (%d,%d,%d)", x, y, z, code, gx, gy, gz)
				}
			}
		}
	}
}

func TestEncodeIsBijectionOntoRange(t *testing.T) {
	// For all (x,y,z) with each coord < 2^L, Encode must be a bijection onto [0, 8^L).
	const L = 2
	const n = 1 << L
	seen := make(map[uint32]bool)
	for x := uint32(0); x < n; x++ {
		for y := uint32(0); y < n; y++ {
			for z := uint32(0); z < n; z++ {
				code := Encode(x, y, z)
				if code >= 1<<(3*L) {
					t.Fatalf("code %d out of range [0, %d)", code, 1<<(3*L))
				}
				if seen[code] {
					t.Fatalf("code %d produced twice", code)
				}
				seen[code] = true
			}
		}
	}
	if len(seen) != 1<<(3*L) {
		t.Fatalf("got %d distinct codes, want %d", len(seen), 1<<(3*L))
	}
}

func TestEncodeKnownValues(t *testing.T) {
	cases := []struct {
		x, y, z uint32
		want    uint32
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{0, 1, 0, 2},
		{0, 0, 1, 4},
		{1, 1, 1, 7},
	}
	for _, c := range cases {
		got := Encode(c.x, c.y, c.z)
		if got != c.want {
			t.Errorf("Encode(%d,%d,%d) = %d, want %d", c.x, c.y, c.z, got, c.want)
		}
	}
}
