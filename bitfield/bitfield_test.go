package bitfield_test

import (
	"testing"

	"github.com/kramelec/imcsnap/bitfield"
)

func TestGetBits(t *testing.T) {
	t.Parallel()

	buf := []byte{0xF0, 0x0F, 0x00, 0x00}

	tests := []struct {
		name                string
		offset, first, last int
		want                uint64
	}{
		{"low nibble of byte0", 0, 0, 3, 0x0},
		{"high nibble of byte0", 0, 4, 7, 0xF},
		{"low nibble of byte1", 1, 0, 3, 0xF},
		{"spans byte boundary", 0, 4, 11, 0xFF},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := bitfield.GetBits(buf, tt.offset, tt.first, tt.last)
			if got != tt.want {
				t.Fatalf("GetBits(%d,%d,%d) = 0x%X, want 0x%X", tt.offset, tt.first, tt.last, got, tt.want)
			}
		})
	}
}

func TestGetBitsOutOfRange(t *testing.T) {
	t.Parallel()

	buf := []byte{0xFF}
	if got := bitfield.GetBits(buf, 10, 0, 7); got != 0 {
		t.Fatalf("expected 0 for out-of-range read, got %d", got)
	}
}

func TestSint(t *testing.T) {
	t.Parallel()

	if got := bitfield.Sint(0x1FFF, 13); got != -1 {
		t.Fatalf("Sint(0x1FFF,13) = %d, want -1", got)
	}

	if got := bitfield.Sint(0x0FFF, 13); got != 0x0FFF {
		t.Fatalf("Sint(0x0FFF,13) = %d, want %d", got, 0x0FFF)
	}
}

func TestFixedU3_13(t *testing.T) {
	t.Parallel()

	// 1.0 in U3.13 is 1<<13 = 0x2000.
	got := bitfield.Fixed(0x2000, 13, 0)
	if got != 1.0 {
		t.Fatalf("Fixed(0x2000,13,0) = %v, want 1.0", got)
	}
}

func TestTemperatureFromRaw(t *testing.T) {
	t.Parallel()

	// +25.00C => raw = 25*4 = 100.
	if got := bitfield.TemperatureFromRaw(100); got != 25.0 {
		t.Fatalf("TemperatureFromRaw(100) = %v, want 25.0", got)
	}

	// -1.00C => 13-bit two's complement of -4.
	neg := uint64(1<<13 - 4)
	if got := bitfield.TemperatureFromRaw(neg); got != -1.0 {
		t.Fatalf("TemperatureFromRaw(neg) = %v, want -1.0", got)
	}
}

func TestRttOhms(t *testing.T) {
	t.Parallel()

	if ohms, ok := bitfield.RttOhms(3); !ok || ohms != 80 {
		t.Fatalf("RttOhms(3) = (%d,%v), want (80,true)", ohms, ok)
	}

	if _, ok := bitfield.RttOhms(0); ok {
		t.Fatalf("RttOhms(0) should be disabled/not-ok")
	}
}

func TestVrefPercentBounds(t *testing.T) {
	t.Parallel()

	pct, ok := bitfield.VrefPercent(0) // range A, 0 steps => 60.0
	if !ok || pct != 60.0 {
		t.Fatalf("VrefPercent(0) = (%v,%v), want (60.0,true)", pct, ok)
	}

	if pct < 48.0 || pct > 97.5 {
		t.Fatalf("VrefPercent out of JEDEC bounds: %v", pct)
	}
}

func TestDecodeJEP106(t *testing.T) {
	t.Parallel()

	v := bitfield.DecodeJEP106(0x00, 0xCE|0x80) // Samsung, parity bit set
	if v.Name != "Samsung" {
		t.Fatalf("DecodeJEP106 = %+v, want Samsung", v)
	}
}

func TestDecodeJEP106Bank2(t *testing.T) {
	t.Parallel()

	v := bitfield.DecodeJEP106(0x01, 0x3E) // STMicroelectronics, bank 2
	if v.Name != "STMicroelectronics" {
		t.Fatalf("DecodeJEP106 = %+v, want STMicroelectronics", v)
	}
}

func TestDecodeJEP106RichtekBank11(t *testing.T) {
	t.Parallel()

	v := bitfield.DecodeJEP106(0x0A, 0x0C) // bank 11: hi byte directly encodes the continuation count
	if v.Name != "Richtek" {
		t.Fatalf("DecodeJEP106 = %+v, want Richtek", v)
	}

	if v.ContinuationBytes != 10 {
		t.Fatalf("ContinuationBytes = %d, want 10", v.ContinuationBytes)
	}
}
