package hamming

import "testing"

func TestRoundTripIdentity(t *testing.T) {
	for x := uint16(0); x < 1<<11; x++ {
		status, got := Decode(Encode(x))
		if status != NoErrors {
			t.Fatalf("Decode(Encode(%d)) status = %v, want NoErrors", x, status)
		}
		if got != x {
			t.Fatalf("Decode(Encode(%d)) = %d, want %d", x, got, x)
		}
	}
}

func TestSingleBitErrorCorrected(t *testing.T) {
	for x := uint16(0); x < 1<<11; x++ {
		encoded := Encode(x)
		for b := uint(0); b < 11; b++ {
			status, got := Decode(encoded ^ (1 << b))
			if status != OneErrorCorrected {
				t.Fatalf("x=%d bit=%d: status = %v, want OneErrorCorrected", x, b, status)
			}
			if got != x {
				t.Fatalf("x=%d bit=%d: corrected value = %d, want %d", x, b, got, x)
			}
		}
	}
}

func TestDoubleBitErrorUnreadable(t *testing.T) {
	// Exhaustive over all x would be 2048 * 55 pairs; check every pair
	// for a handful of fixed values instead, which keeps the test fast
	// while still covering every bit-pair combination at least once.
	xsToCheckAllPairs := []uint16{0, 1, 0x7FF, 0x555, 0x2A3}

	for _, x := range xsToCheckAllPairs {
		encoded := Encode(x)
		for b1 := uint(0); b1 < 11; b1++ {
			for b2 := b1 + 1; b2 < 11; b2++ {
				status, _ := Decode(encoded ^ (1 << b1) ^ (1 << b2))
				if status != Unreadable {
					t.Fatalf("x=%d bits=(%d,%d): status = %v, want Unreadable", x, b1, b2, status)
				}
			}
		}
	}
}

func TestEncodeRejectsOversizedInput(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Encode to panic on an 11+ bit value")
		}
	}()
	Encode(1 << 11)
}
