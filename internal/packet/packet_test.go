package packet

import "testing"

func TestRequestFrameCountBaseCost(t *testing.T) {
	req := &Request{}
	if got, want := req.FrameCount(), 5; got != want {
		t.Errorf("empty Request.FrameCount() = %d, want %d", got, want)
	}
}

func TestRequestFrameCountAccountsForStackAndAddresses(t *testing.T) {
	req := &Request{
		PathStack:    []PathEntry{{Kind: Static, Address: 3}, {Kind: Logic, Address: 7}},
		NewAddresses: []NewAddressEntry{{StaticAddress: 3, NewLogicAddress: 9}},
		Payload:      []byte("Hi"),
	}
	// base 5 + 2 path entries + 1*2 address rows + payload(2 bytes -> 0*3+2)
	want := 5 + 2 + 2 + 2
	if got := req.FrameCount(); got != want {
		t.Errorf("FrameCount() = %d, want %d", got, want)
	}
}

func TestResponseFrameCountAccountsForNoiseTables(t *testing.T) {
	resp := &Response{
		NoiseTables: []NoiseRow{{1: 10}, {1: 20, 2: 5}},
		Payload:     []byte("Blop"),
	}
	// base 5 + 2 rows*2 + payload(4 bytes -> 1*3+0)
	want := 5 + 4 + 3
	if got := resp.FrameCount(); got != want {
		t.Errorf("FrameCount() = %d, want %d", got, want)
	}
}

func TestDamageBitRejectsOutOfRangeIndex(t *testing.T) {
	req := &Request{}
	if err := req.DamageBit(req.FrameCount()); err == nil {
		t.Fatal("expected error for out-of-range frame index")
	}
	if err := req.DamageBit(-1); err == nil {
		t.Fatal("expected error for negative frame index")
	}
}

func TestFrameErrorAverageCapsPerFrameAtTwo(t *testing.T) {
	req := &Request{}
	frameCount := req.FrameCount()

	if err := req.DamageBit(0); err != nil {
		t.Fatal(err)
	}
	if err := req.DamageBit(0); err != nil {
		t.Fatal(err)
	}
	if err := req.DamageBit(0); err != nil {
		t.Fatal(err)
	}
	if err := req.DamageBit(1); err != nil {
		t.Fatal(err)
	}

	// frame 0 has 3 errors, capped at 2; frame 1 has 1 error.
	want := 3.0 / float64(frameCount)
	if got := req.FrameErrorAverage(); got != want {
		t.Errorf("FrameErrorAverage() = %v, want %v", got, want)
	}
}

func TestHelloVariantsHaveFixedFrameCount(t *testing.T) {
	hr := &HelloRequest{}
	if got := hr.FrameCount(); got != 2 {
		t.Errorf("HelloRequest.FrameCount() = %d, want 2", got)
	}
	hresp := &HelloResponse{}
	if got := hresp.FrameCount(); got != 2 {
		t.Errorf("HelloResponse.FrameCount() = %d, want 2", got)
	}
}

func TestCheckWidthRejectsOversizedAddress(t *testing.T) {
	if err := checkWidth(MaxAddress, AddressBits); err != nil {
		t.Errorf("checkWidth(%d, %d) = %v, want nil", MaxAddress, AddressBits, err)
	}
	if err := checkWidth(MaxAddress+1, AddressBits); err == nil {
		t.Error("expected error for address exceeding 11 bits")
	}
}
