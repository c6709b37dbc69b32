package nodedata

import (
	"testing"

	"github.com/kprusa/rethundersim/internal/packet"
)

func intp(v int) *int { return &v }

func TestCreateAssignsFreeStaticAddress(t *testing.T) {
	m := NewManager()

	n0, err := m.Create(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n0.StaticAddress() != 0 {
		t.Errorf("first node static address = %d, want 0", n0.StaticAddress())
	}

	n1, err := m.Create(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n1.StaticAddress() != 1 {
		t.Errorf("second node static address = %d, want 1", n1.StaticAddress())
	}
}

func TestCreateRejectsDuplicateStaticAddress(t *testing.T) {
	m := NewManager()
	if _, err := m.Create(intp(5), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(intp(5), nil); err == nil {
		t.Fatal("expected duplicate static address error")
	}
}

func TestGetFreeStaticAddressFillsGaps(t *testing.T) {
	m := NewManager()
	if _, err := m.Create(intp(0), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(intp(2), nil); err != nil {
		t.Fatal(err)
	}

	addr, err := m.GetFreeStaticAddress()
	if err != nil {
		t.Fatal(err)
	}
	if addr != 1 {
		t.Errorf("GetFreeStaticAddress() = %d, want 1", addr)
	}
}

func TestSetLogicAddressUpdatesReverseIndex(t *testing.T) {
	m := NewManager()
	n, err := m.Create(intp(3), nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.SetLogicAddress(n, intp(7)); err != nil {
		t.Fatal(err)
	}
	got, ok := m.NodeByLogic(7)
	if !ok || got != n {
		t.Fatalf("NodeByLogic(7) = (%v, %v), want (%v, true)", got, ok, n)
	}

	if err := m.SetLogicAddress(n, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.NodeByLogic(7); ok {
		t.Error("expected logic address 7 to be cleared")
	}
}

func TestSetLogicAddressRejectsAlreadyAssigned(t *testing.T) {
	m := NewManager()
	a, _ := m.Create(intp(1), intp(0))
	b, _ := m.Create(intp(2), nil)
	_ = a

	if err := m.SetLogicAddress(b, intp(0)); err == nil {
		t.Fatal("expected error assigning an already-held logic address")
	}
}

func TestSwapLogicAddressExchangesOwnership(t *testing.T) {
	m := NewManager()
	a, _ := m.Create(intp(1), intp(3))
	b, _ := m.Create(intp(2), intp(9))

	m.SwapLogicAddress(a, b)

	if *a.LogicAddress() != 9 || *b.LogicAddress() != 3 {
		t.Fatalf("after swap: a=%d b=%d, want a=9 b=3", *a.LogicAddress(), *b.LogicAddress())
	}
	if got, _ := m.NodeByLogic(9); got != a {
		t.Error("NodeByLogic(9) should now resolve to a")
	}
	if got, _ := m.NodeByLogic(3); got != b {
		t.Error("NodeByLogic(3) should now resolve to b")
	}
	if a.StaticAddress() != 1 || b.StaticAddress() != 2 {
		t.Error("swap must not affect static addresses or node identity")
	}
}

func TestGetFreeStaticAddressReportsExhaustion(t *testing.T) {
	m := NewManager()
	for i := 0; i <= packet.MaxAddress; i++ {
		if _, err := m.Create(intp(i), nil); err != nil {
			t.Fatalf("Create(%d) failed: %v", i, err)
		}
	}
	if _, err := m.GetFreeStaticAddress(); err == nil {
		t.Fatal("expected address exhaustion error")
	}
}
