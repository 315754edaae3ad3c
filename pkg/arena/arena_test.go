package arena

import (
	"errors"
	"testing"
)

func TestAllocBumpsOffset(t *testing.T) {
	a := New(1024)
	b1, err := a.Alloc(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(b1) != 10 {
		t.Fatalf("len = %d, want 10", len(b1))
	}
	if a.Used() == 0 {
		t.Fatal("expected offset to advance")
	}
}

func TestAllocIsAligned(t *testing.T) {
	a := New(1024)
	if _, err := a.Alloc(3); err != nil {
		t.Fatal(err)
	}
	if a.Used()%Align != 0 {
		t.Fatalf("offset %d not aligned to %d", a.Used(), Align)
	}
}

func TestOverflowIsRecoverable(t *testing.T) {
	a := New(16)
	if _, err := a.Alloc(8); err != nil {
		t.Fatal(err)
	}
	before := a.Used()
	if _, err := a.Alloc(1024); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if a.Used() != before {
		t.Fatal("a failed allocation must not disturb prior allocations")
	}
}

func TestMarkAndResetTo(t *testing.T) {
	a := New(1024)
	if _, err := a.Alloc(64); err != nil {
		t.Fatal(err)
	}
	mark := a.Mark()
	if _, err := a.Alloc(128); err != nil {
		t.Fatal(err)
	}
	a.ResetTo(mark)
	if a.Used() != mark {
		t.Fatalf("Used() = %d, want %d after ResetTo", a.Used(), mark)
	}
}

func TestResetZeroesOffset(t *testing.T) {
	a := New(1024)
	if _, err := a.Alloc(512); err != nil {
		t.Fatal(err)
	}
	a.Reset()
	if a.Used() != 0 {
		t.Fatalf("Used() = %d after Reset, want 0", a.Used())
	}
}

func TestAllocFloat32sRoundTrips(t *testing.T) {
	a := New(1024)
	fs, err := a.AllocFloat32s(4)
	if err != nil {
		t.Fatal(err)
	}
	for i := range fs {
		fs[i] = float32(i) * 1.5
	}
	for i, v := range fs {
		if v != float32(i)*1.5 {
			t.Errorf("fs[%d] = %v, want %v", i, v, float32(i)*1.5)
		}
	}
}

func TestOnlyBumpPointerIncreasesWithinLifetime(t *testing.T) {
	a := New(256)
	prev := a.Used()
	for i := 0; i < 5; i++ {
		if _, err := a.Alloc(8); err != nil {
			t.Fatal(err)
		}
		if a.Used() < prev {
			t.Fatal("bump offset must never decrease except via ResetTo/Reset")
		}
		prev = a.Used()
	}
}
