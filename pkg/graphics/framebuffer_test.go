package graphics

import "testing"

func TestClearSetsEveryPixel(t *testing.T) {
	fb := New()
	fb.Clear(1)
	for y := 0; y < Height; y += 7 {
		for x := 0; x < Width; x += 11 {
			v, err := fb.Pixel(x, y)
			if err != nil {
				t.Fatalf("Pixel: %v", err)
			}
			if v != 1 {
				t.Fatalf("Pixel(%d,%d) = %d, want 1 after Clear(1)", x, y, v)
			}
		}
	}
}

func TestSetPixelOutOfBoundsIsError(t *testing.T) {
	fb := New()
	if err := fb.SetPixel(-1, 0, 1); err != ErrOutOfBounds {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if err := fb.SetPixel(Width, 0, 1); err != ErrOutOfBounds {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestRectClipsToFramebuffer(t *testing.T) {
	fb := New()
	if err := fb.Rect(Width-2, Height-2, 10, 10, 1); err != nil {
		t.Fatalf("Rect: %v", err)
	}
	v, _ := fb.Pixel(Width-1, Height-1)
	if v != 1 {
		t.Fatal("expected corner pixel set by clipped rect")
	}
}

func TestFlushClearsDirtyFlag(t *testing.T) {
	fb := New()
	fb.Clear(1)
	if !fb.Dirty() {
		t.Fatal("expected Dirty() true after Clear")
	}
	fb.Flush()
	if fb.Dirty() {
		t.Fatal("expected Dirty() false after Flush")
	}
}

func TestTextAdvancesAndStaysInBounds(t *testing.T) {
	fb := New()
	if err := fb.Text(0, 0, 1, []byte("HI")); err != nil {
		t.Fatalf("Text: %v", err)
	}
	v, _ := fb.Pixel(0, 0)
	if v != 1 {
		t.Fatal("expected first glyph to mark its top-left pixel")
	}
}
