// Package sprite implements the sprite table and AABB collision
// backing the sprite command class (spec.md §3/§6, 0x30-0x36). The
// compositor itself is a trivial filled-rect blit onto a
// *graphics.FrameBuffer — the real bitmap/blitting math is the
// external collaborator spec.md §1 scopes out.
package sprite

import (
	"errors"

	"github.com/sprite-one/coprocessor/pkg/graphics"
)

// MaxSprites bounds the sprite table, mirroring the kind of small
// fixed table a microcontroller build would use instead of a growable
// map.
const MaxSprites = 32

var (
	// ErrNotFound is returned for operations on an undefined sprite ID.
	ErrNotFound = errors.New("sprite: not found")
	// ErrTableFull is returned when Define is called with no free slots.
	ErrTableFull = errors.New("sprite: table full")
)

// Sprite is one entry in the sprite table: position, size, visibility,
// and a fill color standing in for a real bitmap.
type Sprite struct {
	ID      uint8
	X, Y    int
	W, H    int
	Color   byte
	Visible bool
	defined bool
}

// Table owns up to MaxSprites sprites, keyed by ID.
type Table struct {
	sprites [MaxSprites]Sprite
}

// New creates an empty sprite table.
func New() *Table {
	return &Table{}
}

func (t *Table) slot(id uint8) *Sprite {
	idx := int(id) % MaxSprites
	s := &t.sprites[idx]
	if s.defined && s.ID == id {
		return s
	}
	return nil
}

// Define creates or replaces a sprite at id with the given size and
// fill color; it starts hidden at (0,0).
func (t *Table) Define(id uint8, w, h int, color byte) error {
	idx := int(id) % MaxSprites
	s := &t.sprites[idx]
	if s.defined && s.ID != id {
		return ErrTableFull
	}
	*s = Sprite{ID: id, W: w, H: h, Color: color, defined: true}
	return nil
}

// Move repositions a previously defined sprite.
func (t *Table) Move(id uint8, x, y int) error {
	s := t.slot(id)
	if s == nil {
		return ErrNotFound
	}
	s.X, s.Y = x, y
	return nil
}

// Show makes a sprite visible to Compose.
func (t *Table) Show(id uint8) error {
	s := t.slot(id)
	if s == nil {
		return ErrNotFound
	}
	s.Visible = true
	return nil
}

// Hide makes a sprite invisible to Compose.
func (t *Table) Hide(id uint8) error {
	s := t.slot(id)
	if s == nil {
		return ErrNotFound
	}
	s.Visible = false
	return nil
}

// Delete removes a sprite from the table entirely.
func (t *Table) Delete(id uint8) error {
	s := t.slot(id)
	if s == nil {
		return ErrNotFound
	}
	*s = Sprite{}
	return nil
}

// Get returns a copy of the sprite state for id.
func (t *Table) Get(id uint8) (Sprite, error) {
	s := t.slot(id)
	if s == nil {
		return Sprite{}, ErrNotFound
	}
	return *s, nil
}

// Collide reports whether two sprites' axis-aligned bounding boxes
// overlap. Both must be defined; neither needs to be visible.
func (t *Table) Collide(a, b uint8) (bool, error) {
	sa := t.slot(a)
	sb := t.slot(b)
	if sa == nil || sb == nil {
		return false, ErrNotFound
	}
	return aabbOverlap(*sa, *sb), nil
}

func aabbOverlap(a, b Sprite) bool {
	if a.X >= b.X+b.W || b.X >= a.X+a.W {
		return false
	}
	if a.Y >= b.Y+b.H || b.Y >= a.Y+a.H {
		return false
	}
	return true
}

// Compose blits every visible sprite onto fb as a filled rectangle, in
// table order.
func (t *Table) Compose(fb *graphics.FrameBuffer) {
	for i := range t.sprites {
		s := &t.sprites[i]
		if !s.defined || !s.Visible {
			continue
		}
		_ = fb.Rect(s.X, s.Y, s.W, s.H, s.Color)
	}
}
