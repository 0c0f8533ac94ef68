package pyramidtiff

import (
	"image"

	"github.com/gammazero/deque"
)

// verticalCache is the right-edge carry (§4.3): expected hits are few (only
// the tiles of one source-tile column), so a linear list backed by a ring
// buffer preserves memory locality better than a hashmap would for this
// access pattern.
type verticalCache struct {
	entries deque.Deque[stripeEntry]
}

type stripeEntry struct {
	x, y int
	tile image.Image
}

func (c *verticalCache) tryTake(x, y int) (image.Image, bool) {
	for i := 0; i < c.entries.Len(); i++ {
		e := c.entries.At(i)
		if e.x == x && e.y == y {
			c.entries.Remove(i)
			return e.tile, true
		}
	}
	return nil, false
}

func (c *verticalCache) insert(x, y int, tile image.Image) {
	c.remove(x, y)
	c.entries.PushBack(stripeEntry{x: x, y: y, tile: tile})
}

func (c *verticalCache) remove(x, y int) {
	for i := 0; i < c.entries.Len(); i++ {
		if e := c.entries.At(i); e.x == x && e.y == y {
			c.entries.Remove(i)
			return
		}
	}
}

func (c *verticalCache) clear() {
	c.entries.Clear()
}

// horizontalCache is the bottom-edge carry (§4.3), backed by a hashmap keyed
// by a packed (x<<32)|y. Like the vertical cache it lasts one rotation:
// entries not taken by the next output tile processed are cleared by Rotate,
// so a carry reaches the output tile below only when that tile is the next
// one processed.
type horizontalCache struct {
	entries map[uint64]image.Image
}

func packKey(x, y int) uint64 {
	return uint64(uint32(x))<<32 | uint64(uint32(y))
}

func (c *horizontalCache) tryTake(x, y int) (image.Image, bool) {
	if c.entries == nil {
		return nil, false
	}
	k := packKey(x, y)
	t, ok := c.entries[k]
	if ok {
		delete(c.entries, k)
	}
	return t, ok
}

func (c *horizontalCache) insert(x, y int, tile image.Image) {
	if c.entries == nil {
		c.entries = make(map[uint64]image.Image)
	}
	c.entries[packKey(x, y)] = tile
}

func (c *horizontalCache) remove(x, y int) {
	if c.entries == nil {
		return
	}
	delete(c.entries, packKey(x, y))
}

func (c *horizontalCache) clear() {
	c.entries = make(map[uint64]image.Image)
}

// stripePair is one generation of the vertical/horizontal cache pair.
type stripePair struct {
	vertical   verticalCache
	horizontal horizontalCache
}

func (p *stripePair) clear() {
	p.vertical.clear()
	p.horizontal.clear()
}

// stripeCaches implements the double-buffered pair rotation of §4.3: reads
// come from current, carries are deposited into backup; after an output
// tile is fully processed, Rotate swaps the two and clears the new backup,
// disposing any residual entries that turned out not to be reused.
type stripeCaches struct {
	current, backup *stripePair
}

func newStripeCaches() *stripeCaches {
	return &stripeCaches{current: &stripePair{}, backup: &stripePair{}}
}

// Rotate swaps current/backup and clears what is now backup (formerly
// current, now stale).
func (s *stripeCaches) Rotate() {
	s.current, s.backup = s.backup, s.current
	s.backup.clear()
}
