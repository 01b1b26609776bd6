package screening

// Cursor walks the pending queue of the active review. It is either
// positioned at an index in [0, Len()) or Empty. No method panics, including
// in the Empty state.
//
// A Cursor is not safe for concurrent use; the Store guards it.
type Cursor struct {
	queue []string
	index int
}

// NewCursor returns an Empty cursor.
func NewCursor() *Cursor {
	return &Cursor{index: -1}
}

// Reset replaces the queue and moves to the head.
func (c *Cursor) Reset(queue []string) {
	c.queue = append(c.queue[:0], queue...)
	if len(c.queue) == 0 {
		c.index = -1
		return
	}
	c.index = 0
}

// Rebuild replaces the queue and keeps the current index, clamped to the new
// tail. An Empty cursor re-enters at the head when the queue gains items.
func (c *Cursor) Rebuild(queue []string) {
	c.queue = append(c.queue[:0], queue...)
	switch {
	case len(c.queue) == 0:
		c.index = -1
	case c.index < 0:
		c.index = 0
	case c.index > len(c.queue)-1:
		c.index = len(c.queue) - 1
	}
}

// Clear empties the cursor.
func (c *Cursor) Clear() {
	c.queue = c.queue[:0]
	c.index = -1
}

// Current returns the study id under the cursor.
func (c *Cursor) Current() (string, bool) {
	if c.index < 0 {
		return "", false
	}
	return c.queue[c.index], true
}

// Next advances one position; it is a no-op at the tail.
func (c *Cursor) Next() {
	if c.index >= 0 && c.index < len(c.queue)-1 {
		c.index++
	}
}

// Previous moves back one position; it is a no-op at the head.
func (c *Cursor) Previous() {
	if c.index > 0 {
		c.index--
	}
}

// Len is the number of pending studies.
func (c *Cursor) Len() int { return len(c.queue) }

// Index is the current position, or -1 when Empty.
func (c *Cursor) Index() int { return c.index }

// IsEmpty reports whether no pending study remains.
func (c *Cursor) IsEmpty() bool { return c.index < 0 }

// Queue returns a copy of the pending study ids.
func (c *Cursor) Queue() []string {
	return append([]string(nil), c.queue...)
}
