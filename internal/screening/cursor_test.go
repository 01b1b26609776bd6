package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursor_Empty(t *testing.T) {
	c := NewCursor()

	assert.True(t, c.IsEmpty())
	assert.Equal(t, -1, c.Index())
	assert.Equal(t, 0, c.Len())

	assert.NotPanics(t, func() {
		c.Next()
		c.Previous()
	})
	_, ok := c.Current()
	assert.False(t, ok)
	assert.True(t, c.IsEmpty())
}

func TestCursor_Navigation(t *testing.T) {
	c := NewCursor()
	c.Reset([]string{"a", "b", "c"})

	id, ok := c.Current()
	assert.True(t, ok)
	assert.Equal(t, "a", id)

	c.Previous()
	assert.Equal(t, 0, c.Index(), "previous at head is a no-op")

	c.Next()
	c.Next()
	c.Next()
	assert.Equal(t, 2, c.Index(), "next at tail is a no-op")

	c.Previous()
	id, _ = c.Current()
	assert.Equal(t, "b", id)
}

func TestCursor_Rebuild(t *testing.T) {
	tests := []struct {
		name      string
		start     []string
		moves     int
		rebuilt   []string
		wantIndex int
		wantID    string
	}{
		{"decided item shrinks queue under index", []string{"a", "b", "c"}, 1, []string{"a", "c"}, 1, "c"},
		{"clamps to new tail", []string{"a", "b", "c"}, 2, []string{"a", "b"}, 1, "b"},
		{"last item decided becomes empty", []string{"a"}, 0, nil, -1, ""},
		{"empty re-enters at head", nil, 0, []string{"x", "y"}, 0, "x"},
		{"appended items keep position", []string{"a", "b"}, 1, []string{"a", "b", "c"}, 1, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor()
			c.Reset(tt.start)
			for i := 0; i < tt.moves; i++ {
				c.Next()
			}

			c.Rebuild(tt.rebuilt)

			assert.Equal(t, tt.wantIndex, c.Index())
			id, ok := c.Current()
			assert.Equal(t, tt.wantID != "", ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestCursor_ResetAndClear(t *testing.T) {
	c := NewCursor()
	c.Reset([]string{"a", "b"})
	c.Next()

	c.Reset([]string{"c", "d"})
	assert.Equal(t, 0, c.Index())

	queue := c.Queue()
	queue[0] = "mutated"
	id, _ := c.Current()
	assert.Equal(t, "c", id, "Queue returns a copy")

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 0, c.Len())
}
