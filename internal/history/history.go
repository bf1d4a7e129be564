// Package history implements the linear snapshot timeline backing undo/redo.
package history

// History is an ordered sequence of opaque raster snapshots plus a cursor.
// It is never empty: construction seeds it with a baseline snapshot.
// The timeline is strictly linear — pushing while the cursor sits behind
// the newest entry discards every snapshot after the cursor first.
//
// Snapshots are treated as immutable byte blobs; History never copies or
// inspects them.
type History struct {
	snaps   [][]byte
	current int
	maxSize int
}

// New creates a History seeded with the baseline snapshot. maxSize bounds
// the number of retained snapshots; zero or negative means unbounded.
func New(baseline []byte, maxSize int) *History {
	return &History{
		snaps:   [][]byte{baseline},
		current: 0,
		maxSize: maxSize,
	}
}

// Push appends a snapshot after the cursor and moves the cursor to it.
// Any redo entries beyond the cursor are discarded. When the size bound is
// exceeded the oldest entries are dropped and the cursor shifts accordingly.
func (h *History) Push(snap []byte) {
	if h.current < len(h.snaps)-1 {
		h.snaps = h.snaps[:h.current+1]
	}
	h.snaps = append(h.snaps, snap)
	h.current = len(h.snaps) - 1

	if h.maxSize > 0 && len(h.snaps) > h.maxSize {
		excess := len(h.snaps) - h.maxSize
		h.snaps = h.snaps[excess:]
		h.current -= excess
	}
}

// Undo moves the cursor back one snapshot and returns it.
// Returns nil and false if the cursor is already at the oldest entry.
func (h *History) Undo() ([]byte, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.current--
	return h.snaps[h.current], true
}

// Redo moves the cursor forward one snapshot and returns it.
// Returns nil and false if the cursor is already at the newest entry.
func (h *History) Redo() ([]byte, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.current++
	return h.snaps[h.current], true
}

// CanUndo reports whether a snapshot exists before the cursor.
func (h *History) CanUndo() bool {
	return h.current > 0
}

// CanRedo reports whether a snapshot exists after the cursor.
func (h *History) CanRedo() bool {
	return h.current < len(h.snaps)-1
}

// Current returns the snapshot at the cursor.
func (h *History) Current() []byte {
	return h.snaps[h.current]
}

// Len returns the number of retained snapshots.
func (h *History) Len() int {
	return len(h.snaps)
}

// Index returns the cursor position.
func (h *History) Index() int {
	return h.current
}
