package proc

import "errors"

// ErrLineBufferFull is returned by LineBuffer.Write when the text does not
// fit. Whatever did fit is kept, ending with truncationMarker.
var ErrLineBufferFull = errors.New("line buffer full")

const (
	// DefaultLineCapacity is the default capacity of a LineBuffer.
	DefaultLineCapacity = 128
	// MinLineCapacity is the smallest capacity that holds one character
	// followed by the truncation marker.
	MinLineCapacity = len(truncationMarker) + 1

	truncationMarker = "..."
)

// LineBuffer accumulates the text of one decoded instruction. Its content
// never exceeds its capacity: an overflowing write is cut short and the
// content is terminated by "..." so that its length is exactly the capacity.
type LineBuffer struct {
	cap       int
	buf       []byte
	truncated bool
}

// NewLineBuffer returns a LineBuffer with the given capacity. Capacities
// too small to hold the truncation marker are raised to fit it.
func NewLineBuffer(capacity int) *LineBuffer {
	if capacity < MinLineCapacity {
		capacity = MinLineCapacity
	}
	return &LineBuffer{cap: capacity, buf: make([]byte, 0, capacity)}
}

// Reset empties the buffer.
func (lb *LineBuffer) Reset() {
	lb.buf = lb.buf[:0]
	lb.truncated = false
}

// Write appends p. It fails with ErrLineBufferFull if the buffer is already
// full or if p does not fit, in which case the content is truncated.
func (lb *LineBuffer) Write(p []byte) (int, error) {
	if len(lb.buf)+len(p) <= lb.cap {
		lb.buf = append(lb.buf, p...)
		return len(p), nil
	}
	room := lb.cap - len(lb.buf)
	lb.buf = append(lb.buf, p[:room]...)
	copy(lb.buf[lb.cap-len(truncationMarker):], truncationMarker)
	lb.truncated = true
	return room, ErrLineBufferFull
}

// WriteString is like Write but takes a string.
func (lb *LineBuffer) WriteString(s string) (int, error) {
	return lb.Write([]byte(s))
}

// String returns the accumulated text.
func (lb *LineBuffer) String() string {
	return string(lb.buf)
}

// Len returns the length of the accumulated text.
func (lb *LineBuffer) Len() int { return len(lb.buf) }

// Cap returns the capacity of the buffer.
func (lb *LineBuffer) Cap() int { return lb.cap }

// Truncated reports whether the content ends because of an overflow.
func (lb *LineBuffer) Truncated() bool { return lb.truncated }
