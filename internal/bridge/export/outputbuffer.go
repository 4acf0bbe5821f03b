package export

import (
	"bytes"
)

// OutputBuffer accumulates command output in memory, keeping at most
// limit bytes. When the limit is exceeded the oldest output is
// discarded, so a chatty build cannot grow the buffer without bound
// while the tail that explains a failure is preserved.
type OutputBuffer struct {
	buf   bytes.Buffer
	limit int
}

// NewOutputBuffer constructs an OutputBuffer retaining up to limit bytes.
func NewOutputBuffer(limit int) *OutputBuffer {
	return &OutputBuffer{limit: limit}
}

// Write implements io.Writer.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	n, err := b.buf.Write(p)
	if b.limit > 0 && b.buf.Len() > b.limit {
		excess := b.buf.Len() - b.limit
		b.buf.Next(excess)
	}
	return n, err
}

// String returns the retained output as a string.
func (b *OutputBuffer) String() string {
	return b.buf.String()
}

// Len returns the number of retained bytes.
func (b *OutputBuffer) Len() int {
	return b.buf.Len()
}
