package supervisor

import (
	"bytes"
	"sync"
)

// StderrCollector accumulates raw diagnostic output under a lock. No line
// framing is imposed; partial lines are preserved verbatim. Reads during
// active capture return a prefix of the final text.
type StderrCollector struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write appends a chunk to the buffer. Implements io.Writer.
func (c *StderrCollector) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// String returns a snapshot of the captured text.
func (c *StderrCollector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Len returns the number of bytes captured so far.
func (c *StderrCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}
