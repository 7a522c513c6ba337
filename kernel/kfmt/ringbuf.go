package kfmt

import "io"

// ringBufferSize is the capacity of the buffer holding Printf output produced
// before a sink is attached. It must be a power of 2.
const ringBufferSize = 4096

// ringBuffer keeps the most recent ringBufferSize bytes written to it. When
// older output has been overwritten the replay starts at the next complete
// line so the sink never sees a line without its module prefix.
type ringBuffer struct {
	buffer [ringBufferSize]byte

	// start indexes the oldest buffered byte; n counts buffered bytes.
	start, n int

	truncated bool
}

// Write appends p to the buffer, overwriting the oldest bytes once full. It
// never fails.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[(rb.start+rb.n)&(ringBufferSize-1)] = b
		if rb.n < ringBufferSize {
			rb.n++
			continue
		}

		rb.start = (rb.start + 1) & (ringBufferSize - 1)
		rb.truncated = true
	}

	return len(p), nil
}

// Len returns the number of buffered bytes.
func (rb *ringBuffer) Len() int {
	return rb.n
}

// Reset discards the buffered output.
func (rb *ringBuffer) Reset() {
	rb.start, rb.n, rb.truncated = 0, 0, false
}

// WriteTo drains the buffer into w using at most two writes.
func (rb *ringBuffer) WriteTo(w io.Writer) (int64, error) {
	start, n := rb.start, rb.n
	if rb.truncated {
		for i := 0; i < n; i++ {
			if rb.buffer[(start+i)&(ringBufferSize-1)] == '\n' {
				start, n = (start+i+1)&(ringBufferSize-1), n-i-1
				break
			}
		}
	}
	rb.Reset()

	var written int64
	for n > 0 {
		end := start + n
		if end > ringBufferSize {
			end = ringBufferSize
		}

		wrote, err := w.Write(rb.buffer[start:end])
		written += int64(wrote)
		if err != nil {
			return written, err
		}

		n -= end - start
		start = 0
	}

	return written, nil
}
