// Package kfmt provides the logging primitives used by the memory mapping
// layer. Output produced before a sink is attached is captured by a ring
// buffer and replayed once SetOutputSink is called.
package kfmt

import (
	"fmt"
	"io"

	"extmem/kernel/sync"
)

var (
	// earlyPrintBuffer is a ring buffer that stores Printf output before an
	// output sink is attached.
	earlyPrintBuffer ringBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer

	// sinkLock serializes writes so that lines emitted by different cores
	// do not interleave.
	sinkLock sync.Spinlock
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	sinkLock.Acquire()
	defer sinkLock.Release()

	outputSink = w
	if w != nil {
		_, _ = earlyPrintBuffer.WriteTo(w)
	}
}

// GetOutputSink returns the default target for calls to Printf. When no sink
// has been attached yet a writer that feeds the early ring buffer is returned.
func GetOutputSink() io.Writer {
	sinkLock.Acquire()
	defer sinkLock.Release()

	if outputSink == nil {
		return earlyWriter{}
	}
	return outputSink
}

// earlyWriter forwards writes to the early ring buffer, or to the output sink
// if one got attached in the meantime.
type earlyWriter struct{}

func (earlyWriter) Write(p []byte) (int, error) {
	sinkLock.Acquire()
	defer sinkLock.Release()

	if outputSink == nil {
		return earlyPrintBuffer.Write(p)
	}
	return outputSink.Write(p)
}

// Printf formats according to format and writes the result to the active
// output sink. If no sink is attached, the output is buffered into the early
// ring buffer and replayed by the next call to SetOutputSink.
func Printf(format string, args ...interface{}) {
	sinkLock.Acquire()
	defer sinkLock.Release()

	if outputSink == nil {
		fmt.Fprintf(&earlyPrintBuffer, format, args...)
		return
	}
	fmt.Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer. A nil writer selects the active output sink.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	if w == nil {
		Printf(format, args...)
		return
	}
	fmt.Fprintf(w, format, args...)
}
