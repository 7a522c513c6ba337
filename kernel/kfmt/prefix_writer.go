package kfmt

import (
	"bytes"
	"io"
)

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line. It is used by the diagnostic dumps so
// that every line of a multi-line table carries the module tag.
type PrefixWriter struct {
	// A writer where all writes get sent to. A nil Sink selects the active
	// output sink at write time.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	midLine bool
}

// NewModuleWriter returns a PrefixWriter that tags each line written to sink
// with "[module] ".
func NewModuleWriter(sink io.Writer, module string) *PrefixWriter {
	return &PrefixWriter{Sink: sink, Prefix: []byte("[" + module + "] ")}
}

// Write writes len(p) bytes from p to the underlying data stream and returns
// back the number of bytes written. The injected prefix is not included in the
// number of written bytes returned by this method.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	sink := w.Sink
	if sink == nil {
		sink = GetOutputSink()
	}

	var written int
	for len(p) != 0 {
		if !w.midLine {
			if _, err := sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		line := p
		if eol := bytes.IndexByte(p, '\n'); eol != -1 {
			line = p[:eol+1]
			w.midLine = false
		}

		n, err := sink.Write(line)
		written += n
		if err != nil {
			return written, err
		}
		p = p[len(line):]
	}

	return written, nil
}
