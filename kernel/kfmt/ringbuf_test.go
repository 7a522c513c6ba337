package kfmt

import (
	"bytes"
	"strings"
	"testing"
)

func TestRingBuffer(t *testing.T) {
	expStr := "[vmm] region 0: [0x10000000 - 0x10100000) caps: RW targets: ram"

	t.Run("write/replay", func(t *testing.T) {
		var rb ringBuffer
		n, err := rb.Write([]byte(expStr))
		if err != nil {
			t.Fatal(err)
		}

		if n != len(expStr) {
			t.Fatalf("expected to write %d bytes; wrote %d", len(expStr), n)
		}

		if got := drain(t, &rb); got != expStr {
			t.Fatalf("expected to read %q; got %q", expStr, got)
		}

		if rb.Len() != 0 {
			t.Fatalf("expected replay to empty the buffer; %d bytes left", rb.Len())
		}
	})

	t.Run("wrap around", func(t *testing.T) {
		var rb ringBuffer
		rb.start = ringBufferSize - 2
		_, _ = rb.Write([]byte(expStr))

		if got := drain(t, &rb); got != expStr {
			t.Fatalf("expected to read %q; got %q", expStr, got)
		}
	})

	t.Run("overflow drops partial line", func(t *testing.T) {
		var rb ringBuffer
		line := "[himem] window block 0: unmapped\n"
		for rb.Len() < ringBufferSize {
			_, _ = rb.Write([]byte(line))
		}
		_, _ = rb.Write([]byte("[vmm] last\n"))

		if rb.Len() != ringBufferSize {
			t.Fatalf("expected buffer to hold %d bytes; got %d", ringBufferSize, rb.Len())
		}

		got := drain(t, &rb)
		if !strings.HasPrefix(got, "[himem]") {
			t.Fatalf("expected replay to start at a line boundary; got %q", got[:20])
		}

		if !strings.HasSuffix(got, "[vmm] last\n") {
			t.Fatalf("expected replay to end with the newest line; got %q", got[len(got)-20:])
		}
	})
}

func TestPrintfBuffersUntilSinkAttached(t *testing.T) {
	defer SetOutputSink(nil)

	SetOutputSink(nil)
	earlyPrintBuffer.Reset()

	Printf("[vmm] %d regions\n", 2)
	Printf("[vmm] page size: 0x%x\n", 0x10000)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	exp := "[vmm] 2 regions\n[vmm] page size: 0x10000\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected replayed output:\n%q\ngot:\n%q", exp, got)
	}

	Printf("after")
	if got := buf.String(); got != exp+"after" {
		t.Fatalf("expected output after attach to reach the sink; got %q", got)
	}

	if GetOutputSink() != &buf {
		t.Fatal("expected GetOutputSink to return the attached sink")
	}
}

func TestFprintfNilWriter(t *testing.T) {
	defer SetOutputSink(nil)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	Fprintf(nil, "%s:%d", "himem", 8)
	if exp, got := "himem:8", buf.String(); got != exp {
		t.Fatalf("expected %q; got %q", exp, got)
	}
}

func drain(t *testing.T, rb *ringBuffer) string {
	t.Helper()

	var out bytes.Buffer
	if _, err := rb.WriteTo(&out); err != nil {
		t.Fatal(err)
	}
	return out.String()
}
