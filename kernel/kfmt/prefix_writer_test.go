package kfmt

import (
	"bytes"
	"errors"
	"testing"
)

func TestPrefixWriter(t *testing.T) {
	specs := []struct {
		input string
		exp   string
	}{
		{
			"",
			"",
		},
		{
			"\n",
			"[vmm] \n",
		},
		{
			"no line break anywhere",
			"[vmm] no line break anywhere",
		},
		{
			"line feed at the end\n",
			"[vmm] line feed at the end\n",
		},
		{
			"\nregion 0\nregion 1\nblock 0\ndone",
			"[vmm] \n[vmm] region 0\n[vmm] region 1\n[vmm] block 0\n[vmm] done",
		},
	}

	var buf bytes.Buffer
	for specIndex, spec := range specs {
		buf.Reset()
		w := NewModuleWriter(&buf, "vmm")

		wrote, err := w.Write([]byte(spec.input))
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
		}

		if expLen := len(spec.input); expLen != wrote {
			t.Errorf("[spec %d] expected writer to write %d bytes; wrote %d", specIndex, expLen, wrote)
		}

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected output:\n%q\ngot:\n%q", specIndex, spec.exp, got)
		}
	}
}

func TestPrefixWriterSplitWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewModuleWriter(&buf, "himem")

	for _, chunk := range []string{"first ", "line\nsecond", " line\n"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
	}

	exp := "[himem] first line\n[himem] second line\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}
}

func TestPrefixWriterErrors(t *testing.T) {
	specs := []string{
		"no line break anywhere",
		"\nregion 0\nregion 1",
	}

	expErr := errors.New("write failed")
	for specIndex, spec := range specs {
		w := PrefixWriter{
			Sink:   writerThatAlwaysErrors{expErr},
			Prefix: []byte("prefix: "),
		}
		_, err := w.Write([]byte(spec))
		if err != expErr {
			t.Errorf("[spec %d] expected error: %v; got %v", specIndex, expErr, err)
		}
	}
}

type writerThatAlwaysErrors struct {
	err error
}

func (w writerThatAlwaysErrors) Write(_ []byte) (int, error) {
	return 0, w.err
}
