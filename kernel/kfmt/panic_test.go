package kfmt

import (
	"bytes"
	"errors"
	"testing"

	"extmem/kernel"
)

func TestPanic(t *testing.T) {
	defer func() {
		haltFn = haltProcess
		SetOutputSink(nil)
	}()

	var haltCalled bool
	haltFn = func() {
		haltCalled = true
	}

	specs := []struct {
		name string
		arg  interface{}
		exp  string
	}{
		{
			"with *kernel.Error",
			&kernel.Error{Module: "vmm", Message: "panic test"},
			"\n-----------------------------------\n[vmm] unrecoverable error: panic test\n*** panic: system halted ***\n-----------------------------------\n",
		},
		{
			"with error",
			errors.New("go error"),
			"\n-----------------------------------\n[rt] unrecoverable error: go error\n*** panic: system halted ***\n-----------------------------------\n",
		},
		{
			"with string",
			"string error",
			"\n-----------------------------------\n[rt] unrecoverable error: string error\n*** panic: system halted ***\n-----------------------------------\n",
		},
		{
			"without error",
			nil,
			"\n-----------------------------------\n*** panic: system halted ***\n-----------------------------------\n",
		},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			haltCalled = false
			var buf bytes.Buffer
			SetOutputSink(&buf)

			Panic(spec.arg)

			if got := buf.String(); got != spec.exp {
				t.Fatalf("expected to get:\n%q\ngot:\n%q", spec.exp, got)
			}

			if !haltCalled {
				t.Fatal("expected haltFn() to be called by Panic")
			}
		})
	}
}

func TestHaltProcess(t *testing.T) {
	defer func(origExitFn func(int)) {
		exitFn = origExitFn
		SetOutputSink(nil)
	}(exitFn)

	var exitCode = -1
	exitFn = func(code int) {
		exitCode = code
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)
	haltProcess()

	if exp := 2; exitCode != exp {
		t.Fatalf("expected exit code %d; got %d", exp, exitCode)
	}
}
