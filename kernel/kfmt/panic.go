package kfmt

import (
	"os"

	"extmem/kernel"
)

var (
	// haltFn is mocked by tests. The default implementation terminates the
	// process.
	haltFn = haltProcess

	// exitFn is mocked by tests that exercise haltProcess.
	exitFn = os.Exit
)

// Panic outputs the supplied error (if not nil) to the active output sink and
// halts. Calls to Panic are not expected to return; they only do so when
// haltFn has been replaced.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		err = &kernel.Error{Module: "rt", Message: t, Kind: kernel.KindFatal}
	case error:
		err = &kernel.Error{Module: "rt", Message: t.Error(), Kind: kernel.KindFatal}
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** panic: system halted ***")
	Printf("\n-----------------------------------\n")

	haltFn()
}

// haltProcess makes sure that buffered output reaches stderr when no sink
// was ever attached and then terminates the process.
func haltProcess() {
	if !hasOutputSink() {
		SetOutputSink(os.Stderr)
	}
	exitFn(2)
}

func hasOutputSink() bool {
	sinkLock.Acquire()
	defer sinkLock.Release()
	return outputSink != nil
}
