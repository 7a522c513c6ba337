package kernel

import "testing"

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "foo",
		Message: "error message",
	}

	if err.Error() != err.Message {
		t.Fatalf("expected to err.Error() to return %q; got %q", err.Message, err.Error())
	}
}

func TestKernelErrorFatal(t *testing.T) {
	specs := []struct {
		err *Error
		exp bool
	}{
		{nil, false},
		{&Error{Kind: KindInvalidArg}, false},
		{&Error{Kind: KindConflict}, false},
		{&Error{Kind: KindFatal}, true},
	}

	for specIndex, spec := range specs {
		if got := spec.err.Fatal(); got != spec.exp {
			t.Errorf("[spec %d] expected Fatal() to return %t; got %t", specIndex, spec.exp, got)
		}
	}
}

func TestErrorKindString(t *testing.T) {
	specs := []struct {
		kind ErrorKind
		exp  string
	}{
		{KindInvalidArg, "invalid argument"},
		{KindNoMem, "no memory"},
		{KindNotFound, "not found"},
		{KindConflict, "conflict"},
		{KindInvalidState, "invalid state"},
		{KindFatal, "fatal"},
		{ErrorKind(255), "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.kind.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}
