package bvlerr

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestKindStringNames(t *testing.T) {
	cases := map[Kind]string{
		IO:         "IO",
		Format:     "Format",
		Protocol:   "Protocol",
		Resource:   "Resource",
		Transport:  "Transport",
		Corruption: "Corruption",
		Kind(999):  "Unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(IO, "op", nil); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}
}

func TestWrapPreservesOpKindAndUnderlyingError(t *testing.T) {
	underlying := io.ErrUnexpectedEOF
	err := Wrap(Transport, "rclient.Connect", underlying)
	if err == nil {
		t.Fatalf("expected a non-nil error")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected errors.Is to find the wrapped sentinel error")
	}

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected errors.As to find *Error")
	}
	if e.Kind != Transport || e.Op != "rclient.Connect" {
		t.Fatalf("unexpected fields: %+v", e)
	}
}

func TestIsMatchesWrappedKind(t *testing.T) {
	err := Wrap(Corruption, "metadata.Decode", errors.New("bad checksum"))
	if !Is(err, Corruption) {
		t.Fatalf("expected Is(err, Corruption) to be true")
	}
	if Is(err, IO) {
		t.Fatalf("expected Is(err, IO) to be false")
	}
}

func TestIsFalseForPlainError(t *testing.T) {
	if Is(errors.New("plain"), IO) {
		t.Fatalf("expected Is to be false for an error with no *Error in its chain")
	}
}

func TestErrorStringIncludesOpAndKind(t *testing.T) {
	err := Wrap(Format, "brickfile.Open", errors.New("bad magic"))
	msg := err.Error()
	if !strings.Contains(msg, "brickfile.Open") || !strings.Contains(msg, "Format") || !strings.Contains(msg, "bad magic") {
		t.Fatalf("Error() = %q, missing expected components", msg)
	}
}
