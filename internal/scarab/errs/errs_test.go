package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_DirectError(t *testing.T) {
	err := New(KindNotFound, "no such session")
	if got := KindOf(err); got != KindNotFound {
		t.Errorf("KindOf() = %v, want %v", got, KindNotFound)
	}
}

func TestKindOf_WrappedError(t *testing.T) {
	base := New(KindIO, "pty write")
	wrapped := fmt.Errorf("forward input: %w", base)
	if got := KindOf(wrapped); got != KindIO {
		t.Errorf("KindOf(wrapped) = %v, want %v", got, KindIO)
	}
}

func TestKindOf_NotAScarabError(t *testing.T) {
	if got := KindOf(errors.New("plain error")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want %v", got, KindUnknown)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	se := Wrap(KindChildSpawn, "spawn failed", cause)
	if !errors.Is(se, cause) {
		t.Error("expected errors.Is to find wrapped cause")
	}
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		KindProtocol:   "Protocol",
		KindNotFound:   "NotFound",
		KindConflict:   "Conflict",
		KindChildSpawn: "ChildSpawn",
		KindIO:         "Io",
		KindTimeout:    "Timeout",
		KindInvalid:    "Invalid",
		KindClosed:     "Closed",
		KindOverflow:   "Overflow",
		KindUnknown:    "Unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
