package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestError_Message(t *testing.T) {
	err := &Error{
		Phase:  PhaseWrap,
		Kind:   KindDoubleWrap,
		Type:   "Texture",
		Detail: "cell already has a wrapper",
	}

	msg := err.Error()
	if !strings.Contains(msg, "[wrap]") {
		t.Fatalf("missing phase in %q", msg)
	}
	if !strings.Contains(msg, "double_wrap") {
		t.Fatalf("missing kind in %q", msg)
	}
	if !strings.Contains(msg, "Texture") {
		t.Fatalf("missing type in %q", msg)
	}
}

func TestError_Path(t *testing.T) {
	err := New(PhaseTrace, KindInvalidHandle).
		Path("parent", "child").
		Detail("dangling edge").
		Build()

	msg := err.Error()
	if !strings.Contains(msg, "at parent.child") {
		t.Fatalf("missing path in %q", msg)
	}
}

func TestError_Is(t *testing.T) {
	err := DoubleWrap("Buffer")

	if !stderrors.Is(err, &Error{Phase: PhaseWrap, Kind: KindDoubleWrap}) {
		t.Fatal("Is should match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseRealm, Kind: KindDoubleWrap}) {
		t.Fatal("Is should not match different phase")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(PhaseRealm, KindTornDown, cause, "teardown race")

	if !stderrors.Is(err, cause) {
		t.Fatal("wrapped cause should be found by errors.Is")
	}
	if !strings.Contains(err.Error(), "caused by: boom") {
		t.Fatalf("cause missing from %q", err.Error())
	}
}

func TestBuilder(t *testing.T) {
	cause := stderrors.New("inner")
	err := New(PhaseAlloc, KindAllocation).
		Type("Sampler").
		Value(42).
		Cause(cause).
		Detail("wanted %d bytes", 128).
		Build()

	if err.Phase != PhaseAlloc || err.Kind != KindAllocation {
		t.Fatal("builder lost phase/kind")
	}
	if err.Value != 42 {
		t.Fatal("builder lost value")
	}
	if err.Detail != "wanted 128 bytes" {
		t.Fatalf("unexpected detail %q", err.Detail)
	}
	if err.Unwrap() != cause {
		t.Fatal("builder lost cause")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{DoubleWrap("T"), PhaseWrap, KindDoubleWrap},
		{TornDown("wrap"), PhaseRealm, KindTornDown},
		{AllocationFailed(64, 32), PhaseAlloc, KindAllocation},
		{InvalidHandle("released"), PhaseRuntime, KindInvalidHandle},
		{Reentrant("collect"), PhaseCollect, KindReentrant},
		{NotFound(PhaseRealm, "descriptor", "Texture"), PhaseRealm, KindNotFound},
		{InvalidInput(PhaseWrap, "nil ref"), PhaseWrap, KindInvalidInput},
	}

	for _, tt := range tests {
		if tt.err.Phase != tt.phase {
			t.Fatalf("%v: phase %q, want %q", tt.err, tt.err.Phase, tt.phase)
		}
		if tt.err.Kind != tt.kind {
			t.Fatalf("%v: kind %q, want %q", tt.err, tt.err.Kind, tt.kind)
		}
		if tt.err.Error() == "" {
			t.Fatal("empty message")
		}
	}
}
