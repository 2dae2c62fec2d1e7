package errs

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

var errKind = errors.New("record store unavailable")

func TestMarkKeepsKindAndCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := Wrap(Mark(errKind, cause, "update lot"), "advance lot")

	if !errors.Is(err, errKind) || !errors.Is(err, cause) {
		t.Fatalf("Mark() error = %v, want both kind and cause in chain", err)
	}
	var se *StackError
	if !errors.As(err, &se) || len(se.Stack()) == 0 {
		t.Fatal("Mark() did not capture a stack")
	}
	if Mark(errKind, nil, "noop") != nil {
		t.Fatal("Mark(nil) != nil")
	}
}

func TestErrorChainStringsWalksJoinedCauses(t *testing.T) {
	cause := errors.New("database is locked")
	chain := ErrorChainStrings(Wrap(Mark(errKind, cause, "update lot"), "advance lot"))

	last := chain[len(chain)-1]
	if last != "database is locked" {
		t.Fatalf("chain tail = %q, want cause; chain = %v", last, chain)
	}
	joined := strings.Join(chain, "|")
	if !strings.Contains(joined, "|record store unavailable|") {
		t.Fatalf("chain = %v, want kind listed", chain)
	}
}

func TestLoggableIncludesStack(t *testing.T) {
	value := Loggable(WithStack(errors.New("boom"))).LogValue()
	if value.Kind() != slog.KindGroup {
		t.Fatalf("LogValue() kind = %v", value.Kind())
	}
	keys := map[string]bool{}
	for _, attr := range value.Group() {
		keys[attr.Key] = true
	}
	for _, want := range []string{"message", "chain", "stack"} {
		if !keys[want] {
			t.Fatalf("LogValue() missing %q", want)
		}
	}
}
