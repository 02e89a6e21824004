package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(NotFound, "product not found")
	wrapped := fmt.Errorf("get product: %w", base)

	if got := KindOf(wrapped); got != NotFound {
		t.Fatalf("KindOf: got %s want %s", got, NotFound)
	}
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatal("expected errors.Is to match the NotFound sentinel")
	}
	if errors.Is(wrapped, ErrUnauthorized) {
		t.Fatal("NotFound must not match Unauthorized")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != Internal {
		t.Fatalf("KindOf: got %s want internal", got)
	}
}

func TestParseKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{Internal, Unauthorized, Forbidden, NotFound, Validation, Conflict} {
		if got := ParseKind(k.String()); got != k {
			t.Fatalf("ParseKind(%q): got %s", k.String(), got)
		}
	}
	if got := ParseKind("weird"); got != Internal {
		t.Fatalf("unknown code: got %s", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(Conflict, cause, "cart item exists")
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if err.Error() != "cart item exists: duplicate key" {
		t.Fatalf("message: got %q", err.Error())
	}
}

func TestHTTPStatusRoundTrip(t *testing.T) {
	for _, k := range []Kind{Internal, Unauthorized, Forbidden, NotFound, Validation, Conflict} {
		if got := FromStatus(HTTPStatus(k)); got != k {
			t.Fatalf("FromStatus(HTTPStatus(%s)): got %s", k, got)
		}
	}
}
