package errors

import (
	"errors"
	"reflect"
	"testing"
)

func TestWrap(t *testing.T) {
	err := errors.New("0")
	err1 := Wrap(err, "1")
	err2 := Wrap(err1, "2")
	err3 := Wrap(err2)

	if got := Root(err1); got != err {
		t.Fatalf("Root(%v)=%v want %v", err1, got, err)
	}

	if got := Root(err2); got != err {
		t.Fatalf("Root(%v)=%v want %v", err2, got, err)
	}

	if err2.Error() != "2: 1: 0" {
		t.Fatalf("err msg = %s want '2: 1: 0'", err2.Error())
	}

	if err3.Error() != "2: 1: 0" {
		t.Fatalf("err msg = %s want '2: 1: 0'", err3.Error())
	}
}

func TestWrapNil(t *testing.T) {
	var err error

	err1 := Wrap(err, "1")
	if err1 != nil {
		t.Fatal("wrapping nil error should yield nil")
	}
}

func TestWrapf(t *testing.T) {
	err := errors.New("0")
	err1 := Wrapf(err, "there are %d errors being wrapped", 1)
	if err1.Error() != "there are 1 errors being wrapped: 0" {
		t.Fatalf("err msg = %s want 'there are 1 errors being wrapped: 0'", err1.Error())
	}
}

func TestWrapMsg(t *testing.T) {
	err := errors.New("rooti")
	err1 := Wrap(err, "cherry", " ", "guava")
	if err1.Error() != "cherry guava: rooti" {
		t.Fatalf("err msg = %s want 'cherry guava: rooti'", err1.Error())
	}
}

func TestWithDetail(t *testing.T) {
	root := New("foo")
	err := WithDetail(root, "bar")

	if got := err.Error(); got != "bar: foo" {
		t.Errorf("err msg = %q want %q", got, "bar: foo")
	}

	if got := Detail(err); got != "bar" {
		t.Errorf("Detail(%v) = %q want %q", err, got, "bar")
	}

	if got := Root(err); got != root {
		t.Errorf("Root(%v) = %v want %v", err, got, root)
	}

	err = WithDetailf(err, "baz %d", 2)
	if got := Detail(err); got != "bar; baz 2" {
		t.Errorf("Detail(%v) = %q want %q", err, got, "bar; baz 2")
	}
}

func TestWithDetailNil(t *testing.T) {
	if err := WithDetail(nil, "x"); err != nil {
		t.Errorf("WithDetail(nil, ...) = %v want nil", err)
	}
	if err := WithDetailf(nil, "x %d", 1); err != nil {
		t.Errorf("WithDetailf(nil, ...) = %v want nil", err)
	}
}

func TestStack(t *testing.T) {
	err := Wrap(errors.New("0"), "1")

	stack := Stack(err)
	if len(stack) == 0 {
		t.Fatal("wrapped error has no stack trace")
	}

	// The stack should be captured at the first wrap site and
	// preserved across further wraps.
	again := Wrap(err, "2")
	if got := Stack(again); !reflect.DeepEqual(got, stack) {
		t.Errorf("rewrap changed stack trace:\ngot  %v\nwant %v", got, stack)
	}
}

func TestStackPlain(t *testing.T) {
	if got := Stack(errors.New("plain")); got != nil {
		t.Errorf("Stack(plain error) = %v want nil", got)
	}
}
