package checked

import (
	"math"
	"reflect"
	"runtime"
	"strings"
	"testing"
)

func TestInt64(t *testing.T) {
	cases := []struct {
		f          func(a, b int64) (int64, bool)
		a, b, want int64
		wantOk     bool
	}{
		{AddInt64, 2, 3, 5, true},
		{AddInt64, 2, -3, -1, true},
		{AddInt64, -2, -3, -5, true},
		{AddInt64, math.MaxInt64, 1, 0, false},
		{AddInt64, math.MinInt64, math.MinInt64, 0, false},
		{AddInt64, math.MinInt64, -1, 0, false},
		{SubInt64, 3, 2, 1, true},
		{SubInt64, 2, 3, -1, true},
		{SubInt64, -2, -3, 1, true},
		{SubInt64, math.MinInt64, 1, 0, false},
		{SubInt64, -2, math.MaxInt64, 0, false},
		{MulInt64, 2, 3, 6, true},
		{MulInt64, -2, -3, 6, true},
		{MulInt64, -2, 3, -6, true},
		{MulInt64, math.MaxInt64, -1, math.MinInt64 + 1, true},
		{MulInt64, math.MinInt64, 2, 0, false},
		{MulInt64, math.MaxInt64, 2, 0, false},
		{MulInt64, 2, math.MinInt64, 0, false},
		{MulInt64, -2, math.MinInt64, 0, false},
		{DivInt64, 2, 2, 1, true},
		{DivInt64, -2, -2, 1, true},
		{DivInt64, -2, 2, -1, true},
		{DivInt64, 1, 0, 0, false},
		{DivInt64, math.MinInt64, -1, 0, false},
		{ModInt64, 3, 2, 1, true},
		{ModInt64, -3, -2, -1, true},
		{ModInt64, -3, 2, -1, true},
		{ModInt64, 1, 0, 0, false},
		{ModInt64, math.MinInt64, -1, 0, false},
		{LshiftInt64, 1, 2, 4, true},
		{LshiftInt64, -1, 2, -4, true},
		{LshiftInt64, 1, 64, 0, false},
		{LshiftInt64, 2, 63, 0, false},
	}

	for _, c := range cases {
		got, gotOk := c.f(c.a, c.b)

		if got != c.want {
			t.Errorf("%s(%d, %d) = %d want %d", fname(c.f), c.a, c.b, got, c.want)
		}

		if gotOk != c.wantOk {
			t.Errorf("%s(%d, %d) ok = %v want %v", fname(c.f), c.a, c.b, gotOk, c.wantOk)
		}
	}

	negateCases := []struct {
		a, want int64
		wantOk  bool
	}{
		{1, -1, true},
		{-1, 1, true},
		{0, 0, true},
		{math.MinInt64, 0, false},
	}
	for _, c := range negateCases {
		got, gotOk := NegateInt64(c.a)

		if got != c.want {
			t.Errorf("NegateInt64(%d) = %d want %d", c.a, got, c.want)
		}

		if gotOk != c.wantOk {
			t.Errorf("NegateInt64(%d) ok = %v want %v", c.a, gotOk, c.wantOk)
		}
	}
}

func fname(f interface{}) string {
	name := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
	return name[strings.LastIndex(name, ".")+1:]
}
