package value

import (
	"math"
	"testing"

	"github.com/wisplang/wisp/internal/pageheap"
)

func TestFalsey(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Nil, true},
		{False, true},
		{True, false},
		{Number(0), false},
		{Number(math.NaN()), false},
		{Object(0), false},
	}
	for _, c := range cases {
		if got := c.v.IsFalsey(); got != c.want {
			t.Errorf("IsFalsey(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestNumberRoundTrip(t *testing.T) {
	for _, f := range []float64{0, -0.0, 1, -1, 3.5, math.Inf(1), math.Inf(-1)} {
		v := Number(f)
		if !v.IsNumber() {
			t.Fatalf("Number(%v).IsNumber() = false", f)
		}
		if got := v.AsNumber(); got != f && !(math.IsInf(got, 0) && math.IsInf(f, 0)) {
			t.Errorf("round-trip %v got %v", f, got)
		}
	}
}

func TestObjectAddrRoundTrip(t *testing.T) {
	a := pageheap.Addr(0x1234)
	v := Object(a)
	if !v.IsObject() {
		t.Fatalf("Object(a).IsObject() = false")
	}
	if v.AsAddr() != a {
		t.Errorf("AsAddr() = %v, want %v", v.AsAddr(), a)
	}
}

func TestSameBroadType(t *testing.T) {
	if !SameBroadType(Number(1), Number(math.NaN())) {
		t.Error("two numbers should share a broad type")
	}
	if SameBroadType(Nil, False) {
		t.Error("nil and false should not share a broad type")
	}
	if !SameBroadType(True, False) {
		t.Error("true and false should share a broad type")
	}
}
