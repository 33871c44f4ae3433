package expr

import "testing"

func TestNewPEqConcrete(t *testing.T) {
	got := NewPEq(LitU64(5), LitU64(5))
	b, ok := got.(PBool)
	if !ok || !b.Val {
		t.Errorf("5==5 = %#v, want PBool{true}", got)
	}
}

func TestNewPEqSymbolicSelf(t *testing.T) {
	x := Var{Name: "x"}
	got := NewPEq(x, x)
	b, ok := got.(PBool)
	if !ok || !b.Val {
		t.Errorf("x==x = %#v, want PBool{true}", got)
	}
}

func TestNewPAndShortCircuitsFalse(t *testing.T) {
	got := NewPAnd(PBool{Val: false}, PEq{L: Var{Name: "x"}, R: Var{Name: "y"}})
	b, ok := got.(PBool)
	if !ok || b.Val {
		t.Errorf("false && p = %#v, want PBool{false}", got)
	}
}

func TestNewPOrShortCircuitsTrue(t *testing.T) {
	got := NewPOr(PBool{Val: true}, PEq{L: Var{Name: "x"}, R: Var{Name: "y"}})
	b, ok := got.(PBool)
	if !ok || !b.Val {
		t.Errorf("true || p = %#v, want PBool{true}", got)
	}
}

func TestNewPNegDoubleNegationCancels(t *testing.T) {
	p := PEq{L: Var{Name: "x"}, R: Var{Name: "y"}}
	got := NewPNeg(NewPNeg(p))
	if got != Prop(p) {
		t.Errorf("!!p = %#v, want p unchanged", got)
	}
}

func TestNewPLeqBoundaryEqual(t *testing.T) {
	got := NewPLeq(LitU64(5), LitU64(5))
	b, ok := got.(PBool)
	if !ok || !b.Val {
		t.Errorf("5<=5 = %#v, want PBool{true}", got)
	}
}
