package vm

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/vm/expr"
)

func TestResumeFetchSlotWritesIntoStorage(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	target := addr(0x01)
	var slot [32]byte
	slot[31] = 3

	q := &Query{Kind: PleaseFetchSlot, Addr: target, Slot: slot, PC: iterKey{Addr: target, PC: 0}}
	if err := resume(vm, q, uint256.NewInt(77)); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if vm.Result != nil {
		t.Error("resume left Result non-nil, want nil so Step can retry")
	}

	var slotWord uint256.Int
	slotWord.SetBytes(slot[:])
	got := expr.NewSLoad(addrToWord(target), lit256(&slotWord), vm.Env.Storage)
	lit, ok := got.(expr.Lit)
	if !ok || lit.Val.Uint64() != 77 {
		t.Errorf("NewSLoad after resume = %v, want Lit(77)", got)
	}
}

func TestResumeAskSMTTrueAppendsPositiveConstraint(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	cond := expr.NewPEq(expr.Var{Name: "cond"}, expr.LitU64(1))
	key := iterKey{Addr: addr(0xAA), PC: 5}
	q := &Query{Kind: PleaseAskSMT, Cond: cond, PC: key}

	if err := resume(vm, q, true); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(vm.Constraints) != 1 {
		t.Fatalf("len(Constraints) = %d, want 1", len(vm.Constraints))
	}
	if vm.Constraints[0] != cond {
		t.Error("taken=true should append Cond unchanged")
	}
	if taken, ok := vm.Cache.PathChoices[key]; !ok || !taken {
		t.Error("PathChoices not recorded as taken=true")
	}
}

func TestResumeAskSMTFalseNegatesConstraint(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	cond := expr.NewPEq(expr.Var{Name: "cond"}, expr.LitU64(1))
	key := iterKey{Addr: addr(0xAA), PC: 5}
	q := &Query{Kind: PleaseAskSMT, Cond: cond, PC: key}

	if err := resume(vm, q, false); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, ok := vm.Constraints[0].(expr.PNeg); !ok {
		t.Errorf("taken=false should negate Cond, got %T", vm.Constraints[0])
	}
	if taken, ok := vm.Cache.PathChoices[key]; !ok || taken {
		t.Error("PathChoices not recorded as taken=false")
	}
}

func TestResumeFFIPopulatesCacheAndReturnData(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	key := iterKey{Addr: addr(0xAA), PC: 9}
	q := &Query{Kind: PleaseDoFFI, PC: key}

	if err := resume(vm, q, []byte("hello")); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if string(vm.Cache.FFIAnswers[key]) != "hello" {
		t.Errorf("FFIAnswers[key] = %q, want %q", vm.Cache.FFIAnswers[key], "hello")
	}
	buf, ok := vm.State.ReturnData.(expr.ConcreteBuf)
	if !ok || string(buf.Bytes) != "hello" {
		t.Errorf("ReturnData = %v, want ConcreteBuf(\"hello\")", vm.State.ReturnData)
	}
}

func TestResumeWrongAnswerTypeFails(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	q := &Query{Kind: PleaseFetchSlot, Addr: addr(0x01), PC: iterKey{Addr: addr(0x01), PC: 0}}
	if err := resume(vm, q, "not a uint256"); err == nil {
		t.Error("resume with a mistyped answer should fail")
	}
}
