package vm

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
	"github.com/hevmgo/sevm/core/vm/expr"
)

func TestPushFrameSwapsState(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	parentState := vm.State
	childState := newFrameState(addr(0x02), vm.State.Code, addr(0xAA), expr.ConcreteBuf{}, expr.LitU64(0), 5000, false)

	if err := vm.pushFrame(CallContext{Target: addr(0x02)}, childState); err != nil {
		t.Fatalf("pushFrame: %v", err)
	}
	if vm.State != childState {
		t.Error("pushFrame did not install the callee as the running frame")
	}
	if len(vm.Frames) != 1 || vm.Frames[0].State != parentState {
		t.Error("pushFrame did not save the parent onto vm.Frames")
	}
}

func TestPushFrameDepthLimit(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	for i := 0; i < maxCallDepth; i++ {
		child := newFrameState(addr(0x02), vm.State.Code, addr(0xAA), expr.ConcreteBuf{}, expr.LitU64(0), 10, false)
		if err := vm.pushFrame(CallContext{}, child); err != nil {
			t.Fatalf("pushFrame #%d: %v", i, err)
		}
	}
	child := newFrameState(addr(0x02), vm.State.Code, addr(0xAA), expr.ConcreteBuf{}, expr.LitU64(0), 10, false)
	err := vm.pushFrame(CallContext{}, child)
	if _, ok := err.(ErrCallDepthLimitReached); !ok {
		t.Errorf("pushFrame at depth %d: got %v, want ErrCallDepthLimitReached", maxCallDepth, err)
	}
}

func TestFinishCallFrameReturnedPushesOneAndCopiesOutput(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	ctx := CallContext{OutOff: 0, OutSize: 4, Substate: vm.Tx.Substate.clone()}
	child := newFrameState(addr(0x02), vm.State.Code, addr(0xAA), expr.ConcreteBuf{}, expr.LitU64(0), 5000, false)
	_ = vm.pushFrame(ctx, child)
	vm.State.Gas = 1000

	vm.finishFrame(returned([]byte{1, 2, 3, 4}))

	top, err := vm.State.Stack.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if lit, ok := top.(expr.Lit); !ok || lit.Val.Uint64() != 1 {
		t.Errorf("stack top after Returned = %v, want Lit(1)", top)
	}
	mem := vm.State.Memory.readRange(expr.LitU64(0), expr.LitU64(4))
	buf, ok := mem.(expr.ConcreteBuf)
	if !ok || len(buf.Bytes) != 4 || buf.Bytes[0] != 1 {
		t.Errorf("memory after Returned = %v, want the 4-byte output copied in", mem)
	}
}

func TestFinishCallFrameRevertedRestoresContractsAndStorage(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	originalStorage := vm.Env.Storage
	snapshot := snapshotContracts(vm.Env.Contracts)

	ctx := CallContext{
		Reversion: struct {
			Contracts contractsSnapshot
			Storage   expr.Storage
		}{Contracts: snapshot, Storage: originalStorage},
		Substate: vm.Tx.Substate.clone(),
	}
	child := newFrameState(addr(0x02), vm.State.Code, addr(0xAA), expr.ConcreteBuf{}, expr.LitU64(0), 5000, false)
	_ = vm.pushFrame(ctx, child)

	vm.Env.Contracts[addr(0x99)] = NewContract(ConcreteRuntime{Code: nil}, uint256.NewInt(1), 0, types.Hash{}, false)
	vm.Env.Storage = expr.NewSStore(addrToWord(addr(0x99)), expr.LitU64(0), expr.LitU64(1), vm.Env.Storage)

	vm.finishFrame(reverted(nil))

	if _, ok := vm.Env.Contracts[addr(0x99)]; ok {
		t.Error("Reverted outcome did not restore Env.Contracts to its pre-call snapshot")
	}
	if vm.Env.Storage != originalStorage {
		t.Error("Reverted outcome did not restore Env.Storage to its pre-call value")
	}
	top, err := vm.State.Stack.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if lit, ok := top.(expr.Lit); !ok || !lit.Val.IsZero() {
		t.Errorf("stack top after Reverted = %v, want Lit(0)", top)
	}
}

func TestFinishCreationFrameReturnedInstallsCode(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	newAddr := addr(0x42)
	vm.Env.Contracts[newAddr] = NewContract(InitCode{ConcretePrefix: nil}, uint256.NewInt(0), 1, types.Hash{}, false)

	ctx := CreationContext{Addr: newAddr, SubstateSnapshot: vm.Tx.Substate.clone()}
	child := newFrameState(newAddr, vm.Env.Contracts[newAddr], addr(0xAA), expr.ConcreteBuf{}, expr.LitU64(0), 5000, false)
	_ = vm.pushFrame(ctx, child)

	vm.finishFrame(returned([]byte{byte(STOP)}))

	c, ok := vm.Env.Contracts[newAddr]
	if !ok {
		t.Fatal("creation frame's contract disappeared on Returned")
	}
	b, ok := c.Code.Bytes()
	if !ok || len(b) != 1 || b[0] != byte(STOP) {
		t.Errorf("installed code = %v, want [STOP]", b)
	}
	top, err := vm.State.Stack.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	var wantAddr uint256.Int
	wantAddr.SetBytes(newAddr[:])
	if lit, ok := top.(expr.Lit); !ok || !lit.Val.Eq(&wantAddr) {
		t.Errorf("stack top after creation Returned = %v, want the new contract address", top)
	}
}
