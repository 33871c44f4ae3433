package vm

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
	"github.com/hevmgo/sevm/core/vm/expr"
)

// S1 — ADD. PUSH1 1, PUSH1 2, ADD, STOP.
func TestScenarioS1Add(t *testing.T) {
	code := []byte{byte(PUSH1), 1, byte(PUSH1), 2, byte(ADD), byte(STOP)}
	vm := newTestVM(code, 100000)

	Step(vm) // PUSH1 1
	Step(vm) // PUSH1 2
	Step(vm) // ADD

	top, err := vm.State.Stack.pop()
	if err != nil {
		t.Fatalf("pop after ADD: %v", err)
	}
	lit, ok := top.(expr.Lit)
	if !ok || lit.Val.Uint64() != 3 {
		t.Errorf("stack top before STOP = %v, want Lit(3)", top)
	}
	if err := vm.State.Stack.push(top); err != nil {
		t.Fatalf("push back: %v", err)
	}
	want := 3 * vm.Block.Schedule.GVeryLow
	if vm.Burned != want {
		t.Errorf("gas burned after ADD = %d, want %d", vm.Burned, want)
	}

	Step(vm) // STOP
	if vm.Result == nil || !vm.Result.Success {
		t.Fatalf("result = %+v, want Success", vm.Result)
	}
	if len(vm.Result.Output) != 0 {
		t.Errorf("output = %v, want empty", vm.Result.Output)
	}
}

// S2 — SLOAD cold/warm. PUSH1 0, SLOAD, PUSH1 0, SLOAD, STOP.
func TestScenarioS2SloadColdWarm(t *testing.T) {
	code := []byte{byte(PUSH1), 0, byte(SLOAD), byte(PUSH1), 0, byte(SLOAD), byte(STOP)}
	vm := newTestVM(code, 100000)
	fee := vm.Block.Schedule

	Step(vm) // PUSH1 0
	gasAfterPush1 := vm.State.Gas
	Step(vm) // SLOAD (cold)
	coldCost := gasAfterPush1 - vm.State.Gas
	if coldCost != fee.GColdSLoad {
		t.Errorf("first SLOAD cost = %d, want GColdSLoad = %d", coldCost, fee.GColdSLoad)
	}

	Step(vm) // PUSH1 0
	gasAfterPush2 := vm.State.Gas
	Step(vm) // SLOAD (warm)
	warmCost := gasAfterPush2 - vm.State.Gas
	if warmCost != fee.GWarmStorageRead {
		t.Errorf("second SLOAD cost = %d, want GWarmStorageRead = %d", warmCost, fee.GWarmStorageRead)
	}

	second, err := vm.State.Stack.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	first, err := vm.State.Stack.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	for _, w := range []expr.Word{first, second} {
		lit, ok := w.(expr.Lit)
		if !ok || !lit.Val.IsZero() {
			t.Errorf("SLOAD result = %v, want Lit(0)", w)
		}
	}

	Step(vm) // STOP
	if vm.Result == nil || !vm.Result.Success {
		t.Fatalf("result = %+v, want Success", vm.Result)
	}
}

// S3 — JUMPDEST guard. PUSH1 4, JUMP, STOP, JUMPDEST, STOP.
func TestScenarioS3JumpdestGuard(t *testing.T) {
	code := []byte{byte(PUSH1), 4, byte(JUMP), byte(STOP), byte(JUMPDEST), byte(STOP)}
	vm := newTestVM(code, 100000)
	runToHalt(vm, 10)

	if vm.Result == nil || !vm.Result.Success {
		t.Fatalf("result = %+v, want Success via the jump target", vm.Result)
	}
}

func TestScenarioS3JumpdestGuardRejectsBadDest(t *testing.T) {
	code := []byte{byte(PUSH1), 3, byte(JUMP), byte(STOP), byte(STOP), byte(STOP)}
	vm := newTestVM(code, 100000)
	runToHalt(vm, 10)

	if vm.Result == nil || vm.Result.Success {
		t.Fatalf("result = %+v, want a failure", vm.Result)
	}
	if _, ok := vm.Result.Err.(ErrBadJumpDestination); !ok {
		t.Errorf("err = %T, want ErrBadJumpDestination", vm.Result.Err)
	}
}

// S4 — Static REVERT on SSTORE. Enter via a synthetic STATICCALL-style
// frame into PUSH1 0xff, PUSH1 0, SSTORE, STOP.
func TestScenarioS4StaticRevertOnSstore(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	contractsSnapshot := snapshotContracts(vm.Env.Contracts)
	storageSnapshot := vm.Env.Storage

	calleeAddr := addr(0x55)
	calleeCode := []byte{byte(PUSH1), 0xff, byte(PUSH1), 0, byte(SSTORE), byte(STOP)}
	vm.Env.Contracts[calleeAddr] = NewContract(ConcreteRuntime{Code: calleeCode}, uint256.NewInt(0), 0, types.Hash{}, false)

	childState := newFrameState(calleeAddr, vm.Env.Contracts[calleeAddr], addr(0xAA), expr.ConcreteBuf{}, expr.LitU64(0), 5000, true)
	ctx := CallContext{
		Target: calleeAddr,
		Reversion: struct {
			Contracts contractsSnapshot
			Storage   expr.Storage
		}{Contracts: contractsSnapshot, Storage: storageSnapshot},
		Substate: vm.Tx.Substate.clone(),
	}
	if err := vm.pushFrame(ctx, childState); err != nil {
		t.Fatalf("pushFrame: %v", err)
	}

	Step(vm) // PUSH1 0xff
	Step(vm) // PUSH1 0
	Step(vm) // SSTORE: checkNotStatic fails, unwinds the callee

	if vm.Result != nil {
		t.Fatalf("root ended prematurely: %+v", vm.Result)
	}
	top, err := vm.State.Stack.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if lit, ok := top.(expr.Lit); !ok || !lit.Val.IsZero() {
		t.Errorf("outer frame's stack top = %v, want Lit(0)", top)
	}
	if vm.Env.Storage != storageSnapshot {
		t.Error("SSTORE under static should not have mutated storage")
	}
}

// S5 — Symbolic JUMPI branching. Abstract calldata, CALLDATALOAD 0 feeds
// JUMPI's condition; the engine must pause with PleaseAskSMT rather than
// guess a branch.
func TestScenarioS5SymbolicJumpi(t *testing.T) {
	code := []byte{
		byte(PUSH1), 0, // push index 0
		byte(CALLDATALOAD), // symbolic condition
		byte(PUSH1), 7, // push jump dest (JUMPDEST at index 7)
		byte(JUMPI),
		byte(STOP),     // index 6: fallthrough (not taken)
		byte(JUMPDEST), // index 7
		byte(STOP),     // index 8: taken
	}
	contractAddr := addr(0xAA)
	caller := addr(0xBB)
	contract := NewContract(ConcreteRuntime{Code: code}, uint256.NewInt(0), 0, types.Hash{}, false)
	vm := NewVM(VmOpts{
		Contract:    contract,
		Calldata:    expr.AbstractBuf{Name: "calldata"},
		StorageBase: StorageConcrete,
		Value:       uint256.NewInt(0),
		PriorityFee: uint256.NewInt(0),
		Address:     contractAddr,
		Caller:      caller,
		Origin:      caller,
		Gas:         100000,
		GasLimit:    100000,
		Number:      uint256.NewInt(1),
		Timestamp:   uint256.NewInt(1000),
		PrevRandao:  uint256.NewInt(0),
		MaxCodeSize: 24576,
		GasPrice:    uint256.NewInt(1),
		BaseFee:     uint256.NewInt(0),
		Schedule:    BerlinLondonSchedule(),
		ChainID:     uint256.NewInt(1),
	})

	Step(vm) // PUSH1 0
	Step(vm) // CALLDATALOAD
	Step(vm) // PUSH1 7
	Step(vm) // JUMPI -> pauses

	if vm.Result == nil || vm.Result.Success {
		t.Fatalf("result = %+v, want a paused Query", vm.Result)
	}
	qerr, ok := vm.Result.Err.(ErrQuery)
	if !ok || qerr.Q.Kind != PleaseAskSMT {
		t.Fatalf("err = %v, want PleaseAskSMT", vm.Result.Err)
	}
	q := qerr.Q

	// Case(true): constraints gain cond > 0 (cond != 0), jump taken.
	if err := resume(vm, q, true); err != nil {
		t.Fatalf("resume true: %v", err)
	}
	Step(vm) // JUMPI retried, now resolved
	Step(vm) // JUMPDEST
	Step(vm) // STOP
	if vm.Result == nil || !vm.Result.Success {
		t.Fatalf("result after taking the branch = %+v, want Success", vm.Result)
	}
	if len(vm.Constraints) != 1 {
		t.Fatalf("len(Constraints) = %d, want 1", len(vm.Constraints))
	}
}

func TestScenarioS5SymbolicJumpiFalseBranch(t *testing.T) {
	code := []byte{
		byte(PUSH1), 0,
		byte(CALLDATALOAD),
		byte(PUSH1), 7,
		byte(JUMPI),
		byte(STOP),
		byte(JUMPDEST),
		byte(STOP),
	}
	contractAddr := addr(0xAA)
	caller := addr(0xBB)
	contract := NewContract(ConcreteRuntime{Code: code}, uint256.NewInt(0), 0, types.Hash{}, false)
	vm := NewVM(VmOpts{
		Contract:    contract,
		Calldata:    expr.AbstractBuf{Name: "calldata"},
		StorageBase: StorageConcrete,
		Value:       uint256.NewInt(0),
		PriorityFee: uint256.NewInt(0),
		Address:     contractAddr,
		Caller:      caller,
		Origin:      caller,
		Gas:         100000,
		GasLimit:    100000,
		Number:      uint256.NewInt(1),
		Timestamp:   uint256.NewInt(1000),
		PrevRandao:  uint256.NewInt(0),
		MaxCodeSize: 24576,
		GasPrice:    uint256.NewInt(1),
		BaseFee:     uint256.NewInt(0),
		Schedule:    BerlinLondonSchedule(),
		ChainID:     uint256.NewInt(1),
	})

	Step(vm)
	Step(vm)
	Step(vm)
	Step(vm)

	qerr := vm.Result.Err.(ErrQuery)
	if err := resume(vm, qerr.Q, false); err != nil {
		t.Fatalf("resume false: %v", err)
	}
	Step(vm) // JUMPI retried: falls through
	Step(vm) // STOP at index 6

	if vm.Result == nil || !vm.Result.Success {
		t.Fatalf("result after falling through = %+v, want Success", vm.Result)
	}
	if _, ok := vm.Constraints[0].(expr.PNeg); !ok {
		t.Errorf("Constraints[0] = %T, want a negated PNeg (cond == 0)", vm.Constraints[0])
	}
}

// S6 — CREATE whose initcode returns a buffer starting with 0xEF.
func TestScenarioS6CreateRejects0xEFPrefix(t *testing.T) {
	// PUSH1 0xEF, PUSH1 0, MSTORE8, PUSH1 1, PUSH1 0, RETURN
	initCode := []byte{
		byte(PUSH1), 0xEF,
		byte(PUSH1), 0,
		byte(MSTORE8),
		byte(PUSH1), 1,
		byte(PUSH1), 0,
		byte(RETURN),
	}
	// outer: copy initCode into memory via CODECOPY, then CREATE(0, 0, len)
	outerCode := []byte{
		byte(PUSH1), byte(len(initCode)), // size
		byte(PUSH1), byte(32), // offset into outer code where initCode starts
		byte(PUSH1), 0, // dest memory offset
		byte(CODECOPY),
		byte(PUSH1), byte(len(initCode)), // size
		byte(PUSH1), 0, // offset
		byte(PUSH1), 0, // value
		byte(CREATE),
		byte(STOP),
	}
	// pad outerCode to 32 bytes, then append initCode so CODECOPY's
	// literal offset (32) lines up with where initCode actually starts.
	for len(outerCode) < 32 {
		outerCode = append(outerCode, byte(STOP))
	}
	outerCode = append(outerCode, initCode...)

	vm := newTestVM(outerCode, 1000000)
	senderAcct := vm.Env.Contracts[addr(0xAA)]
	senderAcct.Balance = uint256.NewInt(0)
	senderAcct.Nonce = 0

	runToHalt(vm, 200)

	if vm.Result == nil || !vm.Result.Success {
		t.Fatalf("outer result = %+v, want Success (CREATE failure is local to the creation frame)", vm.Result)
	}
	if senderAcct.Nonce != 1 {
		t.Errorf("sender nonce = %d, want 1 (bumped even though creation failed)", senderAcct.Nonce)
	}
	newAddr := createAddress(addr(0xAA), 0)
	if _, ok := vm.Env.Contracts[newAddr]; ok {
		t.Error("a creation frame that fails with InvalidFormat should leave no trace of the new account")
	}
}
