package vm

import (
	"encoding/binary"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
	"github.com/hevmgo/sevm/core/vm/expr"
	"github.com/hevmgo/sevm/crypto"
	"github.com/hevmgo/sevm/rlp"
)

// Step advances vm by exactly one instruction (spec §4.5). It is total:
// a VM with Result == nil always leaves Step with an updated state,
// possibly with Result now set.
func Step(vm *VM) {
	if vm.halted() {
		return
	}
	if id, ok := isPrecompile(vm.State.Contract); ok {
		stepPrecompileFrame(vm, id)
		return
	}
	code, ok := vm.State.Code.Code.Bytes()
	if !ok {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "code byte is symbolic"}))
		return
	}
	if vm.State.PC >= uint64(len(code)) {
		vm.finishFrame(returned(nil))
		return
	}
	execOp(vm, OpCode(code[vm.State.PC]), code)
}

// stepPrecompileFrame handles dispatch order item 1: the currently
// running frame's own address is a precompile (a transaction whose "to"
// is 0x01..0x09, or a creation target that happens to land there).
// CALL-originated precompile invocations never reach here — stepCall
// runs them synchronously without pushing a frame at all.
func stepPrecompileFrame(vm *VM, id byte) {
	length, ok := expr.BufLength(vm.State.Calldata)
	if !ok {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic precompile calldata"}))
		return
	}
	vm.State.Memory.writeRange(expr.LitU64(0), vm.State.Calldata, expr.LitU64(0), expr.LitU64(length))
	input, ok := expr.ConcreteBytes(vm.State.Calldata, length)
	if !ok {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic precompile calldata"}))
		return
	}
	cost, ok := computePrecompileCost(vm.Block.Schedule, id, input)
	if !ok {
		vm.finishFrame(errored(ErrPrecompileFailure{}))
		return
	}
	if err := vm.burn(cost); err != nil {
		failErr(vm, err)
		return
	}
	out, ok := runPrecompile(id, input)
	if !ok {
		vm.finishFrame(errored(ErrPrecompileFailure{}))
		return
	}
	vm.finishFrame(returned(out))
}

// failErr converts a plain error (almost always ErrOutOfGas or
// ErrIllegalOverflow from a gas/memory helper) into a frame-ending
// Errored outcome, the engine's sole unwind path (spec §7).
func failErr(vm *VM, err error) {
	if verr, ok := err.(Error); ok {
		vm.finishFrame(errored(verr))
		return
	}
	vm.finishFrame(errored(ErrInvalidFormat{}))
}

func advance(vm *VM, op OpCode) { vm.State.PC += opSize(op) }

func pushOrFail(vm *VM, w expr.Word) bool {
	if err := vm.State.Stack.push(w); err != nil {
		failErr(vm, err)
		return false
	}
	return true
}

func checkNotStatic(vm *VM) bool {
	if !vm.State.Static {
		return true
	}
	vm.finishFrame(errored(ErrStateChangeWhileStatic{}))
	return false
}

// inCreation reports whether the currently running frame is a creation
// frame, by looking at the FrameContext the frame machine recorded when
// it was pushed (or tx.IsCreate at the root).
func (vm *VM) inCreation() bool {
	if len(vm.Frames) == 0 {
		return vm.Tx.IsCreate
	}
	_, ok := vm.Frames[len(vm.Frames)-1].Context.(CreationContext)
	return ok
}

// binOp is the shared shape of every two-operand, fold-then-push
// arithmetic/comparison/bitwise opcode.
func binOp(vm *VM, op OpCode, gas uint64, fold func(l, r expr.Word) expr.Word) {
	l, r, err := vm.State.Stack.pop2()
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(gas); err != nil {
		failErr(vm, err)
		return
	}
	if !pushOrFail(vm, fold(l, r)) {
		return
	}
	advance(vm, op)
}

func unOp(vm *VM, op OpCode, gas uint64, fold func(x expr.Word) expr.Word) {
	x, err := vm.State.Stack.pop()
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(gas); err != nil {
		failErr(vm, err)
		return
	}
	if !pushOrFail(vm, fold(x)) {
		return
	}
	advance(vm, op)
}

func triOp(vm *VM, op OpCode, gas uint64, fold func(x, y, m expr.Word) expr.Word) {
	x, y, m, err := vm.State.Stack.pop3()
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(gas); err != nil {
		failErr(vm, err)
		return
	}
	if !pushOrFail(vm, fold(x, y, m)) {
		return
	}
	advance(vm, op)
}

func execOp(vm *VM, op OpCode, code []byte) {
	fee := vm.Block.Schedule
	switch op {
	case STOP:
		vm.finishFrame(returned(nil))

	case ADD:
		binOp(vm, op, fee.GVeryLow, expr.NewAdd)
	case MUL:
		binOp(vm, op, fee.GLow, expr.NewMul)
	case SUB:
		binOp(vm, op, fee.GVeryLow, expr.NewSub)
	case DIV:
		binOp(vm, op, fee.GLow, expr.NewDiv)
	case SDIV:
		binOp(vm, op, fee.GLow, expr.NewSDiv)
	case MOD:
		binOp(vm, op, fee.GLow, expr.NewMod)
	case SMOD:
		binOp(vm, op, fee.GLow, expr.NewSMod)
	case ADDMOD:
		triOp(vm, op, fee.GMid, expr.NewAddMod)
	case MULMOD:
		triOp(vm, op, fee.GMid, expr.NewMulMod)
	case EXP:
		stepExp(vm, op)
	case SIGNEXTEND:
		binOp(vm, op, fee.GLow, expr.NewSEx)

	case LT:
		binOp(vm, op, fee.GVeryLow, expr.NewLt)
	case GT:
		binOp(vm, op, fee.GVeryLow, expr.NewGt)
	case SLT:
		binOp(vm, op, fee.GVeryLow, expr.NewSLt)
	case SGT:
		binOp(vm, op, fee.GVeryLow, expr.NewSGt)
	case EQ:
		binOp(vm, op, fee.GVeryLow, expr.NewEq)
	case ISZERO:
		unOp(vm, op, fee.GVeryLow, expr.NewIsZero)
	case AND:
		binOp(vm, op, fee.GVeryLow, expr.NewAnd)
	case OR:
		binOp(vm, op, fee.GVeryLow, expr.NewOr)
	case XOR:
		binOp(vm, op, fee.GVeryLow, expr.NewXor)
	case NOT:
		unOp(vm, op, fee.GVeryLow, expr.NewNot)
	case BYTE:
		stepByte(vm, op)
	case SHL:
		binOp(vm, op, fee.GVeryLow, expr.NewShl)
	case SHR:
		binOp(vm, op, fee.GVeryLow, expr.NewShr)
	case SAR:
		binOp(vm, op, fee.GVeryLow, expr.NewSar)

	case SHA3:
		stepSha3(vm, op)

	case ADDRESS:
		pushAddrWord(vm, op, vm.State.Contract)
	case BALANCE:
		stepBalance(vm, op)
	case ORIGIN:
		pushAddrWord(vm, op, vm.Tx.Origin)
	case CALLER:
		pushAddrWord(vm, op, vm.State.Caller)
	case CALLVALUE:
		if err := vm.burn(fee.GBase); err != nil {
			failErr(vm, err)
			return
		}
		if !pushOrFail(vm, vm.State.CallValue) {
			return
		}
		advance(vm, op)
	case CALLDATALOAD:
		stepCalldataLoad(vm, op)
	case CALLDATASIZE:
		stepBufSize(vm, op, vm.State.Calldata)
	case CALLDATACOPY:
		stepCopy(vm, op, vm.State.Calldata)
	case CODESIZE:
		if err := vm.burn(fee.GBase); err != nil {
			failErr(vm, err)
			return
		}
		if !pushOrFail(vm, expr.LitU64(uint64(len(code)))) {
			return
		}
		advance(vm, op)
	case CODECOPY:
		stepCopy(vm, op, expr.ConcreteBuf{Bytes: code})
	case GASPRICE:
		if err := vm.burn(fee.GBase); err != nil {
			failErr(vm, err)
			return
		}
		if !pushOrFail(vm, lit256(vm.Tx.GasPrice)) {
			return
		}
		advance(vm, op)
	case EXTCODESIZE:
		stepExtcodeSize(vm, op)
	case EXTCODECOPY:
		stepExtcodeCopy(vm, op)
	case RETURNDATASIZE:
		stepBufSize(vm, op, vm.State.ReturnData)
	case RETURNDATACOPY:
		stepCopy(vm, op, vm.State.ReturnData)
	case EXTCODEHASH:
		stepExtcodeHash(vm, op)

	case BLOCKHASH:
		stepBlockHash(vm, op)
	case COINBASE:
		pushAddrWord(vm, op, vm.Block.Coinbase)
	case TIMESTAMP:
		stepBlockWord(vm, op, vm.Block.Timestamp)
	case NUMBER:
		stepBlockWord(vm, op, vm.Block.Number)
	case PREVRANDAO:
		stepBlockWord(vm, op, vm.Block.PrevRandao)
	case GASLIMIT:
		if err := vm.burn(fee.GBase); err != nil {
			failErr(vm, err)
			return
		}
		if !pushOrFail(vm, expr.LitU64(vm.Block.GasLimit)) {
			return
		}
		advance(vm, op)
	case CHAINID:
		if err := vm.burn(fee.GBase); err != nil {
			failErr(vm, err)
			return
		}
		if !pushOrFail(vm, lit256(vm.Env.ChainID)) {
			return
		}
		advance(vm, op)
	case SELFBALANCE:
		stepSelfBalance(vm, op)
	case BASEFEE:
		stepBlockWord(vm, op, vm.Block.BaseFee)

	case POP:
		if _, err := vm.State.Stack.pop(); err != nil {
			failErr(vm, err)
			return
		}
		if err := vm.burn(fee.GBase); err != nil {
			failErr(vm, err)
			return
		}
		advance(vm, op)
	case MLOAD:
		stepMload(vm, op)
	case MSTORE:
		stepMstore(vm, op)
	case MSTORE8:
		stepMstore8(vm, op)
	case SLOAD:
		stepSload(vm, op)
	case SSTORE:
		stepSstore(vm, op)
	case JUMP:
		stepJump(vm, op, code)
	case JUMPI:
		stepJumpi(vm, op, code)
	case PC:
		if err := vm.burn(fee.GBase); err != nil {
			failErr(vm, err)
			return
		}
		if !pushOrFail(vm, expr.LitU64(vm.State.PC)) {
			return
		}
		advance(vm, op)
	case MSIZE:
		if err := vm.burn(fee.GBase); err != nil {
			failErr(vm, err)
			return
		}
		if !pushOrFail(vm, expr.LitU64(vm.State.Memory.size)) {
			return
		}
		advance(vm, op)
	case GAS:
		if err := vm.burn(fee.GBase); err != nil {
			failErr(vm, err)
			return
		}
		if !pushOrFail(vm, expr.LitU64(vm.State.Gas)) {
			return
		}
		advance(vm, op)
	case JUMPDEST:
		if err := vm.burn(fee.GJumpDest); err != nil {
			failErr(vm, err)
			return
		}
		advance(vm, op)

	default:
		switch {
		case IsPush(op):
			stepPush(vm, op, code)
		case IsDup(op):
			stepDup(vm, op)
		case IsSwap(op):
			stepSwap(vm, op)
		case IsLog(op):
			stepLog(vm, op)
		case op == CREATE || op == CREATE2:
			stepCreate(vm, op)
		case op == CALL || op == CALLCODE || op == DELEGATECALL || op == STATICCALL:
			stepCall(vm, op)
		case op == RETURN:
			stepReturn(vm, op)
		case op == REVERT:
			stepRevert(vm, op)
		case op == SELFDESTRUCT:
			stepSelfDestruct(vm, op)
		default:
			vmLog.Debug("unrecognized opcode", "op", byte(op), "pc", vm.State.PC, "contract", vm.State.Contract)
			vm.finishFrame(errored(ErrUnrecognizedOpcode{Op: byte(op)}))
		}
	}
}

// --- arithmetic helpers needing more than fold-then-push -------------

func stepExp(vm *VM, op OpCode) {
	base, exponent, err := vm.State.Stack.pop2()
	if err != nil {
		failErr(vm, err)
		return
	}
	expByteLen := uint64(32)
	if e, ok := exponent.(expr.Lit); ok {
		if e.Val.IsZero() {
			expByteLen = 0
		} else {
			b := e.Val.Bytes32()
			expByteLen = 32
			for i := 0; i < 32; i++ {
				if b[i] != 0 {
					expByteLen = uint64(32 - i)
					break
				}
			}
		}
	}
	cost := vm.Block.Schedule.GExp + vm.Block.Schedule.GExpByte*expByteLen
	if err := vm.burn(cost); err != nil {
		failErr(vm, err)
		return
	}
	if !pushOrFail(vm, expr.NewExp(base, exponent)) {
		return
	}
	advance(vm, op)
}

func stepByte(vm *VM, op OpCode) {
	i, w, err := vm.State.Stack.pop2()
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(vm.Block.Schedule.GVeryLow); err != nil {
		failErr(vm, err)
		return
	}
	b := expr.NewIndexWord(i, w)
	if !pushOrFail(vm, expr.NewWordFromByte(b)) {
		return
	}
	advance(vm, op)
}

// --- context / environment opcodes ------------------------------------

func pushAddrWord(vm *VM, op OpCode, addr types.Address) {
	if err := vm.burn(vm.Block.Schedule.GBase); err != nil {
		failErr(vm, err)
		return
	}
	if !pushOrFail(vm, addrToWord(addr)) {
		return
	}
	advance(vm, op)
}

func stepBlockWord(vm *VM, op OpCode, v *uint256.Int) {
	if err := vm.burn(vm.Block.Schedule.GBase); err != nil {
		failErr(vm, err)
		return
	}
	if !pushOrFail(vm, lit256(v)) {
		return
	}
	advance(vm, op)
}

func stepSelfBalance(vm *VM, op OpCode) {
	if err := vm.burn(vm.Block.Schedule.GLow); err != nil {
		failErr(vm, err)
		return
	}
	bal := uint256.NewInt(0)
	if c, ok := vm.Env.Contracts[vm.State.Contract]; ok && c.Balance != nil {
		bal = c.Balance
	}
	if !pushOrFail(vm, lit256(bal)) {
		return
	}
	advance(vm, op)
}

// resolveTargetAddr pops a 20-byte-in-a-word target address, cloning the
// stack first so a caller that ends up pausing on a query can restore it
// (spec §9's re-enter-Step-at-the-same-PC continuation design).
func resolveTargetAddr(vm *VM) (types.Address, *Stack, bool) {
	snapshot := vm.State.Stack.clone()
	w, err := vm.State.Stack.pop()
	if err != nil {
		failErr(vm, err)
		return types.Address{}, nil, false
	}
	lw, ok := w.(expr.Lit)
	if !ok {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic target address"}))
		return types.Address{}, nil, false
	}
	b := lw.Val.Bytes32()
	return types.BytesToAddress(b[12:]), snapshot, true
}

func pauseFetchContract(vm *VM, snapshot *Stack, addr types.Address) {
	vm.State.Stack = snapshot
	vm.Result = &Result{Success: false, Err: ErrQuery{Q: &Query{
		Kind: PleaseFetchContract, Addr: addr, PC: iterKey{Addr: vm.State.Contract, PC: vm.State.PC},
	}}}
}

func stepBalance(vm *VM, op OpCode) {
	addr, snapshot, ok := resolveTargetAddr(vm)
	if !ok {
		return
	}
	warm := vm.Tx.Substate.touchAddress(addr)
	cost := vm.Block.Schedule.GWarmStorageRead
	if !warm {
		cost = vm.Block.Schedule.GColdAccountAccess
	}
	if err := vm.burn(cost); err != nil {
		failErr(vm, err)
		return
	}
	c, ok := vm.Env.Contracts[addr]
	if !ok {
		pauseFetchContract(vm, snapshot, addr)
		return
	}
	bal := uint256.NewInt(0)
	if c.Balance != nil {
		bal = c.Balance
	}
	if !pushOrFail(vm, lit256(bal)) {
		return
	}
	advance(vm, op)
}

func stepCalldataLoad(vm *VM, op OpCode) {
	ind, err := vm.State.Stack.pop()
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(vm.Block.Schedule.GVeryLow); err != nil {
		failErr(vm, err)
		return
	}
	if !pushOrFail(vm, expr.NewReadWord(ind, vm.State.Calldata)) {
		return
	}
	advance(vm, op)
}

// stepBufSize backs CALLDATASIZE/RETURNDATASIZE: a statically unknown
// length is surfaced as a fixed named symbolic word rather than a fresh
// Var per call, so repeated reads of the same buffer's size stay
// structurally comparable.
func stepBufSize(vm *VM, op OpCode, buf expr.Buf) {
	if err := vm.burn(vm.Block.Schedule.GBase); err != nil {
		failErr(vm, err)
		return
	}
	var w expr.Word
	if n, ok := expr.BufLength(buf); ok {
		w = expr.LitU64(n)
	} else {
		w = expr.Var{Name: "abstract-buf-length"}
	}
	if !pushOrFail(vm, w) {
		return
	}
	advance(vm, op)
}

// stepCopy backs CALLDATACOPY/CODECOPY/RETURNDATACOPY: all three reduce
// to overlaying size bytes of src (at srcOff) onto memory at destOff.
func stepCopy(vm *VM, op OpCode, src expr.Buf) {
	destOff, srcOff, size, err := vm.State.Stack.pop3()
	if err != nil {
		failErr(vm, err)
		return
	}
	do, doOk := destOff.(expr.Lit)
	sz, szOk := size.(expr.Lit)
	if !doOk || !szOk {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic memory offset/size"}))
		return
	}
	memExpand, err := vm.State.Memory.grow(vm.Block.Schedule, do.Val.Uint64(), sz.Val.Uint64())
	if err != nil {
		failErr(vm, err)
		return
	}
	cost := vm.Block.Schedule.GVeryLow + vm.Block.Schedule.GCopy*ceilDiv32(sz.Val.Uint64())
	if err := vm.burn(memExpand + cost); err != nil {
		failErr(vm, err)
		return
	}
	vm.State.Memory.writeRange(destOff, src, srcOff, size)
	advance(vm, op)
}

func stepExtcodeSize(vm *VM, op OpCode) {
	addr, snapshot, ok := resolveTargetAddr(vm)
	if !ok {
		return
	}
	warm := vm.Tx.Substate.touchAddress(addr)
	cost := vm.Block.Schedule.GWarmStorageRead
	if !warm {
		cost = vm.Block.Schedule.GColdAccountAccess
	}
	if err := vm.burn(cost); err != nil {
		failErr(vm, err)
		return
	}
	if addr == cheatAddress {
		if !pushOrFail(vm, expr.LitU64(1)) {
			return
		}
		advance(vm, op)
		return
	}
	c, ok := vm.Env.Contracts[addr]
	if !ok {
		pauseFetchContract(vm, snapshot, addr)
		return
	}
	size := uint64(0)
	if b, ok := c.Code.Bytes(); ok {
		size = uint64(len(b))
	}
	if !pushOrFail(vm, expr.LitU64(size)) {
		return
	}
	advance(vm, op)
}

func stepExtcodeHash(vm *VM, op OpCode) {
	addr, snapshot, ok := resolveTargetAddr(vm)
	if !ok {
		return
	}
	warm := vm.Tx.Substate.touchAddress(addr)
	cost := vm.Block.Schedule.GWarmStorageRead
	if !warm {
		cost = vm.Block.Schedule.GExtcodeHash
	}
	if err := vm.burn(cost); err != nil {
		failErr(vm, err)
		return
	}
	c, ok := vm.Env.Contracts[addr]
	if !ok {
		pauseFetchContract(vm, snapshot, addr)
		return
	}
	if accountEmpty(c) {
		if !pushOrFail(vm, expr.LitU64(0)) {
			return
		}
		advance(vm, op)
		return
	}
	var hashWord expr.Word
	if b, ok := c.Code.Bytes(); ok {
		var h uint256.Int
		h.SetBytes(crypto.Keccak256(b))
		hashWord = lit256(&h)
	} else {
		hashWord = expr.Var{Name: "symbolic-codehash"}
	}
	if !pushOrFail(vm, hashWord) {
		return
	}
	advance(vm, op)
}

func stepExtcodeCopy(vm *VM, op OpCode) {
	snapshot := vm.State.Stack.clone()
	addrW, err := vm.State.Stack.pop()
	if err != nil {
		failErr(vm, err)
		return
	}
	destOff, srcOff, size, err := vm.State.Stack.pop3()
	if err != nil {
		failErr(vm, err)
		return
	}
	lw, ok := addrW.(expr.Lit)
	if !ok {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic EXTCODECOPY address"}))
		return
	}
	b32 := lw.Val.Bytes32()
	addr := types.BytesToAddress(b32[12:])

	warm := vm.Tx.Substate.touchAddress(addr)
	base := vm.Block.Schedule.GWarmStorageRead
	if !warm {
		base = vm.Block.Schedule.GColdAccountAccess
	}

	do, doOk := destOff.(expr.Lit)
	sz, szOk := size.(expr.Lit)
	if !doOk || !szOk {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic memory offset/size"}))
		return
	}
	memExpand, err := vm.State.Memory.grow(vm.Block.Schedule, do.Val.Uint64(), sz.Val.Uint64())
	if err != nil {
		failErr(vm, err)
		return
	}
	copyCost := vm.Block.Schedule.GCopy * ceilDiv32(sz.Val.Uint64())
	if err := vm.burn(base + memExpand + copyCost); err != nil {
		failErr(vm, err)
		return
	}

	var codeBuf expr.Buf = expr.ConcreteBuf{Bytes: nil}
	switch {
	case addr == cheatAddress:
		codeBuf = expr.ConcreteBuf{Bytes: []byte{0}}
	default:
		c, ok := vm.Env.Contracts[addr]
		if !ok {
			pauseFetchContract(vm, snapshot, addr)
			return
		}
		codeBuf = c.Code.Buf()
	}
	vm.State.Memory.writeRange(destOff, codeBuf, srcOff, size)
	advance(vm, op)
}

func stepBlockHash(vm *VM, op OpCode) {
	numW, err := vm.State.Stack.pop()
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(vm.Block.Schedule.GBlockHash); err != nil {
		failErr(vm, err)
		return
	}
	lit, ok := numW.(expr.Lit)
	if !ok {
		if !pushOrFail(vm, expr.BlockHashExpr{BlockNum: numW}) {
			return
		}
		advance(vm, op)
		return
	}
	current := vm.Block.Number
	var lower uint256.Int
	if current.Uint64() > 256 {
		lower.SetUint64(current.Uint64() - 256)
	}
	if lit.Val.Lt(&lower) || lit.Val.Gt(current) || lit.Val.Eq(current) {
		if !pushOrFail(vm, expr.LitU64(0)) {
			return
		}
		advance(vm, op)
		return
	}
	hash := crypto.Keccak256([]byte(lit.Val.String()))
	var h uint256.Int
	h.SetBytes(hash)
	if !pushOrFail(vm, lit256(&h)) {
		return
	}
	advance(vm, op)
}

// --- memory opcodes ----------------------------------------------------

func stepMload(vm *VM, op OpCode) {
	offW, err := vm.State.Stack.pop()
	if err != nil {
		failErr(vm, err)
		return
	}
	offLit, ok := offW.(expr.Lit)
	if !ok {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic MLOAD offset"}))
		return
	}
	memExpand, err := vm.State.Memory.grow(vm.Block.Schedule, offLit.Val.Uint64(), 32)
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(memExpand + vm.Block.Schedule.GVeryLow); err != nil {
		failErr(vm, err)
		return
	}
	if !pushOrFail(vm, vm.State.Memory.readWordAt(offW)) {
		return
	}
	advance(vm, op)
}

func stepMstore(vm *VM, op OpCode) {
	offW, val, err := vm.State.Stack.pop2()
	if err != nil {
		failErr(vm, err)
		return
	}
	offLit, ok := offW.(expr.Lit)
	if !ok {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic MSTORE offset"}))
		return
	}
	memExpand, err := vm.State.Memory.grow(vm.Block.Schedule, offLit.Val.Uint64(), 32)
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(memExpand + vm.Block.Schedule.GVeryLow); err != nil {
		failErr(vm, err)
		return
	}
	vm.State.Memory.writeWord(offW, val)
	advance(vm, op)
}

func stepMstore8(vm *VM, op OpCode) {
	offW, val, err := vm.State.Stack.pop2()
	if err != nil {
		failErr(vm, err)
		return
	}
	offLit, ok := offW.(expr.Lit)
	if !ok {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic MSTORE8 offset"}))
		return
	}
	memExpand, err := vm.State.Memory.grow(vm.Block.Schedule, offLit.Val.Uint64(), 1)
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(memExpand + vm.Block.Schedule.GVeryLow); err != nil {
		failErr(vm, err)
		return
	}
	vm.State.Memory.writeByte(offW, expr.NewIndexWord(expr.LitU64(31), val))
	advance(vm, op)
}

// --- storage opcodes -----------------------------------------------

func stepSload(vm *VM, op OpCode) {
	snapshot := vm.State.Stack.clone()
	slot, err := vm.State.Stack.pop()
	if err != nil {
		failErr(vm, err)
		return
	}
	addr := vm.State.Contract
	slotLit, slotConcrete := slot.(expr.Lit)
	var warm bool
	var slotBytes [32]byte
	if slotConcrete {
		slotBytes = slotLit.Val.Bytes32()
		warm = vm.Tx.Substate.touchStorageKey(addr, slotBytes)
	}
	cost := vm.Block.Schedule.GWarmStorageRead
	if !warm {
		cost = vm.Block.Schedule.GColdSLoad
	}
	if err := vm.burn(cost); err != nil {
		failErr(vm, err)
		return
	}

	result := expr.NewSLoad(addrToWord(addr), slot, vm.Env.Storage)
	if _, ok := result.(expr.Lit); !ok && slotConcrete && vm.State.Code.External {
		vm.State.Stack = snapshot
		vm.Result = &Result{Success: false, Err: ErrQuery{Q: &Query{
			Kind: PleaseFetchSlot, Addr: addr, Slot: slotBytes, PC: iterKey{Addr: addr, PC: vm.State.PC},
		}}}
		return
	}
	if !pushOrFail(vm, result) {
		return
	}
	advance(vm, op)
}

func stepSstore(vm *VM, op OpCode) {
	if !checkNotStatic(vm) {
		return
	}
	slot, val, err := vm.State.Stack.pop2()
	if err != nil {
		failErr(vm, err)
		return
	}
	if vm.State.Gas <= vm.Block.Schedule.GCallStipend {
		vm.finishFrame(errored(ErrOutOfGas{Have: vm.State.Gas, Need: vm.Block.Schedule.GCallStipend + 1}))
		return
	}

	addr := vm.State.Contract
	slotLit, slotConcrete := slot.(expr.Lit)
	var warm bool
	var slotBytes [32]byte
	if slotConcrete {
		slotBytes = slotLit.Val.Bytes32()
		warm = vm.Tx.Substate.touchStorageKey(addr, slotBytes)
	}
	coldSurcharge := uint64(0)
	if slotConcrete && !warm {
		coldSurcharge = vm.Block.Schedule.GColdSLoad
	}

	current := expr.NewSLoad(addrToWord(addr), slot, vm.Env.Storage)
	currentLit, currentConcrete := current.(expr.Lit)
	newLit, newConcrete := val.(expr.Lit)

	var gasCost uint64
	var refundDelta int64
	if slotConcrete && currentConcrete && newConcrete {
		original := currentLit.Val
		if o, ok := vm.Env.OrigStorage[slotBytes]; ok {
			original = o
		} else {
			vm.Env.OrigStorage[slotBytes] = currentLit.Val
		}
		gasCost, refundDelta = sstoreCost(vm.Block.Schedule, original, currentLit.Val, newLit.Val, true)
	} else {
		gasCost, refundDelta = sstoreCost(vm.Block.Schedule, nil, nil, nil, false)
	}
	if err := vm.burn(coldSurcharge + gasCost); err != nil {
		failErr(vm, err)
		return
	}
	if refundDelta != 0 {
		vm.Tx.Substate.addRefund(addr, refundDelta)
	}

	vm.Env.Storage = expr.NewSStore(addrToWord(addr), slot, val, vm.Env.Storage)
	advance(vm, op)
}

// --- control flow --------------------------------------------------

func stepJump(vm *VM, op OpCode, code []byte) {
	dest, err := vm.State.Stack.pop()
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(vm.Block.Schedule.GMid); err != nil {
		failErr(vm, err)
		return
	}
	destLit, ok := dest.(expr.Lit)
	if !ok {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic JUMP destination"}))
		return
	}
	destPC := destLit.Val.Uint64()
	if !isValidJumpDest(vm.State.Code, code, destPC) {
		vm.finishFrame(errored(ErrBadJumpDestination{}))
		return
	}
	vm.State.PC = destPC
}

// stepJumpi implements JUMPI, including spec §8 scenario S5: a symbolic
// condition suspends with PleaseAskSMT rather than deciding arbitrarily.
// Cache.PathChoices lets the retry after resume skip re-emitting the
// same query, matching the non-closure continuation design (spec §9).
func stepJumpi(vm *VM, op OpCode, code []byte) {
	snapshot := vm.State.Stack.clone()
	dest, cond, err := vm.State.Stack.pop2()
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(vm.Block.Schedule.GHigh); err != nil {
		failErr(vm, err)
		return
	}

	destLit, destOk := dest.(expr.Lit)
	if !destOk {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic JUMPI destination"}))
		return
	}

	var taken bool
	if condLit, ok := cond.(expr.Lit); ok {
		taken = !condLit.Val.IsZero()
	} else {
		key := iterKey{Addr: vm.State.Contract, PC: vm.State.PC}
		t, ok := vm.Cache.PathChoices[key]
		if !ok {
			vm.State.Stack = snapshot
			vm.Result = &Result{Success: false, Err: ErrQuery{Q: &Query{
				Kind: PleaseAskSMT, Cond: expr.NewPGt(cond, expr.LitU64(0)), PC: key,
			}}}
			return
		}
		taken = t
	}

	if !taken {
		advance(vm, op)
		return
	}
	destPC := destLit.Val.Uint64()
	if !isValidJumpDest(vm.State.Code, code, destPC) {
		vm.finishFrame(errored(ErrBadJumpDestination{}))
		return
	}
	vm.State.PC = destPC
}

// --- PUSH/DUP/SWAP/LOG -----------------------------------------------

func pushGas(op OpCode, fee FeeSchedule) uint64 {
	if op == PUSH0 {
		return fee.GBase
	}
	return fee.GVeryLow
}

func stepPush(vm *VM, op OpCode, code []byte) {
	if err := vm.burn(pushGas(op, vm.Block.Schedule)); err != nil {
		failErr(vm, err)
		return
	}
	n := pushBytes(op)
	var buf [32]byte
	start := vm.State.PC + 1
	for i := 0; i < n; i++ {
		idx := start + uint64(i)
		if idx < uint64(len(code)) {
			buf[32-n+i] = code[idx]
		}
	}
	var v uint256.Int
	v.SetBytes(buf[:])
	if !pushOrFail(vm, expr.Lit{Val: &v}) {
		return
	}
	advance(vm, op)
}

func stepDup(vm *VM, op OpCode) {
	n := int(op - DUP1)
	if err := vm.burn(vm.Block.Schedule.GVeryLow); err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.State.Stack.dup(n); err != nil {
		failErr(vm, err)
		return
	}
	advance(vm, op)
}

func stepSwap(vm *VM, op OpCode) {
	n := int(op-SWAP1) + 1
	if err := vm.burn(vm.Block.Schedule.GVeryLow); err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.State.Stack.swap(n); err != nil {
		failErr(vm, err)
		return
	}
	advance(vm, op)
}

func stepLog(vm *VM, op OpCode) {
	if !checkNotStatic(vm) {
		return
	}
	n := int(op - LOG0)
	off, size, err := vm.State.Stack.pop2()
	if err != nil {
		failErr(vm, err)
		return
	}
	topics := make([]expr.Word, n)
	for i := 0; i < n; i++ {
		t, err := vm.State.Stack.pop()
		if err != nil {
			failErr(vm, err)
			return
		}
		topics[i] = t
	}
	offLit, offOk := off.(expr.Lit)
	sizeLit, szOk := size.(expr.Lit)
	if !offOk || !szOk {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic LOG offset/size"}))
		return
	}
	length := sizeLit.Val.Uint64()
	memExpand, err := vm.State.Memory.grow(vm.Block.Schedule, offLit.Val.Uint64(), length)
	if err != nil {
		failErr(vm, err)
		return
	}
	cost := vm.Block.Schedule.GLog + uint64(n)*vm.Block.Schedule.GLogTopic + length*vm.Block.Schedule.GLogData
	if err := vm.burn(memExpand + cost); err != nil {
		failErr(vm, err)
		return
	}

	data := vm.State.Memory.readRange(off, size)
	entry := expr.LogExpr{Addr: addrToWord(vm.State.Contract), Topics: topics, Data: data}
	vm.Logs = append([]expr.Word{entry}, vm.Logs...)
	advance(vm, op)
}

// --- SHA3 ---------------------------------------------------------

func stepSha3(vm *VM, op OpCode) {
	off, size, err := vm.State.Stack.pop2()
	if err != nil {
		failErr(vm, err)
		return
	}
	offLit, offOk := off.(expr.Lit)
	sizeLit, sizeOk := size.(expr.Lit)
	if !offOk || !sizeOk {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic SHA3 offset/size"}))
		return
	}
	length := sizeLit.Val.Uint64()
	memExpand, err := vm.State.Memory.grow(vm.Block.Schedule, offLit.Val.Uint64(), length)
	if err != nil {
		failErr(vm, err)
		return
	}
	cost := vm.Block.Schedule.GSha3 + vm.Block.Schedule.GSha3Word*ceilDiv32(length)
	if err := vm.burn(memExpand + cost); err != nil {
		failErr(vm, err)
		return
	}

	region := vm.State.Memory.readRange(off, size)
	hash := expr.NewKeccak(region)
	if hl, ok := hash.(expr.Lit); ok {
		if preimage, ok := expr.ConcreteBytes(region, length); ok {
			vm.Env.Sha3Crack[hl.Val.Bytes32()] = preimage
		}
		vm.KeccakEqs = append(vm.KeccakEqs, expr.NewPEq(hash, expr.KeccakExpr{Buf: region}))
	}
	if !pushOrFail(vm, hash) {
		return
	}
	advance(vm, op)
}

// --- CREATE / CREATE2 -----------------------------------------------

func createAddress(sender types.Address, nonce uint64) types.Address {
	enc, _ := rlp.EncodeToBytes([]interface{}{sender.Bytes(), nonce})
	return types.BytesToAddress(crypto.Keccak256(enc)[12:])
}

func create2Address(sender types.Address, salt [32]byte, initHash []byte) types.Address {
	data := make([]byte, 0, 1+20+32+32)
	data = append(data, 0xff)
	data = append(data, sender[:]...)
	data = append(data, salt[:]...)
	data = append(data, initHash...)
	return types.BytesToAddress(crypto.Keccak256(data)[12:])
}

// stepCreate implements CREATE/CREATE2 (spec §4.5): pre-flight checks
// run before any of the create-specific cost is reserved, and a failure
// there pushes 0 and falls through to the next instruction rather than
// failing the frame (spec §8 scenario S6 covers the 0xEF rejection path
// inside the *child* frame, a separate case from these pre-flight checks).
func stepCreate(vm *VM, op OpCode) {
	if !checkNotStatic(vm) {
		return
	}
	value, offset, size, err := vm.State.Stack.pop3()
	if err != nil {
		failErr(vm, err)
		return
	}
	var salt expr.Word
	if op == CREATE2 {
		salt, err = vm.State.Stack.pop()
		if err != nil {
			failErr(vm, err)
			return
		}
	}

	valueLit, vOk := value.(expr.Lit)
	offLit, offOk := offset.(expr.Lit)
	sizeLit, szOk := size.(expr.Lit)
	if !vOk || !offOk || !szOk {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic CREATE operand"}))
		return
	}
	var saltVal *uint256.Int
	if op == CREATE2 {
		sl, ok := salt.(expr.Lit)
		if !ok {
			vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic CREATE2 salt"}))
			return
		}
		saltVal = sl.Val
	}

	initOff, initSize := offLit.Val.Uint64(), sizeLit.Val.Uint64()
	memExpand, err := vm.State.Memory.grow(vm.Block.Schedule, initOff, initSize)
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(memExpand); err != nil {
		failErr(vm, err)
		return
	}

	initBuf := vm.State.Memory.readRange(offset, size)
	initBytes, initConcrete := expr.ConcreteBytes(initBuf, initSize)

	var hashSize uint64
	if op == CREATE2 {
		hashSize = initSize
	}
	reserved, initGas := createGasParams(vm.Block.Schedule, vm.State.Gas, hashSize)

	sender := vm.State.Contract
	senderAcct, ok := vm.Env.Contracts[sender]
	if !ok {
		senderAcct = ensureAccount(vm, sender)
	}

	fail := senderAcct.Nonce == ^uint64(0) ||
		(senderAcct.Balance == nil || senderAcct.Balance.Lt(valueLit.Val)) ||
		len(vm.Frames) >= maxCallDepth

	var newAddr types.Address
	if !fail {
		if op == CREATE {
			newAddr = createAddress(sender, senderAcct.Nonce)
		} else {
			initHash := crypto.Keccak256(initBytes)
			var saltBytes [32]byte
			if saltVal != nil {
				saltBytes = saltVal.Bytes32()
			}
			newAddr = create2Address(sender, saltBytes, initHash)
		}
		if existing, ok := vm.Env.Contracts[newAddr]; ok {
			if existing.Nonce != 0 {
				fail = true
			} else if b, ok := existing.Code.Bytes(); ok && len(b) != 0 {
				fail = true
			}
		}
	}

	if fail {
		pushStackOrPanic(vm.State, 0)
		advance(vm, op)
		return
	}

	if err := vm.burn(reserved); err != nil {
		failErr(vm, err)
		return
	}
	senderAcct.Nonce++

	reversionContracts := snapshotContracts(vm.Env.Contracts)
	reversionSubstate := vm.Tx.Substate.clone()

	senderAcct.Balance = new(uint256.Int).Sub(senderAcct.Balance, valueLit.Val)

	var code ContractCode
	if initConcrete {
		code = InitCode{ConcretePrefix: initBytes}
	} else {
		code = InitCode{AbstractTail: initBuf}
	}
	callee := NewContract(code, new(uint256.Int).Set(valueLit.Val), 0, types.Hash{}, false)
	vm.Env.Contracts[newAddr] = callee
	vm.Tx.Substate.touchAddress(newAddr)
	vm.Tx.Substate.touchAccount(newAddr)

	childState := newFrameState(newAddr, callee, sender, expr.ConcreteBuf{Bytes: nil}, expr.LitU64(0), initGas, false)
	if err := vm.pushFrame(CreationContext{
		Addr: newAddr, Codehash: types.Hash{},
		Reversion: reversionContracts, SubstateSnapshot: reversionSubstate,
	}, childState); err != nil {
		failErr(vm, err)
		return
	}
}

// --- CALL / CALLCODE / DELEGATECALL / STATICCALL -----------------------

func gasReqU64(w expr.Word, avail uint64) uint64 {
	lit, ok := w.(expr.Lit)
	if !ok {
		return avail
	}
	if lit.Val.Gt(uint256.NewInt(avail)) {
		return avail
	}
	return lit.Val.Uint64()
}

func valueOrNil(w expr.Word) *uint256.Int {
	if lit, ok := w.(expr.Lit); ok {
		return lit.Val
	}
	return nil
}

func copyCallOutput(vm *VM, outOff, outSize uint64, output []byte) {
	vm.State.ReturnData = expr.ConcreteBuf{Bytes: output}
	n := outSize
	if uint64(len(output)) < n {
		n = uint64(len(output))
	}
	if n == 0 {
		return
	}
	vm.State.Memory.writeRange(expr.LitU64(outOff), expr.ConcreteBuf{Bytes: output}, expr.LitU64(0), expr.LitU64(n))
}

// computePrecompileCost adapts gas_table.go's precompileCost, handling
// MODEXP's header-derived complexity and BLAKE2F's round count (carried
// in the first 4 input bytes rather than the input length).
func computePrecompileCost(fee FeeSchedule, id byte, input []byte) (uint64, bool) {
	switch id {
	case 5:
		padded := make([]byte, 96)
		copy(padded, input)
		baseLen := new(big.Int).SetBytes(padded[0:32]).Uint64()
		expLen := new(big.Int).SetBytes(padded[32:64]).Uint64()
		modLen := new(big.Int).SetBytes(padded[64:96]).Uint64()
		var rest []byte
		if len(input) > 96 {
			rest = input[96:]
		}
		headLen := expLen
		if headLen > 32 {
			headLen = 32
		}
		expHead := new(big.Int).SetBytes(modExpSlice(rest, baseLen, headLen))
		cost := modExpComplexity(baseLen, expLen, modLen, expHead)
		if cost < fee.GModExpMin {
			cost = fee.GModExpMin
		}
		return cost, true
	case 9:
		if len(input) < 4 {
			return 0, false
		}
		rounds := binary.BigEndian.Uint32(input[:4])
		return fee.GBlake2FPerRound * uint64(rounds), true
	default:
		return precompileCost(fee, id, uint64(len(input)), nil)
	}
}

// stepCall implements CALL/CALLCODE/DELEGATECALL/STATICCALL via the
// spec's delegateCall dispatch: a concrete target in 1..9 runs a
// precompile inline, the cheatCode address dispatches a cheat action,
// and anything else pushes a real CallContext frame (spec §4.5, §4.6).
func stepCall(vm *VM, op OpCode) {
	hasValue := op == CALL || op == CALLCODE
	n := 6
	if hasValue {
		n = 7
	}
	snapshot := vm.State.Stack.clone()
	ops := make([]expr.Word, n)
	for i := 0; i < n; i++ {
		w, err := vm.State.Stack.pop()
		if err != nil {
			failErr(vm, err)
			return
		}
		ops[i] = w
	}
	idx := 0
	gasReq := ops[idx]
	idx++
	addrW := ops[idx]
	idx++
	var value expr.Word = expr.LitU64(0)
	if hasValue {
		value = ops[idx]
		idx++
	}
	argsOff := ops[idx]
	idx++
	argsSize := ops[idx]
	idx++
	retOff := ops[idx]
	idx++
	retSize := ops[idx]

	if op == CALL && vm.State.Static {
		if v, ok := value.(expr.Lit); !ok || !v.Val.IsZero() {
			vm.finishFrame(errored(ErrStateChangeWhileStatic{}))
			return
		}
	}

	addrLit, addrOk := addrW.(expr.Lit)
	argOffLit, aOk := argsOff.(expr.Lit)
	argSzLit, sOk := argsSize.(expr.Lit)
	retOffLit, rOk := retOff.(expr.Lit)
	retSzLit, rsOk := retSize.(expr.Lit)
	if !addrOk || !aOk || !sOk || !rOk || !rsOk {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic CALL operand"}))
		return
	}
	b32 := addrLit.Val.Bytes32()
	target := types.BytesToAddress(b32[12:])
	argOff, argSz := argOffLit.Val.Uint64(), argSzLit.Val.Uint64()
	rOff, rSz := retOffLit.Val.Uint64(), retSzLit.Val.Uint64()

	inExpand, err := vm.State.Memory.grow(vm.Block.Schedule, argOff, argSz)
	if err != nil {
		failErr(vm, err)
		return
	}
	outExpand, err := vm.State.Memory.grow(vm.Block.Schedule, rOff, rSz)
	if err != nil {
		failErr(vm, err)
		return
	}

	warm := vm.Tx.Substate.touchAddress(target)
	_, recipientExists := vm.Env.Contracts[target]
	if !recipientExists {
		if _, isP := isPrecompile(target); isP || target == cheatAddress {
			recipientExists = true
		}
	}
	extra, callGas := callGasParams(vm.Block.Schedule, warm, gasReqU64(gasReq, vm.State.Gas), vm.State.Gas-inExpand-outExpand, valueOrNil(value), recipientExists)

	if err := vm.burn(inExpand + outExpand + extra); err != nil {
		failErr(vm, err)
		return
	}

	callData := vm.State.Memory.readRange(argsOff, argsSize)

	if id, ok := isPrecompile(target); ok {
		input, _ := expr.ConcreteBytes(callData, argSz)
		cost, okCost := computePrecompileCost(vm.Block.Schedule, id, input)
		if !okCost || callGas < cost {
			pushStackOrPanic(vm.State, 0)
			advance(vm, op)
			return
		}
		out, okRun := runPrecompile(id, input)
		if !okRun {
			pushStackOrPanic(vm.State, 0)
			advance(vm, op)
			return
		}
		copyCallOutput(vm, rOff, rSz, out)
		pushStackOrPanic(vm.State, 1)
		advance(vm, op)
		return
	}

	if target == cheatAddress {
		input, cOk := expr.ConcreteBytes(callData, argSz)
		if !cOk {
			vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic cheat calldata"}))
			return
		}
		out, outcome := dispatchCheatCode(vm, input)
		if outcome == cheatPending {
			vm.State.Stack = snapshot
			return
		}
		copyCallOutput(vm, rOff, rSz, out)
		if outcome == cheatOK {
			pushStackOrPanic(vm.State, 1)
		} else {
			pushStackOrPanic(vm.State, 0)
		}
		advance(vm, op)
		return
	}

	callee, ok := vm.Env.Contracts[target]
	if !ok {
		pauseFetchContract(vm, snapshot, target)
		return
	}

	caller := vm.State.Contract
	self := target
	static := vm.State.Static
	switch op {
	case CALLCODE:
		self = vm.State.Contract
	case DELEGATECALL:
		self = vm.State.Contract
		caller = vm.State.Caller
		value = vm.State.CallValue
	case STATICCALL:
		static = true
	}
	if vm.OverrideCaller != nil && op != DELEGATECALL {
		caller = *vm.OverrideCaller
		vm.OverrideCaller = nil
	}

	if valLit, ok := value.(expr.Lit); ok && !valLit.Val.IsZero() && (op == CALL || op == CALLCODE) {
		srcAcct, srcOk := vm.Env.Contracts[vm.State.Contract]
		if !srcOk || srcAcct.Balance == nil || srcAcct.Balance.Lt(valLit.Val) {
			pushStackOrPanic(vm.State, 0)
			advance(vm, op)
			return
		}
	}

	reversionContracts := snapshotContracts(vm.Env.Contracts)
	reversionStorage := vm.Env.Storage
	reversionSubstate := vm.Tx.Substate.clone()

	if valLit, ok := value.(expr.Lit); ok && !valLit.Val.IsZero() && (op == CALL || op == CALLCODE) {
		srcAcct := vm.Env.Contracts[vm.State.Contract]
		srcAcct.Balance = new(uint256.Int).Sub(srcAcct.Balance, valLit.Val)
		dstAcct := ensureAccount(vm, target)
		dstAcct.Balance = new(uint256.Int).Add(dstAcct.Balance, valLit.Val)
	}

	childState := newFrameState(self, callee, caller, callData, value, callGas, static)
	ctx := CallContext{
		Target: target, Context: self, OutOff: rOff, OutSize: rSz,
		Codehash: callee.Codehash, CallData: callData, Substate: reversionSubstate,
	}
	ctx.Reversion.Contracts = reversionContracts
	ctx.Reversion.Storage = reversionStorage
	if err := vm.pushFrame(ctx, childState); err != nil {
		failErr(vm, err)
		return
	}
}

// --- RETURN / REVERT / SELFDESTRUCT -----------------------------------

func stepReturn(vm *VM, op OpCode) {
	off, size, err := vm.State.Stack.pop2()
	if err != nil {
		failErr(vm, err)
		return
	}
	offLit, offOk := off.(expr.Lit)
	sizeLit, szOk := size.(expr.Lit)
	if !offOk || !szOk {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic RETURN offset/size"}))
		return
	}
	length := sizeLit.Val.Uint64()
	memExpand, err := vm.State.Memory.grow(vm.Block.Schedule, offLit.Val.Uint64(), length)
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(memExpand); err != nil {
		failErr(vm, err)
		return
	}
	outBuf := vm.State.Memory.readRange(off, size)
	output, ok := expr.ConcreteBytes(outBuf, length)
	if !ok {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic RETURN output"}))
		return
	}

	if vm.inCreation() {
		if len(output) > 0 && output[0] == 0xEF {
			vm.finishFrame(errored(ErrInvalidFormat{}))
			return
		}
		if uint64(len(output)) > vm.Block.MaxCodeSize {
			vm.finishFrame(errored(ErrMaxCodeSizeExceeded{Limit: vm.Block.MaxCodeSize, Size: uint64(len(output))}))
			return
		}
		if err := vm.burn(vm.Block.Schedule.GCodeDeposit * uint64(len(output))); err != nil {
			failErr(vm, err)
			return
		}
	}
	vm.finishFrame(returned(output))
}

func stepRevert(vm *VM, op OpCode) {
	off, size, err := vm.State.Stack.pop2()
	if err != nil {
		failErr(vm, err)
		return
	}
	offLit, offOk := off.(expr.Lit)
	sizeLit, szOk := size.(expr.Lit)
	if !offOk || !szOk {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic REVERT offset/size"}))
		return
	}
	length := sizeLit.Val.Uint64()
	memExpand, err := vm.State.Memory.grow(vm.Block.Schedule, offLit.Val.Uint64(), length)
	if err != nil {
		failErr(vm, err)
		return
	}
	if err := vm.burn(memExpand); err != nil {
		failErr(vm, err)
		return
	}
	outBuf := vm.State.Memory.readRange(off, size)
	output, _ := expr.ConcreteBytes(outBuf, length)
	vm.finishFrame(reverted(output))
}

// stepSelfDestruct implements SELFDESTRUCT as a normal successful halt
// (spec §4.6's frame outcomes only revert state for Reverted/Errored;
// self-destruction is neither, so it finishes via returned(nil), even
// though errors.go also carries a vestigial ErrSelfDestruction type
// from the wider error taxonomy that this path does not use).
func stepSelfDestruct(vm *VM, op OpCode) {
	if !checkNotStatic(vm) {
		return
	}
	beneficiaryW, err := vm.State.Stack.pop()
	if err != nil {
		failErr(vm, err)
		return
	}
	lit, ok := beneficiaryW.(expr.Lit)
	if !ok {
		vm.finishFrame(errored(ErrUnexpectedSymbolicArg{PC: vm.State.PC, Msg: "symbolic SELFDESTRUCT beneficiary"}))
		return
	}
	b32 := lit.Val.Bytes32()
	beneficiary := types.BytesToAddress(b32[12:])

	warm := vm.Tx.Substate.touchAddress(beneficiary)
	self := vm.State.Contract
	selfAcct := vm.Env.Contracts[self]
	_, beneficiaryExists := vm.Env.Contracts[beneficiary]
	hasFunds := selfAcct != nil && selfAcct.Balance != nil && !selfAcct.Balance.IsZero()

	cost := vm.Block.Schedule.GSelfDestruct
	if !warm {
		cost += vm.Block.Schedule.GColdAccountAccess
	}
	if !beneficiaryExists && hasFunds {
		cost += vm.Block.Schedule.GSelfDestructNewAccount
	}
	if err := vm.burn(cost); err != nil {
		failErr(vm, err)
		return
	}

	vm.Tx.Substate.addSelfdestruct(self)
	if hasFunds && beneficiary != self {
		dst := ensureAccount(vm, beneficiary)
		dst.Balance = new(uint256.Int).Add(dst.Balance, selfAcct.Balance)
		selfAcct.Balance = uint256.NewInt(0)
	}
	vm.finishFrame(returned(nil))
}
