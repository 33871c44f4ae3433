package vm

import (
	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
	"github.com/hevmgo/sevm/core/vm/expr"
)

// FrameContext is spec §4.6's immutable per-frame metadata, distinguishing
// a CALL-family activation from a CREATE/CREATE2 activation.
type FrameContext interface {
	isFrameContext()
}

// CreationContext is installed when CREATE/CREATE2 pushes a new frame.
type CreationContext struct {
	Addr      types.Address
	Codehash  types.Hash
	Reversion contractsSnapshot
	SubstateSnapshot *Substate
}

func (CreationContext) isFrameContext() {}

// CallContext is installed when a CALL-family opcode pushes a new frame.
type CallContext struct {
	Target    types.Address
	Context   types.Address // "self" the callee executes as (differs from Target for DELEGATECALL)
	OutOff    uint64
	OutSize   uint64
	Codehash  types.Hash
	CallData  expr.Buf
	Reversion struct {
		Contracts contractsSnapshot
		Storage   expr.Storage
	}
	Substate *Substate
}

func (CallContext) isFrameContext() {}

// contractsSnapshot is a copy of Env.Contracts taken at frame entry:
// snapshotContracts copies each Contract struct into the new map, so
// later in-place mutations of the live Contracts (nonce, balance) do
// not reach the snapshot.
type contractsSnapshot map[types.Address]*Contract

func snapshotContracts(contracts map[types.Address]*Contract) contractsSnapshot {
	out := make(contractsSnapshot, len(contracts))
	for k, v := range contracts {
		cp := *v
		out[k] = &cp
	}
	return out
}

func restoreContracts(dst map[types.Address]*Contract, snap contractsSnapshot) {
	for k := range dst {
		delete(dst, k)
	}
	for k, v := range snap {
		dst[k] = v
	}
}

// Frame is one suspended parent activation: the state it had when it
// pushed a child frame, plus that child's FrameContext (spec §3.2).
type Frame struct {
	State   *FrameState
	Context FrameContext
}

// pushFrame installs callee as the running frame, saving the caller's
// current state (post-operand-pop) onto vm.Frames (spec §4.6).
func (vm *VM) pushFrame(ctx FrameContext, callee *FrameState) error {
	if len(vm.Frames) >= maxCallDepth {
		return ErrCallDepthLimitReached{}
	}
	vm.Frames = append(vm.Frames, &Frame{State: vm.State, Context: ctx})
	vm.State = callee
	return nil
}

const maxCallDepth = 1024

// frameOutcome is how a frame ended, passed to finishFrame (spec §4.6).
type frameOutcome struct {
	kind   outcomeKind
	output []byte
	err    Error
}

type outcomeKind int

const (
	outcomeReturned outcomeKind = iota
	outcomeReverted
	outcomeErrored
)

func returned(output []byte) frameOutcome { return frameOutcome{kind: outcomeReturned, output: output} }
func reverted(output []byte) frameOutcome { return frameOutcome{kind: outcomeReverted, output: output} }
func errored(err Error) frameOutcome      { return frameOutcome{kind: outcomeErrored, err: err} }

// finishFrame pops the current frame with the given outcome. If no
// parent remains, it sets vm.Result and runs finalize (spec §4.6, §4.7).
func (vm *VM) finishFrame(how frameOutcome) {
	if len(vm.Frames) == 0 {
		vm.finishRoot(how)
		return
	}
	n := len(vm.Frames) - 1
	frame := vm.Frames[n]
	vm.Frames = vm.Frames[:n]

	remaining := vm.State.Gas
	parent := frame.State
	vm.Burned -= remaining
	parent.Gas += remaining

	switch ctx := frame.Context.(type) {
	case CallContext:
		vm.finishCallFrame(ctx, parent, how)
	case CreationContext:
		vm.finishCreationFrame(ctx, parent, how)
	}
	vm.State = parent
}

func (vm *VM) finishCallFrame(ctx CallContext, parent *FrameState, how frameOutcome) {
	switch how.kind {
	case outcomeReturned:
		pushStackOrPanic(parent, 1)
		copyOutput(parent, ctx.OutOff, ctx.OutSize, how.output)
		parent.ReturnData = expr.ConcreteBuf{Bytes: how.output}
	case outcomeReverted:
		restoreContracts(vm.Env.Contracts, ctx.Reversion.Contracts)
		vm.Env.Storage = ctx.Reversion.Storage
		vm.Tx.Substate.restoreFrom(ctx.Substate)
		pushStackOrPanic(parent, 0)
		copyOutput(parent, ctx.OutOff, ctx.OutSize, how.output)
		parent.ReturnData = expr.ConcreteBuf{Bytes: how.output}
	case outcomeErrored:
		restoreContracts(vm.Env.Contracts, ctx.Reversion.Contracts)
		vm.Env.Storage = ctx.Reversion.Storage
		vm.Tx.Substate.restoreFrom(ctx.Substate)
		pushStackOrPanic(parent, 0)
		parent.ReturnData = expr.ConcreteBuf{Bytes: nil}
	}
}

func (vm *VM) finishCreationFrame(ctx CreationContext, parent *FrameState, how frameOutcome) {
	switch how.kind {
	case outcomeReturned:
		if c, ok := vm.Env.Contracts[ctx.Addr]; ok {
			replaced := *c
			replaced.Code = ConcreteRuntime{Code: how.output}
			replaced.OpIxMap = mkOpIxMap(how.output)
			replaced.CodeOps = mkCodeOps(how.output)
			vm.Env.Contracts[ctx.Addr] = &replaced
		}
		pushAddress(parent, ctx.Addr)
	case outcomeReverted, outcomeErrored:
		restoreContracts(vm.Env.Contracts, ctx.Reversion)
		vm.Tx.Substate.restoreFrom(ctx.SubstateSnapshot)
		// the creator's nonce bump survives the revert (spec §4.6).
		pushStackOrPanic(parent, 0)
	}
}

func pushStackOrPanic(state *FrameState, v uint64) {
	_ = state.Stack.push(expr.LitU64(v))
}

func pushAddress(state *FrameState, addr types.Address) {
	var w uint256.Int
	w.SetBytes(addr[:])
	_ = state.Stack.push(expr.Lit{Val: &w})
}

func copyOutput(state *FrameState, outOff, outSize uint64, output []byte) {
	n := outSize
	if uint64(len(output)) < n {
		n = uint64(len(output))
	}
	if n == 0 {
		return
	}
	state.Memory.writeRange(expr.LitU64(outOff), expr.ConcreteBuf{Bytes: output}, expr.LitU64(0), expr.LitU64(n))
}

// finishRoot handles the outermost frame popping, deferring to finalize.
func (vm *VM) finishRoot(how frameOutcome) {
	switch how.kind {
	case outcomeReturned:
		if vm.Tx.IsCreate {
			if c, ok := vm.Env.Contracts[vm.Tx.CreateAddr]; ok {
				replaced := *c
				replaced.Code = ConcreteRuntime{Code: how.output}
				replaced.OpIxMap = mkOpIxMap(how.output)
				replaced.CodeOps = mkCodeOps(how.output)
				vm.Env.Contracts[vm.Tx.CreateAddr] = &replaced
			}
		}
		vm.Result = &Result{Success: true, Output: how.output}
	case outcomeReverted:
		vm.Result = &Result{Success: false, Output: how.output, Err: ErrRevert{Output: how.output}}
	case outcomeErrored:
		vm.Result = &Result{Success: false, Err: how.err}
	}
	finalize(vm)
}
