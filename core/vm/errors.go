package vm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/vm/expr"
)

// Error is the closed taxonomy of ways a step or a frame can fail. It is
// returned instead of panicking so finishFrame is the single unwind path
// (spec §7).
type Error interface {
	error
	isVMError()
}

type ErrBalanceTooLow struct{ Have, Want *uint256.Int }

func (e ErrBalanceTooLow) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, want %s", e.Have, e.Want)
}
func (ErrBalanceTooLow) isVMError() {}

type ErrUnrecognizedOpcode struct{ Op byte }

func (e ErrUnrecognizedOpcode) Error() string {
	return fmt.Sprintf("unrecognized opcode 0x%02x", e.Op)
}
func (ErrUnrecognizedOpcode) isVMError() {}

type ErrSelfDestruction struct{}

func (ErrSelfDestruction) Error() string { return "self destruction" }
func (ErrSelfDestruction) isVMError()    {}

type ErrStackUnderrun struct{}

func (ErrStackUnderrun) Error() string { return "stack underrun" }
func (ErrStackUnderrun) isVMError()    {}

type ErrBadJumpDestination struct{}

func (ErrBadJumpDestination) Error() string { return "bad jump destination" }
func (ErrBadJumpDestination) isVMError()    {}

type ErrRevert struct{ Output []byte }

func (e ErrRevert) Error() string { return "execution reverted" }
func (ErrRevert) isVMError()      {}

type ErrOutOfGas struct{ Have, Need uint64 }

func (e ErrOutOfGas) Error() string {
	return fmt.Sprintf("out of gas: have %d, need %d", e.Have, e.Need)
}
func (ErrOutOfGas) isVMError() {}

type ErrBadCheatCode struct{ Selector *uint32 }

func (ErrBadCheatCode) Error() string { return "bad cheat code selector" }
func (ErrBadCheatCode) isVMError()    {}

type ErrStackLimitExceeded struct{}

func (ErrStackLimitExceeded) Error() string { return "stack limit exceeded" }
func (ErrStackLimitExceeded) isVMError()    {}

type ErrIllegalOverflow struct{}

func (ErrIllegalOverflow) Error() string { return "illegal 64-bit offset overflow" }
func (ErrIllegalOverflow) isVMError()    {}

// ErrQuery wraps a pending Query; the VM's result channel carries this
// the same way it carries any other failure (spec §4.8, §7).
type ErrQuery struct{ Q *Query }

func (ErrQuery) Error() string { return "paused on query" }
func (ErrQuery) isVMError()    {}

type ErrChoose struct{ Q *Query }

func (ErrChoose) Error() string { return "paused choosing a path" }
func (ErrChoose) isVMError()    {}

type ErrStateChangeWhileStatic struct{}

func (ErrStateChangeWhileStatic) Error() string { return "state change while static" }
func (ErrStateChangeWhileStatic) isVMError()    {}

type ErrInvalidMemoryAccess struct{}

func (ErrInvalidMemoryAccess) Error() string { return "invalid memory access" }
func (ErrInvalidMemoryAccess) isVMError()    {}

type ErrCallDepthLimitReached struct{}

func (ErrCallDepthLimitReached) Error() string { return "call depth limit reached" }
func (ErrCallDepthLimitReached) isVMError()    {}

type ErrMaxCodeSizeExceeded struct{ Limit, Size uint64 }

func (e ErrMaxCodeSizeExceeded) Error() string {
	return fmt.Sprintf("max code size exceeded: %d > %d", e.Size, e.Limit)
}
func (ErrMaxCodeSizeExceeded) isVMError() {}

type ErrInvalidFormat struct{}

func (ErrInvalidFormat) Error() string { return "invalid code format (0xEF prefix)" }
func (ErrInvalidFormat) isVMError()    {}

type ErrPrecompileFailure struct{}

func (ErrPrecompileFailure) Error() string { return "precompile execution failed" }
func (ErrPrecompileFailure) isVMError()    {}

type ErrUnexpectedSymbolicArg struct {
	PC   uint64
	Msg  string
	Args []any
}

func (e ErrUnexpectedSymbolicArg) Error() string {
	return fmt.Sprintf("unexpected symbolic argument at pc=%d: %s", e.PC, e.Msg)
}
func (ErrUnexpectedSymbolicArg) isVMError() {}

type ErrDeadPath struct{}

func (ErrDeadPath) Error() string { return "dead path: inconsistent constraints" }
func (ErrDeadPath) isVMError()    {}

type ErrNotUnique struct{ Expr expr.Word }

func (ErrNotUnique) Error() string { return "expression is not uniquely determined" }
func (ErrNotUnique) isVMError()    {}

type ErrSMTTimeout struct{}

func (ErrSMTTimeout) Error() string { return "SMT solver timed out" }
func (ErrSMTTimeout) isVMError()    {}

type ErrFFI struct{ Values []string }

func (ErrFFI) Error() string { return "ffi failure" }
func (ErrFFI) isVMError()    {}

type ErrNonceOverflow struct{}

func (ErrNonceOverflow) Error() string { return "nonce overflow" }
func (ErrNonceOverflow) isVMError()    {}
