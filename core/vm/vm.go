package vm

import (
	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
	"github.com/hevmgo/sevm/core/vm/expr"
	"github.com/hevmgo/sevm/log"
)

var vmLog = log.Default().Module("vm")

// FrameState is spec §3.2's per-activation state: program counter,
// stack, memory, and everything else that gets swapped out wholesale on
// CALL/CREATE push and pop.
type FrameState struct {
	PC         uint64
	Stack      *Stack
	Memory     *Memory
	Calldata   expr.Buf
	CallValue  expr.Word
	Caller     types.Address
	Contract   types.Address
	Code       *Contract
	Gas        uint64
	ReturnData expr.Buf
	Static     bool
}

func newFrameState(contract types.Address, code *Contract, caller types.Address, calldata expr.Buf, value expr.Word, gas uint64, static bool) *FrameState {
	return &FrameState{
		PC: 0, Stack: newStack(), Memory: newMemory(),
		Calldata: calldata, CallValue: value, Caller: caller, Contract: contract,
		Code: code, Gas: gas, ReturnData: expr.ConcreteBuf{Bytes: nil}, Static: static,
	}
}

// Env is spec §3.2's process-wide state shared across every frame.
type Env struct {
	Contracts        map[types.Address]*Contract
	ChainID          *uint256.Int
	Storage          expr.Storage
	OrigStorage      map[[32]byte]*uint256.Int // per-tx snapshot, for SSTORE gas/refund math
	Sha3Crack        map[[32]byte][]byte        // concrete keccak preimages
	TransientStorage expr.Storage               // EIP-1153 slot; no opcode reads, writes or clears it
}

// Block is spec §3.2's block context.
type Block struct {
	Coinbase      types.Address
	Timestamp     *uint256.Int
	Number        *uint256.Int
	PrevRandao    *uint256.Int
	GasLimit      uint64
	BaseFee       *uint256.Int
	MaxCodeSize   uint64
	Schedule      FeeSchedule
}

// Tx is spec §3.2's transaction context.
type Tx struct {
	GasPrice             *uint256.Int
	GasLimit             uint64
	PriorityFee          *uint256.Int
	Origin               types.Address
	To                   *types.Address // nil for a creation transaction
	CreateAddr           types.Address  // valid iff IsCreate: the precomputed new-contract address
	Value                *uint256.Int
	IsCreate             bool
	Substate             *Substate
	ContractsAtTxStart   map[types.Address]*Contract // reversion snapshot
}

// Result is the terminal value written into VM.Result once a step
// halts: Success, Failure(Error), or Failure(Query) (spec §3.2).
type Result struct {
	Success bool
	Output  []byte
	Err     Error
}

// VM is spec §3.2's top-level mutable value that step advances.
type VM struct {
	Result *Result // nil while running

	State  *FrameState
	Frames []*Frame

	Env   *Env
	Block *Block
	Tx    *Tx

	Logs   []expr.Word // Expr<Log> entries, most recent first (LOG prepends)
	Traces *TraceCursor

	Cache *Cache

	Burned      uint64
	Iterations  map[iterKey]uint64
	Constraints []expr.Prop
	KeccakEqs   []expr.Prop

	AllowFFI      bool
	OverrideCaller *types.Address // one-shot, consumed by the next CALL/CALLCODE/STATICCALL
}

type iterKey struct {
	Addr types.Address
	PC   uint64
}

// TraceCursor is a minimal append-only zipper over a call/event trace
// tree; trace rendering itself is out of scope (spec §1), so this only
// carries enough structure for the frame machine to record entries.
type TraceCursor struct {
	Parent   *TraceCursor
	Children []*TraceCursor
	Label    string
}

func (t *TraceCursor) child(label string) *TraceCursor {
	c := &TraceCursor{Parent: t, Label: label}
	t.Children = append(t.Children, c)
	return c
}

// Cache is spec §3.2's cross-transaction memoization table.
type Cache struct {
	FetchedContracts map[types.Address]*Contract
	FetchedSlots     map[storageKey]*uint256.Int
	PathChoices      map[iterKey]bool
	FFIAnswers       map[iterKey][]byte // resume() populates this; dispatchCheatCode checks it before re-querying
}

func newCache() *Cache {
	return &Cache{
		FetchedContracts: make(map[types.Address]*Contract),
		FetchedSlots:     make(map[storageKey]*uint256.Int),
		PathChoices:      make(map[iterKey]bool),
		FFIAnswers:       make(map[iterKey][]byte),
	}
}

// unifyCachedContract merges two Cache observations of the same
// contract across sessions. The source stubs this out entirely (it
// throws); DESIGN.md records the decision to forbid merging rather
// than guess at a union semantics, since a silently-wrong merge of
// two sessions' fetched code would be worse than refusing.
func unifyCachedContract(a, b *Contract) (*Contract, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	if a.Codehash != b.Codehash {
		return nil, ErrPrecompileFailure{} // placeholder: genuinely incompatible cache entries
	}
	return a, nil
}

// unifyCachedStorage is the storage-slot analogue of unifyCachedContract:
// merging is forbidden on disagreement (see DESIGN.md).
func unifyCachedStorage(a, b *uint256.Int) (*uint256.Int, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	if !a.Eq(b) {
		return nil, ErrPrecompileFailure{}
	}
	return a, nil
}

// halted reports whether the VM has already produced a terminal result.
func (vm *VM) halted() bool { return vm.Result != nil }

// burn deducts gas from the current frame, failing OutOfGas if
// insufficient (gas is always billed before the corresponding effect,
// per spec §5's fixed step ordering).
func (vm *VM) burn(amount uint64) error {
	if vm.State.Gas < amount {
		return ErrOutOfGas{Have: vm.State.Gas, Need: amount}
	}
	vm.State.Gas -= amount
	vm.Burned += amount
	return nil
}
