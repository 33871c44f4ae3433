package vm

import (
	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
	"github.com/hevmgo/sevm/core/vm/expr"
)

// StorageBase selects the initial shape of a fresh contract's storage
// universe before any write or fetch has touched it (spec §6.1).
type StorageBase int

const (
	StorageConcrete StorageBase = iota
	StorageSymbolic
)

// VmOpts is the sole construction surface for a VM (spec §6.1), mirroring
// the way the teacher's interpreter.go splits construction into
// BlockContext/TxContext rather than one flat argument list.
type VmOpts struct {
	Contract *Contract
	Calldata expr.Buf
	CalldataConstraints []expr.Prop

	StorageBase StorageBase

	Value       *uint256.Int
	PriorityFee *uint256.Int
	Address     types.Address
	Caller      types.Address
	Origin      types.Address

	Gas      uint64
	GasLimit uint64

	Number      *uint256.Int
	Timestamp   *uint256.Int
	Coinbase    types.Address
	PrevRandao  *uint256.Int
	MaxCodeSize uint64
	BlockGasLimit uint64

	GasPrice *uint256.Int
	BaseFee  *uint256.Int
	Schedule FeeSchedule
	ChainID  *uint256.Int

	IsCreate     bool
	TxAccessList map[types.Address][]uint256.Int

	AllowFFI bool
}

// NewVM builds the single-frame starting VM spec §3.5 describes: result
// unset, substate seeded with origin/to/precompiles/access-list, storage
// shaped by StorageBase, and the root FrameState running opts.Contract.
func NewVM(opts VmOpts) *VM {
	var to *types.Address
	if !opts.IsCreate {
		addr := opts.Address
		to = &addr
	}

	contracts := map[types.Address]*Contract{opts.Address: opts.Contract}
	if opts.Caller != opts.Address {
		if _, ok := contracts[opts.Caller]; !ok {
			contracts[opts.Caller] = NewContract(ConcreteRuntime{Code: nil}, uint256.NewInt(0), 0, types.Hash{}, false)
		}
	}

	var storage expr.Storage = expr.AbstractStore{}
	if opts.StorageBase == StorageConcrete {
		storage = expr.EmptyStore{}
	}

	env := &Env{
		Contracts:        contracts,
		ChainID:          opts.ChainID,
		Storage:          storage,
		OrigStorage:      make(map[[32]byte]*uint256.Int),
		Sha3Crack:        make(map[[32]byte][]byte),
		TransientStorage: expr.EmptyStore{},
	}

	block := &Block{
		Coinbase:    opts.Coinbase,
		Timestamp:   opts.Timestamp,
		Number:      opts.Number,
		PrevRandao:  opts.PrevRandao,
		GasLimit:    opts.BlockGasLimit,
		BaseFee:     opts.BaseFee,
		MaxCodeSize: opts.MaxCodeSize,
		Schedule:    opts.Schedule,
	}

	substate := newSubstate()
	seedSubstate(substate, opts.Origin, to)
	for addr, keys := range opts.TxAccessList {
		substate.touchAddress(addr)
		for _, k := range keys {
			substate.touchStorageKey(addr, k.Bytes32())
		}
	}

	tx := &Tx{
		GasPrice:           opts.GasPrice,
		GasLimit:           opts.GasLimit,
		PriorityFee:        opts.PriorityFee,
		Origin:             opts.Origin,
		To:                 to,
		CreateAddr:         opts.Address,
		Value:              opts.Value,
		IsCreate:           opts.IsCreate,
		Substate:           substate,
		ContractsAtTxStart: snapshotContracts(contracts),
	}

	state := newFrameState(opts.Address, opts.Contract, opts.Caller, opts.Calldata, lit256(opts.Value), opts.Gas, false)

	return &VM{
		State:       state,
		Env:         env,
		Block:       block,
		Tx:          tx,
		Cache:       newCache(),
		Iterations:  make(map[iterKey]uint64),
		Constraints: append([]expr.Prop(nil), opts.CalldataConstraints...),
		AllowFFI:    opts.AllowFFI,
	}
}
