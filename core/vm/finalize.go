package vm

import (
	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
)

// finalize runs exactly once, when the root frame terminates (spec §4.7).
func finalize(vm *VM) {
	if !vm.Result.Success {
		vm.State.Gas = 0
		restoreContracts(vm.Env.Contracts, snapshotContracts(vm.Tx.ContractsAtTxStart))
		vm.Tx.Substate = newSubstate()
		seedSubstate(vm.Tx.Substate, vm.Tx.Origin, vm.Tx.To)
	}

	gasUsed := vm.Tx.GasLimit - vm.State.Gas
	cappedRefund := gasUsed / vm.Block.Schedule.MaxRefundQuotient
	if total := vm.Tx.Substate.totalRefund(); total < cappedRefund {
		cappedRefund = total
	}

	payOrigin(vm, vm.State.Gas+cappedRefund)
	payCoinbase(vm, gasUsed)
	vm.Tx.Substate.touchAccount(vm.Block.Coinbase)

	ensureAccount(vm, vm.Block.Coinbase)
	creditBlockReward(vm)

	clearEmptyAccounts(vm)
	vmLog.Debug("tx finalized", "gasUsed", gasUsed, "refund", cappedRefund, "success", vm.Result.Success)
}

// seedSubstate establishes the always-present origin/to/precompile
// access-list entries, both at VmOpts construction time and again after
// a failure rolls the substate back (spec §3.5/§6.1).
func seedSubstate(s *Substate, origin types.Address, to *types.Address) {
	s.touchAddress(origin)
	if to != nil {
		s.touchAddress(*to)
	}
	for i := byte(1); i <= 9; i++ {
		var a types.Address
		a[19] = i
		s.touchAddress(a)
	}
}

func payOrigin(vm *VM, amount uint64) {
	if amount == 0 {
		return
	}
	c := ensureAccount(vm, vm.Tx.Origin)
	credit := new(uint256.Int).Mul(uint256.NewInt(amount), vm.Tx.GasPrice)
	c.Balance = new(uint256.Int).Add(c.Balance, credit)
}

func payCoinbase(vm *VM, gasUsed uint64) {
	if gasUsed == 0 {
		return
	}
	c := ensureAccount(vm, vm.Block.Coinbase)
	credit := new(uint256.Int).Mul(uint256.NewInt(gasUsed), vm.Tx.PriorityFee)
	c.Balance = new(uint256.Int).Add(c.Balance, credit)
}

// ensureAccount fetches or lazily creates an empty account, the same
// "touch brings it into existence" rule the teacher's StateDB.GetOrNewStateObject
// implements for CALL/SELFDESTRUCT targets.
func ensureAccount(vm *VM, addr types.Address) *Contract {
	if c, ok := vm.Env.Contracts[addr]; ok {
		return c
	}
	c := NewContract(ConcreteRuntime{Code: nil}, uint256.NewInt(0), 0, types.Hash{}, false)
	vm.Env.Contracts[addr] = c
	return c
}

// creditBlockReward is a placeholder hook: block production/consensus
// reward schedules are out of scope (spec §1 Non-goals); r_block is
// taken to be zero post-Merge, matching real mainnet where block
// issuance moved to the beacon chain and in-protocol PoW rewards ended.
func creditBlockReward(vm *VM) {}

// clearEmptyAccounts implements EIP-161 clearing: drop every
// selfdestructed account, then drop every touched account that is
// empty (nonce 0, balance 0, no code).
func clearEmptyAccounts(vm *VM) {
	for _, addr := range vm.Tx.Substate.Selfdestructs {
		delete(vm.Env.Contracts, addr)
	}
	for _, addr := range vm.Tx.Substate.TouchedAccounts {
		c, ok := vm.Env.Contracts[addr]
		if !ok {
			continue
		}
		if accountEmpty(c) {
			delete(vm.Env.Contracts, addr)
		}
	}
}

func accountEmpty(c *Contract) bool {
	if c.Nonce != 0 {
		return false
	}
	if c.Balance != nil && !c.Balance.IsZero() {
		return false
	}
	if b, ok := c.Code.Bytes(); ok {
		return len(b) == 0
	}
	return false
}
