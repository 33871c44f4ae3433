package vm

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
)

func TestEnsureAccountCreatesEmptyAccountOnce(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	target := addr(0x77)

	c1 := ensureAccount(vm, target)
	c2 := ensureAccount(vm, target)
	if c1 != c2 {
		t.Error("ensureAccount created a second account for the same address")
	}
	if !c1.Balance.IsZero() || c1.Nonce != 0 {
		t.Errorf("lazily created account = %+v, want zero balance and nonce", c1)
	}
}

func TestAccountEmptyChecksAllThreeFields(t *testing.T) {
	c := NewContract(ConcreteRuntime{Code: nil}, uint256.NewInt(0), 0, types.Hash{}, false)
	if !accountEmpty(c) {
		t.Error("zero-balance, zero-nonce, no-code account reported non-empty")
	}
	c.Nonce = 1
	if accountEmpty(c) {
		t.Error("nonce=1 account reported empty")
	}
	c.Nonce = 0
	c.Balance = uint256.NewInt(1)
	if accountEmpty(c) {
		t.Error("nonzero-balance account reported empty")
	}
	c.Balance = uint256.NewInt(0)
	c.Code = ConcreteRuntime{Code: []byte{byte(STOP)}}
	if accountEmpty(c) {
		t.Error("account with code reported empty")
	}
}

func TestClearEmptyAccountsDropsSelfdestructsAndEmptyTouched(t *testing.T) {
	vm := newTestVM([]byte{byte(STOP)}, 100000)
	selfDestructed := addr(0x10)
	emptyTouched := addr(0x11)
	nonEmptyTouched := addr(0x12)

	vm.Env.Contracts[selfDestructed] = NewContract(ConcreteRuntime{Code: nil}, uint256.NewInt(0), 0, types.Hash{}, false)
	vm.Env.Contracts[emptyTouched] = NewContract(ConcreteRuntime{Code: nil}, uint256.NewInt(0), 0, types.Hash{}, false)
	vm.Env.Contracts[nonEmptyTouched] = NewContract(ConcreteRuntime{Code: nil}, uint256.NewInt(1), 0, types.Hash{}, false)

	vm.Tx.Substate.addSelfdestruct(selfDestructed)
	vm.Tx.Substate.touchAccount(emptyTouched)
	vm.Tx.Substate.touchAccount(nonEmptyTouched)

	clearEmptyAccounts(vm)

	if _, ok := vm.Env.Contracts[selfDestructed]; ok {
		t.Error("self-destructed account survived clearEmptyAccounts")
	}
	if _, ok := vm.Env.Contracts[emptyTouched]; ok {
		t.Error("empty touched account survived clearEmptyAccounts")
	}
	if _, ok := vm.Env.Contracts[nonEmptyTouched]; !ok {
		t.Error("non-empty touched account was incorrectly cleared")
	}
}

func TestSeedSubstateTouchesOriginToAndPrecompiles(t *testing.T) {
	s := newSubstate()
	origin := addr(0x01)
	to := addr(0x02)
	seedSubstate(s, origin, &to)

	for _, want := range []types.Address{origin, to} {
		if !s.AccessedAddresses[want] {
			t.Errorf("seedSubstate did not mark %x as accessed", want)
		}
	}
	for i := byte(1); i <= 9; i++ {
		if !s.AccessedAddresses[addr(i)] {
			t.Errorf("seedSubstate did not mark precompile %d as accessed", i)
		}
	}
}
