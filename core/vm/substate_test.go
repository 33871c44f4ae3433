package vm

import (
	"testing"

	"github.com/hevmgo/sevm/core/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestTouchAddressWarmCold(t *testing.T) {
	s := newSubstate()
	a := addr(1)
	if wasWarm := s.touchAddress(a); wasWarm {
		t.Error("first touch reported warm, want cold")
	}
	if wasWarm := s.touchAddress(a); !wasWarm {
		t.Error("second touch reported cold, want warm")
	}
}

func TestTouchStorageKeyWarmCold(t *testing.T) {
	s := newSubstate()
	a := addr(1)
	var slot [32]byte
	slot[31] = 7

	if wasWarm := s.touchStorageKey(a, slot); wasWarm {
		t.Error("first touch reported warm, want cold")
	}
	if wasWarm := s.touchStorageKey(a, slot); !wasWarm {
		t.Error("second touch reported cold, want warm")
	}
}

func TestTouchAccountDeduplicates(t *testing.T) {
	s := newSubstate()
	a := addr(5)
	s.touchAccount(a)
	s.touchAccount(a)
	if len(s.TouchedAccounts) != 1 {
		t.Errorf("len(TouchedAccounts) = %d, want 1 (deduplicated)", len(s.TouchedAccounts))
	}
}

func TestAddRefundPositiveAccumulates(t *testing.T) {
	s := newSubstate()
	a := addr(1)
	s.addRefund(a, 100)
	s.addRefund(a, 50)
	if got := s.totalRefund(); got != 150 {
		t.Errorf("totalRefund() = %d, want 150", got)
	}
}

func TestAddRefundNegativeUnwindsMostRecent(t *testing.T) {
	s := newSubstate()
	a := addr(1)
	s.addRefund(a, 100)
	s.addRefund(a, -40)
	if got := s.totalRefund(); got != 60 {
		t.Errorf("totalRefund() = %d, want 60 after partial unrefund", got)
	}
}

func TestAddRefundNegativeSpansMultipleEntries(t *testing.T) {
	s := newSubstate()
	a := addr(1)
	s.addRefund(a, 30)
	s.addRefund(a, 40)
	s.addRefund(a, -50)
	if got := s.totalRefund(); got != 20 {
		t.Errorf("totalRefund() = %d, want 20", got)
	}
}

func TestSubstateCloneIsIndependent(t *testing.T) {
	s := newSubstate()
	a := addr(1)
	s.touchAddress(a)

	clone := s.clone()
	s.touchAddress(addr(2))

	if len(clone.AccessedAddresses) != 1 {
		t.Errorf("clone has %d accessed addresses, want 1 (unaffected by later touch)", len(clone.AccessedAddresses))
	}
}

func TestRestoreFromPreservesRipemd160(t *testing.T) {
	s := newSubstate()
	s.touchAccount(addr(9))
	snapshot := s.clone()

	s2 := newSubstate()
	s2.touchAccount(addr(9))
	s2.touchAccount(addr(3)) // RIPEMD-160
	s2.restoreFrom(snapshot)

	found := false
	for _, a := range s2.TouchedAccounts {
		if a == addr(3) {
			found = true
		}
	}
	if !found {
		t.Error("restoreFrom dropped the RIPEMD-160 touched-account carve-out")
	}
}
