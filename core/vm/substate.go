package vm

import "github.com/hevmgo/sevm/core/types"

// storageKey is an (address, slot) pair keyed for EIP-2929 access
// tracking; slot is the 32-byte big-endian encoding of the concrete
// word (spec §3.4 only tracks concrete keys — a symbolic slot is never
// cached: SLOAD bills it cold every time, SSTORE adds no cold surcharge).
type storageKey struct {
	Addr types.Address
	Slot [32]byte
}

// RefundEntry is one (addr, amount) refund record; spec §3.4 models
// refunds as a list rather than a running total so finalize can still
// see the per-address breakdown if a tracer wants it.
type RefundEntry struct {
	Addr   types.Address
	Amount uint64
}

// Substate is spec §3.4's accrued per-transaction bookkeeping.
type Substate struct {
	Selfdestructs       []types.Address
	TouchedAccounts     []types.Address
	AccessedAddresses   map[types.Address]bool
	AccessedStorageKeys map[storageKey]bool
	Refunds             []RefundEntry
}

func newSubstate() *Substate {
	return &Substate{
		AccessedAddresses:   make(map[types.Address]bool),
		AccessedStorageKeys: make(map[storageKey]bool),
	}
}

// touchAddress marks addr as accessed, returning whether it was already
// warm (EIP-2929).
func (s *Substate) touchAddress(addr types.Address) (wasWarm bool) {
	wasWarm = s.AccessedAddresses[addr]
	s.AccessedAddresses[addr] = true
	return wasWarm
}

// touchStorageKey marks (addr, slot) as accessed, returning whether it
// was already warm.
func (s *Substate) touchStorageKey(addr types.Address, slot [32]byte) (wasWarm bool) {
	k := storageKey{Addr: addr, Slot: slot}
	wasWarm = s.AccessedStorageKeys[k]
	s.AccessedStorageKeys[k] = true
	return wasWarm
}

func (s *Substate) touchAccount(addr types.Address) {
	for _, a := range s.TouchedAccounts {
		if a == addr {
			return
		}
	}
	s.TouchedAccounts = append(s.TouchedAccounts, addr)
}

func (s *Substate) addSelfdestruct(addr types.Address) {
	for _, a := range s.Selfdestructs {
		if a == addr {
			return
		}
	}
	s.Selfdestructs = append(s.Selfdestructs, addr)
}

func (s *Substate) addRefund(addr types.Address, amount int64) {
	if amount == 0 {
		return
	}
	if amount > 0 {
		s.Refunds = append(s.Refunds, RefundEntry{Addr: addr, Amount: uint64(amount)})
		return
	}
	// negative: remove the most recent matching positive refund mass
	remaining := uint64(-amount)
	for i := len(s.Refunds) - 1; i >= 0 && remaining > 0; i-- {
		if s.Refunds[i].Addr != addr {
			continue
		}
		if s.Refunds[i].Amount <= remaining {
			remaining -= s.Refunds[i].Amount
			s.Refunds[i].Amount = 0
		} else {
			s.Refunds[i].Amount -= remaining
			remaining = 0
		}
	}
}

// totalRefund sums every entry, used by finalize's cappedRefund (spec §4.7).
func (s *Substate) totalRefund() uint64 {
	var total uint64
	for _, r := range s.Refunds {
		total += r.Amount
	}
	return total
}

// clone deep-copies the substate for a call's reversion snapshot (spec §4.6).
func (s *Substate) clone() *Substate {
	out := &Substate{
		Selfdestructs:       append([]types.Address(nil), s.Selfdestructs...),
		TouchedAccounts:     append([]types.Address(nil), s.TouchedAccounts...),
		AccessedAddresses:   make(map[types.Address]bool, len(s.AccessedAddresses)),
		AccessedStorageKeys: make(map[storageKey]bool, len(s.AccessedStorageKeys)),
		Refunds:             append([]RefundEntry(nil), s.Refunds...),
	}
	for k, v := range s.AccessedAddresses {
		out.AccessedAddresses[k] = v
	}
	for k, v := range s.AccessedStorageKeys {
		out.AccessedStorageKeys[k] = v
	}
	return out
}

// restoreFrom reverts s in place to a prior snapshot, preserving address
// 3 (RIPEMD-160) in touchedAccounts per the Yellow Paper §K.1 carve-out
// referenced by spec §4.6.
func (s *Substate) restoreFrom(snapshot *Substate) {
	var ripemd160 types.Address
	ripemd160[19] = 3
	wasTouched := false
	for _, a := range s.TouchedAccounts {
		if a == ripemd160 {
			wasTouched = true
		}
	}
	*s = *snapshot.clone()
	if wasTouched {
		s.touchAccount(ripemd160)
	}
}
