package vm

import (
	"math/big"

	"github.com/holiman/uint256"
)

// memCost is g_memory·⌈n/32⌉ + ⌊(⌈n/32⌉)²/512⌋ (spec §4.2).
func memCost(fee FeeSchedule, n uint64) uint64 {
	words := ceilDiv32(n)
	return fee.GMemory*words + (words*words)/512
}

// accessMemoryRange grows memory to cover [off, off+size) and returns the
// *marginal* gas cost of that growth; it fails IllegalOverflow if the
// range overflows 64 bits (spec §4.2).
func accessMemoryRange(fee FeeSchedule, curSize uint64, off, size uint64) (newSize uint64, cost uint64, err error) {
	if size == 0 {
		return curSize, 0, nil
	}
	end := off + size
	if end < off { // overflow
		return 0, 0, ErrIllegalOverflow{}
	}
	if end <= curSize {
		return curSize, 0, nil
	}
	rounded := ceilDiv32(end) * 32
	return rounded, memCost(fee, rounded) - memCost(fee, curSize), nil
}

// callGasParams computes spec §4.4's CALL cost split: extra is the
// immediately-burned portion (account access + value-transfer +
// new-account surcharges), callGas is what the callee frame receives.
func callGasParams(fee FeeSchedule, warm bool, requested, avail uint64, value *uint256.Int, recipientExists bool) (extra, callGas uint64) {
	base := fee.GWarmStorageRead
	if !warm {
		base = fee.GColdAccountAccess
	}
	hasValue := value != nil && !value.IsZero()
	extra = base
	if hasValue {
		extra += fee.GCallValue
	}
	if !recipientExists && hasValue {
		extra += fee.GNewAccount
	}
	var gasCap uint64
	if avail >= extra {
		gasCap = allButOne64th(avail - extra)
		if requested < gasCap {
			gasCap = requested
		}
	} else {
		gasCap = requested
	}
	callGas = gasCap
	if hasValue {
		callGas += fee.GCallStipend
	}
	return extra + gasCap, callGas
}

// createGasParams computes spec §4.4's CREATE/CREATE2 cost split.
// hashSize is the init code length fed to the CREATE2 salt hash (0 for
// plain CREATE, which does not hash the init code for its own cost).
func createGasParams(fee FeeSchedule, avail uint64, hashSize uint64) (cost, initGas uint64) {
	cost = fee.GCreate + fee.GSha3Word*ceilDiv32(hashSize)
	initGas = allButOne64th(avail - cost)
	return cost + initGas, initGas
}

// sstoreStatus classifies an SSTORE write against (original, current,
// new) per EIP-2200/3529 so the caller can bill and refund correctly.
type sstoreStatus int

const (
	sstoreNoop      sstoreStatus = iota // current == new: pure SLOAD price
	sstoreFreshSet                      // clean slot, zero -> nonzero
	sstoreDirtySet                      // anything else starting from a dirty or nonzero slot
)

// sstoreCost returns the gas to bill (excluding cold-access surcharge,
// applied separately by the caller) and the refund delta to apply
// (positive adds refund, negative removes a previously granted one).
// concreteSlot is false when current/new/original aren't all concrete,
// in which case the caller must conservatively charge GSSet and skip
// refund bookkeeping (spec §4.4).
func sstoreCost(fee FeeSchedule, original, current, new *uint256.Int, concreteSlot bool) (gas uint64, refundDelta int64) {
	if !concreteSlot {
		return fee.GSSet, 0
	}
	if current.Eq(new) {
		return fee.GSLoad, 0
	}
	if original.Eq(current) {
		// clean slot
		if original.IsZero() {
			return fee.GSSet, 0
		}
		gas = fee.GSReset
		if new.IsZero() {
			refundDelta = int64(fee.GSReset) + int64(fee.GAccessListStorageKey)
		}
		return gas, refundDelta
	}
	// dirty slot: already paid for the first write this transaction.
	gas = fee.GSLoad
	if !original.IsZero() {
		if current.IsZero() && !new.IsZero() {
			refundDelta = -(int64(fee.GSReset) + int64(fee.GAccessListStorageKey))
		} else if !current.IsZero() && new.IsZero() {
			refundDelta = int64(fee.GSReset) + int64(fee.GAccessListStorageKey)
		}
	}
	if original.Eq(new) {
		if original.IsZero() {
			refundDelta += int64(fee.GSSet) - int64(fee.GSLoad)
		} else {
			refundDelta += int64(fee.GSReset) - int64(fee.GSLoad)
		}
	}
	return gas, refundDelta
}

// precompileCost computes the fixed cost of calling a precompile at
// addr with the given input length (spec §4.4). ok is false for
// addresses outside 1..9.
func precompileCost(fee FeeSchedule, addr byte, inputLen uint64, modExpComplexity func() uint64) (cost uint64, ok bool) {
	switch addr {
	case 1: // ECRECOVER
		return fee.GEcrecover, true
	case 2: // SHA2-256
		return fee.GSha256Base + fee.GSha256Word*ceilDiv32(inputLen), true
	case 3: // RIPEMD-160
		return fee.GRipemd160Base + fee.GRipemd160Word*ceilDiv32(inputLen), true
	case 4: // IDENTITY
		return fee.GIdentityBase + fee.GIdentityWord*ceilDiv32(inputLen), true
	case 5: // MODEXP, EIP-2565
		c := modExpComplexity()
		if c < fee.GModExpMin {
			c = fee.GModExpMin
		}
		return c, true
	case 6: // ECADD
		return fee.GEcaddGas, true
	case 7: // ECMUL
		return fee.GEcmulGas, true
	case 8: // ECPAIRING
		pairs := inputLen / 192
		return fee.GEcpairingBase + fee.GEcpairingPerPt*pairs, true
	case 9: // BLAKE2F — caller passes the round count via inputLen for this one case
		return fee.GBlake2FPerRound * inputLen, true
	}
	return 0, false
}

// modExpComplexity implements EIP-2565's gas_cost formula:
// max(lenB, lenM)² / 3 rounded appropriately, scaled by iteration count
// derived from the exponent's bit length, divided by the quadratic
// divisor (3 post-Berlin).
func modExpComplexity(baseLen, expLen, modLen uint64, expHead *big.Int) uint64 {
	maxLen := baseLen
	if modLen > maxLen {
		maxLen = modLen
	}
	words := ceilDiv32(maxLen)
	mult := words * words
	iter := adjustedExpLen(expLen, expHead)
	if iter < 1 {
		iter = 1
	}
	return (mult * iter) / 3
}

func adjustedExpLen(expLen uint64, expHead *big.Int) uint64 {
	bitLen := 0
	if expHead != nil {
		bitLen = expHead.BitLen()
	}
	if expLen <= 32 {
		if bitLen == 0 {
			return 0
		}
		return uint64(bitLen - 1)
	}
	extra := 8 * (expLen - 32)
	if bitLen > 0 {
		return extra + uint64(bitLen-1)
	}
	return extra
}
