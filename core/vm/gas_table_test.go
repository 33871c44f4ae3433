package vm

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestAccessMemoryRangeFreeWithinBounds(t *testing.T) {
	fee := BerlinLondonSchedule()
	newSize, cost, err := accessMemoryRange(fee, 64, 0, 32)
	if err != nil {
		t.Fatalf("accessMemoryRange: %v", err)
	}
	if newSize != 64 || cost != 0 {
		t.Errorf("got (size=%d, cost=%d), want (64, 0) for an access already covered", newSize, cost)
	}
}

func TestAccessMemoryRangeOverflow(t *testing.T) {
	fee := BerlinLondonSchedule()
	_, _, err := accessMemoryRange(fee, 0, ^uint64(0), 2)
	if _, ok := err.(ErrIllegalOverflow); !ok {
		t.Errorf("got %v, want ErrIllegalOverflow", err)
	}
}

func TestSstoreCostCleanZeroToNonzero(t *testing.T) {
	fee := BerlinLondonSchedule()
	original := uint256.NewInt(0)
	current := uint256.NewInt(0)
	new := uint256.NewInt(5)

	gas, refund := sstoreCost(fee, original, current, new, true)
	if gas != fee.GSSet {
		t.Errorf("gas = %d, want GSSet (%d) for a clean zero->nonzero write", gas, fee.GSSet)
	}
	if refund != 0 {
		t.Errorf("refund = %d, want 0", refund)
	}
}

func TestSstoreCostCleanNonzeroToZeroRefunds(t *testing.T) {
	fee := BerlinLondonSchedule()
	original := uint256.NewInt(5)
	current := uint256.NewInt(5)
	new := uint256.NewInt(0)

	gas, refund := sstoreCost(fee, original, current, new, true)
	if gas != fee.GSReset {
		t.Errorf("gas = %d, want GSReset (%d)", gas, fee.GSReset)
	}
	want := int64(fee.GSReset) + int64(fee.GAccessListStorageKey)
	if refund != want {
		t.Errorf("refund = %d, want %d", refund, want)
	}
}

func TestSstoreCostNoopIsSloadPrice(t *testing.T) {
	fee := BerlinLondonSchedule()
	v := uint256.NewInt(7)
	gas, refund := sstoreCost(fee, v, v, v, true)
	if gas != fee.GSLoad || refund != 0 {
		t.Errorf("got (gas=%d, refund=%d), want (%d, 0) for current==new", gas, refund, fee.GSLoad)
	}
}

func TestSstoreCostNonConcreteChargesGSSet(t *testing.T) {
	fee := BerlinLondonSchedule()
	gas, refund := sstoreCost(fee, nil, nil, nil, false)
	if gas != fee.GSSet || refund != 0 {
		t.Errorf("got (gas=%d, refund=%d), want (%d, 0) for a non-concrete slot", gas, refund, fee.GSSet)
	}
}

func TestCallGasParamsColdVsWarm(t *testing.T) {
	fee := BerlinLondonSchedule()
	_, coldCall := callGasParams(fee, false, 1000, 100000, nil, true)
	_, warmCall := callGasParams(fee, true, 1000, 100000, nil, true)
	if coldCall != warmCall {
		t.Errorf("callGas differs between cold/warm (%d vs %d); only extra should differ", coldCall, warmCall)
	}
	coldExtra, _ := callGasParams(fee, false, 1000, 100000, nil, true)
	warmExtra, _ := callGasParams(fee, true, 1000, 100000, nil, true)
	if coldExtra <= warmExtra {
		t.Errorf("cold extra (%d) should exceed warm extra (%d)", coldExtra, warmExtra)
	}
}

func TestCallGasParamsStipendOnValueTransfer(t *testing.T) {
	fee := BerlinLondonSchedule()
	value := uint256.NewInt(1)
	_, callGas := callGasParams(fee, true, 1000, 100000, value, true)
	_, callGasNoValue := callGasParams(fee, true, 1000, 100000, nil, true)
	if callGas != callGasNoValue+fee.GCallStipend {
		t.Errorf("callGas with value = %d, want noValue(%d)+stipend(%d)", callGas, callGasNoValue, fee.GCallStipend)
	}
}

func TestPrecompileCostKnownIds(t *testing.T) {
	fee := BerlinLondonSchedule()
	if cost, ok := precompileCost(fee, 1, 128, nil); !ok || cost != fee.GEcrecover {
		t.Errorf("ECRECOVER cost = (%d, %v), want (%d, true)", cost, ok, fee.GEcrecover)
	}
	if _, ok := precompileCost(fee, 10, 0, nil); ok {
		t.Error("precompileCost(10, ...) ok = true, want false (outside 1..9)")
	}
}

func TestModExpComplexityFloorsIterationAtOne(t *testing.T) {
	// words = ceil(96/32) = 3, mult = 9; a nil exponent head still floors
	// the iteration count at 1, giving (9*1)/3 = 3 rather than 0.
	got := modExpComplexity(96, 32, 96, nil)
	if got != 3 {
		t.Errorf("modExpComplexity(96,32,96,nil) = %d, want 3", got)
	}
}
