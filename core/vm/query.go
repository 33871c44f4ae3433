package vm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hevmgo/sevm/core/types"
	"github.com/hevmgo/sevm/core/vm/expr"
)

// QueryKind tags the five ways a step can pause for an external
// collaborator (spec §4.8). Kept as a plain enum plus a flat Query
// record rather than five Query subtypes or a closure continuation,
// per spec §9's design note: resuming re-enters Step at the same
// PC and the stepper re-derives its result from Cache, which resume
// has populated, rather than resume invoking a stored continuation
// directly.
type QueryKind int

const (
	PleaseFetchContract QueryKind = iota
	PleaseFetchSlot
	PleaseAskSMT
	PleaseChoosePath
	PleaseDoFFI
)

func (k QueryKind) String() string {
	switch k {
	case PleaseFetchContract:
		return "FetchContract"
	case PleaseFetchSlot:
		return "FetchSlot"
	case PleaseAskSMT:
		return "AskSMT"
	case PleaseChoosePath:
		return "ChoosePath"
	case PleaseDoFFI:
		return "DoFFI"
	default:
		return "Unknown"
	}
}

// Query is the pending-operation record a step leaves behind when it
// cannot proceed without outside help: an unfetched contract or slot,
// a branch condition the solver or a human must settle, or an FFI
// call. Only the fields relevant to Kind are populated.
type Query struct {
	Kind QueryKind

	Addr types.Address // FetchContract, FetchSlot
	Slot [32]byte      // FetchSlot

	Cond expr.Prop // AskSMT, ChoosePath: the branch condition in question

	Argv []string // DoFFI

	PC iterKey // where this query arose, for Cache/Iterations bookkeeping
}

func (q *Query) String() string {
	return fmt.Sprintf("query(%s) at %s:%d", q.Kind, q.PC.Addr.Hex(), q.PC.PC)
}

// resume applies an external collaborator's answer to a paused VM and
// clears Result, so the caller can invoke Step again from the same PC.
// The stepper that issued the query is expected to consult vm.Cache
// (or vm.Constraints, for the two branch-decision kinds) before issuing
// a fresh query for work it has already seen resolved.
func resume(vm *VM, q *Query, answer any) error {
	switch q.Kind {
	case PleaseFetchContract:
		c, ok := answer.(*Contract)
		if !ok {
			return ErrInvalidFormat{}
		}
		merged, err := unifyCachedContract(vm.Cache.FetchedContracts[q.Addr], c)
		if err != nil {
			return err
		}
		vm.Cache.FetchedContracts[q.Addr] = merged
		vm.Env.Contracts[q.Addr] = merged

	case PleaseFetchSlot:
		v, ok := answer.(*uint256.Int)
		if !ok {
			return ErrInvalidFormat{}
		}
		key := storageKey{Addr: q.Addr, Slot: q.Slot}
		merged, err := unifyCachedStorage(vm.Cache.FetchedSlots[key], v)
		if err != nil {
			return err
		}
		vm.Cache.FetchedSlots[key] = merged
		var slotWord uint256.Int
		slotWord.SetBytes(q.Slot[:])
		vm.Env.Storage = expr.NewSStore(addrToWord(q.Addr), lit256(&slotWord), lit256(merged), vm.Env.Storage)

	case PleaseAskSMT, PleaseChoosePath:
		taken, ok := answer.(bool)
		if !ok {
			return ErrInvalidFormat{}
		}
		vm.Cache.PathChoices[q.PC] = taken
		cond := q.Cond
		if !taken {
			cond = expr.NewPNeg(cond)
		}
		vm.Constraints = append(vm.Constraints, cond)

	case PleaseDoFFI:
		out, ok := answer.([]byte)
		if !ok {
			return ErrInvalidFormat{}
		}
		vm.Cache.FFIAnswers[q.PC] = out
		vm.State.ReturnData = expr.ConcreteBuf{Bytes: out}

	default:
		return ErrInvalidFormat{}
	}

	vm.Result = nil
	return nil
}

func addrToWord(addr types.Address) expr.Word {
	var w uint256.Int
	w.SetBytes(addr[:])
	return lit256(&w)
}

// lit256 wraps a *uint256.Int as a Word without going through the
// concrete-folding smart constructors (there's nothing to fold: the
// value is already a literal).
func lit256(v *uint256.Int) expr.Word { return expr.Lit{Val: v} }
