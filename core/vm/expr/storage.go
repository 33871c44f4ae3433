package expr

// EmptyStore is the store of an account (or, pre-any-write, the whole
// world) before any SSTORE has touched it: every slot reads as zero.
type EmptyStore struct{}

func (EmptyStore) isStorage() {}

// ConcreteStore is a fully known slot map. The stepper does not build
// one itself: a slot answered by PleaseFetchSlot is layered onto the
// store as an SStore write.
type ConcreteStore struct {
	Slots map[[32]byte]Word
}

func (ConcreteStore) isStorage() {}

// AbstractStore is a storage universe about which nothing is known
// structurally: no write chain has been recorded and no concrete
// contents have been fetched (spec §4.2 distinguishes this from
// EmptyStore, which does carry the "everything reads zero" fact).
type AbstractStore struct{}

func (AbstractStore) isStorage() {}

// SStore overlays a single (Addr, Slot) -> Val write onto Prev. Addr is
// carried even though most call sites operate on one contract's own
// storage, because AbstractStore composes writes across the whole
// account universe when a CALL crosses contracts (spec §3.1).
type SStore struct {
	Addr, Slot, Val Word
	Prev            Storage
}

func (SStore) isStorage() {}

// NewSStore drops a write that is shadowed by an identical-key write
// directly beneath it, and elides writing the value that's already
// there (a no-op SSTORE is common after compiler-inserted resets).
func NewSStore(addr, slot, val Word, prev Storage) Storage {
	if prevWrite, ok := prev.(SStore); ok &&
		structurallyEqual(prevWrite.Addr, addr) &&
		structurallyEqual(prevWrite.Slot, slot) {
		return SStore{Addr: addr, Slot: slot, Val: val, Prev: prevWrite.Prev}
	}
	if v, ok := readStorage(addr, slot, prev); ok && structurallyEqual(v, val) {
		return prev
	}
	return SStore{Addr: addr, Slot: slot, Val: val, Prev: prev}
}

// readStorage resolves the value at (addr, slot) by walking the SStore
// overlay chain. ok is false when the chain bottoms out at an
// AbstractStore (or a symbolic key shadows the lookup), meaning the
// caller must fall back to a symbolic SLoadExpr rather than a concrete
// answer (spec §4.2, §4.5).
func readStorage(addr, slot Word, store Storage) (Word, bool) {
	for {
		switch s := store.(type) {
		case EmptyStore:
			return LitU64(0), true
		case ConcreteStore:
			key, ok := asLit(slot)
			if !ok {
				return nil, false
			}
			b := key.Bytes32()
			if v, found := s.Slots[b]; found {
				return v, true
			}
			return LitU64(0), true
		case AbstractStore:
			return nil, false
		case SStore:
			if structurallyEqual(s.Addr, addr) && structurallyEqual(s.Slot, slot) {
				return s.Val, true
			}
			if isConcreteWord(s.Addr) && isConcreteWord(addr) && !structurallyEqual(s.Addr, addr) {
				store = s.Prev
				continue
			}
			if isConcreteWord(s.Slot) && isConcreteWord(slot) && !structurallyEqual(s.Slot, slot) {
				store = s.Prev
				continue
			}
			// Either the keys could be equal (one side symbolic) or we
			// can't prove disjointness: not statically determinable.
			return nil, false
		}
		return nil, false
	}
}

func isConcreteWord(w Word) bool {
	_, ok := asLit(w)
	return ok
}

// NewSLoad resolves a storage read at (addr, slot) against store,
// falling back to a symbolic SLoadExpr when readStorage can't decide
// the value statically.
func NewSLoad(addr, slot Word, store Storage) Word {
	if v, ok := readStorage(addr, slot, store); ok {
		return v
	}
	return SLoadExpr{Addr: addr, Slot: slot, Store: store}
}
