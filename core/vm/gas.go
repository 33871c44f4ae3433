package vm

// FeeSchedule is the full set of gas constants the stepper and cost
// functions read from (spec §4.4). It is a plain struct, not a global,
// so different forks/chains can supply their own schedule through
// VmOpts the same way the teacher's interpreter.go threads a
// *params.ChainConfig* through its gas table.
type FeeSchedule struct {
	GZero          uint64
	GBase          uint64
	GVeryLow       uint64
	GLow           uint64
	GMid           uint64
	GHigh          uint64
	GExtcode       uint64
	GBalance       uint64
	GSLoad         uint64
	GJumpDest      uint64
	GSSet          uint64
	GSReset        uint64
	GSelfDestruct  uint64
	GSelfDestructNewAccount uint64
	GCreate        uint64
	GCodeDeposit   uint64
	GCall          uint64
	GCallValue     uint64
	GCallStipend   uint64
	GNewAccount    uint64
	GExp           uint64
	GExpByte       uint64
	GMemory        uint64
	GTXCreate      uint64
	GTXDataZero    uint64
	GTXDataNonZero uint64
	GTransaction   uint64
	GLog           uint64
	GLogData       uint64
	GLogTopic      uint64
	GSha3          uint64
	GSha3Word      uint64
	GCopy          uint64
	GBlockHash     uint64
	GExtcodeHash   uint64

	// EIP-2929
	GColdSLoad           uint64
	GColdAccountAccess   uint64
	GWarmStorageRead     uint64
	GAccessListAddress   uint64
	GAccessListStorageKey uint64

	// EIP-3529
	MaxRefundQuotient uint64

	// EIP-3860
	MaxInitCodeSize    uint64
	GInitCodeWordCost  uint64

	// precompiles
	GEcrecover       uint64
	GSha256Base      uint64
	GSha256Word      uint64
	GRipemd160Base   uint64
	GRipemd160Word   uint64
	GIdentityBase    uint64
	GIdentityWord    uint64
	GModExpMin       uint64
	GEcaddGas        uint64
	GEcmulGas        uint64
	GEcpairingBase   uint64
	GEcpairingPerPt  uint64
	GBlake2FPerRound uint64
}

// BerlinLondonSchedule is the fee schedule for the forks spec §6.3 names
// (Berlin/London, PREVRANDAO at 0x44 from the Merge, PUSH0 from Shanghai
// per the DESIGN.md resolution of the open PUSH0 question).
func BerlinLondonSchedule() FeeSchedule {
	return FeeSchedule{
		GZero: 0, GBase: 2, GVeryLow: 3, GLow: 5, GMid: 8, GHigh: 10,
		GExtcode: 2600, GBalance: 2600, GSLoad: 2100, GJumpDest: 1,
		GSSet: 20000, GSReset: 2900, GSelfDestruct: 5000, GSelfDestructNewAccount: 25000,
		GCreate: 32000, GCodeDeposit: 200, GCall: 2600, GCallValue: 9000,
		GCallStipend: 2300, GNewAccount: 25000, GExp: 10, GExpByte: 50,
		GMemory: 3, GTXCreate: 32000, GTXDataZero: 4, GTXDataNonZero: 16,
		GTransaction: 21000, GLog: 375, GLogData: 8, GLogTopic: 375,
		GSha3: 30, GSha3Word: 6, GCopy: 3, GBlockHash: 20, GExtcodeHash: 2600,

		GColdSLoad: 2100, GColdAccountAccess: 2600, GWarmStorageRead: 100,
		GAccessListAddress: 2400, GAccessListStorageKey: 1900,

		MaxRefundQuotient: 5,

		MaxInitCodeSize:   49152,
		GInitCodeWordCost: 2,

		GEcrecover: 3000, GSha256Base: 60, GSha256Word: 12,
		GRipemd160Base: 600, GRipemd160Word: 120,
		GIdentityBase: 15, GIdentityWord: 3, GModExpMin: 200,
		GEcaddGas: 150, GEcmulGas: 6000, GEcpairingBase: 45000, GEcpairingPerPt: 34000,
		GBlake2FPerRound: 1,
	}
}

// ceilDiv32 is ⌈n/32⌉, used throughout the fee schedule (memory, SHA3,
// LOG, copy costs).
func ceilDiv32(n uint64) uint64 {
	return (n + 31) / 32
}

// allButOne64th is EIP-150's 63/64 rule: n - floor(n/64).
func allButOne64th(n uint64) uint64 {
	return n - n/64
}
