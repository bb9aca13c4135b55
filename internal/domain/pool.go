package domain

// CapPolicy selects how the per-tick reward emission is bounded by MaxAprBps.
type CapPolicy uint8

const (
	// CapNone emits RatePerTick every tick, ignoring MaxAprBps.
	CapNone CapPolicy = iota
	// CapBonded bounds emission to MaxAprBps of the vault's bonded total.
	CapBonded
	// CapReserve bounds emission to MaxAprBps of the remaining reserve.
	CapReserve
)

func (p CapPolicy) String() string {
	switch p {
	case CapBonded:
		return "bonded"
	case CapReserve:
		return "reserve"
	default:
		return "none"
	}
}

// ParseCapPolicy accepts "none", "bonded" or "reserve".
func ParseCapPolicy(s string) (CapPolicy, bool) {
	switch s {
	case "none":
		return CapNone, true
	case "bonded":
		return CapBonded, true
	case "reserve":
		return CapReserve, true
	}
	return CapNone, false
}

// CapPolicyFromLegacy maps the historical zero-sentinel encoding to a policy:
// zero means uncapped, anything else caps against the bonded total.
func CapPolicyFromLegacy(maxAprBps uint64) CapPolicy {
	if maxAprBps == 0 {
		return CapNone
	}
	return CapBonded
}

// ForfeitPolicy decides what happens to the part of a reward share that a
// stale staker does not earn.
type ForfeitPolicy uint8

const (
	// ForfeitBurn removes the remainder from circulation and tallies it in
	// RewardPool.Burned.
	ForfeitBurn ForfeitPolicy = iota
	// ForfeitReturn puts the remainder back into RewardPool.Reserve.
	ForfeitReturn
)

func (p ForfeitPolicy) String() string {
	if p == ForfeitReturn {
		return "return"
	}
	return "burn"
}

// ParseForfeitPolicy accepts "burn" or "return".
func ParseForfeitPolicy(s string) (ForfeitPolicy, bool) {
	switch s {
	case "burn":
		return ForfeitBurn, true
	case "return":
		return ForfeitReturn, true
	}
	return ForfeitBurn, false
}

// RewardPool is the per-vault reward accumulator.
type RewardPool struct {
	Vault         string    `json:"vault"`
	State         State     `json:"state"`
	Reserve       uint64    `json:"reserve"`
	Accumulated   uint64    `json:"accumulated"`
	Burned        uint64    `json:"burned"`
	RatePerTick   uint64    `json:"rate_per_tick"`
	PerShareIndex uint64    `json:"per_share_index"`
	LastTick      uint64    `json:"last_tick"`
	MaxAprBps     uint64    `json:"max_apr_bps"`
	CapPolicy     CapPolicy `json:"cap_policy"`
}
