package domain

// PositionState is the lifecycle state of a bond position.
type PositionState uint8

const (
	PositionInactive PositionState = 0
	PositionActive   PositionState = 1
	PositionChild    PositionState = 2
)

func (s PositionState) String() string {
	switch s {
	case PositionActive:
		return "active"
	case PositionChild:
		return "child"
	default:
		return "inactive"
	}
}

// BondPosition is a single stake. Withdrawn positions are kept as zeroed
// tombstones; Child positions only carry a leaf range against a parent.
type BondPosition struct {
	Vault           string        `json:"vault"`
	Owner           string        `json:"owner"`
	ID              uint32        `json:"id"`
	State           PositionState `json:"state"`
	IsVault         bool          `json:"is_vault"`
	BondTimestamp   uint64        `json:"bond_timestamp"`
	UnbondTimestamp uint64        `json:"unbond_timestamp"`
	BondAmount      uint64        `json:"bond_amount"`
	AssetID         string        `json:"asset_id"`
	ParentID        uint32        `json:"parent_id,omitempty"`
	StartNonce      uint64        `json:"start_nonce,omitempty"`
	EndNonce        uint64        `json:"end_nonce,omitempty"`
}

// ScoreSource selects which freshness score discounts reward payouts.
type ScoreSource uint8

const (
	// ScoreLedger discounts every settlement by the staker's decayed
	// aggregate liveliness.
	ScoreLedger ScoreSource = iota
	// ScoreBond settles undiscounted and discounts at claim/compound time by
	// the bound position's own remaining-lock score.
	ScoreBond
)

func (s ScoreSource) String() string {
	if s == ScoreBond {
		return "bond"
	}
	return "ledger"
}

// ParseScoreSource accepts "ledger" or "bond".
func ParseScoreSource(s string) (ScoreSource, bool) {
	switch s {
	case "ledger":
		return ScoreLedger, true
	case "bond":
		return ScoreBond, true
	}
	return ScoreLedger, false
}

// BondConfig is the per-vault bonding policy. The ledger core only reads it.
type BondConfig struct {
	Vault              string `json:"vault"`
	State              State  `json:"state"`
	LockPeriod         uint64 `json:"lock_period"`
	RequiredBondAmount uint64 `json:"required_bond_amount"`
	WithdrawPenaltyBps uint64 `json:"withdraw_penalty_bps"`
	// CollectionIdentity is the NFT collection mint or the cNFT merkle tree
	// that positions in this vault must prove membership of.
	CollectionIdentity string `json:"collection_identity"`
}

// VaultTotals aggregates a vault's bonded principal and collected penalties.
type VaultTotals struct {
	Vault          string `json:"vault"`
	TotalBonded    uint64 `json:"total_bonded"`
	TotalPenalized uint64 `json:"total_penalized"`
}

// VaultAccount is the token account that holds a vault's bonded and reward
// funds.
func VaultAccount(vault string) string {
	return "vault:" + vault
}

// CreditVault is the journal and lock scope for token credits, which belong
// to no vault.
const CreditVault = "_accounts"
