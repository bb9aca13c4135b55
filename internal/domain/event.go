package domain

import "time"

// Channels and streams ledger events are published on.
const (
	ChannelLedgerEvents = "ledger:events"
	StreamLedgerJournal = "ledger:journal"
)

// Ledger operation names, used in events and the journal.
const (
	OpInitializeAddress = "initialize_address"
	OpBond              = "bond"
	OpRenew             = "renew"
	OpTopUp             = "topup"
	OpWithdraw          = "withdraw"
	OpStakeRewards      = "stake_rewards"
	OpClaimRewards      = "claim_rewards"
	OpBondRange         = "bond_range"
	OpBindVaultBond     = "update_vault_bond"
	OpAddRewards        = "add_rewards"
	OpRemoveRewards     = "remove_rewards"
	OpSetBondConfig     = "set_bond_config"
	OpSetRewardPool     = "set_reward_pool"
	OpCredit            = "credit"
	OpReserveLow        = "reserve_low"
)

// LedgerEvent is published after every committed operation.
type LedgerEvent struct {
	OpID       string    `json:"op_id"`
	Op         string    `json:"op"`
	Vault      string    `json:"vault"`
	Owner      string    `json:"owner,omitempty"`
	PositionID uint32    `json:"position_id,omitempty"`
	Amount     uint64    `json:"amount,omitempty"`
	Paid       uint64    `json:"paid,omitempty"`
	Penalty    uint64    `json:"penalty,omitempty"`
	Forfeited  uint64    `json:"forfeited,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
