package domain

// StakerLedger is one participant's aggregate stake within a vault.
type StakerLedger struct {
	Vault            string `json:"vault"`
	Owner            string `json:"owner"`
	TotalBonded      uint64 `json:"total_bonded"`
	PositionCounter  uint32 `json:"position_counter"`
	LivelinessScore  uint64 `json:"liveliness_score"`
	LastUpdate       uint64 `json:"last_update"`
	PerShareSnapshot uint64 `json:"per_share_snapshot"`
	Claimable        uint64 `json:"claimable"`
	// BoundPositionID is the vault position that claims and compounds act
	// on. Zero means unbound.
	BoundPositionID uint32 `json:"bound_position_id"`

	// AuthNonce is the highest signed-request nonce consumed so far.
	AuthNonce uint64 `json:"auth_nonce"`
}
