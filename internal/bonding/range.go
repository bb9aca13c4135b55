package bonding

import (
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/proof"
)

// BondRangeRequest grants leaves [StartNonce, EndNonce) a claim against an
// Active vault position.
type BondRangeRequest struct {
	ID         uint32 `json:"id"`
	ParentID   uint32 `json:"parent_id"`
	StartNonce uint64 `json:"start_nonce"`
	EndNonce   uint64 `json:"end_nonce"`
}

// BondRange creates a Child position. It moves no tokens and leaves every
// total unchanged.
func (t *Txn) BondRange(req BondRangeRequest) (Receipt, error) {
	r := t.receipt(domain.OpBondRange, req.ID)
	err := t.run(func(s *state) error {
		if err := t.requireLedger(s); err != nil {
			return err
		}
		if uint64(s.ledger.PositionCounter)+1 != uint64(req.ID) {
			return fmt.Errorf("bonding: range id %d after %d: %w", req.ID, s.ledger.PositionCounter, domain.ErrWrongBondID)
		}
		if _, exists := s.positions[req.ID]; exists {
			return fmt.Errorf("bonding: position %d: %w", req.ID, domain.ErrAlreadyExists)
		}
		if req.StartNonce >= req.EndNonce {
			return fmt.Errorf("bonding: range [%d, %d): %w", req.StartNonce, req.EndNonce, domain.ErrInvalidRange)
		}
		parent, ok := s.positions[req.ParentID]
		if !ok {
			return fmt.Errorf("bonding: parent position %d: %w", req.ParentID, domain.ErrNotFound)
		}
		if !parent.IsVault {
			return fmt.Errorf("bonding: parent position %d: %w", req.ParentID, domain.ErrParentNotVault)
		}
		if parent.State != domain.PositionActive {
			return fmt.Errorf("bonding: parent position %d: %w", req.ParentID, domain.ErrParentInactive)
		}

		s.ledger.PositionCounter = req.ID
		s.putPosition(domain.BondPosition{
			Vault:      t.scope.Vault,
			Owner:      t.scope.Owner,
			ID:         req.ID,
			State:      domain.PositionChild,
			ParentID:   req.ParentID,
			StartNonce: req.StartNonce,
			EndNonce:   req.EndNonce,
		})
		return nil
	})
	return r, err
}

// BindVaultBond makes vault position id the one claims and compounds act on.
// The position must hold the asset minted at nonce in the vault's tree.
func (t *Txn) BindVaultBond(id uint32, nonce uint64) (Receipt, error) {
	r := t.receipt(domain.OpBindVaultBond, id)
	err := t.run(func(s *state) error {
		if err := t.requireLedger(s); err != nil {
			return err
		}
		pos, err := t.activePosition(s, id)
		if err != nil {
			return err
		}
		if !pos.IsVault {
			return fmt.Errorf("bonding: position %d: %w", id, domain.ErrBondNotVault)
		}
		want, err := proof.AssetID(t.config.CollectionIdentity, nonce)
		if err != nil {
			return err
		}
		if pos.AssetID != want {
			return fmt.Errorf("bonding: position %d asset: %w", id, domain.ErrAssetIDMismatch)
		}
		s.ledger.BoundPositionID = id
		return nil
	})
	return r, err
}
