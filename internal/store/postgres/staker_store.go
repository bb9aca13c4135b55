package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

func (t *ledgerTx) Staker(ctx context.Context, vault, owner string) (domain.StakerLedger, error) {
	query := t.forUpdate(`
		SELECT total_bonded::text, position_counter, liveliness_score::text, last_update::text,
		       per_share_snapshot::text, claimable::text, bound_position_id, auth_nonce::text
		FROM staker_ledgers WHERE vault = $1 AND owner = $2`)
	l := domain.StakerLedger{Vault: vault, Owner: owner}
	var counter, bound int64
	err := t.tx.QueryRow(ctx, query, vault, owner).Scan(
		num(&l.TotalBonded), &counter, num(&l.LivelinessScore), num(&l.LastUpdate),
		num(&l.PerShareSnapshot), num(&l.Claimable), &bound, num(&l.AuthNonce),
	)
	if err != nil {
		return domain.StakerLedger{}, notFound(err, fmt.Sprintf("staker %s/%s", vault, owner))
	}
	l.PositionCounter = uint32(counter)
	l.BoundPositionID = uint32(bound)
	return l, nil
}

func (t *ledgerTx) PutStaker(ctx context.Context, l domain.StakerLedger) error {
	const query = `
		INSERT INTO staker_ledgers (vault, owner, total_bonded, position_counter, liveliness_score,
		                            last_update, per_share_snapshot, claimable, bound_position_id, auth_nonce)
		VALUES ($1, $2, $3::numeric, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9, $10::numeric)
		ON CONFLICT (vault, owner) DO UPDATE SET
			total_bonded = EXCLUDED.total_bonded, position_counter = EXCLUDED.position_counter,
			liveliness_score = EXCLUDED.liveliness_score, last_update = EXCLUDED.last_update,
			per_share_snapshot = EXCLUDED.per_share_snapshot, claimable = EXCLUDED.claimable,
			bound_position_id = EXCLUDED.bound_position_id, auth_nonce = EXCLUDED.auth_nonce`
	_, err := t.tx.Exec(ctx, query,
		l.Vault, l.Owner, text(l.TotalBonded), int64(l.PositionCounter), text(l.LivelinessScore),
		text(l.LastUpdate), text(l.PerShareSnapshot), text(l.Claimable), int64(l.BoundPositionID),
		text(l.AuthNonce),
	)
	if err != nil {
		return fmt.Errorf("postgres: put staker %s/%s: %w", l.Vault, l.Owner, err)
	}
	return nil
}

const positionColumns = `vault, owner, id, state, is_vault, bond_timestamp::text, unbond_timestamp::text,
	bond_amount::text, asset_id, parent_id, start_nonce::text, end_nonce::text`

func (t *ledgerTx) Position(ctx context.Context, vault, owner string, id uint32) (domain.BondPosition, error) {
	query := t.forUpdate(`SELECT ` + positionColumns + ` FROM bond_positions WHERE vault = $1 AND owner = $2 AND id = $3`)
	rows, err := t.tx.Query(ctx, query, vault, owner, int64(id))
	if err != nil {
		return domain.BondPosition{}, fmt.Errorf("postgres: get position %d: %w", id, err)
	}
	positions, err := scanPositions(rows)
	if err != nil {
		return domain.BondPosition{}, err
	}
	if len(positions) == 0 {
		return domain.BondPosition{}, notFound(pgx.ErrNoRows, fmt.Sprintf("position %s/%s/%d", vault, owner, id))
	}
	return positions[0], nil
}

func (t *ledgerTx) PutPosition(ctx context.Context, p domain.BondPosition) error {
	const query = `
		INSERT INTO bond_positions (vault, owner, id, state, is_vault, bond_timestamp, unbond_timestamp,
		                            bond_amount, asset_id, parent_id, start_nonce, end_nonce)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11::numeric, $12::numeric)
		ON CONFLICT (vault, owner, id) DO UPDATE SET
			state = EXCLUDED.state, is_vault = EXCLUDED.is_vault,
			bond_timestamp = EXCLUDED.bond_timestamp, unbond_timestamp = EXCLUDED.unbond_timestamp,
			bond_amount = EXCLUDED.bond_amount, asset_id = EXCLUDED.asset_id,
			parent_id = EXCLUDED.parent_id, start_nonce = EXCLUDED.start_nonce, end_nonce = EXCLUDED.end_nonce`
	_, err := t.tx.Exec(ctx, query,
		p.Vault, p.Owner, int64(p.ID), int16(p.State), p.IsVault, text(p.BondTimestamp), text(p.UnbondTimestamp),
		text(p.BondAmount), p.AssetID, int64(p.ParentID), text(p.StartNonce), text(p.EndNonce),
	)
	if err != nil {
		return fmt.Errorf("postgres: put position %d: %w", p.ID, err)
	}
	return nil
}

func (t *ledgerTx) Positions(ctx context.Context, vault, owner string) ([]domain.BondPosition, error) {
	query := `SELECT ` + positionColumns + ` FROM bond_positions WHERE vault = $1 AND owner = $2 ORDER BY id`
	rows, err := t.tx.Query(ctx, t.forUpdate(query), vault, owner)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions %s/%s: %w", vault, owner, err)
	}
	return scanPositions(rows)
}

func scanPositions(rows pgx.Rows) ([]domain.BondPosition, error) {
	defer rows.Close()

	var positions []domain.BondPosition
	for rows.Next() {
		var p domain.BondPosition
		var id, parent int64
		var state int16
		if err := rows.Scan(
			&p.Vault, &p.Owner, &id, &state, &p.IsVault, num(&p.BondTimestamp), num(&p.UnbondTimestamp),
			num(&p.BondAmount), &p.AssetID, &parent, num(&p.StartNonce), num(&p.EndNonce),
		); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		p.ID = uint32(id)
		p.ParentID = uint32(parent)
		p.State = domain.PositionState(state)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: position rows: %w", err)
	}
	return positions, nil
}
