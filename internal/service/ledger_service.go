package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/bondledger/internal/bonding"
	"github.com/alanyoungcy/bondledger/internal/crypto"
	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/notify"
)

// DefaultLockTTL bounds how long one operation may hold its vault lock.
const DefaultLockTTL = 10 * time.Second

// Alerter delivers operator alerts.
type Alerter interface {
	Notify(ctx context.Context, a notify.Alert) error
}

// LedgerDeps are the collaborators of a LedgerService. Locks, Bus, Alerts
// and Owners are optional.
type LedgerDeps struct {
	Store    domain.LedgerStore
	Journal  domain.JournalStore
	Registry domain.AssetRegistry
	Ledger   *bonding.Ledger
	Locks    domain.LockManager
	Bus      domain.SignalBus
	Alerts   Alerter

	// Owners verifies staker signatures on owner operations. Nil trusts the
	// owner named in the request.
	Owners *crypto.OwnerVerifier

	LockTTL time.Duration

	// LockWait bounds how long an operation queues for its vault lock.
	// Defaults to LockTTL.
	LockWait time.Duration
}

// LedgerService runs every ledger operation as one unit: take the vault lock,
// open a store transaction, execute, commit, journal, then publish.
type LedgerService struct {
	store    domain.LedgerStore
	journal  domain.JournalStore
	registry domain.AssetRegistry
	ledger   *bonding.Ledger
	locks    domain.LockManager
	bus      domain.SignalBus
	alerts   Alerter
	owners   *crypto.OwnerVerifier
	lockTTL  time.Duration
	lockWait time.Duration
	logger   *slog.Logger
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(deps LedgerDeps, logger *slog.Logger) *LedgerService {
	ttl := deps.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	wait := deps.LockWait
	if wait <= 0 {
		wait = ttl
	}
	return &LedgerService{
		store:    deps.Store,
		journal:  deps.Journal,
		registry: deps.Registry,
		ledger:   deps.Ledger,
		locks:    deps.Locks,
		bus:      deps.Bus,
		alerts:   deps.Alerts,
		owners:   deps.Owners,
		lockTTL:  ttl,
		lockWait: wait,
		logger:   logger.With(slog.String("component", "ledger_service")),
	}
}

type txnFunc func(ctx context.Context, txn *bonding.Txn) (bonding.Receipt, error)

// execute runs fn over scope as one committed operation. Owner operations
// must carry a signature from the owner when a verifier is configured.
func (s *LedgerService) execute(ctx context.Context, op string, scope bonding.Scope, fn txnFunc) (bonding.Receipt, error) {
	nonce, signed, err := s.authorize(ctx, op, scope)
	if err != nil {
		s.logFailure(ctx, op, scope.Vault, scope.Owner, err)
		return bonding.Receipt{}, err
	}
	return s.mutate(ctx, op, scope.Vault, scope.Owner, func(ctx context.Context, tx domain.LedgerTx) (bonding.Receipt, error) {
		txn, err := s.ledger.Begin(ctx, tx, scope)
		if err != nil {
			return bonding.Receipt{}, err
		}
		r, err := fn(ctx, txn)
		if err != nil {
			return r, err
		}
		if signed {
			if err := txn.ConsumeNonce(nonce); err != nil {
				return r, err
			}
		}
		if err := txn.Commit(ctx); err != nil {
			return r, err
		}
		r.Transfers = txn.Transfers()
		return r, nil
	})
}

type mutateFunc func(ctx context.Context, tx domain.LedgerTx) (bonding.Receipt, error)

// mutate holds the vault lock around one store transaction that runs fn and
// journals its receipt. Events go out only after the transaction commits.
func (s *LedgerService) mutate(ctx context.Context, op, vault, owner string, fn mutateFunc) (bonding.Receipt, error) {
	if vault == "" {
		return bonding.Receipt{}, fmt.Errorf("service: %s: vault: %w", op, domain.ErrWrongValue)
	}
	if s.locks != nil {
		waitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
		release, err := s.locks.Acquire(waitCtx, lockKey(vault), s.lockTTL)
		cancel()
		if err != nil {
			s.logFailure(ctx, op, vault, owner, err)
			return bonding.Receipt{}, fmt.Errorf("service: %s: %w", op, err)
		}
		defer release()
	}

	opID := uuid.NewString()
	at := time.Now().UTC()
	var r bonding.Receipt
	err := s.store.InTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		if r, err = fn(ctx, tx); err != nil {
			return err
		}
		if r.Op == "" {
			r.Op, r.Vault, r.Owner = op, vault, owner
		}
		return tx.AppendJournal(ctx, domain.JournalEntry{
			OpID:      opID,
			Op:        r.Op,
			Vault:     r.Vault,
			Owner:     r.Owner,
			Detail:    receiptDetail(r),
			CreatedAt: at,
		})
	})
	if err != nil {
		s.logFailure(ctx, op, vault, owner, err)
		return bonding.Receipt{}, err
	}

	s.logger.InfoContext(ctx, "ledger operation committed",
		slog.String("op_id", opID),
		slog.String("op", r.Op),
		slog.String("vault", r.Vault),
		slog.String("owner", r.Owner),
		slog.Uint64("position_id", uint64(r.PositionID)),
		slog.Uint64("amount", r.Amount),
		slog.Uint64("paid", r.Paid),
		slog.Uint64("penalty", r.Penalty),
		slog.Uint64("credited", r.Credited),
		slog.Uint64("forfeited", r.Forfeited),
	)
	s.publish(ctx, toEvent(opID, r, at))
	return r, nil
}

func (s *LedgerService) logFailure(ctx context.Context, op, vault, owner string, err error) {
	kind := domain.KindOf(err)
	level := slog.LevelWarn
	if kind == domain.KindInternal {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "ledger operation aborted",
		slog.String("op", op),
		slog.String("vault", vault),
		slog.String("owner", owner),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)
}

// publish fans a committed event out to the bus and the alert channels. Both
// are best effort; the operation has already committed.
func (s *LedgerService) publish(ctx context.Context, ev domain.LedgerEvent) {
	if s.bus != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			err = errors.Join(
				s.bus.Publish(ctx, domain.ChannelLedgerEvents, payload),
				s.bus.StreamAppend(ctx, domain.StreamLedgerJournal, map[string]any{
					"op_id":   ev.OpID,
					"op":      ev.Op,
					"vault":   ev.Vault,
					"payload": string(payload),
				}),
			)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "publish ledger event failed",
				slog.String("op_id", ev.OpID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.alerts != nil {
		if a, ok := notify.PenaltyCollected(ev); ok {
			if err := s.alerts.Notify(ctx, a); err != nil {
				s.logger.WarnContext(ctx, "penalty alert failed", slog.String("error", err.Error()))
			}
		}
	}
}

func lockKey(vault string) string { return "vault:" + vault }

func toEvent(opID string, r bonding.Receipt, at time.Time) domain.LedgerEvent {
	return domain.LedgerEvent{
		OpID:       opID,
		Op:         r.Op,
		Vault:      r.Vault,
		Owner:      r.Owner,
		PositionID: r.PositionID,
		Amount:     r.Amount,
		Paid:       r.Paid,
		Penalty:    r.Penalty,
		Forfeited:  r.Forfeited,
		Timestamp:  at,
	}
}

func receiptDetail(r bonding.Receipt) map[string]any {
	d := map[string]any{}
	put := func(k string, v uint64) {
		if v != 0 {
			d[k] = v
		}
	}
	put("position_id", uint64(r.PositionID))
	put("amount", r.Amount)
	put("paid", r.Paid)
	put("penalty", r.Penalty)
	put("credited", r.Credited)
	put("forfeited", r.Forfeited)
	put("booked", r.Booked)
	if r.Unbound {
		d["unbound"] = true
	}
	if len(r.Transfers) > 0 {
		d["transfers"] = r.Transfers
	}
	return d
}
