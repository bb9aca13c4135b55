package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/bondledger/internal/bonding"
	"github.com/alanyoungcy/bondledger/internal/crypto"
	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/service"
)

// LedgerService is the subset of service.LedgerService the staker-facing and
// read routes call.
type LedgerService interface {
	InitializeAddress(ctx context.Context, vault, owner string) (bonding.Receipt, error)
	Bond(ctx context.Context, vault, owner string, req bonding.BondRequest) (bonding.Receipt, error)
	Renew(ctx context.Context, vault, owner string, id uint32) (bonding.Receipt, error)
	TopUp(ctx context.Context, vault, owner string, id uint32, amount uint64) (bonding.Receipt, error)
	Withdraw(ctx context.Context, vault, owner string, id uint32) (bonding.Receipt, error)
	StakeRewards(ctx context.Context, vault, owner string, id uint32) (bonding.Receipt, error)
	ClaimRewards(ctx context.Context, vault, owner string, id uint32) (bonding.Receipt, error)
	BondRange(ctx context.Context, vault, owner string, req bonding.BondRangeRequest) (bonding.Receipt, error)
	BindVaultBond(ctx context.Context, vault, owner string, id uint32, nonce uint64) (bonding.Receipt, error)

	Vault(ctx context.Context, vault string) (service.VaultView, error)
	Staker(ctx context.Context, vault, owner string) (bonding.Preview, error)
	Positions(ctx context.Context, vault, owner string) ([]domain.BondPosition, error)
	Balance(ctx context.Context, account string) (uint64, error)
	Journal(ctx context.Context, opts domain.ListOpts) ([]domain.JournalEntry, error)
}

// LedgerHandler serves the vault, staker and position routes.
type LedgerHandler struct {
	svc    LedgerService
	logger *slog.Logger
}

func NewLedgerHandler(svc LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, logger: logHandler(logger, "ledger")}
}

type bondBody struct {
	Owner string `json:"owner"`
	bonding.BondRequest
}

type rangeBody struct {
	Owner string `json:"owner"`
	bonding.BondRangeRequest
}

// positionBody carries the caller for the per-position routes. Amount is used
// by topup and Nonce by bind.
type positionBody struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount,omitempty"`
	Nonce  uint64 `json:"nonce,omitempty"`
}

// ownerContext attaches the request's owner signature headers, when present,
// to the context the service authenticates against.
func ownerContext(r *http.Request) (context.Context, error) {
	sig := r.Header.Get(crypto.HeaderOwnerSignature)
	if sig == "" {
		return r.Context(), nil
	}
	nonce, err := strconv.ParseUint(r.Header.Get(crypto.HeaderOwnerNonce), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", crypto.HeaderOwnerNonce, domain.ErrWrongValue)
	}
	return service.WithAuthorization(r.Context(), service.Authorization{Nonce: nonce, Signature: sig}), nil
}

// GetVault returns the vault's config, pool, totals and token balance.
// GET /api/vaults/{vault}/pool
func (h *LedgerHandler) GetVault(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Vault(r.Context(), pathParam(r, "vault"))
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetStaker returns the staker's settled ledger and pending rewards as of now.
// GET /api/vaults/{vault}/stakers/{owner}
func (h *LedgerHandler) GetStaker(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Staker(r.Context(), pathParam(r, "vault"), pathParam(r, "owner"))
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// InitializeStaker creates the staker's ledger.
// POST /api/vaults/{vault}/stakers/{owner}
func (h *LedgerHandler) InitializeStaker(w http.ResponseWriter, r *http.Request) {
	ctx, err := ownerContext(r)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	rcpt, err := h.svc.InitializeAddress(ctx, pathParam(r, "vault"), pathParam(r, "owner"))
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rcpt)
}

// ListPositions returns every position the staker holds in the vault.
// GET /api/vaults/{vault}/stakers/{owner}/positions
func (h *LedgerHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Positions(r.Context(), pathParam(r, "vault"), pathParam(r, "owner"))
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	if ps == nil {
		ps = []domain.BondPosition{}
	}
	writeJSON(w, http.StatusOK, ps)
}

// CreateBond opens a new position.
// POST /api/vaults/{vault}/bonds
func (h *LedgerHandler) CreateBond(w http.ResponseWriter, r *http.Request) {
	ctx, err := ownerContext(r)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	var body bondBody
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	rcpt, err := h.svc.Bond(ctx, pathParam(r, "vault"), body.Owner, body.BondRequest)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rcpt)
}

// CreateRange opens a child position over a nonce range of a vault bond.
// POST /api/vaults/{vault}/ranges
func (h *LedgerHandler) CreateRange(w http.ResponseWriter, r *http.Request) {
	ctx, err := ownerContext(r)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	var body rangeBody
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	rcpt, err := h.svc.BondRange(ctx, pathParam(r, "vault"), body.Owner, body.BondRangeRequest)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rcpt)
}

// positionOp binds one of the per-position operations to a handler.
func (h *LedgerHandler) positionOp(fn func(ctx context.Context, vault string, id uint32, body positionBody) (bonding.Receipt, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := positionID(r)
		if err != nil {
			writeServiceError(w, h.logger, r, err)
			return
		}
		ctx, err := ownerContext(r)
		if err != nil {
			writeServiceError(w, h.logger, r, err)
			return
		}
		var body positionBody
		if err := decodeJSON(r, &body); err != nil {
			writeServiceError(w, h.logger, r, err)
			return
		}
		rcpt, err := fn(ctx, pathParam(r, "vault"), id, body)
		if err != nil {
			writeServiceError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rcpt)
	}
}

// POST /api/vaults/{vault}/bonds/{id}/renew
func (h *LedgerHandler) Renew() http.HandlerFunc {
	return h.positionOp(func(ctx context.Context, vault string, id uint32, b positionBody) (bonding.Receipt, error) {
		return h.svc.Renew(ctx, vault, b.Owner, id)
	})
}

// POST /api/vaults/{vault}/bonds/{id}/topup
func (h *LedgerHandler) TopUp() http.HandlerFunc {
	return h.positionOp(func(ctx context.Context, vault string, id uint32, b positionBody) (bonding.Receipt, error) {
		return h.svc.TopUp(ctx, vault, b.Owner, id, b.Amount)
	})
}

// POST /api/vaults/{vault}/bonds/{id}/withdraw
func (h *LedgerHandler) Withdraw() http.HandlerFunc {
	return h.positionOp(func(ctx context.Context, vault string, id uint32, b positionBody) (bonding.Receipt, error) {
		return h.svc.Withdraw(ctx, vault, b.Owner, id)
	})
}

// POST /api/vaults/{vault}/bonds/{id}/compound
func (h *LedgerHandler) Compound() http.HandlerFunc {
	return h.positionOp(func(ctx context.Context, vault string, id uint32, b positionBody) (bonding.Receipt, error) {
		return h.svc.StakeRewards(ctx, vault, b.Owner, id)
	})
}

// POST /api/vaults/{vault}/bonds/{id}/claim
func (h *LedgerHandler) Claim() http.HandlerFunc {
	return h.positionOp(func(ctx context.Context, vault string, id uint32, b positionBody) (bonding.Receipt, error) {
		return h.svc.ClaimRewards(ctx, vault, b.Owner, id)
	})
}

// POST /api/vaults/{vault}/bonds/{id}/bind
func (h *LedgerHandler) Bind() http.HandlerFunc {
	return h.positionOp(func(ctx context.Context, vault string, id uint32, b positionBody) (bonding.Receipt, error) {
		return h.svc.BindVaultBond(ctx, vault, b.Owner, id, b.Nonce)
	})
}

// GetBalance returns a token account balance.
// GET /api/accounts/{account}/balance
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := pathParam(r, "account")
	bal, err := h.svc.Balance(r.Context(), account)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account, "balance": bal})
}

// ListJournal pages through committed operations, newest first.
// GET /api/journal?limit=&offset=&since=&until=
func (h *LedgerHandler) ListJournal(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	entries, err := h.svc.Journal(r.Context(), opts)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
