package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bondledger/internal/bonding"
	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/service"
)

// AdminService is the subset of service.LedgerService the admin routes call.
type AdminService interface {
	AddRewards(ctx context.Context, vault, from string, amount uint64) (bonding.Receipt, error)
	RemoveRewards(ctx context.Context, vault, to string, amount uint64) (bonding.Receipt, error)
	ConfigureBond(ctx context.Context, cfg domain.BondConfig) (domain.BondConfig, error)
	ConfigurePool(ctx context.Context, vault string, set bonding.PoolSettings) (domain.RewardPool, error)
	Credit(ctx context.Context, account string, amount uint64) (bonding.Receipt, error)
	RegisterAsset(ctx context.Context, meta domain.AssetMetadata) error
	SetTreeRoot(ctx context.Context, tree, root string) error
	PlantTree(ctx context.Context, tree string, depth int, leaves []service.TreeLeaf) (service.PlantedTree, error)
}

// Advancer moves a manual clock forward. Only set when the ledger runs on
// one, so operators can step through lock periods.
type Advancer interface {
	Advance(seconds, ticks uint64) (timestamp, tick uint64)
}

// AdminHandler serves the signed /api/admin routes.
type AdminHandler struct {
	svc    AdminService
	clock  Advancer
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler. clock may be nil.
func NewAdminHandler(svc AdminService, clock Advancer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, clock: clock, logger: logHandler(logger, "admin")}
}

type rewardsBody struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// AddRewards moves tokens from an account into the vault's reward reserve.
// POST /api/admin/vaults/{vault}/rewards/add
func (h *AdminHandler) AddRewards(w http.ResponseWriter, r *http.Request) {
	h.rewards(w, r, h.svc.AddRewards)
}

// RemoveRewards moves tokens out of the reward reserve to an account.
// POST /api/admin/vaults/{vault}/rewards/remove
func (h *AdminHandler) RemoveRewards(w http.ResponseWriter, r *http.Request) {
	h.rewards(w, r, h.svc.RemoveRewards)
}

func (h *AdminHandler) rewards(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string, uint64) (bonding.Receipt, error)) {
	var body rewardsBody
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	rcpt, err := fn(r.Context(), pathParam(r, "vault"), body.Account, body.Amount)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

// PutBondConfig creates or replaces the vault's bond config. The vault comes
// from the path.
// PUT /api/admin/vaults/{vault}/bond-config
func (h *AdminHandler) PutBondConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.BondConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	cfg.Vault = pathParam(r, "vault")
	out, err := h.svc.ConfigureBond(r.Context(), cfg)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// poolBody is bonding.PoolSettings with an optional cap policy. Clients that
// predate cap_policy send only max_apr_bps, where zero meant uncapped.
type poolBody struct {
	State       domain.State      `json:"state"`
	RatePerTick uint64            `json:"rate_per_tick"`
	MaxAprBps   uint64            `json:"max_apr_bps"`
	CapPolicy   *domain.CapPolicy `json:"cap_policy"`
}

// PutPool creates or updates the vault's reward pool settings.
// PUT /api/admin/vaults/{vault}/pool
func (h *AdminHandler) PutPool(w http.ResponseWriter, r *http.Request) {
	var body poolBody
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	set := bonding.PoolSettings{
		State:       body.State,
		RatePerTick: body.RatePerTick,
		MaxAprBps:   body.MaxAprBps,
		CapPolicy:   domain.CapPolicyFromLegacy(body.MaxAprBps),
	}
	if body.CapPolicy != nil {
		set.CapPolicy = *body.CapPolicy
	}
	pool, err := h.svc.ConfigurePool(r.Context(), pathParam(r, "vault"), set)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// Credit mints tokens into an account.
// POST /api/admin/accounts/{account}/credit
func (h *AdminHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount uint64 `json:"amount"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	rcpt, err := h.svc.Credit(r.Context(), pathParam(r, "account"), body.Amount)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

// PutAsset registers NFT metadata. The mint comes from the path.
// PUT /api/admin/assets/{mint}
func (h *AdminHandler) PutAsset(w http.ResponseWriter, r *http.Request) {
	var meta domain.AssetMetadata
	if err := decodeJSON(r, &meta); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	meta.Mint = pathParam(r, "mint")
	if err := h.svc.RegisterAsset(r.Context(), meta); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// PutTreeRoot sets a compressed-NFT tree's current root.
// PUT /api/admin/trees/{tree}/root
func (h *AdminHandler) PutTreeRoot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Root string `json:"root"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	tree := pathParam(r, "tree")
	if err := h.svc.SetTreeRoot(r.Context(), tree, body.Root); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tree": tree, "root": body.Root})
}

// PostTreeLeaves builds a compressed-asset tree from its leaves, publishes
// the root and returns each leaf's asset id and proof.
// POST /api/admin/trees/{tree}/leaves
func (h *AdminHandler) PostTreeLeaves(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Depth  int                `json:"depth"`
		Leaves []service.TreeLeaf `json:"leaves"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	planted, err := h.svc.PlantTree(r.Context(), pathParam(r, "tree"), body.Depth, body.Leaves)
	if err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planted)
}

// AdvanceClock steps the manual clock. 404 when the ledger uses the system
// clock.
// POST /api/admin/clock/advance
func (h *AdminHandler) AdvanceClock(w http.ResponseWriter, r *http.Request) {
	if h.clock == nil {
		writeError(w, http.StatusNotFound, "clock is not manual")
		return
	}
	var body struct {
		Seconds uint64 `json:"seconds"`
		Ticks   uint64 `json:"ticks"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, h.logger, r, err)
		return
	}
	ts, tick := h.clock.Advance(body.Seconds, body.Ticks)
	h.logger.InfoContext(r.Context(), "clock advanced",
		slog.Uint64("timestamp", ts),
		slog.Uint64("tick", tick),
	)
	writeJSON(w, http.StatusOK, map[string]uint64{"timestamp": ts, "tick": tick})
}
