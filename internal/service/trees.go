package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/proof"
)

// MaxTreeDepth caps the trees PlantTree builds in memory.
const MaxTreeDepth = 20

// TreeLeaf is one compressed asset minted into a tree. Its leaf index is its
// nonce.
type TreeLeaf struct {
	Owner       string `json:"owner"`
	Nonce       uint64 `json:"nonce"`
	DataHash    string `json:"data_hash"`
	CreatorHash string `json:"creator_hash"`
}

// PlantedLeaf is a leaf with what a staker needs to bond it.
type PlantedLeaf struct {
	TreeLeaf
	AssetID string   `json:"asset_id"`
	Proof   []string `json:"proof"`
}

// PlantedTree is the result of PlantTree.
type PlantedTree struct {
	Tree   string        `json:"tree"`
	Root   string        `json:"root"`
	Depth  int           `json:"depth"`
	Leaves []PlantedLeaf `json:"leaves"`
}

// PlantTree builds the merkle tree of depth over leaves, publishes its root
// as tree's current root and returns every leaf's proof. It serves devnets
// and operators mirroring an off-ledger tree.
func (s *LedgerService) PlantTree(ctx context.Context, tree string, depth int, leaves []TreeLeaf) (PlantedTree, error) {
	if tree == "" || depth < 0 || depth > MaxTreeDepth || len(leaves) == 0 {
		return PlantedTree{}, fmt.Errorf("service: plant tree %q depth %d: %w", tree, depth, domain.ErrWrongValue)
	}
	width := uint64(1) << depth
	hashes := make([]common.Hash, width)
	filled := make(map[uint64]bool, len(leaves))
	out := PlantedTree{Tree: tree, Depth: depth, Leaves: make([]PlantedLeaf, len(leaves))}
	for i, leaf := range leaves {
		if leaf.Owner == "" || leaf.Nonce >= width || filled[leaf.Nonce] {
			return PlantedTree{}, fmt.Errorf("service: plant tree %s leaf %d: %w", tree, leaf.Nonce, domain.ErrWrongValue)
		}
		if err := proof.ValidateHash(leaf.DataHash); err != nil {
			return PlantedTree{}, fmt.Errorf("service: plant tree %s leaf %d data hash: %w", tree, leaf.Nonce, err)
		}
		if err := proof.ValidateHash(leaf.CreatorHash); err != nil {
			return PlantedTree{}, fmt.Errorf("service: plant tree %s leaf %d creator hash: %w", tree, leaf.Nonce, err)
		}
		id, err := proof.AssetID(tree, leaf.Nonce)
		if err != nil {
			return PlantedTree{}, fmt.Errorf("service: plant tree %s: %w", tree, err)
		}
		filled[leaf.Nonce] = true
		hashes[leaf.Nonce] = proof.LeafHash(common.HexToHash(id), leaf.Owner, leaf.Nonce,
			common.HexToHash(leaf.DataHash), common.HexToHash(leaf.CreatorHash))
		out.Leaves[i] = PlantedLeaf{TreeLeaf: leaf, AssetID: id}
	}

	mt, err := proof.BuildTree(hashes, depth)
	if err != nil {
		return PlantedTree{}, fmt.Errorf("service: plant tree %s: %w", tree, err)
	}
	for i := range out.Leaves {
		for _, h := range mt.Proof(out.Leaves[i].Nonce) {
			out.Leaves[i].Proof = append(out.Leaves[i].Proof, h.Hex())
		}
	}
	out.Root = mt.Root().Hex()
	if err := s.registry.PutTreeRoot(ctx, tree, out.Root); err != nil {
		return PlantedTree{}, fmt.Errorf("service: plant tree %s: %w", tree, err)
	}
	s.logger.InfoContext(ctx, "tree planted",
		slog.String("tree", tree),
		slog.String("root", out.Root),
		slog.Int("leaves", len(leaves)),
	)
	return out, nil
}
