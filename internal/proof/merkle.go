// Package proof verifies that a staker holds the asset a position is bonded
// against: a collection-gated NFT checked against registry metadata, or a
// compressed leaf checked against its tree's merkle root.
package proof

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// AssetID derives the id of the compressed asset minted at nonce in tree.
func AssetID(tree string, nonce uint64) (string, error) {
	if tree == "" {
		return "", fmt.Errorf("proof: asset id: empty tree: %w", domain.ErrWrongValue)
	}
	return crypto.Keccak256Hash([]byte("asset"), []byte(tree), le64(nonce)).Hex(), nil
}

// LeafHash is the hash stored in the tree for one compressed asset.
func LeafHash(assetID common.Hash, owner string, nonce uint64, dataHash, creatorHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(assetID.Bytes(), []byte(owner), le64(nonce), dataHash.Bytes(), creatorHash.Bytes())
}

func hashPair(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left.Bytes(), right.Bytes())
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// ComputeRoot folds proof into leaf along the path selected by index.
func ComputeRoot(leaf common.Hash, index uint64, proof []common.Hash) common.Hash {
	node := leaf
	for i, sibling := range proof {
		if index>>uint(i)&1 == 0 {
			node = hashPair(node, sibling)
		} else {
			node = hashPair(sibling, node)
		}
	}
	return node
}

// Tree is a complete binary merkle tree with empty leaves zero-filled.
type Tree struct {
	levels [][]common.Hash
}

// BuildTree builds a tree of the given depth over leaves.
func BuildTree(leaves []common.Hash, depth int) (*Tree, error) {
	width := 1 << depth
	if len(leaves) > width {
		return nil, fmt.Errorf("proof: %d leaves exceed depth %d", len(leaves), depth)
	}
	level := make([]common.Hash, width)
	copy(level, leaves)
	levels := [][]common.Hash{level}
	for len(level) > 1 {
		next := make([]common.Hash, len(level)/2)
		for i := range next {
			next[i] = hashPair(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}, nil
}

// Root is the tree's root hash.
func (t *Tree) Root() common.Hash {
	return t.levels[len(t.levels)-1][0]
}

// Proof returns the sibling path for leaf index.
func (t *Tree) Proof(index uint64) []common.Hash {
	path := make([]common.Hash, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		path = append(path, level[index^1])
		index >>= 1
	}
	return path
}

// CompressedVerifier proves compressed-asset ownership against tree roots
// held in an AssetRegistry.
type CompressedVerifier struct {
	registry domain.AssetRegistry
}

// NewCompressedVerifier creates a verifier reading roots from registry.
func NewCompressedVerifier(registry domain.AssetRegistry) *CompressedVerifier {
	return &CompressedVerifier{registry: registry}
}

// Verify checks ref's leaf is in the tree identity and owned by owner.
func (v *CompressedVerifier) Verify(ctx context.Context, ref domain.AssetRef, identity, owner string) (string, error) {
	if ref.Tree != identity {
		return "", fmt.Errorf("proof: tree %s: %w", ref.Tree, domain.ErrWrongCollection)
	}
	rootHex, err := v.registry.TreeRoot(ctx, ref.Tree)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("proof: tree %s has no root: %w", ref.Tree, domain.ErrWrongCollection)
		}
		return "", fmt.Errorf("proof: load tree root: %w", err)
	}
	root, err := parseHash(rootHex)
	if err != nil {
		return "", fmt.Errorf("proof: stored root: %w", err)
	}

	dataHash, err := parseHash(ref.DataHash)
	if err != nil {
		return "", fmt.Errorf("proof: data hash: %w", err)
	}
	creatorHash, err := parseHash(ref.CreatorHash)
	if err != nil {
		return "", fmt.Errorf("proof: creator hash: %w", err)
	}
	path := make([]common.Hash, len(ref.Proof))
	for i, h := range ref.Proof {
		if path[i], err = parseHash(h); err != nil {
			return "", fmt.Errorf("proof: proof node %d: %w", i, err)
		}
	}

	assetID, err := AssetID(ref.Tree, ref.Nonce)
	if err != nil {
		return "", err
	}
	leaf := LeafHash(common.HexToHash(assetID), owner, ref.Nonce, dataHash, creatorHash)
	if ComputeRoot(leaf, ref.Nonce, path) != root {
		return "", fmt.Errorf("proof: leaf %d of %s: %w", ref.Nonce, ref.Tree, domain.ErrInvalidProof)
	}
	return assetID, nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%q is not a 32-byte hex hash: %w", s, domain.ErrInvalidProof)
	}
	return common.BytesToHash(b), nil
}

// ValidateHash reports whether s is a 0x-prefixed 32-byte hex hash.
func ValidateHash(s string) error {
	_, err := parseHash(s)
	return err
}
