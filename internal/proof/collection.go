package proof

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// CollectionVerifier proves NFT ownership from registry metadata: the mint
// must belong to the configured collection and list the owner as a creator.
type CollectionVerifier struct {
	registry domain.AssetRegistry
}

// NewCollectionVerifier creates a verifier reading metadata from registry.
func NewCollectionVerifier(registry domain.AssetRegistry) *CollectionVerifier {
	return &CollectionVerifier{registry: registry}
}

// Verify checks the metadata of ref.Mint and returns the mint as asset id.
func (v *CollectionVerifier) Verify(ctx context.Context, ref domain.AssetRef, identity, owner string) (string, error) {
	meta, err := v.registry.Asset(ctx, ref.Mint)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("proof: mint %s has no metadata: %w", ref.Mint, domain.ErrMintMismatch)
		}
		return "", fmt.Errorf("proof: load metadata: %w", err)
	}
	if meta.Mint != ref.Mint {
		return "", fmt.Errorf("proof: metadata for %s: %w", ref.Mint, domain.ErrMintMismatch)
	}
	if meta.Collection == "" || meta.Collection != identity {
		return "", fmt.Errorf("proof: mint %s in collection %q: %w", ref.Mint, meta.Collection, domain.ErrWrongCollection)
	}
	if !slices.Contains(meta.Creators, owner) {
		return "", fmt.Errorf("proof: %s for mint %s: %w", owner, ref.Mint, domain.ErrNotCreator)
	}
	return ref.Mint, nil
}

// Verifier dispatches on the asset kind.
type Verifier struct {
	nft  *CollectionVerifier
	cnft *CompressedVerifier
}

// NewVerifier returns a verifier for both asset kinds backed by registry.
func NewVerifier(registry domain.AssetRegistry) *Verifier {
	return &Verifier{
		nft:  NewCollectionVerifier(registry),
		cnft: NewCompressedVerifier(registry),
	}
}

var _ domain.OwnershipVerifier = (*Verifier)(nil)

// Verify implements domain.OwnershipVerifier.
func (v *Verifier) Verify(ctx context.Context, ref domain.AssetRef, identity, owner string) (string, error) {
	switch ref.Kind {
	case domain.AssetNFT:
		return v.nft.Verify(ctx, ref, identity, owner)
	case domain.AssetCompressed:
		return v.cnft.Verify(ctx, ref, identity, owner)
	default:
		return "", fmt.Errorf("proof: asset kind %q: %w", ref.Kind, domain.ErrWrongValue)
	}
}
