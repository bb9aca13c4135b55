package domain

import "context"

// AssetKind distinguishes a standalone NFT from a compressed leaf.
type AssetKind string

const (
	AssetNFT        AssetKind = "nft"
	AssetCompressed AssetKind = "cnft"
)

// AssetRef identifies the asset a new position is bonded against.
type AssetRef struct {
	Kind AssetKind `json:"kind"`
	// Mint is set for AssetNFT.
	Mint string `json:"mint,omitempty"`

	// Tree, Nonce, DataHash, CreatorHash and Proof are set for
	// AssetCompressed. Hashes are 0x-prefixed hex.
	Tree        string   `json:"tree,omitempty"`
	Nonce       uint64   `json:"nonce,omitempty"`
	DataHash    string   `json:"data_hash,omitempty"`
	CreatorHash string   `json:"creator_hash,omitempty"`
	Proof       []string `json:"proof,omitempty"`
}

// AssetMetadata is the on-record description of an NFT mint.
type AssetMetadata struct {
	Mint       string   `json:"mint"`
	Collection string   `json:"collection"`
	Creators   []string `json:"creators"`
}

// OwnershipVerifier checks that owner holds ref inside the configured
// collection and returns the asset id to store on the position.
type OwnershipVerifier interface {
	Verify(ctx context.Context, ref AssetRef, identity, owner string) (assetID string, err error)
}

// Clock supplies the wall-clock timestamp (seconds) and the tick counter the
// reward accumulator advances on.
type Clock interface {
	Now() (timestamp, tick uint64)
}
