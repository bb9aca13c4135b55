package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// Headers carrying a staker's signature over an owner operation.
const (
	HeaderOwnerNonce     = "X-Owner-Nonce"
	HeaderOwnerSignature = "X-Owner-Signature"
)

const (
	domainName    = "BondLedger"
	domainVersion = "1"
)

var (
	// EIP712Domain(string name,string version,uint256 chainId)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)

	// BondAction(string op,string vault,uint32 bondId,uint64 nonce)
	bondActionTypeHash = ethcrypto.Keccak256(
		[]byte("BondAction(string op,string vault,uint32 bondId,uint64 nonce)"),
	)
)

// ErrBadOwnerSignature is returned when a signature does not recover to the
// staker named by the request.
var ErrBadOwnerSignature = fmt.Errorf("%w: bad owner signature", domain.ErrUnauthorized)

// Action is the signed statement "owner performs Op on Vault's bond BondID".
// BondID is 0 for operations that create positions or touch none.
type Action struct {
	Op     string
	Vault  string
	BondID uint32
	Nonce  uint64
}

// OwnerSigner produces staker signatures. The server never holds staker keys;
// clients and tests use it.
type OwnerSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	domainSep  []byte
}

// NewOwnerSigner creates an OwnerSigner from a hex-encoded secp256k1 private
// key.
func NewOwnerSigner(privateKeyHex string, chainID int64) (*OwnerSigner, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return NewOwnerSignerFromKey(pk, chainID), nil
}

func NewOwnerSignerFromKey(pk *ecdsa.PrivateKey, chainID int64) *OwnerSigner {
	return &OwnerSigner{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		domainSep:  buildDomainSeparator(chainID),
	}
}

// Address is the checksummed staker address the signer speaks for.
func (s *OwnerSigner) Address() string { return s.address.Hex() }

// Sign returns the 65-byte r||s||v signature over a, hex-encoded with a 0x
// prefix.
func (s *OwnerSigner) Sign(a Action) (string, error) {
	sig, err := ethcrypto.Sign(eip712Hash(s.domainSep, actionStructHash(a)), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; EIP-712 expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// OwnerVerifier recovers and checks staker signatures.
type OwnerVerifier struct {
	domainSep []byte
}

func NewOwnerVerifier(chainID int64) *OwnerVerifier {
	return &OwnerVerifier{domainSep: buildDomainSeparator(chainID)}
}

// Recover returns the checksummed address that signed a.
func (v *OwnerVerifier) Recover(a Action, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != 65 {
		return "", ErrBadOwnerSignature
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(eip712Hash(v.domainSep, actionStructHash(a)), sig)
	if err != nil {
		return "", ErrBadOwnerSignature
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

// Verify checks that signature over a was made by owner. Owner must be the
// checksummed address; stakers are keyed by it.
func (v *OwnerVerifier) Verify(a Action, signature, owner string) error {
	addr, err := v.Recover(a, signature)
	if err != nil {
		return err
	}
	if addr != owner {
		return ErrBadOwnerSignature
	}
	return nil
}

// buildDomainSeparator returns keccak256(abi.encode(typeHash, nameHash, versionHash, chainId)).
func buildDomainSeparator(chainID int64) []byte {
	return ethcrypto.Keccak256(
		eip712DomainTypeHash,
		ethcrypto.Keccak256([]byte(domainName)),
		ethcrypto.Keccak256([]byte(domainVersion)),
		common.LeftPadBytes(big.NewInt(chainID).Bytes(), 32),
	)
}

func actionStructHash(a Action) []byte {
	return ethcrypto.Keccak256(
		bondActionTypeHash,
		ethcrypto.Keccak256([]byte(a.Op)),
		ethcrypto.Keccak256([]byte(a.Vault)),
		common.LeftPadBytes(new(big.Int).SetUint64(uint64(a.BondID)).Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(a.Nonce).Bytes(), 32),
	)
}

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256([]byte{0x19, 0x01}, domainSep, structHash)
}
