package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/horaja/arbitrage-engine/internal/domain"
)

// --------------------------------------------------------------------------
// EIP-712 type hashes (pre-computed keccak256 of the canonical type strings).
// --------------------------------------------------------------------------

var (
	// EIP712Domain(string name,string version,uint256 chainId)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)

	// ExecutionIntent(string currencies,uint256 rateProductE18,uint256 detectedAt,uint256 nonce)
	intentTypeHash = ethcrypto.Keccak256(
		[]byte("ExecutionIntent(string currencies,uint256 rateProductE18,uint256 detectedAt,uint256 nonce)"),
	)
)

// intentDomainName is the EIP-712 domain name under which execution intents
// are signed. It is not an exchange's own signing domain: the Execution
// Gateway never submits orders, so this digest exists purely as a portable,
// independently-verifiable audit record of "the engine observed this cycle
// and an allowing risk verdict was attached to it".
const intentDomainName = "ArbitrageEngineIntentDomain"

// Signer provides EIP-712-style digest signing for execution-intent
// audit records.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int
	domainSep  []byte // cached EIP-712 domain separator hash
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key and a
// chain ID used only to namespace the domain separator (the gateway never
// submits a transaction to any chain).
func NewSigner(privateKeyHex string, chainID int) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	addr := ethcrypto.PubkeyToAddress(pk.PublicKey)

	s := &Signer{
		privateKey: pk,
		address:    addr,
		chainID:    chainID,
	}
	s.domainSep = s.buildDomainSeparator(intentDomainName, "1", chainID)

	return s, nil
}

// Address returns the address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignIntent signs an EIP-712 digest over a detected cycle, a nonce, and the
// detection time, producing a hex-encoded 65-byte signature. This is purely
// an audit artifact: nothing in this repository submits the signed intent
// anywhere.
func (s *Signer) SignIntent(event domain.CycleEvent, nonce int64) (string, error) {
	structHash := ethcrypto.Keccak256(
		concatBytes(
			intentTypeHash,
			ethcrypto.Keccak256([]byte(strings.Join(event.Currencies, ">"))),
			bigIntTo32Bytes(rateProductE18(event.RateProduct)),
			bigIntTo32Bytes(big.NewInt(event.DetectedAt.Unix())),
			bigIntTo32Bytes(big.NewInt(nonce)),
		),
	)

	digest := eip712Hash(s.domainSep, structHash)
	return s.signDigest(digest)
}

// rateProductE18 fixed-points a rate product to 18 decimal places so it can
// be embedded in the struct hash the same way an on-chain consumer would
// expect a fixed-point ratio.
func rateProductE18(rateProduct float64) *big.Int {
	scaled := new(big.Float).Mul(big.NewFloat(rateProduct), big.NewFloat(1e18))
	result, _ := scaled.Int(nil)
	return result
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// buildDomainSeparator returns keccak256(abi.encode(typeHash, nameHash, versionHash, chainId)).
func (s *Signer) buildDomainSeparator(name, version string, chainID int) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(name)),
			ethcrypto.Keccak256([]byte(version)),
			bigIntTo32Bytes(big.NewInt(int64(chainID))),
		),
	)
}

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

// signDigest signs a 32-byte digest using secp256k1 and returns the
// hex-encoded signature (r || s || v, 65 bytes).
func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; EIP-712 expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}

// NewNonce returns a monotonic-enough nonce for SignIntent callers that do
// not track their own sequence; it is the current Unix nanosecond time.
func NewNonce() int64 {
	return time.Now().UnixNano()
}
