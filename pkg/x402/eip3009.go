package x402

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	domainTypeHash = crypto.Keccak256([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	transferTypeHash = crypto.Keccak256([]byte(
		"TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"))
)

// Domain is the EIP-712 domain of a token contract.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract string
}

// DomainFor builds the domain for req on network n. Requirement extras win
// over the registry defaults.
func DomainFor(n Network, req PaymentRequirements) Domain {
	d := Domain{
		Name:              n.DomainName,
		Version:           n.DomainVer,
		ChainID:           n.ChainIDBig(),
		VerifyingContract: n.USDC,
	}
	if req.Extra != nil {
		if req.Extra.Name != "" {
			d.Name = req.Extra.Name
		}
		if req.Extra.Version != "" {
			d.Version = req.Extra.Version
		}
	}
	if req.Asset != "" {
		d.VerifyingContract = req.Asset
	}
	return d
}

// Separator returns the EIP-712 domain separator.
func (d Domain) Separator() []byte {
	return crypto.Keccak256(
		domainTypeHash,
		crypto.Keccak256([]byte(d.Name)),
		crypto.Keccak256([]byte(d.Version)),
		common.LeftPadBytes(d.ChainID.Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(d.VerifyingContract).Bytes(), 32),
	)
}

// StructHash returns the EIP-712 struct hash of a TransferWithAuthorization.
func (a Authorization) StructHash() ([]byte, error) {
	if !common.IsHexAddress(a.From) || !common.IsHexAddress(a.To) {
		return nil, errors.New("authorization addresses must be hex")
	}
	value, err := parseUint256(a.Value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	after, err := parseUint256(a.ValidAfter)
	if err != nil {
		return nil, fmt.Errorf("validAfter: %w", err)
	}
	before, err := parseUint256(a.ValidBefore)
	if err != nil {
		return nil, fmt.Errorf("validBefore: %w", err)
	}
	nonce, err := parseBytes32(a.Nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	return crypto.Keccak256(
		transferTypeHash,
		common.LeftPadBytes(common.HexToAddress(a.From).Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(a.To).Bytes(), 32),
		common.LeftPadBytes(value.Bytes(), 32),
		common.LeftPadBytes(after.Bytes(), 32),
		common.LeftPadBytes(before.Bytes(), 32),
		nonce,
	), nil
}

// TypedDataHash returns keccak256(0x1901 || domainSeparator || structHash).
func TypedDataHash(d Domain, a Authorization) ([]byte, error) {
	structHash, err := a.StructHash()
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256([]byte{0x19, 0x01}, d.Separator(), structHash), nil
}

// SignAuthorization signs a with key and returns the 0x-prefixed 65 byte
// signature with v in {27, 28}.
func SignAuthorization(key *ecdsa.PrivateKey, d Domain, a Authorization) (string, error) {
	hash, err := TypedDataHash(d, a)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverAuthorizer returns the address that signed a.
func RecoverAuthorizer(d Domain, a Authorization, signature string) (common.Address, error) {
	hash, err := TypedDataHash(d, a)
	if err != nil {
		return common.Address{}, err
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	sig = append([]byte(nil), sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id: %d", sig[64])
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("ecrecover failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// CheckPayload validates p against req without contacting the chain: the
// signature must recover to the payer, funds must go to req.PayTo, the value
// must cover the amount and the authorization must be valid at now.
// It returns the payer address.
func CheckPayload(p *PaymentPayload, req PaymentRequirements, now time.Time) (string, error) {
	if p == nil {
		return "", errors.New("missing payment payload")
	}
	if p.SchemeName() != req.Scheme {
		return "", fmt.Errorf("unsupported scheme %q", p.SchemeName())
	}
	if !SameNetwork(p.NetworkID(), req.Network) {
		return "", fmt.Errorf("network mismatch: %q", p.NetworkID())
	}
	n, err := LookupNetwork(req.Network)
	if err != nil {
		return "", err
	}

	auth := p.Payload.Authorization
	if !strings.EqualFold(auth.To, req.PayTo) {
		return "", errors.New("authorization recipient does not match payTo")
	}
	value, err := parseUint256(auth.Value)
	if err != nil {
		return "", fmt.Errorf("invalid value: %w", err)
	}
	required, err := parseUint256(req.AtomicAmount())
	if err != nil {
		return "", fmt.Errorf("invalid required amount: %w", err)
	}
	if value.Cmp(required) < 0 {
		return "", fmt.Errorf("insufficient value: %s < %s", value, required)
	}

	after, err := parseUint256(auth.ValidAfter)
	if err != nil {
		return "", fmt.Errorf("invalid validAfter: %w", err)
	}
	before, err := parseUint256(auth.ValidBefore)
	if err != nil {
		return "", fmt.Errorf("invalid validBefore: %w", err)
	}
	ts := big.NewInt(now.Unix())
	if ts.Cmp(after) < 0 {
		return "", errors.New("authorization not yet valid")
	}
	if ts.Cmp(before) >= 0 {
		return "", errors.New("authorization expired")
	}

	signer, err := RecoverAuthorizer(DomainFor(n, req), auth, p.Payload.Signature)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(signer.Hex(), auth.From) {
		return "", errors.New("signature does not match authorizer")
	}
	return signer.Hex(), nil
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func parseUint256(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 || v.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("invalid uint256: %q", s)
	}
	return v, nil
}

func parseBytes32(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	return b, nil
}
