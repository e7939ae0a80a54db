package x402

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// validAfterSkew backdates authorizations to tolerate clock drift.
const validAfterSkew = 600 * time.Second

// Signer creates exact-scheme payments from a locally held key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	now     func() time.Time
}

// NewSigner parses a hex private key, with or without 0x prefix.
func NewSigner(privateKeyHex string) (*Signer, error) {
	s := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if s == "" {
		return nil, errors.New("x402: empty private key")
	}
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("x402: invalid private key: %w", err)
	}
	return NewSignerFromKey(key), nil
}

// NewSignerFromKey wraps an existing key.
func NewSignerFromKey(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		now:     time.Now,
	}
}

// Address returns the payer address.
func (s *Signer) Address() common.Address { return s.address }

// Supports reports whether the signer can pay req.
func (s *Signer) Supports(req PaymentRequirements) bool {
	if req.Scheme != SchemeExact || !common.IsHexAddress(req.PayTo) {
		return false
	}
	if _, err := LookupNetwork(req.Network); err != nil {
		return false
	}
	_, err := parseUint256(req.AtomicAmount())
	return err == nil
}

// CreatePayment signs a TransferWithAuthorization paying req.
func (s *Signer) CreatePayment(req PaymentRequirements, resource *ResourceInfo, version int) (*PaymentPayload, error) {
	if !s.Supports(req) {
		return nil, fmt.Errorf("x402: cannot pay %s on %s", req.Scheme, req.Network)
	}
	n, err := LookupNetwork(req.Network)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("x402: nonce: %w", err)
	}

	timeout := req.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	now := s.now()
	auth := Authorization{
		From:        s.address.Hex(),
		To:          common.HexToAddress(req.PayTo).Hex(),
		Value:       req.AtomicAmount(),
		ValidAfter:  strconv.FormatInt(now.Add(-validAfterSkew).Unix(), 10),
		ValidBefore: strconv.FormatInt(now.Add(time.Duration(timeout)*time.Second).Unix(), 10),
		Nonce:       "0x" + hex.EncodeToString(nonce),
	}

	sig, err := SignAuthorization(s.key, DomainFor(n, req), auth)
	if err != nil {
		return nil, err
	}

	p := &PaymentPayload{
		X402Version: version,
		Payload: ExactEVMPayload{
			Signature:     sig,
			Authorization: auth,
		},
	}
	if version >= 2 {
		accepted := req
		p.Accepted = &accepted
		p.Resource = resource
	} else {
		p.Scheme = req.Scheme
		p.Network = n.Name
	}
	return p, nil
}
