package wallet

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

var ErrInvalidMnemonic = errors.New("wallet: mnemonic must have 12, 15, 18, 21 or 24 words")

// Account is a derived Ethereum account.
type Account struct {
	Index      uint32
	Path       string
	PrivateKey *ecdsa.PrivateKey
	Address    string
}

// PrivateKeyHex returns the key as 0x-prefixed hex.
func (a Account) PrivateKeyHex() string {
	return "0x" + hex.EncodeToString(crypto.FromECDSA(a.PrivateKey))
}

// NormalizeMnemonic collapses whitespace and applies NFKD.
func NormalizeMnemonic(mnemonic string) (string, error) {
	words := strings.Fields(norm.NFKD.String(mnemonic))
	switch len(words) {
	case 12, 15, 18, 21, 24:
	default:
		return "", ErrInvalidMnemonic
	}
	return strings.Join(words, " "), nil
}

// Seed derives the BIP39 seed from a mnemonic and optional passphrase.
func Seed(mnemonic, passphrase string) ([]byte, error) {
	m, err := NormalizeMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	salt := "mnemonic" + norm.NFKD.String(passphrase)
	return pbkdf2.Key([]byte(m), []byte(salt), 2048, 64, sha512.New), nil
}

// DerivePath returns the BIP44 Ethereum path for index.
func DerivePath(index uint32) string {
	return fmt.Sprintf("m/44'/60'/0'/0/%d", index)
}

// DeriveAccount derives the account at m/44'/60'/0'/0/index.
func DeriveAccount(mnemonic, passphrase string, index uint32) (*Account, error) {
	seed, err := Seed(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("wallet: master key: %w", err)
	}
	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
		index,
	}
	for _, i := range path {
		key, err = key.Derive(i)
		if err != nil {
			return nil, fmt.Errorf("wallet: derive %s: %w", DerivePath(index), err)
		}
	}

	ecPriv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: private key: %w", err)
	}
	priv, err := crypto.ToECDSA(ecPriv.Serialize())
	if err != nil {
		return nil, fmt.Errorf("wallet: convert key: %w", err)
	}

	return &Account{
		Index:      index,
		Path:       DerivePath(index),
		PrivateKey: priv,
		Address:    crypto.PubkeyToAddress(priv.PublicKey).Hex(),
	}, nil
}
