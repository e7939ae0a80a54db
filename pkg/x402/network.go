package x402

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Network describes an EVM chain and the USDC deployment used for payment.
type Network struct {
	ID         string
	Name       string
	ChainID    int64
	USDC       string
	Decimals   int32
	DomainName string
	DomainVer  string
	IsTestnet  bool
}

// ChainIDBig returns the chain id as a big.Int.
func (n Network) ChainIDBig() *big.Int { return big.NewInt(n.ChainID) }

// Extra returns the EIP-712 domain hints advertised in requirements.
func (n Network) Extra() *Extra {
	return &Extra{Name: n.DomainName, Version: n.DomainVer}
}

var networks = map[string]Network{
	"eip155:8453": {
		ID:         "eip155:8453",
		Name:       "base",
		ChainID:    8453,
		USDC:       "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Decimals:   6,
		DomainName: "USD Coin",
		DomainVer:  "2",
	},
	"eip155:84532": {
		ID:         "eip155:84532",
		Name:       "base-sepolia",
		ChainID:    84532,
		USDC:       "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Decimals:   6,
		DomainName: "USDC",
		DomainVer:  "2",
		IsTestnet:  true,
	},
	"eip155:42161": {
		ID:         "eip155:42161",
		Name:       "arbitrum",
		ChainID:    42161,
		USDC:       "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		Decimals:   6,
		DomainName: "USD Coin",
		DomainVer:  "2",
	},
	"eip155:421614": {
		ID:         "eip155:421614",
		Name:       "arbitrum-sepolia",
		ChainID:    421614,
		USDC:       "0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d",
		Decimals:   6,
		DomainName: "USDC",
		DomainVer:  "2",
		IsTestnet:  true,
	},
}

var aliases = map[string]string{
	"base":             "eip155:8453",
	"base-sepolia":     "eip155:84532",
	"arbitrum":         "eip155:42161",
	"arbitrum-sepolia": "eip155:421614",
}

// LookupNetwork resolves a CAIP-2 id or v1 alias.
func LookupNetwork(id string) (Network, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	n, ok := networks[key]
	if !ok {
		return Network{}, fmt.Errorf("x402: unsupported network %q", id)
	}
	return n, nil
}

// SameNetwork reports whether a and b name the same chain.
func SameNetwork(a, b string) bool {
	na, errA := LookupNetwork(a)
	nb, errB := LookupNetwork(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return na.ID == nb.ID
}

// Networks lists supported CAIP-2 ids in sorted order.
func Networks() []string {
	ids := make([]string, 0, len(networks))
	for id := range networks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewRequirements builds the exact-scheme requirement for paying price on
// network to payTo.
func NewRequirements(network, price, payTo string, maxTimeoutSeconds int) (PaymentRequirements, error) {
	n, err := LookupNetwork(network)
	if err != nil {
		return PaymentRequirements{}, err
	}
	amount, err := ParsePrice(price, n.Decimals)
	if err != nil {
		return PaymentRequirements{}, err
	}
	return PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           n.ID,
		Price:             price,
		Amount:            amount,
		Asset:             n.USDC,
		PayTo:             payTo,
		MaxTimeoutSeconds: maxTimeoutSeconds,
		Extra:             n.Extra(),
	}, nil
}
