package wallet

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestSeed(t *testing.T) {
	seed, err := Seed("  "+testMnemonic+"\n", "")
	require.NoError(t, err)
	require.Equal(t,
		"5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4",
		hex.EncodeToString(seed))
}

func TestDeriveAccount(t *testing.T) {
	acct, err := DeriveAccount(testMnemonic, "", 0)
	require.NoError(t, err)
	require.Equal(t, "m/44'/60'/0'/0/0", acct.Path)
	require.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", acct.Address)
	require.Equal(t, "0x1ab42cc412b618bdea3a599e3c9bae199ebf030895b039e9db1e30dafb12b727", acct.PrivateKeyHex())

	next, err := DeriveAccount(testMnemonic, "", 1)
	require.NoError(t, err)
	require.NotEqual(t, acct.Address, next.Address)
}

func TestInvalidMnemonic(t *testing.T) {
	_, err := DeriveAccount("abandon about", "", 0)
	require.ErrorIs(t, err, ErrInvalidMnemonic)
}
