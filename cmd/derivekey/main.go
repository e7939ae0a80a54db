// Command derivekey prints the EVM account derived from a BIP-39 mnemonic
// along m/44'/60'/0'/0/index, for use as EVM_PRIVATE_KEY.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Kshitij0O7/bitquery-x402/pkg/wallet"
)

func main() {
	index := flag.Int("index", -1, "account index (default ACCOUNT_INDEX or 0)")
	passphrase := flag.String("passphrase", "", "optional BIP-39 passphrase")
	flag.Parse()

	_ = godotenv.Load()

	mnemonic := strings.Join(flag.Args(), " ")
	if mnemonic == "" {
		mnemonic = os.Getenv("MNEMONIC_PHRASE")
	}
	if strings.TrimSpace(mnemonic) == "" {
		log.Fatal("mnemonic required: pass it as arguments or set MNEMONIC_PHRASE")
	}

	idx := *index
	if idx < 0 {
		idx = 0
		if v := os.Getenv("ACCOUNT_INDEX"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				log.Fatalf("invalid ACCOUNT_INDEX %q", v)
			}
			idx = n
		}
	}

	acct, err := wallet.DeriveAccount(mnemonic, *passphrase, uint32(idx))
	if err != nil {
		log.Fatalf("derive account: %v", err)
	}

	fmt.Printf("path:        %s\n", acct.Path)
	fmt.Printf("address:     %s\n", acct.Address)
	fmt.Printf("private key: %s\n", acct.PrivateKeyHex())
}
