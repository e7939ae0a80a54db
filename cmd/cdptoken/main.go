// Command cdptoken prints a short-lived bearer token for a Coinbase
// Developer Platform API request.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Kshitij0O7/bitquery-x402/pkg/cdpauth"
)

func main() {
	method := flag.String("method", "POST", "request method")
	host := flag.String("host", "api.cdp.coinbase.com", "request host")
	path := flag.String("path", "/platform/v2/x402/verify", "request path")
	expiry := flag.Duration("expiry", cdpauth.DefaultExpiry, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	keyID, secret := os.Getenv("CDP_API_KEY_ID"), os.Getenv("CDP_API_KEY_SECRET")
	if keyID == "" || secret == "" {
		log.Fatal("CDP_API_KEY_ID and CDP_API_KEY_SECRET must be set")
	}

	s, err := cdpauth.NewSigner(keyID, secret, *expiry)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}
	token, err := s.Generate(*method, *host, *path)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
