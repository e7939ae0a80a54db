// Command payclient calls a paid route, paying the x402 challenge with
// EVM_PRIVATE_KEY, and prints the response with its settlement receipt.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"

	"github.com/Kshitij0O7/bitquery-x402/pkg/x402"
)

func main() {
	url := flag.String("url", "http://localhost:4021/latest-price", "paid route URL")
	token := flag.String("token", "0xfde4c96c8593536e31f229ea8f37b2ada2699bb2", "token address")
	interval := flag.Int("interval", 0, "interval in seconds, 0 for the server default")
	timeout := flag.Duration("timeout", 60*time.Second, "request timeout")
	flag.Parse()

	_ = godotenv.Load()

	key := os.Getenv("EVM_PRIVATE_KEY")
	if key == "" {
		log.Fatal("EVM_PRIVATE_KEY must be set")
	}
	signer, err := x402.NewSigner(key)
	if err != nil {
		log.Fatalf("load wallet: %v", err)
	}
	log.Printf("paying from %s", signer.Address().Hex())

	body := map[string]any{"tokenAddress": *token}
	if *interval > 0 {
		body["interval"] = *interval
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		log.Fatalf("encode body: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Transport: x402.NewTransport(signer, nil)}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("read body: %v", err)
	}

	fmt.Printf("status: %d\n", resp.StatusCode)
	fmt.Printf("body:   %s\n", raw)
	if receipt, err := x402.ReceiptFromResponse(resp); err == nil && receipt != nil {
		out, _ := sonic.ConfigStd.MarshalIndent(receipt, "", "  ")
		fmt.Printf("payment:\n%s\n", out)
	} else if err != nil {
		log.Printf("no payment receipt: %v", err)
	}
}
