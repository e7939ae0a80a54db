package x402

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	xhttp "github.com/Kshitij0O7/bitquery-x402/pkg/http"
)

// DefaultFacilitatorURL is the public testnet facilitator.
const DefaultFacilitatorURL = "https://x402.org/facilitator"

// Facilitator verifies and settles payments on behalf of a resource server.
type Facilitator interface {
	Verify(ctx context.Context, p *PaymentPayload, req PaymentRequirements) (*VerifyResponse, error)
	Settle(ctx context.Context, p *PaymentPayload, req PaymentRequirements) (*SettleResponse, error)
}

// TokenSource issues a bearer token for a single facilitator request.
type TokenSource interface {
	Token(ctx context.Context, method, rawURL string) (string, error)
}

type facilitatorRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      *PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// HTTPFacilitator talks to a facilitator over HTTP.
type HTTPFacilitator struct {
	baseURL string
	client  *xhttp.Client
	tokens  TokenSource
}

// FacilitatorOption configures HTTPFacilitator.
type FacilitatorOption func(*HTTPFacilitator)

// WithTokenSource authenticates every call with a bearer token.
func WithTokenSource(ts TokenSource) FacilitatorOption {
	return func(f *HTTPFacilitator) {
		f.tokens = ts
	}
}

// WithFacilitatorClient replaces the HTTP client.
func WithFacilitatorClient(c *xhttp.Client) FacilitatorOption {
	return func(f *HTTPFacilitator) {
		f.client = c
	}
}

// NewHTTPFacilitator creates a facilitator client for baseURL.
func NewHTTPFacilitator(baseURL string, timeout time.Duration, opts ...FacilitatorOption) *HTTPFacilitator {
	if baseURL == "" {
		baseURL = DefaultFacilitatorURL
	}
	f := &HTTPFacilitator{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Verify asks the facilitator whether p satisfies req.
func (f *HTTPFacilitator) Verify(ctx context.Context, p *PaymentPayload, req PaymentRequirements) (*VerifyResponse, error) {
	var out VerifyResponse
	if err := f.post(ctx, "verify", p, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Settle asks the facilitator to execute the transfer authorized by p.
func (f *HTTPFacilitator) Settle(ctx context.Context, p *PaymentPayload, req PaymentRequirements) (*SettleResponse, error) {
	var out SettleResponse
	if err := f.post(ctx, "settle", p, req, &out); err != nil {
		return nil, err
	}
	if out.Network == "" {
		out.Network = req.Network
	}
	return &out, nil
}

func (f *HTTPFacilitator) post(ctx context.Context, op string, p *PaymentPayload, req PaymentRequirements, dest any) error {
	url, err := xhttp.JoinURL(f.baseURL, op)
	if err != nil {
		return fmt.Errorf("facilitator url: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if f.tokens != nil {
		token, err := f.tokens.Token(ctx, http.MethodPost, url)
		if err != nil {
			return fmt.Errorf("facilitator token: %w", err)
		}
		headers["Authorization"] = "Bearer " + token
	}

	version := p.X402Version
	if version == 0 {
		version = Version
	}
	err = f.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  http.MethodPost,
		URL:     url,
		Headers: headers,
		Body: facilitatorRequest{
			X402Version:         version,
			PaymentPayload:      p,
			PaymentRequirements: req,
		},
	}, dest)

	// Facilitators answer rejected payments with 4xx and a regular body.
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError && len(se.Body) > 0 {
		if jerr := sonic.ConfigStd.Unmarshal(se.Body, dest); jerr == nil && hasReason(dest) {
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("facilitator %s: %w", op, err)
	}
	return nil
}

func hasReason(v any) bool {
	switch r := v.(type) {
	case *VerifyResponse:
		return r.InvalidReason != ""
	case *SettleResponse:
		return r.ErrorReason != ""
	}
	return false
}
