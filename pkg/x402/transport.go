package x402

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Transport is an http.RoundTripper that answers a 402 challenge by signing
// a payment and replaying the request once.
type Transport struct {
	Base   http.RoundTripper
	Signer *Signer
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(signer *Signer, base http.RoundTripper) *Transport {
	return &Transport{Base: base, Signer: signer}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := snapshotBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.base().RoundTrip(cloneWithBody(req, body))
	if err != nil || resp.StatusCode != http.StatusPaymentRequired {
		return resp, err
	}

	challengeBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	challenge, err := ChallengeFromResponse(resp, challengeBody)
	if err != nil {
		return nil, err
	}
	accepted, err := t.selectRequirement(challenge)
	if err != nil {
		return nil, err
	}

	version := challenge.X402Version
	if version == 0 {
		version = 1
	}
	resource := challenge.Resource
	payment, err := t.Signer.CreatePayment(accepted, &resource, version)
	if err != nil {
		return nil, err
	}
	header, err := EncodeHeader(payment)
	if err != nil {
		return nil, err
	}

	retry := cloneWithBody(req, body)
	if version >= 2 {
		retry.Header.Set(HeaderPaymentSignature, header)
	} else {
		retry.Header.Set(HeaderPayment, header)
	}
	return t.base().RoundTrip(retry)
}

func (t *Transport) selectRequirement(pr *PaymentRequired) (PaymentRequirements, error) {
	if t.Signer == nil {
		return PaymentRequirements{}, errors.New("x402: transport has no signer")
	}
	for _, req := range pr.Accepts {
		if t.Signer.Supports(req) {
			return req, nil
		}
	}
	return PaymentRequirements{}, fmt.Errorf("x402: none of %d payment options is supported", len(pr.Accepts))
}

func snapshotBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	b, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("x402: read request body: %w", err)
	}
	return b, nil
}

func cloneWithBody(req *http.Request, body []byte) *http.Request {
	r := req.Clone(req.Context())
	if body == nil {
		r.Body = http.NoBody
		r.ContentLength = 0
		return r
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return r
}
