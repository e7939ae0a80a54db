package x402

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"
)

func TestTransportPaysAndRetries(t *testing.T) {
	s := newTestSigner(t)
	req := testRequirements(t)
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		body, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"tokenAddress":"0xabc"}`, string(body))

		proof, err := ParsePayment(r.Header)
		if err != nil {
			challenge, _ := EncodeHeader(PaymentRequired{
				X402Version: Version,
				Resource:    ResourceInfo{URL: "http://" + r.Host + r.URL.Path},
				Accepts:     []PaymentRequirements{req},
			})
			w.Header().Set(HeaderPaymentRequired, challenge)
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte("{}"))
			return
		}

		payer, err := CheckPayload(proof, req, time.Now())
		require.NoError(t, err)
		receipt, _ := EncodeHeader(SettleResponse{Success: true, Transaction: "0xfeed", Network: req.Network, Payer: payer})
		w.Header().Set(HeaderPaymentResponse, receipt)
		_, _ = w.Write([]byte(`"1.23"`))
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(s, nil)}
	resp, err := client.Post(srv.URL+"/latest-price", "application/json", strings.NewReader(`{"tokenAddress":"0xabc"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))

	receipt, err := ReceiptFromResponse(resp)
	require.NoError(t, err)
	require.Equal(t, "0xfeed", receipt.Transaction)
	require.Equal(t, s.Address().Hex(), receipt.Payer)
}

func TestTransportUnsupportedChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		challenge, _ := EncodeHeader(PaymentRequired{
			X402Version: Version,
			Accepts:     []PaymentRequirements{{Scheme: "upto", Network: "solana:devnet", Amount: "1"}},
		})
		w.Header().Set(HeaderPaymentRequired, challenge)
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(newTestSigner(t), nil)}
	_, err := client.Get(srv.URL)
	require.ErrorContains(t, err, "none of 1 payment options")
}

func TestHTTPFacilitator(t *testing.T) {
	s := newTestSigner(t)
	req := testRequirements(t)
	p, err := s.CreatePayment(req, nil, Version)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var in facilitatorRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.ConfigStd.Unmarshal(body, &in))
		require.Equal(t, Version, in.X402Version)
		require.Equal(t, req.Amount, in.PaymentRequirements.Amount)

		switch r.URL.Path {
		case "/facilitator/verify":
			if in.PaymentPayload.Payload.Authorization.Value == "1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"isValid":false,"invalidReason":"insufficient_funds"}`))
				return
			}
			_, _ = w.Write([]byte(`{"isValid":true,"payer":"` + s.Address().Hex() + `"}`))
		case "/facilitator/settle":
			_, _ = w.Write([]byte(`{"success":true,"transaction":"0xabc","network":"eip155:84532"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewHTTPFacilitator(srv.URL+"/facilitator", time.Second, WithTokenSource(staticToken("tok")))
	ctx := context.Background()

	v, err := f.Verify(ctx, p, req)
	require.NoError(t, err)
	require.True(t, v.IsValid)

	st, err := f.Settle(ctx, p, req)
	require.NoError(t, err)
	require.True(t, st.Success)
	require.Equal(t, "0xabc", st.Transaction)

	bad := *p
	bad.Payload.Authorization.Value = "1"
	v, err = f.Verify(ctx, &bad, req)
	require.NoError(t, err)
	require.False(t, v.IsValid)
	require.Equal(t, "insufficient_funds", v.InvalidReason)
}

type staticToken string

func (s staticToken) Token(context.Context, string, string) (string, error) { return string(s), nil }
