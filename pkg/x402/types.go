package x402

// Version is the protocol version spoken by this package.
const Version = 2

// SchemeExact is the only payment scheme supported: a fixed amount transferred
// with an EIP-3009 TransferWithAuthorization.
const SchemeExact = "exact"

// Header names.
const (
	HeaderPaymentRequired  = "PAYMENT-REQUIRED"
	HeaderPaymentSignature = "PAYMENT-SIGNATURE"
	HeaderPayment          = "X-PAYMENT"
	HeaderPaymentResponse  = "PAYMENT-RESPONSE"
	HeaderXPaymentResponse = "X-PAYMENT-RESPONSE"
)

// PaymentRequirements describes one acceptable way to pay for a resource.
type PaymentRequirements struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Price             string `json:"price,omitempty"`
	Amount            string `json:"amount"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
	Extra             *Extra `json:"extra,omitempty"`

	// MaxAmountRequired carries the amount for v1 peers.
	MaxAmountRequired string `json:"maxAmountRequired,omitempty"`
}

// Extra holds the EIP-712 domain of the asset contract.
type Extra struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// AtomicAmount returns the amount in the asset's smallest unit.
func (r PaymentRequirements) AtomicAmount() string {
	if r.Amount != "" {
		return r.Amount
	}
	return r.MaxAmountRequired
}

// ResourceInfo identifies the paid resource.
type ResourceInfo struct {
	URL         string `json:"url"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// PaymentRequired is the challenge sent with a 402 response.
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error,omitempty"`
	Resource    ResourceInfo          `json:"resource"`
	Accepts     []PaymentRequirements `json:"accepts"`
}

// Authorization is the EIP-3009 TransferWithAuthorization message.
// Numeric fields are decimal strings, nonce is 0x-prefixed bytes32.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ExactEVMPayload is the scheme-specific part of a payment.
type ExactEVMPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// PaymentPayload is the proof a client attaches to a paid request.
// v2 payloads carry the accepted requirement, v1 payloads carry scheme and
// network at the top level.
type PaymentPayload struct {
	X402Version int                  `json:"x402Version"`
	Resource    *ResourceInfo        `json:"resource,omitempty"`
	Accepted    *PaymentRequirements `json:"accepted,omitempty"`
	Scheme      string               `json:"scheme,omitempty"`
	Network     string               `json:"network,omitempty"`
	Payload     ExactEVMPayload      `json:"payload"`
}

// SchemeName returns the scheme regardless of protocol version.
func (p *PaymentPayload) SchemeName() string {
	if p.Accepted != nil && p.Accepted.Scheme != "" {
		return p.Accepted.Scheme
	}
	return p.Scheme
}

// NetworkID returns the network regardless of protocol version.
func (p *PaymentPayload) NetworkID() string {
	if p.Accepted != nil && p.Accepted.Network != "" {
		return p.Accepted.Network
	}
	return p.Network
}

// VerifyResponse is the facilitator's answer to /verify.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse is the facilitator's answer to /settle. It is also the
// receipt returned to clients in the PAYMENT-RESPONSE header.
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Asset       string `json:"asset,omitempty"`
}
