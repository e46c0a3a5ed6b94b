package types

// Facilitator API wire types.

// VerifyRequest asks the facilitator to check a signed transaction against
// the expected payment terms.
type VerifyRequest struct {
	Transaction       string `json:"transaction"`
	ExpectedAmount    uint64 `json:"expected_amount"`
	ExpectedRecipient string `json:"expected_recipient"`
}

// VerifyResponse always comes back with HTTP 200; validity is in the body.
type VerifyResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// SettleRequest asks the facilitator to broadcast a signed transaction and
// wait for finality.
type SettleRequest struct {
	Transaction string `json:"transaction"`
}

// SettleResponse reports the settlement outcome. TransactionHash is null
// when settlement failed.
type SettleResponse struct {
	Settled         bool    `json:"settled"`
	TransactionHash *string `json:"transaction_hash"`
	Message         string  `json:"message"`
}

// FacilitatorHealthResponse is the facilitator's /health body.
type FacilitatorHealthResponse struct {
	Status    string `json:"status"`
	Network   string `json:"network"`
	Connected bool   `json:"connected"`
}

// Resource server API wire types.

// ServerHealthResponse is the resource server's /api/health body.
type ServerHealthResponse struct {
	Status         string `json:"status"`
	Network        string `json:"network"`
	FacilitatorURL string `json:"facilitator_url"`
}

// FreeResponse is the unprotected content payload.
type FreeResponse struct {
	Message string `json:"message"`
	Data    string `json:"data"`
}

// PaidResponse is the protected content payload released after settlement.
type PaidResponse struct {
	Message         string `json:"message"`
	Data            string `json:"data"`
	TransactionHash string `json:"transaction_hash"`
}
