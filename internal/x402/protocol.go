// Package x402 implements the wire conventions of the HTTP 402 payment flow:
// the machine-readable challenge a server issues when payment is missing and
// the header carrying the payer's signed transaction.
package x402

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PaymentHeaderName is the request header whose entire value is the
// hex-encoded signed transaction. No structured sub-fields.
const PaymentHeaderName = "x-payment"

// PaymentRequirements is the challenge body telling a client what to pay.
type PaymentRequirements struct {
	Amount    uint64 `json:"amount"`
	Recipient string `json:"recipient"`
	Network   string `json:"network"`
	Currency  string `json:"currency"`
}

// NewPaymentRequirements builds a challenge with the fixed currency tag.
func NewPaymentRequirements(amount uint64, recipient, network string) PaymentRequirements {
	return PaymentRequirements{
		Amount:    amount,
		Recipient: recipient,
		Network:   network,
		Currency:  "DOT",
	}
}

// ToHeaderValue serializes the requirements for use as a header value.
func (r PaymentRequirements) ToHeaderValue() string {
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(data)
}

// PaymentHeader is the parsed inbound payment header.
type PaymentHeader struct {
	Transaction string
}

// ExtractPaymentHeader reads the payment header. The value is treated as the
// opaque signed-transaction hex; absence yields false.
func ExtractPaymentHeader(headers http.Header) (PaymentHeader, bool) {
	value := headers.Get(PaymentHeaderName)
	if value == "" {
		return PaymentHeader{}, false
	}
	return PaymentHeader{Transaction: value}, true
}

// WritePaymentRequired renders the 402 challenge response.
func WritePaymentRequired(c *gin.Context, requirements PaymentRequirements) {
	c.JSON(http.StatusPaymentRequired, gin.H{
		"error":               "PaymentRequired",
		"message":             "Payment is required to access this resource",
		"paymentRequirements": requirements,
	})
}
