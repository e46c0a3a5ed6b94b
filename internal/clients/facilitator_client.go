package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"x402-backend/internal/apierrors"
	"x402-backend/internal/types"
)

// FacilitatorClient is the resource server's typed caller for the
// facilitator's verify and settle endpoints. The facilitator is treated as an
// untrusted remote dependency: any non-success status or semantically
// negative body becomes a typed server-side error carrying the facilitator's
// own message.
type FacilitatorClient struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

// NewFacilitatorClient creates a client for the facilitator at baseURL.
// Settlement blocks until chain finality, which takes tens of seconds, so
// the client deliberately carries no request timeout.
func NewFacilitatorClient(baseURL string, log *logrus.Entry) *FacilitatorClient {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &FacilitatorClient{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		log:        log.WithField("facilitator_url", baseURL),
	}
}

// VerifyPayment posts to /verify. A non-success status or valid:false maps to
// a verification-failed error; only valid:true returns true.
func (c *FacilitatorClient) VerifyPayment(ctx context.Context, transaction string, expectedAmount uint64, expectedRecipient string) (bool, error) {
	c.log.WithFields(logrus.Fields{
		"expected_amount":    expectedAmount,
		"expected_recipient": expectedRecipient,
	}).Info("verifying payment with facilitator")

	request := types.VerifyRequest{
		Transaction:       transaction,
		ExpectedAmount:    expectedAmount,
		ExpectedRecipient: expectedRecipient,
	}

	resp, body, err := c.postJSON(ctx, "/verify", request)
	if err != nil {
		return false, apierrors.FacilitatorErrorf("Failed to verify payment: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WithField("status", resp.StatusCode).Error("facilitator verify returned error status")
		return false, apierrors.PaymentVerificationFailedf("Facilitator verification failed")
	}

	var verifyResponse types.VerifyResponse
	if err := json.Unmarshal(body, &verifyResponse); err != nil {
		return false, apierrors.FacilitatorErrorf("Invalid response from facilitator: %v", err)
	}

	if !verifyResponse.Valid {
		c.log.WithField("message", verifyResponse.Message).Info("payment verification failed")
		return false, apierrors.PaymentVerificationFailedf("%s", verifyResponse.Message)
	}

	c.log.Info("payment verified successfully")
	return true, nil
}

// SettlePayment posts to /settle. The body is parsed regardless of status;
// settled:false maps to a settlement-failed error carrying the facilitator's
// message, otherwise the transaction hash is returned ("unknown" when the
// facilitator omitted it).
func (c *FacilitatorClient) SettlePayment(ctx context.Context, transaction string) (string, error) {
	c.log.Info("settling payment with facilitator")

	// The body is authoritative here, not the status code: the facilitator
	// reports failed settlements as 400 with a settled:false body.
	_, body, err := c.postJSON(ctx, "/settle", types.SettleRequest{Transaction: transaction})
	if err != nil {
		return "", apierrors.FacilitatorErrorf("Failed to settle payment: %v", err)
	}

	var settleResponse types.SettleResponse
	if err := json.Unmarshal(body, &settleResponse); err != nil {
		return "", apierrors.FacilitatorErrorf("Invalid response from facilitator: %v", err)
	}

	if !settleResponse.Settled {
		c.log.WithField("message", settleResponse.Message).Error("payment settlement failed")
		return "", apierrors.PaymentSettlementFailedf("%s", settleResponse.Message)
	}

	txHash := "unknown"
	if settleResponse.TransactionHash != nil {
		txHash = *settleResponse.TransactionHash
	}
	c.log.WithField("tx_hash", txHash).Info("payment settled successfully")
	return txHash, nil
}

func (c *FacilitatorClient) postJSON(ctx context.Context, path string, payload interface{}) (*http.Response, []byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, body, nil
}
