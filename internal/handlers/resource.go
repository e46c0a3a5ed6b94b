package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"x402-backend/internal/apierrors"
	"x402-backend/internal/metrics"
	"x402-backend/internal/types"
	"x402-backend/internal/x402"
)

// PaymentFacilitator is the slice of the facilitator client the resource
// handlers need.
type PaymentFacilitator interface {
	VerifyPayment(ctx context.Context, transaction string, expectedAmount uint64, expectedRecipient string) (bool, error)
	SettlePayment(ctx context.Context, transaction string) (string, error)
}

// ResourceHandler serves the resource server's HTTP surface: free content,
// and paid content gated behind the x402 challenge flow.
type ResourceHandler struct {
	network        string
	facilitatorURL string
	price          uint64
	receiver       string
	facilitator    PaymentFacilitator
	log            *logrus.Entry
}

func NewResourceHandler(network, facilitatorURL string, price uint64, receiver string, facilitator PaymentFacilitator, log *logrus.Entry) *ResourceHandler {
	return &ResourceHandler{
		network:        network,
		facilitatorURL: facilitatorURL,
		price:          price,
		receiver:       receiver,
		facilitator:    facilitator,
		log:            log,
	}
}

// Health reports basic service status.
// GET /api/health
func (h *ResourceHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, types.ServerHealthResponse{
		Status:         "ok",
		Network:        h.network,
		FacilitatorURL: h.facilitatorURL,
	})
}

// Free serves unprotected content.
// GET /api/free
func (h *ResourceHandler) Free(c *gin.Context) {
	c.JSON(http.StatusOK, types.FreeResponse{
		Message: "This is a free endpoint",
		Data:    "No payment required to access this data",
	})
}

// Paid gates protected content behind payment. Without a payment header the
// response is a 402 challenge; with one, the payment is verified and then
// settled through the facilitator, and settlement is never attempted unless
// verification succeeded in the same request.
// GET /api/paid
func (h *ResourceHandler) Paid(c *gin.Context) {
	header, ok := x402.ExtractPaymentHeader(c.Request.Header)
	if !ok {
		h.log.Info("no payment header, returning 402 Payment Required")
		metrics.PaymentChallengesTotal.Inc()
		x402.WritePaymentRequired(c, x402.NewPaymentRequirements(h.price, h.receiver, h.network))
		return
	}

	h.log.Info("payment header found, verifying payment")

	txHash, err := h.verifyAndSettle(c.Request.Context(), header.Transaction)
	if err != nil {
		metrics.PaidRequestsTotal.WithLabelValues("rejected").Inc()
		h.log.WithError(err).Warn("payment verification/settlement failed")
		apierrors.WriteJSON(c, err)
		return
	}

	metrics.PaidRequestsTotal.WithLabelValues("settled").Inc()
	h.log.WithField("tx_hash", txHash).Info("payment successful")
	c.JSON(http.StatusOK, types.PaidResponse{
		Message:         "Payment successful",
		Data:            "This is protected content that requires payment",
		TransactionHash: txHash,
	})
}

// verifyAndSettle runs the two-step facilitator flow. The calls are
// independent remote operations with no transactional atomicity: when verify
// succeeds but settle fails the caller gets a settlement error, no payment is
// recorded anywhere, and the client must re-submit a fresh transaction.
func (h *ResourceHandler) verifyAndSettle(ctx context.Context, transaction string) (string, error) {
	valid, err := h.facilitator.VerifyPayment(ctx, transaction, h.price, h.receiver)
	if err != nil {
		return "", err
	}
	if !valid {
		return "", apierrors.PaymentVerificationFailedf("Invalid payment")
	}

	h.log.Info("payment verified, settling transaction")
	return h.facilitator.SettlePayment(ctx, transaction)
}
