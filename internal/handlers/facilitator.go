package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"x402-backend/internal/metrics"
	"x402-backend/internal/polkadot"
	"x402-backend/internal/types"
)

// ChainGateway is the slice of the Polkadot gateway the facilitator handlers
// need.
type ChainGateway interface {
	IsConnected() bool
	VerifyTransactionFormat(ctx context.Context, transaction string, expectedAmount uint64, expectedRecipient string) error
	SubmitTransaction(ctx context.Context, transaction string) (*polkadot.SettlementResult, error)
}

// FacilitatorHandler serves the facilitator's HTTP surface over the gateway.
type FacilitatorHandler struct {
	network string
	gateway ChainGateway
	log     *logrus.Entry
}

func NewFacilitatorHandler(network string, gateway ChainGateway, log *logrus.Entry) *FacilitatorHandler {
	return &FacilitatorHandler{network: network, gateway: gateway, log: log}
}

// Health reports the gateway connection status.
// GET /health
func (h *FacilitatorHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, types.FacilitatorHealthResponse{
		Status:    "ok",
		Network:   h.network,
		Connected: h.gateway.IsConnected(),
	})
}

// Verify checks transaction format. Always responds 200; validity is in the
// body so callers can distinguish "malformed payment" from "facilitator down".
// POST /verify
func (h *FacilitatorHandler) Verify(c *gin.Context) {
	var request types.VerifyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		metrics.VerifyRequestsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusOK, types.VerifyResponse{
			Valid:   false,
			Message: fmt.Sprintf("Verification failed: invalid request body: %v", err),
		})
		return
	}

	h.log.WithFields(logrus.Fields{
		"expected_amount":    request.ExpectedAmount,
		"expected_recipient": request.ExpectedRecipient,
	}).Info("verify request")

	err := h.gateway.VerifyTransactionFormat(c.Request.Context(), request.Transaction, request.ExpectedAmount, request.ExpectedRecipient)
	if err != nil {
		metrics.VerifyRequestsTotal.WithLabelValues("invalid").Inc()
		h.log.WithError(err).Warn("transaction verification failed")
		c.JSON(http.StatusOK, types.VerifyResponse{
			Valid:   false,
			Message: fmt.Sprintf("Verification failed: %v", err),
		})
		return
	}

	metrics.VerifyRequestsTotal.WithLabelValues("valid").Inc()
	c.JSON(http.StatusOK, types.VerifyResponse{
		Valid:   true,
		Message: "Transaction verified successfully",
	})
}

// Settle broadcasts the transaction and blocks until finality. 200 on
// settlement, 400 with settled:false otherwise.
// POST /settle
func (h *FacilitatorHandler) Settle(c *gin.Context) {
	var request types.SettleRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, types.SettleResponse{
			Settled: false,
			Message: fmt.Sprintf("Settlement failed: invalid request body: %v", err),
		})
		return
	}

	h.log.Info("settle request")

	result, err := h.gateway.SubmitTransaction(c.Request.Context(), request.Transaction)
	if err != nil {
		h.log.WithError(err).Warn("transaction settlement failed")
		c.JSON(http.StatusBadRequest, types.SettleResponse{
			Settled: false,
			Message: fmt.Sprintf("Settlement failed: %v", err),
		})
		return
	}

	h.log.WithFields(logrus.Fields{
		"tx_hash":    result.TxHash,
		"block_hash": result.BlockHash,
	}).Info("transaction settled")

	c.JSON(http.StatusOK, types.SettleResponse{
		Settled:         true,
		TransactionHash: &result.TxHash,
		Message:         fmt.Sprintf("Transaction settled - Hash: %s (finalized in block %s)", result.TxHash, result.BlockHash),
	})
}
