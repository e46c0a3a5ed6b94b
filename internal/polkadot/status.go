package polkadot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"x402-backend/internal/apierrors"
)

// Transaction status events emitted by transactionWatch_v1_submitAndWatch.
const (
	StatusValidated   = "validated"
	StatusBroadcasted = "broadcasted"
	StatusInBestBlock = "bestChainBlockIncluded"
	StatusFinalized   = "finalized"
	StatusError       = "error"
	StatusInvalid     = "invalid"
	StatusDropped     = "dropped"
)

// BlockRef identifies the block a transaction landed in.
type BlockRef struct {
	Hash  string `json:"hash"`
	Index uint32 `json:"index"`
}

// TransactionStatus is one event of the submission status stream. For
// bestChainBlockIncluded a nil Block means the transaction is no longer in
// the best chain (a reorg retracted it) and finalization is still pending.
type TransactionStatus struct {
	Event    string    `json:"event"`
	Block    *BlockRef `json:"block"`
	NumPeers int       `json:"numPeers"`
	Err      string    `json:"error"`
}

// Terminal reports whether no further events follow this one.
func (s *TransactionStatus) Terminal() bool {
	switch s.Event {
	case StatusFinalized, StatusError, StatusInvalid, StatusDropped:
		return true
	}
	return false
}

func parseTransactionStatus(raw json.RawMessage) (*TransactionStatus, error) {
	var status TransactionStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode transaction status: %w", err)
	}
	if status.Event == "" {
		return nil, fmt.Errorf("transaction status missing event tag")
	}
	return &status, nil
}

// statusSource is a blocking iterator over the status event stream.
type statusSource interface {
	Next(ctx context.Context) (json.RawMessage, error)
}

// awaitFinalized consumes status events in the order the chain emits them and
// blocks until a terminal one. Best-block inclusion can be reverted by a
// reorg, so only finality counts as settlement; intermediate events are
// logged and skipped. Returns the finalized block reference.
func awaitFinalized(ctx context.Context, events statusSource, log *logrus.Entry) (*BlockRef, error) {
	for {
		raw, err := events.Next(ctx)
		if err != nil {
			return nil, apierrors.PolkadotRPCf("Transaction status error: %v", err)
		}

		status, err := parseTransactionStatus(raw)
		if err != nil {
			return nil, apierrors.PolkadotRPCf("Transaction status error: %v", err)
		}

		switch status.Event {
		case StatusValidated:
			log.Info("transaction validated in transaction pool")
		case StatusBroadcasted:
			log.WithField("peers", status.NumPeers).Info("transaction broadcasted to network")
		case StatusInBestBlock:
			if status.Block != nil {
				log.WithField("block", status.Block.Hash).Info("transaction included in best block, waiting for finalization")
			} else {
				log.Info("transaction no longer in best block, waiting for finalization")
			}
		case StatusFinalized:
			if status.Block == nil {
				return nil, apierrors.PolkadotRPCf("Transaction status error: finalized event without block reference")
			}
			return status.Block, nil
		case StatusError:
			return nil, apierrors.PolkadotRPCf("Transaction error: %s", status.Err)
		case StatusInvalid:
			return nil, apierrors.PolkadotRPCf("Transaction invalid: %s", status.Err)
		case StatusDropped:
			return nil, apierrors.PolkadotRPCf("Transaction dropped: %s", status.Err)
		default:
			log.WithField("event", status.Event).Warn("ignoring unknown transaction status event")
		}
	}
}
