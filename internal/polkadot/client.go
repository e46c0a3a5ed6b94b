package polkadot

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"x402-backend/internal/apierrors"
	"x402-backend/internal/metrics"
)

const (
	methodSubmitAndWatch = "transactionWatch_v1_submitAndWatch"
	methodUnwatch        = "transactionWatch_v1_unwatch"
)

// SettlementResult is the outcome of one finalized submission. TxHash is the
// blake2b-256 content hash of the raw transaction bytes; BlockHash is the
// chain-reported finalized block.
type SettlementResult struct {
	TxHash      string
	BlockHash   string
	Network     string
	ExplorerURL string
}

// Gateway owns exactly one live RPC connection to the configured network and
// mediates all chain operations. Connection state is shared across concurrent
// requests behind a read/write lock: status reads take the shared path, a
// (re)connect takes the exclusive path and fully replaces the prior handle
// before marking the gateway connected.
type Gateway struct {
	network      string
	profile      NetworkProfile
	probeTimeout time.Duration
	log          *logrus.Entry

	// Test seams; defaulted by NewGateway.
	dial  func(ctx context.Context, url string, log *logrus.Entry) (*rpcConn, error)
	probe probeFunc

	mu            sync.RWMutex
	connected     bool
	activeNodeURL string
	conn          *rpcConn
}

// NewGateway resolves the network profile; it does not dial. Call Connect
// before serving traffic.
func NewGateway(network string, probeTimeout time.Duration, log *logrus.Entry) (*Gateway, error) {
	profile, err := ProfileForNetwork(network)
	if err != nil {
		return nil, err
	}

	log = log.WithField("network", network)
	log.WithField("nodes", len(profile.Nodes)).Info("initialized Polkadot gateway (broadcast only, signing happens client-side)")

	return &Gateway{
		network:      network,
		profile:      profile,
		probeTimeout: probeTimeout,
		log:          log,
		dial:         dialNode,
		probe:        defaultProbe,
	}, nil
}

// Network returns the configured network name.
func (g *Gateway) Network() string {
	return g.network
}

// Connect probes the profile's nodes and swaps in a connection to a healthy
// one. The previous handle, if any, is closed before the new one is exposed.
func (g *Gateway) Connect(ctx context.Context) error {
	node := selectHealthyNode(ctx, g.profile, g.probeTimeout, g.probe, g.log)
	if node == nil {
		metrics.RPCConnectionStatus.Set(0)
		return apierrors.PolkadotRPCf("No healthy RPC nodes available")
	}

	g.log.WithFields(logrus.Fields{
		"node": node.Name,
		"url":  node.URL,
	}).Info("connecting to Polkadot RPC")

	conn, err := g.dial(ctx, node.URL, g.log)
	if err != nil {
		metrics.RPCConnectionStatus.Set(0)
		return apierrors.PolkadotRPCf("Failed to connect: %v", err)
	}

	g.mu.Lock()
	if g.conn != nil {
		g.conn.close()
	}
	g.conn = conn
	g.activeNodeURL = node.URL
	g.connected = true
	g.mu.Unlock()

	metrics.RPCConnectionStatus.Set(1)
	metrics.ReconnectsTotal.Inc()
	g.log.WithField("node", node.Name).Info("connected to Polkadot network")
	return nil
}

// EnsureConnected returns immediately when a connection is live; otherwise it
// attempts a single reconnect. This is the sole reconnection path, there is
// no background keepalive.
func (g *Gateway) EnsureConnected(ctx context.Context) error {
	if g.IsConnected() {
		return nil
	}
	g.log.Warn("connection lost, attempting to reconnect")
	return g.Connect(ctx)
}

// IsConnected is a read-only status query.
func (g *Gateway) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// ActiveNodeURL returns the URL of the node in use, empty when disconnected.
func (g *Gateway) ActiveNodeURL() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.activeNodeURL
}

// VerifyTransactionFormat checks that the transaction is well-formed hex.
// The expected amount and recipient are accepted for interface parity but
// not checked locally: those fields are opaque inside a signed extrinsic and
// are enforced by the chain itself at submission time.
func (g *Gateway) VerifyTransactionFormat(ctx context.Context, transaction string, expectedAmount uint64, expectedRecipient string) error {
	if err := g.EnsureConnected(ctx); err != nil {
		return err
	}

	if _, err := decodeHexTransaction(transaction); err != nil {
		return apierrors.InvalidTransactionf("Invalid hex-encoded transaction")
	}

	g.log.Debug("transaction format validated")
	return nil
}

// SubmitTransaction broadcasts the signed transaction and blocks until the
// chain reports a terminal status. Only finality is treated as settlement.
func (g *Gateway) SubmitTransaction(ctx context.Context, transaction string) (*SettlementResult, error) {
	if err := g.EnsureConnected(ctx); err != nil {
		return nil, err
	}

	txBytes, err := decodeHexTransaction(transaction)
	if err != nil {
		return nil, apierrors.InvalidTransactionf("Invalid hex transaction: %v", err)
	}

	// Content hash for early reference and logging. The chain reports the
	// authoritative block reference at finalization.
	digest := blake2b.Sum256(txBytes)
	txHash := "0x" + hex.EncodeToString(digest[:])
	log := g.log.WithField("tx_hash", txHash)

	g.mu.RLock()
	conn := g.conn
	g.mu.RUnlock()
	if conn == nil {
		return nil, apierrors.PolkadotRPCf("RPC connection not initialized")
	}

	log.Info("submitting transaction to blockchain")
	started := time.Now()

	sub, err := conn.subscribe(ctx, methodSubmitAndWatch, methodUnwatch, "0x"+hex.EncodeToString(txBytes))
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("failed").Inc()
		return nil, apierrors.PolkadotRPCf("Failed to submit transaction: %v", err)
	}
	defer sub.close()

	log.Info("transaction submitted, waiting for finality")

	block, err := awaitFinalized(ctx, sub, log)
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.SettlementsTotal.WithLabelValues("settled").Inc()
	metrics.SettlementDuration.Observe(time.Since(started).Seconds())

	log.WithFields(logrus.Fields{
		"block_hash": block.Hash,
		"elapsed":    time.Since(started).String(),
	}).Info("transaction finalized on-chain")

	return &SettlementResult{
		TxHash:      txHash,
		BlockHash:   block.Hash,
		Network:     g.network,
		ExplorerURL: explorerURL(g.network, txHash),
	}, nil
}

// DecodeTransactionEnvelope decodes the hex payload into the placeholder
// envelope used by local validation.
func DecodeTransactionEnvelope(transaction string) (*TransactionEnvelope, error) {
	if _, err := decodeHexTransaction(transaction); err != nil {
		return nil, apierrors.InvalidTransactionf("Invalid hex-encoded transaction")
	}

	return &TransactionEnvelope{
		From:      "signed_transaction",
		To:        "will_be_verified_on_chain",
		Amount:    0,
		Signature: transaction,
		Nonce:     0,
	}, nil
}

// decodeHexTransaction strips an optional 0x prefix and decodes the payload.
// Odd-length or non-hex input fails.
func decodeHexTransaction(transaction string) ([]byte, error) {
	raw := strings.TrimPrefix(transaction, "0x")
	txBytes, err := hex.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	return txBytes, nil
}

func explorerURL(network, txHash string) string {
	return fmt.Sprintf("https://%s.subscan.io/extrinsic/%s", strings.ToLower(network), txHash)
}
