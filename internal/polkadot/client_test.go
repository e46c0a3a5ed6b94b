package polkadot

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"x402-backend/internal/apierrors"
)

func TestDecodeHexTransaction(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{"plain hex", "1234", []byte{0x12, 0x34}, false},
		{"0x prefix stripped", "0x1234", []byte{0x12, 0x34}, false},
		{"uppercase hex", "ABCD", []byte{0xab, 0xcd}, false},
		{"empty", "", []byte{}, false},
		{"odd length", "123", nil, true},
		{"odd length with prefix", "0x123", nil, true},
		{"non-hex", "zzzz", nil, true},
		{"whitespace", "12 34", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeHexTransaction(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeHexTransaction(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && hex.EncodeToString(got) != hex.EncodeToString(tt.want) {
				t.Errorf("decodeHexTransaction(%q) = %x, want %x", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeTransactionEnvelope(t *testing.T) {
	envelope, err := DecodeTransactionEnvelope("0xdeadbeef")
	if err != nil {
		t.Fatalf("DecodeTransactionEnvelope: %v", err)
	}
	if envelope.Signature == "" {
		t.Error("envelope should carry the signed payload as signature")
	}

	if _, err := DecodeTransactionEnvelope("nothex"); err == nil {
		t.Error("non-hex payload should fail")
	}
}

// fakeNode is a WebSocket JSON-RPC server that accepts one submitAndWatch
// subscription and replays a scripted event sequence.
type fakeNode struct {
	srv *httptest.Server
	URL string
}

func startFakeNode(t *testing.T, events []string) *fakeNode {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				ID     uint64 `json:"id"`
				Method string `json:"method"`
			}
			if err := json.Unmarshal(data, &req); err != nil {
				return
			}

			if req.Method == methodSubmitAndWatch {
				if err := ws.WriteMessage(websocket.TextMessage,
					[]byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":"sub-1"}`, req.ID))); err != nil {
					return
				}
				for _, ev := range events {
					frame := fmt.Sprintf(`{"jsonrpc":"2.0","method":"transactionWatch_v1_watchEvent","params":{"subscription":"sub-1","result":%s}}`, ev)
					if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
						return
					}
				}
				continue
			}

			// unwatch and anything else get an acknowledging response.
			if err := ws.WriteMessage(websocket.TextMessage,
				[]byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":true}`, req.ID))); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return &fakeNode{srv: srv, URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func newTestGateway(t *testing.T, nodeURL string) *Gateway {
	t.Helper()
	gateway, err := NewGateway("paseo", time.Second, testLog())
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	gateway.profile = NetworkProfile{
		Name:         "Fake Net",
		Nodes:        []RpcNode{{URL: nodeURL, Name: "Fake"}},
		DefaultIndex: 0,
	}
	gateway.probe = func(ctx context.Context, url string) error { return nil }
	return gateway
}

func TestNewGatewayUnknownNetwork(t *testing.T) {
	if _, err := NewGateway("kusama", time.Second, testLog()); err == nil {
		t.Error("unknown network should be rejected")
	}
}

func TestGatewayConnectAndStatus(t *testing.T) {
	node := startFakeNode(t, nil)
	gateway := newTestGateway(t, node.URL)

	if gateway.IsConnected() {
		t.Error("gateway should start disconnected")
	}
	if gateway.ActiveNodeURL() != "" {
		t.Error("disconnected gateway must not report an active node")
	}

	if err := gateway.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !gateway.IsConnected() {
		t.Error("gateway should be connected")
	}
	if gateway.ActiveNodeURL() != node.URL {
		t.Errorf("active node = %q, want %q", gateway.ActiveNodeURL(), node.URL)
	}
}

func TestGatewayConnectNoHealthyNodes(t *testing.T) {
	gateway := newTestGateway(t, "wss://unreachable.example")
	gateway.probe = func(ctx context.Context, url string) error { return fmt.Errorf("refused") }

	err := gateway.Connect(context.Background())
	if err == nil {
		t.Fatal("expected connect failure")
	}
	if !strings.Contains(err.Error(), "No healthy RPC nodes available") {
		t.Errorf("unexpected error: %v", err)
	}
	if gateway.IsConnected() {
		t.Error("gateway must not report connected after a failed connect")
	}
}

func TestGatewayEnsureConnectedIsIdempotent(t *testing.T) {
	node := startFakeNode(t, nil)
	gateway := newTestGateway(t, node.URL)

	dials := 0
	realDial := gateway.dial
	gateway.dial = func(ctx context.Context, url string, log *logrus.Entry) (*rpcConn, error) {
		dials++
		return realDial(ctx, url, log)
	}

	ctx := context.Background()
	if err := gateway.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
	if err := gateway.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected (second): %v", err)
	}
	if dials != 1 {
		t.Errorf("expected exactly one dial, got %d", dials)
	}
}

func TestGatewayVerifyTransactionFormatHexOnly(t *testing.T) {
	node := startFakeNode(t, nil)
	gateway := newTestGateway(t, node.URL)
	if err := gateway.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Amount and recipient are not checked locally; any values pass for
	// well-formed hex.
	if err := gateway.VerifyTransactionFormat(context.Background(), "0x1234", 999999, "5Whatever"); err != nil {
		t.Errorf("well-formed hex should verify regardless of amount/recipient, got %v", err)
	}

	err := gateway.VerifyTransactionFormat(context.Background(), "not-hex", 100, "5F...")
	if err == nil {
		t.Fatal("malformed hex should fail verification")
	}
	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.KindInvalidTransaction {
		t.Errorf("expected InvalidTransaction, got %v", err)
	}
}

func TestGatewaySubmitTransactionFinalized(t *testing.T) {
	node := startFakeNode(t, []string{
		`{"event":"validated"}`,
		`{"event":"broadcasted","numPeers":2}`,
		`{"event":"bestChainBlockIncluded","block":{"hash":"0xbest","index":0}}`,
		`{"event":"finalized","block":{"hash":"0xfinal","index":3}}`,
	})
	gateway := newTestGateway(t, node.URL)
	if err := gateway.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	result, err := gateway.SubmitTransaction(context.Background(), "0xdeadbeef")
	if err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}

	digest := blake2b.Sum256([]byte{0xde, 0xad, 0xbe, 0xef})
	wantHash := "0x" + hex.EncodeToString(digest[:])
	if result.TxHash != wantHash {
		t.Errorf("tx hash = %q, want %q", result.TxHash, wantHash)
	}
	if result.BlockHash != "0xfinal" {
		t.Errorf("block hash = %q, want 0xfinal", result.BlockHash)
	}
	if !strings.Contains(result.ExplorerURL, "paseo.subscan.io") {
		t.Errorf("explorer URL = %q", result.ExplorerURL)
	}
}

func TestGatewaySubmitTransactionDropped(t *testing.T) {
	node := startFakeNode(t, []string{
		`{"event":"validated"}`,
		`{"event":"dropped","error":"transaction pool is full"}`,
	})
	gateway := newTestGateway(t, node.URL)
	if err := gateway.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := gateway.SubmitTransaction(context.Background(), "0xdeadbeef")
	if err == nil {
		t.Fatal("expected submission failure")
	}
	if !strings.Contains(err.Error(), "Transaction dropped: transaction pool is full") {
		t.Errorf("error should carry the chain-reported message, got %v", err)
	}
}

func TestGatewaySubmitTransactionInvalidHex(t *testing.T) {
	node := startFakeNode(t, nil)
	gateway := newTestGateway(t, node.URL)
	if err := gateway.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := gateway.SubmitTransaction(context.Background(), "0x123")
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "Invalid hex transaction:") {
		t.Errorf("unexpected message: %v", err)
	}
	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.KindInvalidTransaction {
		t.Errorf("expected InvalidTransaction, got %v", err)
	}
}
