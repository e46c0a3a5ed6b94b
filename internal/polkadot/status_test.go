package polkadot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"x402-backend/internal/apierrors"
)

func TestParseTransactionStatus(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		event string
	}{
		{"validated", `{"event":"validated"}`, StatusValidated},
		{"broadcasted", `{"event":"broadcasted","numPeers":4}`, StatusBroadcasted},
		{"in best block", `{"event":"bestChainBlockIncluded","block":{"hash":"0xabc","index":2}}`, StatusInBestBlock},
		{"retracted", `{"event":"bestChainBlockIncluded","block":null}`, StatusInBestBlock},
		{"finalized", `{"event":"finalized","block":{"hash":"0xdef","index":1}}`, StatusFinalized},
		{"dropped", `{"event":"dropped","error":"pool full"}`, StatusDropped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := parseTransactionStatus(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if status.Event != tt.event {
				t.Errorf("event = %q, want %q", status.Event, tt.event)
			}
		})
	}

	if _, err := parseTransactionStatus(json.RawMessage(`{}`)); err == nil {
		t.Error("status without event tag should fail")
	}
	if _, err := parseTransactionStatus(json.RawMessage(`not json`)); err == nil {
		t.Error("malformed status should fail")
	}
}

func TestTransactionStatusTerminal(t *testing.T) {
	terminal := []string{StatusFinalized, StatusError, StatusInvalid, StatusDropped}
	for _, event := range terminal {
		if !(&TransactionStatus{Event: event}).Terminal() {
			t.Errorf("%s should be terminal", event)
		}
	}
	nonTerminal := []string{StatusValidated, StatusBroadcasted, StatusInBestBlock}
	for _, event := range nonTerminal {
		if (&TransactionStatus{Event: event}).Terminal() {
			t.Errorf("%s should not be terminal", event)
		}
	}
}

// fakeStatusSource replays a scripted sequence of status events.
type fakeStatusSource struct {
	events []string
	err    error
	pos    int
}

func (f *fakeStatusSource) Next(ctx context.Context) (json.RawMessage, error) {
	if f.pos >= len(f.events) {
		if f.err != nil {
			return nil, f.err
		}
		return nil, fmt.Errorf("stream exhausted")
	}
	ev := f.events[f.pos]
	f.pos++
	return json.RawMessage(ev), nil
}

func TestAwaitFinalizedSuccess(t *testing.T) {
	source := &fakeStatusSource{events: []string{
		`{"event":"validated"}`,
		`{"event":"broadcasted","numPeers":3}`,
		`{"event":"bestChainBlockIncluded","block":{"hash":"0xbest","index":0}}`,
		`{"event":"finalized","block":{"hash":"0xfinal","index":1}}`,
	}}

	block, err := awaitFinalized(context.Background(), source, testLog())
	if err != nil {
		t.Fatalf("awaitFinalized: %v", err)
	}
	if block.Hash != "0xfinal" {
		t.Errorf("block hash = %q, want 0xfinal", block.Hash)
	}
}

func TestAwaitFinalizedSkipsReorgTransitions(t *testing.T) {
	source := &fakeStatusSource{events: []string{
		`{"event":"bestChainBlockIncluded","block":{"hash":"0xone","index":0}}`,
		`{"event":"bestChainBlockIncluded","block":null}`,
		`{"event":"bestChainBlockIncluded","block":{"hash":"0xtwo","index":0}}`,
		`{"event":"finalized","block":{"hash":"0xtwo","index":0}}`,
	}}

	block, err := awaitFinalized(context.Background(), source, testLog())
	if err != nil {
		t.Fatalf("awaitFinalized: %v", err)
	}
	if block.Hash != "0xtwo" {
		t.Errorf("block hash = %q, want 0xtwo", block.Hash)
	}
}

func TestAwaitFinalizedFailures(t *testing.T) {
	tests := []struct {
		name    string
		events  []string
		wantMsg string
	}{
		{"dropped", []string{`{"event":"validated"}`, `{"event":"dropped","error":"pool limit reached"}`}, "Transaction dropped: pool limit reached"},
		{"invalid", []string{`{"event":"invalid","error":"bad signature"}`}, "Transaction invalid: bad signature"},
		{"error", []string{`{"event":"error","error":"node exploded"}`}, "Transaction error: node exploded"},
		{"finalized without block", []string{`{"event":"finalized"}`}, "finalized event without block"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := awaitFinalized(context.Background(), &fakeStatusSource{events: tt.events}, testLog())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantMsg)
			}
			var apiErr *apierrors.APIError
			if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.KindPolkadotRPCError {
				t.Errorf("terminal failures should be PolkadotRpcError, got %v", err)
			}
		})
	}
}

func TestAwaitFinalizedStreamReadFailure(t *testing.T) {
	source := &fakeStatusSource{
		events: []string{`{"event":"validated"}`},
		err:    fmt.Errorf("websocket read: connection reset"),
	}

	_, err := awaitFinalized(context.Background(), source, testLog())
	if err == nil || !strings.Contains(err.Error(), "Transaction status error") {
		t.Errorf("stream failure should abort with a status error, got %v", err)
	}
}

func TestAwaitFinalizedIgnoresUnknownEvents(t *testing.T) {
	source := &fakeStatusSource{events: []string{
		`{"event":"someFutureEvent"}`,
		`{"event":"finalized","block":{"hash":"0xok","index":0}}`,
	}}

	block, err := awaitFinalized(context.Background(), source, testLog())
	if err != nil || block.Hash != "0xok" {
		t.Errorf("unknown events should be skipped, got block=%v err=%v", block, err)
	}
}
