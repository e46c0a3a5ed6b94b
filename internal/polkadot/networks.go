package polkadot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"x402-backend/internal/metrics"
)

// RpcNode is one candidate RPC endpoint of a network. Immutable.
type RpcNode struct {
	URL  string
	Name string
}

// NetworkProfile is the ordered endpoint list for one named network, with a
// preferred default. Immutable after construction.
type NetworkProfile struct {
	Name         string
	Nodes        []RpcNode
	DefaultIndex int
}

// PaseoProfile returns the Paseo testnet endpoint set.
func PaseoProfile() NetworkProfile {
	return NetworkProfile{
		Name: "Paseo Testnet",
		Nodes: []RpcNode{
			{URL: "wss://rpc.ibp.network/paseo", Name: "IBP Network"},
			{URL: "wss://paseo.rpc.amforc.com", Name: "Amforc"},
			{URL: "wss://paseo.dotters.network", Name: "Dotters"},
			{URL: "wss://paseo-rpc.dwellir.com", Name: "Dwellir"},
		},
		DefaultIndex: 0,
	}
}

// WestendProfile returns the Westend testnet endpoint set.
func WestendProfile() NetworkProfile {
	return NetworkProfile{
		Name: "Westend Testnet",
		Nodes: []RpcNode{
			{URL: "wss://westend-rpc.polkadot.io", Name: "Parity"},
			{URL: "wss://westend.rpc.amforc.com", Name: "Amforc"},
		},
		DefaultIndex: 0,
	}
}

// PolkadotProfile returns the Polkadot mainnet endpoint set.
func PolkadotProfile() NetworkProfile {
	return NetworkProfile{
		Name: "Polkadot Mainnet",
		Nodes: []RpcNode{
			{URL: "wss://rpc.polkadot.io", Name: "Parity"},
			{URL: "wss://polkadot.rpc.amforc.com", Name: "Amforc"},
			{URL: "wss://polkadot-rpc.dwellir.com", Name: "Dwellir"},
		},
		DefaultIndex: 0,
	}
}

// ProfileForNetwork resolves a network name (case-insensitive) to its profile.
// Unrecognized names are an error rather than a silent fallback so that a
// typo in configuration cannot route payments to the wrong chain.
func ProfileForNetwork(name string) (NetworkProfile, error) {
	switch strings.ToLower(name) {
	case "paseo":
		return PaseoProfile(), nil
	case "westend":
		return WestendProfile(), nil
	case "polkadot":
		return PolkadotProfile(), nil
	default:
		return NetworkProfile{}, fmt.Errorf("unknown network %q (expected paseo, westend or polkadot)", name)
	}
}

// probeFunc performs one connectivity probe against a node URL. It must
// return before ctx expires or its result is discarded as unhealthy.
type probeFunc func(ctx context.Context, url string) error

// defaultProbe opens a WebSocket handshake and closes it immediately. No
// application data is exchanged.
func defaultProbe(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	return conn.Close()
}

// SelectHealthyNode probes every node of the profile in parallel, each probe
// bounded by timeout, and picks the preferred default when it is healthy,
// otherwise the first healthy node in list order. Returns nil when no node
// responds in time.
func SelectHealthyNode(ctx context.Context, profile NetworkProfile, timeout time.Duration, log *logrus.Entry) *RpcNode {
	return selectHealthyNode(ctx, profile, timeout, defaultProbe, log)
}

func selectHealthyNode(ctx context.Context, profile NetworkProfile, timeout time.Duration, probe probeFunc, log *logrus.Entry) *RpcNode {
	log.WithFields(logrus.Fields{
		"network": profile.Name,
		"nodes":   len(profile.Nodes),
	}).Debug("probing RPC nodes in parallel")

	healthy := make([]bool, len(profile.Nodes))
	var wg sync.WaitGroup
	for i := range profile.Nodes {
		wg.Add(1)
		go func(i int, node RpcNode) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			err := probe(probeCtx, node.URL)
			healthy[i] = err == nil
			if err != nil {
				// A failed probe is local and silent; the node is just skipped.
				metrics.NodeProbesTotal.WithLabelValues(node.Name, "unhealthy").Inc()
				log.WithFields(logrus.Fields{
					"node": node.Name,
					"url":  node.URL,
				}).WithError(err).Debug("RPC node probe failed")
				return
			}
			metrics.NodeProbesTotal.WithLabelValues(node.Name, "healthy").Inc()
		}(i, profile.Nodes[i])
	}
	wg.Wait()

	if profile.DefaultIndex < len(healthy) && healthy[profile.DefaultIndex] {
		node := profile.Nodes[profile.DefaultIndex]
		log.WithFields(logrus.Fields{
			"node": node.Name,
			"url":  node.URL,
		}).Info("using default RPC node")
		return &node
	}

	log.Warn("default RPC node is down, searching for alternative")

	for i := range healthy {
		if healthy[i] && i != profile.DefaultIndex {
			node := profile.Nodes[i]
			log.WithFields(logrus.Fields{
				"node": node.Name,
				"url":  node.URL,
			}).Info("using alternative RPC node")
			return &node
		}
	}

	log.Warn("no healthy RPC nodes found")
	return nil
}
