package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Polkadot RPC connection metrics
	// ============================================
	RPCConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "facilitator_rpc_connection_status",
		Help: "Polkadot RPC connection status (1=connected, 0=disconnected)",
	})

	NodeProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facilitator_node_probes_total",
			Help: "Total number of RPC node health probes",
		},
		[]string{"node", "outcome"},
	)

	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facilitator_rpc_reconnects_total",
		Help: "Total number of RPC connection (re)establishments",
	})

	// ============================================
	// Payment pipeline metrics
	// ============================================
	VerifyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facilitator_verify_requests_total",
			Help: "Total number of transaction verification requests",
		},
		[]string{"result"},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facilitator_settlements_total",
			Help: "Total number of settlement attempts",
		},
		[]string{"result"},
	)

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "facilitator_settlement_duration_seconds",
		Help: "Time from transaction submission to finality",
		// Finality on Polkadot takes tens of seconds; default buckets top out too low.
		Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90, 120, 180},
	})

	// ============================================
	// Resource server metrics
	// ============================================
	PaymentChallengesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "server_payment_challenges_total",
		Help: "Total number of 402 Payment Required challenges issued",
	})

	PaidRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "server_paid_requests_total",
			Help: "Total number of paid-content requests carrying a payment header",
		},
		[]string{"outcome"},
	)

	// ============================================
	// HTTP metrics (shared by both services)
	// ============================================
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
