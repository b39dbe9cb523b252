package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for the deposit/withdrawal counters.
const (
	OutcomeAccepted   = "accepted"
	OutcomeRejected   = "rejected"
	OutcomePoolFailed = "pool_failed"
)

// Deposits counts deposit attempts by outcome.
var Deposits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "economy_deposits_total",
		Help: "Total number of account deposit attempts by outcome",
	},
	[]string{"outcome"},
)

// Withdrawals counts withdrawal attempts by outcome.
var Withdrawals = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "economy_withdrawals_total",
		Help: "Total number of account withdrawal attempts by outcome",
	},
	[]string{"outcome"},
)

// TransferLosses counts transfers whose withdrawal committed but whose
// deposit leg failed, i.e. funds left the source and were never credited.
var TransferLosses = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "economy_transfer_losses_total",
		Help: "Total number of partial transfer losses (withdraw committed, deposit failed)",
	},
)

// ServerPoolBalance tracks the closed-economy server pool per domain.
var ServerPoolBalance = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "economy_server_pool_balance",
		Help: "Current closed-economy server pool balance per monetary domain",
	},
	[]string{"domain"},
)

func init() {
	prometheus.MustRegister(Deposits, Withdrawals, TransferLosses)
	prometheus.MustRegister(ServerPoolBalance)
}
