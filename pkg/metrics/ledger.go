package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks money movement through orders, wallets and payouts.
type LedgerMetrics struct {
	entries     *prometheus.CounterVec
	entryCents  *prometheus.CounterVec
	payouts     *prometheus.CounterVec
	orders      prometheus.Counter
	subOrders   prometheus.Counter
	walletDrift prometheus.Gauge
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	m := &LedgerMetrics{
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_entries_total",
			Help: "Wallet ledger entries appended, by type.",
		}, []string{"type"}),
		entryCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_entry_amount_cents_total",
			Help: "Sum of wallet ledger entry amounts in cents, by type.",
		}, []string{"type"}),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_transitions_total",
			Help: "Payout state transitions.",
		}, []string{"from", "to"}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_split_total",
			Help: "Orders created from checkouts.",
		}),
		subOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vendor_sub_orders_total",
			Help: "Vendor sub-orders created from checkouts.",
		}),
		walletDrift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wallets_with_drift",
			Help: "Wallets whose totals disagree with their transaction log at the last reconciliation.",
		}),
	}
	reg.MustRegister(m.entries, m.entryCents, m.payouts, m.orders, m.subOrders, m.walletDrift)
	return m
}

// ObserveEntry records one appended wallet entry.
func (m *LedgerMetrics) ObserveEntry(entryType string, amountCents int64) {
	if m == nil || m.entries == nil {
		return
	}
	label := normalizeLabel(entryType)
	m.entries.WithLabelValues(label).Inc()
	if amountCents > 0 {
		m.entryCents.WithLabelValues(label).Add(float64(amountCents))
	}
}

// ObservePayoutTransition records a payout moving between states.
func (m *LedgerMetrics) ObservePayoutTransition(from, to string) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveOrderSplit records a created order and its vendor fan-out.
func (m *LedgerMetrics) ObserveOrderSplit(vendorCount int) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.Inc()
	m.subOrders.Add(float64(vendorCount))
}

// SetWalletDrift stores the number of drifting wallets found by reconciliation.
func (m *LedgerMetrics) SetWalletDrift(count int) {
	if m == nil || m.walletDrift == nil {
		return
	}
	m.walletDrift.Set(float64(count))
}
