package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics tracks receiving, ledger and session counter activity.
type InventoryMetrics struct {
	receipts      *prometheus.CounterVec
	txRetries     *prometheus.CounterVec
	movements     *prometheus.CounterVec
	discrepancies prometheus.Counter
	counters      *prometheus.CounterVec
	pricingCache  *prometheus.CounterVec
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	m := &InventoryMetrics{
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "po_receipts_total",
			Help: "Purchase order receipt attempts by result.",
		}, []string{"result"}),
		txRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tx_retries_total",
			Help: "Transaction retries caused by lock contention or stale writes.",
		}, []string{"operation"}),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_movements_total",
			Help: "Stock movements recorded by type.",
		}, []string{"type"}),
		discrepancies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_discrepancies_total",
			Help: "Projection rows whose quantity drifted from the ledger sum.",
		}),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_session_counter_updates_total",
			Help: "Session counter increments and decrements by counter.",
		}, []string{"counter", "direction"}),
		pricingCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_cache_lookups_total",
			Help: "Pricing tier cache lookups by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.receipts, m.txRetries, m.movements, m.discrepancies, m.counters, m.pricingCache)
	return m
}

// IncReceipt counts a receipt attempt with the given result label.
func (m *InventoryMetrics) IncReceipt(result string) {
	if m == nil || m.receipts == nil {
		return
	}
	m.receipts.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncTxRetry counts one retried transaction attempt.
func (m *InventoryMetrics) IncTxRetry(operation string) {
	if m == nil || m.txRetries == nil {
		return
	}
	m.txRetries.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncMovement counts a committed ledger entry.
func (m *InventoryMetrics) IncMovement(movementType string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(movementType)).Inc()
}

// AddDiscrepancies counts drifted projection rows found by reconciliation.
func (m *InventoryMetrics) AddDiscrepancies(n int) {
	if m == nil || m.discrepancies == nil || n <= 0 {
		return
	}
	m.discrepancies.Add(float64(n))
}

// IncCounterUpdate counts a session counter change.
func (m *InventoryMetrics) IncCounterUpdate(counter string, decrement bool) {
	if m == nil || m.counters == nil {
		return
	}
	direction := "increment"
	if decrement {
		direction = "decrement"
	}
	m.counters.WithLabelValues(normalizeLabel(counter), direction).Inc()
}

// IncPricingCache counts a cache hit or miss.
func (m *InventoryMetrics) IncPricingCache(hit bool) {
	if m == nil || m.pricingCache == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.pricingCache.WithLabelValues(outcome).Inc()
}
