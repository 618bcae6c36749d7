package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BudgetQuotesTotal counts pricing computations by region and outcome.
	BudgetQuotesTotal *prometheus.CounterVec
	// BudgetsCreatedTotal counts persisted budget versions by region.
	BudgetsCreatedTotal *prometheus.CounterVec
	// BudgetPrimaryChangesTotal counts primary budget switches.
	BudgetPrimaryChangesTotal prometheus.Counter
	// CatalogCacheLookups counts catalog cache hits and misses.
	CatalogCacheLookups *prometheus.CounterVec
	// SummaryRefreshTotal counts worker summary refresh outcomes.
	SummaryRefreshTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BudgetQuotesTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_quotes_total",
			Help:      "Count of budget price computations by region and result.",
		}, []string{"region", "result"}))
		BudgetsCreatedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budgets_created_total",
			Help:      "Count of persisted budget versions by region.",
		}, []string{"region"}))
		BudgetPrimaryChangesTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_primary_changes_total",
			Help:      "Number of times a budget was marked as primary.",
		}))
		CatalogCacheLookups = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_lookups_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"}))
		SummaryRefreshTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_summary_refresh_total",
			Help:      "Budget summary refresh task outcomes.",
		}, []string{"result"}))
	})
}

// IncQuote records a pricing computation when domain metrics are registered.
func IncQuote(region, result string) {
	if BudgetQuotesTotal != nil {
		BudgetQuotesTotal.WithLabelValues(region, result).Inc()
	}
}

// IncBudgetCreated records a persisted budget version.
func IncBudgetCreated(region string) {
	if BudgetsCreatedTotal != nil {
		BudgetsCreatedTotal.WithLabelValues(region).Inc()
	}
}

// IncPrimaryChange records a primary switch.
func IncPrimaryChange() {
	if BudgetPrimaryChangesTotal != nil {
		BudgetPrimaryChangesTotal.Inc()
	}
}

// IncCatalogCache records a catalog cache lookup result ("hit" or "miss").
func IncCatalogCache(result string) {
	if CatalogCacheLookups != nil {
		CatalogCacheLookups.WithLabelValues(result).Inc()
	}
}

// IncSummaryRefresh records a summary refresh outcome.
func IncSummaryRefresh(result string) {
	if SummaryRefreshTotal != nil {
		SummaryRefreshTotal.WithLabelValues(result).Inc()
	}
}
