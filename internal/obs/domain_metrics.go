package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuotesTotal counts quote requests by result (ok, rejected, error).
	QuotesTotal *prometheus.CounterVec
	// QuoteErrorsTotal counts rejected quotes by pricing error kind.
	QuoteErrorsTotal *prometheus.CounterVec
	// QuoteGrandTotal observes quoted grand totals in minor units.
	QuoteGrandTotal *prometheus.HistogramVec
	// TaxPoolCacheTotal counts tax pool cache lookups by result (hit, miss, error).
	TaxPoolCacheTotal *prometheus.CounterVec
	// TaxPoolRefreshTotal counts background tax pool refreshes by result.
	TaxPoolRefreshTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers pricing collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotesTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quotes_total",
			Help:      "Count of order quotes by result.",
		}, []string{"result"}))
		QuoteErrorsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quote_errors_total",
			Help:      "Count of rejected quotes by error kind.",
		}, []string{"kind"}))
		QuoteGrandTotal = registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_quote_grand_total_minor",
			Help:      "Distribution of quoted grand totals in minor currency units.",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 10),
		}, []string{"currency"}))
		TaxPoolCacheTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_tax_pool_cache_total",
			Help:      "Tax pool cache lookups by result.",
		}, []string{"result"}))
		TaxPoolRefreshTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_tax_pool_refresh_total",
			Help:      "Background tax pool refreshes by result.",
		}, []string{"result"}))
	})
}

// registerOrReuse registers c, returning the already registered collector of the
// same type when an identical one exists.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
	return c
}

func incCounter(vec *prometheus.CounterVec, label string) {
	if vec != nil {
		vec.WithLabelValues(label).Inc()
	}
}

// RecordQuote records the outcome of a quote. kind is empty for successful quotes.
func RecordQuote(result, kind, currency string, grandTotal int64) {
	incCounter(QuotesTotal, result)
	if kind != "" {
		incCounter(QuoteErrorsTotal, kind)
	}
	if result == "ok" && QuoteGrandTotal != nil {
		QuoteGrandTotal.WithLabelValues(currency).Observe(float64(grandTotal))
	}
}

// RecordTaxPoolCache records a cache lookup result.
func RecordTaxPoolCache(result string) { incCounter(TaxPoolCacheTotal, result) }

// RecordTaxPoolRefresh records a background refresh result.
func RecordTaxPoolRefresh(result string) { incCounter(TaxPoolRefreshTotal, result) }
