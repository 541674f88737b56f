// Package metrics exports the kernel's runtime health as Prometheus
// gauges/counters: fill activity, liquidation activity, the insurance
// fund's balance, and the adaptive-warmup unlocked fraction and
// crisis-scale values. Grounded on the ecosystem's standard
// prometheus/client_golang registration pattern (NewCounterVec/
// NewGaugeVec + promhttp.Handler), used here rather than hand-rolled
// counters since client_golang is already part of the stack.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors bundles every metric the kernel updates as it processes
// batches, liquidations, and crisis events.
type Collectors struct {
	FillsTotal        *prometheus.CounterVec
	FillNotionalTotal  *prometheus.CounterVec
	LiquidationsTotal *prometheus.CounterVec
	InsuranceBalance   prometheus.Gauge
	InsuranceReserved  prometheus.Gauge
	UnlockedFraction   prometheus.Gauge
	EquityScale        prometheus.Gauge
	WarmingScale       prometheus.Gauge
	PortfolioCount     prometheus.Gauge
	ConservationErrors prometheus.Counter
}

// NewCollectors registers every metric under the "percolator" namespace
// on the default registry.
func NewCollectors() *Collectors {
	return &Collectors{
		FillsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "percolator",
			Name:      "fills_total",
			Help:      "Fills executed, partitioned by venue kind (slab, amm).",
		}, []string{"venue_kind"}),
		FillNotionalTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "percolator",
			Name:      "fill_notional_total",
			Help:      "Cumulative fill notional (1e6-scaled), partitioned by venue kind.",
		}, []string{"venue_kind"}),
		LiquidationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "percolator",
			Name:      "liquidations_total",
			Help:      "Liquidations executed, partitioned by mode (preliq, hard).",
		}, []string{"mode"}),
		InsuranceBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "percolator",
			Name:      "insurance_balance",
			Help:      "Current insurance fund balance (1e6-scaled).",
		}),
		InsuranceReserved: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "percolator",
			Name:      "insurance_reserved",
			Help:      "Current insurance fund reserved amount (1e6-scaled).",
		}),
		UnlockedFraction: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "percolator",
			Name:      "warmup_unlocked_fraction",
			Help:      "Current adaptive-warmup unlocked_frac, as a float in [0,1].",
		}),
		EquityScale: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "percolator",
			Name:      "crisis_equity_scale",
			Help:      "Current crisis equity haircut scale, as a float in [0,1].",
		}),
		WarmingScale: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "percolator",
			Name:      "crisis_warming_scale",
			Help:      "Current crisis warming haircut scale, as a float in [0,1].",
		}),
		PortfolioCount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "percolator",
			Name:      "portfolio_count",
			Help:      "Number of portfolios the kernel has touched.",
		}),
		ConservationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "percolator",
			Name:      "conservation_errors_total",
			Help:      "Count of CheckConservation failures observed by the keeper loop.",
		}),
	}
}
