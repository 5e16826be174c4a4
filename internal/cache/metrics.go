package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	addressIndexSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conn_tracer",
		Subsystem: "cache",
		Name:      "address_index_size",
		Help:      "Number of addresses currently mapped to a workload.",
	})

	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conn_tracer",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Address lookups served from the workload cache.",
	}, []string{"result"})
)
