package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entitiesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intransparent_entities_ingested_total",
		Help: "Number of entity disclosure records normalized successfully",
	})

	validationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intransparent_validation_failures_total",
		Help: "Number of entity disclosure records rejected during validation",
	})
)
