// ABOUTME: Prometheus collectors for scoring, pipeline and deck activity
// ABOUTME: Registered once on the default registry and served at /metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsEmitted counts persisted action events by category.
	ActionsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kith_actions_emitted_total",
			Help: "Action events persisted, by category",
		},
		[]string{"category"},
	)

	// ActionsGated counts premium-only actions rejected for free users.
	ActionsGated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kith_actions_gated_total",
			Help: "Premium-only actions not emitted for free users",
		},
	)

	DerivedEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kith_derived_events_total",
			Help: "System-derived events persisted, by action id",
		},
		[]string{"action"},
	)

	// RecalcJobs counts background recalculation jobs by outcome.
	RecalcJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kith_recalc_jobs_total",
			Help: "Background score recalculation jobs, by result",
		},
		[]string{"result"},
	)

	RecalcQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kith_recalc_queue_depth",
			Help: "Jobs waiting in the recalculation queue",
		},
	)

	// CacheLookups counts score cache lookups by cache and result.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kith_score_cache_lookups_total",
			Help: "Score cache lookups, by cache name and hit/miss",
		},
		[]string{"cache", "result"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kith_score_cache_evictions_total",
			Help: "Entries evicted from score caches, by cache name and reason",
		},
		[]string{"cache", "reason"},
	)

	DecksBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kith_decks_built_total",
			Help: "Deck builds, by outcome (created, extended, existing)",
		},
		[]string{"outcome"},
	)

	CardsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kith_deck_cards_created_total",
			Help: "Deck card rows written",
		},
	)

	// Archives counts per-date archival attempts by result.
	Archives = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kith_deck_archives_total",
			Help: "Deck archival attempts, by result",
		},
		[]string{"result"},
	)
)
