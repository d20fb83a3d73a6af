// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkflowsCreated counts created approval workflows by threshold name.
	WorkflowsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_workflows_created_total",
		Help: "Approval workflows created, labeled by resolved threshold.",
	}, []string{"threshold"})

	// WorkflowsCompleted counts terminal workflows by outcome.
	WorkflowsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_workflows_completed_total",
		Help: "Approval workflows reaching a terminal status, labeled by outcome.",
	}, []string{"outcome"})

	// ResponsesRecorded counts approver responses by decision.
	ResponsesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_responses_total",
		Help: "Approver responses recorded, labeled by decision.",
	}, []string{"decision"})

	// OverdueStages gauges how many current stages are past their deadline.
	OverdueStages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "approval_overdue_stages",
		Help: "Current approval stages past their maximum approval time.",
	})

	// HTTPDuration observes request latency by route and method.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration by route, method and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)
