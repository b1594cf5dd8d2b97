// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WizardStepsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_steps_completed_total",
			Help: "Total number of wizard steps completed",
		},
		[]string{"step"},
	)

	WizardValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_validation_failures_total",
			Help: "Total number of wizard step validation failures",
		},
		[]string{"step"},
	)

	ApplicationsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "applications_submitted_total",
			Help: "Total number of restaurant applications submitted",
		},
	)

	WorkflowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Total number of approval workflow transitions",
		},
		[]string{"from", "to"},
	)

	WorkflowTransitionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transition_conflicts_total",
			Help: "Total number of transitions rejected as illegal from current status",
		},
		[]string{"attempted"},
	)

	AutoApprovalSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_approval_sweeps_total",
			Help: "Outcomes of auto-approval sweep evaluations",
		},
		[]string{"outcome"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Total number of failed notification dispatches",
		},
		[]string{"event"},
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sweep_duration_seconds",
			Help: "Duration of batch sweeps in seconds",
		},
		[]string{"sweep"},
	)
)
