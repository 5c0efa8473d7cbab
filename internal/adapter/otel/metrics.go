package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "concord"

// Metrics holds all Concord metric instruments.
type Metrics struct {
	ProposalsSubmitted  metric.Int64Counter
	EvaluationsRecorded metric.Int64Counter
	EvaluationsSkipped  metric.Int64Counter
	DecisionsFinalized  metric.Int64Counter
	LedgerAppends       metric.Int64Counter
	ScoringDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ProposalsSubmitted, err = meter.Int64Counter("concord.proposals.submitted",
		metric.WithDescription("Number of proposals submitted"))
	if err != nil {
		return nil, err
	}

	m.EvaluationsRecorded, err = meter.Int64Counter("concord.evaluations.recorded",
		metric.WithDescription("Number of agent evaluations recorded"))
	if err != nil {
		return nil, err
	}

	m.EvaluationsSkipped, err = meter.Int64Counter("concord.evaluations.skipped",
		metric.WithDescription("Number of agent evaluations skipped on error or timeout"))
	if err != nil {
		return nil, err
	}

	m.DecisionsFinalized, err = meter.Int64Counter("concord.decisions.finalized",
		metric.WithDescription("Number of decisions reaching a terminal state"))
	if err != nil {
		return nil, err
	}

	m.LedgerAppends, err = meter.Int64Counter("concord.ledger.appends",
		metric.WithDescription("Number of audit ledger entries appended"))
	if err != nil {
		return nil, err
	}

	m.ScoringDuration, err = meter.Float64Histogram("concord.scoring.duration_seconds",
		metric.WithDescription("End-to-end dispatch-to-score duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
