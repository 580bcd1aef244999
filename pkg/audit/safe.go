package audit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var recordFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "iamcore_audit_record_failures_total",
	Help: "Audit entries that could not be persisted.",
})

// SafeRecorder wraps a Recorder so that audit failures never break the
// operation being audited. Failures are logged and counted instead.
type SafeRecorder struct {
	inner Recorder
	log   logrus.FieldLogger
}

func NewSafeRecorder(inner Recorder, log logrus.FieldLogger) *SafeRecorder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SafeRecorder{inner: inner, log: log}
}

// Record always returns nil.
func (s *SafeRecorder) Record(ctx context.Context, e *Entry) error {
	if err := s.inner.Record(ctx, e); err != nil {
		recordFailures.Inc()
		s.log.WithError(err).WithFields(logrus.Fields{
			"action":      e.Action,
			"target_type": e.TargetType,
			"target_id":   e.TargetID,
		}).Warn("failed to record audit entry")
	}
	return nil
}
