package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RetentionPolicy bounds how long audit entries are kept.
type RetentionPolicy struct {
	// MaxAge is how long entries live. Zero disables sweeping.
	MaxAge time.Duration
	// Schedule is a cron expression; defaults to daily at 03:00.
	Schedule string
}

// Sweeper deletes expired audit entries on a cron schedule.
type Sweeper struct {
	recorder *DBRecorder
	policy   RetentionPolicy
	log      logrus.FieldLogger
	cron     *cron.Cron
}

func NewSweeper(recorder *DBRecorder, policy RetentionPolicy, log logrus.FieldLogger) *Sweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if policy.Schedule == "" {
		policy.Schedule = "0 3 * * *"
	}
	return &Sweeper{recorder: recorder, policy: policy, log: log}
}

// SweepOnce runs a single retention pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	if s.policy.MaxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-s.policy.MaxAge)
	n, err := s.recorder.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithFields(logrus.Fields{
			"removed": n,
			"cutoff":  cutoff,
		}).Info("swept expired audit entries")
	}
	return n, nil
}

// Start schedules periodic sweeps. It is a no-op when retention is
// disabled.
func (s *Sweeper) Start() error {
	if s.policy.MaxAge <= 0 {
		return nil
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.policy.Schedule, func() {
		if _, err := s.SweepOnce(context.Background()); err != nil {
			s.log.WithError(err).Warn("audit retention sweep failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduled sweeps and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
