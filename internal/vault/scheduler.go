package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// pause between vault refreshes so one pass doesn't burst the LLM quota
const interVaultPause = 2 * time.Second

// Scheduler runs periodic refresh passes over every vault.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	onStart  bool
	log      *zap.Logger
	cron     *cron.Cron
}

func NewScheduler(svc *Service, interval time.Duration, refreshOnStartup bool, log *zap.Logger) *Scheduler {
	return &Scheduler{
		svc:      svc,
		interval: interval,
		onStart:  refreshOnStartup,
		log:      log,
	}
}

// cronLogger adapts zap to the cron logging interface.
type cronLogger struct{ log *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Start schedules the refresh loop. Overlapping passes are skipped, not
// queued. ctx bounds each pass.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid refresh interval %s", s.interval)
	}

	clog := cronLogger{log: s.log.Sugar()}
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(clog),
		cron.Recover(clog),
	))

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule vault refresh: %w", err)
	}
	s.cron.Start()

	if s.onStart {
		go s.RunOnce(ctx)
	}

	s.log.Info("vault scheduler started",
		zap.Duration("interval", s.interval),
		zap.Bool("refresh_on_startup", s.onStart),
	)
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce refreshes every vault sequentially with a short pause in between.
func (s *Scheduler) RunOnce(ctx context.Context) {
	vaults, err := s.svc.List(ctx)
	if err != nil {
		s.log.Error("vault refresh pass: list failed", zap.Error(err))
		return
	}

	var applied int
	for i, v := range vaults {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			select {
			case <-time.After(interVaultPause):
			case <-ctx.Done():
				return
			}
		}
		res, err := s.svc.Refresh(ctx, v.ID)
		if err != nil {
			s.log.Error("vault refresh failed", zap.Int64("vault_id", v.ID), zap.Error(err))
			continue
		}
		if res.Applied {
			applied++
		}
	}
	s.log.Info("vault refresh pass finished",
		zap.Int("vaults", len(vaults)),
		zap.Int("applied", applied),
	)
}
