package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/config"
	"github.com/mamadbah2/vaccine-orders/internal/service/reporting"
)

// BatchExpirer marks batches past their expiry date.
type BatchExpirer interface {
	ExpireBatches(ctx context.Context, today time.Time) (int, error)
}

// DigestBuilder computes the daily inventory digest.
type DigestBuilder interface {
	InventoryDigest(ctx context.Context, today time.Time) (reporting.Digest, error)
}

// DigestSender delivers the digest text to operations.
type DigestSender interface {
	Enabled() bool
	SendDigest(ctx context.Context, text string) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron    *cron.Cron
	cfg     config.ReportingConfig
	expirer BatchExpirer
	digests DigestBuilder
	sender  DigestSender
	now     func() time.Time
	logger  *zap.Logger
}

// NewScheduler creates a new scheduler instance running in the configured timezone.
func NewScheduler(cfg config.ReportingConfig, expirer BatchExpirer, digests DigestBuilder, sender DigestSender, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		cfg:     cfg,
		expirer: expirer,
		digests: digests,
		sender:  sender,
		now:     func() time.Time { return time.Now().In(loc) },
		logger:  logger,
	}, nil
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("expiry_sweep", s.cfg.ExpirySweepSchedule),
		zap.String("digest", s.cfg.CronSchedule),
	)

	if _, err := s.cron.AddFunc(s.cfg.ExpirySweepSchedule, s.runExpirySweep); err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.runDigest); err != nil {
		return fmt.Errorf("schedule inventory digest: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runExpirySweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	_ = s.ExpirySweep(ctx)
}

func (s *Scheduler) runDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	_ = s.SendDigest(ctx)
}

// ExpirySweep marks every batch past its expiry date as expired.
func (s *Scheduler) ExpirySweep(ctx context.Context) error {
	n, err := s.expirer.ExpireBatches(ctx, s.now())
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return err
	}
	s.logger.Info("expiry sweep done", zap.Int("expired", n))
	return nil
}

// SendDigest builds today's digest and sends it when a recipient is configured.
func (s *Scheduler) SendDigest(ctx context.Context) error {
	digest, err := s.digests.InventoryDigest(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to generate inventory digest", zap.Error(err))
		return err
	}

	text := digest.Text()
	if s.sender == nil || !s.sender.Enabled() {
		s.logger.Info("inventory digest", zap.String("text", text))
		return nil
	}

	if err := s.sender.SendDigest(ctx, text); err != nil {
		s.logger.Error("failed to send inventory digest", zap.Error(err))
		return err
	}
	s.logger.Info("inventory digest sent",
		zap.Int("out_of_stock", len(digest.OutOfStock)),
		zap.Int("low_stock", len(digest.LowStock)),
		zap.Int("expiring", len(digest.Expiring)),
	)
	return nil
}
