// Package scheduler runs recurring maintenance jobs: per-platform score
// recomputation and domain verification.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/marbec/linkmesh/internal/pagerank"
	"github.com/marbec/linkmesh/internal/storage"
	"github.com/marbec/linkmesh/internal/verify"
)

// Scheduler owns the cron runner and the jobs it drives.
type Scheduler struct {
	db       *storage.DB
	engine   *pagerank.Engine
	verifier *verify.Verifier
	cron     *cron.Cron
	log      *zap.Logger

	// Cron expressions, standard five-field format.
	scoreSpec  string
	verifySpec string
}

// New creates a scheduler. scoreSpec and verifySpec are five-field cron
// expressions for the recomputation and verification jobs.
func New(db *storage.DB, engine *pagerank.Engine, verifier *verify.Verifier, scoreSpec, verifySpec string, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	return &Scheduler{
		db:         db,
		engine:     engine,
		verifier:   verifier,
		cron:       c,
		log:        log,
		scoreSpec:  scoreSpec,
		verifySpec: verifySpec,
	}
}

// Start registers the jobs and starts the cron runner. It returns once the
// runner is going; Stop shuts it down.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.scoreSpec, s.runScores); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.verifySpec, s.runVerify); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		zap.String("scores", s.scoreSpec),
		zap.String("verify", s.verifySpec))
	return nil
}

// Stop halts the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// runScores recomputes scores for every platform that has nodes. The engine's
// per-platform lock means an overlapping manual run just waits its turn.
func (s *Scheduler) runScores() {
	start := time.Now()
	platforms, err := s.db.Platforms()
	if err != nil {
		s.log.Error("listing platforms", zap.Error(err))
		return
	}

	for _, platform := range platforms {
		summary, err := s.engine.CalculateForPlatform(platform)
		if err != nil {
			s.log.Error("score recomputation failed",
				zap.String("platform", platform),
				zap.Error(err))
			continue
		}
		s.log.Info("scores recomputed",
			zap.String("platform", platform),
			zap.Int("nodes", summary.ScoresWritten),
			zap.Int("iterations", summary.Iterations),
			zap.Bool("converged", summary.Converged))
	}

	s.log.Info("score sweep done",
		zap.Int("platforms", len(platforms)),
		zap.Duration("took", time.Since(start)))
}

// runVerify sweeps the domain catalog.
func (s *Scheduler) runVerify() {
	start := time.Now()
	report, err := s.verifier.VerifyAll(context.Background())
	if err != nil {
		s.log.Error("domain verification failed", zap.Error(err))
		return
	}
	s.log.Info("domains verified",
		zap.Int("checked", report.Checked),
		zap.Int("alive", report.Alive),
		zap.Int("broken", report.Broken),
		zap.Duration("took", time.Since(start)))
}
