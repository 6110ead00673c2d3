// Package scheduler triggers discovery cycles on an interval and exposes the
// manual entry points. Run exclusivity is a lease in the durable store, not
// a process-local flag, so multiple instances cannot start overlapping runs.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// ErrRunActive is returned when another process already holds the run lease.
var ErrRunActive = errors.New("a discovery run is already active")

type Pipeline interface {
	Process(ctx context.Context) error
	Evaluate(ctx context.Context) error
	Run(ctx context.Context) error
	Reindex(ctx context.Context) error
}

type Lease interface {
	AcquireLease(ctx context.Context, holder string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, holder string) error
}

type Scheduler struct {
	Pipeline Pipeline
	Lease    Lease
	Interval time.Duration
	// RebuildInterval paces index-only refreshes between full cycles. The
	// index is process-local, so these run without the lease.
	RebuildInterval time.Duration
	LeaseTTL        time.Duration

	holder string
}

func New(p Pipeline, lease Lease, interval, rebuildInterval time.Duration) *Scheduler {
	if rebuildInterval <= 0 {
		rebuildInterval = interval
	}
	return &Scheduler{
		Pipeline:        p,
		Lease:           lease,
		Interval:        interval,
		RebuildInterval: rebuildInterval,
		// A lease outliving its run only delays the next cycle, so size it
		// generously relative to expected run time.
		LeaseTTL: 2 * time.Hour,
		holder:   uuid.New().String(),
	}
}

// Start runs full cycles on the interval and index rebuilds on their own
// faster interval, until the context is cancelled. Blocks; callers run it in
// a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	rebuild := time.NewTicker(s.RebuildInterval)
	defer rebuild.Stop()

	log.Printf("Scheduler started: full discovery cycle every %s, index rebuild every %s",
		s.Interval, s.RebuildInterval)
	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped")
			return
		case <-ticker.C:
			if err := s.TriggerRun(ctx); err != nil {
				if errors.Is(err, ErrRunActive) {
					log.Println("Skipping scheduled cycle: run lease held elsewhere")
					continue
				}
				log.Printf("Scheduled discovery cycle failed: %v", err)
			}
		case <-rebuild.C:
			if err := s.Pipeline.Reindex(ctx); err != nil {
				log.Printf("Scheduled index rebuild failed: %v", err)
			}
		}
	}
}

// TriggerRun executes a full process-and-evaluate cycle under the lease.
func (s *Scheduler) TriggerRun(ctx context.Context) error {
	return s.withLease(ctx, s.Pipeline.Run)
}

// TriggerProcess refreshes candidates and heuristics without the judge.
func (s *Scheduler) TriggerProcess(ctx context.Context) error {
	return s.withLease(ctx, s.Pipeline.Process)
}

// TriggerEvaluate re-scores existing eligible candidates without generation.
func (s *Scheduler) TriggerEvaluate(ctx context.Context) error {
	return s.withLease(ctx, s.Pipeline.Evaluate)
}

func (s *Scheduler) withLease(ctx context.Context, fn func(context.Context) error) error {
	ok, err := s.Lease.AcquireLease(ctx, s.holder, s.LeaseTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRunActive
	}
	defer func() {
		if err := s.Lease.ReleaseLease(context.WithoutCancel(ctx), s.holder); err != nil {
			log.Printf("Failed to release run lease: %v", err)
		}
	}()

	return fn(ctx)
}
