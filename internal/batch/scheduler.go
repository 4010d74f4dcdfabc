// Package batch drives bounded-concurrency scoring over a list of candidates.
// Chunks run strictly sequentially to honor the external rate ceiling; within
// a chunk every call runs concurrently and writes to its own output slot, so
// output order always matches input order.
package batch

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/talentbase/qualifier/internal/types"
)

// Default pacing: chunks of five with a half-second gap keeps a batch under
// typical per-minute ceilings of the scoring capability.
const (
	DefaultChunkSize  = 5
	DefaultChunkDelay = 500 * time.Millisecond
)

// ScoreFunc scores one candidate against the job. Implementations never
// return an error; failures are absorbed into fallback results.
type ScoreFunc func(ctx context.Context, profile types.CandidateProfile, job types.JobContext) types.ScoreResult

// Progress reports completion after each chunk.
type Progress struct {
	Processed int
	Total     int
}

// Fraction returns completion in [0,1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Processed) / float64(p.Total)
}

// Scheduler runs scoring batches. The zero value is not usable; construct
// with New.
type Scheduler struct {
	chunkSize  int
	chunkDelay time.Duration
	onProgress func(Progress)
	log        *zap.Logger
}

// Option tunes a Scheduler.
type Option func(*Scheduler)

// WithChunkSize sets the per-chunk concurrency limit.
func WithChunkSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithChunkDelay sets the pause inserted between chunks.
func WithChunkDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.chunkDelay = d
		}
	}
}

// WithProgress registers a callback invoked after every chunk.
func WithProgress(fn func(Progress)) Option {
	return func(s *Scheduler) { s.onProgress = fn }
}

// WithLogger attaches a logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// New builds a Scheduler with the default pacing.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		chunkSize:  DefaultChunkSize,
		chunkDelay: DefaultChunkDelay,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scores every profile against the job and returns one result per input
// in input order. Item failures are absorbed by the score function, so the
// only error Run returns is cancellation, checked at chunk boundaries.
func (s *Scheduler) Run(ctx context.Context, profiles []types.CandidateProfile, job types.JobContext, score ScoreFunc) ([]types.ScoreResult, error) {
	results := make([]types.ScoreResult, len(profiles))
	if len(profiles) == 0 {
		return results, nil
	}

	total := len(profiles)
	for start := 0; start < total; start += s.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + s.chunkSize
		if end > total {
			end = total
		}

		g, chunkCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			idx := i
			g.Go(func() error {
				results[idx] = score(chunkCtx, profiles[idx], job)
				return nil
			})
		}
		// Score functions never fail, so Wait only gathers the chunk.
		_ = g.Wait()

		s.log.Debug("chunk complete",
			zap.Int("processed", end),
			zap.Int("total", total))
		if s.onProgress != nil {
			s.onProgress(Progress{Processed: end, Total: total})
		}

		if end < total && s.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.chunkDelay):
			}
		}
	}

	return results, nil
}
