// Package pipeline composes the qualification run: reserve credits once up
// front, score the batch, reduce scores to stage decisions, then commit or
// release the reservation so an organization is never partially charged.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentbase/qualifier/internal/batch"
	"github.com/talentbase/qualifier/internal/credits"
	"github.com/talentbase/qualifier/internal/extraction"
	"github.com/talentbase/qualifier/internal/notify"
	"github.com/talentbase/qualifier/internal/policy"
	"github.com/talentbase/qualifier/internal/profile"
	"github.com/talentbase/qualifier/internal/types"
)

// Document is one uploaded candidate file.
type Document struct {
	Name        string // file name, used in logs and as a display-name fallback
	DisplayName string // candidate name when the caller knows it
	Data        []byte
	MIMEType    string
}

// Progress display bands: extraction and reservation fill the first tenth,
// scoring runs to 80, decisioning and persistence take the rest.
const (
	progressSetupDone   = 10
	progressScoringDone = 80
)

// DecisionSink persists a run's decisions.
type DecisionSink interface {
	SaveDecisions(ctx context.Context, jobID uuid.UUID, names map[uuid.UUID]string, decisions []types.CandidateDecision) error
}

// Config assembles an Orchestrator. Extractor, Score and Ledger are required;
// the rest defaults to no-ops or standard pacing.
type Config struct {
	Extractor  extraction.Extractor
	Score      batch.ScoreFunc
	Ledger     credits.Ledger
	Decisions  DecisionSink    // optional
	Notifier   notify.Notifier // optional
	Log        *zap.Logger
	ChunkSize  int
	ChunkDelay time.Duration     // zero means the default pacing; negative disables the delay
	OnProgress func(percent int) // optional 0-100 display callback
}

// Orchestrator runs qualification batches.
type Orchestrator struct {
	cfg      Config
	log      *zap.Logger
	validate *validator.Validate
}

// New validates the wiring and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("pipeline: extractor is required")
	}
	if cfg.Score == nil {
		return nil, fmt.Errorf("pipeline: score function is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("pipeline: credit ledger is required")
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = batch.DefaultChunkSize
	}
	switch {
	case cfg.ChunkDelay == 0:
		cfg.ChunkDelay = batch.DefaultChunkDelay
	case cfg.ChunkDelay < 0:
		cfg.ChunkDelay = 0
	}

	return &Orchestrator{
		cfg:      cfg,
		log:      log,
		validate: validator.New(),
	}, nil
}

// Qualify scores every extractable document against the job and returns one
// decision per scored candidate, in input order. Credits are reserved before
// any scoring call and either committed in full or released in full: callers
// see a complete decision list or a single upfront rejection, never a
// partially charged batch.
//
// When decision persistence fails the credits are already committed, so the
// decisions are returned together with the error for the caller to retry.
func (o *Orchestrator) Qualify(ctx context.Context, orgID uuid.UUID, job types.JobContext, documents []Document) ([]types.CandidateDecision, error) {
	if err := o.validate.Struct(job); err != nil {
		return nil, fmt.Errorf("pipeline: invalid job context: %w", err)
	}

	o.report(0)

	// Extraction and normalization are free: candidates whose documents
	// cannot be read are skipped before anything is charged.
	profiles := make([]types.CandidateProfile, 0, len(documents))
	names := make(map[uuid.UUID]string, len(documents))
	for _, doc := range documents {
		text, err := o.cfg.Extractor.ExtractText(ctx, doc.Name, doc.Data, doc.MIMEType)
		if err != nil {
			o.log.Warn("skipping candidate, extraction failed",
				zap.String("document", doc.Name),
				zap.Error(err))
			continue
		}

		displayName := doc.DisplayName
		if displayName == "" {
			displayName = doc.Name
		}
		p, err := profile.FromText([]byte(text), displayName)
		if err != nil {
			o.log.Warn("skipping candidate, invalid input",
				zap.String("document", doc.Name),
				zap.Error(err))
			continue
		}
		profiles = append(profiles, *p)
		names[p.CandidateID] = p.DisplayName
	}

	if len(profiles) == 0 {
		o.report(100)
		return []types.CandidateDecision{}, nil
	}

	reservation, err := o.cfg.Ledger.Reserve(ctx, orgID, credits.CreditCVProcessing, len(profiles))
	if err != nil {
		return nil, fmt.Errorf("pipeline: cannot start batch of %d: %w", len(profiles), err)
	}
	o.report(progressSetupDone)

	scheduler := batch.New(
		batch.WithChunkSize(o.cfg.ChunkSize),
		batch.WithChunkDelay(o.cfg.ChunkDelay),
		batch.WithLogger(o.log),
		batch.WithProgress(func(p batch.Progress) {
			span := progressScoringDone - progressSetupDone
			o.report(progressSetupDone + int(float64(span)*p.Fraction()))
		}),
	)

	results, err := scheduler.Run(ctx, profiles, job, o.cfg.Score)
	if err != nil {
		// Nothing was committed; refund the whole reservation even though
		// the run context is already dead.
		if rerr := o.cfg.Ledger.Release(context.WithoutCancel(ctx), reservation); rerr != nil {
			o.log.Error("failed to release reservation after aborted batch",
				zap.String("reservation_id", reservation.ID.String()),
				zap.Error(rerr))
		}
		return nil, fmt.Errorf("pipeline: batch aborted: %w", err)
	}

	decidedAt := time.Now().UTC()
	decisions := make([]types.CandidateDecision, len(results))
	for i, result := range results {
		decisions[i] = types.CandidateDecision{
			CandidateID: result.CandidateID,
			Score:       result,
			Stage:       policy.Decide(job.Thresholds, result.OverallMatch),
			DecidedAt:   decidedAt,
		}
	}

	// Scoring was attempted for every profile; fallback results still
	// consumed a processing slot, so the reservation is consumed in full.
	if err := o.cfg.Ledger.Commit(context.WithoutCancel(ctx), reservation); err != nil {
		return nil, fmt.Errorf("pipeline: failed to commit credits: %w", err)
	}
	o.report(progressScoringDone + 5)

	if o.cfg.Decisions != nil {
		if err := o.cfg.Decisions.SaveDecisions(ctx, job.JobID, names, decisions); err != nil {
			return decisions, fmt.Errorf("pipeline: decisions computed but not persisted: %w", err)
		}
	}

	if o.cfg.Notifier != nil {
		for _, decision := range decisions {
			if decision.Stage != types.StageInvited {
				continue
			}
			if err := o.cfg.Notifier.InviteEligible(ctx, job, decision); err != nil {
				o.log.Warn("notifier rejected invite event",
					zap.String("candidate_id", decision.CandidateID.String()),
					zap.Error(err))
			}
		}
	}

	o.report(100)
	o.log.Info("qualification batch complete",
		zap.String("org_id", orgID.String()),
		zap.String("job_id", job.JobID.String()),
		zap.Int("candidates", len(decisions)))
	return decisions, nil
}

func (o *Orchestrator) report(percent int) {
	if o.cfg.OnProgress != nil {
		o.cfg.OnProgress(percent)
	}
}
