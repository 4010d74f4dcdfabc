package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/talentbase/qualifier/internal/types"
)

// ErrJobNotFound is returned when the requested job does not exist.
var ErrJobNotFound = errors.New("store: job not found")

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                       UUID PRIMARY KEY,
	title                    TEXT NOT NULL,
	description              TEXT NOT NULL DEFAULT '',
	requirements             TEXT NOT NULL DEFAULT '',
	skills                   TEXT[] NOT NULL DEFAULT '{}',
	threshold_score_matching INTEGER,
	threshold_email_invite   INTEGER,
	threshold_auto_shortlist INTEGER,
	threshold_auto_denied    INTEGER,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// JobStore reads job contexts for the pipeline. Jobs are written by the
// posting-management collaborator; the pipeline treats them as read-only.
type JobStore struct {
	db *DB
}

// NewJobStore wraps a DB.
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

// EnsureSchema creates the jobs table if missing.
func (s *JobStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.pool.Exec(ctx, jobsSchema); err != nil {
		return fmt.Errorf("failed to ensure jobs schema: %w", err)
	}
	return nil
}

// GetJob loads one job. NULL threshold columns fall back to the documented
// defaults so older rows keep working after thresholds became configurable.
func (s *JobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*types.JobContext, error) {
	var (
		job           types.JobContext
		scoreMatching *int
		emailInvite   *int
		autoShortlist *int
		autoDenied    *int
	)

	err := s.db.pool.QueryRow(ctx,
		`SELECT id, title, description, requirements, skills,
		        threshold_score_matching, threshold_email_invite,
		        threshold_auto_shortlist, threshold_auto_denied
		 FROM jobs WHERE id = $1`,
		jobID,
	).Scan(&job.JobID, &job.Title, &job.Description, &job.Requirements, &job.Skills,
		&scoreMatching, &emailInvite, &autoShortlist, &autoDenied)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	job.Thresholds = types.DefaultThresholds()
	if scoreMatching != nil {
		job.Thresholds.ScoreMatching = *scoreMatching
	}
	if emailInvite != nil {
		job.Thresholds.EmailInvite = *emailInvite
	}
	if autoShortlist != nil {
		job.Thresholds.AutoShortlist = *autoShortlist
	}
	if autoDenied != nil {
		job.Thresholds.AutoDenied = *autoDenied
	}

	return &job, nil
}
