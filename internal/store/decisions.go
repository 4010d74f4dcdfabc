package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/talentbase/qualifier/internal/types"
)

const decisionsSchema = `
CREATE TABLE IF NOT EXISTS candidate_decisions (
	candidate_id     UUID PRIMARY KEY,
	job_id           UUID NOT NULL,
	display_name     TEXT NOT NULL,
	stage            TEXT NOT NULL,
	overall_match    INTEGER NOT NULL,
	technical_skills INTEGER NOT NULL,
	experience       INTEGER NOT NULL,
	cultural_fit     INTEGER NOT NULL,
	summary          TEXT NOT NULL,
	reasoning        TEXT NOT NULL,
	decided_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidate_decisions_job
	ON candidate_decisions (job_id, decided_at DESC);
`

// DecisionStore persists the terminal artifacts of a qualification run.
type DecisionStore struct {
	db *DB
}

// NewDecisionStore wraps a DB.
func NewDecisionStore(db *DB) *DecisionStore {
	return &DecisionStore{db: db}
}

// EnsureSchema creates the decisions table if missing.
func (s *DecisionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.pool.Exec(ctx, decisionsSchema); err != nil {
		return fmt.Errorf("failed to ensure decisions schema: %w", err)
	}
	return nil
}

// SaveDecisions stores one run's decisions. Display names come from the
// run's profiles, keyed by candidate.
func (s *DecisionStore) SaveDecisions(ctx context.Context, jobID uuid.UUID, names map[uuid.UUID]string, decisions []types.CandidateDecision) error {
	for _, d := range decisions {
		name := names[d.CandidateID]
		if name == "" {
			name = "Unknown Candidate"
		}
		_, err := s.db.pool.Exec(ctx,
			`INSERT INTO candidate_decisions
			 (candidate_id, job_id, display_name, stage, overall_match,
			  technical_skills, experience, cultural_fit, summary, reasoning, decided_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			d.CandidateID, jobID, name, d.Stage, d.Score.OverallMatch,
			d.Score.TechnicalSkills, d.Score.Experience, d.Score.CulturalFit,
			d.Score.Summary, d.Score.Reasoning, d.DecidedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save decision for candidate %s: %w", d.CandidateID, err)
		}
	}
	return nil
}

// ListDecisions returns a job's decisions, most recent first.
func (s *DecisionStore) ListDecisions(ctx context.Context, jobID uuid.UUID, limit int) ([]types.CandidateDecision, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.pool.Query(ctx,
		`SELECT candidate_id, stage, overall_match, technical_skills,
		        experience, cultural_fit, summary, reasoning, decided_at
		 FROM candidate_decisions
		 WHERE job_id = $1
		 ORDER BY decided_at DESC
		 LIMIT $2`,
		jobID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []types.CandidateDecision
	for rows.Next() {
		var d types.CandidateDecision
		if err := rows.Scan(&d.CandidateID, &d.Stage, &d.Score.OverallMatch,
			&d.Score.TechnicalSkills, &d.Score.Experience, &d.Score.CulturalFit,
			&d.Score.Summary, &d.Score.Reasoning, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Score.CandidateID = d.CandidateID
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read decisions: %w", err)
	}
	return out, nil
}
