// Package types contains the shared data model for the applicant
// qualification pipeline.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a candidate's position in the qualification lifecycle.
type Stage string

// Lifecycle stages. Screening is the implicit initial state; the policy
// engine moves every scored candidate into exactly one of the other four.
const (
	StageScreening   Stage = "screening"
	StageDenied      Stage = "denied"
	StageQualified   Stage = "qualified"
	StageShortlisted Stage = "shortlisted"
	StageInvited     Stage = "invited"
)

// CandidateProfile is the normalized form of one uploaded candidate
// document. Immutable once built; owned by the pipeline run that created it.
type CandidateProfile struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	DisplayName string    `json:"display_name"`
	RawText     string    `json:"raw_text"`
	WordCount   int       `json:"word_count"`
	CharCount   int       `json:"char_count"`
}

// ThresholdSet holds the four per-job cut points on the 0-100 overall match
// score. The knobs are independent: no ordering among them is enforced, the
// policy evaluation order alone resolves overlapping configurations.
type ThresholdSet struct {
	ScoreMatching int `json:"score_matching" validate:"min=0,max=100"`
	EmailInvite   int `json:"email_invite" validate:"min=0,max=100"`
	AutoShortlist int `json:"auto_shortlist" validate:"min=0,max=100"`
	AutoDenied    int `json:"auto_denied" validate:"min=0,max=100"`
}

// Default threshold values applied when a job does not configure its own.
const (
	DefaultScoreMatching = 30
	DefaultEmailInvite   = 30
	DefaultAutoShortlist = 70
	DefaultAutoDenied    = 30
)

// DefaultThresholds returns the documented default cut points.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		ScoreMatching: DefaultScoreMatching,
		EmailInvite:   DefaultEmailInvite,
		AutoShortlist: DefaultAutoShortlist,
		AutoDenied:    DefaultAutoDenied,
	}
}

// JobContext is the job definition a batch of candidates is scored against.
// Supplied by the job store; read-only to the pipeline.
type JobContext struct {
	JobID        uuid.UUID    `json:"job_id"`
	Title        string       `json:"title" validate:"required"`
	Description  string       `json:"description"`
	Requirements string       `json:"requirements"`
	Skills       []string     `json:"skills"`
	Thresholds   ThresholdSet `json:"thresholds"`
}

// ScoreResult is the multi-dimensional outcome of scoring one candidate
// against one job. All numeric fields are integers in [0,100]; the scoring
// client guarantees that before a result leaves it.
type ScoreResult struct {
	CandidateID     uuid.UUID `json:"candidate_id"`
	OverallMatch    int       `json:"overall_match"`
	TechnicalSkills int       `json:"technical_skills"`
	Experience      int       `json:"experience"`
	CulturalFit     int       `json:"cultural_fit"`
	Summary         string    `json:"summary"`
	Reasoning       string    `json:"reasoning"`
}

// CandidateDecision is the terminal artifact of the pipeline: one candidate's
// scores reduced to a lifecycle stage. Immutable.
type CandidateDecision struct {
	CandidateID uuid.UUID   `json:"candidate_id"`
	Score       ScoreResult `json:"score"`
	Stage       Stage       `json:"stage"`
	DecidedAt   time.Time   `json:"decided_at"`
}
