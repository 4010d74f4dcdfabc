// Package scoring produces one ScoreResult per (candidate, job) pair by
// invoking the external scoring capability, with defensive parsing and
// deterministic fallbacks. A Scorer never returns an error: per-candidate
// failures become low-confidence results so a batch of N candidates always
// yields N scores.
package scoring

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/talentbase/qualifier/internal/llm"
	"github.com/talentbase/qualifier/internal/prompts"
	"github.com/talentbase/qualifier/internal/types"
)

//go:embed score_result.schema.json
var scoreResultSchema string

// Rubric selects how harsh the scoring prompt is. This is configuration, not
// code duplication: all three share one prompt-building path.
type Rubric string

// Supported rubric strictness levels.
const (
	RubricLenient  Rubric = "lenient"
	RubricStandard Rubric = "standard"
	RubricStrict   Rubric = "strict"
)

// Placeholder text substituted when the capability omits a text field.
const (
	placeholderSummary   = "No summary provided."
	placeholderReasoning = "No reasoning provided."
)

// Summaries carried by fallback results. Callers can recognize these entries
// by string; they are otherwise shaped like normal results.
const (
	InsufficientProfileSummary = "Insufficient profile information to assess this candidate."
	TechnicalFailureSummary    = "Scoring failed due to a technical error; candidate was not assessed."
)

// maxProfileChars bounds how much profile text goes into one prompt.
const maxProfileChars = 12000

// Config tunes one Scorer.
type Config struct {
	Tier        llm.ModelTier // model tier used for scoring calls
	Rubric      Rubric        // prompt strictness
	CallTimeout time.Duration // per-call timeout on the external capability
	MinChars    int           // degenerate-input floor, in runes
	MinWords    int           // degenerate-input floor, in words
	Seed        int64         // fallback jitter seed; 0 means time-based
}

// DefaultConfig returns the production scoring configuration.
func DefaultConfig() Config {
	return Config{
		Tier:        llm.TierLite,
		Rubric:      RubricStandard,
		CallTimeout: 45 * time.Second,
		MinChars:    20,
		MinWords:    5,
	}
}

// Scorer wraps the external scoring capability for single candidates.
type Scorer struct {
	client llm.Client
	cfg    Config
	log    *zap.Logger
	schema *gojsonschema.Schema

	mu  sync.Mutex
	rng *rand.Rand

	calls int64 // external invocations, for tests and logging
}

// New builds a Scorer around an injected capability client.
func New(client llm.Client, cfg Config, log *zap.Logger) (*Scorer, error) {
	if client == nil {
		return nil, fmt.Errorf("scoring: capability client is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Tier == "" {
		cfg.Tier = llm.TierLite
	}
	if cfg.Rubric == "" {
		cfg.Rubric = RubricStandard
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = DefaultConfig().MinChars
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = DefaultConfig().MinWords
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(scoreResultSchema))
	if err != nil {
		return nil, fmt.Errorf("scoring: failed to compile response schema: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Scorer{
		client: client,
		cfg:    cfg,
		log:    log,
		schema: schema,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// Score produces a ScoreResult for one candidate against one job. It never
// returns an error: degenerate input short-circuits to a low deterministic
// band before any external call, and capability failures map to an all-zero
// result with a recognizable summary.
func (s *Scorer) Score(ctx context.Context, profile types.CandidateProfile, job types.JobContext) types.ScoreResult {
	if profile.CharCount < s.cfg.MinChars || profile.WordCount < s.cfg.MinWords {
		s.log.Debug("profile below scoring floor, skipping external call",
			zap.String("candidate_id", profile.CandidateID.String()),
			zap.Int("chars", profile.CharCount),
			zap.Int("words", profile.WordCount))
		return s.insufficientResult(profile)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	raw, err := s.client.GenerateJSON(callCtx, s.buildPrompt(profile, job), s.cfg.Tier)
	if err != nil {
		s.log.Warn("scoring call failed",
			zap.String("candidate_id", profile.CandidateID.String()),
			zap.Error(err))
		return failureResult(profile.CandidateID)
	}

	result, err := s.parseResponse(profile.CandidateID, raw)
	if err != nil {
		s.log.Warn("scoring response rejected",
			zap.String("candidate_id", profile.CandidateID.String()),
			zap.Error(err))
		return failureResult(profile.CandidateID)
	}
	return result
}

// Calls reports how many external capability invocations this Scorer made.
func (s *Scorer) Calls() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// scoreResponse mirrors the capability's JSON contract. Every field may be
// absent; the external capability is not a typed boundary.
type scoreResponse struct {
	OverallMatch    *float64 `json:"overallMatch"`
	Score           *float64 `json:"score"` // alternate key some model replies use
	TechnicalSkills *float64 `json:"technicalSkills"`
	Experience      *float64 `json:"experience"`
	CulturalFit     *float64 `json:"culturalFit"`
	Summary         *string  `json:"summary"`
	Reasoning       *string  `json:"reasoning"`
}

func (s *Scorer) parseResponse(candidateID uuid.UUID, raw string) (types.ScoreResult, error) {
	raw = llm.CleanJSONBlock(raw)

	check, err := s.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return types.ScoreResult{}, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if !check.Valid() {
		details := make([]string, 0, len(check.Errors()))
		for _, desc := range check.Errors() {
			details = append(details, desc.String())
		}
		return types.ScoreResult{}, fmt.Errorf("response violates score schema: %s", strings.Join(details, "; "))
	}

	var resp scoreResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return types.ScoreResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	overall := resp.OverallMatch
	if overall == nil {
		overall = resp.Score
	}

	return types.ScoreResult{
		CandidateID:     candidateID,
		OverallMatch:    clampScore(overall),
		TechnicalSkills: clampScore(resp.TechnicalSkills),
		Experience:      clampScore(resp.Experience),
		CulturalFit:     clampScore(resp.CulturalFit),
		Summary:         textOrPlaceholder(resp.Summary, placeholderSummary),
		Reasoning:       textOrPlaceholder(resp.Reasoning, placeholderReasoning),
	}, nil
}

func (s *Scorer) buildPrompt(profile types.CandidateProfile, job types.JobContext) string {
	skills := strings.Join(job.Skills, ", ")
	if skills == "" {
		skills = "Not specified"
	}
	requirements := strings.TrimSpace(job.Requirements)
	if requirements == "" {
		requirements = "Not specified"
	}
	description := strings.TrimSpace(job.Description)
	if description == "" {
		description = "Not specified"
	}

	text := strings.ToValidUTF8(profile.RawText, "�")
	if len(text) > maxProfileChars {
		text = text[:maxProfileChars]
	}

	template := prompts.MustGet("scoring.json", "score-candidate."+string(s.cfg.Rubric))
	return prompts.Format(template, map[string]string{
		"JobTitle":       job.Title,
		"JobDescription": description,
		"Requirements":   requirements,
		"Skills":         skills,
		"ProfileText":    text,
	})
}

// clampScore rounds and clamps one numeric field into [0,100]. Missing or
// non-finite values become 0.
func clampScore(v *float64) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	n := int(math.Round(*v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func textOrPlaceholder(v *string, placeholder string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return placeholder
	}
	return *v
}

