package scoring

import (
	"github.com/google/uuid"

	"github.com/talentbase/qualifier/internal/types"
)

// Fallback band bounds for degenerate profiles. The jitter keeps near-empty
// uploads from all landing on one suspicious constant while staying far below
// any plausible qualification threshold.
const (
	degenerateSkillMin = 1
	degenerateSkillMax = 15
	degenerateFitMax   = 9
	degenerateOverall  = 12
)

// insufficientResult returns the low-band result for a profile too thin to
// assess. Jitter comes from the Scorer's seeded source so tests can assert
// the band.
func (s *Scorer) insufficientResult(profile types.CandidateProfile) types.ScoreResult {
	s.mu.Lock()
	technical := degenerateSkillMin + s.rng.Intn(degenerateSkillMax-degenerateSkillMin+1)
	experience := degenerateSkillMin + s.rng.Intn(degenerateSkillMax-degenerateSkillMin+1)
	fit := s.rng.Intn(degenerateFitMax + 1)
	overall := 1 + s.rng.Intn(degenerateOverall)
	s.mu.Unlock()

	return types.ScoreResult{
		CandidateID:     profile.CandidateID,
		OverallMatch:    overall,
		TechnicalSkills: technical,
		Experience:      experience,
		CulturalFit:     fit,
		Summary:         InsufficientProfileSummary,
		Reasoning:       "The profile contains too little text for a meaningful assessment.",
	}
}

// failureResult is the all-zero result substituted when the external
// capability errors or returns an unusable response.
func failureResult(candidateID uuid.UUID) types.ScoreResult {
	return types.ScoreResult{
		CandidateID: candidateID,
		Summary:     TechnicalFailureSummary,
		Reasoning:   placeholderReasoning,
	}
}
