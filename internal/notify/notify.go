// Package notify flags invite-eligible candidates to the notification
// collaborator. The pipeline only signals eligibility; delivering mail is the
// collaborator's job.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/talentbase/qualifier/internal/types"
)

// Notifier receives one event per candidate whose decision stage is invited.
type Notifier interface {
	InviteEligible(ctx context.Context, job types.JobContext, decision types.CandidateDecision) error
}

// LogNotifier records eligibility events without sending anything.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier returns a Notifier that only logs.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

// InviteEligible logs the event.
func (n *LogNotifier) InviteEligible(ctx context.Context, job types.JobContext, decision types.CandidateDecision) error {
	n.log.Info("candidate eligible for interview invite",
		zap.String("job_id", job.JobID.String()),
		zap.String("candidate_id", decision.CandidateID.String()),
		zap.Int("overall_match", decision.Score.OverallMatch))
	return nil
}
