// Package policy reduces a candidate's overall match score to a lifecycle
// stage using a job's configurable thresholds.
package policy

import "github.com/talentbase/qualifier/internal/types"

// Decide maps an overall match score to a stage. The function is pure and
// total for any threshold values and any score.
//
// The rules are evaluated strictly in order: score matching is the floor for
// being recorded at all, then auto-shortlist, then auto-denied, then email
// invite. Upper-bound comparisons are inclusive and lower-bound ones
// exclusive, so a score exactly on a threshold takes the more favorable
// branch at that boundary.
//
// The four knobs are independent. Nothing prevents a job from configuring,
// say, autoDenied above autoShortlist; the evaluation order resolves such
// overlaps deterministically rather than rejecting them.
func Decide(thresholds types.ThresholdSet, overallMatch int) types.Stage {
	switch {
	case overallMatch < thresholds.ScoreMatching:
		return types.StageDenied
	case overallMatch >= thresholds.AutoShortlist:
		return types.StageShortlisted
	case overallMatch < thresholds.AutoDenied:
		return types.StageDenied
	case overallMatch >= thresholds.EmailInvite:
		return types.StageInvited
	default:
		return types.StageQualified
	}
}
