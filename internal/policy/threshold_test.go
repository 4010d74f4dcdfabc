package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talentbase/qualifier/internal/types"
)

func TestDecide_DefaultThresholds(t *testing.T) {
	defaults := types.DefaultThresholds()

	tests := []struct {
		name  string
		score int
		want  types.Stage
	}{
		{"well above shortlist", 85, types.StageShortlisted},
		{"exactly at shortlist", 70, types.StageShortlisted},
		{"below score matching floor", 20, types.StageDenied},
		{"between invite and shortlist", 50, types.StageInvited},
		{"at email invite boundary", 30, types.StageInvited},
		{"just above invite", 40, types.StageInvited},
		{"zero score", 0, types.StageDenied},
		{"perfect score", 100, types.StageShortlisted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(defaults, tt.score))
		})
	}
}

func TestDecide_QualifiedBand(t *testing.T) {
	// A gap between emailInvite and autoShortlist where no automatic action
	// fires leaves the candidate qualified for human review.
	thresholds := types.ThresholdSet{
		ScoreMatching: 30,
		EmailInvite:   60,
		AutoShortlist: 80,
		AutoDenied:    30,
	}

	assert.Equal(t, types.StageQualified, Decide(thresholds, 50))
	assert.Equal(t, types.StageInvited, Decide(thresholds, 60))
	assert.Equal(t, types.StageShortlisted, Decide(thresholds, 80))
	assert.Equal(t, types.StageDenied, Decide(thresholds, 29))
}

func TestDecide_AutoDeniedAboveFloor(t *testing.T) {
	thresholds := types.ThresholdSet{
		ScoreMatching: 10,
		EmailInvite:   50,
		AutoShortlist: 90,
		AutoDenied:    40,
	}

	// Passes the floor but falls below autoDenied.
	assert.Equal(t, types.StageDenied, Decide(thresholds, 25))
	// Exactly autoDenied is not "below" it, and meets emailInvite? No: 40 < 50.
	assert.Equal(t, types.StageQualified, Decide(thresholds, 40))
}

func TestDecide_UnorderedThresholds(t *testing.T) {
	// autoDenied above autoShortlist: the shortlist check runs first, so high
	// scores still shortlist and the band below shortlist denies.
	thresholds := types.ThresholdSet{
		ScoreMatching: 0,
		EmailInvite:   10,
		AutoShortlist: 50,
		AutoDenied:    80,
	}

	assert.Equal(t, types.StageShortlisted, Decide(thresholds, 90))
	assert.Equal(t, types.StageShortlisted, Decide(thresholds, 50))
	assert.Equal(t, types.StageDenied, Decide(thresholds, 49))
}

func TestDecide_TotalOverFullScoreRange(t *testing.T) {
	valid := map[types.Stage]bool{
		types.StageDenied:      true,
		types.StageQualified:   true,
		types.StageShortlisted: true,
		types.StageInvited:     true,
	}

	sets := []types.ThresholdSet{
		types.DefaultThresholds(),
		{ScoreMatching: 0, EmailInvite: 0, AutoShortlist: 0, AutoDenied: 0},
		{ScoreMatching: 100, EmailInvite: 100, AutoShortlist: 100, AutoDenied: 100},
		{ScoreMatching: 55, EmailInvite: 20, AutoShortlist: 10, AutoDenied: 99},
	}

	for _, set := range sets {
		for score := 0; score <= 100; score++ {
			stage := Decide(set, score)
			assert.True(t, valid[stage], "thresholds %+v score %d produced %q", set, score, stage)
		}
	}
}

func TestDecide_Idempotent(t *testing.T) {
	thresholds := types.ThresholdSet{ScoreMatching: 25, EmailInvite: 45, AutoShortlist: 65, AutoDenied: 35}
	for score := 0; score <= 100; score += 5 {
		first := Decide(thresholds, score)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, Decide(thresholds, score))
		}
	}
}
