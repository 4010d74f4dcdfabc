package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentbase/qualifier/internal/credits"
	"github.com/talentbase/qualifier/internal/extraction"
	"github.com/talentbase/qualifier/internal/llm"
	"github.com/talentbase/qualifier/internal/scoring"
	"github.com/talentbase/qualifier/internal/types"
)

// fakeExtractor returns document bytes as text, failing for names listed in
// failing.
type fakeExtractor struct {
	failing map[string]bool
}

func (f *fakeExtractor) ExtractText(ctx context.Context, name string, data []byte, mimeType string) (string, error) {
	if f.failing[name] {
		return "", &extraction.FailedError{Name: name, Cause: errors.New("corrupted document")}
	}
	return string(data), nil
}

// scoreByName returns a canned overall match per candidate display name.
func scoreByName(scores map[string]int, calls *int64) func(context.Context, types.CandidateProfile, types.JobContext) types.ScoreResult {
	return func(ctx context.Context, p types.CandidateProfile, _ types.JobContext) types.ScoreResult {
		if calls != nil {
			atomic.AddInt64(calls, 1)
		}
		return types.ScoreResult{
			CandidateID:  p.CandidateID,
			OverallMatch: scores[p.DisplayName],
			Summary:      "scored",
		}
	}
}

func doc(name, text string) Document {
	return Document{
		Name:        name + ".txt",
		DisplayName: name,
		Data:        []byte(text),
		MIMEType:    extraction.MIMEText,
	}
}

func resumeText(name string) string {
	return fmt.Sprintf("%s is a backend engineer with eight years of Go and Postgres experience.", name)
}

func defaultJob() types.JobContext {
	return types.JobContext{
		JobID:      uuid.New(),
		Title:      "Backend Engineer",
		Thresholds: types.DefaultThresholds(),
	}
}

func newOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Extractor == nil {
		cfg.Extractor = &fakeExtractor{}
	}
	cfg.ChunkDelay = -1 // no inter-chunk pause in tests
	o, err := New(cfg)
	require.NoError(t, err)
	return o
}

func TestQualify_InsufficientCreditsAbortsBeforeScoring(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	ledger := credits.NewMemoryLedger()
	require.NoError(t, ledger.Grant(ctx, org, credits.CreditCVProcessing, 2))

	var calls int64
	o := newOrchestrator(t, Config{
		Score:  scoreByName(nil, &calls),
		Ledger: ledger,
	})

	docs := []Document{
		doc("Alice", resumeText("Alice")),
		doc("Bob", resumeText("Bob")),
		doc("Cara", resumeText("Cara")),
	}
	_, err := o.Qualify(ctx, org, defaultJob(), docs)
	require.ErrorIs(t, err, credits.ErrInsufficientCredits)

	assert.Equal(t, int64(0), atomic.LoadInt64(&calls), "no scoring call may happen without credits")

	balance, err := ledger.Balance(ctx, org, credits.CreditCVProcessing)
	require.NoError(t, err)
	assert.Equal(t, 2, balance, "failed batch must not partially charge")
}

func TestQualify_OrderStagesAndCreditConsumption(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	ledger := credits.NewMemoryLedger()
	require.NoError(t, ledger.Grant(ctx, org, credits.CreditCVProcessing, 10))

	o := newOrchestrator(t, Config{
		Score: scoreByName(map[string]int{
			"Alice": 85, // shortlisted
			"Bob":   20, // denied, below the scoreMatching floor
			"Cara":  40, // invited
		}, nil),
		Ledger: ledger,
	})

	docs := []Document{
		doc("Alice", resumeText("Alice")),
		doc("Bob", resumeText("Bob")),
		doc("Cara", resumeText("Cara")),
	}
	decisions, err := o.Qualify(ctx, org, defaultJob(), docs)
	require.NoError(t, err)
	require.Len(t, decisions, 3)

	assert.Equal(t, types.StageShortlisted, decisions[0].Stage)
	assert.Equal(t, types.StageDenied, decisions[1].Stage)
	assert.Equal(t, types.StageInvited, decisions[2].Stage)
	assert.Equal(t, 85, decisions[0].Score.OverallMatch)
	assert.Equal(t, 20, decisions[1].Score.OverallMatch)
	assert.Equal(t, 40, decisions[2].Score.OverallMatch)

	balance, err := ledger.Balance(ctx, org, credits.CreditCVProcessing)
	require.NoError(t, err)
	assert.Equal(t, 7, balance)

	history, err := ledger.History(ctx, org, 0)
	require.NoError(t, err)
	require.Len(t, history, 3) // granted, reserved, committed
	assert.Equal(t, credits.ReasonCommitted, history[0].Reason)
	assert.Equal(t, credits.ReasonReserved, history[1].Reason)
	assert.Equal(t, -3, history[1].Delta)
}

func TestQualify_ExtractionFailureSkipsAndNeverCharges(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	ledger := credits.NewMemoryLedger()
	require.NoError(t, ledger.Grant(ctx, org, credits.CreditCVProcessing, 10))

	o := newOrchestrator(t, Config{
		Extractor: &fakeExtractor{failing: map[string]bool{"Bob.txt": true}},
		Score:     scoreByName(map[string]int{"Alice": 75, "Cara": 75}, nil),
		Ledger:    ledger,
	})

	docs := []Document{
		doc("Alice", resumeText("Alice")),
		doc("Bob", resumeText("Bob")),
		doc("Cara", resumeText("Cara")),
	}
	decisions, err := o.Qualify(ctx, org, defaultJob(), docs)
	require.NoError(t, err)
	require.Len(t, decisions, 2, "unextractable candidate is excluded")

	balance, err := ledger.Balance(ctx, org, credits.CreditCVProcessing)
	require.NoError(t, err)
	assert.Equal(t, 8, balance, "only scored candidates consume credits")
}

func TestQualify_CancellationReleasesReservation(t *testing.T) {
	org := uuid.New()
	ledger := credits.NewMemoryLedger()
	require.NoError(t, ledger.Grant(context.Background(), org, credits.CreditCVProcessing, 5))

	ctx, cancel := context.WithCancel(context.Background())
	score := func(_ context.Context, p types.CandidateProfile, _ types.JobContext) types.ScoreResult {
		cancel() // run dies after the first chunk
		return types.ScoreResult{CandidateID: p.CandidateID, OverallMatch: 50}
	}

	o := newOrchestrator(t, Config{
		Score:     score,
		Ledger:    ledger,
		ChunkSize: 1,
	})

	docs := []Document{
		doc("Alice", resumeText("Alice")),
		doc("Bob", resumeText("Bob")),
		doc("Cara", resumeText("Cara")),
	}
	_, err := o.Qualify(ctx, org, defaultJob(), docs)
	require.ErrorIs(t, err, context.Canceled)

	balance, err := ledger.Balance(context.Background(), org, credits.CreditCVProcessing)
	require.NoError(t, err)
	assert.Equal(t, 5, balance, "cancelled run must refund its full reservation")
}

func TestQualify_EmptyBatch(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	ledger := credits.NewMemoryLedger()

	o := newOrchestrator(t, Config{
		Extractor: &fakeExtractor{failing: map[string]bool{"Alice.txt": true}},
		Score:     scoreByName(nil, nil),
		Ledger:    ledger,
	})

	decisions, err := o.Qualify(ctx, org, defaultJob(), []Document{doc("Alice", "x")})
	require.NoError(t, err)
	assert.Empty(t, decisions)

	history, err := ledger.History(ctx, org, 0)
	require.NoError(t, err)
	assert.Empty(t, history, "an empty batch must not touch the ledger")
}

func TestQualify_RejectsInvalidJob(t *testing.T) {
	org := uuid.New()
	o := newOrchestrator(t, Config{
		Score:  scoreByName(nil, nil),
		Ledger: credits.NewMemoryLedger(),
	})

	_, err := o.Qualify(context.Background(), org, types.JobContext{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid job context")
}

type fakeSink struct {
	mu    sync.Mutex
	saved []types.CandidateDecision
	err   error
}

func (f *fakeSink) SaveDecisions(ctx context.Context, jobID uuid.UUID, names map[uuid.UUID]string, decisions []types.CandidateDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, decisions...)
	return nil
}

func TestQualify_PersistFailureStillConsumesCredits(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	ledger := credits.NewMemoryLedger()
	require.NoError(t, ledger.Grant(ctx, org, credits.CreditCVProcessing, 5))

	o := newOrchestrator(t, Config{
		Score:     scoreByName(map[string]int{"Alice": 90}, nil),
		Ledger:    ledger,
		Decisions: &fakeSink{err: errors.New("datastore offline")},
	})

	decisions, err := o.Qualify(ctx, org, defaultJob(), []Document{doc("Alice", resumeText("Alice"))})
	require.Error(t, err)
	require.Len(t, decisions, 1, "decisions are returned for the caller to retry persistence")

	balance, err := ledger.Balance(ctx, org, credits.CreditCVProcessing)
	require.NoError(t, err)
	assert.Equal(t, 4, balance)
}

type fakeNotifier struct {
	mu      sync.Mutex
	invited []uuid.UUID
}

func (f *fakeNotifier) InviteEligible(ctx context.Context, job types.JobContext, d types.CandidateDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invited = append(f.invited, d.CandidateID)
	return nil
}

func TestQualify_NotifierSeesOnlyInvitedCandidates(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	ledger := credits.NewMemoryLedger()
	require.NoError(t, ledger.Grant(ctx, org, credits.CreditCVProcessing, 5))

	notifier := &fakeNotifier{}
	o := newOrchestrator(t, Config{
		Score: scoreByName(map[string]int{
			"Alice": 95, // shortlisted
			"Bob":   45, // invited
			"Cara":  10, // denied
		}, nil),
		Ledger:   ledger,
		Notifier: notifier,
	})

	decisions, err := o.Qualify(ctx, org, defaultJob(), []Document{
		doc("Alice", resumeText("Alice")),
		doc("Bob", resumeText("Bob")),
		doc("Cara", resumeText("Cara")),
	})
	require.NoError(t, err)
	require.Len(t, decisions, 3)

	require.Len(t, notifier.invited, 1)
	assert.Equal(t, decisions[1].CandidateID, notifier.invited[0])
}

// stubCapability plugs into the real scoring client for an end-to-end run.
type stubCapability struct {
	responses map[string]string // keyed by substring of the prompt
}

func (s *stubCapability) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	for needle, response := range s.responses {
		if strings.Contains(prompt, needle) {
			return response, nil
		}
	}
	return "", errors.New("no canned response")
}

func (s *stubCapability) Close() error { return nil }

func TestQualify_EndToEndWithRealScorer(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	ledger := credits.NewMemoryLedger()
	require.NoError(t, ledger.Grant(ctx, org, credits.CreditCVProcessing, 10))

	capability := &stubCapability{responses: map[string]string{
		"Alice": `{"overallMatch": 85, "technicalSkills": 90, "experience": 80, "culturalFit": 75, "summary": "Great fit."}`,
		"Bob":   `{"overallMatch": 20, "technicalSkills": 25, "experience": 15, "culturalFit": 30, "summary": "Weak fit."}`,
	}}

	cfg := scoring.DefaultConfig()
	cfg.Seed = 7
	scorer, err := scoring.New(capability, cfg, nil)
	require.NoError(t, err)

	sink := &fakeSink{}
	o := newOrchestrator(t, Config{
		Score:     scorer.Score,
		Ledger:    ledger,
		Decisions: sink,
	})

	docs := []Document{
		doc("Alice", resumeText("Alice")),
		doc("Bob", resumeText("Bob")),
		doc("Tiny", "go"), // degenerate: never reaches the capability
	}
	decisions, err := o.Qualify(ctx, org, defaultJob(), docs)
	require.NoError(t, err)
	require.Len(t, decisions, 3)

	assert.Equal(t, types.StageShortlisted, decisions[0].Stage)
	assert.Equal(t, types.StageDenied, decisions[1].Stage)
	assert.Equal(t, types.StageDenied, decisions[2].Stage, "degenerate band sits below the floor")
	assert.Equal(t, scoring.InsufficientProfileSummary, decisions[2].Score.Summary)
	assert.Equal(t, int64(2), scorer.Calls(), "degenerate profile must not consume a capability call")

	assert.Len(t, sink.saved, 3)

	balance, err := ledger.Balance(ctx, org, credits.CreditCVProcessing)
	require.NoError(t, err)
	assert.Equal(t, 7, balance, "all three scored candidates consume credits, fallback included")
}
