package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/talentbase/qualifier/internal/config"
	"github.com/talentbase/qualifier/internal/credits"
	"github.com/talentbase/qualifier/internal/extraction"
	"github.com/talentbase/qualifier/internal/llm"
	"github.com/talentbase/qualifier/internal/logger"
	"github.com/talentbase/qualifier/internal/notify"
	"github.com/talentbase/qualifier/internal/pipeline"
	"github.com/talentbase/qualifier/internal/scoring"
	"github.com/talentbase/qualifier/internal/store"
	"github.com/talentbase/qualifier/internal/types"
)

var qualifyFlags struct {
	configPath string
	docsDir    string
	jobID      string
	orgID      string
	dbURL      string
	apiKey     string
	rubric     string
	batchSize  int
	delayMS    int
	verbose    bool
	jsonLogs   bool
}

var qualifyCmd = &cobra.Command{
	Use:   "qualify",
	Short: "Score a directory of candidate documents against a job",
	RunE:  runQualify,
}

func init() {
	qualifyCmd.Flags().StringVar(&qualifyFlags.configPath, "config", "", "Path to JSON config file")
	qualifyCmd.Flags().StringVar(&qualifyFlags.docsDir, "docs", "", "Directory of candidate documents (pdf/docx/txt)")
	qualifyCmd.Flags().StringVar(&qualifyFlags.jobID, "job", "", "Job ID to score against")
	qualifyCmd.Flags().StringVar(&qualifyFlags.orgID, "org", "", "Organization ID charged for the batch")
	qualifyCmd.Flags().StringVar(&qualifyFlags.dbURL, "db", "", "PostgreSQL connection URL")
	qualifyCmd.Flags().StringVar(&qualifyFlags.apiKey, "api-key", "", "Gemini API key")
	qualifyCmd.Flags().StringVar(&qualifyFlags.rubric, "rubric", "", "Scoring rubric: lenient, standard or strict")
	qualifyCmd.Flags().IntVar(&qualifyFlags.batchSize, "batch-size", 0, "Concurrent scoring calls per chunk")
	qualifyCmd.Flags().IntVar(&qualifyFlags.delayMS, "chunk-delay", 0, "Milliseconds between chunks")
	qualifyCmd.Flags().BoolVar(&qualifyFlags.verbose, "verbose", false, "Enable debug logging")
	qualifyCmd.Flags().BoolVar(&qualifyFlags.jsonLogs, "json-logs", false, "Emit JSON logs")

	rootCmd.AddCommand(qualifyCmd)
}

// mergedConfig layers the config file, flags and environment, flags winning.
func mergedConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if qualifyFlags.configPath != "" {
		loaded, err := config.Load(qualifyFlags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if qualifyFlags.docsDir != "" {
		cfg.DocumentsDir = qualifyFlags.docsDir
	}
	if qualifyFlags.jobID != "" {
		cfg.JobID = qualifyFlags.jobID
	}
	if qualifyFlags.orgID != "" {
		cfg.OrgID = qualifyFlags.orgID
	}
	if qualifyFlags.dbURL != "" {
		cfg.DatabaseURL = qualifyFlags.dbURL
	}
	if qualifyFlags.apiKey != "" {
		cfg.APIKey = qualifyFlags.apiKey
	}
	if qualifyFlags.rubric != "" {
		cfg.Rubric = qualifyFlags.rubric
	}
	if qualifyFlags.batchSize > 0 {
		cfg.BatchSize = qualifyFlags.batchSize
	}
	if qualifyFlags.delayMS > 0 {
		cfg.ChunkDelayMS = qualifyFlags.delayMS
	}
	cfg.Verbose = cfg.Verbose || qualifyFlags.verbose
	cfg.JSONLogs = cfg.JSONLogs || qualifyFlags.jsonLogs

	cfg.FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runQualify(cmd *cobra.Command, args []string) error {
	cfg, err := mergedConfig()
	if err != nil {
		return err
	}
	if cfg.DocumentsDir == "" || cfg.JobID == "" || cfg.OrgID == "" || cfg.DatabaseURL == "" || cfg.APIKey == "" {
		return fmt.Errorf("docs, job, org, db and api-key are required (via flags, config file or environment)")
	}

	log, err := logger.New(cfg.JSONLogs, cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	jobID, err := uuid.Parse(cfg.JobID)
	if err != nil {
		return fmt.Errorf("invalid job id: %w", err)
	}
	orgID, err := uuid.Parse(cfg.OrgID)
	if err != nil {
		return fmt.Errorf("invalid org id: %w", err)
	}

	ctx := cmd.Context()

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	jobStore := store.NewJobStore(db)
	decisionStore := store.NewDecisionStore(db)
	ledger := credits.NewPostgresLedger(db.Pool())
	for _, ensure := range []func(context.Context) error{
		jobStore.EnsureSchema, decisionStore.EnsureSchema, ledger.EnsureSchema,
	} {
		if err := ensure(ctx); err != nil {
			return err
		}
	}

	job, err := jobStore.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	scoreCfg := scoring.DefaultConfig()
	if cfg.Rubric != "" {
		scoreCfg.Rubric = scoring.Rubric(cfg.Rubric)
	}
	if cfg.CallTimeoutSec > 0 {
		scoreCfg.CallTimeout = time.Duration(cfg.CallTimeoutSec) * time.Second
	}
	scorer, err := scoring.New(client, scoreCfg, log)
	if err != nil {
		return err
	}

	documents, err := loadDocuments(cfg.DocumentsDir)
	if err != nil {
		return err
	}
	if len(documents) == 0 {
		return fmt.Errorf("no supported documents found in %s", cfg.DocumentsDir)
	}

	orchestrator, err := pipeline.New(pipeline.Config{
		Extractor:  extraction.NewDocExtractor(),
		Score:      scorer.Score,
		Ledger:     ledger,
		Decisions:  decisionStore,
		Notifier:   notify.NewLogNotifier(log),
		Log:        log,
		ChunkSize:  cfg.BatchSize,
		ChunkDelay: time.Duration(cfg.ChunkDelayMS) * time.Millisecond,
		OnProgress: func(percent int) {
			log.Info("progress", zap.Int("percent", percent))
		},
	})
	if err != nil {
		return err
	}

	decisions, err := orchestrator.Qualify(ctx, orgID, *job, documents)
	if err != nil {
		return err
	}

	printDecisions(job, decisions)
	return nil
}

// loadDocuments reads every supported file in dir, non-recursively.
func loadDocuments(dir string) ([]pipeline.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents directory: %w", err)
	}

	var documents []pipeline.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		mimeType := extraction.MIMEForExtension(filepath.Ext(entry.Name()))
		if mimeType == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		documents = append(documents, pipeline.Document{
			Name:     entry.Name(),
			Data:     data,
			MIMEType: mimeType,
		})
	}
	return documents, nil
}

func printDecisions(job *types.JobContext, decisions []types.CandidateDecision) {
	fmt.Printf("Job: %s (%s)\n", job.Title, job.JobID)
	fmt.Printf("%-38s %-12s %7s %7s %7s %7s\n", "CANDIDATE", "STAGE", "OVERALL", "TECH", "EXP", "FIT")
	for _, d := range decisions {
		fmt.Printf("%-38s %-12s %7d %7d %7d %7d\n",
			d.CandidateID, d.Stage, d.Score.OverallMatch,
			d.Score.TechnicalSkills, d.Score.Experience, d.Score.CulturalFit)
	}
}
