package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/talentbase/qualifier/internal/store"
)

var decisionsFlags struct {
	dbURL string
	jobID string
	limit int
}

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "List a job's past qualification decisions, newest first",
	RunE:  runDecisions,
}

func init() {
	decisionsCmd.Flags().StringVar(&decisionsFlags.dbURL, "db", "", "PostgreSQL connection URL (or DATABASE_URL)")
	decisionsCmd.Flags().StringVar(&decisionsFlags.jobID, "job", "", "Job ID")
	decisionsCmd.Flags().IntVar(&decisionsFlags.limit, "limit", 50, "Maximum decisions to show")

	rootCmd.AddCommand(decisionsCmd)
}

func runDecisions(cmd *cobra.Command, args []string) error {
	dbURL := decisionsFlags.dbURL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return fmt.Errorf("a database URL is required (--db or DATABASE_URL)")
	}
	jobID, err := uuid.Parse(decisionsFlags.jobID)
	if err != nil {
		return fmt.Errorf("invalid job id: %w", err)
	}

	db, err := store.Connect(cmd.Context(), dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	decisionStore := store.NewDecisionStore(db)
	if err := decisionStore.EnsureSchema(cmd.Context()); err != nil {
		return err
	}

	decisions, err := decisionStore.ListDecisions(cmd.Context(), jobID, decisionsFlags.limit)
	if err != nil {
		return err
	}

	fmt.Printf("%-38s %-12s %7s %-25s\n", "CANDIDATE", "STAGE", "OVERALL", "DECIDED")
	for _, d := range decisions {
		fmt.Printf("%-38s %-12s %7d %-25s\n",
			d.CandidateID, d.Stage, d.Score.OverallMatch,
			d.DecidedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
