package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/talentbase/qualifier/internal/credits"
	"github.com/talentbase/qualifier/internal/store"
)

var creditsFlags struct {
	dbURL        string
	orgID        string
	creditType   string
	limit        int
	staleMinutes int
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Administer organization credit balances",
}

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the current balance for an organization",
	RunE:  runCreditsBalance,
}

var creditsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent credit transactions, newest first",
	RunE:  runCreditsHistory,
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant <count>",
	Short: "Grant credits to an organization",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreditsGrant,
}

var creditsReleaseStaleCmd = &cobra.Command{
	Use:   "release-stale",
	Short: "Refund reservations left open by interrupted runs",
	RunE:  runCreditsReleaseStale,
}

func init() {
	creditsCmd.PersistentFlags().StringVar(&creditsFlags.dbURL, "db", "", "PostgreSQL connection URL (or DATABASE_URL)")
	creditsCmd.PersistentFlags().StringVar(&creditsFlags.orgID, "org", "", "Organization ID")
	creditsCmd.PersistentFlags().StringVar(&creditsFlags.creditType, "type", string(credits.CreditCVProcessing), "Credit type")
	creditsHistoryCmd.Flags().IntVar(&creditsFlags.limit, "limit", 20, "Maximum transactions to show")
	creditsReleaseStaleCmd.Flags().IntVar(&creditsFlags.staleMinutes, "older-than", 60, "Minimum reservation age in minutes")

	creditsCmd.AddCommand(creditsBalanceCmd, creditsHistoryCmd, creditsGrantCmd, creditsReleaseStaleCmd)
	rootCmd.AddCommand(creditsCmd)
}

func creditsLedger(cmd *cobra.Command) (*credits.PostgresLedger, uuid.UUID, func(), error) {
	dbURL := creditsFlags.dbURL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, uuid.Nil, nil, fmt.Errorf("a database URL is required (--db or DATABASE_URL)")
	}
	orgID, err := uuid.Parse(creditsFlags.orgID)
	if err != nil {
		return nil, uuid.Nil, nil, fmt.Errorf("invalid org id: %w", err)
	}

	db, err := store.Connect(cmd.Context(), dbURL)
	if err != nil {
		return nil, uuid.Nil, nil, err
	}
	ledger := credits.NewPostgresLedger(db.Pool())
	if err := ledger.EnsureSchema(cmd.Context()); err != nil {
		db.Close()
		return nil, uuid.Nil, nil, err
	}
	return ledger, orgID, db.Close, nil
}

func runCreditsBalance(cmd *cobra.Command, args []string) error {
	ledger, orgID, closeDB, err := creditsLedger(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	balance, err := ledger.Balance(cmd.Context(), orgID, credits.CreditType(creditsFlags.creditType))
	if err != nil {
		return err
	}
	fmt.Printf("%s %s: %d\n", orgID, creditsFlags.creditType, balance)
	return nil
}

func runCreditsHistory(cmd *cobra.Command, args []string) error {
	ledger, orgID, closeDB, err := creditsLedger(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	transactions, err := ledger.History(cmd.Context(), orgID, creditsFlags.limit)
	if err != nil {
		return err
	}
	fmt.Printf("%-25s %-15s %-10s %7s\n", "CREATED", "TYPE", "REASON", "DELTA")
	for _, tx := range transactions {
		fmt.Printf("%-25s %-15s %-10s %+7d\n",
			tx.CreatedAt.Format("2006-01-02 15:04:05"), tx.CreditType, tx.Reason, tx.Delta)
	}
	return nil
}

func runCreditsGrant(cmd *cobra.Command, args []string) error {
	count, err := strconv.Atoi(args[0])
	if err != nil || count <= 0 {
		return fmt.Errorf("count must be a positive integer")
	}

	ledger, orgID, closeDB, err := creditsLedger(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	creditType := credits.CreditType(creditsFlags.creditType)
	if err := ledger.Grant(cmd.Context(), orgID, creditType, count); err != nil {
		return err
	}
	balance, err := ledger.Balance(cmd.Context(), orgID, creditType)
	if err != nil {
		return err
	}
	fmt.Printf("granted %d %s credits, balance is now %d\n", count, creditsFlags.creditType, balance)
	return nil
}

func runCreditsReleaseStale(cmd *cobra.Command, args []string) error {
	dbURL := creditsFlags.dbURL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return fmt.Errorf("a database URL is required (--db or DATABASE_URL)")
	}

	db, err := store.Connect(cmd.Context(), dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ledger := credits.NewPostgresLedger(db.Pool())
	if err := ledger.EnsureSchema(cmd.Context()); err != nil {
		return err
	}

	released, err := ledger.ReleaseStale(cmd.Context(), time.Duration(creditsFlags.staleMinutes)*time.Minute)
	if err != nil {
		return err
	}
	fmt.Printf("released %d stale reservation(s)\n", released)
	return nil
}
