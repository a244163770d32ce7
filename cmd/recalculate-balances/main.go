package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bitbucket.org/mmdatafocus/sitebooks_backend/config"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"bitbucket.org/mmdatafocus/sitebooks_backend/workflow"
)

// recalculate-balances rebuilds the daily summary history of one project or of
// every project. Each project is rebuilt in its own transaction: a failing day
// leaves that project's summaries untouched and the run moves on.
func main() {
	projectID := flag.String("project-id", "", "Recalculate only this project.")
	all := flag.Bool("all", false, "Recalculate every project.")
	flag.Parse()

	if (strings.TrimSpace(*projectID) == "") == !*all {
		fmt.Fprintln(os.Stderr, "exactly one of -project-id or -all is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = utils.SetUserNameInContext(ctx, "RecalculateBalances")

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(settings.LogLevel)

	db, err := config.ConnectDatabaseWithRetry(ctx, settings.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	// Take the same Redis locks as the API when Redis is reachable, so a running
	// server cannot reconcile a day of a project while it is being rebuilt.
	locks := workflow.NewSummaryLocks(nil, logger)
	if rdb, locker, err := config.ConnectRedisWithRetry(ctx, settings.Redis, 1); err == nil {
		defer rdb.Close()
		locks = workflow.NewSummaryLocks(locker, logger)
	} else {
		fmt.Fprintf(os.Stderr, "redis unavailable, running without cross-instance locks: %v\n", err)
	}

	store := models.NewStore(db, logger)
	recalculator := workflow.NewBalanceRecalculator(workflow.NewReconciler(store, locks, nil, logger))

	var projectIds []string
	if *all {
		projects, err := store.ListProjects(ctx, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "list projects: %v\n", err)
			os.Exit(1)
		}
		for _, p := range projects {
			projectIds = append(projectIds, p.ID)
		}
	} else {
		projectIds = []string{strings.TrimSpace(*projectID)}
	}

	var failed int
	for _, id := range projectIds {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(1)
		}
		result, err := recalculator.RecalculateAll(ctx, id)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "project %s: %v\n", id, err)
			continue
		}
		fmt.Printf("project %s: %d days rebuilt (%s .. %s), removed %d rows, closing balance %s, took %s\n",
			id, result.Days, result.FirstDate, result.LastDate, result.RemovedRows, result.RemainingBalance, result.Duration)
	}

	fmt.Printf("Done. projects=%d failed=%d\n", len(projectIds), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
