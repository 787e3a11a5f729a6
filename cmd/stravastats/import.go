package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ImportCmd runs one historical import in the foreground and prints its report.
type ImportCmd struct {
	Days    int   `short:"d" long:"days" description:"how many days back to import (defaults to $IMPORT_DAYS)"`
	Athlete int64 `long:"athlete" description:"athlete to import for (defaults to the authorized athlete)"`
}

func (c *ImportCmd) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	days := c.Days
	if days <= 0 {
		days = a.cfg.ImportDays
	}
	athleteID := c.Athlete
	if athleteID == 0 {
		if athleteID, err = a.creds.AnyAthleteID(ctx); err != nil {
			a.log.WithError(err).Error("no athlete to import for")
			return err
		}
	}

	after := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Truncate(time.Second)
	report, err := a.importer.Import(ctx, athleteID, after)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			a.log.WithError(encErr).Warn("unable to print report")
		}
	}
	if err != nil {
		a.log.WithError(err).Error("import failed")
	}
	return err
}
