package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-attendance/internal/attendance"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <period>",
	Short: "Mark students without an arrival as absent",
	Long: `Mark every roster student without an attendance event for the given
period as absent. Idempotent: students already marked, present or
absent, are left untouched. Run it after the period's arrival window.`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().String("date", "", "Session date YYYY-MM-DD (defaults to today)")
	reconcileCmd.Flags().String("class", "", "Only reconcile this class")
	reconcileCmd.Flags().Bool("close", false, "Also close the period after reconciling")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	b, err := connectBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.pool.Close()

	period := args[0]
	date := mustGetString(cmd, "date")
	if date == "" {
		date = time.Now().Format(attendance.DateFormat)
	}

	classifier, err := cfg.BuildClassifier()
	if err != nil {
		return err
	}
	if _, ok := classifier.PeriodByName(period); !ok {
		return fmt.Errorf("unknown period %q", period)
	}

	ledger := attendance.NewLedger(b.attendance, attendance.NewDebouncer(cfg.Attendance.Cooldown), classifier)
	if err := ledger.LoadSession(ctx, date); err != nil {
		return err
	}

	entries, err := b.roster.AllEntries(ctx)
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}

	classFilter := mustGetString(cmd, "class")
	var subjects []attendance.Subject
	for _, entry := range entries {
		if classFilter != "" && entry.Student.ClassName != classFilter {
			continue
		}
		subjects = append(subjects, entry.Student.Subject())
	}

	created, err := ledger.ReconcileAbsences(ctx, subjects, period, date)
	if err != nil {
		return fmt.Errorf("reconciling absences: %w", err)
	}
	fmt.Printf("Marked %d of %d students absent for %s %s\n", len(created), len(subjects), date, period)

	if mustGetBool(cmd, "close") {
		closed, err := ledger.ClosePeriod(ctx, period, date)
		if err != nil {
			return fmt.Errorf("closing period: %w", err)
		}
		fmt.Printf("Closed %d events\n", closed)
	}
	return nil
}
