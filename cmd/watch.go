package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-attendance/internal/capture"
	"github.com/kozaktomas/class-attendance/internal/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch <frame-dir>",
	Short: "Run the detection loop over a directory of frames",
	Long: `Run the detection loop over a directory of camera frames without
the web server. Each frame goes through face detection, feature
extraction and roster matching; confirmed matches are recorded in the
attendance ledger. Outcomes are printed as they happen.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// printNotifier prints detection notices to stdout.
type printNotifier struct{}

func (printNotifier) Publish(n session.Notice) {
	switch n.Kind {
	case "match":
		ev := n.Event
		if ev == nil {
			fmt.Printf("[%s] %s\n", n.Outcome, n.Ref)
			return
		}
		fmt.Printf("[%s] %s %s (%s) %s %.1f%%\n",
			n.Outcome, ev.GivenName, ev.FamilyName, ev.ClassName, ev.Status, n.Match.Confidence)
	case "suppressed":
		s := n.Match.Student
		fmt.Printf("[suppressed] %s %s (within cooldown)\n", s.GivenName, s.FamilyName)
	case "tentative":
		s := n.Match.Student
		fmt.Printf("[tentative] %s %s %.1f%% (below confirmation threshold)\n",
			s.GivenName, s.FamilyName, n.Match.Confidence)
	case "no_match":
		fmt.Printf("[no match] %s\n", n.Ref)
	case "anomaly":
		fmt.Printf("[skipped] %s: %s\n", n.Ref, n.Message)
	default:
		fmt.Printf("[%s] %s %s\n", n.Kind, n.Ref, n.Message)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping...")
		cancel()
	}()

	b, err := connectBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.pool.Close()

	ledger, _, err := buildLedger(ctx, cfg, b)
	if err != nil {
		return err
	}
	locator, extractor := buildCaptureStack(cfg)

	runner := &session.Runner{
		Source:     capture.NewFolderSource(args[0]),
		Locator:    locator,
		Extractor:  extractor,
		Roster:     b.roster,
		Ledger:     ledger,
		Thresholds: cfg.Match.Thresholds(),
		Notifier:   printNotifier{},
	}

	fmt.Printf("Processing frames from %s\n", args[0])
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("detection loop: %w", err)
	}
	return nil
}
