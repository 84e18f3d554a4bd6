package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/capture"
	"github.com/kozaktomas/class-attendance/internal/config"
	"github.com/kozaktomas/class-attendance/internal/database/postgres"
)

// backends bundles the PostgreSQL repositories every command needs.
type backends struct {
	pool       *postgres.Pool
	roster     *postgres.RosterRepository
	attendance *postgres.AttendanceRepository
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// connectBackends opens the PostgreSQL pool and runs migrations.
func connectBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &backends{
		pool:       pool,
		roster:     postgres.NewRosterRepository(pool),
		attendance: postgres.NewAttendanceRepository(pool),
	}, nil
}

// buildLedger assembles the attendance ledger and loads today's session.
func buildLedger(ctx context.Context, cfg *config.Config, b *backends) (*attendance.Ledger, *attendance.Classifier, error) {
	classifier, err := cfg.BuildClassifier()
	if err != nil {
		return nil, nil, fmt.Errorf("building period classifier: %w", err)
	}

	ledger := attendance.NewLedger(b.attendance, attendance.NewDebouncer(cfg.Attendance.Cooldown), classifier)
	today := time.Now().Format(attendance.DateFormat)
	if err := ledger.LoadSession(ctx, today); err != nil {
		return nil, nil, fmt.Errorf("loading session %s: %w", today, err)
	}
	return ledger, classifier, nil
}

// buildCaptureStack creates the detector client and patch extractor.
func buildCaptureStack(cfg *config.Config) (capture.Locator, capture.Extractor) {
	return capture.NewDetectorClient(cfg.Detector.URL), capture.NewPatchExtractor(cfg.Match.PatchSize)
}
