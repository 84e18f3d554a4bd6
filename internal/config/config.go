// Package config loads configuration from environment variables with an
// embedded YAML default for the period table. Configuration errors are
// fatal at startup: Validate must pass before anything runs.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/feature"
	"github.com/kozaktomas/class-attendance/internal/match"
)

//go:embed periods.yaml
var periodsYAML []byte

type Config struct {
	Detector   DetectorConfig
	Match      MatchConfig
	Attendance AttendanceConfig
	Database   DatabaseConfig
	Legacy     LegacyConfig
}

// DetectorConfig points at the external face detection service.
type DetectorConfig struct {
	URL string // defaults to http://localhost:8100
}

type MatchConfig struct {
	TentativeThreshold float64 // minimum confidence to report a match (default 60)
	ConfirmedThreshold float64 // minimum confidence to record attendance (default 90)
	PatchSize          int     // face patch side in pixels (default 128)
}

// Thresholds returns the configured match tiers.
func (c *MatchConfig) Thresholds() match.Thresholds {
	return match.Thresholds{Tentative: c.TentativeThreshold, Confirmed: c.ConfirmedThreshold}
}

// Dim returns the feature vector length implied by the patch size.
func (c *MatchConfig) Dim() int {
	return c.PatchSize * c.PatchSize
}

type AttendanceConfig struct {
	Cooldown      time.Duration // per-student detection cooldown
	LateTolerance int           // minutes after period start still on time
	Periods       []PeriodConfig
}

// PeriodConfig is one teaching window in the YAML period table.
type PeriodConfig struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start"` // "HH:MM"
	End   string `yaml:"end"`   // "HH:MM"
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // default 25
	MaxIdleConns int    // default 5
}

// LegacyConfig configures the MariaDB import source of the previous
// system.
type LegacyConfig struct {
	MariaDBDSN string
}

// periodsFile is the shape of the embedded (or overriding) YAML.
type periodsFile struct {
	LateToleranceMinutes int            `yaml:"late_tolerance_minutes"`
	Periods              []PeriodConfig `yaml:"periods"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float, falling back to the
// default when unset or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func Load() (*Config, error) {
	var periods periodsFile
	if err := yaml.Unmarshal(periodsYAML, &periods); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded periods.yaml: " + err.Error())
	}

	// An external period table overrides the embedded default.
	if path := os.Getenv("ATTENDANCE_PERIODS_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading period table %s: %w", path, err)
		}
		periods = periodsFile{}
		if err := yaml.Unmarshal(data, &periods); err != nil {
			return nil, fmt.Errorf("parsing period table %s: %w", path, err)
		}
	}

	tolerance := periods.LateToleranceMinutes
	if tolerance == 0 {
		tolerance = attendance.DefaultLateTolerance
	}

	cfg := &Config{
		Detector: DetectorConfig{
			URL: os.Getenv("DETECTOR_URL"),
		},
		Match: MatchConfig{
			TentativeThreshold: envFloat("MATCH_TENTATIVE_THRESHOLD", match.DefaultThresholds.Tentative),
			ConfirmedThreshold: envFloat("MATCH_CONFIRMED_THRESHOLD", match.DefaultThresholds.Confirmed),
			PatchSize:          envInt("MATCH_PATCH_SIZE", 128),
		},
		Attendance: AttendanceConfig{
			Cooldown:      time.Duration(envInt("ATTENDANCE_COOLDOWN_SECONDS", int(attendance.DefaultCooldown/time.Second))) * time.Second,
			LateTolerance: envInt("ATTENDANCE_LATE_TOLERANCE_MINUTES", tolerance),
			Periods:       periods.Periods,
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Legacy: LegacyConfig{
			MariaDBDSN: os.Getenv("LEGACY_MARIADB_DSN"),
		},
	}

	return cfg, nil
}

// Validate checks the policy configuration. Any violation is fatal at
// startup; nothing here is recoverable mid-session.
func (c *Config) Validate() error {
	m := c.Match
	if m.TentativeThreshold <= 0 || m.TentativeThreshold > 100 {
		return fmt.Errorf("tentative threshold %f outside (0, 100]", m.TentativeThreshold)
	}
	if m.ConfirmedThreshold <= 0 || m.ConfirmedThreshold > 100 {
		return fmt.Errorf("confirmed threshold %f outside (0, 100]", m.ConfirmedThreshold)
	}
	if m.TentativeThreshold > m.ConfirmedThreshold {
		return fmt.Errorf("tentative threshold %f exceeds confirmed threshold %f",
			m.TentativeThreshold, m.ConfirmedThreshold)
	}
	if m.PatchSize < 32 || m.PatchSize > 256 {
		return fmt.Errorf("patch size %d outside [32, 256]", m.PatchSize)
	}
	if feature.ProbeDim > m.Dim() {
		return fmt.Errorf("patch size %d produces vectors shorter than the probe dimension", m.PatchSize)
	}
	if c.Attendance.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive, got %s", c.Attendance.Cooldown)
	}

	// Building the classifier validates the period table.
	if _, err := c.BuildClassifier(); err != nil {
		return fmt.Errorf("period table: %w", err)
	}
	return nil
}

// BuildClassifier converts the period table into an attendance
// classifier.
func (c *Config) BuildClassifier() (*attendance.Classifier, error) {
	periods := make([]attendance.Period, 0, len(c.Attendance.Periods))
	for _, p := range c.Attendance.Periods {
		start, err := attendance.ParseClock(p.Start)
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", p.Name, err)
		}
		end, err := attendance.ParseClock(p.End)
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", p.Name, err)
		}
		periods = append(periods, attendance.Period{Name: p.Name, Start: start, End: end})
	}
	return attendance.NewClassifier(periods, c.Attendance.LateTolerance)
}
