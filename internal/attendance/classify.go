package attendance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PeriodNone is the period name assigned when a timestamp falls outside
// every configured teaching period.
const PeriodNone = "OutOfPeriod"

// DefaultLateTolerance is the number of minutes after a period's start
// during which an arrival still counts as on time.
const DefaultLateTolerance = 10

// Period is a named teaching time window. Start and End are minutes since
// midnight; both bounds are inclusive.
type Period struct {
	Name  string
	Start int
	End   int
}

// ParseClock parses a "HH:MM" wall-clock string into minutes since
// midnight.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in clock value %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in clock value %q", s)
	}
	return hour*60 + minute, nil
}

// Classification is the result of mapping a timestamp onto the period
// table.
type Classification struct {
	Period      string
	Status      Status
	MinutesLate int
}

// Classifier maps a time of day to a teaching period and a punctuality
// status. It is a pure function of its period table; it holds no state.
type Classifier struct {
	periods   []Period
	tolerance int
}

// NewClassifier builds a classifier from a period table. Periods must be
// non-empty, well-formed (start before end) and non-overlapping; a
// violation is a configuration error and fatal at startup.
func NewClassifier(periods []Period, toleranceMinutes int) (*Classifier, error) {
	if len(periods) == 0 {
		return nil, fmt.Errorf("period table is empty")
	}
	if toleranceMinutes < 0 {
		return nil, fmt.Errorf("late tolerance must not be negative, got %d", toleranceMinutes)
	}

	sorted := make([]Period, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for i, p := range sorted {
		if p.Name == "" || p.Name == PeriodNone {
			return nil, fmt.Errorf("invalid period name %q", p.Name)
		}
		if p.Start >= p.End {
			return nil, fmt.Errorf("period %q starts at or after its end", p.Name)
		}
		if i > 0 && p.Start <= sorted[i-1].End {
			return nil, fmt.Errorf("periods %q and %q overlap", sorted[i-1].Name, p.Name)
		}
	}

	return &Classifier{periods: sorted, tolerance: toleranceMinutes}, nil
}

// Classify maps a timestamp to a period and punctuality status. Outside
// every period the status is StatusOutOfPeriod and no lateness evaluation
// happens. Within a period, an arrival more than the tolerance after the
// period start is late.
func (c *Classifier) Classify(now time.Time) Classification {
	minutes := now.Hour()*60 + now.Minute()

	for _, p := range c.periods {
		if minutes < p.Start || minutes > p.End {
			continue
		}
		sinceStart := minutes - p.Start
		if sinceStart > c.tolerance {
			return Classification{Period: p.Name, Status: StatusLate, MinutesLate: sinceStart - c.tolerance}
		}
		return Classification{Period: p.Name, Status: StatusOnTime}
	}

	return Classification{Period: PeriodNone, Status: StatusOutOfPeriod}
}

// PeriodByName returns the named period from the table.
func (c *Classifier) PeriodByName(name string) (Period, bool) {
	for _, p := range c.periods {
		if p.Name == name {
			return p, true
		}
	}
	return Period{}, false
}

// Periods returns the period table in start order.
func (c *Classifier) Periods() []Period {
	out := make([]Period, len(c.periods))
	copy(out, c.periods)
	return out
}
