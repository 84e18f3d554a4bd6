// Package export renders attendance records for consumption outside the
// system, currently as CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/database"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
// Exported names keep diacritics in the name columns; this is used for the
// filename and for ASCII-only consumers.
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// Filter selects which events an export includes. Zero values mean no
// restriction on that axis.
type Filter struct {
	FromDate string
	ToDate   string
	Class    string
	Period   string
}

// csvHeader is the fixed column layout of attendance exports.
var csvHeader = []string{"surname", "given_name", "class", "date", "time", "period", "status", "confidence"}

// WriteCSV renders the filtered events as CSV, ordered by date, class,
// surname. Confidence is formatted with one decimal; absences have no
// time and no confidence.
func WriteCSV(ctx context.Context, w io.Writer, store database.AttendanceStore, f Filter) (int, error) {
	from, to := f.FromDate, f.ToDate
	if from == "" {
		from = "0000-01-01"
	}
	if to == "" {
		to = "9999-12-31"
	}

	events, err := store.EventsBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("loading events: %w", err)
	}

	filtered := events[:0]
	for _, ev := range events {
		if f.Class != "" && ev.ClassName != f.Class {
			continue
		}
		if f.Period != "" && ev.Period != f.Period {
			continue
		}
		filtered = append(filtered, ev)
	}

	sort.Slice(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.ClassName != b.ClassName {
			return a.ClassName < b.ClassName
		}
		if a.FamilyName != b.FamilyName {
			return a.FamilyName < b.FamilyName
		}
		return a.StudentID < b.StudentID
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	for _, ev := range filtered {
		record := []string{
			ev.FamilyName,
			ev.GivenName,
			ev.ClassName,
			ev.Date,
			ev.Time,
			ev.Period,
			string(ev.Status),
			formatConfidence(ev),
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("writing record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}
	return len(filtered), nil
}

func formatConfidence(ev attendance.Event) string {
	if ev.Status == attendance.StatusAbsent {
		return ""
	}
	return fmt.Sprintf("%.1f", ev.Confidence)
}

// Filename builds a download filename for the filter, ASCII-safe.
func Filename(f Filter) string {
	parts := []string{"attendance"}
	if f.Class != "" {
		parts = append(parts, sanitize(f.Class))
	}
	if f.FromDate != "" {
		parts = append(parts, f.FromDate)
	}
	if f.ToDate != "" && f.ToDate != f.FromDate {
		parts = append(parts, f.ToDate)
	}
	return strings.Join(parts, "_") + ".csv"
}

func sanitize(s string) string {
	s = RemoveDiacritics(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return b.String()
}
