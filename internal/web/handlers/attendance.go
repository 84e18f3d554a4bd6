package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/database"
)

// AttendanceHandler serves the present view and the teacher-triggered
// ledger operations: absence reconciliation and period close.
type AttendanceHandler struct {
	ledger     *attendance.Ledger
	classifier *attendance.Classifier
	roster     database.RosterReader
}

// NewAttendanceHandler creates the attendance handler.
func NewAttendanceHandler(ledger *attendance.Ledger, classifier *attendance.Classifier, roster database.RosterReader) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger, classifier: classifier, roster: roster}
}

// Present returns the current session's present view, optionally filtered
// by the "class" query parameter.
func (h *AttendanceHandler) Present(w http.ResponseWriter, r *http.Request) {
	events := h.ledger.PresentView(r.URL.Query().Get("class"))
	respondJSON(w, http.StatusOK, map[string]any{
		"date":   h.ledger.SessionDate(),
		"events": events,
		"count":  len(events),
	})
}

// Periods returns the configured period table.
func (h *AttendanceHandler) Periods(w http.ResponseWriter, r *http.Request) {
	periods := h.classifier.Periods()
	out := make([]map[string]any, 0, len(periods))
	for _, p := range periods {
		out = append(out, map[string]any{
			"name":  p.Name,
			"start": formatClock(p.Start),
			"end":   formatClock(p.End),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"periods": out})
}

func formatClock(minutes int) string {
	return time.Date(0, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC).Format("15:04")
}

// reconcileRequest is the body of POST /attendance/reconcile.
type reconcileRequest struct {
	Period string `json:"period"`
	Date   string `json:"date,omitempty"`
	Class  string `json:"class,omitempty"`
}

// Reconcile marks every roster student without an event for the given
// (date, period) as absent. Idempotent: repeating the call creates
// nothing new.
func (h *AttendanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if _, ok := h.classifier.PeriodByName(req.Period); !ok {
		respondError(w, http.StatusBadRequest, "unknown period "+sanitizeForLog(req.Period))
		return
	}
	date := req.Date
	if date == "" {
		date = time.Now().Format(attendance.DateFormat)
	}

	entries, err := h.roster.AllEntries(r.Context())
	if err != nil {
		log.Printf("loading roster for reconciliation: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load roster")
		return
	}

	var subjects []attendance.Subject
	for _, entry := range entries {
		if req.Class != "" && entry.Student.ClassName != req.Class {
			continue
		}
		subjects = append(subjects, entry.Student.Subject())
	}

	created, err := h.ledger.ReconcileAbsences(r.Context(), subjects, req.Period, date)
	if err != nil {
		log.Printf("reconciling absences: %v", err)
		respondError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":           date,
		"period":         req.Period,
		"marked_absent":  len(created),
		"roster_checked": len(subjects),
	})
}

// closeRequest is the body of POST /attendance/close.
type closeRequest struct {
	Period string `json:"period"`
	Date   string `json:"date,omitempty"`
}

// Close transitions the period's non-terminal events to completed.
func (h *AttendanceHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if _, ok := h.classifier.PeriodByName(req.Period); !ok {
		respondError(w, http.StatusBadRequest, "unknown period "+sanitizeForLog(req.Period))
		return
	}
	date := req.Date
	if date == "" {
		date = time.Now().Format(attendance.DateFormat)
	}

	closed, err := h.ledger.ClosePeriod(r.Context(), req.Period, date)
	if err != nil {
		log.Printf("closing period %s: %v", sanitizeForLog(req.Period), err)
		respondError(w, http.StatusInternalServerError, "period close failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":   date,
		"period": req.Period,
		"closed": closed,
	})
}
