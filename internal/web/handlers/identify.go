package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/kozaktomas/class-attendance/internal/match"
)

// IdentifyHandler recognizes a face in an uploaded photo without
// touching the attendance ledger. Teachers use it to verify enrollment
// quality.
type IdentifyHandler struct {
	students   *StudentsHandler
	matcher    *match.SearchMatcher
	thresholds match.Thresholds
}

// NewIdentifyHandler creates the identify handler. It shares the
// students handler's capture stack.
func NewIdentifyHandler(students *StudentsHandler, matcher *match.SearchMatcher, thresholds match.Thresholds) *IdentifyHandler {
	return &IdentifyHandler{students: students, matcher: matcher, thresholds: thresholds}
}

// Identify runs detection, extraction and matching on a multipart photo
// and reports the best candidate, if any.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxEnrollmentPhotoSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	photo, _, err := r.FormFile("photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer photo.Close()

	imageData, err := io.ReadAll(photo)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read photo")
		return
	}

	feats, status, msg := h.students.extractFeatures(r, imageData)
	if msg != "" {
		respondError(w, status, msg)
		return
	}

	result, err := h.matcher.BestMatch(r.Context(), feats.Full, feats.Probe, 16, h.thresholds)
	if err != nil {
		log.Printf("identifying face: %v", err)
		respondError(w, http.StatusInternalServerError, "matching failed")
		return
	}
	if result == nil {
		respondJSON(w, http.StatusOK, map[string]any{"matched": false})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"matched":    true,
		"student":    result.Student,
		"confidence": result.Confidence,
		"confirmed":  result.Confirmed,
	})
}
