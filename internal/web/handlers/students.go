package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/class-attendance/internal/capture"
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/match"
)

// maxEnrollmentPhotoSize bounds enrollment uploads.
const maxEnrollmentPhotoSize = 20 << 20 // 20 MB

// StudentsHandler serves the roster API: listing, enrollment and adding
// reference photos.
type StudentsHandler struct {
	roster    database.RosterWriter
	locator   capture.Locator
	extractor capture.Extractor
	index     *match.Index // nil when the linear scan is in use
}

// NewStudentsHandler creates the students handler. index may be nil.
func NewStudentsHandler(roster database.RosterWriter, locator capture.Locator, extractor capture.Extractor, index *match.Index) *StudentsHandler {
	return &StudentsHandler{roster: roster, locator: locator, extractor: extractor, index: index}
}

// studentSummary is the list representation of a student.
type studentSummary struct {
	ID         int64  `json:"id"`
	FamilyName string `json:"family_name"`
	GivenName  string `json:"given_name"`
	ClassName  string `json:"class_name"`
	SchoolYear string `json:"school_year,omitempty"`
	Encodings  int    `json:"encodings"`
}

// List returns all students with their encoding counts, optionally
// filtered by the "class" query parameter.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.roster.AllEntries(r.Context())
	if err != nil {
		log.Printf("listing students: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load roster")
		return
	}

	classFilter := r.URL.Query().Get("class")
	out := make([]studentSummary, 0, len(entries))
	for _, entry := range entries {
		if classFilter != "" && entry.Student.ClassName != classFilter {
			continue
		}
		out = append(out, studentSummary{
			ID:         entry.Student.ID,
			FamilyName: entry.Student.FamilyName,
			GivenName:  entry.Student.GivenName,
			ClassName:  entry.Student.ClassName,
			SchoolYear: entry.Student.SchoolYear,
			Encodings:  len(entry.Encodings),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"students": out, "count": len(out)})
}

// Classes returns all known classes.
func (h *StudentsHandler) Classes(w http.ResponseWriter, r *http.Request) {
	classes, err := h.roster.Classes(r.Context())
	if err != nil {
		log.Printf("listing classes: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load classes")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"classes": classes})
}

// Enroll registers a new student from a multipart form: identity fields
// plus a reference photo containing exactly one face.
func (h *StudentsHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxEnrollmentPhotoSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	familyName := r.FormValue("family_name")
	givenName := r.FormValue("given_name")
	className := r.FormValue("class")
	if familyName == "" || givenName == "" || className == "" {
		respondError(w, http.StatusBadRequest, "family_name, given_name and class are required")
		return
	}

	photo, header, err := r.FormFile("photo")
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

	feats, status, msg := h.extractFeatures(r, imageData)
	if msg != "" {
		respondError(w, status, msg)
		return
	}

	classID, err := h.roster.CreateClass(r.Context(), className)
	if err != nil {
		log.Printf("creating class %s: %v", sanitizeForLog(className), err)
		respondError(w, http.StatusInternalServerError, "failed to create class")
		return
	}

	student := database.Student{
		FamilyName: familyName,
		GivenName:  givenName,
		ClassID:    classID,
		ClassName:  className,
		SchoolYear: r.FormValue("school_year"),
	}
	if err := h.roster.CreateStudent(r.Context(), &student); err != nil {
		log.Printf("creating student: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create student")
		return
	}

	enc := database.StoredEncoding{
		StudentID: student.ID,
		ImagePath: header.Filename,
		Encoding:  feats.Full,
		Probe:     feats.Probe,
	}
	if err := h.roster.AddEncoding(r.Context(), &enc); err != nil {
		log.Printf("storing encoding for student %d: %v", student.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to store encoding")
		return
	}
	if h.index != nil {
		h.index.Add(student, enc)
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"student":     student,
		"encoding_id": enc.ID,
	})
}

// AddEncoding attaches another reference photo to an existing student.
// Several encodings per student improve recognition across lighting and
// pose changes.
func (h *StudentsHandler) AddEncoding(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid student ID")
		return
	}

	student, err := h.roster.StudentByID(r.Context(), id)
	if err != nil {
		log.Printf("loading student %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	if err := r.ParseMultipartForm(maxEnrollmentPhotoSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	photo, header, err := r.FormFile("photo")
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

	feats, status, msg := h.extractFeatures(r, imageData)
	if msg != "" {
		respondError(w, status, msg)
		return
	}

	enc := database.StoredEncoding{
		StudentID: student.ID,
		ImagePath: header.Filename,
		Encoding:  feats.Full,
		Probe:     feats.Probe,
	}
	if err := h.roster.AddEncoding(r.Context(), &enc); err != nil {
		log.Printf("storing encoding for student %d: %v", student.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to store encoding")
		return
	}
	if h.index != nil {
		h.index.Add(*student, enc)
	}

	respondJSON(w, http.StatusCreated, map[string]any{"encoding_id": enc.ID})
}

// extractFeatures runs detection and extraction on an uploaded photo. On
// failure it returns a non-empty message with the HTTP status to use;
// detection anomalies map to 422, everything else to 502.
func (h *StudentsHandler) extractFeatures(r *http.Request, imageData []byte) (capture.Features, int, string) {
	box, err := h.locator.Locate(r.Context(), imageData)
	switch {
	case errors.Is(err, capture.ErrNoFace):
		return capture.Features{}, http.StatusUnprocessableEntity, "no face detected in the photo"
	case errors.Is(err, capture.ErrMultipleFaces):
		return capture.Features{}, http.StatusUnprocessableEntity, "photo must contain exactly one face"
	case err != nil:
		log.Printf("locating face: %v", err)
		return capture.Features{}, http.StatusBadGateway, "face detection failed"
	}

	feats, err := h.extractor.Extract(imageData, box)
	if err != nil {
		log.Printf("extracting features: %v", err)
		return capture.Features{}, http.StatusUnprocessableEntity, "failed to extract features from photo"
	}
	return feats, 0, ""
}
