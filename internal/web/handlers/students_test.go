package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/class-attendance/internal/capture"
	"github.com/kozaktomas/class-attendance/internal/database/mock"
)

func TestStudentsHandler_EnrollAndList(t *testing.T) {
	roster := mock.NewRoster()
	h := NewStudentsHandler(roster, &fixedLocator{}, &fixedExtractor{}, nil)

	req := multipartPhotoRequest(t, "/students", map[string]string{
		"family_name": "Dupont",
		"given_name":  "Alice",
		"class":       "3A",
		"school_year": "2025-2026",
	}, true)
	rec := httptest.NewRecorder()
	h.Enroll(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/students", nil))
	var resp struct {
		Students []studentSummary `json:"students"`
		Count    int              `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 {
		t.Fatalf("expected 1 student, got %d", resp.Count)
	}
	s := resp.Students[0]
	if s.FamilyName != "Dupont" || s.ClassName != "3A" || s.Encodings != 1 {
		t.Errorf("unexpected student %+v", s)
	}
}

func TestStudentsHandler_EnrollMissingFields(t *testing.T) {
	h := NewStudentsHandler(mock.NewRoster(), &fixedLocator{}, &fixedExtractor{}, nil)

	req := multipartPhotoRequest(t, "/students", map[string]string{
		"family_name": "Dupont",
	}, true)
	rec := httptest.NewRecorder()
	h.Enroll(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing fields, got %d", rec.Code)
	}
}

func TestStudentsHandler_EnrollMissingPhoto(t *testing.T) {
	h := NewStudentsHandler(mock.NewRoster(), &fixedLocator{}, &fixedExtractor{}, nil)

	req := multipartPhotoRequest(t, "/students", map[string]string{
		"family_name": "Dupont",
		"given_name":  "Alice",
		"class":       "3A",
	}, false)
	rec := httptest.NewRecorder()
	h.Enroll(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing photo, got %d", rec.Code)
	}
}

func TestStudentsHandler_EnrollDetectionAnomalies(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
	}{
		{"no face", capture.ErrNoFace},
		{"multiple faces", capture.ErrMultipleFaces},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStudentsHandler(mock.NewRoster(), &fixedLocator{err: tt.err}, &fixedExtractor{}, nil)

			req := multipartPhotoRequest(t, "/students", map[string]string{
				"family_name": "Dupont",
				"given_name":  "Alice",
				"class":       "3A",
			}, true)
			rec := httptest.NewRecorder()
			h.Enroll(rec, req)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("expected 422, got %d", rec.Code)
			}
		})
	}
}

func TestStudentsHandler_AddEncoding(t *testing.T) {
	roster := mock.NewRoster()
	h := NewStudentsHandler(roster, &fixedLocator{}, &fixedExtractor{}, nil)

	req := multipartPhotoRequest(t, "/students", map[string]string{
		"family_name": "Dupont",
		"given_name":  "Alice",
		"class":       "3A",
	}, true)
	rec := httptest.NewRecorder()
	h.Enroll(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll failed: %d", rec.Code)
	}

	req = multipartPhotoRequest(t, "/students/1/encodings", nil, true)
	req = requestWithChiParams(req, map[string]string{"id": "1"})
	rec = httptest.NewRecorder()
	h.AddEncoding(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	entries, err := roster.AllEntries(req.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries[0].Encodings) != 2 {
		t.Errorf("expected 2 encodings, got %d", len(entries[0].Encodings))
	}
}

func TestStudentsHandler_AddEncodingUnknownStudent(t *testing.T) {
	h := NewStudentsHandler(mock.NewRoster(), &fixedLocator{}, &fixedExtractor{}, nil)

	req := multipartPhotoRequest(t, "/students/42/encodings", nil, true)
	req = requestWithChiParams(req, map[string]string{"id": "42"})
	rec := httptest.NewRecorder()
	h.AddEncoding(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
