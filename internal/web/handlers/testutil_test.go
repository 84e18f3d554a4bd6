package handlers

import (
	"bytes"
	"context"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/capture"
	"github.com/kozaktomas/class-attendance/internal/database/mock"
	"github.com/kozaktomas/class-attendance/internal/feature"
)

// fixedLocator always finds one face, or fails with err when set.
type fixedLocator struct {
	err error
}

func (l *fixedLocator) Locate(ctx context.Context, imageData []byte) (image.Rectangle, error) {
	if l.err != nil {
		return image.Rectangle{}, l.err
	}
	return image.Rect(0, 0, 10, 10), nil
}

// fixedExtractor returns a constant vector.
type fixedExtractor struct{}

func (e *fixedExtractor) Extract(imageData []byte, box image.Rectangle) (capture.Features, error) {
	v := make(feature.Vector, 16)
	for i := range v {
		v[i] = float32(i * 7 % 11)
	}
	return capture.Features{Full: v, Probe: feature.Probe(v, 4)}, nil
}

// testLedger builds a ledger over an in-memory store with a single
// morning period.
func testLedger(t *testing.T, store *mock.Attendance) (*attendance.Ledger, *attendance.Classifier) {
	t.Helper()
	classifier, err := attendance.NewClassifier([]attendance.Period{
		{Name: "Morning", Start: 8 * 60, End: 12 * 60},
	}, attendance.DefaultLateTolerance)
	if err != nil {
		t.Fatal(err)
	}
	ledger := attendance.NewLedger(store, attendance.NewDebouncer(attendance.DefaultCooldown), classifier)
	return ledger, classifier
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartPhotoRequest builds a multipart POST with form fields and a
// photo file.
func multipartPhotoRequest(t *testing.T, path string, fields map[string]string, withPhoto bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if withPhoto {
		part, err := mw.CreateFormFile("photo", "face.jpg")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte("jpeg bytes")); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
