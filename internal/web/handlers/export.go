package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/export"
)

// ExportHandler serves attendance exports.
type ExportHandler struct {
	store database.AttendanceStore
}

// NewExportHandler creates the export handler.
func NewExportHandler(store database.AttendanceStore) *ExportHandler {
	return &ExportHandler{store: store}
}

// CSV streams the filtered attendance records as a CSV download. Filter
// query parameters: from, to (inclusive dates), class, period.
func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := export.Filter{
		FromDate: q.Get("from"),
		ToDate:   q.Get("to"),
		Class:    q.Get("class"),
		Period:   q.Get("period"),
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(filter)+`"`)

	if _, err := export.WriteCSV(r.Context(), w, h.store, filter); err != nil {
		// Headers are out; all we can do is log.
		log.Printf("exporting attendance csv: %v", err)
	}
}
