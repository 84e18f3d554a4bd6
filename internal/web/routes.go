package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/class-attendance/internal/match"
	"github.com/kozaktomas/class-attendance/internal/web/handlers"
)

// setupRoutes mounts the API.
func (s *Server) setupRoutes(deps Deps) {
	attendanceHandler := handlers.NewAttendanceHandler(deps.Ledger, deps.Classifier, deps.Roster)
	studentsHandler := handlers.NewStudentsHandler(deps.Roster, deps.Locator, deps.Extractor, deps.Index)
	exportHandler := handlers.NewExportHandler(deps.Store)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Attendance
		r.Get("/attendance/present", attendanceHandler.Present)
		r.Get("/attendance/periods", attendanceHandler.Periods)
		r.Post("/attendance/reconcile", attendanceHandler.Reconcile)
		r.Post("/attendance/close", attendanceHandler.Close)

		// Roster
		r.Get("/students", studentsHandler.List)
		r.Post("/students", studentsHandler.Enroll)
		r.Post("/students/{id}/encodings", studentsHandler.AddEncoding)
		r.Get("/classes", studentsHandler.Classes)

		// Recognition check, no ledger writes
		if deps.Searcher != nil {
			matcher := match.NewSearchMatcher(deps.Searcher, deps.Roster)
			identifyHandler := handlers.NewIdentifyHandler(studentsHandler, matcher, deps.Thresholds)
			r.Post("/identify", identifyHandler.Identify)
		}

		// Export
		r.Get("/export/csv", exportHandler.CSV)

		// Live detection feed
		if deps.Feed != nil {
			r.Get("/feed", deps.Feed.Events)
		}
	})
}
