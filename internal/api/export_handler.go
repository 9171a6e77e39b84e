package api

import (
	"fmt"
	"net/http"

	"venueboard/internal/export"
	"venueboard/internal/metrics"
)

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("export")

	records, loaded := s.store.Records()
	if !loaded {
		writeError(w, http.StatusServiceUnavailable, "no snapshot loaded yet")
		return
	}

	fileName := fmt.Sprintf("bookings_%s.xlsx", s.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	if err := export.WriteSnapshot(w, records, s.venues); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}
