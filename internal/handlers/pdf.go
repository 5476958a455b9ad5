package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"storecheck/internal/completion"
	"storecheck/internal/models"
	"storecheck/internal/report"
)

// VisitPDF handles GET /api/visits/{id}/pdf
//
// The export is gated on the same completion threshold as submission: a
// half-finished audit must never leave the building as an official-looking
// document. Below the bar the response is a JSON error, not a PDF.
func (s *Server) VisitPDF(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	v, err := s.fetchVisit(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "visit not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	answers, err := s.fetchAnswers(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	items, err := s.loadTemplate(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	payloads := make([]models.AnswerPayload, 0, len(answers))
	for _, a := range answers {
		payloads = append(payloads, a.AnswerPayload)
	}
	pct := completion.Server(items, payloads)
	if pct < s.Threshold {
		respondError(w, http.StatusBadRequest, s.completionError())
		return
	}

	pdf := report.RenderPDF(report.Build(v, answers, pct))

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="visit-%s.pdf"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
