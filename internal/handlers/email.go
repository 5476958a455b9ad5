package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storecheck/internal/completion"
	"storecheck/internal/mail"
	"storecheck/internal/models"
	"storecheck/internal/report"
)

// EmailVisit handles POST /api/visits/{id}/email
//
// Sends the visit summary to the given recipients. When no SMTP relay is
// configured the handler still does all the work except the final send and
// returns 503 with the rendered summary, so the evaluator can copy it into
// whatever channel they do have.
func (s *Server) EmailVisit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		To []string `json:"to"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	to := req.To[:0]
	for _, addr := range req.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		respondError(w, http.StatusBadRequest, "at least one recipient is required")
		return
	}

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

	body := report.SummaryText(report.Build(v, answers, pct))
	subject := fmt.Sprintf("Store visit summary: %s, %s", v.StoreName, v.Timestamp)

	if err := s.Mailer.Send(to, subject, body); err != nil {
		if errors.Is(err, mail.ErrDisabled) {
			respond(w, http.StatusServiceUnavailable, map[string]string{
				"error":   "email is not configured on this server",
				"summary": body,
			})
			return
		}
		s.logger().Error("send summary email", "visit", id, "err", err)
		respondError(w, http.StatusBadGateway, "mail relay rejected the message; try again later")
		return
	}

	respond(w, http.StatusOK, map[string]any{"sent": true, "recipients": to})
}
