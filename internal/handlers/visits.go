package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storecheck/internal/completion"
	"storecheck/internal/middleware"
	"storecheck/internal/models"

	"github.com/google/uuid"
)

// timeLayout is the visit timestamp format on the wire and in the database,
// e.g. "2026-08-28 14:05:00".
const timeLayout = "2006-01-02 15:04:05"

var validVisitStates = map[models.VisitState]bool{
	models.VisitDraft:        true,
	models.VisitCompleted:    true,
	models.VisitSynchronized: true,
}

// completionError is the message for the submit/export gate. Phrased as a
// soft instruction, not a technical failure: the evaluator just needs to
// answer more items.
func (s *Server) completionError() string {
	return fmt.Sprintf("checklist must be at least %d%% complete to submit", s.Threshold)
}

// gateCompletion enforces the completion threshold for completed visits.
// Returns nil when the answers clear the bar.
func (s *Server) gateCompletion(ctx context.Context, answers []models.AnswerPayload) error {
	items, err := s.loadTemplate(ctx)
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}
	if completion.Server(items, answers) < s.Threshold {
		return errors.New(s.completionError())
	}
	return nil
}

// insertAnswers writes the answer set for a visit. Answers referencing
// unknown template ids are skipped silently — a stale client template must
// not fail the whole submission.
func (s *Server) insertAnswers(ctx context.Context, visitID string, answers []models.AnswerPayload) error {
	items, err := s.loadTemplate(ctx)
	if err != nil {
		return err
	}
	valid := make(map[string]bool, len(items))
	for _, it := range items {
		valid[it.ID] = true
	}

	for _, a := range answers {
		if a.ItemID == "" || !valid[a.ItemID] {
			continue
		}
		if _, err := s.DB.ExecContext(ctx,
			`INSERT INTO visit_answers
			   (id, visit_id, item_id, boolean_value, text_value, number_value, percentage_value, photo_path, observation)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), visitID, a.ItemID,
			a.BooleanValue, a.TextValue, a.NumberValue, a.PercentageValue, a.PhotoPath, a.Observation,
		); err != nil {
			return fmt.Errorf("insert answer for item %s: %w", a.ItemID, err)
		}
	}
	return nil
}

// fetchVisit loads one visit with resolved display names. Returns
// sql.ErrNoRows when the visit does not exist.
func (s *Server) fetchVisit(ctx context.Context, id string) (models.Visit, error) {
	var v models.Visit
	err := s.DB.QueryRowContext(ctx,
		`SELECT v.id, v.user_id, v.store_id, v.visited_at, v.state,
		        v.manager_name, v.plan_financial, v.plan_experience, v.plan_operational, v.comments,
		        v.created_at, v.updated_at,
		        u.name, st.name, d.name, rg.name
		 FROM visits v
		 JOIN users u ON u.id = v.user_id
		 JOIN stores st ON st.id = v.store_id
		 JOIN districts d ON d.id = st.district_id
		 JOIN regions rg ON rg.id = d.region_id
		 WHERE v.id = ?`, id,
	).Scan(&v.ID, &v.UserID, &v.StoreID, &v.Timestamp, &v.State,
		&v.ManagerName, &v.PlanFinancial, &v.PlanExperience, &v.PlanOperational, &v.Comments,
		&v.CreatedAt, &v.UpdatedAt,
		&v.UserName, &v.StoreName, &v.DistrictName, &v.RegionName)
	return v, err
}

// fetchAnswers loads a visit's answers joined with their template items, in
// template display order.
func (s *Server) fetchAnswers(ctx context.Context, visitID string) ([]models.VisitAnswer, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT va.id, va.visit_id, va.item_id,
		        va.boolean_value, va.text_value, va.number_value, va.percentage_value, va.photo_path, va.observation,
		        ci.title, ci.type, ci.sort_order, ci.section
		 FROM visit_answers va
		 JOIN checklist_items ci ON ci.id = va.item_id
		 WHERE va.visit_id = ?
		 ORDER BY ci.sort_order ASC`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []models.VisitAnswer{}
	for rows.Next() {
		var a models.VisitAnswer
		if err := rows.Scan(&a.ID, &a.VisitID, &a.ItemID,
			&a.BooleanValue, &a.TextValue, &a.NumberValue, &a.PercentageValue, &a.PhotoPath, &a.Observation,
			&a.Title, &a.Type, &a.Order, &a.Section); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// CreateVisit handles POST /api/visits
//
// This endpoint serves two callers with identical payloads: the live
// authoring flow and the offline sync drain. A "completed" create with
// answers is gated on the completion threshold; drafts are not validated at
// all, because saving partial progress is the whole point of a draft.
func (s *Server) CreateVisit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.VisitPayload
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.StoreID == "" {
		respondError(w, http.StatusBadRequest, "storeId is required")
		return
	}

	// A queued offline visit can reference a store that was deleted between
	// capture and sync. Reject with a message the drain can surface.
	var exists string
	err := s.DB.QueryRowContext(r.Context(), `SELECT id FROM stores WHERE id = ?`, req.StoreID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusBadRequest, "store not found; re-select the store and retry")
			return
		}
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	state := req.State
	if !validVisitStates[state] {
		state = models.VisitCompleted
	}
	// The gate covers synchronized too: a drained offline visit is a
	// completed visit that arrived late, not an exemption.
	if state != models.VisitDraft && req.Answers != nil {
		if err := s.gateCompletion(r.Context(), req.Answers); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	id := uuid.NewString()
	visitedAt := req.Timestamp
	if visitedAt == "" {
		visitedAt = time.Now().UTC().Format(timeLayout)
	}
	now := time.Now().UTC()

	if _, err := s.DB.ExecContext(r.Context(),
		`INSERT INTO visits
		   (id, user_id, store_id, visited_at, state, manager_name,
		    plan_financial, plan_experience, plan_operational, comments, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, req.StoreID, visitedAt, state,
		deref(req.ManagerName), deref(req.PlanFinancial), deref(req.PlanExperience),
		deref(req.PlanOperational), deref(req.Comments), now, now,
	); err != nil {
		s.logger().Error("create visit", "err", err)
		respondError(w, http.StatusInternalServerError, "could not create visit")
		return
	}

	if req.Answers != nil {
		if err := s.insertAnswers(r.Context(), id, req.Answers); err != nil {
			s.logger().Error("insert answers", "visit", id, "err", err)
			respondError(w, http.StatusInternalServerError, "could not save answers")
			return
		}
	}

	v, err := s.fetchVisit(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load created visit")
		return
	}
	respond(w, http.StatusCreated, v)
}

// UpdateVisit handles PUT /api/visits/{id}
//
// Partial-field semantics: only provided fields change. The answer set is
// the exception — when present it replaces the stored set wholesale
// (delete-then-reinsert), because answers are always sent complete and the
// UNIQUE(visit_id, item_id) constraint makes a row-by-row merge pointless.
func (s *Server) UpdateVisit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.VisitPayload
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var existing string
	if err := s.DB.QueryRowContext(r.Context(), `SELECT id FROM visits WHERE id = ?`, id).Scan(&existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "visit not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	if req.State != "" && req.State != models.VisitDraft && req.Answers != nil {
		if err := s.gateCompletion(r.Context(), req.Answers); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	now := time.Now().UTC()
	set := func(column string, value any) error {
		_, err := s.DB.ExecContext(r.Context(),
			`UPDATE visits SET `+column+` = ?, updated_at = ? WHERE id = ?`, value, now, id)
		return err
	}

	if req.StoreID != "" {
		var st string
		if err := s.DB.QueryRowContext(r.Context(), `SELECT id FROM stores WHERE id = ?`, req.StoreID).Scan(&st); err != nil {
			respondError(w, http.StatusBadRequest, "store not found; re-select the store and retry")
			return
		}
		if err := set("store_id", req.StoreID); err != nil {
			respondError(w, http.StatusInternalServerError, "could not update visit")
			return
		}
	}
	if req.Timestamp != "" {
		if err := set("visited_at", req.Timestamp); err != nil {
			respondError(w, http.StatusInternalServerError, "could not update visit")
			return
		}
	}
	for column, value := range map[string]*string{
		"manager_name":     req.ManagerName,
		"plan_financial":   req.PlanFinancial,
		"plan_experience":  req.PlanExperience,
		"plan_operational": req.PlanOperational,
		"comments":         req.Comments,
	} {
		if value == nil {
			continue
		}
		if err := set(column, *value); err != nil {
			respondError(w, http.StatusInternalServerError, "could not update visit")
			return
		}
	}
	if req.State != "" {
		if !validVisitStates[req.State] {
			respondError(w, http.StatusBadRequest, "state must be draft, completed, or synchronized")
			return
		}
		if err := set("state", string(req.State)); err != nil {
			respondError(w, http.StatusInternalServerError, "could not update visit")
			return
		}
	}

	if req.Answers != nil {
		if _, err := s.DB.ExecContext(r.Context(),
			`DELETE FROM visit_answers WHERE visit_id = ?`, id); err != nil {
			respondError(w, http.StatusInternalServerError, "could not replace answers")
			return
		}
		if err := s.insertAnswers(r.Context(), id, req.Answers); err != nil {
			s.logger().Error("replace answers", "visit", id, "err", err)
			respondError(w, http.StatusInternalServerError, "could not save answers")
			return
		}
	}

	v, err := s.fetchVisit(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load updated visit")
		return
	}
	respond(w, http.StatusOK, v)
}

// ListVisits handles GET /api/visits with optional filters:
// store_id, user_id, region_id, from, to (dates compared on visited_at).
func (s *Server) ListVisits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := `SELECT v.id, v.user_id, v.store_id, v.visited_at, v.state,
	                 v.manager_name, v.plan_financial, v.plan_experience, v.plan_operational, v.comments,
	                 v.created_at, v.updated_at,
	                 u.name, st.name, d.name, rg.name
	          FROM visits v
	          JOIN users u ON u.id = v.user_id
	          JOIN stores st ON st.id = v.store_id
	          JOIN districts d ON d.id = st.district_id
	          JOIN regions rg ON rg.id = d.region_id
	          WHERE 1=1`
	args := []any{}
	if v := q.Get("store_id"); v != "" {
		query += ` AND v.store_id = ?`
		args = append(args, v)
	}
	if v := q.Get("user_id"); v != "" {
		query += ` AND v.user_id = ?`
		args = append(args, v)
	}
	if v := q.Get("region_id"); v != "" {
		query += ` AND rg.id = ?`
		args = append(args, v)
	}
	if v := q.Get("from"); v != "" {
		query += ` AND date(v.visited_at) >= date(?)`
		args = append(args, v)
	}
	if v := q.Get("to"); v != "" {
		query += ` AND date(v.visited_at) <= date(?)`
		args = append(args, v)
	}
	query += ` ORDER BY v.visited_at DESC`

	rows, err := s.DB.QueryContext(r.Context(), query, args...)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	visits := []models.Visit{}
	for rows.Next() {
		var v models.Visit
		if err := rows.Scan(&v.ID, &v.UserID, &v.StoreID, &v.Timestamp, &v.State,
			&v.ManagerName, &v.PlanFinancial, &v.PlanExperience, &v.PlanOperational, &v.Comments,
			&v.CreatedAt, &v.UpdatedAt,
			&v.UserName, &v.StoreName, &v.DistrictName, &v.RegionName); err != nil {
			respondError(w, http.StatusInternalServerError, "scan error")
			return
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		respondError(w, http.StatusInternalServerError, "rows error")
		return
	}
	respond(w, http.StatusOK, visits)
}

// GetVisit handles GET /api/visits/{id}
// The response embeds the answers and the derived completion percentage.
func (s *Server) GetVisit(w http.ResponseWriter, r *http.Request) {
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
	v.Answers = answers

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
	v.ProgressPercent = &pct

	respond(w, http.StatusOK, v)
}

// DeleteVisit handles DELETE /api/visits/{id}
func (s *Server) DeleteVisit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var existing string
	if err := s.DB.QueryRowContext(r.Context(), `SELECT id FROM visits WHERE id = ?`, id).Scan(&existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "visit not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	if _, err := s.DB.ExecContext(r.Context(), `DELETE FROM visit_answers WHERE visit_id = ?`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "could not delete answers")
		return
	}
	if _, err := s.DB.ExecContext(r.Context(), `DELETE FROM visits WHERE id = ?`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "could not delete visit")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deref returns the pointed-to string, or "" for nil. Optional wire fields
// become plain columns with empty-string defaults.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
