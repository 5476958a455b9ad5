package handlers

import (
	"context"
	"net/http"
	"strings"

	"storecheck/internal/models"

	"github.com/google/uuid"
)

// loadTemplate reads the full checklist template in display order. Shared by
// the template endpoint, the completion gates in visits.go, and the report
// builders.
func (s *Server) loadTemplate(ctx context.Context) ([]models.ChecklistItem, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, type, sort_order, required, section
		 FROM checklist_items ORDER BY sort_order ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.ChecklistItem{}
	for rows.Next() {
		var it models.ChecklistItem
		var required int
		if err := rows.Scan(&it.ID, &it.Title, &it.Type, &it.Order, &required, &it.Section); err != nil {
			return nil, err
		}
		it.Required = required != 0
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetTemplate handles GET /api/checklist/template
//
// The client caches this response under a versioned cache key, so template
// shape changes invalidate stale caches by virtue of the key changing — the
// server never needs a cache-bust protocol.
func (s *Server) GetTemplate(w http.ResponseWriter, r *http.Request) {
	items, err := s.loadTemplate(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	respond(w, http.StatusOK, items)
}

// CreateTemplateItem handles POST /api/checklist/template  (admin only)
func (s *Server) CreateTemplateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string          `json:"title"`
		Type     models.ItemType `json:"type"`
		Order    int             `json:"order"`
		Required *bool           `json:"required"`
		Section  string          `json:"section"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.Type == "" {
		respondError(w, http.StatusBadRequest, "title and type are required")
		return
	}
	required := 1
	if req.Required != nil && !*req.Required {
		required = 0
	}

	it := models.ChecklistItem{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Type:     req.Type,
		Order:    req.Order,
		Required: required != 0,
		Section:  req.Section,
	}
	if _, err := s.DB.ExecContext(r.Context(),
		`INSERT INTO checklist_items (id, title, type, sort_order, required, section)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		it.ID, it.Title, it.Type, it.Order, required, it.Section); err != nil {
		respondError(w, http.StatusBadRequest, "could not create item; check the type is valid")
		return
	}
	respond(w, http.StatusCreated, it)
}

// UpdateTemplateItem handles PUT /api/checklist/template/{id}  (admin only)
//
// Partial update: only the fields present in the body change. The item type
// is deliberately immutable — retyping an item would silently invalidate
// every stored answer for it; delete and re-create instead.
func (s *Server) UpdateTemplateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Title    *string `json:"title"`
		Order    *int    `json:"order"`
		Required *bool   `json:"required"`
		Section  *string `json:"section"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	columns := []string{}
	args := []any{}
	set := func(column string, value any) {
		columns = append(columns, column+" = ?")
		args = append(args, value)
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			respondError(w, http.StatusBadRequest, "title cannot be empty")
			return
		}
		set("title", title)
	}
	if req.Order != nil {
		set("sort_order", *req.Order)
	}
	if req.Required != nil {
		required := 0
		if *req.Required {
			required = 1
		}
		set("required", required)
	}
	if req.Section != nil {
		set("section", *req.Section)
	}
	if len(columns) == 0 {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	args = append(args, id)
	res, err := s.DB.ExecContext(r.Context(),
		`UPDATE checklist_items SET `+strings.Join(columns, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		respondError(w, http.StatusNotFound, "checklist item not found")
		return
	}

	var it models.ChecklistItem
	var required int
	err = s.DB.QueryRowContext(r.Context(),
		`SELECT id, title, type, sort_order, required, section
		 FROM checklist_items WHERE id = ?`, id).
		Scan(&it.ID, &it.Title, &it.Type, &it.Order, &required, &it.Section)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	it.Required = required != 0
	respond(w, http.StatusOK, it)
}

// DeleteTemplateItem handles DELETE /api/checklist/template/{id}  (admin only)
func (s *Server) DeleteTemplateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.DB.ExecContext(r.Context(),
		`DELETE FROM checklist_items WHERE id = ?`, id); err != nil {
		respondError(w, http.StatusConflict, "item is referenced by existing visit answers")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
