package handlers

import (
	"net/http"
	"strings"
	"time"

	"storecheck/internal/models"

	"github.com/google/uuid"
)

// The org hierarchy (regions → districts → stores) is reference data for the
// field client: it caches these lists for offline store selection. The CRUD
// here is deliberately plain; the interesting consumers are elsewhere.

// ListRegions handles GET /api/regions
func (s *Server) ListRegions(w http.ResponseWriter, r *http.Request) {
	rows, err := s.DB.QueryContext(r.Context(),
		`SELECT id, name, created_at FROM regions ORDER BY name ASC`)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	// Initialised to empty slice so JSON encodes as [] not null when empty.
	regions := []models.Region{}
	for rows.Next() {
		var reg models.Region
		if err := rows.Scan(&reg.ID, &reg.Name, &reg.CreatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "scan error")
			return
		}
		regions = append(regions, reg)
	}
	if err := rows.Err(); err != nil {
		respondError(w, http.StatusInternalServerError, "rows error")
		return
	}
	respond(w, http.StatusOK, regions)
}

// CreateRegion handles POST /api/regions  (admin only)
func (s *Server) CreateRegion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	reg := models.Region{ID: uuid.NewString(), Name: req.Name, CreatedAt: time.Now().UTC()}
	if _, err := s.DB.ExecContext(r.Context(),
		`INSERT INTO regions (id, name, created_at) VALUES (?, ?, ?)`,
		reg.ID, reg.Name, reg.CreatedAt); err != nil {
		respondError(w, http.StatusInternalServerError, "could not create region")
		return
	}
	respond(w, http.StatusCreated, reg)
}

// ListDistricts handles GET /api/districts?region_id=<id>
func (s *Server) ListDistricts(w http.ResponseWriter, r *http.Request) {
	regionID := r.URL.Query().Get("region_id")

	query := `SELECT id, region_id, name, created_at FROM districts`
	args := []any{}
	if regionID != "" {
		query += ` WHERE region_id = ?`
		args = append(args, regionID)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.DB.QueryContext(r.Context(), query, args...)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	districts := []models.District{}
	for rows.Next() {
		var d models.District
		if err := rows.Scan(&d.ID, &d.RegionID, &d.Name, &d.CreatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "scan error")
			return
		}
		districts = append(districts, d)
	}
	if err := rows.Err(); err != nil {
		respondError(w, http.StatusInternalServerError, "rows error")
		return
	}
	respond(w, http.StatusOK, districts)
}

// CreateDistrict handles POST /api/districts  (admin only)
func (s *Server) CreateDistrict(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RegionID string `json:"region_id"`
		Name     string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.RegionID == "" {
		respondError(w, http.StatusBadRequest, "region_id and name are required")
		return
	}
	d := models.District{ID: uuid.NewString(), RegionID: req.RegionID, Name: req.Name, CreatedAt: time.Now().UTC()}
	if _, err := s.DB.ExecContext(r.Context(),
		`INSERT INTO districts (id, region_id, name, created_at) VALUES (?, ?, ?, ?)`,
		d.ID, d.RegionID, d.Name, d.CreatedAt); err != nil {
		respondError(w, http.StatusBadRequest, "could not create district; check the region exists")
		return
	}
	respond(w, http.StatusCreated, d)
}

// ListStores handles GET /api/stores?district_id=<id>
func (s *Server) ListStores(w http.ResponseWriter, r *http.Request) {
	districtID := r.URL.Query().Get("district_id")

	query := `SELECT id, district_id, name, address, format, created_at FROM stores`
	args := []any{}
	if districtID != "" {
		query += ` WHERE district_id = ?`
		args = append(args, districtID)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.DB.QueryContext(r.Context(), query, args...)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	stores := []models.Store{}
	for rows.Next() {
		var st models.Store
		if err := rows.Scan(&st.ID, &st.DistrictID, &st.Name, &st.Address, &st.Format, &st.CreatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "scan error")
			return
		}
		stores = append(stores, st)
	}
	if err := rows.Err(); err != nil {
		respondError(w, http.StatusInternalServerError, "rows error")
		return
	}
	respond(w, http.StatusOK, stores)
}

// CreateStore handles POST /api/stores  (admin only)
func (s *Server) CreateStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DistrictID string `json:"district_id"`
		Name       string `json:"name"`
		Address    string `json:"address"`
		Format     string `json:"format"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.DistrictID == "" {
		respondError(w, http.StatusBadRequest, "district_id and name are required")
		return
	}
	st := models.Store{
		ID:         uuid.NewString(),
		DistrictID: req.DistrictID,
		Name:       req.Name,
		Address:    req.Address,
		Format:     req.Format,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.DB.ExecContext(r.Context(),
		`INSERT INTO stores (id, district_id, name, address, format, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		st.ID, st.DistrictID, st.Name, st.Address, st.Format, st.CreatedAt); err != nil {
		respondError(w, http.StatusBadRequest, "could not create store; check the district exists and the format is valid")
		return
	}
	respond(w, http.StatusCreated, st)
}
