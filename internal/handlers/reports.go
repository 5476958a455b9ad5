package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"storecheck/internal/completion"
	"storecheck/internal/models"
)

// StoreReport is the aggregate view for one store's visit history.
type StoreReport struct {
	Store            models.Store   `json:"store"`
	DistrictName     string         `json:"districtName"`
	RegionName       string         `json:"regionName"`
	TotalVisits      int            `json:"totalVisits"`
	VisitsByState    map[string]int `json:"visitsByState"`
	LastVisitAt      string         `json:"lastVisitAt,omitempty"`
	AverageCompletion int           `json:"averageCompletion"`
	Visits           []models.Visit `json:"visits"`
}

// StoreReportHandler handles GET /api/reports/store/{id}
//
// Managers use this before visiting a location: visit cadence, how complete
// past audits were, and the most recent action plans.
func (s *Server) StoreReportHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var rep StoreReport
	err := s.DB.QueryRowContext(r.Context(),
		`SELECT st.id, st.district_id, st.name, st.address, st.format, st.created_at, d.name, rg.name
		 FROM stores st
		 JOIN districts d ON d.id = st.district_id
		 JOIN regions rg ON rg.id = d.region_id
		 WHERE st.id = ?`, id,
	).Scan(&rep.Store.ID, &rep.Store.DistrictID, &rep.Store.Name, &rep.Store.Address,
		&rep.Store.Format, &rep.Store.CreatedAt, &rep.DistrictName, &rep.RegionName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "store not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	rows, err := s.DB.QueryContext(r.Context(),
		`SELECT v.id, v.user_id, v.store_id, v.visited_at, v.state,
		        v.manager_name, v.plan_financial, v.plan_experience, v.plan_operational, v.comments,
		        v.created_at, v.updated_at, u.name
		 FROM visits v
		 JOIN users u ON u.id = v.user_id
		 WHERE v.store_id = ?
		 ORDER BY v.visited_at DESC`, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	rep.VisitsByState = map[string]int{}
	rep.Visits = []models.Visit{}
	for rows.Next() {
		var v models.Visit
		if err := rows.Scan(&v.ID, &v.UserID, &v.StoreID, &v.Timestamp, &v.State,
			&v.ManagerName, &v.PlanFinancial, &v.PlanExperience, &v.PlanOperational, &v.Comments,
			&v.CreatedAt, &v.UpdatedAt, &v.UserName); err != nil {
			respondError(w, http.StatusInternalServerError, "scan error")
			return
		}
		v.StoreName = rep.Store.Name
		v.DistrictName = rep.DistrictName
		v.RegionName = rep.RegionName
		rep.Visits = append(rep.Visits, v)
		rep.VisitsByState[string(v.State)]++
	}
	if err := rows.Err(); err != nil {
		respondError(w, http.StatusInternalServerError, "rows error")
		return
	}
	rep.TotalVisits = len(rep.Visits)
	if rep.TotalVisits > 0 {
		rep.LastVisitAt = rep.Visits[0].Timestamp
	}

	// Average completion across visits, computed against the current
	// template. Historic visits answered against older templates score
	// lower here; that is visible drift worth surfacing, not a bug.
	items, err := s.loadTemplate(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	total := 0
	for i := range rep.Visits {
		answers, err := s.fetchAnswers(r.Context(), rep.Visits[i].ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "database error")
			return
		}
		payloads := make([]models.AnswerPayload, 0, len(answers))
		for _, a := range answers {
			payloads = append(payloads, a.AnswerPayload)
		}
		pct := completion.Server(items, payloads)
		rep.Visits[i].ProgressPercent = &pct
		total += pct
	}
	if rep.TotalVisits > 0 {
		rep.AverageCompletion = total / rep.TotalVisits
	}

	respond(w, http.StatusOK, rep)
}
