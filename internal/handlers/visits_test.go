package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storecheck/internal/models"
)

// postVisit submits a create request as the given user and returns the recorder.
func postVisit(t *testing.T, srv *Server, userID string, payload models.VisitPayload) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/visits", jsonBody(t, payload))
	req = ctxWithUser(req, userID, "evaluator")
	rec := httptest.NewRecorder()
	srv.CreateVisit(rec, req)
	return rec
}

func TestCreateVisit_CompletedAtThreshold(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeID := seedStore(t, srv)
	items := seedBooleanTemplate(t, srv, 5)

	// 4 of 5 answered is exactly 80% — the gate is inclusive.
	rec := postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID,
		State:   models.VisitCompleted,
		Answers: boolAnswers(items[:4]),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var v models.Visit
	json.NewDecoder(rec.Body).Decode(&v)
	if v.StoreName != "Main St" || v.RegionName != "North" {
		t.Errorf("display names not resolved: store=%q region=%q", v.StoreName, v.RegionName)
	}

	var count int
	srv.DB.QueryRow(`SELECT COUNT(*) FROM visit_answers WHERE visit_id = ?`, v.ID).Scan(&count)
	if count != 4 {
		t.Errorf("expected 4 stored answers, got %d", count)
	}
}

func TestCreateVisit_BelowThreshold(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeID := seedStore(t, srv)
	items := seedBooleanTemplate(t, srv, 5)

	// 3 of 5 is 60% — rejected for a completed visit.
	rec := postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID,
		State:   models.VisitCompleted,
		Answers: boolAnswers(items[:3]),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateVisit_DraftSkipsGate(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeID := seedStore(t, srv)
	items := seedBooleanTemplate(t, srv, 5)

	// A draft with one answer is fine; drafts are never gated.
	rec := postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID,
		State:   models.VisitDraft,
		Answers: boolAnswers(items[:1]),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateVisit_SynchronizedIsGatedToo(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeID := seedStore(t, srv)
	items := seedBooleanTemplate(t, srv, 5)

	// "synchronized" is a server-side record state, but if a caller sends
	// it on create it gets the same completion gate as "completed".
	rec := postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID,
		State:   models.VisitSynchronized,
		Answers: boolAnswers(items[:3]),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for 60%% synchronized, got %d", rec.Code)
	}

	rec = postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID,
		State:   models.VisitSynchronized,
		Answers: boolAnswers(items[:4]),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var v models.Visit
	json.NewDecoder(rec.Body).Decode(&v)
	if v.State != models.VisitSynchronized {
		t.Errorf("state: got %q, want synchronized", v.State)
	}
}

func TestCreateVisit_UnknownStore(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	seedBooleanTemplate(t, srv, 2)

	rec := postVisit(t, srv, userID, models.VisitPayload{StoreID: "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateVisit_SkipsUnknownItems(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeID := seedStore(t, srv)
	items := seedBooleanTemplate(t, srv, 2)

	// One answer references an item the template no longer has (stale
	// client). The visit is saved; the stray answer is dropped.
	answers := append(boolAnswers(items), models.BoolValue(true).Payload("ghost-item", ""))
	rec := postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID,
		State:   models.VisitCompleted,
		Answers: answers,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var v models.Visit
	json.NewDecoder(rec.Body).Decode(&v)
	var count int
	srv.DB.QueryRow(`SELECT COUNT(*) FROM visit_answers WHERE visit_id = ?`, v.ID).Scan(&count)
	if count != 2 {
		t.Errorf("expected 2 stored answers, got %d", count)
	}
}

func TestUpdateVisit_ReplacesAnswerSet(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeID := seedStore(t, srv)
	items := seedBooleanTemplate(t, srv, 5)

	rec := postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID,
		State:   models.VisitCompleted,
		Answers: boolAnswers(items[:4]),
	})
	var v models.Visit
	json.NewDecoder(rec.Body).Decode(&v)

	// Replace with a different 4-item set: item-1 out, item-5 in.
	req := httptest.NewRequest(http.MethodPut, "/api/visits/"+v.ID, jsonBody(t, models.VisitPayload{
		State:   models.VisitCompleted,
		Answers: boolAnswers(items[1:]),
	}))
	req.SetPathValue("id", v.ID)
	req = ctxWithUser(req, userID, "evaluator")
	rec2 := httptest.NewRecorder()
	srv.UpdateVisit(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}

	var count int
	srv.DB.QueryRow(`SELECT COUNT(*) FROM visit_answers WHERE visit_id = ?`, v.ID).Scan(&count)
	if count != 4 {
		t.Errorf("expected 4 answers after replace, got %d", count)
	}
	srv.DB.QueryRow(`SELECT COUNT(*) FROM visit_answers WHERE visit_id = ? AND item_id = 'item-1'`, v.ID).Scan(&count)
	if count != 0 {
		t.Error("item-1 answer should be gone after replace")
	}
}

func TestUpdateVisit_PartialFields(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeID := seedStore(t, srv)
	items := seedBooleanTemplate(t, srv, 2)

	rec := postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID,
		State:   models.VisitCompleted,
		Answers: boolAnswers(items),
	})
	var v models.Visit
	json.NewDecoder(rec.Body).Decode(&v)

	// Only managerName in the body: everything else must survive.
	manager := "Pat Morales"
	req := httptest.NewRequest(http.MethodPut, "/api/visits/"+v.ID,
		jsonBody(t, models.VisitPayload{ManagerName: &manager}))
	req.SetPathValue("id", v.ID)
	req = ctxWithUser(req, userID, "evaluator")
	rec2 := httptest.NewRecorder()
	srv.UpdateVisit(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}

	var updated models.Visit
	json.NewDecoder(rec2.Body).Decode(&updated)
	if updated.ManagerName != manager {
		t.Errorf("managerName: got %q", updated.ManagerName)
	}
	if updated.State != models.VisitCompleted {
		t.Errorf("state should be untouched, got %q", updated.State)
	}
	var count int
	srv.DB.QueryRow(`SELECT COUNT(*) FROM visit_answers WHERE visit_id = ?`, v.ID).Scan(&count)
	if count != 2 {
		t.Errorf("answers should be untouched when omitted, got %d", count)
	}
}

func TestGetVisit_ProgressDerived(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeID := seedStore(t, srv)
	items := seedBooleanTemplate(t, srv, 5)

	rec := postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID,
		State:   models.VisitCompleted,
		Answers: boolAnswers(items[:4]),
	})
	var created models.Visit
	json.NewDecoder(rec.Body).Decode(&created)

	req := httptest.NewRequest(http.MethodGet, "/api/visits/"+created.ID, nil)
	req.SetPathValue("id", created.ID)
	req = ctxWithUser(req, userID, "evaluator")
	rec2 := httptest.NewRecorder()
	srv.GetVisit(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}

	var v models.Visit
	json.NewDecoder(rec2.Body).Decode(&v)
	if v.ProgressPercent == nil || *v.ProgressPercent != 80 {
		t.Fatalf("progressPercent: got %v, want 80", v.ProgressPercent)
	}
	if len(v.Answers) != 4 {
		t.Errorf("expected 4 answers, got %d", len(v.Answers))
	}
}

func TestListVisits_StoreFilter(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeA := seedStore(t, srv)
	storeB := seedStore(t, srv)
	seedBooleanTemplate(t, srv, 1)

	for _, st := range []string{storeA, storeA, storeB} {
		rec := postVisit(t, srv, userID, models.VisitPayload{StoreID: st, State: models.VisitDraft})
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed visit: got %d: %s", rec.Code, rec.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/visits?store_id="+storeA, nil)
	req = ctxWithUser(req, userID, "evaluator")
	rec := httptest.NewRecorder()
	srv.ListVisits(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var visits []models.Visit
	json.NewDecoder(rec.Body).Decode(&visits)
	if len(visits) != 2 {
		t.Errorf("expected 2 visits for store A, got %d", len(visits))
	}
}

func TestDeleteVisit(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeID := seedStore(t, srv)
	items := seedBooleanTemplate(t, srv, 1)

	rec := postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID, State: models.VisitCompleted, Answers: boolAnswers(items),
	})
	var v models.Visit
	json.NewDecoder(rec.Body).Decode(&v)

	req := httptest.NewRequest(http.MethodDelete, "/api/visits/"+v.ID, nil)
	req.SetPathValue("id", v.ID)
	req = ctxWithUser(req, userID, "evaluator")
	rec2 := httptest.NewRecorder()
	srv.DeleteVisit(rec2, req)
	if rec2.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec2.Code)
	}

	var count int
	srv.DB.QueryRow(`SELECT COUNT(*) FROM visit_answers WHERE visit_id = ?`, v.ID).Scan(&count)
	if count != 0 {
		t.Errorf("answers should cascade on delete, got %d", count)
	}
}

func TestVisitPDF_GateAndContentType(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeID := seedStore(t, srv)
	items := seedBooleanTemplate(t, srv, 5)

	// A draft with 1/5 answered: the PDF gate must reject it with JSON.
	rec := postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID, State: models.VisitDraft, Answers: boolAnswers(items[:1]),
	})
	var draft models.Visit
	json.NewDecoder(rec.Body).Decode(&draft)

	req := httptest.NewRequest(http.MethodGet, "/api/visits/"+draft.ID+"/pdf", nil)
	req.SetPathValue("id", draft.ID)
	req = ctxWithUser(req, userID, "evaluator")
	rec2 := httptest.NewRecorder()
	srv.VisitPDF(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 below threshold, got %d", rec2.Code)
	}
	if ct := rec2.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("gate rejection should be JSON, got %q", ct)
	}

	// A complete visit exports a real PDF.
	rec = postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID, State: models.VisitCompleted, Answers: boolAnswers(items),
	})
	var full models.Visit
	json.NewDecoder(rec.Body).Decode(&full)

	req = httptest.NewRequest(http.MethodGet, "/api/visits/"+full.ID+"/pdf", nil)
	req.SetPathValue("id", full.ID)
	req = ctxWithUser(req, userID, "evaluator")
	rec3 := httptest.NewRecorder()
	srv.VisitPDF(rec3, req)
	if rec3.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec3.Code, rec3.Body.String())
	}
	if ct := rec3.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if !strings.HasPrefix(rec3.Body.String(), "%PDF-") {
		t.Error("body does not start with a PDF header")
	}
}

func TestEmailVisit_NoRelayReturnsSummary(t *testing.T) {
	srv := newTestServer(t)
	userID := seedEvaluator(t, srv)
	storeID := seedStore(t, srv)
	items := seedBooleanTemplate(t, srv, 2)

	rec := postVisit(t, srv, userID, models.VisitPayload{
		StoreID: storeID, State: models.VisitCompleted, Answers: boolAnswers(items),
	})
	var v models.Visit
	json.NewDecoder(rec.Body).Decode(&v)

	req := httptest.NewRequest(http.MethodPost, "/api/visits/"+v.ID+"/email",
		jsonBody(t, map[string][]string{"to": {"boss@example.com"}}))
	req.SetPathValue("id", v.ID)
	req = ctxWithUser(req, userID, "evaluator")
	rec2 := httptest.NewRecorder()
	srv.EmailVisit(rec2, req)

	// The test server has no SMTP relay: 503, but with the rendered
	// summary so the caller still gets the content.
	if rec2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec2.Code, rec2.Body.String())
	}
	var resp map[string]string
	json.NewDecoder(rec2.Body).Decode(&resp)
	if !strings.Contains(resp["summary"], "Main St") {
		t.Errorf("summary should mention the store, got: %s", resp["summary"])
	}
}
