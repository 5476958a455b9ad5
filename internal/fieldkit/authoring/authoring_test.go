package authoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"storecheck/internal/fieldkit/api"
	"storecheck/internal/fieldkit/connectivity"
	"storecheck/internal/fieldkit/localstore"
	"storecheck/internal/models"
)

var testDBCounter uint64

func newTestStore(t *testing.T) *localstore.Store {
	t.Helper()
	id := atomic.AddUint64(&testDBCounter, 1)
	s, err := localstore.Open(fmt.Sprintf("file:authtest%d?mode=memory&cache=shared", id))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeServer implements the Server slice the session needs.
type fakeServer struct {
	template  []models.ChecklistItem
	created   []models.VisitPayload
	updated   []models.VisitPayload
	createErr error
	uploadErr error
}

func (f *fakeServer) Template(ctx context.Context) ([]models.ChecklistItem, error) {
	return f.template, nil
}
func (f *fakeServer) Regions(ctx context.Context) ([]models.Region, error) {
	return []models.Region{{ID: "reg-01", Name: "North"}}, nil
}
func (f *fakeServer) Districts(ctx context.Context, regionID string) ([]models.District, error) {
	return []models.District{{ID: "dist-01", RegionID: regionID, Name: "Downtown"}}, nil
}
func (f *fakeServer) Stores(ctx context.Context, districtID string) ([]models.Store, error) {
	return []models.Store{{ID: "st-001", DistrictID: districtID, Name: "Main St"}}, nil
}
func (f *fakeServer) CreateVisit(ctx context.Context, p models.VisitPayload) (models.Visit, error) {
	if f.createErr != nil {
		return models.Visit{}, f.createErr
	}
	f.created = append(f.created, p)
	return models.Visit{ID: fmt.Sprintf("srv-%d", len(f.created)), State: p.State}, nil
}
func (f *fakeServer) UpdateVisit(ctx context.Context, id string, p models.VisitPayload) (models.Visit, error) {
	f.updated = append(f.updated, p)
	return models.Visit{ID: id, State: p.State}, nil
}
func (f *fakeServer) UploadPhoto(ctx context.Context, filename string, r io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "/uploads/visits/uploaded-" + filename, nil
}

func booleanTemplate(n int) []models.ChecklistItem {
	items := make([]models.ChecklistItem, n)
	for i := range items {
		items[i] = models.ChecklistItem{
			ID:    fmt.Sprintf("item-%d", i+1),
			Title: fmt.Sprintf("Check %d", i+1),
			Type:  models.ItemBoolean,
			Order: i + 1,
		}
	}
	return items
}

// newSession builds a session with the given connectivity, walking it
// through region → district → store so caches fill along the way.
func newSession(t *testing.T, store *localstore.Store, srv *fakeServer, online bool) (*Session, *connectivity.Manual) {
	t.Helper()
	ctx := context.Background()
	oracle := connectivity.NewManual(true) // start online so lists cache
	s, err := New(ctx, store, srv, oracle, 80)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := s.Regions(ctx); err != nil {
		t.Fatalf("regions: %v", err)
	}
	if err := s.SelectRegion("reg-01"); err != nil {
		t.Fatalf("select region: %v", err)
	}
	if _, err := s.Districts(ctx); err != nil {
		t.Fatalf("districts: %v", err)
	}
	if err := s.SelectDistrict("dist-01"); err != nil {
		t.Fatalf("select district: %v", err)
	}
	if _, err := s.Stores(ctx); err != nil {
		t.Fatalf("stores: %v", err)
	}
	if err := s.SelectStore(ctx, "st-001"); err != nil {
		t.Fatalf("select store: %v", err)
	}
	oracle.Set(online)
	return s, oracle
}

func answerN(t *testing.T, s *Session, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("item-%d", i)
		if err := s.SetAnswer(id, models.BoolValue(true), ""); err != nil {
			t.Fatalf("answer %s: %v", id, err)
		}
	}
}

func TestCascadeSelectionResets(t *testing.T) {
	store := newTestStore(t)
	srv := &fakeServer{template: booleanTemplate(5)}
	s, _ := newSession(t, store, srv, true)
	answerN(t, s, 2)

	// Re-picking the region invalidates everything below it.
	if err := s.SelectRegion("reg-02"); err != nil {
		t.Fatalf("select region: %v", err)
	}
	sel := s.Selection()
	if sel.DistrictID != "" || sel.StoreID != "" {
		t.Errorf("children not cleared: %+v", sel)
	}
	if s.State() != StateSelectingStore {
		t.Errorf("state: got %s, want selecting-store", s.State())
	}
	// Answers survive the re-selection.
	if got := s.Progress(); got != 40 {
		t.Errorf("progress after reset: got %d, want 40", got)
	}
}

func TestSelectDistrict_RequiresRegion(t *testing.T) {
	store := newTestStore(t)
	srv := &fakeServer{template: booleanTemplate(2)}
	oracle := connectivity.NewManual(true)
	s, err := New(context.Background(), store, srv, oracle, 80)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SelectDistrict("dist-01"); !errors.Is(err, ErrWrongState) {
		t.Errorf("got %v, want ErrWrongState", err)
	}
}

func TestSetAnswer_TypeMismatch(t *testing.T) {
	store := newTestStore(t)
	srv := &fakeServer{template: booleanTemplate(2)}
	s, _ := newSession(t, store, srv, true)

	if err := s.SetAnswer("item-1", models.TextValue("nope"), ""); err == nil {
		t.Error("expected a type mismatch error")
	}
	if err := s.SetAnswer("missing", models.BoolValue(true), ""); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("got %v, want ErrUnknownItem", err)
	}
}

func TestSubmit_BelowThresholdStaysAuthoring(t *testing.T) {
	store := newTestStore(t)
	srv := &fakeServer{template: booleanTemplate(5)}
	s, _ := newSession(t, store, srv, true)
	answerN(t, s, 3) // 60%

	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("got %v, want ErrIncomplete", err)
	}
	if s.State() != StateAuthoring {
		t.Errorf("state after gate: got %s, want authoring", s.State())
	}
	if len(srv.created) != 0 {
		t.Error("nothing should reach the server below the threshold")
	}
}

func TestSubmit_OnlinePostsCompleted(t *testing.T) {
	store := newTestStore(t)
	srv := &fakeServer{template: booleanTemplate(5)}
	s, _ := newSession(t, store, srv, true)
	answerN(t, s, 4) // exactly 80%

	queued, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if queued {
		t.Error("online submit should not queue")
	}
	if s.State() != StateSubmitted {
		t.Errorf("state: got %s", s.State())
	}
	if len(srv.created) != 1 || srv.created[0].State != models.VisitCompleted {
		t.Fatalf("server payload: %+v", srv.created)
	}
	if srv.created[0].StoreID != "st-001" {
		t.Errorf("storeId: got %q", srv.created[0].StoreID)
	}
}

func TestSubmit_OfflineQueuesWithSnapshot(t *testing.T) {
	store := newTestStore(t)
	srv := &fakeServer{template: booleanTemplate(5)}
	s, _ := newSession(t, store, srv, false) // went offline after selection
	answerN(t, s, 5)

	queued, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !queued {
		t.Fatal("offline submit should queue")
	}
	if s.State() != StateSubmitted {
		t.Errorf("state: got %s", s.State())
	}
	if len(srv.created) != 0 {
		t.Error("nothing should reach the server offline")
	}

	pending, err := store.Pending(context.Background())
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 queued visit, got %d", len(pending))
	}
	entry := pending[0]
	if !strings.HasPrefix(entry.ID, models.OfflineIDPrefix) {
		t.Errorf("queued id %q lacks the offline prefix", entry.ID)
	}
	if entry.Display.StoreName != "Main St" || entry.Display.RegionName != "North" {
		t.Errorf("display snapshot: %+v", entry.Display)
	}
	if len(entry.Answers) != 5 || entry.Answers[0].Title == "" {
		t.Errorf("queued answers not denormalized: %+v", entry.Answers)
	}

	// The draft slot is cleared on terminal submission.
	if _, err := store.LoadDraft(context.Background()); !errors.Is(err, localstore.ErrNotFound) {
		t.Errorf("draft after submit: got %v, want ErrNotFound", err)
	}
}

func TestSubmit_ServerRejectionDoesNotQueue(t *testing.T) {
	store := newTestStore(t)
	srv := &fakeServer{
		template:  booleanTemplate(2),
		createErr: &api.APIError{Status: http.StatusBadRequest, Message: "store not found; re-select the store and retry"},
	}
	s, _ := newSession(t, store, srv, true)
	answerN(t, s, 2)

	if _, err := s.Submit(context.Background()); err == nil {
		t.Fatal("expected the rejection to surface")
	}
	if s.State() != StateAuthoring {
		t.Errorf("state: got %s, want authoring", s.State())
	}
	n, _ := store.QueueLen(context.Background())
	if n != 0 {
		t.Error("a server rejection must not be queued for retry")
	}
}

func TestSubmit_TransportFailureFallsBackToQueue(t *testing.T) {
	store := newTestStore(t)
	srv := &fakeServer{
		template:  booleanTemplate(2),
		createErr: errors.New("dial tcp: connection refused"),
	}
	s, _ := newSession(t, store, srv, true) // oracle still believes online

	answerN(t, s, 2)
	queued, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !queued {
		t.Error("transport failure mid-submit should queue the visit")
	}
}

func TestSaveProgress_OfflineRestores(t *testing.T) {
	store := newTestStore(t)
	srv := &fakeServer{template: booleanTemplate(5)}
	s, _ := newSession(t, store, srv, false)
	answerN(t, s, 2)
	s.SetManagerName("Pat Morales")

	if err := s.SaveProgress(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(srv.created) != 0 {
		t.Error("offline save must not hit the server")
	}

	// A new session (same device, app restarted) resumes the draft.
	oracle := connectivity.NewManual(false)
	s2, err := New(context.Background(), store, srv, oracle, 80)
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	if s2.State() != StateAuthoring {
		t.Fatalf("restored state: got %s, want authoring", s2.State())
	}
	if s2.Selection().StoreID != "st-001" {
		t.Errorf("restored selection: %+v", s2.Selection())
	}
	if got := s2.Progress(); got != 40 {
		t.Errorf("restored progress: got %d, want 40", got)
	}
}

func TestSaveProgress_OnlineMirrorsDraftOnce(t *testing.T) {
	store := newTestStore(t)
	srv := &fakeServer{template: booleanTemplate(5)}
	s, _ := newSession(t, store, srv, true)
	answerN(t, s, 1)

	if err := s.SaveProgress(context.Background()); err != nil {
		t.Fatalf("first save: %v", err)
	}
	answerN(t, s, 2)
	if err := s.SaveProgress(context.Background()); err != nil {
		t.Fatalf("second save: %v", err)
	}

	// One create, then updates — no duplicate server drafts.
	if len(srv.created) != 1 {
		t.Errorf("creates: got %d, want 1", len(srv.created))
	}
	if len(srv.updated) != 1 {
		t.Errorf("updates: got %d, want 1", len(srv.updated))
	}
	if srv.created[0].State != models.VisitDraft {
		t.Errorf("mirrored state: got %q, want draft", srv.created[0].State)
	}
}

func TestAttachPhoto_OnlineUploadsOfflinePreviews(t *testing.T) {
	template := append(booleanTemplate(1), models.ChecklistItem{
		ID: "photo-1", Title: "Facade photo", Type: models.ItemPhoto, Order: 2,
	})
	store := newTestStore(t)
	srv := &fakeServer{template: template}
	s, oracle := newSession(t, store, srv, true)

	// Online: the upload happens now and the answer holds the server path.
	err := s.AttachPhoto(context.Background(), "photo-1", "/tmp/a.jpg", "a.jpg", strings.NewReader("jpegbytes"))
	if err != nil {
		t.Fatalf("attach online: %v", err)
	}
	if got := s.Progress(); got != 50 {
		t.Errorf("progress: got %d, want 50", got)
	}

	// Offline: only a local preview. It still counts on screen.
	s.ClearAnswer("photo-1")
	oracle.Set(false)
	err = s.AttachPhoto(context.Background(), "photo-1", "/tmp/b.jpg", "b.jpg", strings.NewReader("jpegbytes"))
	if err != nil {
		t.Fatalf("attach offline: %v", err)
	}
	if got := s.Progress(); got != 50 {
		t.Errorf("progress with preview: got %d, want 50", got)
	}
}
