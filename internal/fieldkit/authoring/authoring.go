// Package authoring drives one visit from store selection to submission.
//
// The session is a small state machine:
//
//	selecting-store → authoring → submitting → submitted
//	                      ↑            │
//	                      └── gate ────┘  (incomplete submit bounces back)
//
// It works identically online and offline; the only behavioral fork is at
// the persistence edges (save, submit, photo attach), where the
// connectivity oracle decides between the server and the local store.
package authoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"storecheck/internal/completion"
	"storecheck/internal/fieldkit/api"
	"storecheck/internal/fieldkit/connectivity"
	"storecheck/internal/fieldkit/localstore"
	"storecheck/internal/models"

	"github.com/google/uuid"
)

// State names one phase of the authoring flow.
type State string

const (
	StateSelectingStore State = "selecting-store"
	StateAuthoring      State = "authoring"
	StateSubmitting     State = "submitting"
	StateSubmitted      State = "submitted"
)

var (
	// ErrWrongState is returned when an operation is called outside the
	// phase it belongs to.
	ErrWrongState = errors.New("authoring: operation not valid in current state")
	// ErrIncomplete is returned by Submit when the checklist is below the
	// completion threshold. The session stays in authoring.
	ErrIncomplete = errors.New("authoring: checklist below completion threshold")
	// ErrUnknownItem is returned for answers referencing no template item.
	ErrUnknownItem = errors.New("authoring: unknown checklist item")
)

// Versioned cache keys. Bumping a version orphans the old entries instead of
// migrating them; the next online fetch repopulates.
const (
	templateCacheKey = "template:v1"
	regionsCacheKey  = "regions:v1"
)

func districtsCacheKey(regionID string) string { return "districts:v1:" + regionID }
func storesCacheKey(districtID string) string  { return "stores:v1:" + districtID }

// Server is the slice of the API client the session uses. *api.Client
// satisfies it; tests substitute fakes.
type Server interface {
	Template(ctx context.Context) ([]models.ChecklistItem, error)
	Regions(ctx context.Context) ([]models.Region, error)
	Districts(ctx context.Context, regionID string) ([]models.District, error)
	Stores(ctx context.Context, districtID string) ([]models.Store, error)
	CreateVisit(ctx context.Context, p models.VisitPayload) (models.Visit, error)
	UpdateVisit(ctx context.Context, id string, p models.VisitPayload) (models.Visit, error)
	UploadPhoto(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Session is one in-progress visit. Not safe for concurrent use from
// multiple goroutines except where noted; the UI drives it from one place.
type Session struct {
	mu sync.Mutex

	store     *localstore.Store
	server    Server
	oracle    connectivity.Oracle
	threshold int

	state    State
	template []models.ChecklistItem

	selection models.HierarchySelection
	names     models.DisplaySnapshot

	answers  map[string]models.AnswerPayload
	previews map[string]string // itemID → local photo path, pending upload
	itemType map[string]models.ItemType

	managerName     string
	planFinancial   string
	planExperience  string
	planOperational string
	comments        string

	// serverDraftID is set once an online SaveProgress created a server
	// draft; later saves update it instead of creating duplicates.
	serverDraftID string
}

// New opens a session: loads the checklist template (server first, cache
// fallback) and restores any saved draft.
func New(ctx context.Context, store *localstore.Store, server Server, oracle connectivity.Oracle, threshold int) (*Session, error) {
	s := &Session{
		store:     store,
		server:    server,
		oracle:    oracle,
		threshold: threshold,
		state:     StateSelectingStore,
		answers:   map[string]models.AnswerPayload{},
		previews:  map[string]string{},
	}

	if err := s.loadTemplate(ctx); err != nil {
		return nil, err
	}
	s.restoreDraft(ctx)
	return s, nil
}

// loadTemplate fetches online and refreshes the cache, or falls back to the
// cached copy. A client that has never been online has no template and
// cannot author — that is a hard error.
func (s *Session) loadTemplate(ctx context.Context) error {
	if s.oracle.Online() {
		items, err := s.server.Template(ctx)
		if err == nil {
			s.template = items
			s.indexTemplate()
			_ = s.store.PutCache(ctx, templateCacheKey, items)
			return nil
		}
	}
	var items []models.ChecklistItem
	if err := s.store.GetCache(ctx, templateCacheKey, &items); err != nil {
		return fmt.Errorf("authoring: no checklist template available offline: %w", err)
	}
	s.template = items
	s.indexTemplate()
	return nil
}

func (s *Session) indexTemplate() {
	s.itemType = make(map[string]models.ItemType, len(s.template))
	for _, it := range s.template {
		s.itemType[it.ID] = it.Type
	}
}

// restoreDraft resumes a previously saved draft, including the selection.
// Best effort: a missing or corrupt draft just means starting fresh.
func (s *Session) restoreDraft(ctx context.Context) {
	d, err := s.store.LoadDraft(ctx)
	if err != nil {
		return
	}
	s.selection = d.Selection
	s.answers = d.Answers
	if s.answers == nil {
		s.answers = map[string]models.AnswerPayload{}
	}
	s.managerName = d.ManagerName
	s.planFinancial = d.PlanFinancial
	s.planExperience = d.PlanExperience
	s.planOperational = d.PlanOperational
	if s.selection.StoreID != "" {
		s.state = StateAuthoring
		s.resolveNames(ctx)
	}
}

// State reports the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Template returns the checklist items in display order.
func (s *Session) Template() []models.ChecklistItem {
	return s.template
}

// Selection returns the current hierarchy selection.
func (s *Session) Selection() models.HierarchySelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// ---- Store selection ----

// Regions lists the selectable regions, online or from cache.
func (s *Session) Regions(ctx context.Context) ([]models.Region, error) {
	if s.oracle.Online() {
		regions, err := s.server.Regions(ctx)
		if err == nil {
			_ = s.store.PutCache(ctx, regionsCacheKey, regions)
			return regions, nil
		}
	}
	var regions []models.Region
	if err := s.store.GetCache(ctx, regionsCacheKey, &regions); err != nil {
		return nil, fmt.Errorf("authoring: regions unavailable offline: %w", err)
	}
	return regions, nil
}

// Districts lists the districts under the selected region.
func (s *Session) Districts(ctx context.Context) ([]models.District, error) {
	s.mu.Lock()
	regionID := s.selection.RegionID
	s.mu.Unlock()
	if regionID == "" {
		return nil, fmt.Errorf("%w: select a region first", ErrWrongState)
	}
	if s.oracle.Online() {
		districts, err := s.server.Districts(ctx, regionID)
		if err == nil {
			_ = s.store.PutCache(ctx, districtsCacheKey(regionID), districts)
			return districts, nil
		}
	}
	var districts []models.District
	if err := s.store.GetCache(ctx, districtsCacheKey(regionID), &districts); err != nil {
		return nil, fmt.Errorf("authoring: districts unavailable offline: %w", err)
	}
	return districts, nil
}

// Stores lists the stores under the selected district.
func (s *Session) Stores(ctx context.Context) ([]models.Store, error) {
	s.mu.Lock()
	districtID := s.selection.DistrictID
	s.mu.Unlock()
	if districtID == "" {
		return nil, fmt.Errorf("%w: select a district first", ErrWrongState)
	}
	if s.oracle.Online() {
		stores, err := s.server.Stores(ctx, districtID)
		if err == nil {
			_ = s.store.PutCache(ctx, storesCacheKey(districtID), stores)
			return stores, nil
		}
	}
	var stores []models.Store
	if err := s.store.GetCache(ctx, storesCacheKey(districtID), &stores); err != nil {
		return nil, fmt.Errorf("authoring: stores unavailable offline: %w", err)
	}
	return stores, nil
}

// SelectRegion picks a region and cascades: the district and store choices
// below it are invalidated, and the session returns to selecting-store.
// Answers survive — the checklist is the same for every store, and throwing
// away field work over a mis-tap would be cruel.
func (s *Session) SelectRegion(regionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting || s.state == StateSubmitted {
		return ErrWrongState
	}
	s.selection = models.HierarchySelection{RegionID: regionID}
	s.names = models.DisplaySnapshot{}
	s.state = StateSelectingStore
	return nil
}

// SelectDistrict picks a district under the current region, invalidating
// any store choice below it.
func (s *Session) SelectDistrict(districtID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting || s.state == StateSubmitted {
		return ErrWrongState
	}
	if s.selection.RegionID == "" {
		return fmt.Errorf("%w: select a region first", ErrWrongState)
	}
	s.selection.DistrictID = districtID
	s.selection.StoreID = ""
	s.names = models.DisplaySnapshot{}
	s.state = StateSelectingStore
	return nil
}

// SelectStore completes the hierarchy path and moves to authoring.
func (s *Session) SelectStore(ctx context.Context, storeID string) error {
	s.mu.Lock()
	if s.state == StateSubmitting || s.state == StateSubmitted {
		s.mu.Unlock()
		return ErrWrongState
	}
	if s.selection.DistrictID == "" {
		s.mu.Unlock()
		return fmt.Errorf("%w: select a district first", ErrWrongState)
	}
	s.selection.StoreID = storeID
	s.state = StateAuthoring
	s.mu.Unlock()

	s.resolveNames(ctx)
	return nil
}

// resolveNames fills the display snapshot from cached hierarchy lists.
// Best effort: missing names degrade the offline history display, nothing
// else.
func (s *Session) resolveNames(ctx context.Context) {
	s.mu.Lock()
	sel := s.selection
	s.mu.Unlock()

	var names models.DisplaySnapshot
	var regions []models.Region
	if s.store.GetCache(ctx, regionsCacheKey, &regions) == nil {
		for _, r := range regions {
			if r.ID == sel.RegionID {
				names.RegionName = r.Name
			}
		}
	}
	var districts []models.District
	if s.store.GetCache(ctx, districtsCacheKey(sel.RegionID), &districts) == nil {
		for _, d := range districts {
			if d.ID == sel.DistrictID {
				names.DistrictName = d.Name
			}
		}
	}
	var stores []models.Store
	if s.store.GetCache(ctx, storesCacheKey(sel.DistrictID), &stores) == nil {
		for _, st := range stores {
			if st.ID == sel.StoreID {
				names.StoreName = st.Name
			}
		}
	}

	s.mu.Lock()
	s.names = names
	s.mu.Unlock()
}

// ---- Answering ----

// SetAnswer records one answer. The value's kind must match the item's
// declared type.
func (s *Session) SetAnswer(itemID string, v models.AnswerValue, observation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthoring {
		return ErrWrongState
	}
	typ, ok := s.itemType[itemID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if v.Kind != typ {
		return fmt.Errorf("authoring: item %s expects a %s answer, got %s", itemID, typ, v.Kind)
	}
	s.answers[itemID] = v.Payload(itemID, observation)
	return nil
}

// ClearAnswer removes a recorded answer and any pending photo preview.
func (s *Session) ClearAnswer(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answers, itemID)
	delete(s.previews, itemID)
}

// SetManagerName records the store manager present during the visit.
func (s *Session) SetManagerName(name string) { s.setField(&s.managerName, name) }

// SetPlans records the three action plans agreed with the manager.
func (s *Session) SetPlans(financial, experience, operational string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planFinancial = financial
	s.planExperience = experience
	s.planOperational = operational
}

// SetComments records free-form closing comments.
func (s *Session) SetComments(c string) { s.setField(&s.comments, c) }

func (s *Session) setField(dst *string, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*dst = v
}

// AttachPhoto answers a photo item. Online, the photo uploads immediately
// and the answer records the returned server path. Offline, only the local
// path is kept as a preview: it counts toward the on-screen progress, but
// it will not be part of a later sync — photo bytes do not ride the queue.
func (s *Session) AttachPhoto(ctx context.Context, itemID, localPath, filename string, r io.Reader) error {
	s.mu.Lock()
	if s.state != StateAuthoring {
		s.mu.Unlock()
		return ErrWrongState
	}
	typ, ok := s.itemType[itemID]
	if !ok || typ != models.ItemPhoto {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is not a photo item", ErrUnknownItem, itemID)
	}
	s.mu.Unlock()

	if s.oracle.Online() {
		path, err := s.server.UploadPhoto(ctx, filename, r)
		if err == nil {
			s.mu.Lock()
			s.answers[itemID] = models.PhotoValue(path).Payload(itemID, "")
			delete(s.previews, itemID)
			s.mu.Unlock()
			return nil
		}
		// Upload failed: fall through to the offline path rather than
		// losing the capture.
	}
	s.mu.Lock()
	s.previews[itemID] = localPath
	s.mu.Unlock()
	return nil
}

// Progress returns the on-screen completion percentage, counting pending
// photo previews as answered.
func (s *Session) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return completion.Client(s.template, s.answers, s.previews)
}

// ---- Persistence ----

// buildPayload flattens the session into the wire shape.
func (s *Session) buildPayload(state models.VisitState) models.VisitPayload {
	answers := make([]models.AnswerPayload, 0, len(s.answers))
	for _, it := range s.template {
		if a, ok := s.answers[it.ID]; ok {
			answers = append(answers, a)
		}
	}
	p := models.VisitPayload{
		StoreID:   s.selection.StoreID,
		Timestamp: time.Now().UTC().Format("2006-01-02 15:04:05"),
		Answers:   answers,
		State:     state,
	}
	if s.managerName != "" {
		p.ManagerName = &s.managerName
	}
	if s.planFinancial != "" {
		p.PlanFinancial = &s.planFinancial
	}
	if s.planExperience != "" {
		p.PlanExperience = &s.planExperience
	}
	if s.planOperational != "" {
		p.PlanOperational = &s.planOperational
	}
	if s.comments != "" {
		p.Comments = &s.comments
	}
	return p
}

// SaveProgress persists the draft. The local copy is always written — it is
// what survives a process kill. When online, the draft is additionally
// mirrored to the server (created once, then updated) so a manager can see
// work in progress.
func (s *Session) SaveProgress(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAuthoring {
		s.mu.Unlock()
		return ErrWrongState
	}
	draft := models.DraftState{
		Selection:       s.selection,
		Answers:         s.answers,
		ManagerName:     s.managerName,
		PlanFinancial:   s.planFinancial,
		PlanExperience:  s.planExperience,
		PlanOperational: s.planOperational,
		SavedAt:         time.Now().UTC(),
	}
	payload := s.buildPayload(models.VisitDraft)
	draftID := s.serverDraftID
	s.mu.Unlock()

	if err := s.store.SaveDraft(ctx, draft); err != nil {
		return err
	}
	if !s.oracle.Online() {
		return nil
	}

	if draftID == "" {
		v, err := s.server.CreateVisit(ctx, payload)
		if err != nil {
			// Offline in practice; the local save already succeeded.
			return nil
		}
		s.mu.Lock()
		s.serverDraftID = v.ID
		s.mu.Unlock()
		return nil
	}
	// Same reasoning on update: a failed mirror is not a failed save.
	_, _ = s.server.UpdateVisit(ctx, draftID, payload)
	return nil
}

// Submit finalizes the visit. Below the completion threshold it fails with
// ErrIncomplete and the session stays in authoring. Online, the visit posts
// as "completed" (updating the server draft if one exists). Offline, it is
// queued with a client-generated offline id and a display snapshot, and
// will reach the server on the next drain.
func (s *Session) Submit(ctx context.Context) (queuedOffline bool, err error) {
	s.mu.Lock()
	if s.state != StateAuthoring {
		s.mu.Unlock()
		return false, ErrWrongState
	}
	if s.selection.StoreID == "" {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: no store selected", ErrWrongState)
	}
	if completion.Client(s.template, s.answers, s.previews) < s.threshold {
		s.mu.Unlock()
		return false, fmt.Errorf("%w (%d%% required)", ErrIncomplete, s.threshold)
	}
	s.state = StateSubmitting
	payload := s.buildPayload(models.VisitCompleted)
	draftID := s.serverDraftID
	names := s.names
	s.mu.Unlock()

	fail := func(err error) (bool, error) {
		s.mu.Lock()
		s.state = StateAuthoring
		s.mu.Unlock()
		return false, err
	}
	finish := func(queued bool) (bool, error) {
		if err := s.store.ClearDraft(ctx); err != nil {
			return fail(err)
		}
		s.mu.Lock()
		s.state = StateSubmitted
		s.mu.Unlock()
		return queued, nil
	}

	if s.oracle.Online() {
		var submitErr error
		if draftID != "" {
			_, submitErr = s.server.UpdateVisit(ctx, draftID, payload)
		} else {
			_, submitErr = s.server.CreateVisit(ctx, payload)
		}
		if submitErr == nil {
			return finish(false)
		}
		if isRejection(submitErr) {
			// The server looked at the visit and said no (for example a
			// stricter server-side threshold). Queueing it would just
			// fail again later.
			return fail(submitErr)
		}
		// Transport failure mid-submit: fall through to the offline path.
	}

	queued := models.OfflineVisit{
		ID:        models.OfflineIDPrefix + uuid.NewString(),
		Payload:   payload,
		Answers:   s.queuedAnswers(payload.Answers),
		Display:   names,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Enqueue(ctx, queued); err != nil {
		return fail(err)
	}
	return finish(true)
}

// isRejection reports whether err is the server refusing the request, as
// opposed to the request never arriving.
func isRejection(err error) bool {
	var apiErr *api.APIError
	return errors.As(err, &apiErr)
}

// queuedAnswers denormalizes answers with their item titles so the queue
// entry renders in a history list without the template at hand.
func (s *Session) queuedAnswers(answers []models.AnswerPayload) []models.QueuedAnswer {
	byID := make(map[string]models.ChecklistItem, len(s.template))
	for _, it := range s.template {
		byID[it.ID] = it
	}
	out := make([]models.QueuedAnswer, 0, len(answers))
	for _, a := range answers {
		it := byID[a.ItemID]
		out = append(out, models.QueuedAnswer{AnswerPayload: a, Title: it.Title, Type: it.Type})
	}
	return out
}
