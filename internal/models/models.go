package models

import "time"

// UserRole defines the type of user account.
type UserRole string

const (
	RoleEvaluator UserRole = "evaluator"
	RoleManager   UserRole = "manager"
	RoleRegional  UserRole = "regional"
	RoleAdmin     UserRole = "admin"
)

// VisitState represents the lifecycle state of a store visit.
// A visit starts as a draft, becomes completed when the evaluator submits it,
// and is marked synchronized once an offline-captured copy reaches the server.
type VisitState string

const (
	VisitDraft        VisitState = "draft"
	VisitCompleted    VisitState = "completed"
	VisitSynchronized VisitState = "synchronized"
)

// ItemType is the answer kind a checklist item expects.
type ItemType string

const (
	ItemBoolean    ItemType = "boolean"    // yes/no
	ItemText       ItemType = "text"       // free text
	ItemNumber     ItemType = "number"     // plain numeric reading
	ItemPercentage ItemType = "percentage" // numeric, displayed as %
	ItemPhoto      ItemType = "photo"      // uploaded photo path
	ItemStatus     ItemType = "status"     // traffic-light tier 1/2/3
)

// Status tiers for status-type items.
const (
	TierGreen  = 1
	TierYellow = 2
	TierRed    = 3
)

// User represents any account: evaluators doing field visits, store managers,
// regional leads, and admins who maintain the catalogue.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Region is the top of the organizational hierarchy.
type Region struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// District groups stores under a region.
type District struct {
	ID        string    `json:"id"`
	RegionID  string    `json:"region_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is one restaurant location. Format distinguishes the physical layout
// (free-standing building, food-court counter, in-line storefront).
type Store struct {
	ID         string    `json:"id"`
	DistrictID string    `json:"district_id"`
	Name       string    `json:"name"`
	Address    string    `json:"address,omitempty"`
	Format     string    `json:"format,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChecklistItem is one question of the shared audit template.
// Immutable reference data: seeded server-side, read-only to clients.
// Order may be negative so a migrated item can sort before the defaults.
type ChecklistItem struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Type     ItemType `json:"type"`
	Order    int      `json:"order"`
	Required bool     `json:"required"`
	Section  string   `json:"section,omitempty"`
}

// AnswerValue is a tagged union over item types: exactly one payload field is
// meaningful, selected by Kind. This removes the "which optional field is
// valid" ambiguity that a flat struct of six pointers would have.
// Build values with the constructor functions below rather than by hand.
type AnswerValue struct {
	Kind       ItemType
	Bool       *bool
	Text       string
	Number     *float64
	Percentage *float64
	PhotoPath  string
	Tier       *int
}

// BoolValue answers a boolean item.
func BoolValue(v bool) AnswerValue { return AnswerValue{Kind: ItemBoolean, Bool: &v} }

// TextValue answers a free-text item.
func TextValue(s string) AnswerValue { return AnswerValue{Kind: ItemText, Text: s} }

// NumberValue answers a numeric item.
func NumberValue(n float64) AnswerValue { return AnswerValue{Kind: ItemNumber, Number: &n} }

// PercentageValue answers a percentage item. The value stays a float64 end to
// end; 33.5 must survive a save/reload round-trip unchanged.
func PercentageValue(n float64) AnswerValue {
	return AnswerValue{Kind: ItemPercentage, Percentage: &n}
}

// PhotoValue answers a photo item with the storage path returned by the
// upload endpoint.
func PhotoValue(path string) AnswerValue { return AnswerValue{Kind: ItemPhoto, PhotoPath: path} }

// TierValue answers a status item with tier 1 (green), 2 (yellow) or 3 (red).
func TierValue(tier int) AnswerValue { return AnswerValue{Kind: ItemStatus, Tier: &tier} }

// Payload flattens the union into the wire shape the visits API accepts.
// Status tiers travel in numberValue; the item's declared type on the server
// decides how the number is interpreted.
func (v AnswerValue) Payload(itemID, observation string) AnswerPayload {
	p := AnswerPayload{ItemID: itemID}
	switch v.Kind {
	case ItemBoolean:
		if v.Bool != nil {
			b := 0
			if *v.Bool {
				b = 1
			}
			p.BooleanValue = &b
		}
	case ItemText:
		if v.Text != "" {
			t := v.Text
			p.TextValue = &t
		}
	case ItemNumber:
		p.NumberValue = v.Number
	case ItemPercentage:
		p.PercentageValue = v.Percentage
	case ItemPhoto:
		if v.PhotoPath != "" {
			ph := v.PhotoPath
			p.PhotoPath = &ph
		}
	case ItemStatus:
		if v.Tier != nil {
			n := float64(*v.Tier)
			p.NumberValue = &n
		}
	}
	if observation != "" {
		obs := observation
		p.Observation = &obs
	}
	return p
}

// AnswerPayload is the wire form of one visit answer: a flat struct with at
// most one populated value slot, matching the item's type.
type AnswerPayload struct {
	ItemID          string   `json:"itemId"`
	BooleanValue    *int     `json:"booleanValue,omitempty"` // 0 or 1
	TextValue       *string  `json:"textValue,omitempty"`
	NumberValue     *float64 `json:"numberValue,omitempty"` // also carries status tiers
	PercentageValue *float64 `json:"percentageValue,omitempty"`
	PhotoPath       *string  `json:"photoPath,omitempty"`
	Observation     *string  `json:"observation,omitempty"`
}

// VisitPayload is the create/update body for POST /api/visits and
// PUT /api/visits/{id}. On update only the provided fields change, except
// Answers, which replaces the stored answer set wholesale when present.
type VisitPayload struct {
	StoreID         string          `json:"storeId"`
	Timestamp       string          `json:"timestamp,omitempty"` // "2006-01-02 15:04:05"
	ManagerName     *string         `json:"managerName,omitempty"`
	PlanFinancial   *string         `json:"planFinancial,omitempty"`
	PlanExperience  *string         `json:"planExperience,omitempty"`
	PlanOperational *string         `json:"planOperational,omitempty"`
	Comments        *string         `json:"comments,omitempty"`
	Answers         []AnswerPayload `json:"answers,omitempty"`
	State           VisitState      `json:"state,omitempty"`
}

// Visit is the stored audit record. Display names are resolved by joins on
// read; ProgressPercent is derived from the answers, never stored.
type Visit struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	StoreID         string     `json:"storeId"`
	Timestamp       string     `json:"timestamp"`
	State           VisitState `json:"state"`
	ManagerName     string     `json:"managerName,omitempty"`
	PlanFinancial   string     `json:"planFinancial,omitempty"`
	PlanExperience  string     `json:"planExperience,omitempty"`
	PlanOperational string     `json:"planOperational,omitempty"`
	Comments        string     `json:"comments,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Populated on read
	UserName        string        `json:"userName,omitempty"`
	StoreName       string        `json:"storeName,omitempty"`
	DistrictName    string        `json:"districtName,omitempty"`
	RegionName      string        `json:"regionName,omitempty"`
	Answers         []VisitAnswer `json:"answers,omitempty"`
	ProgressPercent *int          `json:"progressPercent,omitempty"`
}

// VisitAnswer is a stored answer joined with its template item, as returned
// by GET /api/visits/{id}.
type VisitAnswer struct {
	ID      string `json:"id"`
	VisitID string `json:"visitId"`
	AnswerPayload
	Title   string   `json:"title"`
	Type    ItemType `json:"type"`
	Order   int      `json:"order"`
	Section string   `json:"section,omitempty"`
}

// DisplaySnapshot carries human-readable hierarchy names copied into an
// offline queue entry at capture time. It is intentionally stale/best-effort:
// the queue has no join capability, and a store renamed between capture and
// sync is acceptable drift.
type DisplaySnapshot struct {
	StoreName    string `json:"storeName"`
	DistrictName string `json:"districtName"`
	RegionName   string `json:"regionName"`
}

// QueuedAnswer is an answer denormalized for offline display: the template
// item's title and type are copied in so the entry renders without the
// template being available.
type QueuedAnswer struct {
	AnswerPayload
	Title string   `json:"title"`
	Type  ItemType `json:"type"`
}

// OfflineVisit is one entry of the offline submission queue: a full visit
// payload plus everything needed to show it in a history list while
// disconnected. ID carries OfflineIDPrefix to mark its origin.
type OfflineVisit struct {
	ID        string          `json:"id"`
	Payload   VisitPayload    `json:"payload"`
	Answers   []QueuedAnswer  `json:"answers"`
	Display   DisplaySnapshot `json:"display"`
	CreatedAt time.Time       `json:"created_at"`
}

// OfflineIDPrefix marks client-generated visit ids so they can never collide
// with (or be mistaken for) server-issued ids.
const OfflineIDPrefix = "offline-"

// HierarchySelection is the region → district → store path chosen while
// authoring. Child fields are only meaningful while their parent is set.
type HierarchySelection struct {
	RegionID   string `json:"region_id,omitempty"`
	DistrictID string `json:"district_id,omitempty"`
	StoreID    string `json:"store_id,omitempty"`
}

// DraftState is the single in-progress authoring session persisted locally so
// an app restart while offline does not lose work. Overwritten on every save,
// cleared on terminal submission.
type DraftState struct {
	Selection       HierarchySelection       `json:"selection"`
	Answers         map[string]AnswerPayload `json:"answers"`
	ManagerName     string                   `json:"manager_name,omitempty"`
	PlanFinancial   string                   `json:"plan_financial,omitempty"`
	PlanExperience  string                   `json:"plan_experience,omitempty"`
	PlanOperational string                   `json:"plan_operational,omitempty"`
	SavedAt         time.Time                `json:"saved_at"`
}

// ---- Request / Response DTOs ----

type RegisterRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Name     string   `json:"name"`
	Role     UserRole `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UploadResponse is returned by the photo upload endpoint. The path is later
// referenced verbatim as a photo answer's value.
type UploadResponse struct {
	Path string `json:"path"`
}
