package types

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type MenuType string

const (
	MenuTypeHeader  MenuType = "header"
	MenuTypeSidebar MenuType = "sidebar"
	MenuTypeMenu    MenuType = "menu"
	MenuTypeButton  MenuType = "button"
	MenuTypeSubmenu MenuType = "submenu"
	MenuTypeDivider MenuType = "divider"
	MenuTypeGroup   MenuType = "group"
	MenuTypeAccount MenuType = "account"
	MenuTypeTenant  MenuType = "tenant"
)

var menuTypes = map[MenuType]struct{}{
	MenuTypeHeader:  {},
	MenuTypeSidebar: {},
	MenuTypeMenu:    {},
	MenuTypeButton:  {},
	MenuTypeSubmenu: {},
	MenuTypeDivider: {},
	MenuTypeGroup:   {},
	MenuTypeAccount: {},
	MenuTypeTenant:  {},
}

func ParseMenuType(raw string) (MenuType, error) {
	t := MenuType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := menuTypes[t]; !ok {
		return "", ErrUnknownMenuType
	}
	return t, nil
}

func (t MenuType) Valid() bool {
	_, ok := menuTypes[t]
	return ok
}

type Target string

const (
	TargetSelf  Target = "_self"
	TargetBlank Target = "_blank"
)

// ParseTarget maps an empty value to TargetSelf.
func ParseTarget(raw string) (Target, error) {
	switch Target(strings.TrimSpace(raw)) {
	case "", TargetSelf:
		return TargetSelf, nil
	case TargetBlank:
		return TargetBlank, nil
	default:
		return "", ErrUnknownTarget
	}
}

type StatusAction string

const (
	StatusActionEnable  StatusAction = "enable"
	StatusActionDisable StatusAction = "disable"
	StatusActionShow    StatusAction = "show"
	StatusActionHide    StatusAction = "hide"
)

type StatusField string

const (
	StatusFieldDisabled StatusField = "disabled"
	StatusFieldHidden   StatusField = "hidden"
)

// StatusPatch is the single field flip an action stands for.
type StatusPatch struct {
	Field StatusField
	Value bool
}

var statusActionPatches = map[StatusAction]StatusPatch{
	StatusActionEnable:  {Field: StatusFieldDisabled, Value: false},
	StatusActionDisable: {Field: StatusFieldDisabled, Value: true},
	StatusActionShow:    {Field: StatusFieldHidden, Value: false},
	StatusActionHide:    {Field: StatusFieldHidden, Value: true},
}

func ParseStatusAction(raw string) (StatusAction, error) {
	a := StatusAction(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := statusActionPatches[a]; !ok {
		return "", ErrUnknownStatusAction
	}
	return a, nil
}

func (a StatusAction) Patch() (StatusPatch, bool) {
	p, ok := statusActionPatches[a]
	return p, ok
}

type VisibilityState string

const (
	VisibilityActive         VisibilityState = "active"
	VisibilityDisabled       VisibilityState = "disabled"
	VisibilityHidden         VisibilityState = "hidden"
	VisibilityDisabledHidden VisibilityState = "disabled_hidden"
)

type MenuRecord struct {
	ID        string    `json:"id" yaml:"id"`
	ParentID  *string   `json:"parent_id" yaml:"parent_id"`
	Name      string    `json:"name" yaml:"name"`
	Label     string    `json:"label" yaml:"label"`
	Slug      string    `json:"slug" yaml:"slug"`
	Path      string    `json:"path" yaml:"path"`
	Icon      string    `json:"icon" yaml:"icon"`
	Type      MenuType  `json:"type" yaml:"type"`
	Order     int       `json:"order" yaml:"order"`
	Disabled  bool      `json:"disabled" yaml:"disabled"`
	Hidden    bool      `json:"hidden" yaml:"hidden"`
	Perms     string    `json:"perms,omitempty" yaml:"perms,omitempty"`
	Target    Target    `json:"target" yaml:"target"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
	TenantID  string    `json:"tenant_id" yaml:"-"`
}

// UnmarshalJSON accepts numeric or string ids for id and parent_id.
func (r *MenuRecord) UnmarshalJSON(b []byte) error {
	type plain MenuRecord
	var aux struct {
		plain
		ID       json.RawMessage `json:"id"`
		ParentID json.RawMessage `json:"parent_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = MenuRecord(aux.plain)

	id, err := decodeID(aux.ID)
	if err != nil {
		return err
	}
	r.ID = ""
	if id != nil {
		r.ID = *id
	}
	parentID, err := decodeID(aux.ParentID)
	if err != nil {
		return err
	}
	r.ParentID = parentID
	return nil
}

func decodeID(raw json.RawMessage) (*string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return nil, err
	}
	v := n.String()
	return &v, nil
}

// ParentKey returns "" for root-level records.
func (r MenuRecord) ParentKey() string {
	if r.ParentID == nil {
		return ""
	}
	return strings.TrimSpace(*r.ParentID)
}

func (r MenuRecord) HasParent() bool {
	return r.ParentKey() != ""
}

func (r MenuRecord) Status() VisibilityState {
	switch {
	case r.Disabled && r.Hidden:
		return VisibilityDisabledHidden
	case r.Disabled:
		return VisibilityDisabled
	case r.Hidden:
		return VisibilityHidden
	default:
		return VisibilityActive
	}
}

// Visible reports whether the record is shown to end users in navigation lists.
func (r MenuRecord) Visible() bool {
	return !r.Hidden && !r.Disabled
}

func (r MenuRecord) IsDivider() bool {
	if r.Type == MenuTypeDivider {
		return true
	}
	slug := strings.ToLower(strings.TrimSpace(r.Slug))
	if slug == "divider" || strings.HasPrefix(slug, "divider-") {
		return true
	}
	return strings.TrimSpace(r.Name) == "---"
}

func (r MenuRecord) IsGroup() bool {
	if r.Type == MenuTypeGroup {
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.Slug)), "group-")
}

// IsPseudo marks separators and section headers; they never become active.
func (r MenuRecord) IsPseudo() bool {
	return r.IsDivider() || r.IsGroup()
}

func (r MenuRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrMenuIDRequired
	}
	if r.ParentKey() == strings.TrimSpace(r.ID) {
		return &CyclicMoveError{NodeID: r.ID, NewParentID: r.ParentKey()}
	}
	if !r.Type.Valid() {
		return ErrUnknownMenuType
	}
	if _, err := ParseTarget(string(r.Target)); err != nil {
		return err
	}
	return nil
}

type MenuTreeNode struct {
	MenuRecord
	Children []*MenuTreeNode `json:"children"`
}

type MenuQuery struct {
	TenantID string
	Type     MenuType
	UserID   string
}

// Key identifies a query for last-write-wins bookkeeping.
func (q MenuQuery) Key() string {
	return q.TenantID + "|" + string(q.Type) + "|" + q.UserID
}

type MenuPage struct {
	Records    []MenuRecord `json:"records"`
	NextCursor string       `json:"next_cursor"`
}

type OrderAssignment struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

func StringPtr(v string) *string {
	value := v
	return &value
}

func (n *MenuTreeNode) UnmarshalJSON(b []byte) error {
	if err := n.MenuRecord.UnmarshalJSON(b); err != nil {
		return err
	}
	var aux struct {
		Children []*MenuTreeNode `json:"children"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	n.Children = aux.Children
	return nil
}
