package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jacksonlee411/navtree/internal/logging"
	"github.com/jacksonlee411/navtree/internal/routing"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"github.com/jacksonlee411/navtree/modules/navigation/services"
	"github.com/jacksonlee411/navtree/pkg/httperr"
	"github.com/jacksonlee411/navtree/pkg/menufilter"
	"go.uber.org/zap"
)

const (
	maxListLimit = 500
	maxBodyBytes = 1 << 20
)

// UIStateStorageFactory opens the UI state storage of one principal.
type UIStateStorageFactory func(tenantID string, principalID string) (ports.UIStateStorage, error)

type navigationAPI struct {
	store   ports.MenuStore
	records *services.MenuRecordStore
	order   services.MenuOrderService
	status  services.MenuStatusService
	writes  services.MenuWriteService
	uiState UIStateStorageFactory
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return httperr.NewBadRequest("request body is empty")
		}
		return httperr.NewBadRequest("invalid json body: " + err.Error())
	}
	return nil
}

func requireTenant(w http.ResponseWriter, r *http.Request) (Tenant, bool) {
	t, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return Tenant{}, false
	}
	return t, true
}

func (a *navigationAPI) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type menuListResponse struct {
	Records    []types.MenuRecord `json:"records"`
	NextCursor string             `json:"next_cursor"`
	Filter     string             `json:"filter,omitempty"`
}

// handleList serves one backend page. The optional CEL filter applies to the
// page only, so a filtered page may be shorter than limit.
func (a *navigationAPI) handleList(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	qv := r.URL.Query()

	q := types.MenuQuery{TenantID: tenant.ID}
	if raw := strings.TrimSpace(qv.Get("type")); raw != "" {
		t, err := types.ParseMenuType(raw)
		if err != nil {
			writeInternalAPIError(w, r, err, "menu_list_failed")
			return
		}
		q.Type = t
	}
	limit := services.DefaultPageLimit
	if raw := strings.TrimSpace(qv.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			writeInternalAPIError(w, r, httperr.NewBadRequest("limit must be between 1 and 500"), "menu_list_failed")
			return
		}
		limit = n
	}
	filter, err := menufilter.Compile(qv.Get("filter"))
	if err != nil {
		writeInternalAPIError(w, r, err, "menu_list_failed")
		return
	}

	page, err := a.store.List(r.Context(), q, strings.TrimSpace(qv.Get("cursor")), limit)
	if err != nil {
		writeInternalAPIError(w, r, err, "menu_list_failed")
		return
	}
	records, err := filter.Apply(page.Records)
	if err != nil {
		writeInternalAPIError(w, r, err, "menu_list_failed")
		return
	}
	if records == nil {
		records = []types.MenuRecord{}
	}
	writeJSON(w, http.StatusOK, menuListResponse{Records: records, NextCursor: page.NextCursor, Filter: filter.String()})
}

type menuTreeResponse struct {
	Roots      []*types.MenuTreeNode          `json:"roots"`
	Orphans    []types.OrphanRecordAnomaly    `json:"orphans"`
	Cycles     []types.CycleAnomaly           `json:"cycles"`
	Duplicates []types.DuplicateRecordAnomaly `json:"duplicates"`
	Records    int                            `json:"records"`
	FetchedAt  time.Time                      `json:"fetched_at"`
	Stale      bool                           `json:"stale"`
}

// handleTree returns the cached tree; refresh=1 forces a fetch. When the
// fetch fails and an older tree exists it is returned with stale=true.
func (a *navigationAPI) handleTree(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	q := types.MenuQuery{TenantID: tenant.ID}

	var snap *services.Snapshot
	var err error
	if r.URL.Query().Get("refresh") == "1" {
		snap, err = a.records.Fetch(r.Context(), q)
	} else {
		snap, err = a.records.Current(r.Context(), q)
	}
	if snap == nil {
		if err == nil {
			err = &types.FetchError{QueryKey: q.Key(), Err: errors.New("no snapshot")}
		}
		writeInternalAPIError(w, r, err, "menu_tree_failed")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Warn("serving stale menu tree", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, menuTreeResponse{
		Roots:      nonNil(snap.Tree.Roots),
		Orphans:    nonNil(snap.Tree.Orphans),
		Cycles:     nonNil(snap.Tree.Cycles),
		Duplicates: nonNil(snap.Tree.Duplicates),
		Records:    len(snap.Records),
		FetchedAt:  snap.FetchedAt,
		Stale:      err != nil,
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (a *navigationAPI) handleBySlug(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	slug := strings.TrimSpace(routing.PathParam(r, "slug"))
	if slug == "" {
		writeInternalAPIError(w, r, httperr.NewBadRequest("slug is required"), "menu_get_failed")
		return
	}
	rec, err := a.store.GetBySlug(r.Context(), tenant.ID, slug)
	if err != nil {
		writeInternalAPIError(w, r, err, "menu_get_failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *navigationAPI) handleChildren(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	out, err := a.store.ListChildren(r.Context(), tenant.ID, routing.PathParam(r, "id"))
	if err != nil {
		writeInternalAPIError(w, r, err, "menu_children_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": nonNil(out)})
}

func (a *navigationAPI) handleForUser(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	userID := strings.TrimSpace(routing.PathParam(r, "user_id"))
	if userID == "" {
		writeInternalAPIError(w, r, httperr.NewBadRequest("user_id is required"), "menu_list_failed")
		return
	}
	out, err := a.store.ListForUser(r.Context(), tenant.ID, userID)
	if err != nil {
		writeInternalAPIError(w, r, err, "menu_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": nonNil(out)})
}

func (a *navigationAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var rec types.MenuRecord
	if err := decodeJSONBody(r, &rec); err != nil {
		writeInternalAPIError(w, r, err, "menu_create_failed")
		return
	}
	out, err := a.writes.Create(r.Context(), tenant.ID, rec)
	if err != nil {
		writeInternalAPIError(w, r, err, "menu_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *navigationAPI) handleUpdate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var rec types.MenuRecord
	if err := decodeJSONBody(r, &rec); err != nil {
		writeInternalAPIError(w, r, err, "menu_update_failed")
		return
	}
	rec.ID = routing.PathParam(r, "id")
	out, err := a.writes.Update(r.Context(), tenant.ID, rec)
	if err != nil {
		writeInternalAPIError(w, r, err, "menu_update_failed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *navigationAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if err := a.writes.Delete(r.Context(), tenant.ID, routing.PathParam(r, "id")); err != nil {
		writeInternalAPIError(w, r, err, "menu_delete_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMove reads {"parent_id": ..., "order": n}. parent_id may be a string,
// a number or null for the root level.
func (a *navigationAPI) handleMove(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var body types.MenuRecord
	if err := decodeJSONBody(r, &body); err != nil {
		writeInternalAPIError(w, r, err, "menu_move_failed")
		return
	}
	req := services.MoveMenuRequest{
		ID:          routing.PathParam(r, "id"),
		NewParentID: body.ParentID,
		NewOrder:    body.Order,
	}
	if err := a.order.Move(r.Context(), tenant.ID, req); err != nil {
		writeInternalAPIError(w, r, err, "menu_move_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": req.ID, "parent_id": req.NewParentID, "order": req.NewOrder})
}

type reorderRequest struct {
	ParentID json.RawMessage   `json:"parent_id"`
	IDs      []json.RawMessage `json:"ids"`
}

func (a *navigationAPI) handleReorder(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var body reorderRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeInternalAPIError(w, r, err, "menu_reorder_failed")
		return
	}
	parent, err := decodeRawID(body.ParentID)
	if err != nil {
		writeInternalAPIError(w, r, err, "menu_reorder_failed")
		return
	}
	req := services.ReorderMenusRequest{IDs: make([]string, 0, len(body.IDs))}
	if parent != "" {
		req.ParentID = types.StringPtr(parent)
	}
	for _, raw := range body.IDs {
		id, err := decodeRawID(raw)
		if err != nil || id == "" {
			writeInternalAPIError(w, r, httperr.NewBadRequest("ids must be non-empty strings or integers"), "menu_reorder_failed")
			return
		}
		req.IDs = append(req.IDs, id)
	}

	plan, err := a.order.Reorder(r.Context(), tenant.ID, req)
	if err != nil {
		writeInternalAPIError(w, r, err, "menu_reorder_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"parent_id": req.ParentID, "orders": plan})
}

// decodeRawID accepts a JSON string, integer or null.
func decodeRawID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", httperr.NewBadRequest("invalid id")
	}
	if _, err := n.Int64(); err != nil {
		return "", httperr.NewBadRequest("invalid id")
	}
	return n.String(), nil
}

func (a *navigationAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id := routing.PathParam(r, "id")
	patch, err := a.status.Apply(r.Context(), tenant.ID, id, routing.PathParam(r, "action"))
	if err != nil {
		writeInternalAPIError(w, r, err, "menu_status_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "field": patch.Field, "value": patch.Value})
}

type navigationResponse struct {
	Pathname        string                      `json:"pathname"`
	Header          []*types.MenuTreeNode       `json:"header"`
	CurrentHeaderID string                      `json:"current_header_id"`
	Sidebar         []*types.MenuTreeNode       `json:"sidebar"`
	SubmenuKey      string                      `json:"submenu_key"`
	SubmenuOwnerID  string                      `json:"submenu_owner_id"`
	Submenu         []*types.MenuTreeNode       `json:"submenu"`
	SubmenuVisible  bool                        `json:"submenu_visible"`
	ActiveID        string                      `json:"active_id"`
	Expansion       *services.ExpansionSnapshot `json:"expansion,omitempty"`
	Stale           bool                        `json:"stale"`
}

// handleNavigation resolves the cascade for ?path=. A signed-in principal
// sees the tree trimmed to the menus they hold perms for.
func (a *navigationAPI) handleNavigation(w http.ResponseWriter, r *http.Request) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return
	}
	pathname := r.URL.Query().Get("path")
	if pathname == "" {
		pathname = "/"
	}

	q := types.MenuQuery{TenantID: tenant.ID}
	var expansion *services.ExpansionState
	if p, ok := currentPrincipal(r.Context()); ok {
		q.UserID = p.ID
		if a.uiState != nil {
			storage, err := a.uiState(tenant.ID, p.ID)
			if err != nil {
				writeInternalAPIError(w, r, err, "ui_state_failed")
				return
			}
			expansion = services.LoadExpansionState(r.Context(), storage, logging.FromContext(r.Context()))
		}
	}

	nav := services.NewNavigationState(a.records, expansion, q)
	cascade, snap, err := nav.Resolve(r.Context(), pathname)
	if snap == nil && err != nil {
		writeInternalAPIError(w, r, err, "navigation_failed")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Warn("serving stale navigation", zap.Error(err))
	}

	resp := navigationResponse{
		Pathname:        cascade.Pathname,
		Header:          nonNil(cascade.Header),
		CurrentHeaderID: cascade.CurrentHeaderID(),
		Sidebar:         nonNil(cascade.Sidebar),
		SubmenuKey:      cascade.SubmenuKey,
		Submenu:         nonNil(cascade.Submenu),
		SubmenuVisible:  cascade.SubmenuVisible(),
		ActiveID:        cascade.ActiveID,
		Stale:           err != nil,
	}
	if cascade.SubmenuOwner != nil {
		resp.SubmenuOwnerID = cascade.SubmenuOwner.ID
	}
	if expansion != nil {
		s := expansion.Snapshot()
		resp.Expansion = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

// expansionFor opens the caller's expansion state; UI state needs a principal.
func (a *navigationAPI) expansionFor(w http.ResponseWriter, r *http.Request) (*services.ExpansionState, bool) {
	tenant, ok := requireTenant(w, r)
	if !ok {
		return nil, false
	}
	p, ok := currentPrincipal(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return nil, false
	}
	if a.uiState == nil {
		writeInternalAPIError(w, r, errors.New("ui state storage not configured"), "ui_state_failed")
		return nil, false
	}
	storage, err := a.uiState(tenant.ID, p.ID)
	if err != nil {
		writeInternalAPIError(w, r, err, "ui_state_failed")
		return nil, false
	}
	return services.LoadExpansionState(r.Context(), storage, logging.FromContext(r.Context())), true
}

func (a *navigationAPI) handleGetUIState(w http.ResponseWriter, r *http.Request) {
	st, ok := a.expansionFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.Snapshot())
}

type uiStateRequest struct {
	SidebarExpanded *bool           `json:"sidebar_expanded"`
	MenuAccordion   map[string]bool `json:"menu_accordion"`
}

// handlePutUIState applies the fields present in the body; absent fields keep
// their stored value.
func (a *navigationAPI) handlePutUIState(w http.ResponseWriter, r *http.Request) {
	st, ok := a.expansionFor(w, r)
	if !ok {
		return
	}
	var body uiStateRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeInternalAPIError(w, r, err, "ui_state_failed")
		return
	}
	if body.SidebarExpanded != nil {
		if err := st.SetSidebarExpanded(r.Context(), *body.SidebarExpanded); err != nil {
			writeInternalAPIError(w, r, err, "ui_state_failed")
			return
		}
	}
	if body.MenuAccordion != nil {
		if err := st.ReplaceAccordion(r.Context(), body.MenuAccordion); err != nil {
			writeInternalAPIError(w, r, err, "ui_state_failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, st.Snapshot())
}

func (a *navigationAPI) handleToggleAccordion(w http.ResponseWriter, r *http.Request) {
	st, ok := a.expansionFor(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(routing.PathParam(r, "id"))
	expanded, err := st.ToggleAccordion(r.Context(), id)
	if err != nil {
		writeInternalAPIError(w, r, err, "ui_state_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "expanded": expanded})
}

func (a *navigationAPI) handleCollapseAll(w http.ResponseWriter, r *http.Request) {
	st, ok := a.expansionFor(w, r)
	if !ok {
		return
	}
	if err := st.CollapseAll(r.Context()); err != nil {
		writeInternalAPIError(w, r, err, "ui_state_failed")
		return
	}
	writeJSON(w, http.StatusOK, st.Snapshot())
}
