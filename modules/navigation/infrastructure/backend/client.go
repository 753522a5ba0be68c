package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"github.com/jacksonlee411/navtree/pkg/httperr"
)

// Client reads and writes menu records through the console's REST backend.
// The tenant travels in the X-Tenant-ID header.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("menu backend: http %d: %s", e.StatusCode, msg)
}

func New(baseURL string) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("menu backend: missing base url")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.New("menu backend: invalid base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("menu backend: invalid base url scheme")
	}
	if u.Host == "" {
		return nil, errors.New("menu backend: invalid base url host")
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (c *Client) List(ctx context.Context, q types.MenuQuery, cursor string, limit int) (types.MenuPage, error) {
	params := url.Values{}
	if q.Type != "" {
		params.Set("type", string(q.Type))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var page types.MenuPage
	if err := c.do(ctx, http.MethodGet, q.TenantID, "/menus", params, nil, &page); err != nil {
		return types.MenuPage{}, err
	}
	return page, nil
}

func (c *Client) FetchTree(ctx context.Context, tenantID string) ([]*types.MenuTreeNode, error) {
	var roots []*types.MenuTreeNode
	if err := c.do(ctx, http.MethodGet, tenantID, "/menus/tree", nil, nil, &roots); err != nil {
		return nil, err
	}
	return roots, nil
}

func (c *Client) GetBySlug(ctx context.Context, tenantID string, slug string) (types.MenuRecord, error) {
	var rec types.MenuRecord
	if err := c.do(ctx, http.MethodGet, tenantID, "/menu-slugs/"+url.PathEscape(slug), nil, nil, &rec); err != nil {
		return types.MenuRecord{}, err
	}
	return rec, nil
}

func (c *Client) ListChildren(ctx context.Context, tenantID string, parentID string) ([]types.MenuRecord, error) {
	var out []types.MenuRecord
	if err := c.do(ctx, http.MethodGet, tenantID, "/menus/"+url.PathEscape(parentID)+"/children", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListForUser(ctx context.Context, tenantID string, userID string) ([]types.MenuRecord, error) {
	var out []types.MenuRecord
	if err := c.do(ctx, http.MethodGet, tenantID, "/users/"+url.PathEscape(userID)+"/menus", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Move(ctx context.Context, tenantID string, id string, parentID *string, order int) error {
	body := map[string]any{"parent_id": parentID, "order": order}
	return c.do(ctx, http.MethodPut, tenantID, "/menus/"+url.PathEscape(id)+"/move", nil, body, nil)
}

func (c *Client) Reorder(ctx context.Context, tenantID string, parentID *string, assignments []types.OrderAssignment) error {
	body := map[string]any{"parent_id": parentID, "orders": assignments}
	return c.do(ctx, http.MethodPut, tenantID, "/menus/reorder", nil, body, nil)
}

func (c *Client) SetStatus(ctx context.Context, tenantID string, id string, patch types.StatusPatch) error {
	body := map[string]any{string(patch.Field): patch.Value}
	return c.do(ctx, http.MethodPatch, tenantID, "/menus/"+url.PathEscape(id)+"/status", nil, body, nil)
}

func (c *Client) Create(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error) {
	var out types.MenuRecord
	if err := c.do(ctx, http.MethodPost, tenantID, "/menus", nil, rec, &out); err != nil {
		return types.MenuRecord{}, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error) {
	var out types.MenuRecord
	if err := c.do(ctx, http.MethodPut, tenantID, "/menus/"+url.PathEscape(rec.ID), nil, rec, &out); err != nil {
		return types.MenuRecord{}, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, tenantID string, id string) error {
	return c.do(ctx, http.MethodDelete, tenantID, "/menus/"+url.PathEscape(id), nil, nil, nil)
}

// do sends one request. 404 maps to ErrMenuNotFound and 409 to a conflict;
// any other non-2xx status becomes an *HTTPError.
func (c *Client) do(ctx context.Context, method string, tenantID string, path string, params url.Values, in any, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return types.ErrMenuNotFound
	case resp.StatusCode == http.StatusConflict:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = "menu_conflict"
		}
		return httperr.NewConflict(msg)
	case resp.StatusCode/100 != 2:
		return readHTTPError(resp)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readHTTPError(resp *http.Response) error {
	const maxBody = 4096
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    string(b),
	}
}
