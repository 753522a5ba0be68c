package persistence

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/menutree"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/types"
	"github.com/jacksonlee411/navtree/pkg/httperr"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type MenuPGStore struct {
	pool pgBeginner
}

func NewMenuPGStore(pool pgBeginner) ports.MenuStore {
	return &MenuPGStore{pool: pool}
}

const menuColumns = `id, parent_id, name, label, slug, path, icon, menu_type, sort_order, disabled, hidden, perms, target, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMenu(row rowScanner, tenantID string) (types.MenuRecord, error) {
	var rec types.MenuRecord
	var menuType, target string
	if err := row.Scan(
		&rec.ID, &rec.ParentID, &rec.Name, &rec.Label, &rec.Slug, &rec.Path, &rec.Icon,
		&menuType, &rec.Order, &rec.Disabled, &rec.Hidden, &rec.Perms, &target,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return types.MenuRecord{}, err
	}
	rec.Type = types.MenuType(menuType)
	rec.Target = types.Target(target)
	rec.TenantID = tenantID
	return rec, nil
}

func collectMenus(rows pgx.Rows, tenantID string) ([]types.MenuRecord, error) {
	defer rows.Close()
	out := make([]types.MenuRecord, 0)
	for rows.Next() {
		rec, err := scanMenu(rows, tenantID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type pageCursor struct {
	Order int    `json:"o"`
	ID    string `json:"i"`
}

func encodeCursor(rec types.MenuRecord) string {
	b, _ := json.Marshal(pageCursor{Order: rec.Order, ID: rec.ID})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(raw string) (pageCursor, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return pageCursor{}, false, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return pageCursor{}, false, httperr.NewBadRequest("invalid cursor")
	}
	var c pageCursor
	if err := json.Unmarshal(b, &c); err != nil || c.ID == "" {
		return pageCursor{}, false, httperr.NewBadRequest("invalid cursor")
	}
	return c, true, nil
}

// List pages by (sort_order, id). One extra row is read to decide whether a
// next cursor exists.
func (s *MenuPGStore) List(ctx context.Context, q types.MenuQuery, cursor string, limit int) (types.MenuPage, error) {
	after, hasCursor, err := decodeCursor(cursor)
	if err != nil {
		return types.MenuPage{}, err
	}
	if limit <= 0 {
		limit = 100
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.MenuPage{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, q.TenantID); err != nil {
		return types.MenuPage{}, err
	}

	rows, err := tx.Query(ctx, `
SELECT `+menuColumns+`
FROM navigation.menus
WHERE tenant_uuid = $1::uuid
  AND ($2::text = '' OR menu_type = $2::text)
  AND (NOT $3::boolean OR (sort_order, id) > ($4::int, $5::text))
ORDER BY sort_order ASC, id ASC
LIMIT $6::int
`, q.TenantID, string(q.Type), hasCursor, after.Order, after.ID, limit+1)
	if err != nil {
		return types.MenuPage{}, err
	}
	records, err := collectMenus(rows, q.TenantID)
	if err != nil {
		return types.MenuPage{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.MenuPage{}, err
	}

	page := types.MenuPage{Records: records}
	if len(records) > limit {
		page.Records = records[:limit]
		page.NextCursor = encodeCursor(records[limit-1])
	}
	return page, nil
}

func (s *MenuPGStore) listAll(ctx context.Context, tenantID string) ([]types.MenuRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT `+menuColumns+`
FROM navigation.menus
WHERE tenant_uuid = $1::uuid
ORDER BY sort_order ASC, id ASC
`, tenantID)
	if err != nil {
		return nil, err
	}
	records, err := collectMenus(rows, tenantID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

// FetchTree returns the tenant's menus already nested.
func (s *MenuPGStore) FetchTree(ctx context.Context, tenantID string) ([]*types.MenuTreeNode, error) {
	records, err := s.listAll(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return menutree.Build(records).Roots, nil
}

func (s *MenuPGStore) GetBySlug(ctx context.Context, tenantID string, slug string) (types.MenuRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.MenuRecord{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return types.MenuRecord{}, err
	}

	rec, err := scanMenu(tx.QueryRow(ctx, `
SELECT `+menuColumns+`
FROM navigation.menus
WHERE tenant_uuid = $1::uuid AND slug = $2::text
ORDER BY sort_order ASC, id ASC
LIMIT 1
`, tenantID, slug), tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.MenuRecord{}, types.ErrMenuNotFound
		}
		return types.MenuRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.MenuRecord{}, err
	}
	return rec, nil
}

func (s *MenuPGStore) ListChildren(ctx context.Context, tenantID string, parentID string) ([]types.MenuRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT `+menuColumns+`
FROM navigation.menus
WHERE tenant_uuid = $1::uuid AND parent_id = $2::text
ORDER BY sort_order ASC, id ASC
`, tenantID, parentID)
	if err != nil {
		return nil, err
	}
	records, err := collectMenus(rows, tenantID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

// ListForUser returns menus without a perms requirement plus those whose perms
// the user holds.
func (s *MenuPGStore) ListForUser(ctx context.Context, tenantID string, userID string) ([]types.MenuRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT `+menuColumns+`
FROM navigation.menus m
WHERE m.tenant_uuid = $1::uuid
  AND (
    m.perms = ''
    OR EXISTS (
      SELECT 1 FROM navigation.user_perms p
      WHERE p.tenant_uuid = m.tenant_uuid AND p.user_id = $2::text AND p.perm = m.perms
    )
  )
ORDER BY m.sort_order ASC, m.id ASC
`, tenantID, userID)
	if err != nil {
		return nil, err
	}
	records, err := collectMenus(rows, tenantID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

// Move re-checks parent existence and ancestry inside the transaction so a
// concurrent move cannot slip a cycle past the service-level check.
func (s *MenuPGStore) Move(ctx context.Context, tenantID string, id string, parentID *string, order int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	if parentID != nil {
		var parentExists, cyclic bool
		if err := tx.QueryRow(ctx, `
WITH RECURSIVE up AS (
  SELECT id, parent_id FROM navigation.menus
  WHERE tenant_uuid = $1::uuid AND id = $2::text
  UNION
  SELECT m.id, m.parent_id FROM navigation.menus m
  JOIN up ON m.tenant_uuid = $1::uuid AND m.id = up.parent_id
)
SELECT EXISTS (SELECT 1 FROM up), EXISTS (SELECT 1 FROM up WHERE id = $3::text)
`, tenantID, *parentID, id).Scan(&parentExists, &cyclic); err != nil {
			return err
		}
		if !parentExists {
			return &types.InvalidParentError{NodeID: id, ParentID: *parentID}
		}
		if cyclic {
			return &types.CyclicMoveError{NodeID: id, NewParentID: *parentID}
		}
	}

	tag, err := tx.Exec(ctx, `
UPDATE navigation.menus
SET parent_id = $3::text, sort_order = $4::int, updated_at = now()
WHERE tenant_uuid = $1::uuid AND id = $2::text
`, tenantID, id, parentID, order)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.ErrMenuNotFound
	}

	return tx.Commit(ctx)
}

// Reorder applies every assignment in one batch; a row that is no longer a
// child of parentID aborts the whole batch.
func (s *MenuPGStore) Reorder(ctx context.Context, tenantID string, parentID *string, assignments []types.OrderAssignment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, a := range assignments {
		batch.Queue(`
UPDATE navigation.menus
SET sort_order = $3::int, updated_at = now()
WHERE tenant_uuid = $1::uuid AND id = $2::text AND parent_id IS NOT DISTINCT FROM $4::text
`, tenantID, a.ID, a.Order, parentID)
	}
	br := tx.SendBatch(ctx, batch)
	for range assignments {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return err
		}
		if tag.RowsAffected() == 0 {
			_ = br.Close()
			return types.ErrReorderForeignSibling
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *MenuPGStore) SetStatus(ctx context.Context, tenantID string, id string, patch types.StatusPatch) error {
	var sql string
	switch patch.Field {
	case types.StatusFieldDisabled:
		sql = `UPDATE navigation.menus SET disabled = $3::boolean, updated_at = now() WHERE tenant_uuid = $1::uuid AND id = $2::text`
	case types.StatusFieldHidden:
		sql = `UPDATE navigation.menus SET hidden = $3::boolean, updated_at = now() WHERE tenant_uuid = $1::uuid AND id = $2::text`
	default:
		return types.ErrUnknownStatusAction
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, sql, tenantID, id, patch.Value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.ErrMenuNotFound
	}

	return tx.Commit(ctx)
}

func (s *MenuPGStore) Create(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.MenuRecord{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return types.MenuRecord{}, err
	}

	out, err := scanMenu(tx.QueryRow(ctx, `
INSERT INTO navigation.menus (
  tenant_uuid, id, parent_id, name, label, slug, path, icon, menu_type, sort_order, disabled, hidden, perms, target
) VALUES (
  $1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, $8::text, $9::text, $10::int, $11::boolean, $12::boolean, $13::text, $14::text
)
RETURNING `+menuColumns+`
`, tenantID, rec.ID, rec.ParentID, rec.Name, rec.Label, rec.Slug, rec.Path, rec.Icon,
		string(rec.Type), rec.Order, rec.Disabled, rec.Hidden, rec.Perms, string(rec.Target)), tenantID)
	if err != nil {
		if isUniqueViolation(err) {
			return types.MenuRecord{}, httperr.NewConflict("menu_id_exists")
		}
		return types.MenuRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.MenuRecord{}, err
	}
	return out, nil
}

func (s *MenuPGStore) Update(ctx context.Context, tenantID string, rec types.MenuRecord) (types.MenuRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.MenuRecord{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return types.MenuRecord{}, err
	}

	out, err := scanMenu(tx.QueryRow(ctx, `
UPDATE navigation.menus
SET name = $3::text, label = $4::text, slug = $5::text, path = $6::text, icon = $7::text,
    menu_type = $8::text, disabled = $9::boolean, hidden = $10::boolean, perms = $11::text,
    target = $12::text, updated_at = now()
WHERE tenant_uuid = $1::uuid AND id = $2::text
RETURNING `+menuColumns+`
`, tenantID, rec.ID, rec.Name, rec.Label, rec.Slug, rec.Path, rec.Icon,
		string(rec.Type), rec.Disabled, rec.Hidden, rec.Perms, string(rec.Target)), tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.MenuRecord{}, types.ErrMenuNotFound
		}
		return types.MenuRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.MenuRecord{}, err
	}
	return out, nil
}

func (s *MenuPGStore) Delete(ctx context.Context, tenantID string, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM navigation.menus WHERE tenant_uuid = $1::uuid AND id = $2::text`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.ErrMenuNotFound
	}

	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	pgErr, ok := errors.AsType[*pgconn.PgError](err)
	return ok && pgErr != nil && pgErr.Code == "23505"
}
