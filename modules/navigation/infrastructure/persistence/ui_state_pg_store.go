package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
)

// UIStatePGStore keeps one principal's UI state rows.
type UIStatePGStore struct {
	pool        pgBeginner
	tenantID    string
	principalID string
}

func NewUIStatePGStore(pool pgBeginner, tenantID string, principalID string) ports.UIStateStorage {
	return &UIStatePGStore{pool: pool, tenantID: tenantID, principalID: principalID}
}

func (s *UIStatePGStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, s.tenantID); err != nil {
		return nil, false, err
	}

	var value []byte
	if err := tx.QueryRow(ctx, `
SELECT value
FROM navigation.ui_state
WHERE tenant_uuid = $1::uuid AND principal_id = $2::text AND state_key = $3::text
`, s.tenantID, s.principalID, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *UIStatePGStore) Set(ctx context.Context, key string, value []byte) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, s.tenantID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO navigation.ui_state (tenant_uuid, principal_id, state_key, value)
VALUES ($1::uuid, $2::text, $3::text, $4::jsonb)
ON CONFLICT (tenant_uuid, principal_id, state_key)
DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`, s.tenantID, s.principalID, key, value); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
