package store

import (
	"context"
	"fmt"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
)

var lifecycleTables = map[string]string{
	models.EntityUser:       "users",
	models.EntityRole:       "roles",
	models.EntityPermission: "permissions",
	models.EntityClient:     "clients",
	models.EntityProduct:    "products",
}

func lifecycleTable(entity string) (string, error) {
	table, ok := lifecycleTables[entity]
	if !ok {
		return "", fmt.Errorf("unknown lifecycle entity: %s", entity)
	}
	return table, nil
}

// SetDeleted soft deletes (deleted=true) or re-activates (deleted=false) a record
func (s *Store) SetDeleted(ctx context.Context, entity, id string, deleted bool) error {
	table, err := lifecycleTable(entity)
	if err != nil {
		return err
	}

	var deletedAt *time.Time
	if deleted {
		now := time.Now().UTC()
		deletedAt = &now
	}

	res, err := s.q.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET is_deleted = $1, deleted_at = $2, updated_at = NOW() WHERE id = $3", table),
		deleted, deletedAt, id)
	if err != nil {
		return mapError(err, entity)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("%s %s not found", entity, id)
	}
	return nil
}

// HardDelete removes a record that was soft deleted first
func (s *Store) HardDelete(ctx context.Context, entity, id string) error {
	table, err := lifecycleTable(entity)
	if err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND is_deleted = TRUE", table), id)
	if err != nil {
		return mapError(err, entity)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("%s %s not found or not soft deleted", entity, id)
	}
	return nil
}
