package gormrepo

import (
	"context"

	"gorm.io/gorm"
)

const (
	seqQueue  = "queue"
	seqEvents = "events"
)

// nextOrdinal bumps a named sequence inside the caller's transaction.
// All writers serialise on the world lock, so ordinals are strictly
// increasing across the process.
func nextOrdinal(ctx context.Context, db *gorm.DB, name string) (int64, error) {
	var value int64
	err := getDBFromCtx(ctx, db).
		Raw(`UPDATE sequences SET value = value + 1 WHERE name = ? RETURNING value`, name).
		Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
