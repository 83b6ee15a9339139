package gormrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"mash/internal/adapter/repo/gorm/model"
	"mash/internal/app/ports"
	"mash/internal/domain/mud"
)

const worldStateKey = "world"

type WorldStateRepo struct {
	db *gorm.DB
}

func NewWorldStateRepo(db *gorm.DB) WorldStateRepo {
	return WorldStateRepo{db: db}
}

func (r WorldStateRepo) Get(ctx context.Context) (mud.WorldState, error) {
	var m model.WorldState
	if err := getDBFromCtx(ctx, r.db).Where("key = ?", worldStateKey).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mud.WorldState{}, ports.ErrNotFound
		}
		return mud.WorldState{}, err
	}
	return mud.WorldState{TickNumber: m.TickNumber, LastTickAt: m.LastTickAt}, nil
}

func (r WorldStateRepo) Put(ctx context.Context, state mud.WorldState) error {
	return getDBFromCtx(ctx, r.db).Model(&model.WorldState{}).
		Where("key = ?", worldStateKey).
		Updates(map[string]any{"tick_number": state.TickNumber, "last_tick_at": state.LastTickAt}).Error
}
