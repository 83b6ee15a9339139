package gormrepo

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"mash/internal/adapter/repo/gorm/model"
	"mash/internal/domain/mud"
)

type QueueRepo struct {
	db *gorm.DB
}

func NewQueueRepo(db *gorm.DB) QueueRepo {
	return QueueRepo{db: db}
}

func (r QueueRepo) Append(ctx context.Context, entry mud.QueueEntry) (int64, error) {
	ordinal, err := nextOrdinal(ctx, r.db, seqQueue)
	if err != nil {
		return 0, err
	}
	params, err := json.Marshal(entry.Params)
	if err != nil {
		return 0, err
	}
	m := model.QueueEntry{
		Ordinal:    ordinal,
		AgentID:    entry.AgentID,
		Verb:       entry.Verb,
		Params:     params,
		TickNumber: entry.TickNumber,
		CreatedAt:  entry.CreatedAt,
	}
	if err := getDBFromCtx(ctx, r.db).Create(&m).Error; err != nil {
		return 0, err
	}
	return ordinal, nil
}

func (r QueueRepo) Due(ctx context.Context, tick int64) ([]mud.QueueEntry, error) {
	var rows []model.QueueEntry
	err := getDBFromCtx(ctx, r.db).
		Where("tick_number <= ?", tick).
		Order("ordinal").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]mud.QueueEntry, 0, len(rows))
	for _, m := range rows {
		entry := mud.QueueEntry{
			Ordinal:    m.Ordinal,
			AgentID:    m.AgentID,
			Verb:       m.Verb,
			TickNumber: m.TickNumber,
			CreatedAt:  m.CreatedAt,
		}
		if len(m.Params) > 0 {
			if err := json.Unmarshal(m.Params, &entry.Params); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r QueueRepo) Delete(ctx context.Context, ordinal int64) error {
	return getDBFromCtx(ctx, r.db).Where("ordinal = ?", ordinal).Delete(&model.QueueEntry{}).Error
}
