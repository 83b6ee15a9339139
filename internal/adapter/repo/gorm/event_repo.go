package gormrepo

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"mash/internal/adapter/repo/gorm/model"
	"mash/internal/domain/mud"
)

type EventRepo struct {
	db *gorm.DB
}

func NewEventRepo(db *gorm.DB) EventRepo {
	return EventRepo{db: db}
}

func (r EventRepo) Append(ctx context.Context, event mud.Event) (int64, error) {
	ordinal, err := nextOrdinal(ctx, r.db, seqEvents)
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return 0, err
	}
	m := model.Event{
		Ordinal:   ordinal,
		AgentID:   event.AgentID,
		Type:      string(event.Type),
		Data:      data,
		CreatedAt: event.CreatedAt,
	}
	if err := getDBFromCtx(ctx, r.db).Create(&m).Error; err != nil {
		return 0, err
	}
	return ordinal, nil
}

// Drain is a destructive read: the returned rows are deleted in the
// same transaction.
func (r EventRepo) Drain(ctx context.Context, agentID string, limit int) ([]mud.Event, error) {
	db := getDBFromCtx(ctx, r.db)
	var rows []model.Event
	query := db.Where("agent_id = ?", agentID).Order("ordinal")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ordinals := make([]int64, 0, len(rows))
	out := make([]mud.Event, 0, len(rows))
	for _, m := range rows {
		ordinals = append(ordinals, m.Ordinal)
		event := mud.Event{
			Ordinal:   m.Ordinal,
			AgentID:   m.AgentID,
			Type:      mud.EventType(m.Type),
			CreatedAt: m.CreatedAt,
		}
		if len(m.Data) > 0 {
			if err := json.Unmarshal(m.Data, &event.Data); err != nil {
				return nil, err
			}
		}
		out = append(out, event)
	}
	if err := db.Where("ordinal IN ?", ordinals).Delete(&model.Event{}).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r EventRepo) DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error) {
	res := getDBFromCtx(ctx, r.db).Where("created_at < ?", cutoffMs).Delete(&model.Event{})
	return res.RowsAffected, res.Error
}
