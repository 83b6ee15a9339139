package gormrepo

import (
	"context"

	"gorm.io/gorm"

	"mash/internal/adapter/repo/gorm/model"
	"mash/internal/domain/mud"
)

type LinkUsageRepo struct {
	db *gorm.DB
}

func NewLinkUsageRepo(db *gorm.DB) LinkUsageRepo {
	return LinkUsageRepo{db: db}
}

func (r LinkUsageRepo) Append(ctx context.Context, usage mud.LinkUsage) error {
	m := model.LinkUsage{
		ID:       usage.ID,
		AgentID:  usage.AgentID,
		LinkID:   usage.LinkID,
		NodeID:   usage.NodeID,
		NodeName: usage.NodeName,
		UsedAt:   usage.UsedAt,
	}
	return getDBFromCtx(ctx, r.db).Create(&m).Error
}

func (r LinkUsageRepo) ListRecent(ctx context.Context, agentID string, limit int) ([]mud.LinkUsage, error) {
	var rows []model.LinkUsage
	query := getDBFromCtx(ctx, r.db).
		Where("agent_id = ?", agentID).
		Order("used_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]mud.LinkUsage, 0, len(rows))
	for _, m := range rows {
		out = append(out, mud.LinkUsage{
			ID:       m.ID,
			AgentID:  m.AgentID,
			LinkID:   m.LinkID,
			NodeID:   m.NodeID,
			NodeName: m.NodeName,
			UsedAt:   m.UsedAt,
		})
	}
	return out, nil
}
