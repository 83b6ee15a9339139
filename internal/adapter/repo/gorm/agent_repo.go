package gormrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"mash/internal/adapter/repo/gorm/model"
	"mash/internal/app/ports"
	"mash/internal/domain/mud"
)

type AgentRepo struct {
	db *gorm.DB
}

func NewAgentRepo(db *gorm.DB) AgentRepo {
	return AgentRepo{db: db}
}

func agentToModel(a mud.Agent) model.Agent {
	return model.Agent{
		ID:                  a.ID,
		Username:            a.Username,
		PasswordHash:        a.PasswordHash,
		Token:               a.Token,
		CurrentNodeID:       a.CurrentNodeID,
		HomeNodeID:          a.HomeNodeID,
		Ap:                  a.AP,
		PurchasedApThisTick: a.PurchasedAPThisTick,
		ShortDescription:    a.ShortDescription,
		LongDescription:     a.LongDescription,
		PerceptionAgents:    a.PerceptionAgents,
		PerceptionLinks:     a.PerceptionLinks,
		PerceptionThings:    a.PerceptionThings,
		SeeBroadcasts:       a.SeeBroadcasts,
		LastActiveAt:        a.LastActiveAt,
	}
}

func agentFromModel(m model.Agent) mud.Agent {
	return mud.Agent{
		ID:                  m.ID,
		Username:            m.Username,
		PasswordHash:        m.PasswordHash,
		Token:               m.Token,
		CurrentNodeID:       m.CurrentNodeID,
		HomeNodeID:          m.HomeNodeID,
		AP:                  m.Ap,
		PurchasedAPThisTick: m.PurchasedApThisTick,
		ShortDescription:    m.ShortDescription,
		LongDescription:     m.LongDescription,
		PerceptionAgents:    m.PerceptionAgents,
		PerceptionLinks:     m.PerceptionLinks,
		PerceptionThings:    m.PerceptionThings,
		SeeBroadcasts:       m.SeeBroadcasts,
		LastActiveAt:        m.LastActiveAt,
	}
}

func (r AgentRepo) getBy(ctx context.Context, query string, arg any) (mud.Agent, error) {
	var m model.Agent
	if err := getDBFromCtx(ctx, r.db).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mud.Agent{}, ports.ErrNotFound
		}
		return mud.Agent{}, err
	}
	return agentFromModel(m), nil
}

func (r AgentRepo) GetByID(ctx context.Context, id string) (mud.Agent, error) {
	return r.getBy(ctx, "id = ?", id)
}

func (r AgentRepo) GetByUsername(ctx context.Context, username string) (mud.Agent, error) {
	return r.getBy(ctx, "username = ?", username)
}

func (r AgentRepo) GetByToken(ctx context.Context, token string) (mud.Agent, error) {
	return r.getBy(ctx, "token = ?", token)
}

func (r AgentRepo) Create(ctx context.Context, agent mud.Agent) error {
	m := agentToModel(agent)
	return getDBFromCtx(ctx, r.db).Create(&m).Error
}

func (r AgentRepo) Update(ctx context.Context, agent mud.Agent) error {
	m := agentToModel(agent)
	res := getDBFromCtx(ctx, r.db).Model(&model.Agent{}).Where("id = ?", agent.ID).
		Select("*").Omit("id").Updates(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r AgentRepo) ListByNode(ctx context.Context, nodeID string) ([]mud.Agent, error) {
	var rows []model.Agent
	if err := getDBFromCtx(ctx, r.db).
		Where("current_node_id = ?", nodeID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]mud.Agent, 0, len(rows))
	for _, m := range rows {
		out = append(out, agentFromModel(m))
	}
	return out, nil
}

func (r AgentRepo) OccupiedNodes(ctx context.Context) ([]string, error) {
	var nodes []string
	err := getDBFromCtx(ctx, r.db).Model(&model.Agent{}).
		Distinct("current_node_id").
		Where("current_node_id <> ''").
		Order("current_node_id").
		Pluck("current_node_id", &nodes).Error
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r AgentRepo) IsHomeNode(ctx context.Context, nodeID string) (bool, error) {
	var count int64
	err := getDBFromCtx(ctx, r.db).Model(&model.Agent{}).
		Where("home_node_id = ?", nodeID).Count(&count).Error
	return count > 0, err
}

func (r AgentRepo) ListIdleSince(ctx context.Context, cutoffMs int64) ([]mud.Agent, error) {
	var rows []model.Agent
	err := getDBFromCtx(ctx, r.db).
		Where("current_node_id <> '' AND last_active_at <= ?", cutoffMs).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]mud.Agent, 0, len(rows))
	for _, m := range rows {
		out = append(out, agentFromModel(m))
	}
	return out, nil
}

func (r AgentRepo) ResetTickBudgets(ctx context.Context, maxAP int) error {
	return getDBFromCtx(ctx, r.db).Model(&model.Agent{}).
		Where("1 = 1").
		Updates(map[string]any{"ap": maxAP, "purchased_ap_this_tick": 0}).Error
}
