package gormrepo

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"mash/internal/adapter/repo/gorm/model"
	"mash/internal/app/ports"
	"mash/internal/domain/mud"
)

type InstanceRepo struct {
	db *gorm.DB
}

func NewInstanceRepo(db *gorm.DB) InstanceRepo {
	return InstanceRepo{db: db}
}

func instanceToModel(i mud.Instance) (model.Instance, error) {
	fields, err := json.Marshal(i.Fields)
	if err != nil {
		return model.Instance{}, err
	}
	perms, err := json.Marshal(mud.EncodePermMap(i.Permissions))
	if err != nil {
		return model.Instance{}, err
	}
	return model.Instance{
		ID:               i.ID,
		TemplateID:       i.TemplateID,
		Kind:             string(i.Kind),
		ShortDescription: i.ShortDescription,
		LongDescription:  i.LongDescription,
		Fields:           fields,
		Permissions:      perms,
		ContainerType:    string(i.Container.Type),
		ContainerID:      i.Container.ID,
		IsVoid:           i.IsVoid,
		IsDestroyed:      i.IsDestroyed,
		SystemType:       string(i.SystemType),
		InteractionsUsed: i.InteractionsUsed,
	}, nil
}

func instanceFromModel(m model.Instance) (mud.Instance, error) {
	i := mud.Instance{
		ID:               m.ID,
		TemplateID:       m.TemplateID,
		Kind:             mud.Kind(m.Kind),
		ShortDescription: m.ShortDescription,
		LongDescription:  m.LongDescription,
		Container:        mud.ContainerRef{Type: mud.ContainerType(m.ContainerType), ID: m.ContainerID},
		IsVoid:           m.IsVoid,
		IsDestroyed:      m.IsDestroyed,
		SystemType:       mud.SystemType(m.SystemType),
		InteractionsUsed: m.InteractionsUsed,
	}
	if len(m.Fields) > 0 {
		if err := json.Unmarshal(m.Fields, &i.Fields); err != nil {
			return mud.Instance{}, err
		}
	}
	if len(m.Permissions) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(m.Permissions, &raw); err != nil {
			return mud.Instance{}, err
		}
		perms, err := mud.ParsePermMap(raw)
		if err != nil {
			return mud.Instance{}, err
		}
		i.Permissions = perms
	}
	return i, nil
}

func (r InstanceRepo) GetByID(ctx context.Context, id string) (mud.Instance, error) {
	var m model.Instance
	if err := getDBFromCtx(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mud.Instance{}, ports.ErrNotFound
		}
		return mud.Instance{}, err
	}
	return instanceFromModel(m)
}

func (r InstanceRepo) Create(ctx context.Context, inst mud.Instance) error {
	m, err := instanceToModel(inst)
	if err != nil {
		return err
	}
	return getDBFromCtx(ctx, r.db).Create(&m).Error
}

func (r InstanceRepo) Update(ctx context.Context, inst mud.Instance) error {
	m, err := instanceToModel(inst)
	if err != nil {
		return err
	}
	res := getDBFromCtx(ctx, r.db).Model(&model.Instance{}).Where("id = ?", inst.ID).
		Select("*").Omit("id").Updates(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r InstanceRepo) listLive(ctx context.Context, query string, args ...any) ([]mud.Instance, error) {
	var rows []model.Instance
	err := getDBFromCtx(ctx, r.db).
		Where("is_void = false AND is_destroyed = false").
		Where(query, args...).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]mud.Instance, 0, len(rows))
	for _, m := range rows {
		inst, err := instanceFromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func (r InstanceRepo) ListByContainer(ctx context.Context, c mud.ContainerRef) ([]mud.Instance, error) {
	return r.listLive(ctx, "container_type = ? AND container_id = ?", string(c.Type), c.ID)
}

func (r InstanceRepo) ListByTemplate(ctx context.Context, templateID string) ([]mud.Instance, error) {
	return r.listLive(ctx, "template_id = ?", templateID)
}

func (r InstanceRepo) FirstByTemplateInContainer(ctx context.Context, c mud.ContainerRef, templateID string) (mud.Instance, error) {
	var m model.Instance
	err := getDBFromCtx(ctx, r.db).
		Where("is_void = false AND is_destroyed = false").
		Where("container_type = ? AND container_id = ? AND template_id = ?", string(c.Type), c.ID, templateID).
		Order("id").First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mud.Instance{}, ports.ErrNotFound
		}
		return mud.Instance{}, err
	}
	return instanceFromModel(m)
}

func (r InstanceRepo) ExistsByTemplateAndContainerID(ctx context.Context, containerID, templateID string) (bool, error) {
	var count int64
	err := getDBFromCtx(ctx, r.db).Model(&model.Instance{}).
		Where("is_void = false AND is_destroyed = false").
		Where("container_id = ? AND template_id = ?", containerID, templateID).
		Count(&count).Error
	return count > 0, err
}

func (r InstanceRepo) ListNodes(ctx context.Context) ([]mud.Instance, error) {
	return r.listLive(ctx, "kind = ?", string(mud.KindNode))
}

func (r InstanceRepo) ResetInteractionCounters(ctx context.Context) error {
	return getDBFromCtx(ctx, r.db).Model(&model.Instance{}).
		Where("interactions_used <> 0").
		Update("interactions_used", 0).Error
}
