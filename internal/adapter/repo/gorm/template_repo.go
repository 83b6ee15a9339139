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

type TemplateRepo struct {
	db *gorm.DB
}

func NewTemplateRepo(db *gorm.DB) TemplateRepo {
	return TemplateRepo{db: db}
}

func templateToModel(t mud.Template) (model.Template, error) {
	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return model.Template{}, err
	}
	perms, err := json.Marshal(mud.EncodePermMap(t.DefaultPermissions))
	if err != nil {
		return model.Template{}, err
	}
	interactions, err := json.Marshal(mud.EncodeRules(t.Interactions))
	if err != nil {
		return model.Template{}, err
	}
	return model.Template{
		ID:                 t.ID,
		OwnerID:            t.OwnerID,
		Name:               t.Name,
		Kind:               string(t.Kind),
		ShortDescription:   t.ShortDescription,
		LongDescription:    t.LongDescription,
		Fields:             fields,
		DefaultPermissions: perms,
		Interactions:       interactions,
	}, nil
}

func templateFromModel(m model.Template) (mud.Template, error) {
	t := mud.Template{
		ID:               m.ID,
		OwnerID:          m.OwnerID,
		Name:             m.Name,
		Kind:             mud.Kind(m.Kind),
		ShortDescription: m.ShortDescription,
		LongDescription:  m.LongDescription,
	}
	if len(m.Fields) > 0 {
		if err := json.Unmarshal(m.Fields, &t.Fields); err != nil {
			return mud.Template{}, err
		}
	}
	if len(m.DefaultPermissions) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(m.DefaultPermissions, &raw); err != nil {
			return mud.Template{}, err
		}
		perms, err := mud.ParsePermMap(raw)
		if err != nil {
			return mud.Template{}, err
		}
		t.DefaultPermissions = perms
	}
	if len(m.Interactions) > 0 {
		var raw []any
		if err := json.Unmarshal(m.Interactions, &raw); err != nil {
			return mud.Template{}, err
		}
		rules, err := mud.ParseRules(raw)
		if err != nil {
			return mud.Template{}, err
		}
		t.Interactions = rules
	}
	return t, nil
}

func (r TemplateRepo) GetByID(ctx context.Context, id string) (mud.Template, error) {
	var m model.Template
	if err := getDBFromCtx(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mud.Template{}, ports.ErrNotFound
		}
		return mud.Template{}, err
	}
	return templateFromModel(m)
}

func (r TemplateRepo) Create(ctx context.Context, tpl mud.Template) error {
	m, err := templateToModel(tpl)
	if err != nil {
		return err
	}
	return getDBFromCtx(ctx, r.db).Create(&m).Error
}

func (r TemplateRepo) Update(ctx context.Context, tpl mud.Template) error {
	m, err := templateToModel(tpl)
	if err != nil {
		return err
	}
	res := getDBFromCtx(ctx, r.db).Model(&model.Template{}).Where("id = ?", tpl.ID).
		Select("*").Omit("id").Updates(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r TemplateRepo) Delete(ctx context.Context, id string) error {
	return getDBFromCtx(ctx, r.db).Where("id = ?", id).Delete(&model.Template{}).Error
}

func (r TemplateRepo) ListByOwner(ctx context.Context, ownerID string) ([]mud.Template, error) {
	var rows []model.Template
	if err := getDBFromCtx(ctx, r.db).
		Where("owner_id = ?", ownerID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]mud.Template, 0, len(rows))
	for _, m := range rows {
		t, err := templateFromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
