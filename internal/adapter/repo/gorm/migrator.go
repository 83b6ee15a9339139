package gormrepo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mash/internal/adapter/repo/gorm/model"
)

// AutoMigrate creates the schema and seeds the singleton world-state
// row and the ordinal sequences.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&model.Agent{},
		&model.Template{},
		&model.Instance{},
		&model.QueueEntry{},
		&model.Event{},
		&model.LinkUsage{},
		&model.WorldState{},
		&model.Sequence{},
	); err != nil {
		return err
	}

	seed := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true})
	if err := seed.Create(&model.WorldState{Key: worldStateKey}).Error; err != nil {
		return err
	}
	for _, name := range []string{seqQueue, seqEvents} {
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.Sequence{Name: name}).Error; err != nil {
			return err
		}
	}
	return nil
}
