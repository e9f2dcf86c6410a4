package repo

import (
	"context"

	"github.com/joripage/clob-engine/pkg/exchange/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FillEventSQLRepo struct {
	db *gorm.DB
}

func NewFillEventSQLRepo(db *gorm.DB) *FillEventSQLRepo {
	return &FillEventSQLRepo{
		db: db,
	}
}

func (s *FillEventSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *FillEventSQLRepo) Create(ctx context.Context, record *model.FillEventRecord) (*model.FillEventRecord, error) {
	return record, r.dbWithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error
}

func (r *FillEventSQLRepo) BulkCreate(ctx context.Context, records []*model.FillEventRecord) ([]*model.FillEventRecord, error) {
	return records, r.dbWithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(records).Error
}
