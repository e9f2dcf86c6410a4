package repo

import (
	"context"

	"github.com/joripage/clob-engine/pkg/exchange/model"
)

type IFillEvent interface {
	Create(ctx context.Context, record *model.FillEventRecord) (*model.FillEventRecord, error)
	BulkCreate(ctx context.Context, records []*model.FillEventRecord) ([]*model.FillEventRecord, error)
}
