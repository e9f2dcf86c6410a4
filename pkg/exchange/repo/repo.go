package repo

import (
	"gorm.io/gorm"
)

type IRepo interface {
	FillEvent() IFillEvent
}

type Repo struct {
	settleDB *gorm.DB
}

func NewRepo(settleDB *gorm.DB) IRepo {
	return &Repo{
		settleDB: settleDB,
	}
}

func (r *Repo) FillEvent() IFillEvent {
	return NewFillEventSQLRepo(r.settleDB)
}
