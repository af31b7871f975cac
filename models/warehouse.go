package models

import (
	"context"
	"time"

	"github.com/synerge/order101-backend/utils"
)

type Warehouse struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Code      string    `gorm:"size:30;uniqueIndex" json:"code"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetWarehouse(ctx context.Context, id int) (*Warehouse, error) {
	return utils.FetchSingleModel[Warehouse](ctx, id)
}

func GetWarehouses(ctx context.Context) ([]*Warehouse, error) {
	return utils.FetchAllModels[Warehouse](ctx)
}
