package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/synerge/order101-backend/utils"
)

type Product struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku           string          `gorm:"size:50;uniqueIndex" json:"sku"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(20,6)" json:"purchase_price"`
	SalesPrice    decimal.Decimal `gorm:"type:decimal(20,6)" json:"sales_price"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return utils.FetchSingleModel[Product](ctx, id)
}
