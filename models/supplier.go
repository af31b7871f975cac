package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/utils"
)

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductSupplier maps a product to a sourcing supplier with its lead time
// and agreed purchase price. Unique per (product, supplier).
type ProductSupplier struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ProductId     int             `gorm:"not null;index:uniq_product_supplier,unique" json:"product_id"`
	SupplierId    int             `gorm:"not null;index:uniq_product_supplier,unique" json:"supplier_id"`
	LeadTimeDays  int             `gorm:"not null" json:"lead_time_days"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(20,6)" json:"purchase_price"`
	IsPreferred   bool            `gorm:"not null;default:false;index" json:"is_preferred"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func supplierMappingCacheKey(productId int) string {
	return fmt.Sprintf("supplierMapping:%d", productId)
}

// FindPreferredSupplier resolves the sourcing mapping for a product.
// Tie-break is deterministic: preferred flag first, then lowest supplier id.
// Returns ErrorSupplierMappingNotFound when no mapping exists.
func FindPreferredSupplier(ctx context.Context, productId int) (*ProductSupplier, error) {
	var cached ProductSupplier
	if found, err := config.GetRedisObject(supplierMappingCacheKey(productId), &cached); err == nil && found {
		return &cached, nil
	}

	db := config.GetDB()
	var mapping ProductSupplier
	err := db.WithContext(ctx).
		Where("product_id = ?", productId).
		Order("is_preferred DESC, supplier_id ASC").
		First(&mapping).Error
	if err != nil {
		return nil, utils.ErrorSupplierMappingNotFound
	}

	// Best effort cache; invalidated on mapping writes.
	_ = config.SetRedisObject(supplierMappingCacheKey(productId), mapping, 10*time.Minute)

	return &mapping, nil
}

// SaveProductSupplier upserts a mapping and drops the cache entry.
func SaveProductSupplier(ctx context.Context, mapping *ProductSupplier) error {
	db := config.GetDB()
	if err := db.WithContext(ctx).Save(mapping).Error; err != nil {
		return err
	}
	return config.RemoveRedisKey(supplierMappingCacheKey(mapping.ProductId))
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	return utils.FetchSingleModel[Supplier](ctx, id)
}
