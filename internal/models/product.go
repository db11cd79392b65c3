package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProductProduct mirrors Odoo 'product.product'
type ProductProduct struct {
	ID          int64      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	DefaultCode OdooString `gorm:"index" json:"default_code"` // SKU
	Barcode     OdooString `gorm:"index" json:"barcode"`      // EAN13
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Active      bool       `gorm:"default:true" json:"active"`
	WriteDate   time.Time  `json:"write_date"`

	LastSyncedAt time.Time      `json:"last_synced_at"`
	RawData      datatypes.JSON `gorm:"type:jsonb" json:"raw_data"`
}

func (ProductProduct) TableName() string { return "product_product" }

// Label returns the name shown on picking lists
func (p ProductProduct) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}
