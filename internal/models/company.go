package models

import "time"

// ResCompany mirrors Odoo 'res.company' with the outgoing routing settings
// used to order printed picking lists.
type ResCompany struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name string `json:"name"`

	// Strategy: "product" or the name of a stock.location attribute
	OutgoingRoutingStrategy string `gorm:"default:'name'" json:"outgoing_routing_strategy"`
	// "0" ascending, "1" descending
	OutgoingRoutingOrder string `gorm:"default:'0'" json:"outgoing_routing_order"`

	LastSyncedAt time.Time `json:"last_synced_at"`
}

func (ResCompany) TableName() string {
	return "res_company"
}
