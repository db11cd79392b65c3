package models

import (
	"time"
)

// StockLocation mirrors 'stock.location'.
type StockLocation struct {
	ID           int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name         string `json:"name"`
	CompleteName string `gorm:"index" json:"complete_name"` // "WH/Stock/Shelf 1"
	Barcode      string `gorm:"index" json:"barcode"`
	Usage        string `json:"usage"`       // internal, supplier, customer...
	LocationID   *int64 `json:"location_id"` // Parent Location
	RemovalPrio  int    `gorm:"default:0" json:"removal_prio"`
	PosX         int    `gorm:"column:posx" json:"posx"` // Corridor
	PosY         int    `gorm:"column:posy" json:"posy"` // Shelves
	PosZ         int    `gorm:"column:posz" json:"posz"` // Height
	Active       bool   `gorm:"default:true" json:"active"`

	// Sync Meta
	LastSyncedAt time.Time `json:"last_synced_at"`
}

func (StockLocation) TableName() string {
	return "stock_location"
}

// StockPickingType mirrors 'stock.picking.type' (Receipts, Delivery Orders, ...)
type StockPickingType struct {
	ID           int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code"` // incoming, outgoing, internal
	SequenceCode string `json:"sequence_code"`
	WarehouseID  *int64 `json:"warehouse_id"`
	Active       bool   `gorm:"default:true" json:"active"`
}

func (StockPickingType) TableName() string {
	return "stock_picking_type"
}

// Picking states, as driven by the stock module
const (
	PickingStateDraft     = "draft"
	PickingStateWaiting   = "waiting"
	PickingStateConfirmed = "confirmed"
	PickingStateAssigned  = "assigned"
	PickingStateDone      = "done"
	PickingStateCancel    = "cancel"
)

// StockPicking mirrors 'stock.picking' (Transfer Orders)
type StockPicking struct {
	ID             int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name           string    `gorm:"index" json:"name"` // WH/OUT/0001
	State          string    `gorm:"index;default:'draft'" json:"state"`
	LocationID     int64     `json:"location_id"`      // Source
	LocationDestID int64     `json:"location_dest_id"` // Dest
	PickingTypeID  *int64    `gorm:"index" json:"picking_type_id"`
	BatchID        *int64    `gorm:"index" json:"batch_id"`
	GroupID        *int64    `gorm:"index" json:"group_id"` // procurement.group
	CompanyID      *int64    `json:"company_id"`
	Origin         string    `json:"origin"`
	ScheduledDate  time.Time `json:"scheduled_date"`
	CreateDate     time.Time `gorm:"index" json:"create_date"`

	Moves []StockMove `gorm:"foreignKey:PickingID" json:"moves,omitempty"`
}

func (StockPicking) TableName() string {
	return "stock_picking"
}

// IsOpen reports whether the picking can still be processed
func (p StockPicking) IsOpen() bool {
	return p.State != PickingStateDone && p.State != PickingStateCancel
}

// StockMove mirrors 'stock.move'
type StockMove struct {
	ID             int64   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name           string  `json:"name"`
	PickingID      *int64  `gorm:"index" json:"picking_id"`
	ProductID      int64   `gorm:"index" json:"product_id"`
	GroupID        *int64  `gorm:"index" json:"group_id"`
	State          string  `gorm:"index;default:'draft'" json:"state"`
	ProductUomQty  float64 `json:"product_uom_qty"`
	LocationID     int64   `json:"location_id"`
	LocationDestID int64   `json:"location_dest_id"`
}

func (StockMove) TableName() string {
	return "stock_move"
}

// StockMoveLine mirrors 'stock.move.line' (Detailed Operations)
type StockMoveLine struct {
	ID             int64   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	PickingID      int64   `gorm:"index" json:"picking_id"`
	MoveID         *int64  `gorm:"index" json:"move_id"`
	ProductID      int64   `gorm:"index" json:"product_id"`
	LocationID     int64   `json:"location_id"`
	LocationDestID int64   `json:"location_dest_id"`
	ProductUomQty  float64 `json:"product_uom_qty"`
	QtyDone        float64 `json:"qty_done"`

	// Relations
	Product  *ProductProduct `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Location *StockLocation  `gorm:"foreignKey:LocationID" json:"location,omitempty"`
}

func (StockMoveLine) TableName() string {
	return "stock_move_line"
}

// Batch states
const (
	BatchStateDraft      = "draft"
	BatchStateInProgress = "in_progress"
	BatchStateDone       = "done"
	BatchStateCancel     = "cancel"
)

// StockPickingBatch mirrors 'stock.picking.batch' (picking wave). All member
// pickings share one picking type, stored as PickingWaveTypeID.
type StockPickingBatch struct {
	ID                int64     `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"not null" json:"name"`
	State             string    `gorm:"index;default:'draft'" json:"state"`
	PickingWaveTypeID *int64    `gorm:"index" json:"picking_wave_type"`
	UserID            *string   `gorm:"type:uuid" json:"user_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Pickings []StockPicking `gorm:"foreignKey:BatchID" json:"pickings,omitempty"`
}

func (StockPickingBatch) TableName() string {
	return "stock_picking_batch"
}
