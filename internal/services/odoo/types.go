package odoo

import (
	"encoding/json"
	"strconv"

	"github.com/ventortech/merpwms/internal/models"
	"gorm.io/datatypes"
)

// Records as returned by search_read. Relations come as [id, name] pairs,
// empty values as false.

type companyRecord struct {
	ID                      int64             `json:"id"`
	Name                    string            `json:"name"`
	OutgoingRoutingStrategy models.OdooString `json:"outgoing_routing_strategy"`
	OutgoingRoutingOrder    json.RawMessage   `json:"outgoing_routing_order"`
}

func (r companyRecord) model() models.ResCompany {
	return models.ResCompany{
		ID:                      r.ID,
		Name:                    r.Name,
		OutgoingRoutingStrategy: r.OutgoingRoutingStrategy.String(),
		OutgoingRoutingOrder:    selectionString(r.OutgoingRoutingOrder),
	}
}

// selectionString reads a selection value that may be a string, an
// integer or false.
func selectionString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

type locationRecord struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	CompleteName models.OdooString `json:"complete_name"`
	Barcode      models.OdooString `json:"barcode"`
	Usage        string            `json:"usage"`
	LocationID   models.Many2One   `json:"location_id"`
	RemovalPrio  int               `json:"removal_prio"`
	PosX         int               `json:"posx"`
	PosY         int               `json:"posy"`
	PosZ         int               `json:"posz"`
	Active       bool              `json:"active"`
}

func (r locationRecord) model() models.StockLocation {
	return models.StockLocation{
		ID:           r.ID,
		Name:         r.Name,
		CompleteName: r.CompleteName.String(),
		Barcode:      r.Barcode.String(),
		Usage:        r.Usage,
		LocationID:   r.LocationID.Ptr(),
		RemovalPrio:  r.RemovalPrio,
		PosX:         r.PosX,
		PosY:         r.PosY,
		PosZ:         r.PosZ,
		Active:       r.Active,
	}
}

type productRecord struct {
	ID          int64             `json:"id"`
	DefaultCode models.OdooString `json:"default_code"`
	Barcode     models.OdooString `json:"barcode"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Active      bool              `json:"active"`
	WriteDate   models.OdooTime   `json:"write_date"`
}

func (r productRecord) model(raw []byte) models.ProductProduct {
	return models.ProductProduct{
		ID:          r.ID,
		DefaultCode: r.DefaultCode,
		Barcode:     r.Barcode,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Active:      r.Active,
		WriteDate:   r.WriteDate.Time,
		RawData:     datatypes.JSON(raw),
	}
}

type pickingTypeRecord struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Code         string            `json:"code"`
	SequenceCode models.OdooString `json:"sequence_code"`
	WarehouseID  models.Many2One   `json:"warehouse_id"`
	Active       bool              `json:"active"`
}

func (r pickingTypeRecord) model() models.StockPickingType {
	return models.StockPickingType{
		ID:           r.ID,
		Name:         r.Name,
		Code:         r.Code,
		SequenceCode: r.SequenceCode.String(),
		WarehouseID:  r.WarehouseID.Ptr(),
		Active:       r.Active,
	}
}

type pickingRecord struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	State          string            `json:"state"`
	LocationID     models.Many2One   `json:"location_id"`
	LocationDestID models.Many2One   `json:"location_dest_id"`
	PickingTypeID  models.Many2One   `json:"picking_type_id"`
	GroupID        models.Many2One   `json:"group_id"`
	CompanyID      models.Many2One   `json:"company_id"`
	Origin         models.OdooString `json:"origin"`
	ScheduledDate  models.OdooTime   `json:"scheduled_date"`
	CreateDate     models.OdooTime   `json:"create_date"`
}

func (r pickingRecord) model() models.StockPicking {
	return models.StockPicking{
		ID:             r.ID,
		Name:           r.Name,
		State:          r.State,
		LocationID:     r.LocationID.ID,
		LocationDestID: r.LocationDestID.ID,
		PickingTypeID:  r.PickingTypeID.Ptr(),
		GroupID:        r.GroupID.Ptr(),
		CompanyID:      r.CompanyID.Ptr(),
		Origin:         r.Origin.String(),
		ScheduledDate:  r.ScheduledDate.Time,
		CreateDate:     r.CreateDate.Time,
	}
}

type moveRecord struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	PickingID      models.Many2One `json:"picking_id"`
	ProductID      models.Many2One `json:"product_id"`
	GroupID        models.Many2One `json:"group_id"`
	State          string          `json:"state"`
	ProductUomQty  float64         `json:"product_uom_qty"`
	LocationID     models.Many2One `json:"location_id"`
	LocationDestID models.Many2One `json:"location_dest_id"`
}

func (r moveRecord) model() models.StockMove {
	return models.StockMove{
		ID:             r.ID,
		Name:           r.Name,
		PickingID:      r.PickingID.Ptr(),
		ProductID:      r.ProductID.ID,
		GroupID:        r.GroupID.Ptr(),
		State:          r.State,
		ProductUomQty:  r.ProductUomQty,
		LocationID:     r.LocationID.ID,
		LocationDestID: r.LocationDestID.ID,
	}
}

type moveLineRecord struct {
	ID             int64           `json:"id"`
	PickingID      models.Many2One `json:"picking_id"`
	MoveID         models.Many2One `json:"move_id"`
	ProductID      models.Many2One `json:"product_id"`
	LocationID     models.Many2One `json:"location_id"`
	LocationDestID models.Many2One `json:"location_dest_id"`
	ProductUomQty  float64         `json:"product_uom_qty"`
	QtyDone        float64         `json:"qty_done"`
}

func (r moveLineRecord) model() models.StockMoveLine {
	return models.StockMoveLine{
		ID:             r.ID,
		PickingID:      r.PickingID.ID,
		MoveID:         r.MoveID.Ptr(),
		ProductID:      r.ProductID.ID,
		LocationID:     r.LocationID.ID,
		LocationDestID: r.LocationDestID.ID,
		ProductUomQty:  r.ProductUomQty,
		QtyDone:        r.QtyDone,
	}
}
