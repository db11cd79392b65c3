package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ventortech/merpwms/internal/models"
	"github.com/ventortech/merpwms/internal/picking"
	"gorm.io/gorm"
)

// PickingStore implements picking.Store and the company routing settings
type PickingStore struct {
	db *gorm.DB
}

// NewPickingStore creates a picking list store on db
func NewPickingStore(db *gorm.DB) *PickingStore {
	return &PickingStore{db: db}
}

func pickingErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return picking.ErrNotFound
	}
	return err
}

func (s *PickingStore) Company(ctx context.Context, id int64) (*models.ResCompany, error) {
	var c models.ResCompany
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, pickingErr(err)
	}
	return &c, nil
}

func (s *PickingStore) Picking(ctx context.Context, id int64) (*models.StockPicking, error) {
	var p models.StockPicking
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, pickingErr(err)
	}
	return &p, nil
}

func (s *PickingStore) MoveLines(ctx context.Context, pickingID int64) ([]models.StockMoveLine, error) {
	var lines []models.StockMoveLine
	err := s.db.WithContext(ctx).
		Preload("Product").
		Preload("Location").
		Where("picking_id = ?", pickingID).
		Order("id").
		Find(&lines).Error
	return lines, err
}

// UpdateRouting stores the outgoing routing settings of a company
func (s *PickingStore) UpdateRouting(ctx context.Context, id int64, strategy picking.Strategy, order picking.Order) (*models.ResCompany, error) {
	db := s.db.WithContext(ctx)
	c, err := s.Company(ctx, id)
	if err != nil {
		return nil, err
	}
	orderValue := "0"
	if order == picking.Descending {
		orderValue = "1"
	}
	err = db.Model(c).Updates(map[string]interface{}{
		"outgoing_routing_strategy": string(strategy),
		"outgoing_routing_order":    orderValue,
	}).Error
	if err != nil {
		return nil, err
	}
	c.OutgoingRoutingStrategy = string(strategy)
	c.OutgoingRoutingOrder = orderValue
	return c, nil
}

// UpsertCompany writes a company mirrored from the host ERP. Routing
// settings are only overwritten when the ERP sent them.
func (s *PickingStore) UpsertCompany(ctx context.Context, c *models.ResCompany) error {
	c.LastSyncedAt = time.Now()
	db := s.db.WithContext(ctx)
	var existing models.ResCompany
	err := db.First(&existing, c.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if c.OutgoingRoutingStrategy == "" {
			c.OutgoingRoutingStrategy = string(picking.StrategyName)
		}
		if c.OutgoingRoutingOrder == "" {
			c.OutgoingRoutingOrder = "0"
		}
		return db.Create(c).Error
	}
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"name":           c.Name,
		"last_synced_at": c.LastSyncedAt,
	}
	if c.OutgoingRoutingStrategy != "" {
		updates["outgoing_routing_strategy"] = c.OutgoingRoutingStrategy
	}
	if c.OutgoingRoutingOrder != "" {
		updates["outgoing_routing_order"] = c.OutgoingRoutingOrder
	}
	return db.Model(&existing).Updates(updates).Error
}
