// Package repository holds the gorm implementations of the service stores.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ventortech/merpwms/internal/models"
	"github.com/ventortech/merpwms/internal/wave"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WaveStore implements wave.Store
type WaveStore struct {
	db *gorm.DB
}

// NewWaveStore creates a batch store on db
func NewWaveStore(db *gorm.DB) *WaveStore {
	return &WaveStore{db: db}
}

func waveErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return wave.ErrNotFound
	}
	return err
}

func orderedMoves(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func (s *WaveStore) Batch(ctx context.Context, id int64) (*models.StockPickingBatch, error) {
	var b models.StockPickingBatch
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, waveErr(err)
	}
	return &b, nil
}

func (s *WaveStore) Picking(ctx context.Context, id int64) (*models.StockPicking, error) {
	var p models.StockPicking
	err := s.db.WithContext(ctx).Preload("Moves", orderedMoves).First(&p, id).Error
	if err != nil {
		return nil, waveErr(err)
	}
	return &p, nil
}

func (s *WaveStore) Pickings(ctx context.Context, ids []int64) ([]models.StockPicking, error) {
	if len(ids) == 0 {
		return []models.StockPicking{}, nil
	}
	var found []models.StockPicking
	err := s.db.WithContext(ctx).Preload("Moves", orderedMoves).Where("id IN ?", ids).Find(&found).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.StockPicking, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.StockPicking, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("picking %d: %w", id, wave.ErrNotFound)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *WaveStore) BatchPickings(ctx context.Context, batchID int64) ([]models.StockPicking, error) {
	var out []models.StockPicking
	err := s.db.WithContext(ctx).Preload("Moves", orderedMoves).
		Where("batch_id = ?", batchID).Order("id").Find(&out).Error
	return out, err
}

// GroupPickings matches the group on the picking or on any of its moves
func (s *WaveStore) GroupPickings(ctx context.Context, groupID int64) ([]models.StockPicking, error) {
	db := s.db.WithContext(ctx)
	moves := db.Model(&models.StockMove{}).Select("picking_id").
		Where("group_id = ? AND picking_id IS NOT NULL", groupID)

	var out []models.StockPicking
	err := db.Preload("Moves", orderedMoves).
		Where("group_id = ? OR id IN (?)", groupID, moves).
		Order("id").Find(&out).Error
	return out, err
}

func (s *WaveStore) SaveBatch(ctx context.Context, b *models.StockPickingBatch) error {
	db := s.db.WithContext(ctx).Omit(clause.Associations)
	if b.ID == 0 {
		return db.Create(b).Error
	}
	return db.Save(b).Error
}

func (s *WaveStore) SavePicking(ctx context.Context, p *models.StockPicking) error {
	db := s.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(p).Error; err != nil {
		return fmt.Errorf("save picking %d: %w", p.ID, err)
	}
	if len(p.Moves) == 0 {
		return nil
	}
	for i := range p.Moves {
		pid := p.ID
		p.Moves[i].PickingID = &pid
	}
	if err := db.Save(&p.Moves).Error; err != nil {
		return fmt.Errorf("save moves of picking %d: %w", p.ID, err)
	}
	return nil
}

func (s *WaveStore) Atomic(ctx context.Context, fn func(wave.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&WaveStore{db: tx})
	})
}
