package wave

import (
	"context"

	"github.com/ventortech/merpwms/internal/models"
)

// LocalStock runs the picking state machine on the local store. It is used
// when no host ERP is configured. Reservation never fails: every confirmed
// move is assignable.
type LocalStock struct {
	store Store
}

// NewLocalStock creates a stock backend on top of store
func NewLocalStock(store Store) *LocalStock {
	return &LocalStock{store: store}
}

// Confirm moves draft pickings and their draft moves to confirmed
func (l *LocalStock) Confirm(ctx context.Context, ids []int64) error {
	return l.transition(ctx, ids, func(p *models.StockPicking) bool {
		if p.State != models.PickingStateDraft {
			return false
		}
		p.State = models.PickingStateConfirmed
		setMoveStates(p, models.PickingStateConfirmed, models.PickingStateDraft)
		return true
	})
}

// Assign reserves open pickings. Draft pickings are confirmed on the way.
func (l *LocalStock) Assign(ctx context.Context, ids []int64) error {
	return l.transition(ctx, ids, func(p *models.StockPicking) bool {
		if !p.IsOpen() || p.State == models.PickingStateAssigned {
			return false
		}
		p.State = models.PickingStateAssigned
		setMoveStates(p, models.PickingStateAssigned,
			models.PickingStateDraft, models.PickingStateConfirmed, models.PickingStateWaiting)
		return true
	})
}

// Validate marks open pickings and their moves done
func (l *LocalStock) Validate(ctx context.Context, ids []int64) error {
	return l.transition(ctx, ids, func(p *models.StockPicking) bool {
		if !p.IsOpen() {
			return false
		}
		p.State = models.PickingStateDone
		setMoveStates(p, models.PickingStateDone,
			models.PickingStateDraft, models.PickingStateConfirmed, models.PickingStateWaiting, models.PickingStateAssigned)
		return true
	})
}

// States returns the current state of each picking
func (l *LocalStock) States(ctx context.Context, ids []int64) (map[int64]string, error) {
	pickings, err := l.store.Pickings(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(pickings))
	for _, p := range pickings {
		out[p.ID] = p.State
	}
	return out, nil
}

func (l *LocalStock) transition(ctx context.Context, ids []int64, apply func(*models.StockPicking) bool) error {
	return l.store.Atomic(ctx, func(tx Store) error {
		for _, id := range ids {
			p, err := tx.Picking(ctx, id)
			if err != nil {
				return err
			}
			if !apply(p) {
				continue
			}
			if err := tx.SavePicking(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func setMoveStates(p *models.StockPicking, to string, from ...string) {
	for i := range p.Moves {
		for _, f := range from {
			if p.Moves[i].State == f {
				p.Moves[i].State = to
				break
			}
		}
	}
}
