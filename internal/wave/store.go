package wave

import (
	"context"

	"github.com/ventortech/merpwms/internal/models"
)

// Store persists batches and their pickings
type Store interface {
	// Batch returns the batch without its pickings
	Batch(ctx context.Context, id int64) (*models.StockPickingBatch, error)
	// Picking returns the picking with its moves
	Picking(ctx context.Context, id int64) (*models.StockPicking, error)
	// Pickings returns the pickings with the given ids; a missing id is an
	// ErrNotFound.
	Pickings(ctx context.Context, ids []int64) ([]models.StockPicking, error)
	// BatchPickings returns the members of a batch ordered by id
	BatchPickings(ctx context.Context, batchID int64) ([]models.StockPicking, error)
	// GroupPickings returns every picking of a procurement group
	GroupPickings(ctx context.Context, groupID int64) ([]models.StockPicking, error)

	// SaveBatch creates the batch when its ID is zero, updates it otherwise
	SaveBatch(ctx context.Context, b *models.StockPickingBatch) error
	// SavePicking updates a picking and its moves
	SavePicking(ctx context.Context, p *models.StockPicking) error

	// Atomic runs fn inside a transaction
	Atomic(ctx context.Context, fn func(Store) error) error
}

// StockBackend drives the stock state machine of pickings
// (draft -> confirmed -> assigned -> done). It is either the local store
// or the host ERP.
type StockBackend interface {
	Confirm(ctx context.Context, pickingIDs []int64) error
	Assign(ctx context.Context, pickingIDs []int64) error
	Validate(ctx context.Context, pickingIDs []int64) error
	States(ctx context.Context, pickingIDs []int64) (map[int64]string, error)
}

// Notifier receives batch lifecycle events
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

// Event types
const (
	EventBatchCreated   = "batch.created"
	EventBatchUpdated   = "batch.updated"
	EventBatchConfirmed = "batch.confirmed"
	EventBatchDone      = "batch.done"
	EventPickingRetyped = "picking.type_changed"
)

// Event describes a batch transition
type Event struct {
	Type       string  `json:"type"`
	BatchID    int64   `json:"batchId"`
	State      string  `json:"state,omitempty"`
	PickingIDs []int64 `json:"pickingIds,omitempty"`
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, Event) {}

// Notifiers fans an event out to several receivers
type Notifiers []Notifier

func (ns Notifiers) Publish(ctx context.Context, ev Event) {
	for _, n := range ns {
		n.Publish(ctx, ev)
	}
}
