package odoo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

const pickingModel = "stock.picking"

// StockBackend drives picking states in Odoo. It implements
// wave.StockBackend so batches confirmed here run the ERP's own
// reservation and validation.
type StockBackend struct {
	client *Client
	log    zerolog.Logger
}

// NewStockBackend creates a stock backend on client
func NewStockBackend(client *Client, log zerolog.Logger) *StockBackend {
	return &StockBackend{
		client: client,
		log:    log.With().Str("component", "odoo_stock").Logger(),
	}
}

// validateContext skips the wizards button_validate would otherwise open
var validateContext = map[string]interface{}{
	"context": map[string]interface{}{
		"skip_backorder": true,
		"skip_immediate": true,
		"skip_sms":       true,
	},
}

func (b *StockBackend) run(ctx context.Context, method string, ids []int64, kwargs map[string]interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := b.client.CallMethod(ctx, pickingModel, method, ids, kwargs)
	if err != nil {
		return fmt.Errorf("%s on pickings %v: %w", method, ids, err)
	}
	if action, ok := res.(map[string]interface{}); ok {
		// A wizard came back instead of True; states are re-read by the caller
		b.log.Warn().Str("method", method).Ints64("picking_ids", ids).
			Interface("res_model", action["res_model"]).Msg("odoo returned an action")
	}
	b.log.Debug().Str("method", method).Ints64("picking_ids", ids).Msg("odoo stock call")
	return nil
}

func (b *StockBackend) Confirm(ctx context.Context, ids []int64) error {
	return b.run(ctx, "action_confirm", ids, nil)
}

func (b *StockBackend) Assign(ctx context.Context, ids []int64) error {
	return b.run(ctx, "action_assign", ids, nil)
}

func (b *StockBackend) Validate(ctx context.Context, ids []int64) error {
	return b.run(ctx, "button_validate", ids, validateContext)
}

func (b *StockBackend) States(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ID    int64  `json:"id"`
		State string `json:"state"`
	}
	if err := b.client.Read(ctx, pickingModel, ids, []string{"state"}, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r.State
	}
	return out, nil
}
