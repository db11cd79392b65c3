package odoo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/ventortech/merpwms/internal/config"
	"github.com/ventortech/merpwms/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pageSize = 500

// CompanyWriter stores companies without losing locally edited routing
// settings
type CompanyWriter interface {
	UpsertCompany(ctx context.Context, c *models.ResCompany) error
}

// SyncService mirrors the Odoo master data and transfers that batches and
// picking lists work on
type SyncService struct {
	client    *Client
	db        *gorm.DB
	companies CompanyWriter
	interval  time.Duration
	log       zerolog.Logger

	mu       sync.Mutex
	cursors  map[string]time.Time
	lastRun  time.Time
	lastErr  error
	cancel   context.CancelFunc
	finished chan struct{}
}

// NewSyncService creates a new synchronization service
func NewSyncService(client *Client, db *gorm.DB, companies CompanyWriter, cfg config.OdooConfig, log zerolog.Logger) *SyncService {
	interval := time.Duration(cfg.SyncInterval) * time.Minute
	if cfg.SyncInterval <= 0 {
		interval = 15 * time.Minute
	}
	return &SyncService{
		client:    client,
		db:        db,
		companies: companies,
		interval:  interval,
		log:       log.With().Str("component", "odoo_sync").Logger(),
		cursors:   map[string]time.Time{},
	}
}

// Start begins the background synchronization loop
func (s *SyncService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.finished = make(chan struct{})

	go func() {
		defer close(s.finished)
		s.log.Info().Dur("interval", s.interval).Msg("odoo sync started")

		if _, err := s.client.Authenticate(ctx); err != nil {
			s.log.Error().Err(err).Msg("odoo authentication failed")
			return
		}

		s.runLogged(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runLogged(ctx)
			case <-ctx.Done():
				s.log.Info().Msg("odoo sync stopped")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for a running pass to end
func (s *SyncService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.finished
}

// Status returns the time and error of the last pass
func (s *SyncService) Status() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func (s *SyncService) runLogged(ctx context.Context) {
	start := time.Now()
	err := s.RunOnce(ctx)

	s.mu.Lock()
	s.lastRun, s.lastErr = start, err
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Msg("odoo sync failed")
		return
	}
	s.log.Info().Dur("took", time.Since(start)).Msg("odoo sync completed")
}

// RunOnce runs one incremental pass. Order matters: transfers reference
// locations, types and products.
func (s *SyncService) RunOnce(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) (int, error)
	}{
		{"companies", s.syncCompanies},
		{"locations", s.syncLocations},
		{"picking types", s.syncPickingTypes},
		{"products", s.syncProducts},
		{"pickings", s.syncPickings},
		{"moves", s.syncMoves},
		{"move lines", s.syncMoveLines},
	}
	for _, step := range steps {
		n, err := step.fn(ctx)
		if err != nil {
			return fmt.Errorf("sync %s: %w", step.name, err)
		}
		if n > 0 {
			s.log.Info().Str("model", step.name).Int("count", n).Msg("records updated")
		}
	}
	return nil
}

// fetch pulls every record of model changed since the last pass. Fields
// in optional come from add-ons that may not be installed; when Odoo
// rejects them the read is retried without.
func (s *SyncService) fetch(ctx context.Context, model string, fields, optional []string) ([]json.RawMessage, error) {
	s.mu.Lock()
	since := s.cursors[model]
	s.mu.Unlock()

	domain := []interface{}{}
	if !since.IsZero() {
		domain = append(domain, []interface{}{"write_date", ">", since.UTC().Format(models.OdooDateTimeLayout)})
	}

	fields = append(fields, "write_date")
	rows, err := s.pages(ctx, model, domain, append(append([]string{}, fields...), optional...))
	if err != nil && len(optional) > 0 && ctx.Err() == nil {
		s.log.Warn().Err(err).Str("model", model).Strs("fields", optional).Msg("retrying without optional fields")
		rows, err = s.pages(ctx, model, domain, fields)
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SyncService) pages(ctx context.Context, model string, domain []interface{}, fields []string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	for offset := 0; ; offset += pageSize {
		var page []json.RawMessage
		if err := s.client.SearchRead(ctx, model, domain, fields, pageSize, offset, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// advance moves the cursor of model to the newest write_date in rows
func (s *SyncService) advance(model string, rows []json.RawMessage) {
	var newest time.Time
	for _, raw := range rows {
		var r struct {
			WriteDate models.OdooTime `json:"write_date"`
		}
		if json.Unmarshal(raw, &r) == nil && r.WriteDate.After(newest) {
			newest = r.WriteDate.Time
		}
	}
	if newest.IsZero() {
		return
	}
	s.mu.Lock()
	if newest.After(s.cursors[model]) {
		s.cursors[model] = newest
	}
	s.mu.Unlock()
}

func decodeRows[T any](rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, raw := range rows {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// upsert writes records keyed on the Odoo id. With no columns every field
// is overwritten.
func (s *SyncService) upsert(ctx context.Context, records interface{}, columns ...string) error {
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}
	if len(columns) > 0 {
		onConflict = clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoUpdates: clause.AssignmentColumns(columns)}
	}
	return s.db.WithContext(ctx).Clauses(onConflict).CreateInBatches(records, 200).Error
}

func (s *SyncService) syncCompanies(ctx context.Context) (int, error) {
	const model = "res.company"
	rows, err := s.fetch(ctx, model, []string{"name"}, []string{"outgoing_routing_strategy", "outgoing_routing_order"})
	if err != nil {
		return 0, err
	}
	recs, err := decodeRows[companyRecord](rows)
	if err != nil {
		return 0, err
	}
	for _, r := range recs {
		c := r.model()
		if err := s.companies.UpsertCompany(ctx, &c); err != nil {
			return 0, fmt.Errorf("company %d: %w", c.ID, err)
		}
	}
	s.advance(model, rows)
	return len(recs), nil
}

func (s *SyncService) syncLocations(ctx context.Context) (int, error) {
	const model = "stock.location"
	rows, err := s.fetch(ctx, model,
		[]string{"name", "complete_name", "barcode", "usage", "location_id", "active", "posx", "posy", "posz"},
		[]string{"removal_prio"})
	if err != nil {
		return 0, err
	}
	recs, err := decodeRows[locationRecord](rows)
	if err != nil || len(recs) == 0 {
		return 0, err
	}
	now := time.Now()
	locations := make([]models.StockLocation, len(recs))
	for i, r := range recs {
		locations[i] = r.model()
		locations[i].LastSyncedAt = now
	}
	if err := s.upsert(ctx, &locations); err != nil {
		return 0, err
	}
	s.advance(model, rows)
	return len(locations), nil
}

func (s *SyncService) syncPickingTypes(ctx context.Context) (int, error) {
	const model = "stock.picking.type"
	rows, err := s.fetch(ctx, model, []string{"name", "code", "sequence_code", "warehouse_id", "active"}, nil)
	if err != nil {
		return 0, err
	}
	recs, err := decodeRows[pickingTypeRecord](rows)
	if err != nil || len(recs) == 0 {
		return 0, err
	}
	types := make([]models.StockPickingType, len(recs))
	for i, r := range recs {
		types[i] = r.model()
	}
	if err := s.upsert(ctx, &types); err != nil {
		return 0, err
	}
	s.advance(model, rows)
	return len(types), nil
}

func (s *SyncService) syncProducts(ctx context.Context) (int, error) {
	const model = "product.product"
	rows, err := s.fetch(ctx, model, []string{"default_code", "barcode", "name", "display_name", "active"}, nil)
	if err != nil {
		return 0, err
	}
	recs, err := decodeRows[productRecord](rows)
	if err != nil || len(recs) == 0 {
		return 0, err
	}
	now := time.Now()
	products := make([]models.ProductProduct, len(recs))
	for i, r := range recs {
		products[i] = r.model(rows[i])
		products[i].LastSyncedAt = now
	}
	if err := s.upsert(ctx, &products); err != nil {
		return 0, err
	}
	s.advance(model, rows)
	return len(products), nil
}

// pickingColumns are overwritten on sync. batch_id is owned locally.
var pickingColumns = []string{
	"name", "state", "location_id", "location_dest_id", "picking_type_id",
	"group_id", "company_id", "origin", "scheduled_date", "create_date",
}

func (s *SyncService) syncPickings(ctx context.Context) (int, error) {
	const model = "stock.picking"
	rows, err := s.fetch(ctx, model, []string{
		"name", "state", "location_id", "location_dest_id", "picking_type_id",
		"group_id", "company_id", "origin", "scheduled_date", "create_date",
	}, nil)
	if err != nil {
		return 0, err
	}
	recs, err := decodeRows[pickingRecord](rows)
	if err != nil || len(recs) == 0 {
		return 0, err
	}
	pickings := make([]models.StockPicking, len(recs))
	for i, r := range recs {
		pickings[i] = r.model()
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(pickingColumns),
	}).CreateInBatches(&pickings, 200).Error; err != nil {
		return 0, err
	}
	s.advance(model, rows)
	return len(pickings), nil
}

func (s *SyncService) syncMoves(ctx context.Context) (int, error) {
	const model = "stock.move"
	rows, err := s.fetch(ctx, model, []string{
		"name", "picking_id", "product_id", "group_id", "state",
		"product_uom_qty", "location_id", "location_dest_id",
	}, nil)
	if err != nil {
		return 0, err
	}
	recs, err := decodeRows[moveRecord](rows)
	if err != nil || len(recs) == 0 {
		return 0, err
	}
	moves := make([]models.StockMove, len(recs))
	for i, r := range recs {
		moves[i] = r.model()
	}
	if err := s.upsert(ctx, &moves); err != nil {
		return 0, err
	}
	s.advance(model, rows)
	return len(moves), nil
}

func (s *SyncService) syncMoveLines(ctx context.Context) (int, error) {
	const model = "stock.move.line"
	rows, err := s.fetch(ctx, model, []string{
		"picking_id", "move_id", "product_id", "location_id", "location_dest_id", "qty_done",
	}, []string{"product_uom_qty"})
	if err != nil {
		return 0, err
	}
	recs, err := decodeRows[moveLineRecord](rows)
	if err != nil {
		return 0, err
	}
	lines := make([]models.StockMoveLine, 0, len(recs))
	for _, r := range recs {
		// Lines outside a transfer never show up on a picking list
		if !r.PickingID.Valid {
			continue
		}
		lines = append(lines, r.model())
	}
	if len(lines) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(&lines, 200).Error; err != nil {
		return 0, err
	}
	s.advance(model, rows)
	return len(lines), nil
}
