// Package wave keeps picking batches (picking waves) consistent: every
// member picking of a batch shares one picking type, the batch's wave type.
package wave

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/ventortech/merpwms/internal/models"
)

// Service implements batch creation, updates and the confirm/done cascade
type Service struct {
	store  Store
	stock  StockBackend
	notify Notifier
	log    zerolog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithNotifier sets the receiver of batch events
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notify = n
		}
	}
}

// NewService creates a wave service
func NewService(store Store, stock StockBackend, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		stock:  stock,
		notify: nopNotifier{},
		log:    log.With().Str("component", "wave").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BatchInput holds the values of a new batch
type BatchInput struct {
	Name              string  `json:"name"`
	PickingIDs        []int64 `json:"picking_ids"`
	PickingWaveTypeID *int64  `json:"picking_wave_type"`
	UserID            *string `json:"user_id,omitempty"`
}

// BatchPatch holds the changes of a batch write. Nil fields are untouched.
type BatchPatch struct {
	Name              *string `json:"name,omitempty"`
	PickingWaveTypeID *int64  `json:"picking_wave_type,omitempty"`
	ClearWaveType     bool    `json:"clear_picking_wave_type,omitempty"`
	AddPickingIDs     []int64 `json:"add_picking_ids,omitempty"`
	RemovePickingIDs  []int64 `json:"remove_picking_ids,omitempty"`
}

// ActionResult is returned by batch actions for the caller's UI layer
type ActionResult struct {
	BatchID int64                  `json:"batch_id"`
	State   string                 `json:"state"`
	Context map[string]interface{} `json:"context"`
}

// CommonPickingType returns the picking type shared by all pickings.
// consistent is false when the pickings carry more than one type; a
// picking without a type counts as a type of its own.
func CommonPickingType(pickings []models.StockPicking) (typeID *int64, consistent bool) {
	if len(pickings) == 0 {
		return nil, true
	}
	first := pickings[0].PickingTypeID
	for _, p := range pickings[1:] {
		if !sameType(first, p.PickingTypeID) {
			return nil, false
		}
	}
	if first == nil {
		return nil, true
	}
	id := *first
	return &id, true
}

func sameType(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// validateMembers checks the member set against an optional wave type and
// returns the wave type the batch should store.
func validateMembers(pickings []models.StockPicking, waveType *int64) (*int64, error) {
	common, consistent := CommonPickingType(pickings)
	if !consistent {
		return nil, consistencyf("All pickings of a wave must have the same operation type (%s)", describeTypes(pickings))
	}
	if waveType != nil && len(pickings) > 0 && !sameType(waveType, common) {
		return nil, consistencyf("Wave type %d does not match the operation type %s of its pickings", *waveType, formatType(common))
	}
	if waveType != nil {
		id := *waveType
		return &id, nil
	}
	return common, nil
}

func describeTypes(pickings []models.StockPicking) string {
	seen := map[string]bool{}
	var parts []string
	for _, p := range pickings {
		t := formatType(p.PickingTypeID)
		if !seen[t] {
			seen[t] = true
			parts = append(parts, t)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func formatType(id *int64) string {
	if id == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *id)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func pickingIDs(pickings []models.StockPicking) []int64 {
	out := make([]int64, len(pickings))
	for i, p := range pickings {
		out[i] = p.ID
	}
	return out
}

// CreateBatch creates a batch and links the given pickings to it. An
// explicit wave type must match the members; when omitted it is taken from
// them.
func (s *Service) CreateBatch(ctx context.Context, in BatchInput) (*models.StockPickingBatch, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ConsistencyError{Message: "A batch needs a name"}
	}

	var batch *models.StockPickingBatch
	err := s.store.Atomic(ctx, func(tx Store) error {
		pickings, err := tx.Pickings(ctx, uniqueIDs(in.PickingIDs))
		if err != nil {
			return err
		}

		waveType, err := validateMembers(pickings, in.PickingWaveTypeID)
		if err != nil {
			return err
		}

		batch = &models.StockPickingBatch{
			Name:              name,
			State:             models.BatchStateDraft,
			PickingWaveTypeID: waveType,
			UserID:            in.UserID,
		}
		if err := tx.SaveBatch(ctx, batch); err != nil {
			return err
		}

		for i := range pickings {
			pickings[i].BatchID = &batch.ID
			if err := tx.SavePicking(ctx, &pickings[i]); err != nil {
				return err
			}
		}
		batch.Pickings = pickings
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("batch_id", batch.ID).Int("pickings", len(batch.Pickings)).Msg("batch created")
	s.notify.Publish(ctx, Event{Type: EventBatchCreated, BatchID: batch.ID, State: batch.State, PickingIDs: pickingIDs(batch.Pickings)})
	return batch, nil
}

// WriteBatch applies a patch to a batch. The resulting member set must
// still share one picking type that matches the wave type.
func (s *Service) WriteBatch(ctx context.Context, id int64, patch BatchPatch) (*models.StockPickingBatch, error) {
	var batch *models.StockPickingBatch
	err := s.store.Atomic(ctx, func(tx Store) error {
		var err error
		batch, err = tx.Batch(ctx, id)
		if err != nil {
			return err
		}

		membershipChange := len(patch.AddPickingIDs) > 0 || len(patch.RemovePickingIDs) > 0
		if membershipChange && (batch.State == models.BatchStateDone || batch.State == models.BatchStateCancel) {
			return consistencyf("Pickings of a batch in state %q cannot be changed", batch.State)
		}

		members, err := tx.BatchPickings(ctx, id)
		if err != nil {
			return err
		}

		remove := make(map[int64]bool, len(patch.RemovePickingIDs))
		for _, pid := range patch.RemovePickingIDs {
			remove[pid] = true
		}

		var kept, removed []models.StockPicking
		current := make(map[int64]bool, len(members))
		for _, m := range members {
			current[m.ID] = true
			if remove[m.ID] {
				removed = append(removed, m)
			} else {
				kept = append(kept, m)
			}
		}

		var toAdd []int64
		for _, pid := range uniqueIDs(patch.AddPickingIDs) {
			if !current[pid] && !remove[pid] {
				toAdd = append(toAdd, pid)
			}
		}
		added, err := tx.Pickings(ctx, toAdd)
		if err != nil {
			return err
		}

		result := append(append([]models.StockPicking{}, kept...), added...)

		target := batch.PickingWaveTypeID
		if patch.ClearWaveType {
			target = nil
		}
		if patch.PickingWaveTypeID != nil {
			target = patch.PickingWaveTypeID
		}

		waveType, err := validateMembers(result, target)
		if err != nil {
			return err
		}
		if target == nil && (patch.ClearWaveType || !membershipChange) {
			waveType = nil
		}
		batch.PickingWaveTypeID = waveType

		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return &ConsistencyError{Message: "A batch needs a name"}
			}
			batch.Name = name
		}

		if err := tx.SaveBatch(ctx, batch); err != nil {
			return err
		}

		for i := range removed {
			removed[i].BatchID = nil
			if err := tx.SavePicking(ctx, &removed[i]); err != nil {
				return err
			}
		}
		for i := range added {
			added[i].BatchID = &batch.ID
			if err := tx.SavePicking(ctx, &added[i]); err != nil {
				return err
			}
		}

		sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
		batch.Pickings = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.Publish(ctx, Event{Type: EventBatchUpdated, BatchID: batch.ID, State: batch.State, PickingIDs: pickingIDs(batch.Pickings)})
	return batch, nil
}

// WaveType returns the picking type shared by the batch members, nil when
// the batch is empty or its members disagree.
func (s *Service) WaveType(ctx context.Context, batchID int64) (*int64, error) {
	members, err := s.store.BatchPickings(ctx, batchID)
	if err != nil {
		return nil, err
	}
	common, consistent := CommonPickingType(members)
	if !consistent {
		return nil, nil
	}
	return common, nil
}

// Batch returns a batch with its member pickings
func (s *Service) Batch(ctx context.Context, id int64) (*models.StockPickingBatch, error) {
	batch, err := s.store.Batch(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.store.BatchPickings(ctx, id)
	if err != nil {
		return nil, err
	}
	batch.Pickings = members
	return batch, nil
}

// ChangePickingType sets the picking type of a picking. A picking inside a
// batch may only take the type every other member and the batch wave type
// already have.
func (s *Service) ChangePickingType(ctx context.Context, pickingID, typeID int64) (*models.StockPicking, error) {
	var picking *models.StockPicking
	var batchID int64
	err := s.store.Atomic(ctx, func(tx Store) error {
		var err error
		picking, err = tx.Picking(ctx, pickingID)
		if err != nil {
			return err
		}
		if picking.PickingTypeID != nil && *picking.PickingTypeID == typeID {
			return nil
		}

		if picking.BatchID != nil {
			batchID = *picking.BatchID
			batch, err := tx.Batch(ctx, batchID)
			if err != nil {
				return err
			}
			members, err := tx.BatchPickings(ctx, batchID)
			if err != nil {
				return err
			}
			for _, m := range members {
				if m.ID == picking.ID {
					continue
				}
				if m.PickingTypeID == nil || *m.PickingTypeID != typeID {
					return consistencyf("Picking %s belongs to batch %s whose other pickings have operation type %s",
						picking.Name, batch.Name, formatType(m.PickingTypeID))
				}
			}
			if batch.PickingWaveTypeID != nil && *batch.PickingWaveTypeID != typeID {
				return consistencyf("Picking %s belongs to batch %s with wave type %d",
					picking.Name, batch.Name, *batch.PickingWaveTypeID)
			}
			if batch.PickingWaveTypeID == nil {
				id := typeID
				batch.PickingWaveTypeID = &id
				if err := tx.SaveBatch(ctx, batch); err != nil {
					return err
				}
			}
		}

		id := typeID
		picking.PickingTypeID = &id
		return tx.SavePicking(ctx, picking)
	})
	if err != nil {
		return nil, err
	}

	if batchID != 0 {
		s.notify.Publish(ctx, Event{Type: EventPickingRetyped, BatchID: batchID, PickingIDs: []int64{pickingID}})
	}
	return picking, nil
}

// procurementGroup returns the group of a picking, falling back to the
// group of its moves.
func procurementGroup(p *models.StockPicking) *int64 {
	if p.GroupID != nil {
		return p.GroupID
	}
	for _, m := range p.Moves {
		if m.GroupID != nil {
			return m.GroupID
		}
	}
	return nil
}

// FirstProcPicking returns the earliest created picking among all pickings
// sharing the procurement group of pickingID, regardless of batch. It
// returns nil when the picking has no procurement group.
func (s *Service) FirstProcPicking(ctx context.Context, pickingID int64) (*models.StockPicking, error) {
	p, err := s.store.Picking(ctx, pickingID)
	if err != nil {
		return nil, err
	}
	group := procurementGroup(p)
	if group == nil {
		return nil, nil
	}

	siblings, err := s.store.GroupPickings(ctx, *group)
	if err != nil {
		return nil, err
	}
	if len(siblings) == 0 {
		return p, nil
	}

	first := siblings[0]
	for _, sib := range siblings[1:] {
		if sib.CreateDate.Before(first.CreateDate) ||
			(sib.CreateDate.Equal(first.CreateDate) && sib.ID < first.ID) {
			first = sib
		}
	}
	return &first, nil
}

// ConfirmPicking starts a batch: draft members are confirmed, every open
// member is reserved and the batch moves to in_progress.
func (s *Service) ConfirmPicking(ctx context.Context, batchID int64) (*models.StockPickingBatch, error) {
	batch, err := s.store.Batch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.State == models.BatchStateDone || batch.State == models.BatchStateCancel {
		return nil, consistencyf("Batch %s is already %s", batch.Name, batch.State)
	}

	members, err := s.store.BatchPickings(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, consistencyf("Batch %s has no pickings to confirm", batch.Name)
	}

	var drafts, open []int64
	for _, m := range members {
		if m.State == models.PickingStateDraft {
			drafts = append(drafts, m.ID)
		}
		if m.IsOpen() {
			open = append(open, m.ID)
		}
	}

	if len(drafts) > 0 {
		if err := s.stock.Confirm(ctx, drafts); err != nil {
			return nil, fmt.Errorf("confirm pickings of batch %d: %w", batchID, err)
		}
	}
	if len(open) > 0 {
		if err := s.stock.Assign(ctx, open); err != nil {
			return nil, fmt.Errorf("assign pickings of batch %d: %w", batchID, err)
		}
	}

	batch.State = models.BatchStateInProgress
	members, err = s.refresh(ctx, batch)
	if err != nil {
		return nil, err
	}
	batch.Pickings = members

	s.log.Info().Int64("batch_id", batchID).Ints64("confirmed", drafts).Ints64("assigned", open).Msg("batch confirmed")
	s.notify.Publish(ctx, Event{Type: EventBatchConfirmed, BatchID: batchID, State: batch.State, PickingIDs: pickingIDs(members)})
	return batch, nil
}

// Done validates every open member picking. The batch becomes done once no
// member is left open. The result context carries sub_done_called for the
// caller's UI.
func (s *Service) Done(ctx context.Context, batchID int64) (*ActionResult, error) {
	batch, err := s.store.Batch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.State == models.BatchStateCancel {
		return nil, consistencyf("Batch %s is cancelled", batch.Name)
	}

	members, err := s.store.BatchPickings(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, consistencyf("Batch %s has no pickings to validate", batch.Name)
	}

	var open []int64
	for _, m := range members {
		if m.IsOpen() {
			open = append(open, m.ID)
		}
	}
	if len(open) > 0 {
		if err := s.stock.Validate(ctx, open); err != nil {
			return nil, fmt.Errorf("validate pickings of batch %d: %w", batchID, err)
		}
	}

	if batch.State == models.BatchStateDraft {
		batch.State = models.BatchStateInProgress
	}
	members, err = s.refresh(ctx, batch)
	if err != nil {
		return nil, err
	}

	allDone := true
	for _, m := range members {
		if m.IsOpen() {
			allDone = false
			break
		}
	}
	if allDone && batch.State != models.BatchStateDone {
		batch.State = models.BatchStateDone
		if err := s.store.SaveBatch(ctx, batch); err != nil {
			return nil, err
		}
	}

	ids := pickingIDs(members)
	s.log.Info().Int64("batch_id", batchID).Ints64("validated", open).Str("state", batch.State).Msg("batch done called")
	s.notify.Publish(ctx, Event{Type: EventBatchDone, BatchID: batchID, State: batch.State, PickingIDs: ids})

	return &ActionResult{
		BatchID: batchID,
		State:   batch.State,
		Context: map[string]interface{}{
			"sub_done_called": true,
			"active_ids":      ids,
		},
	}, nil
}

// refresh pulls member states from the stock backend and stores them along
// with the batch.
func (s *Service) refresh(ctx context.Context, batch *models.StockPickingBatch) ([]models.StockPicking, error) {
	var members []models.StockPicking
	err := s.store.Atomic(ctx, func(tx Store) error {
		var err error
		members, err = tx.BatchPickings(ctx, batch.ID)
		if err != nil {
			return err
		}

		states, err := s.stock.States(ctx, pickingIDs(members))
		if err != nil {
			return fmt.Errorf("read picking states: %w", err)
		}

		for i := range members {
			state, ok := states[members[i].ID]
			if !ok || state == members[i].State {
				continue
			}
			members[i].State = state
			if err := tx.SavePicking(ctx, &members[i]); err != nil {
				return err
			}
		}
		return tx.SaveBatch(ctx, batch)
	})
	return members, err
}
