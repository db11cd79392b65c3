package picking

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/ventortech/merpwms/internal/models"
)

// ErrNotFound is returned when the picking or company does not exist
var ErrNotFound = errors.New("record not found")

// Store loads what a picking list needs
type Store interface {
	Company(ctx context.Context, id int64) (*models.ResCompany, error)
	Picking(ctx context.Context, id int64) (*models.StockPicking, error)
	// MoveLines returns the picking's operations with Product and Location
	// preloaded, in storage order.
	MoveLines(ctx context.Context, pickingID int64) ([]models.StockMoveLine, error)
}

// Service builds sorted picking lists using the company routing settings
type Service struct {
	store Store
	log   zerolog.Logger
}

// NewService creates a picking list service
func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With().Str("component", "picking").Logger(),
	}
}

// List is a picking with its operations in print order
type List struct {
	Picking  models.StockPicking    `json:"picking"`
	Strategy Strategy               `json:"strategy"`
	Order    Order                  `json:"order"`
	Lines    []models.StockMoveLine `json:"lines"`
}

// RoutingFor returns the strategy and order configured on a company. A nil
// company yields the location-name ascending default.
func RoutingFor(company *models.ResCompany) (Strategy, Order) {
	if company == nil || company.OutgoingRoutingStrategy == "" {
		return StrategyName, Ascending
	}
	return ParseStrategy(company.OutgoingRoutingStrategy), ParseOrder(company.OutgoingRoutingOrder)
}

// PickingList loads a picking and returns its move lines ordered by the
// routing strategy of companyID.
func (s *Service) PickingList(ctx context.Context, companyID *int64, pickingID int64) (*List, error) {
	p, err := s.store.Picking(ctx, pickingID)
	if err != nil {
		return nil, fmt.Errorf("load picking %d: %w", pickingID, err)
	}

	var company *models.ResCompany
	if companyID == nil {
		companyID = p.CompanyID
	}
	if companyID != nil {
		company, err = s.store.Company(ctx, *companyID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("load company %d: %w", *companyID, err)
		}
	}

	lines, err := s.store.MoveLines(ctx, pickingID)
	if err != nil {
		return nil, fmt.Errorf("load move lines of picking %d: %w", pickingID, err)
	}

	strategy, order := RoutingFor(company)
	if !strategy.Known() {
		s.log.Warn().Str("strategy", string(strategy)).Int64("picking_id", pickingID).
			Msg("unknown routing strategy, all lines share the fallback key")
	}

	return &List{
		Picking:  *p,
		Strategy: strategy,
		Order:    order,
		Lines:    SortMoveLines(lines, strategy, order),
	}, nil
}
