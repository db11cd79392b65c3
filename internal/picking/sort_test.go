package picking

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventortech/merpwms/internal/models"
)

func line(id int64, product string, loc *models.StockLocation) models.StockMoveLine {
	l := models.StockMoveLine{ID: id, ProductUomQty: 1}
	if product != "" {
		l.Product = &models.ProductProduct{ID: id, Name: product}
	}
	l.Location = loc
	return l
}

func ids(lines []models.StockMoveLine) []int64 {
	out := make([]int64, len(lines))
	for i, l := range lines {
		out[i] = l.ID
	}
	return out
}

func TestParseOrder(t *testing.T) {
	assert.Equal(t, Ascending, ParseOrder("0"))
	assert.Equal(t, Descending, ParseOrder("1"))
	assert.Equal(t, Descending, ParseOrder(" 2 "))
	assert.Equal(t, Ascending, ParseOrder(""))
	assert.Equal(t, Ascending, ParseOrder("up"))
}

func TestSortMoveLines_Product(t *testing.T) {
	loc := &models.StockLocation{Name: "A"}
	lines := []models.StockMoveLine{
		line(1, "Cable", loc),
		line(2, "Adapter", loc),
		line(3, "Battery", loc),
		line(4, "Adapter", loc),
	}

	asc := SortMoveLines(lines, StrategyProduct, Ascending)
	assert.Equal(t, []int64{2, 4, 3, 1}, ids(asc))

	// Equal keys keep their input order in both directions
	desc := SortMoveLines(lines, StrategyProduct, Descending)
	assert.Equal(t, []int64{1, 3, 2, 4}, ids(desc))

	// Input is left untouched
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(lines))
}

func TestSortMoveLines_ProductDisplayName(t *testing.T) {
	a := line(1, "Zeta", nil)
	a.Product.DisplayName = "[A1] Zeta"
	b := line(2, "Alpha", nil)
	b.Product.DisplayName = "[B1] Alpha"

	out := SortMoveLines([]models.StockMoveLine{b, a}, StrategyProduct, Ascending)
	assert.Equal(t, []int64{1, 2}, ids(out))
}

func TestSortMoveLines_LocationAttribute(t *testing.T) {
	l1 := &models.StockLocation{Name: "Shelf 2", RemovalPrio: 3}
	l2 := &models.StockLocation{Name: "Shelf 1", RemovalPrio: 2}
	l3 := &models.StockLocation{Name: "Shelf 3", RemovalPrio: 1}

	lines := []models.StockMoveLine{
		line(1, "P1", l1),
		line(2, "P2", l2),
		line(3, "P3", l3),
	}

	byPrio := SortMoveLines(lines, StrategyRemovalPrio, Ascending)
	assert.Equal(t, []int64{3, 2, 1}, ids(byPrio))

	byPrioDesc := SortMoveLines(lines, StrategyRemovalPrio, Descending)
	assert.Equal(t, []int64{1, 2, 3}, ids(byPrioDesc))

	byName := SortMoveLines(lines, StrategyName, Ascending)
	assert.Equal(t, []int64{2, 1, 3}, ids(byName))
}

func TestSortMoveLines_MissingAttributeSortsAsNone(t *testing.T) {
	withBarcode := func(code string) *models.StockLocation {
		return &models.StockLocation{Name: code, Barcode: code}
	}

	lines := []models.StockMoveLine{
		line(1, "P1", withBarcode("Z-01")),
		line(2, "P2", &models.StockLocation{Name: "no barcode"}),
		line(3, "P3", withBarcode("A-01")),
		line(4, "P4", withBarcode("O-01")),
		line(5, "P5", nil),
	}

	// "None" lands between "A-01" and "O-01"/"Z-01" lexically
	out := SortMoveLines(lines, StrategyBarcode, Ascending)
	assert.Equal(t, []int64{3, 2, 5, 4, 1}, ids(out))
	assert.Equal(t, MissingKey, KeyFor(lines[1], StrategyBarcode).String())
}

func TestSortMoveLines_UnknownStrategyKeepsOrder(t *testing.T) {
	lines := []models.StockMoveLine{
		line(3, "C", &models.StockLocation{Name: "c"}),
		line(1, "A", &models.StockLocation{Name: "a"}),
		line(2, "B", &models.StockLocation{Name: "b"}),
	}

	assert.False(t, Strategy("shelf_color").Known())
	assert.Equal(t, []int64{3, 1, 2}, ids(SortMoveLines(lines, "shelf_color", Ascending)))
	assert.Equal(t, []int64{3, 1, 2}, ids(SortMoveLines(lines, "shelf_color", Descending)))
}

func TestSortKey_NumbersBeforeStrings(t *testing.T) {
	assert.True(t, numKey(99).Less(strKey("0")))
	assert.False(t, strKey("0").Less(numKey(99)))
	assert.True(t, numKey(1).Less(numKey(2)))
	assert.True(t, strKey("10").Less(strKey("9")))
}

type fakeStore struct {
	company *models.ResCompany
	picking *models.StockPicking
	lines   []models.StockMoveLine
}

func (f *fakeStore) Company(_ context.Context, id int64) (*models.ResCompany, error) {
	if f.company == nil || f.company.ID != id {
		return nil, ErrNotFound
	}
	return f.company, nil
}

func (f *fakeStore) Picking(_ context.Context, id int64) (*models.StockPicking, error) {
	if f.picking == nil || f.picking.ID != id {
		return nil, ErrNotFound
	}
	return f.picking, nil
}

func (f *fakeStore) MoveLines(_ context.Context, _ int64) ([]models.StockMoveLine, error) {
	return f.lines, nil
}

func TestService_PickingListUsesCompanyRouting(t *testing.T) {
	companyID := int64(1)
	store := &fakeStore{
		company: &models.ResCompany{ID: 1, Name: "ACME", OutgoingRoutingStrategy: "product", OutgoingRoutingOrder: "1"},
		picking: &models.StockPicking{ID: 10, Name: "WH/OUT/00010", CompanyID: &companyID},
		lines: []models.StockMoveLine{
			line(1, "Apple", &models.StockLocation{Name: "B"}),
			line(2, "Pear", &models.StockLocation{Name: "A"}),
		},
	}
	svc := NewService(store, zerolog.Nop())

	list, err := svc.PickingList(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, StrategyProduct, list.Strategy)
	assert.Equal(t, Descending, list.Order)
	assert.Equal(t, []int64{2, 1}, ids(list.Lines))

	pdf, err := RenderPDF(list)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestService_PickingListDefaultsWithoutCompany(t *testing.T) {
	store := &fakeStore{
		picking: &models.StockPicking{ID: 10},
		lines: []models.StockMoveLine{
			line(1, "Apple", &models.StockLocation{Name: "B"}),
			line(2, "Pear", &models.StockLocation{Name: "A"}),
		},
	}
	svc := NewService(store, zerolog.Nop())

	list, err := svc.PickingList(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, StrategyName, list.Strategy)
	assert.Equal(t, []int64{2, 1}, ids(list.Lines))

	_, err = svc.PickingList(context.Background(), nil, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}
