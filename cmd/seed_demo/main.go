package main

import (
	"flag"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ventortech/merpwms/internal/config"
	"github.com/ventortech/merpwms/internal/database"
	"github.com/ventortech/merpwms/internal/logger"
	"github.com/ventortech/merpwms/internal/models"
)

// Seeds a small warehouse for running without a host ERP: one company, a
// pick and an outgoing operation type, a shelf grid and a procurement group
// of pickings ready to be batched.
func main() {
	reset := flag.Bool("reset", false, "truncate stock tables before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	lg := logger.New(cfg.NodeEnv, cfg.Log.Level)

	db, err := database.Connect(cfg.Database, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		lg.Fatal().Err(err).Msg("migration failed")
	}

	if *reset {
		for _, table := range []string{"stock_move_line", "stock_move", "stock_picking", "stock_picking_batch", "stock_picking_type", "product_product", "stock_location"} {
			if err := db.Exec("TRUNCATE TABLE " + table + " CASCADE").Error; err != nil {
				lg.Fatal().Err(err).Str("table", table).Msg("truncate failed")
			}
		}
		lg.Info().Msg("stock tables cleared")
	}

	if err := db.Transaction(seed); err != nil {
		lg.Fatal().Err(err).Msg("seeding failed")
	}
	lg.Info().Msg("demo data ready")
}

func int64Ptr(v int64) *int64 { return &v }

func upsert(tx *gorm.DB, value interface{}) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}

func seed(tx *gorm.DB) error {
	now := time.Now().UTC()

	company := models.ResCompany{ID: 1, Name: "YourCompany", OutgoingRoutingStrategy: "posx", OutgoingRoutingOrder: "0", LastSyncedAt: now}
	if err := upsert(tx, &company); err != nil {
		return err
	}

	types := []models.StockPickingType{
		{ID: 2, Name: "Pick", Code: "internal", SequenceCode: "PICK", Active: true},
		{ID: 3, Name: "Delivery Orders", Code: "outgoing", SequenceCode: "OUT", Active: true},
	}
	if err := upsert(tx, &types); err != nil {
		return err
	}

	// Shelves on two corridors; Shelf C has no position to show the
	// missing-key ordering.
	locations := []models.StockLocation{
		{ID: 8, Name: "WH", CompleteName: "WH", Usage: "view", Active: true},
		{ID: 12, Name: "Stock", CompleteName: "WH/Stock", Usage: "internal", LocationID: int64Ptr(8), Active: true},
		{ID: 13, Name: "Shelf A", CompleteName: "WH/Stock/Shelf A", Barcode: "LOC-A", Usage: "internal", LocationID: int64Ptr(12), PosX: 2, PosY: 1, PosZ: 1, RemovalPrio: 1, Active: true},
		{ID: 14, Name: "Shelf B", CompleteName: "WH/Stock/Shelf B", Barcode: "LOC-B", Usage: "internal", LocationID: int64Ptr(12), PosX: 1, PosY: 3, PosZ: 2, RemovalPrio: 2, Active: true},
		{ID: 15, Name: "Shelf C", CompleteName: "WH/Stock/Shelf C", Usage: "internal", LocationID: int64Ptr(12), Active: true},
		{ID: 16, Name: "Output", CompleteName: "WH/Output", Usage: "internal", LocationID: int64Ptr(8), Active: true},
		{ID: 9, Name: "Customers", CompleteName: "Partners/Customers", Usage: "customer", Active: true},
	}
	for i := range locations {
		locations[i].LastSyncedAt = now
	}
	if err := upsert(tx, &locations); err != nil {
		return err
	}

	products := []models.ProductProduct{
		{ID: 1, Name: "Hex Bolt M8", DefaultCode: "HB-M8", Barcode: "4006381333931", Active: true},
		{ID: 2, Name: "Washer 8mm", DefaultCode: "WS-8", Barcode: "4006381333948", Active: true},
		{ID: 3, Name: "Nut M8", DefaultCode: "NT-M8", Barcode: "4006381333955", Active: true},
	}
	for i := range products {
		products[i].WriteDate = now
		products[i].LastSyncedAt = now
	}
	if err := upsert(tx, &products); err != nil {
		return err
	}

	// SO001 is picked in two steps: PICK moves goods to Output, OUT ships them.
	group := int64Ptr(1)
	pickings := []models.StockPicking{
		{ID: 1, Name: "WH/PICK/00001", State: models.PickingStateDraft, LocationID: 12, LocationDestID: 16, PickingTypeID: int64Ptr(2), GroupID: group, CompanyID: int64Ptr(1), Origin: "SO001"},
		{ID: 2, Name: "WH/OUT/00001", State: models.PickingStateDraft, LocationID: 16, LocationDestID: 9, PickingTypeID: int64Ptr(3), GroupID: group, CompanyID: int64Ptr(1), Origin: "SO001"},
		{ID: 3, Name: "WH/PICK/00002", State: models.PickingStateDraft, LocationID: 12, LocationDestID: 16, PickingTypeID: int64Ptr(2), CompanyID: int64Ptr(1), Origin: "SO002"},
	}
	for i := range pickings {
		pickings[i].ScheduledDate = now
		pickings[i].CreateDate = now.Add(time.Duration(i) * time.Minute)
	}
	if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{UpdateAll: true}).Create(&pickings).Error; err != nil {
		return err
	}

	moves := []models.StockMove{
		{ID: 1, Name: "Hex Bolt M8", PickingID: int64Ptr(1), ProductID: 1, GroupID: group, State: models.PickingStateDraft, ProductUomQty: 10, LocationID: 12, LocationDestID: 16},
		{ID: 2, Name: "Washer 8mm", PickingID: int64Ptr(1), ProductID: 2, GroupID: group, State: models.PickingStateDraft, ProductUomQty: 10, LocationID: 12, LocationDestID: 16},
		{ID: 3, Name: "Hex Bolt M8", PickingID: int64Ptr(2), ProductID: 1, GroupID: group, State: models.PickingStateDraft, ProductUomQty: 10, LocationID: 16, LocationDestID: 9},
		{ID: 4, Name: "Nut M8", PickingID: int64Ptr(3), ProductID: 3, State: models.PickingStateDraft, ProductUomQty: 5, LocationID: 12, LocationDestID: 16},
	}
	if err := upsert(tx, &moves); err != nil {
		return err
	}

	lines := []models.StockMoveLine{
		{ID: 1, PickingID: 1, MoveID: int64Ptr(1), ProductID: 1, LocationID: 13, LocationDestID: 16, ProductUomQty: 6},
		{ID: 2, PickingID: 1, MoveID: int64Ptr(1), ProductID: 1, LocationID: 15, LocationDestID: 16, ProductUomQty: 4},
		{ID: 3, PickingID: 1, MoveID: int64Ptr(2), ProductID: 2, LocationID: 14, LocationDestID: 16, ProductUomQty: 10},
		{ID: 4, PickingID: 3, MoveID: int64Ptr(4), ProductID: 3, LocationID: 14, LocationDestID: 16, ProductUomQty: 5},
	}
	return upsert(tx, &lines)
}
