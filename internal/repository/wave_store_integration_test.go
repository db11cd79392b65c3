//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ventortech/merpwms/internal/models"
)

const integrationPort = 5439

// startPostgres runs a throwaway embedded PostgreSQL for the test
func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	dir := t.TempDir()
	pg := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		Port(integrationPort).
		DataPath(dir + "/data").
		RuntimePath(dir + "/runtime").
		Database("merpwms_test").
		StartTimeout(time.Minute))
	require.NoError(t, pg.Start())
	t.Cleanup(func() { _ = pg.Stop() })

	dsn := fmt.Sprintf("host=localhost port=%d user=postgres password=postgres dbname=merpwms_test sslmode=disable", integrationPort)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.StockPicking{}, &models.StockMove{}))
	return db
}

func TestWaveStoreGroupPickings(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	group, other := int64(5), int64(6)
	pid := func(v int64) *int64 { return &v }

	pickings := []models.StockPicking{
		{ID: 1, Name: "WH/PICK/00001", GroupID: &group},
		{ID: 2, Name: "WH/OUT/00001"},
		{ID: 3, Name: "WH/PICK/00002", GroupID: &other},
		{ID: 4, Name: "WH/PICK/00003"},
	}
	require.NoError(t, db.Omit(clause.Associations).Create(&pickings).Error)

	moves := []models.StockMove{
		{ID: 21, PickingID: pid(2)},
		// the group only shows up on the second move of picking 2
		{ID: 22, PickingID: pid(2), GroupID: &group},
		{ID: 31, PickingID: pid(3), GroupID: &other},
		{ID: 41, PickingID: pid(4)},
		// orphan move of the group must not pull in anything
		{ID: 51, GroupID: &group},
	}
	require.NoError(t, db.Create(&moves).Error)

	got, err := NewWaveStore(db).GroupPickings(ctx, group)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
	require.Len(t, got[1].Moves, 2)
	assert.Equal(t, int64(21), got[1].Moves[0].ID)

	none, err := NewWaveStore(db).GroupPickings(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}
