package services

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajconsultancy/tradedesk/src/database"
	"github.com/ajconsultancy/tradedesk/src/logger"
	"github.com/ajconsultancy/tradedesk/src/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(on)&_time_format=sqlite")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.MigrateUp(db, filepath.Join("..", "..", "db", "migrations")))
	t.Cleanup(func() { db.Close() })
	return db
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func seedClient(t *testing.T, db *sql.DB, name, capital string, deleted bool) {
	t.Helper()
	client := &model.Client{
		Name:            name,
		Broker:          "Zerodha",
		CapitalInvested: dec(t, capital),
		JoinDate:        "2025-01-01",
		Status:          model.ClientStatusActive,
	}
	require.NoError(t, client.InsertClient(db))
	if deleted {
		require.NoError(t, model.SetClientDeleted(db, client.ID, true))
	}
}

func seedTrade(t *testing.T, db *sql.DB, status, capitalUsed, pnl string, deleted bool) {
	t.Helper()
	entry := dec(t, "100")
	qty := dec(t, "10")
	trade := &model.Trade{
		Symbol:      "SYM",
		TradeType:   model.TradeTypeLong,
		TradeMode:   model.TradeModeCash,
		EntryPrice:  entry,
		Quantity:    qty,
		Leverage:    dec(t, "1"),
		Exposure:    model.ComputeExposure(entry, qty),
		CapitalUsed: dec(t, capitalUsed),
		Status:      status,
		TotalPnl:    dec(t, pnl),
	}
	if status == model.TradeStatusClosed {
		trade.ExitPrice = decimal.NullDecimal{Decimal: dec(t, "110"), Valid: true}
		trade.Outcome = model.ClassifyOutcome(trade.TotalPnl)
		trade.ClosedAt = model.NullTime{Time: time.Now().UTC(), Valid: true}
	}
	require.NoError(t, trade.InsertTrade(db))
	if deleted {
		require.NoError(t, model.SetTradeDeleted(db, trade.ID, true))
	}
}

func TestRecalculateCapitalSumsFromSource(t *testing.T) {
	db := newTestDB(t)

	seedClient(t, db, "Asha Patel", "1000", false)
	seedClient(t, db, "Rohan Mehta", "500", false)
	seedClient(t, db, "Gone Client", "999", true)

	seedTrade(t, db, model.TradeStatusOpen, "200", "0", false)
	seedTrade(t, db, model.TradeStatusClosed, "300", "150", false)
	seedTrade(t, db, model.TradeStatusClosed, "100", "-50", true)

	require.NoError(t, RecalculateCapital(db))

	capital, err := model.GetCapitalSummary(db)
	require.NoError(t, err)
	assert.True(t, capital.TotalCapital.Equal(dec(t, "1500")), "total_capital = %s", capital.TotalCapital)
	assert.True(t, capital.TotalPnl.Equal(dec(t, "150")), "total_pnl = %s", capital.TotalPnl)
	assert.True(t, capital.DeployedCapital.Equal(dec(t, "200")), "deployed_capital = %s", capital.DeployedCapital)
}

func TestRecalculateCapitalIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	seedClient(t, db, "Asha Patel", "1000", false)
	seedTrade(t, db, model.TradeStatusClosed, "300", "150", false)

	require.NoError(t, RecalculateCapital(db))
	first, err := model.GetCapitalSummary(db)
	require.NoError(t, err)

	require.NoError(t, RecalculateCapital(db))
	second, err := model.GetCapitalSummary(db)
	require.NoError(t, err)

	assert.True(t, first.TotalCapital.Equal(second.TotalCapital))
	assert.True(t, first.TotalPnl.Equal(second.TotalPnl))
	assert.True(t, first.DeployedCapital.Equal(second.DeployedCapital))
}

func TestRecalculateCapitalEmptyDatabase(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, RecalculateCapital(db))

	capital, err := model.GetCapitalSummary(db)
	require.NoError(t, err)
	assert.True(t, capital.TotalCapital.IsZero())
	assert.True(t, capital.TotalPnl.IsZero())
	assert.True(t, capital.DeployedCapital.IsZero())
}

func TestRecalculateCapitalInsideTransaction(t *testing.T) {
	db := newTestDB(t)
	seedClient(t, db, "Asha Patel", "1000", false)

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, RecalculateCapital(tx))
	require.NoError(t, tx.Commit())

	capital, err := model.GetCapitalSummary(db)
	require.NoError(t, err)
	assert.True(t, capital.TotalCapital.Equal(dec(t, "1000")))
}
