package model

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ajconsultancy/tradedesk/src/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

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

func TestDerivedFieldsLongLeverage(t *testing.T) {
	entry := dec(t, "100")
	qty := dec(t, "10")
	leverage := dec(t, "2")

	exposure := ComputeExposure(entry, qty)
	assert.True(t, exposure.Equal(dec(t, "1000")), "exposure = %s", exposure)

	capitalUsed := ComputeCapitalUsed(exposure, leverage)
	assert.True(t, capitalUsed.Equal(dec(t, "500")), "capital_used = %s", capitalUsed)

	pnl := ComputePnl(TradeTypeLong, entry, dec(t, "120"), qty)
	assert.True(t, pnl.Equal(dec(t, "200")), "pnl = %s", pnl)
	assert.Equal(t, OutcomeWin, ClassifyOutcome(pnl))
}

func TestComputePnlShort(t *testing.T) {
	pnl := ComputePnl(TradeTypeShort, dec(t, "50"), dec(t, "60"), dec(t, "4"))
	assert.True(t, pnl.Equal(dec(t, "-40")), "pnl = %s", pnl)
	assert.Equal(t, OutcomeLoss, ClassifyOutcome(pnl))
}

func TestComputePnlRounding(t *testing.T) {
	// 0.105 * 3 = 0.315, rounds to 0.32
	pnl := ComputePnl(TradeTypeLong, dec(t, "10.000"), dec(t, "10.105"), dec(t, "3"))
	assert.Equal(t, "0.32", pnl.String())
}

func TestClassifyOutcomeBreakeven(t *testing.T) {
	assert.Equal(t, OutcomeBreakeven, ClassifyOutcome(decimal.Zero))
}

func seedTrade(t *testing.T, db *sql.DB, symbol string) *Trade {
	t.Helper()
	entry := dec(t, "100")
	qty := dec(t, "10")
	leverage := dec(t, "2")
	exposure := ComputeExposure(entry, qty)

	trade := &Trade{
		Symbol:      symbol,
		TradeType:   TradeTypeLong,
		TradeMode:   TradeModeLeverage,
		EntryPrice:  entry,
		Quantity:    qty,
		Leverage:    leverage,
		Exposure:    exposure,
		CapitalUsed: ComputeCapitalUsed(exposure, leverage),
		Status:      TradeStatusOpen,
	}
	require.NoError(t, trade.InsertTrade(db))
	return trade
}

func TestInsertAndGetTradeRoundTrip(t *testing.T) {
	db := newTestDB(t)

	seeded := seedTrade(t, db, "RELIANCE")
	require.NotZero(t, seeded.ID)

	got, err := GetTradeByID(db, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "RELIANCE", got.Symbol)
	assert.Equal(t, TradeStatusOpen, got.Status)
	assert.True(t, got.EntryPrice.Equal(dec(t, "100")))
	assert.True(t, got.CapitalUsed.Equal(dec(t, "500")))
	assert.False(t, got.ExitPrice.Valid)
	assert.False(t, got.ClosedAt.Valid)
}

func TestGetTradeByIDNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := GetTradeByID(db, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSoftDeleteHidesTradeUntilRestore(t *testing.T) {
	db := newTestDB(t)
	trade := seedTrade(t, db, "RELIANCE")

	require.NoError(t, SetTradeDeleted(db, trade.ID, true))

	_, err := GetTradeByID(db, trade.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op failure
	assert.ErrorIs(t, SetTradeDeleted(db, trade.ID, true), ErrNotFound)

	require.NoError(t, SetTradeDeleted(db, trade.ID, false))
	got, err := GetTradeByID(db, trade.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
	assert.False(t, got.DeletedAt.Valid)
}

func TestListTradesPagination(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 5; i++ {
		seedTrade(t, db, fmt.Sprintf("SYM%d", i))
	}

	trades, total, err := ListTrades(db, TradeFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, trades, 2)

	trades, total, err = ListTrades(db, TradeFilter{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, trades, 1)

	trades, total, err = ListTrades(db, TradeFilter{Status: TradeStatusClosed})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, trades)
}

func TestListTradesExcludesDeleted(t *testing.T) {
	db := newTestDB(t)
	keep := seedTrade(t, db, "KEEP")
	drop := seedTrade(t, db, "DROP")
	require.NoError(t, SetTradeDeleted(db, drop.ID, true))

	trades, total, err := ListTrades(db, TradeFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, trades, 1)
	assert.Equal(t, keep.ID, trades[0].ID)
}

func TestListTradesRejectsUnknownSortColumn(t *testing.T) {
	db := newTestDB(t)

	_, _, err := ListTrades(db, TradeFilter{Sort: "password_hash"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTradeNotesOrderedChronologically(t *testing.T) {
	db := newTestDB(t)
	trade := seedTrade(t, db, "RELIANCE")

	for _, text := range []string{"first", "second", "third"} {
		note := &TradeNote{TradeID: trade.ID, Note: text}
		require.NoError(t, note.Insert(db))
	}

	notes, err := ListTradeNotes(db, trade.ID)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, "first", notes[0].Note)
	assert.Equal(t, "third", notes[2].Note)
}
