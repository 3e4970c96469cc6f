package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/ajconsultancy/tradedesk/src/database"
	"github.com/ajconsultancy/tradedesk/src/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeTrade(t *testing.T, router http.Handler, tradeID int64, exitPrice string) {
	t.Helper()
	rec := doRequest(t, router, http.MethodPatch, fmt.Sprintf("/api/trades/%d/close", tradeID),
		map[string]interface{}{"exit": map[string]interface{}{"exit_price": exitPrice}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func openTrade(t *testing.T, router http.Handler, overrides map[string]interface{}) int64 {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/api/trades", openTradeBody(overrides))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		TradeID int64 `json:"trade_id"`
	}
	decodeBody(t, rec, &resp)
	return resp.TradeID
}

func TestDashboardSummary(t *testing.T) {
	setupTestDB(t)
	router := newTestRouter()

	createClient(t, router, "Asha Patel", "5000")
	inactiveID := createClient(t, router, "Rohan Mehta", "3000")
	require.NoError(t, model.UpdateClientStatus(database.DB, inactiveID, model.ClientStatusInactive))

	winID := openTrade(t, router, nil)
	closeTrade(t, router, winID, "120") // +200
	lossID := openTrade(t, router, map[string]interface{}{"entry_price": "50", "quantity": "4", "trade_mode": "CASH", "leverage": nil})
	closeTrade(t, router, lossID, "40") // -40
	openTrade(t, router, nil)           // stays open, deploys 500

	rec := doRequest(t, router, http.MethodGet, "/api/dashboard/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		TotalCapital    decimal.Decimal `json:"total_capital"`
		TotalPnl        decimal.Decimal `json:"total_pnl"`
		DeployedCapital decimal.Decimal `json:"deployed_capital"`
		TotalClients    int             `json:"total_clients"`
		ActiveClients   int             `json:"active_clients"`
		OpenTrades      int             `json:"open_trades"`
		ClosedTrades    int             `json:"closed_trades"`
		WinRate         decimal.Decimal `json:"win_rate"`
	}
	decodeBody(t, rec, &summary)

	assert.True(t, summary.TotalCapital.Equal(decimal.NewFromInt(8000)), "total_capital = %s", summary.TotalCapital)
	assert.True(t, summary.TotalPnl.Equal(decimal.NewFromInt(160)), "total_pnl = %s", summary.TotalPnl)
	assert.True(t, summary.DeployedCapital.Equal(decimal.NewFromInt(500)), "deployed_capital = %s", summary.DeployedCapital)
	assert.Equal(t, 2, summary.TotalClients)
	assert.Equal(t, 1, summary.ActiveClients)
	assert.Equal(t, 1, summary.OpenTrades)
	assert.Equal(t, 2, summary.ClosedTrades)
	assert.True(t, summary.WinRate.Equal(decimal.NewFromInt(50)), "win_rate = %s", summary.WinRate)
}

func TestWinLossDistribution(t *testing.T) {
	setupTestDB(t)
	router := newTestRouter()

	winID := openTrade(t, router, nil)
	closeTrade(t, router, winID, "120")
	lossID := openTrade(t, router, nil)
	closeTrade(t, router, lossID, "80")
	evenID := openTrade(t, router, nil)
	closeTrade(t, router, evenID, "100")

	rec := doRequest(t, router, http.MethodGet, "/api/dashboard/win-loss-distribution", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dist map[string]int
	decodeBody(t, rec, &dist)
	assert.Equal(t, 1, dist["wins"])
	assert.Equal(t, 1, dist["losses"])
	assert.Equal(t, 1, dist["breakeven"])
}

func TestMonthlyPerformanceBucketsByCloseMonth(t *testing.T) {
	setupTestDB(t)
	router := newTestRouter()

	winID := openTrade(t, router, nil)
	closeTrade(t, router, winID, "120")
	lossID := openTrade(t, router, nil)
	closeTrade(t, router, lossID, "90")

	rec := doRequest(t, router, http.MethodGet, "/api/dashboard/monthly-performance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var buckets []struct {
		Month  string          `json:"month"`
		Profit decimal.Decimal `json:"profit"`
		Loss   decimal.Decimal `json:"loss"`
		Net    decimal.Decimal `json:"net"`
		Trades int             `json:"trades"`
	}
	decodeBody(t, rec, &buckets)

	// Both trades closed just now, so they land in the same bucket.
	require.Len(t, buckets, 1)
	assert.Equal(t, 2, buckets[0].Trades)
	assert.True(t, buckets[0].Profit.Equal(decimal.NewFromInt(200)), "profit = %s", buckets[0].Profit)
	assert.True(t, buckets[0].Loss.Equal(decimal.NewFromInt(-100)), "loss = %s", buckets[0].Loss)
	assert.True(t, buckets[0].Net.Equal(decimal.NewFromInt(100)), "net = %s", buckets[0].Net)
	assert.NotEmpty(t, buckets[0].Month)
}

func TestRecentTradesCapsAtFive(t *testing.T) {
	setupTestDB(t)
	router := newTestRouter()

	for i := 0; i < 7; i++ {
		openTrade(t, router, map[string]interface{}{"symbol": fmt.Sprintf("SYM%d", i)})
	}

	rec := doRequest(t, router, http.MethodGet, "/api/dashboard/recent-trades", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var trades []model.Trade
	decodeBody(t, rec, &trades)
	assert.Len(t, trades, 5)
}
