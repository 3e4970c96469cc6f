package handlers

import (
	"net/http"
	"time"

	"github.com/ajconsultancy/tradedesk/src/database"
	"github.com/ajconsultancy/tradedesk/src/logger"
	"github.com/ajconsultancy/tradedesk/src/model"
	"github.com/ajconsultancy/tradedesk/src/utils"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// DashboardHandler serves the read-only aggregates behind the admin landing
// page. Results are cached briefly; every mutating handler flushes the cache.
type DashboardHandler struct {
	reportCache *cache.Cache
}

func NewDashboardHandler(reportCache *cache.Cache) *DashboardHandler {
	return &DashboardHandler{reportCache: reportCache}
}

// Summary combines the capital snapshot with client and trade headline
// numbers.
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "dashboard:summary"
	if cached, found := h.reportCache.Get(cacheKey); found {
		utils.SendJSON(w, cached, http.StatusOK)
		return
	}

	capital, err := model.GetCapitalSummary(database.DB)
	if err != nil {
		logger.L.Error("Failed to load capital summary", "error", err)
		utils.SendJSONError(w, "Failed to build dashboard summary", http.StatusInternalServerError)
		return
	}

	var totalClients, activeClients int
	err = database.DB.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'ACTIVE' THEN 1 ELSE 0 END), 0)
		FROM clients WHERE is_deleted = 0`).Scan(&totalClients, &activeClients)
	if err != nil {
		logger.L.Error("Failed to count clients", "error", err)
		utils.SendJSONError(w, "Failed to build dashboard summary", http.StatusInternalServerError)
		return
	}

	var openTrades, closedTrades, wins int
	err = database.DB.QueryRow(`
		SELECT COALESCE(SUM(CASE WHEN status = 'OPEN' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'CLOSED' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome = 'WIN' THEN 1 ELSE 0 END), 0)
		FROM trades WHERE is_deleted = 0`).Scan(&openTrades, &closedTrades, &wins)
	if err != nil {
		logger.L.Error("Failed to count trades", "error", err)
		utils.SendJSONError(w, "Failed to build dashboard summary", http.StatusInternalServerError)
		return
	}

	result := map[string]interface{}{
		"total_capital":    capital.TotalCapital,
		"total_pnl":        capital.TotalPnl,
		"deployed_capital": capital.DeployedCapital,
		"total_clients":    totalClients,
		"active_clients":   activeClients,
		"open_trades":      openTrades,
		"closed_trades":    closedTrades,
		"win_rate":         winRate(wins, closedTrades),
	}
	h.reportCache.Set(cacheKey, result, cache.DefaultExpiration)
	utils.SendJSON(w, result, http.StatusOK)
}

type monthlyBucket struct {
	Month  string          `json:"month"`
	Profit decimal.Decimal `json:"profit"`
	Loss   decimal.Decimal `json:"loss"`
	Net    decimal.Decimal `json:"net"`
	Trades int             `json:"trades"`
}

// MonthlyPerformance buckets closed trades by close month. SQLite's strftime
// has no month-name verb, so grouping uses %Y-%m and the label is rendered in
// Go.
func (h *DashboardHandler) MonthlyPerformance(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "dashboard:monthly"
	if cached, found := h.reportCache.Get(cacheKey); found {
		utils.SendJSON(w, cached, http.StatusOK)
		return
	}

	rows, err := database.DB.Query(`
		SELECT strftime('%Y-%m', closed_at) AS month,
		       COALESCE(SUM(CASE WHEN total_pnl > 0 THEN total_pnl ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN total_pnl < 0 THEN total_pnl ELSE 0 END), 0),
		       COALESCE(SUM(total_pnl), 0),
		       COUNT(*)
		FROM trades
		WHERE status = 'CLOSED' AND is_deleted = 0 AND closed_at IS NOT NULL
		GROUP BY month
		ORDER BY month`)
	if err != nil {
		logger.L.Error("Failed to query monthly performance", "error", err)
		utils.SendJSONError(w, "Failed to compute monthly performance", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	buckets := []monthlyBucket{}
	for rows.Next() {
		var b monthlyBucket
		var key string
		if err := rows.Scan(&key, &b.Profit, &b.Loss, &b.Net, &b.Trades); err != nil {
			logger.L.Error("Failed to scan monthly bucket", "error", err)
			utils.SendJSONError(w, "Failed to compute monthly performance", http.StatusInternalServerError)
			return
		}
		if t, err := time.Parse("2006-01", key); err == nil {
			b.Month = t.Format("Jan 2006")
		} else {
			b.Month = key
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		logger.L.Error("Failed iterating monthly buckets", "error", err)
		utils.SendJSONError(w, "Failed to compute monthly performance", http.StatusInternalServerError)
		return
	}

	h.reportCache.Set(cacheKey, buckets, cache.DefaultExpiration)
	utils.SendJSON(w, buckets, http.StatusOK)
}

func (h *DashboardHandler) WinLossDistribution(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "dashboard:winloss"
	if cached, found := h.reportCache.Get(cacheKey); found {
		utils.SendJSON(w, cached, http.StatusOK)
		return
	}

	var wins, losses, breakeven int
	err := database.DB.QueryRow(`
		SELECT COALESCE(SUM(CASE WHEN outcome = 'WIN' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome = 'LOSS' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome = 'BREAKEVEN' THEN 1 ELSE 0 END), 0)
		FROM trades
		WHERE status = 'CLOSED' AND is_deleted = 0`).Scan(&wins, &losses, &breakeven)
	if err != nil {
		logger.L.Error("Failed to query win/loss distribution", "error", err)
		utils.SendJSONError(w, "Failed to compute distribution", http.StatusInternalServerError)
		return
	}

	result := map[string]int{
		"wins":      wins,
		"losses":    losses,
		"breakeven": breakeven,
	}
	h.reportCache.Set(cacheKey, result, cache.DefaultExpiration)
	utils.SendJSON(w, result, http.StatusOK)
}

// RecentTrades returns the five most recently opened live trades.
func (h *DashboardHandler) RecentTrades(w http.ResponseWriter, r *http.Request) {
	trades, _, err := model.ListTrades(database.DB, model.TradeFilter{
		Page:  1,
		Limit: 5,
		Sort:  "created_at",
		Order: "desc",
	})
	if err != nil {
		logger.L.Error("Failed to list recent trades", "error", err)
		utils.SendJSONError(w, "Failed to fetch recent trades", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, trades, http.StatusOK)
}
