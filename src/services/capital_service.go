package services

import (
	"time"

	"github.com/ajconsultancy/tradedesk/src/logger"
	"github.com/ajconsultancy/tradedesk/src/model"
	"github.com/shopspring/decimal"
)

// Report cache tuning shared by the reporting handlers.
const (
	DefaultCacheExpiration = 1 * time.Minute
	CacheCleanupInterval   = 5 * time.Minute
)

// RecalculateCapital rebuilds the capital_summary snapshot from first
// principles:
//
//	total_capital    = sum of capital_invested over non-deleted clients
//	total_pnl        = sum of total_pnl over non-deleted trades
//	deployed_capital = sum of capital_used over OPEN non-deleted trades
//
// The snapshot is always recomputed from source rather than adjusted
// incrementally, so re-running with unchanged data reproduces the same values.
// Pass a *sql.Tx to make the recompute atomic with a triggering mutation
// (trade close does this), or *sql.DB for standalone triggers.
func RecalculateCapital(db model.DBTX) error {
	var totalCapital, totalPnl, deployedCapital decimal.Decimal

	err := db.QueryRow(`
		SELECT COALESCE(SUM(capital_invested), 0) FROM clients WHERE is_deleted = 0`).Scan(&totalCapital)
	if err != nil {
		return err
	}

	err = db.QueryRow(`
		SELECT COALESCE(SUM(total_pnl), 0) FROM trades WHERE is_deleted = 0`).Scan(&totalPnl)
	if err != nil {
		return err
	}

	err = db.QueryRow(`
		SELECT COALESCE(SUM(capital_used), 0) FROM trades WHERE status = 'OPEN' AND is_deleted = 0`).Scan(&deployedCapital)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		UPDATE capital_summary
		SET total_capital = ?, total_pnl = ?, deployed_capital = ?, updated_at = ?
		WHERE capital_id = 1`,
		totalCapital, totalPnl, deployedCapital, time.Now().UTC())
	if err != nil {
		return err
	}

	logger.L.Debug("Capital summary recalculated",
		"totalCapital", totalCapital.String(),
		"totalPnl", totalPnl.String(),
		"deployedCapital", deployedCapital.String())
	return nil
}
