package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CapitalSummary is the singleton snapshot row (capital_id = 1). It is a
// rebuildable materialized view over clients and trades, never a source of
// truth: the recalculator overwrites it from scratch on every trigger.
type CapitalSummary struct {
	TotalCapital    decimal.Decimal `json:"total_capital"`
	TotalPnl        decimal.Decimal `json:"total_pnl"`
	DeployedCapital decimal.Decimal `json:"deployed_capital"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// GetCapitalSummary reads the current snapshot.
func GetCapitalSummary(db DBTX) (*CapitalSummary, error) {
	var s CapitalSummary
	err := db.QueryRow(`
		SELECT total_capital, total_pnl, deployed_capital, updated_at
		FROM capital_summary WHERE capital_id = 1`).Scan(
		&s.TotalCapital, &s.TotalPnl, &s.DeployedCapital, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
