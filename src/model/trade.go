package model

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Trade lifecycle states and classifications. Once a trade is CLOSED its
// price fields are immutable; only the soft-delete flag may still change.
const (
	TradeTypeLong  = "LONG"
	TradeTypeShort = "SHORT"

	TradeModeCash     = "CASH"
	TradeModeLeverage = "LEVERAGE"

	TradeStatusOpen   = "OPEN"
	TradeStatusClosed = "CLOSED"

	OutcomeWin       = "WIN"
	OutcomeLoss      = "LOSS"
	OutcomeBreakeven = "BREAKEVEN"
)

var (
	TradeTypes  = []string{TradeTypeLong, TradeTypeShort}
	TradeModes  = []string{TradeModeCash, TradeModeLeverage}
	TradeStates = []string{TradeStatusOpen, TradeStatusClosed}
)

type Trade struct {
	ID          int64               `json:"trade_id"`
	Symbol      string              `json:"symbol"`
	CompanyName string              `json:"company_name,omitempty"`
	TradeType   string              `json:"trade_type"`
	TradeMode   string              `json:"trade_mode"`
	TradeDate   string              `json:"trade_date,omitempty"`
	EntryPrice  decimal.Decimal     `json:"entry_price"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Leverage    decimal.Decimal     `json:"leverage"`
	Exposure    decimal.Decimal     `json:"exposure"`
	CapitalUsed decimal.Decimal     `json:"capital_used"`
	StopLoss    decimal.NullDecimal `json:"stop_loss"`
	TargetPrice decimal.NullDecimal `json:"target_price"`
	Status      string              `json:"status"`
	ExitPrice   decimal.NullDecimal `json:"exit_price"`
	TotalPnl    decimal.Decimal     `json:"total_pnl"`
	Outcome     string              `json:"outcome,omitempty"`
	IsDeleted   bool                `json:"is_deleted"`
	CreatedAt   time.Time           `json:"created_at"`
	ClosedAt    NullTime            `json:"closed_at"`
	DeletedAt   NullTime            `json:"deleted_at"`
}

// ComputeExposure returns the notional value of a position.
func ComputeExposure(entryPrice, quantity decimal.Decimal) decimal.Decimal {
	return entryPrice.Mul(quantity)
}

// ComputeCapitalUsed returns the margin actually committed: exposure divided
// by leverage.
func ComputeCapitalUsed(exposure, leverage decimal.Decimal) decimal.Decimal {
	return exposure.DivRound(leverage, 2)
}

// ComputePnl returns the realized P&L of a closed position, rounded to two
// decimal places. SHORT positions profit when the price falls.
func ComputePnl(tradeType string, entryPrice, exitPrice, quantity decimal.Decimal) decimal.Decimal {
	var perUnit decimal.Decimal
	if tradeType == TradeTypeShort {
		perUnit = entryPrice.Sub(exitPrice)
	} else {
		perUnit = exitPrice.Sub(entryPrice)
	}
	return perUnit.Mul(quantity).Round(2)
}

// ClassifyOutcome maps a realized P&L to WIN, LOSS or BREAKEVEN by sign.
func ClassifyOutcome(pnl decimal.Decimal) string {
	switch {
	case pnl.Sign() > 0:
		return OutcomeWin
	case pnl.Sign() < 0:
		return OutcomeLoss
	default:
		return OutcomeBreakeven
	}
}

const tradeColumns = `trade_id, symbol, company_name, trade_type, trade_mode, trade_date,
       entry_price, quantity, leverage, exposure, capital_used, stop_loss, target_price,
       status, exit_price, total_pnl, outcome, is_deleted, created_at, closed_at, deleted_at`

func scanTrade(row interface{ Scan(...any) error }) (*Trade, error) {
	var t Trade
	var companyName, tradeDate, outcome sql.NullString
	var closedAt, deletedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.Symbol, &companyName, &t.TradeType, &t.TradeMode, &tradeDate,
		&t.EntryPrice, &t.Quantity, &t.Leverage, &t.Exposure, &t.CapitalUsed,
		&t.StopLoss, &t.TargetPrice,
		&t.Status, &t.ExitPrice, &t.TotalPnl, &outcome,
		&t.IsDeleted, &t.CreatedAt, &closedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	t.CompanyName = companyName.String
	t.TradeDate = tradeDate.String
	t.Outcome = outcome.String
	t.ClosedAt = NullTime(closedAt)
	t.DeletedAt = NullTime(deletedAt)
	return &t, nil
}

// InsertTrade persists a new trade row and backfills the generated ID.
func (t *Trade) InsertTrade(db DBTX) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	var closedAt interface{}
	if t.ClosedAt.Valid {
		closedAt = t.ClosedAt.Time
	}

	res, err := db.Exec(`
		INSERT INTO trades (symbol, company_name, trade_type, trade_mode, trade_date,
		                    entry_price, quantity, leverage, exposure, capital_used,
		                    stop_loss, target_price, status, exit_price, total_pnl,
		                    outcome, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Symbol, nullIfEmpty(t.CompanyName), t.TradeType, t.TradeMode, nullIfEmpty(t.TradeDate),
		t.EntryPrice, t.Quantity, t.Leverage, t.Exposure, t.CapitalUsed,
		t.StopLoss, t.TargetPrice, t.Status, t.ExitPrice, t.TotalPnl,
		nullIfEmpty(t.Outcome), t.CreatedAt, closedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// GetTradeByID returns a non-deleted trade or ErrNotFound.
func GetTradeByID(db *sql.DB, id int64) (*Trade, error) {
	row := db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ? AND is_deleted = 0`, id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// TradeFilter narrows and pages a trade listing. Sort columns are checked
// against an explicit allow-list so user input never reaches the ORDER BY
// clause directly.
type TradeFilter struct {
	Status    string
	TradeMode string
	TradeType string
	Page      int
	Limit     int
	Sort      string
	Order     string
}

var tradeSortColumns = map[string]bool{
	"created_at":  true,
	"closed_at":   true,
	"symbol":      true,
	"entry_price": true,
	"total_pnl":   true,
	"status":      true,
}

// ListTrades returns one page of non-deleted trades plus the total count of
// rows matching the filter.
func ListTrades(db *sql.DB, f TradeFilter) ([]Trade, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}

	sortCol := "created_at"
	if f.Sort != "" {
		if !tradeSortColumns[f.Sort] {
			return nil, 0, fmt.Errorf("%w: unsupported sort column %q", ErrInvalidState, f.Sort)
		}
		sortCol = f.Sort
	}
	order := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		order = "ASC"
	}

	where := []string{"is_deleted = 0"}
	args := []any{}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.TradeMode != "" {
		where = append(where, "trade_mode = ?")
		args = append(args, f.TradeMode)
	}
	if f.TradeType != "" {
		where = append(where, "trade_type = ?")
		args = append(args, f.TradeType)
	}
	whereClause := "WHERE " + strings.Join(where, " AND ")

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM trades `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	query := fmt.Sprintf(`SELECT %s FROM trades %s ORDER BY %s %s LIMIT ? OFFSET ?`,
		tradeColumns, whereClause, sortCol, order)
	rows, err := db.Query(query, append(args, f.Limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, 0, err
		}
		trades = append(trades, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if trades == nil {
		trades = []Trade{}
	}
	return trades, total, nil
}

// SetTradeDeleted flips the soft-delete flag. Delete requires the trade to be
// live, restore requires it to be deleted; anything else is ErrNotFound so
// the caller cannot tell a missing row from one already in the target state.
func SetTradeDeleted(db *sql.DB, id int64, deleted bool) error {
	var res sql.Result
	var err error
	if deleted {
		res, err = db.Exec(`UPDATE trades SET is_deleted = 1, deleted_at = ? WHERE trade_id = ? AND is_deleted = 0`,
			time.Now().UTC(), id)
	} else {
		res, err = db.Exec(`UPDATE trades SET is_deleted = 0, deleted_at = NULL WHERE trade_id = ? AND is_deleted = 1`, id)
	}
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
