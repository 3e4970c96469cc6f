package model

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so detail rows can be written
// inside the trade-close and full-journal transactions.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Qualitative sub-entities attached to a trade. Each is owned exclusively by
// its parent and is written alongside the trade row, never independently
// mutated after the trade closes (notes are append-only while OPEN).

type EntryDetails struct {
	TradeID         int64  `json:"trade_id"`
	ConfidenceLevel int    `json:"confidence_level,omitempty"`
	EntryEmotion    string `json:"entry_emotion,omitempty"`
}

type PreTradeContext struct {
	TradeID     int64  `json:"trade_id"`
	MarketTrend string `json:"market_trend,omitempty"`
	Volatility  string `json:"volatility,omitempty"`
	IndexMood   string `json:"index_mood,omitempty"`
}

type HoldingPhase struct {
	TradeID            int64  `json:"trade_id"`
	Notes              string `json:"notes,omitempty"`
	DisciplineFollowed bool   `json:"discipline_followed"`
}

type ExitDetails struct {
	TradeID     int64           `json:"trade_id"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	ExitDate    string          `json:"exit_date,omitempty"`
	ExitReason  string          `json:"exit_reason,omitempty"`
	ExitEmotion string          `json:"exit_emotion,omitempty"`
}

type ReflectionNotes struct {
	TradeID          int64  `json:"trade_id"`
	LessonsLearned   string `json:"lessons_learned,omitempty"`
	ImprovementNotes string `json:"improvement_notes,omitempty"`
}

type TradeNote struct {
	ID        int64     `json:"id"`
	TradeID   int64     `json:"trade_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *EntryDetails) Insert(db DBTX) error {
	_, err := db.Exec(`
		INSERT INTO entry_details (trade_id, confidence_level, entry_emotion)
		VALUES (?, ?, ?)`,
		e.TradeID, e.ConfidenceLevel, nullIfEmpty(e.EntryEmotion))
	return err
}

func (p *PreTradeContext) Insert(db DBTX) error {
	_, err := db.Exec(`
		INSERT INTO pre_trade_context (trade_id, market_trend, volatility, index_mood)
		VALUES (?, ?, ?, ?)`,
		p.TradeID, nullIfEmpty(p.MarketTrend), nullIfEmpty(p.Volatility), nullIfEmpty(p.IndexMood))
	return err
}

func (h *HoldingPhase) Insert(db DBTX) error {
	_, err := db.Exec(`
		INSERT INTO holding_phase (trade_id, notes, discipline_followed)
		VALUES (?, ?, ?)`,
		h.TradeID, nullIfEmpty(h.Notes), h.DisciplineFollowed)
	return err
}

// Upsert keeps a single holding-phase row per trade, updated in place when the
// trade is closed with final holding notes.
func (h *HoldingPhase) Upsert(db DBTX) error {
	res, err := db.Exec(`
		UPDATE holding_phase SET notes = ?, discipline_followed = ? WHERE trade_id = ?`,
		nullIfEmpty(h.Notes), h.DisciplineFollowed, h.TradeID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return h.Insert(db)
	}
	return nil
}

func (e *ExitDetails) Insert(db DBTX) error {
	_, err := db.Exec(`
		INSERT INTO exit_details (trade_id, exit_price, exit_date, exit_reason, exit_emotion)
		VALUES (?, ?, ?, ?, ?)`,
		e.TradeID, e.ExitPrice, nullIfEmpty(e.ExitDate), nullIfEmpty(e.ExitReason), nullIfEmpty(e.ExitEmotion))
	return err
}

func (r *ReflectionNotes) Insert(db DBTX) error {
	_, err := db.Exec(`
		INSERT INTO reflection_notes (trade_id, lessons_learned, improvement_notes)
		VALUES (?, ?, ?)`,
		r.TradeID, nullIfEmpty(r.LessonsLearned), nullIfEmpty(r.ImprovementNotes))
	return err
}

func (n *TradeNote) Insert(db DBTX) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := db.Exec(`INSERT INTO trade_notes (trade_id, note, created_at) VALUES (?, ?, ?)`,
		n.TradeID, n.Note, n.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

// GetEntryDetails returns the entry metadata for a trade, or nil when none
// was recorded.
func GetEntryDetails(db DBTX, tradeID int64) (*EntryDetails, error) {
	var e EntryDetails
	var confidence sql.NullInt64
	var emotion sql.NullString
	err := db.QueryRow(`
		SELECT trade_id, confidence_level, entry_emotion FROM entry_details WHERE trade_id = ?`,
		tradeID).Scan(&e.TradeID, &confidence, &emotion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ConfidenceLevel = int(confidence.Int64)
	e.EntryEmotion = emotion.String
	return &e, nil
}

func GetPreTradeContext(db DBTX, tradeID int64) (*PreTradeContext, error) {
	var p PreTradeContext
	var trend, vol, mood sql.NullString
	err := db.QueryRow(`
		SELECT trade_id, market_trend, volatility, index_mood FROM pre_trade_context WHERE trade_id = ?`,
		tradeID).Scan(&p.TradeID, &trend, &vol, &mood)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.MarketTrend = trend.String
	p.Volatility = vol.String
	p.IndexMood = mood.String
	return &p, nil
}

func GetHoldingPhase(db DBTX, tradeID int64) (*HoldingPhase, error) {
	var h HoldingPhase
	var notes sql.NullString
	var discipline sql.NullBool
	err := db.QueryRow(`
		SELECT trade_id, notes, discipline_followed FROM holding_phase WHERE trade_id = ?`,
		tradeID).Scan(&h.TradeID, &notes, &discipline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h.Notes = notes.String
	h.DisciplineFollowed = discipline.Bool
	return &h, nil
}

func GetExitDetails(db DBTX, tradeID int64) (*ExitDetails, error) {
	var e ExitDetails
	var date, reason, emotion sql.NullString
	err := db.QueryRow(`
		SELECT trade_id, exit_price, exit_date, exit_reason, exit_emotion FROM exit_details WHERE trade_id = ?`,
		tradeID).Scan(&e.TradeID, &e.ExitPrice, &date, &reason, &emotion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ExitDate = date.String
	e.ExitReason = reason.String
	e.ExitEmotion = emotion.String
	return &e, nil
}

func GetReflectionNotes(db DBTX, tradeID int64) (*ReflectionNotes, error) {
	var r ReflectionNotes
	var lessons, improvements sql.NullString
	err := db.QueryRow(`
		SELECT trade_id, lessons_learned, improvement_notes FROM reflection_notes WHERE trade_id = ?`,
		tradeID).Scan(&r.TradeID, &lessons, &improvements)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.LessonsLearned = lessons.String
	r.ImprovementNotes = improvements.String
	return &r, nil
}

// ListTradeNotes returns the append-only notes of a trade, oldest first.
func ListTradeNotes(db DBTX, tradeID int64) ([]TradeNote, error) {
	rows, err := db.Query(`
		SELECT id, trade_id, note, created_at FROM trade_notes WHERE trade_id = ? ORDER BY created_at ASC, id ASC`,
		tradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []TradeNote
	for rows.Next() {
		var n TradeNote
		if err := rows.Scan(&n.ID, &n.TradeID, &n.Note, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []TradeNote{}
	}
	return notes, nil
}
