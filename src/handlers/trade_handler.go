package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ajconsultancy/tradedesk/src/database"
	"github.com/ajconsultancy/tradedesk/src/logger"
	"github.com/ajconsultancy/tradedesk/src/model"
	"github.com/ajconsultancy/tradedesk/src/security/validation"
	"github.com/ajconsultancy/tradedesk/src/services"
	"github.com/ajconsultancy/tradedesk/src/utils"
	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

type TradeHandler struct {
	reportCache *cache.Cache
}

func NewTradeHandler(reportCache *cache.Cache) *TradeHandler {
	return &TradeHandler{reportCache: reportCache}
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type openTradeRequest struct {
	Symbol          string              `json:"symbol"`
	CompanyName     string              `json:"company_name"`
	TradeType       string              `json:"trade_type"`
	TradeMode       string              `json:"trade_mode"`
	TradeDate       string              `json:"trade_date"`
	EntryPrice      decimal.Decimal     `json:"entry_price"`
	Quantity        decimal.Decimal     `json:"quantity"`
	Leverage        decimal.NullDecimal `json:"leverage"`
	StopLoss        decimal.NullDecimal `json:"stop_loss"`
	TargetPrice     decimal.NullDecimal `json:"target_price"`
	ConfidenceLevel int                 `json:"confidence_level"`
	EntryEmotion    string              `json:"entry_emotion"`
}

// validate normalizes and checks an open-trade request, returning the trade
// row it describes with the derived fields computed.
func (req *openTradeRequest) validate() (*model.Trade, error) {
	req.Symbol = validation.SanitizeText(strings.ToUpper(strings.TrimSpace(req.Symbol)))
	req.CompanyName = validation.SanitizeText(strings.TrimSpace(req.CompanyName))
	req.TradeType = strings.ToUpper(strings.TrimSpace(req.TradeType))
	req.TradeMode = strings.ToUpper(strings.TrimSpace(req.TradeMode))
	req.EntryEmotion = validation.SanitizeText(strings.TrimSpace(req.EntryEmotion))

	if err := validation.ValidateStringNotEmpty(req.Symbol, "Symbol"); err != nil {
		return nil, err
	}
	if err := validation.ValidateStringMaxLength(req.Symbol, validation.MaxSymbolLength, "Symbol"); err != nil {
		return nil, err
	}
	if err := validation.ValidateOneOf(req.TradeType, "Trade type", model.TradeTypes); err != nil {
		return nil, err
	}
	if err := validation.ValidateOneOf(req.TradeMode, "Trade mode", model.TradeModes); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositiveDecimal(req.EntryPrice, "Entry price"); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositiveDecimal(req.Quantity, "Quantity"); err != nil {
		return nil, err
	}

	leverage := decimal.NewFromInt(1)
	if req.Leverage.Valid {
		if req.Leverage.Decimal.LessThan(leverage) {
			return nil, fmt.Errorf("%w: Leverage must be at least 1", validation.ErrValidationFailed)
		}
		leverage = req.Leverage.Decimal
	}
	if req.StopLoss.Valid {
		if err := validation.ValidatePositiveDecimal(req.StopLoss.Decimal, "Stop loss"); err != nil {
			return nil, err
		}
	}
	if req.TargetPrice.Valid {
		if err := validation.ValidatePositiveDecimal(req.TargetPrice.Decimal, "Target price"); err != nil {
			return nil, err
		}
	}

	exposure := model.ComputeExposure(req.EntryPrice, req.Quantity)
	return &model.Trade{
		Symbol:      req.Symbol,
		CompanyName: req.CompanyName,
		TradeType:   req.TradeType,
		TradeMode:   req.TradeMode,
		TradeDate:   strings.TrimSpace(req.TradeDate),
		EntryPrice:  req.EntryPrice,
		Quantity:    req.Quantity,
		Leverage:    leverage,
		Exposure:    exposure,
		CapitalUsed: model.ComputeCapitalUsed(exposure, leverage),
		StopLoss:    req.StopLoss,
		TargetPrice: req.TargetPrice,
		Status:      model.TradeStatusOpen,
	}, nil
}

// CreateTrade opens a new trade. Capital is only considered deployed, not
// booked: the ledger snapshot picks the position up through its capital_used.
func (h *TradeHandler) CreateTrade(w http.ResponseWriter, r *http.Request) {
	var req openTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trade, err := req.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := trade.InsertTrade(database.DB); err != nil {
		logger.L.Error("Failed to insert trade", "error", err)
		utils.SendJSONError(w, "Failed to create trade", http.StatusInternalServerError)
		return
	}

	if req.EntryEmotion != "" || req.ConfidenceLevel != 0 {
		entry := &model.EntryDetails{
			TradeID:         trade.ID,
			ConfidenceLevel: req.ConfidenceLevel,
			EntryEmotion:    req.EntryEmotion,
		}
		if err := entry.Insert(database.DB); err != nil {
			logger.L.Error("Failed to insert entry details", "tradeID", trade.ID, "error", err)
		}
	}

	// Deployed capital changed
	if err := services.RecalculateCapital(database.DB); err != nil {
		logger.L.Error("Capital recalculation failed after trade open", "tradeID", trade.ID, "error", err)
	}
	h.reportCache.Flush()

	logger.L.Info("Trade opened", "tradeID", trade.ID, "symbol", trade.Symbol)
	utils.SendJSON(w, map[string]interface{}{
		"message":      "Trade created successfully",
		"trade_id":     trade.ID,
		"exposure":     trade.Exposure,
		"capital_used": trade.CapitalUsed,
	}, http.StatusCreated)
}

type exitRequest struct {
	ExitPrice   decimal.Decimal `json:"exit_price"`
	ExitDate    string          `json:"exit_date"`
	ExitReason  string          `json:"exit_reason"`
	ExitEmotion string          `json:"exit_emotion"`
}

type holdingRequest struct {
	Notes              string `json:"notes"`
	DisciplineFollowed bool   `json:"discipline_followed"`
}

type reflectionRequest struct {
	LessonsLearned   string `json:"lessons_learned"`
	ImprovementNotes string `json:"improvement_notes"`
}

// CloseTrade closes an OPEN trade: computes realized P&L, writes the exit
// details, flips the trade to CLOSED and rebuilds the capital snapshot — all
// in one transaction, so the store never observes a CLOSED trade without its
// exit details or a P&L booking without the state flip.
func (h *TradeHandler) CloseTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := parseIDParam(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid trade ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Exit       *exitRequest       `json:"exit"`
		Holding    *holdingRequest    `json:"holding"`
		Reflection *reflectionRequest `json:"reflection"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Exit == nil {
		utils.SendJSONError(w, "Exit details required", http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePositiveDecimal(req.Exit.ExitPrice, "Exit price"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := database.DB.Begin()
	if err != nil {
		logger.L.Error("Failed to begin transaction for trade close", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to close trade", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	var status, tradeType string
	var entryPrice, quantity decimal.Decimal
	err = tx.QueryRow(`
		SELECT status, trade_type, entry_price, quantity
		FROM trades WHERE trade_id = ? AND is_deleted = 0`, tradeID).Scan(
		&status, &tradeType, &entryPrice, &quantity)
	if errors.Is(err, sql.ErrNoRows) {
		utils.SendJSONError(w, "Trade not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.L.Error("Failed to load trade for close", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to close trade", http.StatusInternalServerError)
		return
	}
	if status != model.TradeStatusOpen {
		utils.SendJSONError(w, "Trade is already closed", http.StatusBadRequest)
		return
	}

	pnl := model.ComputePnl(tradeType, entryPrice, req.Exit.ExitPrice, quantity)
	outcome := model.ClassifyOutcome(pnl)
	closedAt := time.Now().UTC()

	// The status guard serializes concurrent closes of the same trade: only
	// one UPDATE can match the OPEN row.
	res, err := tx.Exec(`
		UPDATE trades
		SET status = 'CLOSED', exit_price = ?, total_pnl = ?, outcome = ?, closed_at = ?
		WHERE trade_id = ? AND status = 'OPEN' AND is_deleted = 0`,
		req.Exit.ExitPrice, pnl, outcome, closedAt, tradeID)
	if err != nil {
		logger.L.Error("Failed to update trade on close", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to close trade", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		utils.SendJSONError(w, "Trade is already closed", http.StatusBadRequest)
		return
	}

	exit := &model.ExitDetails{
		TradeID:     tradeID,
		ExitPrice:   req.Exit.ExitPrice,
		ExitDate:    strings.TrimSpace(req.Exit.ExitDate),
		ExitReason:  validation.SanitizeText(strings.TrimSpace(req.Exit.ExitReason)),
		ExitEmotion: validation.SanitizeText(strings.TrimSpace(req.Exit.ExitEmotion)),
	}
	if err := exit.Insert(tx); err != nil {
		logger.L.Error("Failed to insert exit details", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to close trade", http.StatusInternalServerError)
		return
	}

	if req.Holding != nil {
		holding := &model.HoldingPhase{
			TradeID:            tradeID,
			Notes:              validation.SanitizeText(strings.TrimSpace(req.Holding.Notes)),
			DisciplineFollowed: req.Holding.DisciplineFollowed,
		}
		if err := holding.Upsert(tx); err != nil {
			logger.L.Error("Failed to upsert holding phase", "tradeID", tradeID, "error", err)
			utils.SendJSONError(w, "Failed to close trade", http.StatusInternalServerError)
			return
		}
	}
	if req.Reflection != nil {
		reflection := &model.ReflectionNotes{
			TradeID:          tradeID,
			LessonsLearned:   validation.SanitizeText(strings.TrimSpace(req.Reflection.LessonsLearned)),
			ImprovementNotes: validation.SanitizeText(strings.TrimSpace(req.Reflection.ImprovementNotes)),
		}
		if err := reflection.Insert(tx); err != nil {
			logger.L.Error("Failed to insert reflection notes", "tradeID", tradeID, "error", err)
			utils.SendJSONError(w, "Failed to close trade", http.StatusInternalServerError)
			return
		}
	}

	if err := services.RecalculateCapital(tx); err != nil {
		logger.L.Error("Capital recalculation failed inside close transaction", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to close trade", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		logger.L.Error("Failed to commit trade close", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to close trade", http.StatusInternalServerError)
		return
	}
	h.reportCache.Flush()

	logger.L.Info("Trade closed", "tradeID", tradeID, "pnl", pnl.String(), "outcome", outcome)
	utils.SendJSON(w, map[string]interface{}{
		"message":  "Trade closed successfully",
		"trade_id": tradeID,
		"pnl":      pnl,
		"outcome":  outcome,
	}, http.StatusOK)
}

// CreateFullJournal records a completed trade in one shot: trade row plus all
// detail sub-rows in a single transaction, rolled back together on any
// failure.
func (h *TradeHandler) CreateFullJournal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Trade      *openTradeRequest  `json:"trade"`
		PreTrade   *model.PreTradeContext `json:"pre_trade"`
		Holding    *holdingRequest    `json:"holding"`
		Exit       *exitRequest       `json:"exit"`
		Reflection *reflectionRequest `json:"reflection"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Trade == nil || req.Exit == nil {
		utils.SendJSONError(w, "Trade and exit data are required", http.StatusBadRequest)
		return
	}

	trade, err := req.Trade.validate()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePositiveDecimal(req.Exit.ExitPrice, "Exit price"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	pnl := model.ComputePnl(trade.TradeType, trade.EntryPrice, req.Exit.ExitPrice, trade.Quantity)
	outcome := model.ClassifyOutcome(pnl)
	now := time.Now().UTC()

	trade.Status = model.TradeStatusClosed
	trade.ExitPrice = decimal.NullDecimal{Decimal: req.Exit.ExitPrice, Valid: true}
	trade.TotalPnl = pnl
	trade.Outcome = outcome
	trade.CreatedAt = now
	trade.ClosedAt = model.NullTime{Time: now, Valid: true}

	tx, err := database.DB.Begin()
	if err != nil {
		logger.L.Error("Failed to begin transaction for full journal", "error", err)
		utils.SendJSONError(w, "Failed to create journal", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	if err := trade.InsertTrade(tx); err != nil {
		logger.L.Error("Failed to insert journal trade", "error", err)
		utils.SendJSONError(w, "Failed to create journal", http.StatusInternalServerError)
		return
	}
	tradeID := trade.ID

	entry := &model.EntryDetails{
		TradeID:         tradeID,
		ConfidenceLevel: req.Trade.ConfidenceLevel,
		EntryEmotion:    req.Trade.EntryEmotion,
	}
	if err := entry.Insert(tx); err != nil {
		logger.L.Error("Failed to insert journal entry details", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to create journal", http.StatusInternalServerError)
		return
	}

	if req.PreTrade != nil {
		preTrade := &model.PreTradeContext{
			TradeID:     tradeID,
			MarketTrend: validation.SanitizeText(req.PreTrade.MarketTrend),
			Volatility:  validation.SanitizeText(req.PreTrade.Volatility),
			IndexMood:   validation.SanitizeText(req.PreTrade.IndexMood),
		}
		if err := preTrade.Insert(tx); err != nil {
			logger.L.Error("Failed to insert journal pre-trade context", "tradeID", tradeID, "error", err)
			utils.SendJSONError(w, "Failed to create journal", http.StatusInternalServerError)
			return
		}
	}
	if req.Holding != nil {
		holding := &model.HoldingPhase{
			TradeID:            tradeID,
			Notes:              validation.SanitizeText(strings.TrimSpace(req.Holding.Notes)),
			DisciplineFollowed: req.Holding.DisciplineFollowed,
		}
		if err := holding.Insert(tx); err != nil {
			logger.L.Error("Failed to insert journal holding phase", "tradeID", tradeID, "error", err)
			utils.SendJSONError(w, "Failed to create journal", http.StatusInternalServerError)
			return
		}
	}

	exit := &model.ExitDetails{
		TradeID:     tradeID,
		ExitPrice:   req.Exit.ExitPrice,
		ExitDate:    strings.TrimSpace(req.Exit.ExitDate),
		ExitReason:  validation.SanitizeText(strings.TrimSpace(req.Exit.ExitReason)),
		ExitEmotion: validation.SanitizeText(strings.TrimSpace(req.Exit.ExitEmotion)),
	}
	if err := exit.Insert(tx); err != nil {
		logger.L.Error("Failed to insert journal exit details", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to create journal", http.StatusInternalServerError)
		return
	}

	if req.Reflection != nil {
		reflection := &model.ReflectionNotes{
			TradeID:          tradeID,
			LessonsLearned:   validation.SanitizeText(strings.TrimSpace(req.Reflection.LessonsLearned)),
			ImprovementNotes: validation.SanitizeText(strings.TrimSpace(req.Reflection.ImprovementNotes)),
		}
		if err := reflection.Insert(tx); err != nil {
			logger.L.Error("Failed to insert journal reflection notes", "tradeID", tradeID, "error", err)
			utils.SendJSONError(w, "Failed to create journal", http.StatusInternalServerError)
			return
		}
	}

	if err := services.RecalculateCapital(tx); err != nil {
		logger.L.Error("Capital recalculation failed inside journal transaction", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to create journal", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		logger.L.Error("Failed to commit full journal", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to create journal", http.StatusInternalServerError)
		return
	}
	h.reportCache.Flush()

	logger.L.Info("Full trade journal created", "tradeID", tradeID, "pnl", pnl.String(), "outcome", outcome)
	utils.SendJSON(w, map[string]interface{}{
		"message":      "Full trade journal created successfully",
		"trade_id":     tradeID,
		"exposure":     trade.Exposure,
		"capital_used": trade.CapitalUsed,
		"pnl":          pnl,
		"outcome":      outcome,
	}, http.StatusCreated)
}

// UpdateTrade edits an OPEN trade. Only the fields in the explicit allow-list
// below can change; price, quantity and leverage are fixed at open time.
func (h *TradeHandler) UpdateTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := parseIDParam(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid trade ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Symbol      *string          `json:"symbol"`
		CompanyName *string          `json:"company_name"`
		TradeMode   *string          `json:"trade_mode"`
		StopLoss    *decimal.Decimal `json:"stop_loss"`
		TargetPrice *decimal.Decimal `json:"target_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var sets []string
	var args []any
	if req.Symbol != nil {
		symbol := validation.SanitizeText(strings.ToUpper(strings.TrimSpace(*req.Symbol)))
		if err := validation.ValidateStringNotEmpty(symbol, "Symbol"); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sets = append(sets, "symbol = ?")
		args = append(args, symbol)
	}
	if req.CompanyName != nil {
		sets = append(sets, "company_name = ?")
		args = append(args, validation.SanitizeText(strings.TrimSpace(*req.CompanyName)))
	}
	if req.TradeMode != nil {
		mode := strings.ToUpper(strings.TrimSpace(*req.TradeMode))
		if err := validation.ValidateOneOf(mode, "Trade mode", model.TradeModes); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sets = append(sets, "trade_mode = ?")
		args = append(args, mode)
	}
	if req.StopLoss != nil {
		if err := validation.ValidatePositiveDecimal(*req.StopLoss, "Stop loss"); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sets = append(sets, "stop_loss = ?")
		args = append(args, *req.StopLoss)
	}
	if req.TargetPrice != nil {
		if err := validation.ValidatePositiveDecimal(*req.TargetPrice, "Target price"); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sets = append(sets, "target_price = ?")
		args = append(args, *req.TargetPrice)
	}

	if len(sets) == 0 {
		utils.SendJSONError(w, "Nothing to update", http.StatusBadRequest)
		return
	}

	args = append(args, tradeID)
	res, err := database.DB.Exec(
		`UPDATE trades SET `+strings.Join(sets, ", ")+` WHERE trade_id = ? AND status = 'OPEN' AND is_deleted = 0`,
		args...)
	if err != nil {
		logger.L.Error("Failed to update trade", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to update trade", http.StatusInternalServerError)
		return
	}
	affected, err := res.RowsAffected()
	if err != nil {
		utils.SendJSONError(w, "Failed to update trade", http.StatusInternalServerError)
		return
	}
	if affected == 0 {
		// Distinguish a missing trade from one that is no longer OPEN.
		if _, getErr := model.GetTradeByID(database.DB, tradeID); errors.Is(getErr, model.ErrNotFound) {
			utils.SendJSONError(w, "Trade not found", http.StatusNotFound)
		} else {
			utils.SendJSONError(w, "Only open trades can be edited", http.StatusBadRequest)
		}
		return
	}

	h.reportCache.Flush()
	utils.SendJSON(w, map[string]string{"message": "Trade updated successfully"}, http.StatusOK)
}

func (h *TradeHandler) DeleteTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := parseIDParam(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid trade ID", http.StatusBadRequest)
		return
	}
	if err := model.SetTradeDeleted(database.DB, tradeID, true); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			utils.SendJSONError(w, "Trade not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to soft-delete trade", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to delete trade", http.StatusInternalServerError)
		return
	}
	if err := services.RecalculateCapital(database.DB); err != nil {
		logger.L.Error("Capital recalculation failed after trade delete", "tradeID", tradeID, "error", err)
	}
	h.reportCache.Flush()
	utils.SendJSON(w, map[string]string{"message": "Trade deleted successfully"}, http.StatusOK)
}

func (h *TradeHandler) RestoreTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := parseIDParam(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid trade ID", http.StatusBadRequest)
		return
	}
	if err := model.SetTradeDeleted(database.DB, tradeID, false); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			utils.SendJSONError(w, "Deleted trade not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to restore trade", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to restore trade", http.StatusInternalServerError)
		return
	}
	if err := services.RecalculateCapital(database.DB); err != nil {
		logger.L.Error("Capital recalculation failed after trade restore", "tradeID", tradeID, "error", err)
	}
	h.reportCache.Flush()
	utils.SendJSON(w, map[string]string{"message": "Trade restored successfully"}, http.StatusOK)
}

// AddTradeNote appends an immutable note to an OPEN trade.
func (h *TradeHandler) AddTradeNote(w http.ResponseWriter, r *http.Request) {
	tradeID, err := parseIDParam(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid trade ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Note = validation.SanitizeText(strings.TrimSpace(req.Note))
	if err := validation.ValidateStringNotEmpty(req.Note, "Note"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(req.Note, validation.MaxNoteLength, "Note"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	trade, err := model.GetTradeByID(database.DB, tradeID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			utils.SendJSONError(w, "Trade not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load trade for note", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to add note", http.StatusInternalServerError)
		return
	}
	if trade.Status != model.TradeStatusOpen {
		utils.SendJSONError(w, "Notes can only be added to open trades", http.StatusBadRequest)
		return
	}

	note := &model.TradeNote{TradeID: tradeID, Note: req.Note}
	if err := note.Insert(database.DB); err != nil {
		logger.L.Error("Failed to insert trade note", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to add note", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, note, http.StatusCreated)
}

func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.TradeFilter{
		Status:    strings.ToUpper(q.Get("status")),
		TradeMode: strings.ToUpper(q.Get("trade_mode")),
		TradeType: strings.ToUpper(q.Get("trade_type")),
		Sort:      q.Get("sort"),
		Order:     q.Get("order"),
	}
	if filter.Status != "" {
		if err := validation.ValidateOneOf(filter.Status, "Status", model.TradeStates); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if filter.TradeMode != "" {
		if err := validation.ValidateOneOf(filter.TradeMode, "Trade mode", model.TradeModes); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if filter.TradeType != "" {
		if err := validation.ValidateOneOf(filter.TradeType, "Trade type", model.TradeTypes); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	trades, total, err := model.ListTrades(database.DB, filter)
	if err != nil {
		if errors.Is(err, model.ErrInvalidState) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.L.Error("Failed to list trades", "error", err)
		utils.SendJSONError(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
		"trades": trades,
	}, http.StatusOK)
}

func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := parseIDParam(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid trade ID", http.StatusBadRequest)
		return
	}

	trade, err := model.GetTradeByID(database.DB, tradeID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			utils.SendJSONError(w, "Trade not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load trade", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to fetch trade", http.StatusInternalServerError)
		return
	}

	var entry *model.EntryDetails
	var preTrade *model.PreTradeContext
	var holding *model.HoldingPhase
	var exit *model.ExitDetails
	var reflection *model.ReflectionNotes
	var notes []model.TradeNote

	if entry, err = model.GetEntryDetails(database.DB, tradeID); err == nil {
		if preTrade, err = model.GetPreTradeContext(database.DB, tradeID); err == nil {
			if holding, err = model.GetHoldingPhase(database.DB, tradeID); err == nil {
				if exit, err = model.GetExitDetails(database.DB, tradeID); err == nil {
					if reflection, err = model.GetReflectionNotes(database.DB, tradeID); err == nil {
						notes, err = model.ListTradeNotes(database.DB, tradeID)
					}
				}
			}
		}
	}
	if err != nil {
		logger.L.Error("Failed to load trade details", "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to fetch trade", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"trade":      trade,
		"entry":      entry,
		"pre_trade":  preTrade,
		"holding":    holding,
		"exit":       exit,
		"reflection": reflection,
		"notes":      notes,
	}, http.StatusOK)
}

// GetTradeAnalytics reports aggregate performance over closed trades.
func (h *TradeHandler) GetTradeAnalytics(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "trades:analytics:performance"
	if cached, found := h.reportCache.Get(cacheKey); found {
		utils.SendJSON(w, cached, http.StatusOK)
		return
	}

	var totalTrades, wins, losses, breakeven int
	var totalPnl, avgPnl, bestTrade, worstTrade decimal.Decimal
	err := database.DB.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN outcome = 'WIN' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome = 'LOSS' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome = 'BREAKEVEN' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(total_pnl), 0),
		       COALESCE(AVG(total_pnl), 0),
		       COALESCE(MAX(total_pnl), 0),
		       COALESCE(MIN(total_pnl), 0)
		FROM trades
		WHERE status = 'CLOSED' AND is_deleted = 0`).Scan(
		&totalTrades, &wins, &losses, &breakeven, &totalPnl, &avgPnl, &bestTrade, &worstTrade)
	if err != nil {
		logger.L.Error("Failed to compute trade analytics", "error", err)
		utils.SendJSONError(w, "Failed to compute analytics", http.StatusInternalServerError)
		return
	}

	result := map[string]interface{}{
		"total_trades": totalTrades,
		"wins":         wins,
		"losses":       losses,
		"breakeven":    breakeven,
		"total_pnl":    totalPnl,
		"avg_pnl":      avgPnl.Round(2),
		"best_trade":   bestTrade,
		"worst_trade":  worstTrade,
		"win_rate":     winRate(wins, totalTrades),
	}
	h.reportCache.Set(cacheKey, result, cache.DefaultExpiration)
	utils.SendJSON(w, result, http.StatusOK)
}

// winRate is wins/total×100 rounded to two decimals, zero when there are no
// trades.
func winRate(wins, totalTrades int) decimal.Decimal {
	if totalTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(wins) * 100).DivRound(decimal.NewFromInt(int64(totalTrades)), 2)
}

type riskMetric struct {
	TradeID   int64               `json:"trade_id"`
	Risk      decimal.NullDecimal `json:"risk"`
	RRRatio   decimal.NullDecimal `json:"rr_ratio"`
	ReturnPct decimal.NullDecimal `json:"return_pct"`
}

// GetRiskMetrics reports per-trade risk numbers for closed trades:
// risk = |entry − stop| × quantity, rr_ratio = pnl / risk, and
// return_pct = pnl / capital_used × 100. Ratios are null when their
// denominator is zero or the stop loss was never set.
func (h *TradeHandler) GetRiskMetrics(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(`
		SELECT trade_id, entry_price, stop_loss, quantity, capital_used, total_pnl
		FROM trades
		WHERE status = 'CLOSED' AND is_deleted = 0
		ORDER BY trade_id`)
	if err != nil {
		logger.L.Error("Failed to query risk metrics", "error", err)
		utils.SendJSONError(w, "Failed to compute risk metrics", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	metrics := []riskMetric{}
	for rows.Next() {
		var tradeID int64
		var entryPrice, quantity, capitalUsed, totalPnl decimal.Decimal
		var stopLoss decimal.NullDecimal
		if err := rows.Scan(&tradeID, &entryPrice, &stopLoss, &quantity, &capitalUsed, &totalPnl); err != nil {
			logger.L.Error("Failed to scan risk metric row", "error", err)
			utils.SendJSONError(w, "Failed to compute risk metrics", http.StatusInternalServerError)
			return
		}

		m := riskMetric{TradeID: tradeID}
		if stopLoss.Valid {
			risk := entryPrice.Sub(stopLoss.Decimal).Abs().Mul(quantity)
			m.Risk = decimal.NullDecimal{Decimal: risk, Valid: true}
			if risk.Sign() > 0 {
				m.RRRatio = decimal.NullDecimal{Decimal: totalPnl.DivRound(risk, 2), Valid: true}
			}
		}
		if capitalUsed.Sign() > 0 {
			returnPct := totalPnl.Mul(decimal.NewFromInt(100)).DivRound(capitalUsed, 2)
			m.ReturnPct = decimal.NullDecimal{Decimal: returnPct, Valid: true}
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		logger.L.Error("Failed iterating risk metric rows", "error", err)
		utils.SendJSONError(w, "Failed to compute risk metrics", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, metrics, http.StatusOK)
}
