package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ajconsultancy/tradedesk/src/database"
	"github.com/ajconsultancy/tradedesk/src/logger"
	"github.com/ajconsultancy/tradedesk/src/model"
	"github.com/ajconsultancy/tradedesk/src/security/validation"
	"github.com/ajconsultancy/tradedesk/src/services"
	"github.com/ajconsultancy/tradedesk/src/utils"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

type ClientHandler struct {
	reportCache *cache.Cache
}

func NewClientHandler(reportCache *cache.Cache) *ClientHandler {
	return &ClientHandler{reportCache: reportCache}
}

// CreateClient registers a client. Their invested capital counts toward the
// firm total immediately.
func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string          `json:"name"`
		Broker          string          `json:"broker"`
		CapitalInvested decimal.Decimal `json:"capital_invested"`
		JoinDate        string          `json:"join_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Name = validation.SanitizeText(strings.TrimSpace(req.Name))
	req.Broker = validation.SanitizeText(strings.TrimSpace(req.Broker))
	req.JoinDate = strings.TrimSpace(req.JoinDate)

	if err := validation.ValidateStringNotEmpty(req.Name, "Name"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(req.Name, validation.DefaultMaxStringLength, "Name"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringNotEmpty(req.Broker, "Broker"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateNonNegativeDecimal(req.CapitalInvested, "Capital invested"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.JoinDate == "" {
		req.JoinDate = time.Now().UTC().Format("2006-01-02")
	}

	client := &model.Client{
		Name:            req.Name,
		Broker:          req.Broker,
		CapitalInvested: req.CapitalInvested,
		JoinDate:        req.JoinDate,
	}
	if err := client.InsertClient(database.DB); err != nil {
		logger.L.Error("Failed to insert client", "error", err)
		utils.SendJSONError(w, "Failed to create client", http.StatusInternalServerError)
		return
	}

	if err := services.RecalculateCapital(database.DB); err != nil {
		logger.L.Error("Capital recalculation failed after client create", "clientID", client.ID, "error", err)
	}
	h.reportCache.Flush()

	logger.L.Info("Client created", "clientID", client.ID)
	utils.SendJSON(w, client, http.StatusCreated)
}

func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := model.ListClients(database.DB)
	if err != nil {
		logger.L.Error("Failed to list clients", "error", err)
		utils.SendJSONError(w, "Failed to list clients", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, clients, http.StatusOK)
}

func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := parseIDParam(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid client ID", http.StatusBadRequest)
		return
	}
	client, err := model.GetClientByID(database.DB, clientID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			utils.SendJSONError(w, "Client not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load client", "clientID", clientID, "error", err)
		utils.SendJSONError(w, "Failed to fetch client", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, client, http.StatusOK)
}

// UpdateClient edits client details. Status changes go through UpdateStatus.
func (h *ClientHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := parseIDParam(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid client ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Name            *string          `json:"name"`
		Broker          *string          `json:"broker"`
		CapitalInvested *decimal.Decimal `json:"capital_invested"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var sets []string
	var args []any
	if req.Name != nil {
		name := validation.SanitizeText(strings.TrimSpace(*req.Name))
		if err := validation.ValidateStringNotEmpty(name, "Name"); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if req.Broker != nil {
		sets = append(sets, "broker = ?")
		args = append(args, validation.SanitizeText(strings.TrimSpace(*req.Broker)))
	}
	if req.CapitalInvested != nil {
		if err := validation.ValidateNonNegativeDecimal(*req.CapitalInvested, "Capital invested"); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sets = append(sets, "capital_invested = ?")
		args = append(args, *req.CapitalInvested)
	}
	if len(sets) == 0 {
		utils.SendJSONError(w, "Nothing to update", http.StatusBadRequest)
		return
	}

	args = append(args, clientID)
	res, err := database.DB.Exec(
		`UPDATE clients SET `+strings.Join(sets, ", ")+` WHERE client_id = ? AND is_deleted = 0`, args...)
	if err != nil {
		logger.L.Error("Failed to update client", "clientID", clientID, "error", err)
		utils.SendJSONError(w, "Failed to update client", http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		utils.SendJSONError(w, "Client not found", http.StatusNotFound)
		return
	}

	// Firm capital only moves when invested capital changed.
	if req.CapitalInvested != nil {
		if err := services.RecalculateCapital(database.DB); err != nil {
			logger.L.Error("Capital recalculation failed after client update", "clientID", clientID, "error", err)
		}
	}
	h.reportCache.Flush()
	utils.SendJSON(w, map[string]string{"message": "Client updated successfully"}, http.StatusOK)
}

func (h *ClientHandler) UpdateClientStatus(w http.ResponseWriter, r *http.Request) {
	clientID, err := parseIDParam(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid client ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	if err := validation.ValidateOneOf(req.Status, "Status", model.ClientStatuses); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := model.UpdateClientStatus(database.DB, clientID, req.Status); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			utils.SendJSONError(w, "Client not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to update client status", "clientID", clientID, "error", err)
		utils.SendJSONError(w, "Failed to update client status", http.StatusInternalServerError)
		return
	}

	h.reportCache.Flush()
	utils.SendJSON(w, map[string]string{"message": "Client status updated successfully"}, http.StatusOK)
}

func (h *ClientHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := parseIDParam(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid client ID", http.StatusBadRequest)
		return
	}
	if err := model.SetClientDeleted(database.DB, clientID, true); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			utils.SendJSONError(w, "Client not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to soft-delete client", "clientID", clientID, "error", err)
		utils.SendJSONError(w, "Failed to delete client", http.StatusInternalServerError)
		return
	}
	if err := services.RecalculateCapital(database.DB); err != nil {
		logger.L.Error("Capital recalculation failed after client delete", "clientID", clientID, "error", err)
	}
	h.reportCache.Flush()
	utils.SendJSON(w, map[string]string{"message": "Client deleted successfully"}, http.StatusOK)
}

func (h *ClientHandler) RestoreClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := parseIDParam(r)
	if err != nil {
		utils.SendJSONError(w, "Invalid client ID", http.StatusBadRequest)
		return
	}
	if err := model.SetClientDeleted(database.DB, clientID, false); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			utils.SendJSONError(w, "Deleted client not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to restore client", "clientID", clientID, "error", err)
		utils.SendJSONError(w, "Failed to restore client", http.StatusInternalServerError)
		return
	}
	if err := services.RecalculateCapital(database.DB); err != nil {
		logger.L.Error("Capital recalculation failed after client restore", "clientID", clientID, "error", err)
	}
	h.reportCache.Flush()
	utils.SendJSON(w, map[string]string{"message": "Client restored successfully"}, http.StatusOK)
}

func (h *ClientHandler) ClientSummary(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "clients:summary"
	if cached, found := h.reportCache.Get(cacheKey); found {
		utils.SendJSON(w, cached, http.StatusOK)
		return
	}

	summary, err := model.GetClientSummary(database.DB)
	if err != nil {
		logger.L.Error("Failed to compute client summary", "error", err)
		utils.SendJSONError(w, "Failed to compute client summary", http.StatusInternalServerError)
		return
	}

	h.reportCache.Set(cacheKey, summary, cache.DefaultExpiration)
	utils.SendJSON(w, summary, http.StatusOK)
}
