package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajconsultancy/tradedesk/src/config"
	"github.com/ajconsultancy/tradedesk/src/database"
	"github.com/ajconsultancy/tradedesk/src/logger"
	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
	}
	os.Exit(m.Run())
}

// setupTestDB points the global connection at a migrated throwaway database.
func setupTestDB(t *testing.T) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(on)&_time_format=sqlite")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.MigrateUp(db, filepath.Join("..", "..", "db", "migrations")))

	database.DB = db
	t.Cleanup(func() { db.Close() })
}

// newTestRouter wires the API routes without the auth middleware so handler
// behavior can be exercised directly.
func newTestRouter() *chi.Mux {
	reportCache := cache.New(time.Minute, time.Minute)
	tradeHandler := NewTradeHandler(reportCache)
	clientHandler := NewClientHandler(reportCache)
	dashboardHandler := NewDashboardHandler(reportCache)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/trades", tradeHandler.CreateTrade)
		r.Post("/trades/full-journal", tradeHandler.CreateFullJournal)
		r.Get("/trades", tradeHandler.ListTrades)
		r.Get("/trades/analytics/performance", tradeHandler.GetTradeAnalytics)
		r.Get("/trades/analytics/risk", tradeHandler.GetRiskMetrics)
		r.Get("/trades/{id}", tradeHandler.GetTrade)
		r.Patch("/trades/{id}", tradeHandler.UpdateTrade)
		r.Patch("/trades/{id}/close", tradeHandler.CloseTrade)
		r.Patch("/trades/{id}/restore", tradeHandler.RestoreTrade)
		r.Delete("/trades/{id}", tradeHandler.DeleteTrade)
		r.Post("/trades/{id}/notes", tradeHandler.AddTradeNote)

		r.Post("/clients", clientHandler.CreateClient)
		r.Get("/clients", clientHandler.ListClients)
		r.Get("/clients/summary", clientHandler.ClientSummary)
		r.Get("/clients/{id}", clientHandler.GetClient)
		r.Patch("/clients/{id}", clientHandler.UpdateClient)
		r.Patch("/clients/{id}/status", clientHandler.UpdateClientStatus)
		r.Patch("/clients/{id}/restore", clientHandler.RestoreClient)
		r.Delete("/clients/{id}", clientHandler.DeleteClient)

		r.Get("/dashboard/summary", dashboardHandler.Summary)
		r.Get("/dashboard/monthly-performance", dashboardHandler.MonthlyPerformance)
		r.Get("/dashboard/win-loss-distribution", dashboardHandler.WinLossDistribution)
		r.Get("/dashboard/recent-trades", dashboardHandler.RecentTrades)
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(encoded)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
