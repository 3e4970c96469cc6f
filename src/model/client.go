package model

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Client lifecycle states.
const (
	ClientStatusActive   = "ACTIVE"
	ClientStatusInactive = "INACTIVE"
	ClientStatusPending  = "PENDING"
)

var ClientStatuses = []string{ClientStatusActive, ClientStatusInactive, ClientStatusPending}

type Client struct {
	ID              int64           `json:"client_id"`
	Name            string          `json:"name"`
	Broker          string          `json:"broker"`
	CapitalInvested decimal.Decimal `json:"capital_invested"`
	JoinDate        string          `json:"join_date"`
	Status          string          `json:"status"`
	IsDeleted       bool            `json:"is_deleted"`
	DeletedAt       NullTime        `json:"deleted_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

const clientColumns = `client_id, name, broker, capital_invested, join_date, status, is_deleted, deleted_at, created_at`

func scanClient(row interface{ Scan(...any) error }) (*Client, error) {
	var c Client
	var deletedAt sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.Broker, &c.CapitalInvested, &c.JoinDate,
		&c.Status, &c.IsDeleted, &deletedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.DeletedAt = NullTime(deletedAt)
	return &c, nil
}

// InsertClient persists a new client row and backfills the generated ID.
func (c *Client) InsertClient(db *sql.DB) error {
	if c.Status == "" {
		c.Status = ClientStatusActive
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := db.Exec(`
		INSERT INTO clients (name, broker, capital_invested, join_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.Broker, c.CapitalInvested, c.JoinDate, c.Status, c.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// GetClientByID returns a non-deleted client or ErrNotFound.
func GetClientByID(db *sql.DB, id int64) (*Client, error) {
	row := db.QueryRow(`SELECT `+clientColumns+` FROM clients WHERE client_id = ? AND is_deleted = 0`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListClients returns all non-deleted clients, most recent first.
func ListClients(db *sql.DB) ([]Client, error) {
	rows, err := db.Query(`SELECT ` + clientColumns + ` FROM clients WHERE is_deleted = 0 ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []Client{}
	}
	return clients, nil
}

// UpdateClientStatus sets the lifecycle status of a non-deleted client.
func UpdateClientStatus(db *sql.DB, id int64, status string) error {
	res, err := db.Exec(`UPDATE clients SET status = ? WHERE client_id = ? AND is_deleted = 0`, status, id)
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

// SetClientDeleted flips the soft-delete flag, same contract as trades.
func SetClientDeleted(db *sql.DB, id int64, deleted bool) error {
	var res sql.Result
	var err error
	if deleted {
		res, err = db.Exec(`UPDATE clients SET is_deleted = 1, deleted_at = ? WHERE client_id = ? AND is_deleted = 0`,
			time.Now().UTC(), id)
	} else {
		res, err = db.Exec(`UPDATE clients SET is_deleted = 0, deleted_at = NULL WHERE client_id = ? AND is_deleted = 1`, id)
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

// ClientSummary aggregates client counts by status plus the capital snapshot.
type ClientSummary struct {
	TotalClients    int             `json:"total_clients"`
	ActiveClients   int             `json:"active_clients"`
	InactiveClients int             `json:"inactive_clients"`
	PendingClients  int             `json:"pending_clients"`
	TotalCapital    decimal.Decimal `json:"total_capital"`
}

// GetClientSummary counts non-deleted clients per status and reads the
// capital snapshot maintained by the recalculator.
func GetClientSummary(db *sql.DB) (*ClientSummary, error) {
	var s ClientSummary
	err := db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'ACTIVE' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'INACTIVE' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'PENDING' THEN 1 ELSE 0 END), 0)
		FROM clients
		WHERE is_deleted = 0`).Scan(&s.TotalClients, &s.ActiveClients, &s.InactiveClients, &s.PendingClients)
	if err != nil {
		return nil, err
	}

	err = db.QueryRow(`SELECT total_capital FROM capital_summary WHERE capital_id = 1`).Scan(&s.TotalCapital)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
