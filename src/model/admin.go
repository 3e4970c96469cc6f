package model

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

type Admin struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateAdmin inserts a new admin row. A duplicate email surfaces as
// ErrConflict.
func (a *Admin) CreateAdmin(db *sql.DB) error {
	if a.Role == "" {
		a.Role = "ADMIN"
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := db.Exec(`
		INSERT INTO admins (name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.Name, a.Email, a.PasswordHash, a.Role, a.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func GetAdminByEmail(db *sql.DB, email string) (*Admin, error) {
	row := db.QueryRow(`
		SELECT id, name, email, password_hash, role, created_at FROM admins WHERE email = ?`, email)
	return scanAdmin(row)
}

func GetAdminByID(db *sql.DB, id int64) (*Admin, error) {
	row := db.QueryRow(`
		SELECT id, name, email, password_hash, role, created_at FROM admins WHERE id = ?`, id)
	return scanAdmin(row)
}

func scanAdmin(row *sql.Row) (*Admin, error) {
	var a Admin
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type Session struct {
	ID           int64     `json:"id"`
	AdminID      int64     `json:"admin_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func CreateSession(db *sql.DB, s *Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	res, err := db.Exec(`
		INSERT INTO sessions (admin_id, token, refresh_token, user_agent, client_ip, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.AdminID, s.Token, s.RefreshToken, s.UserAgent, s.ClientIP, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func GetSessionByToken(db *sql.DB, token string) (*Session, error) {
	return getSessionBy(db, "token", token)
}

func GetSessionByRefreshToken(db *sql.DB, refreshToken string) (*Session, error) {
	return getSessionBy(db, "refresh_token", refreshToken)
}

func getSessionBy(db *sql.DB, column, value string) (*Session, error) {
	var s Session
	var userAgent, clientIP sql.NullString
	err := db.QueryRow(`
		SELECT id, admin_id, token, refresh_token, user_agent, client_ip, expires_at, created_at
		FROM sessions WHERE `+column+` = ? AND expires_at > ?`, value, time.Now().UTC()).Scan(
		&s.ID, &s.AdminID, &s.Token, &s.RefreshToken, &userAgent, &clientIP, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.UserAgent = userAgent.String
	s.ClientIP = clientIP.String
	return &s, nil
}

func DeleteSessionByToken(db *sql.DB, token string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

func DeleteSessionByRefreshToken(db *sql.DB, refreshToken string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE refresh_token = ?`, refreshToken)
	return err
}
